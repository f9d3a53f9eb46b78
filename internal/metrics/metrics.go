// Package metrics keeps the per-day conversation counters.
package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/marzetti/salon-assistant/internal/model"
	"github.com/marzetti/salon-assistant/internal/store"
)

// Aggregator increments daily counters. Each call is one additive upsert,
// so concurrent requests need no locking.
type Aggregator struct {
	rows store.Metrics
	now  func() time.Time
}

func New(rows store.Metrics) *Aggregator {
	return &Aggregator{rows: rows, now: model.Now}
}

// Delta maps one handled message to its counter increments.
func Delta(level model.RiskLevel, decision model.Decision) model.MetricsDelta {
	d := model.MetricsDelta{Conversations: 1, Messages: 1}
	switch decision {
	case model.DecisionHandoff:
		d.Handoffs = 1
	case model.DecisionTriage:
		d.Triage = 1
	}
	switch level {
	case model.RiskBajo:
		d.Bajo = 1
	case model.RiskMedio:
		d.Medio = 1
	case model.RiskAlto:
		d.Alto = 1
	case model.RiskCritico:
		d.Critico = 1
	}
	return d
}

// Record counts one handled message under today's row.
func (a *Aggregator) Record(ctx context.Context, level model.RiskLevel, decision model.Decision) error {
	return a.rows.Increment(ctx, a.now().Format(model.DayFormat), Delta(level, decision))
}

// Day returns the counters for day (YYYY-MM-DD). A day with no activity
// returns nil and no error.
func (a *Aggregator) Day(ctx context.Context, day string) (*model.DailyMetrics, error) {
	if _, err := time.Parse(model.DayFormat, day); err != nil {
		return nil, model.ErrValidation
	}
	m, err := a.rows.Get(ctx, day)
	if errors.Is(err, model.ErrNotFound) {
		return nil, nil
	}
	return m, err
}

// Today is the current day in DayFormat.
func (a *Aggregator) Today() string { return a.now().Format(model.DayFormat) }
