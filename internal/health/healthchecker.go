// Package health tracks whether the assistant's dependencies are usable.
package health

import (
	"context"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// HealthChecker is implemented by component-level checkers (store, knowledge index, embedder, generator).
type HealthChecker interface {
	Name() string
	IsHealthy() bool
	Start(ctx context.Context, interval time.Duration)
}

// Status is a snapshot of service health. Down names the failing
// components, sorted.
type Status struct {
	Healthy bool
	Down    []string
}

// ServiceHealthChecker folds component checkers into one Status. The
// service starts DOWN with every component listed until the first pass.
type ServiceHealthChecker struct {
	status atomic.Pointer[Status]
	deps   []HealthChecker
	log    zerolog.Logger
}

func NewServiceHealthChecker(log zerolog.Logger, deps ...HealthChecker) *ServiceHealthChecker {
	h := &ServiceHealthChecker{deps: deps, log: log}
	names := make([]string, 0, len(deps))
	for _, d := range deps {
		names = append(names, d.Name())
	}
	sort.Strings(names)
	h.status.Store(&Status{Down: names})
	return h
}

func (h *ServiceHealthChecker) IsHealthy() bool { return h.status.Load().Healthy }

// Status returns the last evaluated snapshot.
func (h *ServiceHealthChecker) Status() Status {
	s := h.status.Load()
	return Status{Healthy: s.Healthy, Down: append([]string(nil), s.Down...)}
}

func (h *ServiceHealthChecker) evaluate() Status {
	var down []string
	for _, c := range h.deps {
		if !c.IsHealthy() {
			down = append(down, c.Name())
		}
	}
	sort.Strings(down)
	return Status{Healthy: len(down) == 0, Down: down}
}

// Start re-evaluates the components every interval and logs whenever the
// set of failing components changes.
func (h *ServiceHealthChecker) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	first := true
	eval := func() {
		next := h.evaluate()
		prev := h.status.Swap(&next)
		if !first && strings.Join(prev.Down, ",") == strings.Join(next.Down, ",") {
			return
		}
		first = false
		if next.Healthy {
			h.log.Info().Msg("service health: UP")
		} else {
			h.log.Error().Strs("down", next.Down).Msg("service health: DOWN")
		}
	}

	eval()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			eval()
		}
	}
}
