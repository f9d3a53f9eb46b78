package metrics

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marzetti/salon-assistant/internal/model"
	"github.com/marzetti/salon-assistant/internal/store/sqlite"
)

func TestDelta(t *testing.T) {
	assert.Equal(t, model.MetricsDelta{Conversations: 1, Messages: 1, Bajo: 1}, Delta(model.RiskBajo, model.DecisionRespond))
	assert.Equal(t, model.MetricsDelta{Conversations: 1, Messages: 1, Handoffs: 1, Critico: 1}, Delta(model.RiskCritico, model.DecisionHandoff))
	assert.Equal(t, model.MetricsDelta{Conversations: 1, Messages: 1, Triage: 1, Medio: 1}, Delta(model.RiskMedio, model.DecisionTriage))
}

func TestAggregator_RecordAndDay(t *testing.T) {
	db, err := sqlite.Open(sqlite.MemoryPath)
	require.NoError(t, err)
	defer func() { _ = db.Close() }()
	ctx := context.Background()
	require.NoError(t, sqlite.EnsureSchema(ctx, db))

	a := New(sqlite.NewWithDB(db).Metrics())
	a.now = func() time.Time { return time.Date(2026, 5, 4, 23, 59, 0, 0, time.UTC) }

	got, err := a.Day(ctx, "2026-05-04")
	require.NoError(t, err)
	require.Nil(t, got)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			level, decision := model.RiskBajo, model.DecisionRespond
			if i%2 == 0 {
				level, decision = model.RiskAlto, model.DecisionHandoff
			}
			assert.NoError(t, a.Record(ctx, level, decision))
		}(i)
	}
	wg.Wait()

	got, err = a.Day(ctx, a.Today())
	require.NoError(t, err)
	require.Equal(t, int64(10), got.TotalConversations)
	require.Equal(t, int64(10), got.TotalMessages)
	require.Equal(t, int64(5), got.TotalHandoffs)
	require.Equal(t, int64(0), got.TotalTriage)
	require.Equal(t, int64(5), got.RiskBajo)
	require.Equal(t, int64(5), got.RiskAlto)

	_, err = a.Day(ctx, "04/05/2026")
	require.ErrorIs(t, err, model.ErrValidation)
}
