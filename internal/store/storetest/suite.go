package storetest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/marzetti/salon-assistant/internal/model"
	"github.com/marzetti/salon-assistant/internal/store"
)

// Run exercises a compliance suite against a store.Store implementation.
// Implementations should provide a clean, isolated store and return it from makeStore.
// Identifiers are randomised so the suite can also run against a shared database.
func Run(t *testing.T, makeStore func(t *testing.T) store.Store) {
	t.Helper()

	t.Run("Conversations", func(t *testing.T) { runConversations(t, makeStore(t)) })
	t.Run("RateLimits", func(t *testing.T) { runRateLimits(t, makeStore(t)) })
	t.Run("Metrics", func(t *testing.T) { runMetrics(t, makeStore(t)) })
	t.Run("Meta", func(t *testing.T) { runMeta(t, makeStore(t)) })
}

func runConversations(t *testing.T, s store.Store) {
	ctx := context.Background()
	id := "conv-" + uuid.New().String()

	_, err := s.Conversations().Load(ctx, id)
	if !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("Load missing: want ErrNotFound, got %v", err)
	}

	conv := model.NewConversation(id)
	require.NoError(t, s.Conversations().Save(ctx, conv))
	// saving twice must not fail nor change created_at
	require.NoError(t, s.Conversations().Save(ctx, conv))

	got, err := s.Conversations().Load(ctx, id)
	require.NoError(t, err)
	require.True(t, got.CreatedAt.Equal(conv.CreatedAt), "created_at changed: %v vs %v", got.CreatedAt, conv.CreatedAt)
	require.Empty(t, got.Messages)

	// Append alternating turns; two of them share a timestamp and must keep insertion order.
	base := model.Now()
	var want []model.Message
	for i := 0; i < 6; i++ {
		role := model.RoleUser
		if i%2 == 1 {
			role = model.RoleAssistant
		}
		ts := base.Add(time.Duration(i) * time.Millisecond)
		if i == 3 {
			ts = want[2].Timestamp
		}
		m := model.Message{
			ID:        uuid.New().String(),
			Role:      role,
			Content:   fmt.Sprintf("mensaje %d", i),
			Timestamp: ts,
		}
		if role == model.RoleAssistant {
			m.Metadata = map[string]interface{}{"decision": "respond", "risk_level": "bajo"}
		}
		conv, err = s.Conversations().AppendMessage(ctx, conv, m)
		require.NoError(t, err)
		want = append(want, m)
	}
	require.Len(t, conv.Messages, len(want))

	got, err = s.Conversations().Load(ctx, id)
	require.NoError(t, err)
	require.Len(t, got.Messages, len(want))
	for i := range want {
		require.Equal(t, want[i].ID, got.Messages[i].ID, "order at %d", i)
		require.Equal(t, want[i].Role, got.Messages[i].Role)
		require.Equal(t, want[i].Content, got.Messages[i].Content)
		require.True(t, want[i].Timestamp.Equal(got.Messages[i].Timestamp), "timestamp at %d", i)
		if want[i].Metadata != nil {
			require.Equal(t, "respond", got.Messages[i].Metadata["decision"])
		}
		require.False(t, got.LastUpdated.Before(got.Messages[i].Timestamp), "last_updated precedes message %d", i)
	}
	require.True(t, got.CreatedAt.Equal(conv.CreatedAt))
}

func runRateLimits(t *testing.T, s store.Store) {
	ctx := context.Background()
	id := "ip-" + uuid.New().String()
	window := time.Hour
	now := model.Now()

	for i := 1; i <= 5; i++ {
		n, err := s.RateLimits().Hit(ctx, id, now.Add(time.Duration(i)*time.Second), window)
		require.NoError(t, err)
		require.Equal(t, i, n)
	}

	// once the window has elapsed the counter starts over
	n, err := s.RateLimits().Hit(ctx, id, now.Add(window+time.Minute), window)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	n, err = s.RateLimits().Hit(ctx, id, now.Add(window+2*time.Minute), window)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	// identifiers are independent
	n, err = s.RateLimits().Hit(ctx, id+"-other", now, window)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	// concurrent hits never lose an increment
	cid := "ip-" + uuid.New().String()
	const workers = 12
	counts := make([]int, workers)
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c, err := s.RateLimits().Hit(ctx, cid, now, window)
			if err != nil {
				errs <- err
				return
			}
			counts[i] = c
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent Hit: %v", err)
	}
	sort.Ints(counts)
	for i, c := range counts {
		require.Equal(t, i+1, c)
	}
}

func runMetrics(t *testing.T, s store.Store) {
	ctx := context.Background()
	day := model.Now().Format(model.DayFormat)

	before, err := s.Metrics().Get(ctx, day)
	if errors.Is(err, model.ErrNotFound) {
		before = &model.DailyMetrics{Day: day}
	} else {
		require.NoError(t, err)
	}

	require.NoError(t, s.Metrics().Increment(ctx, day, model.MetricsDelta{Conversations: 1, Messages: 1, Handoffs: 1, Critico: 1}))
	require.NoError(t, s.Metrics().Increment(ctx, day, model.MetricsDelta{Conversations: 1, Messages: 1, Triage: 1, Medio: 1}))
	require.NoError(t, s.Metrics().Increment(ctx, day, model.MetricsDelta{Conversations: 1, Messages: 1, Bajo: 1}))

	after, err := s.Metrics().Get(ctx, day)
	require.NoError(t, err)
	require.Equal(t, day, after.Day)
	require.Equal(t, before.TotalConversations+3, after.TotalConversations)
	require.Equal(t, before.TotalMessages+3, after.TotalMessages)
	require.Equal(t, before.TotalHandoffs+1, after.TotalHandoffs)
	require.Equal(t, before.TotalTriage+1, after.TotalTriage)
	require.Equal(t, before.RiskBajo+1, after.RiskBajo)
	require.Equal(t, before.RiskMedio+1, after.RiskMedio)
	require.Equal(t, before.RiskAlto, after.RiskAlto)
	require.Equal(t, before.RiskCritico+1, after.RiskCritico)

	_, err = s.Metrics().Get(ctx, "1999-01-01")
	require.ErrorIs(t, err, model.ErrNotFound)
}

func runMeta(t *testing.T, s store.Store) {
	ctx := context.Background()
	key := "k-" + uuid.New().String()

	_, err := s.Meta().Get(ctx, key)
	require.ErrorIs(t, err, model.ErrNotFound)

	require.NoError(t, s.Meta().Put(ctx, key, "1"))
	require.NoError(t, s.Meta().Put(ctx, key, "2"))
	v, err := s.Meta().Get(ctx, key)
	require.NoError(t, err)
	require.Equal(t, "2", v)
}
