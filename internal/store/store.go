package store

import (
	"context"
	"time"

	"github.com/marzetti/salon-assistant/internal/model"
)

// Store exposes persistence operations required by the assistant pipeline.
// Implementations live under internal/store/<driver>/ (postgres, sqlite).
type Store interface {
	Conversations() Conversations
	RateLimits() RateLimits
	Metrics() Metrics
	Meta() Meta
}

// Conversations is the append-only message log keyed by conversation id.
type Conversations interface {
	// Load returns model.ErrNotFound when the conversation does not exist.
	Load(ctx context.Context, conversationID string) (*model.Conversation, error)
	// Save upserts the conversation header; on conflict only last_updated changes.
	Save(ctx context.Context, c *model.Conversation) error
	// AppendMessage persists m and the advanced header, returning the new state.
	// The conversation must already have been saved.
	AppendMessage(ctx context.Context, c *model.Conversation, m model.Message) (*model.Conversation, error)
}

// RateLimits holds one fixed window per client identifier.
type RateLimits interface {
	// Hit records an attempt at now and returns the window count after it.
	// A window that started more than window ago is reset to 1. The update
	// is a single conditional upsert, so concurrent hits never lose counts.
	Hit(ctx context.Context, identifier string, now time.Time, window time.Duration) (int, error)
}

// Metrics stores the per-day counters.
type Metrics interface {
	Increment(ctx context.Context, day string, d model.MetricsDelta) error
	// Get returns model.ErrNotFound when no row exists for day.
	Get(ctx context.Context, day string) (*model.DailyMetrics, error)
}

// Meta is the key-value table used for ingestion bookkeeping.
type Meta interface {
	Put(ctx context.Context, key, value string) error
	// Get returns model.ErrNotFound for unknown keys.
	Get(ctx context.Context, key string) (string, error)
}
