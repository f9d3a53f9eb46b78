// Package ratelimit admits chat requests with a fixed window per client.
package ratelimit

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/marzetti/salon-assistant/internal/model"
	"github.com/marzetti/salon-assistant/internal/store"
)

// RetryAfter is the delay suggested to rejected clients.
const RetryAfter = 60 * time.Second

// Limiter counts attempts per identifier in the store. Rejected attempts
// still count toward the window.
type Limiter struct {
	windows store.RateLimits
	limit   int
	window  time.Duration
	log     zerolog.Logger
	now     func() time.Time
}

func New(windows store.RateLimits, limit int, window time.Duration, log zerolog.Logger) *Limiter {
	return &Limiter{windows: windows, limit: limit, window: window, log: log, now: model.Now}
}

// Admit records an attempt for identifier and reports whether it is within
// the limit. The limit-th attempt in a window is admitted, the next one is
// not. A store failure admits the request.
func (l *Limiter) Admit(ctx context.Context, identifier string) bool {
	if identifier == "" {
		identifier = "unknown"
	}
	count, err := l.windows.Hit(ctx, identifier, l.now(), l.window)
	if err != nil {
		l.log.Warn().Err(err).Str("identifier", identifier).Msg("rate limit store unavailable; admitting")
		return true
	}
	return count <= l.limit
}
