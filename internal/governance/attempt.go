// Package governance classifies intent, scores risk and writes triage
// questions. Every model-backed step has a deterministic fallback that
// cannot fail.
package governance

import (
	"context"
	"time"
)

// Attempt is the outcome of a call to an external capability: either a
// Value or a Fault.
type Attempt[T any] struct {
	Value T
	Fault error
}

// OK reports whether the attempt produced a value.
func (a Attempt[T]) OK() bool { return a.Fault == nil }

// Or returns the value, or the result of fallback when the attempt faulted.
func (a Attempt[T]) Or(fallback func() T) T {
	if a.Fault != nil {
		return fallback()
	}
	return a.Value
}

// Try runs call with a timeout. Expiry is reported as a fault like any
// other error.
func Try[T any](ctx context.Context, timeout time.Duration, call func(ctx context.Context) (T, error)) Attempt[T] {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	v, err := call(ctx)
	if err == nil {
		err = ctx.Err()
	}
	return Attempt[T]{Value: v, Fault: err}
}
