package embeddings

import (
	"context"
	"errors"

	"github.com/marzetti/salon-assistant/internal/health"
)

// EmbeddingProvider produces vector representations for text.
type EmbeddingProvider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Probe returns the health probe for p: its own HealthPing when it has
// one, otherwise a throwaway embedding.
func Probe(p EmbeddingProvider) health.PingFunc {
	if pinger, ok := p.(health.HealthPinger); ok {
		return pinger.HealthPing
	}
	return func(ctx context.Context) error {
		vec, err := p.Embed(ctx, "health-check")
		if err != nil {
			return err
		}
		if len(vec) == 0 {
			return errors.New("embedder returned an empty vector")
		}
		return nil
	}
}
