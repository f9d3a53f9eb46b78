// Package retrieval finds knowledge chunks relevant to a chat message.
package retrieval

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/marzetti/salon-assistant/internal/embeddings"
	"github.com/marzetti/salon-assistant/internal/knowledge"
	"github.com/marzetti/salon-assistant/internal/model"
)

// DefaultLimit is the number of chunks used as answer context.
const DefaultLimit = 5

// FilterFor selects the metadata predicate for intent. Intents without a
// dedicated category search the whole store.
func FilterFor(intent model.IntentName) knowledge.Filter {
	switch intent {
	case model.IntentPrecio:
		return knowledge.Filter{Categories: []string{"precios"}}
	case model.IntentAgenda:
		return knowledge.Filter{Tags: []string{"turnos", "agenda"}}
	case model.IntentCurso:
		return knowledge.Filter{Categories: []string{"curso", "cursos"}}
	case model.IntentProducto:
		return knowledge.Filter{Categories: []string{"producto", "productos"}}
	case model.IntentUbicacion:
		return knowledge.Filter{Categories: []string{"ubicacion"}}
	case model.IntentTransformacion, model.IntentQuimica:
		return knowledge.Filter{Categories: []string{"politica"}}
	default:
		return knowledge.Filter{}
	}
}

// Retriever embeds a query and searches the knowledge index.
type Retriever struct {
	embedder embeddings.EmbeddingProvider
	index    knowledge.Index
	limit    int
	timeout  time.Duration
}

func New(embedder embeddings.EmbeddingProvider, index knowledge.Index, limit int, timeout time.Duration) *Retriever {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Retriever{embedder: embedder, index: index, limit: limit, timeout: timeout}
}

// Retrieve returns at most the configured number of chunks, most similar
// first. Embedding or search failures are returned as errors.
func (r *Retriever) Retrieve(ctx context.Context, query string, intent model.IntentName) ([]model.ScoredChunk, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	filter := FilterFor(intent)
	chunks, err := r.index.Search(ctx, vec, filter, r.limit)
	if err != nil {
		return nil, fmt.Errorf("search knowledge (%s): %w", filter, err)
	}
	if len(chunks) > r.limit {
		chunks = chunks[:r.limit]
	}
	return chunks, nil
}

// ContextText joins chunk texts into the answerer's context block.
func ContextText(chunks []model.ScoredChunk) string {
	parts := make([]string, 0, len(chunks))
	for _, c := range chunks {
		if t := strings.TrimSpace(c.Text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, "\n\n")
}
