package factory

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/marzetti/salon-assistant/internal/config"
	emb "github.com/marzetti/salon-assistant/internal/embeddings"
	"github.com/marzetti/salon-assistant/internal/knowledge"
	"github.com/marzetti/salon-assistant/internal/knowledge/chromem"
	"github.com/marzetti/salon-assistant/internal/knowledge/pgvector"
	"github.com/marzetti/salon-assistant/internal/localstate"
)

// NewKnowledgeIndex returns the vector index for cfg.VectorStore. pgvector
// shares the store's Postgres connection.
func NewKnowledgeIndex(ctx context.Context, cfg *config.Config, backend *Backend, embedder emb.EmbeddingProvider, log zerolog.Logger) (knowledge.Index, error) {
	var idx knowledge.Index
	switch cfg.VectorStore {
	case "pgvector":
		if cfg.DBDriver != "postgres" {
			return nil, fmt.Errorf("VECTOR_STORE=pgvector requires DB_DRIVER=postgres")
		}
		idx = pgvector.New(backend.DB)
	case "chromem":
		path, err := localstate.Resolve(cfg.ChromemPath, localstate.ChromemPath)
		if err != nil {
			return nil, err
		}
		if path == localstate.MemoryPath {
			path = ""
		}
		c, err := chromem.New(path, embedder)
		if err != nil {
			return nil, err
		}
		idx = c
	default:
		return nil, fmt.Errorf("unknown VECTOR_STORE: %s", cfg.VectorStore)
	}

	if n, err := idx.Count(ctx); err != nil {
		log.Warn().Err(err).Str("vector_store", cfg.VectorStore).Msg("knowledge index count failed")
	} else if n == 0 {
		log.Warn().Str("vector_store", cfg.VectorStore).Msg("knowledge index is empty; run kbctl ingest")
	} else {
		log.Info().Str("vector_store", cfg.VectorStore).Int("chunks", n).Msg("knowledge index ready")
	}
	return idx, nil
}
