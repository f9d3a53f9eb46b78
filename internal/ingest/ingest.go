// Package ingest loads the salon knowledge base from disk into the
// knowledge index.
package ingest

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/marzetti/salon-assistant/internal/embeddings"
	"github.com/marzetti/salon-assistant/internal/knowledge"
	"github.com/marzetti/salon-assistant/internal/model"
	"github.com/marzetti/salon-assistant/internal/store"
)

// Bookkeeping keys written to the meta table after a run.
const (
	VersionKey   = "kb_version"
	UpdatedAtKey = "kb_updated_at"
)

// DefaultConcurrency bounds in-flight embedding calls.
const DefaultConcurrency = 4

// Ingester embeds collected chunks and upserts them into the index.
type Ingester struct {
	embedder     embeddings.EmbeddingProvider
	index        knowledge.Index
	meta         store.Meta
	log          zerolog.Logger
	concurrency  int
	embedTimeout time.Duration
	now          func() time.Time
}

// Option customises an Ingester.
type Option func(*Ingester)

// WithConcurrency sets the number of chunks embedded at once.
func WithConcurrency(n int) Option {
	return func(i *Ingester) {
		if n > 0 {
			i.concurrency = n
		}
	}
}

// WithEmbedTimeout bounds every embedding call.
func WithEmbedTimeout(d time.Duration) Option {
	return func(i *Ingester) { i.embedTimeout = d }
}

func New(embedder embeddings.EmbeddingProvider, index knowledge.Index, meta store.Meta, log zerolog.Logger, opts ...Option) *Ingester {
	i := &Ingester{
		embedder:    embedder,
		index:       index,
		meta:        meta,
		log:         log.With().Str("component", "ingest").Logger(),
		concurrency: DefaultConcurrency,
		now:         time.Now,
	}
	for _, o := range opts {
		o(i)
	}
	return i
}

// Run ingests every knowledge file under root and returns the number of
// chunks written. The first embedding or upsert failure aborts the run;
// chunks already written stay in the index and the version marker is not
// bumped.
func (i *Ingester) Run(ctx context.Context, root string) (int, error) {
	chunks, err := Collect(root)
	if err != nil {
		return 0, err
	}
	i.log.Info().Str("root", root).Int("chunks", len(chunks)).Msg("knowledge files collected")

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(i.concurrency)
	for _, c := range chunks {
		g.Go(func() error {
			return i.put(gctx, c)
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	if r, ok := i.index.(knowledge.Reindexer); ok && len(chunks) > 0 {
		if err := r.Reindex(ctx); err != nil {
			// search still works, only with a stale index layout
			i.log.Warn().Err(err).Msg("reindex after ingestion failed")
		}
	}

	now := i.now().UTC()
	if err := i.meta.Put(ctx, VersionKey, strconv.FormatInt(now.UnixMilli(), 10)); err != nil {
		return len(chunks), fmt.Errorf("write %s: %w", VersionKey, err)
	}
	if err := i.meta.Put(ctx, UpdatedAtKey, now.Format(time.RFC3339)); err != nil {
		return len(chunks), fmt.Errorf("write %s: %w", UpdatedAtKey, err)
	}
	i.log.Info().Int("chunks", len(chunks)).Time("updated_at", now).Msg("knowledge base ingested")
	return len(chunks), nil
}

func (i *Ingester) put(ctx context.Context, c model.KnowledgeChunk) error {
	embedCtx := ctx
	if i.embedTimeout > 0 {
		var cancel context.CancelFunc
		embedCtx, cancel = context.WithTimeout(ctx, i.embedTimeout)
		defer cancel()
	}
	vec, err := i.embedder.Embed(embedCtx, c.Text)
	if err != nil {
		return fmt.Errorf("embed chunk %s: %w", c.ID, err)
	}
	if len(vec) == 0 {
		return fmt.Errorf("embed chunk %s: empty vector", c.ID)
	}
	c.Embedding = vec
	if err := i.index.Upsert(ctx, c); err != nil {
		return fmt.Errorf("upsert chunk %s: %w", c.ID, err)
	}
	return nil
}
