// Package chromem implements knowledge.Index with an in-process chromem-go
// collection, used by the local build target.
package chromem

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/philippgille/chromem-go"

	"github.com/marzetti/salon-assistant/internal/embeddings"
	"github.com/marzetti/salon-assistant/internal/knowledge"
	"github.com/marzetti/salon-assistant/internal/model"
)

// CollectionName is the collection holding knowledge chunks.
const CollectionName = "kb_chunks"

const (
	payloadKey = "payload"
	tagPrefix  = "tag:"
)

// Index wraps a chromem collection.
type Index struct {
	db         *chromem.DB
	collection *chromem.Collection
}

// New opens the index. An empty path keeps everything in memory; otherwise
// the collection is persisted under path. The embedder is only used if a
// document is added without a vector.
func New(path string, embedder embeddings.EmbeddingProvider) (*Index, error) {
	var (
		db  *chromem.DB
		err error
	)
	if path == "" {
		db = chromem.NewDB()
	} else {
		db, err = chromem.NewPersistentDB(path, false)
		if err != nil {
			return nil, fmt.Errorf("open chromem db: %w", err)
		}
	}
	var ef chromem.EmbeddingFunc
	if embedder != nil {
		ef = embedder.Embed
	}
	collection, err := db.GetOrCreateCollection(CollectionName, nil, ef)
	if err != nil {
		return nil, fmt.Errorf("failed to create collection: %w", err)
	}
	return &Index{db: db, collection: collection}, nil
}

func (i *Index) Upsert(ctx context.Context, c model.KnowledgeChunk) error {
	if len(c.Embedding) == 0 {
		return fmt.Errorf("chunk %s has no embedding", c.ID)
	}
	meta, err := flatten(c.Metadata)
	if err != nil {
		return err
	}
	return i.collection.AddDocument(ctx, chromem.Document{
		ID:        c.ID,
		Content:   c.Text,
		Embedding: c.Embedding,
		Metadata:  meta,
	})
}

// flatten turns the open metadata map into chromem's string map: categoria
// and one tag:<name> key per tag are kept as filterable fields, and the full
// payload travels as JSON.
func flatten(meta map[string]interface{}) (map[string]string, error) {
	out := map[string]string{}
	if len(meta) == 0 {
		return out, nil
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		return nil, err
	}
	out[payloadKey] = string(raw)
	if cat, ok := meta[knowledge.CategoryKey].(string); ok {
		out[knowledge.CategoryKey] = cat
	}
	for _, tag := range knowledge.Tags(meta) {
		out[tagPrefix+tag] = "true"
	}
	return out, nil
}

// Search runs one query per filter alternative and merges the results.
// chromem where-clauses are conjunctive exact matches, so a disjunction
// needs separate queries.
func (i *Index) Search(ctx context.Context, vec []float32, f knowledge.Filter, limit int) ([]model.ScoredChunk, error) {
	if limit <= 0 {
		return []model.ScoredChunk{}, nil
	}
	var wheres []map[string]string
	if f.IsEmpty() {
		wheres = append(wheres, nil)
	}
	for _, c := range f.Categories {
		wheres = append(wheres, map[string]string{knowledge.CategoryKey: c})
	}
	for _, tag := range f.Tags {
		wheres = append(wheres, map[string]string{tagPrefix + tag: "true"})
	}

	n := limit
	if total := i.collection.Count(); total < n {
		n = total
	}
	if n == 0 {
		return []model.ScoredChunk{}, nil
	}

	seen := map[string]bool{}
	out := []model.ScoredChunk{}
	for _, where := range wheres {
		results, err := i.collection.QueryEmbedding(ctx, vec, n, where, nil)
		if err != nil {
			return nil, fmt.Errorf("chromem query: %w", err)
		}
		for _, r := range results {
			if seen[r.ID] {
				continue
			}
			seen[r.ID] = true
			out = append(out, toScored(r))
		}
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].Score > out[b].Score })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func toScored(r chromem.Result) model.ScoredChunk {
	c := model.ScoredChunk{
		ID:    r.ID,
		Text:  r.Content,
		Score: knowledge.ClampScore((float64(r.Similarity) + 1) / 2),
	}
	if raw, ok := r.Metadata[payloadKey]; ok {
		_ = json.Unmarshal([]byte(raw), &c.Payload)
	}
	if c.Payload == nil {
		c.Payload = map[string]interface{}{}
	}
	return c
}

func (i *Index) Count(context.Context) (int, error) {
	return i.collection.Count(), nil
}

// HealthPing implements health.HealthPinger. The index is in-process, so
// it is healthy whenever the collection is open.
func (i *Index) HealthPing(context.Context) error {
	if i.collection == nil {
		return fmt.Errorf("chromem collection not initialized")
	}
	return nil
}
