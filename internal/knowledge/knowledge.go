// Package knowledge defines the vector index holding the salon's
// knowledge-base chunks.
package knowledge

import (
	"context"
	"fmt"

	"github.com/marzetti/salon-assistant/internal/model"
)

// Index stores knowledge chunks and answers nearest-neighbour queries.
type Index interface {
	// Upsert inserts or replaces the chunk with the same id.
	Upsert(ctx context.Context, chunk model.KnowledgeChunk) error
	// Search returns at most limit chunks matching f, most similar first.
	Search(ctx context.Context, vec []float32, f Filter, limit int) ([]model.ScoredChunk, error)
	Count(ctx context.Context) (int, error)
}

// Filter is a disjunction of metadata predicates: a chunk matches when its
// categoria is in Categories or when any of its tags is in Tags. The zero
// Filter matches every chunk.
type Filter struct {
	Categories []string
	Tags       []string
}

// IsEmpty reports whether f matches everything.
func (f Filter) IsEmpty() bool { return len(f.Categories) == 0 && len(f.Tags) == 0 }

// Matches evaluates f against chunk metadata.
func (f Filter) Matches(meta map[string]interface{}) bool {
	if f.IsEmpty() {
		return true
	}
	cat, _ := meta[CategoryKey].(string)
	for _, c := range f.Categories {
		if c == cat {
			return true
		}
	}
	for _, tag := range Tags(meta) {
		for _, want := range f.Tags {
			if tag == want {
				return true
			}
		}
	}
	return false
}

func (f Filter) String() string {
	if f.IsEmpty() {
		return "*"
	}
	return fmt.Sprintf("categoria in %v or tags in %v", f.Categories, f.Tags)
}

// Metadata keys understood by every index.
const (
	CategoryKey = "categoria"
	TagsKey     = "tags"
	SourceIDKey = "source_id"
)

// Tags returns the string tags stored under TagsKey, accepting both
// []string and the []interface{} produced by JSON decoding.
func Tags(meta map[string]interface{}) []string {
	switch v := meta[TagsKey].(type) {
	case []string:
		return v
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, t := range v {
			if s, ok := t.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// ClampScore keeps similarity scores within [0,1].
func ClampScore(s float64) float64 {
	switch {
	case s < 0:
		return 0
	case s > 1:
		return 1
	}
	return s
}

// Reindexer is implemented by indexes that need maintenance after bulk loads.
type Reindexer interface {
	Reindex(ctx context.Context) error
}
