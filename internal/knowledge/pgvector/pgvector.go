// Package pgvector implements knowledge.Index on the kb_chunks table.
package pgvector

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	pgv "github.com/pgvector/pgvector-go"

	"github.com/marzetti/salon-assistant/internal/knowledge"
	"github.com/marzetti/salon-assistant/internal/model"
)

// Index reads and writes kb_chunks. The table is created by the postgres
// store schema.
type Index struct{ db *sql.DB }

func New(db *sql.DB) *Index { return &Index{db: db} }

func (i *Index) Upsert(ctx context.Context, c model.KnowledgeChunk) error {
	if len(c.Embedding) == 0 {
		return fmt.Errorf("chunk %s has no embedding", c.ID)
	}
	meta := c.Metadata
	if meta == nil {
		meta = map[string]interface{}{}
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	_, err = i.db.ExecContext(ctx, `
        INSERT INTO kb_chunks (id, text, embedding, metadata, updated_at)
        VALUES ($1,$2,$3,$4,NOW())
        ON CONFLICT (id) DO UPDATE SET
            text = EXCLUDED.text,
            embedding = EXCLUDED.embedding,
            metadata = EXCLUDED.metadata,
            updated_at = NOW()
    `, c.ID, c.Text, pgv.NewVector(c.Embedding), string(raw))
	return err
}

// filteredEfSearch is the hnsw candidate list size for filtered searches.
// The metadata predicate only sees candidates the index returned; 1000 is
// the largest value pgvector accepts.
const filteredEfSearch = 1000

// Search orders by cosine distance (<=>). Distance spans [0,2], so the
// similarity score is 1 - distance/2.
func (i *Index) Search(ctx context.Context, vec []float32, f knowledge.Filter, limit int) ([]model.ScoredChunk, error) {
	if limit <= 0 {
		return []model.ScoredChunk{}, nil
	}
	q, args := buildSearch(vec, f, limit)

	tx, err := i.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()
	if !f.IsEmpty() {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("SET LOCAL hnsw.ef_search = %d", filteredEfSearch)); err != nil {
			return nil, fmt.Errorf("widen hnsw search: %w", err)
		}
	}

	rows, err := tx.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	out := []model.ScoredChunk{}
	for rows.Next() {
		var c model.ScoredChunk
		var raw []byte
		var distance float64
		if err := rows.Scan(&c.ID, &c.Text, &raw, &distance); err != nil {
			return nil, err
		}
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &c.Payload); err != nil {
				return nil, fmt.Errorf("decode metadata of chunk %s: %w", c.ID, err)
			}
		}
		c.Score = knowledge.ClampScore(1 - distance/2)
		out = append(out, c)
	}
	return out, rows.Err()
}

func buildSearch(vec []float32, f knowledge.Filter, limit int) (string, []any) {
	args := []any{pgv.NewVector(vec)}
	var preds []string
	if len(f.Categories) > 0 {
		args = append(args, f.Categories)
		preds = append(preds, fmt.Sprintf("metadata->>'categoria' = ANY($%d)", len(args)))
	}
	if len(f.Tags) > 0 {
		args = append(args, f.Tags)
		preds = append(preds, fmt.Sprintf("metadata->'tags' ?| $%d", len(args)))
	}
	where := ""
	if len(preds) > 0 {
		where = "WHERE " + strings.Join(preds, " OR ")
	}
	args = append(args, limit)
	q := fmt.Sprintf(`
        SELECT id, text, metadata, embedding <=> $1 AS distance
        FROM kb_chunks
        %s
        ORDER BY embedding <=> $1
        LIMIT $%d`, where, len(args))
	return q, args
}

func (i *Index) Count(ctx context.Context) (int, error) {
	var n int
	err := i.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM kb_chunks`).Scan(&n)
	return n, err
}

// HealthPing implements health.HealthPinger.
func (i *Index) HealthPing(ctx context.Context) error {
	_, err := i.Count(ctx)
	return err
}

// Reindex refreshes planner statistics after a bulk load so filtered
// searches pick between the hnsw index and a plain scan on real row counts.
func (i *Index) Reindex(ctx context.Context) error {
	_, err := i.db.ExecContext(ctx, `ANALYZE kb_chunks`)
	return err
}
