package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

// schemaStatements creates every table the assistant reads or writes,
// including the pgvector-backed knowledge chunks. All statements are idempotent.
func schemaStatements(dimensions int) []string {
	return []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS kb_chunks (
            id TEXT PRIMARY KEY,
            text TEXT NOT NULL,
            embedding vector(%d) NOT NULL,
            metadata JSONB NOT NULL DEFAULT '{}',
            created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
            updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
        )`, dimensions),
		`CREATE TABLE IF NOT EXISTS rag_meta (
            key TEXT PRIMARY KEY,
            value TEXT NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS conversations (
            conversation_id TEXT PRIMARY KEY,
            created_at TIMESTAMP WITH TIME ZONE NOT NULL,
            last_updated TIMESTAMP WITH TIME ZONE NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS messages (
            id TEXT PRIMARY KEY,
            seq BIGSERIAL,
            conversation_id TEXT NOT NULL REFERENCES conversations(conversation_id) ON DELETE CASCADE,
            role TEXT NOT NULL,
            content TEXT NOT NULL,
            timestamp TIMESTAMP WITH TIME ZONE NOT NULL,
            metadata JSONB NOT NULL DEFAULT '{}'
        )`,
		`CREATE TABLE IF NOT EXISTS rate_limits (
            identifier TEXT PRIMARY KEY,
            window_start TIMESTAMP WITH TIME ZONE NOT NULL,
            count INTEGER NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS metrics_daily (
            day DATE PRIMARY KEY,
            total_conversations INTEGER NOT NULL DEFAULT 0,
            total_messages INTEGER NOT NULL DEFAULT 0,
            total_handoffs INTEGER NOT NULL DEFAULT 0,
            total_triage INTEGER NOT NULL DEFAULT 0,
            risk_bajo INTEGER NOT NULL DEFAULT 0,
            risk_medio INTEGER NOT NULL DEFAULT 0,
            risk_alto INTEGER NOT NULL DEFAULT 0,
            risk_critico INTEGER NOT NULL DEFAULT 0
        )`,
		// hnsw needs no training pass, so it stays valid while chunks are upserted one by one.
		`DROP INDEX IF EXISTS kb_chunks_embedding_idx`, // ivfflat index of earlier schemas
		`CREATE INDEX IF NOT EXISTS kb_chunks_embedding_hnsw_idx
            ON kb_chunks USING hnsw (embedding vector_cosine_ops)`,
		`CREATE INDEX IF NOT EXISTS messages_conversation_idx ON messages (conversation_id, timestamp)`,
	}
}

// EnsureSchema creates the tables if they do not exist.
func EnsureSchema(ctx context.Context, db *sql.DB, dimensions int) error {
	if dimensions <= 0 {
		return fmt.Errorf("embedding dimensions must be positive, got %d", dimensions)
	}
	for _, stmt := range schemaStatements(dimensions) {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("postgres schema: %w", err)
		}
	}
	return nil
}
