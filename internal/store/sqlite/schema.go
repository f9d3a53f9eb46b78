package sqlite

import (
	"context"
	"database/sql"
	"fmt"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS rag_meta (
        key TEXT PRIMARY KEY,
        value TEXT NOT NULL
    )`,
	`CREATE TABLE IF NOT EXISTS conversations (
        conversation_id TEXT PRIMARY KEY,
        created_at INTEGER NOT NULL,
        last_updated INTEGER NOT NULL
    )`,
	`CREATE TABLE IF NOT EXISTS messages (
        id TEXT PRIMARY KEY,
        conversation_id TEXT NOT NULL REFERENCES conversations(conversation_id) ON DELETE CASCADE,
        role TEXT NOT NULL,
        content TEXT NOT NULL,
        timestamp INTEGER NOT NULL,
        metadata TEXT NOT NULL DEFAULT '{}'
    )`,
	`CREATE INDEX IF NOT EXISTS messages_conversation_idx ON messages (conversation_id, timestamp)`,
	`CREATE TABLE IF NOT EXISTS rate_limits (
        identifier TEXT PRIMARY KEY,
        window_start INTEGER NOT NULL,
        count INTEGER NOT NULL
    )`,
	`CREATE TABLE IF NOT EXISTS metrics_daily (
        day TEXT PRIMARY KEY,
        total_conversations INTEGER NOT NULL DEFAULT 0,
        total_messages INTEGER NOT NULL DEFAULT 0,
        total_handoffs INTEGER NOT NULL DEFAULT 0,
        total_triage INTEGER NOT NULL DEFAULT 0,
        risk_bajo INTEGER NOT NULL DEFAULT 0,
        risk_medio INTEGER NOT NULL DEFAULT 0,
        risk_alto INTEGER NOT NULL DEFAULT 0,
        risk_critico INTEGER NOT NULL DEFAULT 0
    )`,
}

// EnsureSchema creates the tables if they do not exist.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("sqlite schema: %w", err)
		}
	}
	return nil
}
