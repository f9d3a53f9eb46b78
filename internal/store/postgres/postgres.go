package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/marzetti/salon-assistant/internal/model"
	"github.com/marzetti/salon-assistant/internal/store"
)

// Open opens a PostgreSQL connection using the pgx stdlib driver and verifies connectivity.
func Open(dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres DSN is empty")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// NewWithDB constructs a native Postgres store backed directly by database/sql.
func NewWithDB(db *sql.DB) store.Store { return &pgStore{db: db} }

type pgStore struct{ db *sql.DB }

func (s *pgStore) Conversations() store.Conversations { return &conversations{db: s.db} }
func (s *pgStore) RateLimits() store.RateLimits       { return &rateLimits{db: s.db} }
func (s *pgStore) Metrics() store.Metrics             { return &metrics{db: s.db} }
func (s *pgStore) Meta() store.Meta                   { return &meta{db: s.db} }

// DB exposes the connection so the pgvector index can share it.
func (s *pgStore) DB() *sql.DB { return s.db }

// HealthPing implements health.HealthPinger for Postgres-backed store.
func (s *pgStore) HealthPing(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// --- Conversations ---
type conversations struct{ db *sql.DB }

func (c *conversations) Load(ctx context.Context, conversationID string) (*model.Conversation, error) {
	out := model.Conversation{ConversationID: conversationID}
	row := c.db.QueryRowContext(ctx, `
        SELECT created_at, last_updated FROM conversations WHERE conversation_id=$1
    `, conversationID)
	if err := row.Scan(&out.CreatedAt, &out.LastUpdated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		return nil, err
	}
	out.CreatedAt = out.CreatedAt.UTC()
	out.LastUpdated = out.LastUpdated.UTC()

	rows, err := c.db.QueryContext(ctx, `
        SELECT id, role, content, timestamp, metadata
        FROM messages WHERE conversation_id=$1
        ORDER BY timestamp ASC, seq ASC
    `, conversationID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	out.Messages = []model.Message{}
	for rows.Next() {
		var m model.Message
		var role string
		var raw []byte
		if err := rows.Scan(&m.ID, &role, &m.Content, &m.Timestamp, &raw); err != nil {
			return nil, err
		}
		m.Role = model.Role(role)
		m.Timestamp = m.Timestamp.UTC()
		if len(raw) > 0 && string(raw) != "{}" {
			if err := json.Unmarshal(raw, &m.Metadata); err != nil {
				return nil, fmt.Errorf("decode metadata of message %s: %w", m.ID, err)
			}
		}
		out.Messages = append(out.Messages, m)
	}
	return &out, rows.Err()
}

func (c *conversations) Save(ctx context.Context, conv *model.Conversation) error {
	return saveHeader(ctx, c.db, conv)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func saveHeader(ctx context.Context, db execer, conv *model.Conversation) error {
	_, err := db.ExecContext(ctx, `
        INSERT INTO conversations (conversation_id, created_at, last_updated)
        VALUES ($1,$2,$3)
        ON CONFLICT (conversation_id) DO UPDATE SET last_updated = EXCLUDED.last_updated
    `, conv.ConversationID, conv.CreatedAt, conv.LastUpdated)
	return err
}

func (c *conversations) AppendMessage(ctx context.Context, conv *model.Conversation, m model.Message) (*model.Conversation, error) {
	updated := conv.WithMessage(m)
	meta, err := encodeMetadata(m.Metadata)
	if err != nil {
		return nil, err
	}

	tx, err := c.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	if err := saveHeader(ctx, tx, updated); err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, `
        INSERT INTO messages (id, conversation_id, role, content, timestamp, metadata)
        VALUES ($1,$2,$3,$4,$5,$6)
    `, m.ID, conv.ConversationID, string(m.Role), m.Content, m.Timestamp, meta); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return updated, nil
}

func encodeMetadata(m map[string]interface{}) (string, error) {
	if len(m) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	return string(b), err
}

// --- Rate limits ---
type rateLimits struct{ db *sql.DB }

const hitSQL = `
INSERT INTO rate_limits (identifier, window_start, count)
VALUES ($1, $2, 1)
ON CONFLICT (identifier) DO UPDATE SET
    count = CASE WHEN rate_limits.window_start < $3 THEN 1 ELSE rate_limits.count + 1 END,
    window_start = CASE WHEN rate_limits.window_start < $3 THEN EXCLUDED.window_start ELSE rate_limits.window_start END
RETURNING count`

func (r *rateLimits) Hit(ctx context.Context, identifier string, now time.Time, window time.Duration) (int, error) {
	var count int
	cutoff := now.Add(-window)
	if err := r.db.QueryRowContext(ctx, hitSQL, identifier, now, cutoff).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// --- Metrics ---
type metrics struct{ db *sql.DB }

const incrementSQL = `
INSERT INTO metrics_daily (day, total_conversations, total_messages, total_handoffs, total_triage,
    risk_bajo, risk_medio, risk_alto, risk_critico)
VALUES ($1::date,$2,$3,$4,$5,$6,$7,$8,$9)
ON CONFLICT (day) DO UPDATE SET
    total_conversations = metrics_daily.total_conversations + EXCLUDED.total_conversations,
    total_messages = metrics_daily.total_messages + EXCLUDED.total_messages,
    total_handoffs = metrics_daily.total_handoffs + EXCLUDED.total_handoffs,
    total_triage = metrics_daily.total_triage + EXCLUDED.total_triage,
    risk_bajo = metrics_daily.risk_bajo + EXCLUDED.risk_bajo,
    risk_medio = metrics_daily.risk_medio + EXCLUDED.risk_medio,
    risk_alto = metrics_daily.risk_alto + EXCLUDED.risk_alto,
    risk_critico = metrics_daily.risk_critico + EXCLUDED.risk_critico`

func (m *metrics) Increment(ctx context.Context, day string, d model.MetricsDelta) error {
	_, err := m.db.ExecContext(ctx, incrementSQL, day,
		d.Conversations, d.Messages, d.Handoffs, d.Triage, d.Bajo, d.Medio, d.Alto, d.Critico)
	return err
}

func (m *metrics) Get(ctx context.Context, day string) (*model.DailyMetrics, error) {
	out := model.DailyMetrics{Day: day}
	row := m.db.QueryRowContext(ctx, `
        SELECT total_conversations, total_messages, total_handoffs, total_triage,
               risk_bajo, risk_medio, risk_alto, risk_critico
        FROM metrics_daily WHERE day=$1::date
    `, day)
	err := row.Scan(&out.TotalConversations, &out.TotalMessages, &out.TotalHandoffs, &out.TotalTriage,
		&out.RiskBajo, &out.RiskMedio, &out.RiskAlto, &out.RiskCritico)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// --- rag_meta ---
type meta struct{ db *sql.DB }

func (k *meta) Put(ctx context.Context, key, value string) error {
	_, err := k.db.ExecContext(ctx, `
        INSERT INTO rag_meta (key, value) VALUES ($1,$2)
        ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value
    `, key, value)
	return err
}

func (k *meta) Get(ctx context.Context, key string) (string, error) {
	var v string
	err := k.db.QueryRowContext(ctx, `SELECT value FROM rag_meta WHERE key=$1`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", model.ErrNotFound
	}
	return v, err
}
