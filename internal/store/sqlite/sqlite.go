package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/marzetti/salon-assistant/internal/model"
	"github.com/marzetti/salon-assistant/internal/store"
)

// NewWithDB wraps an open database. The schema must already exist.
func NewWithDB(db *sql.DB) store.Store { return &sqliteStore{db: db} }

type sqliteStore struct{ db *sql.DB }

func (s *sqliteStore) Conversations() store.Conversations { return &conversations{db: s.db} }
func (s *sqliteStore) RateLimits() store.RateLimits       { return &rateLimits{db: s.db} }
func (s *sqliteStore) Metrics() store.Metrics             { return &metrics{db: s.db} }
func (s *sqliteStore) Meta() store.Meta                   { return &meta{db: s.db} }

// HealthPing implements health.HealthPinger.
func (s *sqliteStore) HealthPing(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Timestamps are stored as unix nanoseconds.
func toUnix(t time.Time) int64 { return t.UTC().UnixNano() }

func fromUnix(n int64) time.Time { return time.Unix(0, n).UTC() }

// --- Conversations ---
type conversations struct{ db *sql.DB }

func (c *conversations) Load(ctx context.Context, conversationID string) (*model.Conversation, error) {
	var created, updated int64
	err := c.db.QueryRowContext(ctx,
		`SELECT created_at, last_updated FROM conversations WHERE conversation_id=?`, conversationID).
		Scan(&created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	out := &model.Conversation{
		ConversationID: conversationID,
		CreatedAt:      fromUnix(created),
		LastUpdated:    fromUnix(updated),
		Messages:       []model.Message{},
	}

	rows, err := c.db.QueryContext(ctx, `
        SELECT id, role, content, timestamp, metadata FROM messages
        WHERE conversation_id=? ORDER BY timestamp ASC, rowid ASC`, conversationID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var m model.Message
		var role, raw string
		var ts int64
		if err := rows.Scan(&m.ID, &role, &m.Content, &ts, &raw); err != nil {
			return nil, err
		}
		m.Role = model.Role(role)
		m.Timestamp = fromUnix(ts)
		if raw != "" && raw != "{}" {
			if err := json.Unmarshal([]byte(raw), &m.Metadata); err != nil {
				return nil, fmt.Errorf("decode metadata of message %s: %w", m.ID, err)
			}
		}
		out.Messages = append(out.Messages, m)
	}
	return out, rows.Err()
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func saveHeader(ctx context.Context, db execer, conv *model.Conversation) error {
	_, err := db.ExecContext(ctx, `
        INSERT INTO conversations (conversation_id, created_at, last_updated) VALUES (?,?,?)
        ON CONFLICT(conversation_id) DO UPDATE SET last_updated=excluded.last_updated`,
		conv.ConversationID, toUnix(conv.CreatedAt), toUnix(conv.LastUpdated))
	return err
}

func (c *conversations) Save(ctx context.Context, conv *model.Conversation) error {
	return saveHeader(ctx, c.db, conv)
}

func (c *conversations) AppendMessage(ctx context.Context, conv *model.Conversation, m model.Message) (*model.Conversation, error) {
	updated := conv.WithMessage(m)
	meta := "{}"
	if len(m.Metadata) > 0 {
		b, err := json.Marshal(m.Metadata)
		if err != nil {
			return nil, err
		}
		meta = string(b)
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	if err := saveHeader(ctx, tx, updated); err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, `
        INSERT INTO messages (id, conversation_id, role, content, timestamp, metadata) VALUES (?,?,?,?,?,?)`,
		m.ID, conv.ConversationID, string(m.Role), m.Content, toUnix(m.Timestamp), meta); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return updated, nil
}

// --- Rate limits ---
type rateLimits struct{ db *sql.DB }

const hitSQL = `
INSERT INTO rate_limits (identifier, window_start, count) VALUES (?1, ?2, 1)
ON CONFLICT(identifier) DO UPDATE SET
    count = CASE WHEN rate_limits.window_start < ?3 THEN 1 ELSE rate_limits.count + 1 END,
    window_start = CASE WHEN rate_limits.window_start < ?3 THEN excluded.window_start ELSE rate_limits.window_start END
RETURNING count`

func (r *rateLimits) Hit(ctx context.Context, identifier string, now time.Time, window time.Duration) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, hitSQL, identifier, toUnix(now), toUnix(now.Add(-window))).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

// --- Metrics ---
type metrics struct{ db *sql.DB }

const incrementSQL = `
INSERT INTO metrics_daily (day, total_conversations, total_messages, total_handoffs, total_triage,
    risk_bajo, risk_medio, risk_alto, risk_critico)
VALUES (?,?,?,?,?,?,?,?,?)
ON CONFLICT(day) DO UPDATE SET
    total_conversations = total_conversations + excluded.total_conversations,
    total_messages = total_messages + excluded.total_messages,
    total_handoffs = total_handoffs + excluded.total_handoffs,
    total_triage = total_triage + excluded.total_triage,
    risk_bajo = risk_bajo + excluded.risk_bajo,
    risk_medio = risk_medio + excluded.risk_medio,
    risk_alto = risk_alto + excluded.risk_alto,
    risk_critico = risk_critico + excluded.risk_critico`

func (m *metrics) Increment(ctx context.Context, day string, d model.MetricsDelta) error {
	_, err := m.db.ExecContext(ctx, incrementSQL, day,
		d.Conversations, d.Messages, d.Handoffs, d.Triage, d.Bajo, d.Medio, d.Alto, d.Critico)
	return err
}

func (m *metrics) Get(ctx context.Context, day string) (*model.DailyMetrics, error) {
	out := model.DailyMetrics{Day: day}
	err := m.db.QueryRowContext(ctx, `
        SELECT total_conversations, total_messages, total_handoffs, total_triage,
               risk_bajo, risk_medio, risk_alto, risk_critico
        FROM metrics_daily WHERE day=?`, day).
		Scan(&out.TotalConversations, &out.TotalMessages, &out.TotalHandoffs, &out.TotalTriage,
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
        INSERT INTO rag_meta (key, value) VALUES (?,?)
        ON CONFLICT(key) DO UPDATE SET value=excluded.value`, key, value)
	return err
}

func (k *meta) Get(ctx context.Context, key string) (string, error) {
	var v string
	err := k.db.QueryRowContext(ctx, `SELECT value FROM rag_meta WHERE key=?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", model.ErrNotFound
	}
	return v, err
}
