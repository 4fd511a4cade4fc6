// Package postgres backs the session store with a single
// conversation_contexts table, one row per user, history as JSONB.
// Staleness is enforced in SQL both lazily on read and by Sweep.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/teamply/intent-resolver/internal/core/domain"
)

type Store struct {
	db  *sql.DB
	now func() time.Time
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across concurrent instance startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026082901)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS conversation_contexts (
	user_id BIGINT PRIMARY KEY,
	last_action TEXT NOT NULL DEFAULT '',
	pending_clarification JSONB,
	history JSONB NOT NULL DEFAULT '[]',
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_conversation_contexts_updated_at
	ON conversation_contexts (updated_at);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return tx.Commit()
}

func (s *Store) staleCutoff() time.Time {
	return s.now().Add(-domain.ContextTTL)
}

// Get deletes a stale row first, then reads; an expired context is
// never returned.
func (s *Store) Get(ctx context.Context, userID int64) (*domain.ConversationContext, error) {
	if _, err := s.db.ExecContext(ctx, `
DELETE FROM conversation_contexts WHERE user_id = $1 AND updated_at < $2
`, userID, s.staleCutoff()); err != nil {
		return nil, fmt.Errorf("evict stale context: %w", err)
	}

	row := s.db.QueryRowContext(ctx, `
SELECT user_id, last_action, pending_clarification, history, updated_at
FROM conversation_contexts
WHERE user_id = $1
`, userID)
	conversation, err := scanContext(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrContextNotFound
		}
		return nil, fmt.Errorf("get context: %w", err)
	}
	return conversation, nil
}

func (s *Store) Set(ctx context.Context, conversation *domain.ConversationContext) error {
	bounded := *conversation
	bounded.History = append([]domain.ChatMessage(nil), conversation.History...)
	for i := range bounded.History {
		bounded.History[i].Content = domain.TruncateContent(bounded.History[i].Content)
	}
	bounded.CapHistory()

	historyJSON, err := json.Marshal(bounded.History)
	if err != nil {
		return fmt.Errorf("marshal history: %w", err)
	}
	var pendingJSON any
	if bounded.Pending != nil {
		raw, err := json.Marshal(bounded.Pending)
		if err != nil {
			return fmt.Errorf("marshal pending clarification: %w", err)
		}
		pendingJSON = raw
	}

	if _, err := s.db.ExecContext(ctx, `
INSERT INTO conversation_contexts (user_id, last_action, pending_clarification, history, updated_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (user_id) DO UPDATE SET
	last_action = EXCLUDED.last_action,
	pending_clarification = EXCLUDED.pending_clarification,
	history = EXCLUDED.history,
	updated_at = EXCLUDED.updated_at
`, bounded.UserID, bounded.LastAction, pendingJSON, historyJSON, s.now()); err != nil {
		return fmt.Errorf("set context: %w", err)
	}
	return nil
}

func (s *Store) AppendMessage(ctx context.Context, userID int64, role, content string) error {
	row := s.db.QueryRowContext(ctx, `
SELECT user_id, last_action, pending_clarification, history, updated_at
FROM conversation_contexts
WHERE user_id = $1 AND updated_at >= $2
`, userID, s.staleCutoff())
	conversation, err := scanContext(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return fmt.Errorf("append message load: %w", err)
	}

	conversation.History = append(conversation.History, domain.ChatMessage{
		Role:      role,
		Content:   domain.TruncateContent(content),
		Timestamp: s.now(),
	})
	return s.Set(ctx, conversation)
}

func (s *Store) Clear(ctx context.Context, userID int64) error {
	if _, err := s.db.ExecContext(ctx, `
DELETE FROM conversation_contexts WHERE user_id = $1
`, userID); err != nil {
		return fmt.Errorf("clear context: %w", err)
	}
	return nil
}

func (s *Store) Stats(ctx context.Context) (domain.SessionStats, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT COUNT(*), MIN(updated_at), MAX(updated_at)
FROM conversation_contexts
`)
	var (
		stats  domain.SessionStats
		oldest sql.NullTime
		newest sql.NullTime
	)
	if err := row.Scan(&stats.TotalContexts, &oldest, &newest); err != nil {
		return domain.SessionStats{}, fmt.Errorf("stats: %w", err)
	}
	if oldest.Valid {
		stats.Oldest = &oldest.Time
	}
	if newest.Valid {
		stats.Newest = &newest.Time
	}
	return stats, nil
}

// Sweep evicts every stale row and reports how many went away.
func (s *Store) Sweep(ctx context.Context) (int, error) {
	result, err := s.db.ExecContext(ctx, `
DELETE FROM conversation_contexts WHERE updated_at < $1
`, s.staleCutoff())
	if err != nil {
		return 0, fmt.Errorf("sweep contexts: %w", err)
	}
	evicted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sweep rows affected: %w", err)
	}
	return int(evicted), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanContext(row rowScanner) (*domain.ConversationContext, error) {
	var (
		conversation domain.ConversationContext
		pendingRaw   []byte
		historyRaw   []byte
	)
	if err := row.Scan(
		&conversation.UserID,
		&conversation.LastAction,
		&pendingRaw,
		&historyRaw,
		&conversation.Timestamp,
	); err != nil {
		return nil, err
	}

	if len(historyRaw) > 0 {
		if err := json.Unmarshal(historyRaw, &conversation.History); err != nil {
			return nil, fmt.Errorf("unmarshal history: %w", err)
		}
	}
	if len(pendingRaw) > 0 {
		conversation.Pending = &domain.PendingClarification{}
		if err := json.Unmarshal(pendingRaw, conversation.Pending); err != nil {
			return nil, fmt.Errorf("unmarshal pending clarification: %w", err)
		}
	}
	return &conversation, nil
}
