// Package session persists chat sessions — one row per conversation, one
// row per turn — to Postgres via pgx, the way abdulloh5007's sessions
// store and MooArnon's database package use pgxpool: a pool handed in by
// the caller, plain SQL, RETURNING clauses instead of a second round trip.
package session

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Turn is one query/answer exchange within a session.
type Turn struct {
	ID        int64     `json:"id"`
	SessionID uuid.UUID `json:"session_id"`
	Query     string    `json:"query"`
	Answer    string    `json:"answer"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// Store is a Postgres-backed chat session store.
type Store struct {
	pool *pgxpool.Pool
}

// Open connects to databaseURL and ensures the session schema exists.
func Open(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("session: connect: %w", err)
	}
	s := &Store{pool: pool}
	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS chat_sessions (
			id         UUID PRIMARY KEY,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE TABLE IF NOT EXISTS chat_turns (
			id         BIGSERIAL PRIMARY KEY,
			session_id UUID NOT NULL REFERENCES chat_sessions(id),
			query      TEXT NOT NULL,
			answer     TEXT NOT NULL,
			status     TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE INDEX IF NOT EXISTS idx_chat_turns_session_id ON chat_turns(session_id, id);
	`)
	if err != nil {
		return fmt.Errorf("session: ensure schema: %w", err)
	}
	return nil
}

// NewSession creates a session row and returns its ID.
func (s *Store) NewSession(ctx context.Context) (uuid.UUID, error) {
	id := uuid.New()
	_, err := s.pool.Exec(ctx, `INSERT INTO chat_sessions (id) VALUES ($1)`, id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("session: create: %w", err)
	}
	return id, nil
}

// SessionExists reports whether id refers to a known session.
func (s *Store) SessionExists(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM chat_sessions WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("session: lookup: %w", err)
	}
	return exists, nil
}

// RecordTurn appends a turn to session id.
func (s *Store) RecordTurn(ctx context.Context, id uuid.UUID, query, answer, status string) (Turn, error) {
	var t Turn
	t.SessionID = id
	err := s.pool.QueryRow(ctx, `
		INSERT INTO chat_turns (session_id, query, answer, status)
		VALUES ($1, $2, $3, $4)
		RETURNING id, query, answer, status, created_at
	`, id, query, answer, status).Scan(&t.ID, &t.Query, &t.Answer, &t.Status, &t.CreatedAt)
	if err != nil {
		return Turn{}, fmt.Errorf("session: record turn: %w", err)
	}
	return t, nil
}

// History returns every turn for session id, oldest first.
func (s *Store) History(ctx context.Context, id uuid.UUID) ([]Turn, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, session_id, query, answer, status, created_at
		FROM chat_turns WHERE session_id = $1 ORDER BY id ASC
	`, id)
	if err != nil {
		return nil, fmt.Errorf("session: history: %w", err)
	}
	defer rows.Close()

	var turns []Turn
	for rows.Next() {
		var t Turn
		if err := rows.Scan(&t.ID, &t.SessionID, &t.Query, &t.Answer, &t.Status, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("session: scan: %w", err)
		}
		turns = append(turns, t)
	}
	return turns, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() {
	s.pool.Close()
}
