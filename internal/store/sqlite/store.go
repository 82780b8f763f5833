// Package sqlite persists warm-start checkpoints for a runner session:
// the ring's most recent candles plus the last computed Indicator Bank
// outputs, keyed by a caller-chosen run ID (typically symbol+interval).
// It implements model.SnapshotStore as a narrow persistence port —
// single-writer connection pool, WAL mode, schema created on open.
package sqlite

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Store is a single-writer SQLite-backed model.SnapshotStore.
type Store struct {
	db  *sql.DB
	log *slog.Logger
}

// Open opens (creating if needed) a SQLite database at path and ensures the
// snapshot schema exists.
func Open(path string, log *slog.Logger) (*Store, error) {
	if log == nil {
		log = slog.Default()
	}
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS snapshots (
			run_id     TEXT    NOT NULL,
			data       BLOB    NOT NULL,
			created_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_snapshots_run_id_created_at
			ON snapshots(run_id, created_at DESC);
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	log.Info("sqlite: opened checkpoint store", slog.String("path", path))
	return &Store{db: db, log: log}, nil
}

// SaveSnapshotJSON persists a JSON-encoded engine snapshot for runID.
func (s *Store) SaveSnapshotJSON(runID string, data []byte) error {
	_, err := s.db.Exec(
		`INSERT INTO snapshots (run_id, data, created_at) VALUES (?, ?, ?)`,
		runID, data, time.Now().UTC().Unix(),
	)
	if err != nil {
		return fmt.Errorf("sqlite save snapshot: %w", err)
	}
	return nil
}

// ReadLatestSnapshotJSON loads the most recent snapshot for runID. Returns
// nil, nil if none exists yet.
func (s *Store) ReadLatestSnapshotJSON(runID string) ([]byte, error) {
	var data []byte
	err := s.db.QueryRow(
		`SELECT data FROM snapshots WHERE run_id = ? ORDER BY created_at DESC, rowid DESC LIMIT 1`,
		runID,
	).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite read snapshot: %w", err)
	}
	return data, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
