// Package execution records emitted strategy actions to a durable audit
// log. There is no order routing here — placing, modifying, or cancelling
// an order against an exchange is explicitly out of scope — so Journal's
// only job is to make every TradingAction a runner emits inspectable after
// the fact.
package execution

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"cryptotick/internal/model"
)

// Journal persists emitted TradingActions to SQLite for audit and replay.
type Journal struct {
	mu sync.Mutex
	db *sql.DB
}

// NewJournal opens (or creates) a SQLite journal database.
func NewJournal(dbPath string) (*Journal, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL")
	if err != nil {
		return nil, fmt.Errorf("journal open: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS actions (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		action_id   TEXT NOT NULL,
		symbol      TEXT NOT NULL,
		amount      REAL NOT NULL,
		triggered_at INTEGER NOT NULL,
		recorded_at  DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_actions_symbol ON actions(symbol);
	CREATE INDEX IF NOT EXISTS idx_actions_triggered_at ON actions(triggered_at);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("journal schema: %w", err)
	}

	return &Journal{db: db}, nil
}

// Record persists one emitted TradingAction. Pass results (no action) are
// never recorded — there is nothing to audit.
func (j *Journal) Record(a model.TradingAction) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	_, err := j.db.Exec(
		`INSERT INTO actions (action_id, symbol, amount, triggered_at) VALUES (?, ?, ?, ?)`,
		a.ID, a.Symbol, a.Amount, a.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("journal record: %w", err)
	}
	return nil
}

// ActionRecord is a row read back from the journal.
type ActionRecord struct {
	ID          int64     `json:"id"`
	ActionID    string    `json:"action_id"`
	Symbol      string    `json:"symbol"`
	Amount      float64   `json:"amount"`
	TriggeredAt int64     `json:"triggered_at"`
	RecordedAt  time.Time `json:"recorded_at"`
}

// Recent returns the last limit recorded actions, newest first.
func (j *Journal) Recent(limit int) ([]ActionRecord, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	rows, err := j.db.Query(
		`SELECT id, action_id, symbol, amount, triggered_at, recorded_at
		 FROM actions ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("journal query: %w", err)
	}
	defer rows.Close()

	var out []ActionRecord
	for rows.Next() {
		var r ActionRecord
		if err := rows.Scan(&r.ID, &r.ActionID, &r.Symbol, &r.Amount, &r.TriggeredAt, &r.RecordedAt); err != nil {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

// Close closes the journal database.
func (j *Journal) Close() error {
	return j.db.Close()
}
