// Package history keeps a SQLite journal of tunnel lifecycle events.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/yllada/wg-manager/common"
)

const schema = `
CREATE TABLE IF NOT EXISTS events (
	seq     INTEGER PRIMARY KEY AUTOINCREMENT,
	id      TEXT NOT NULL,
	time    TEXT NOT NULL,
	tunnel  TEXT NOT NULL,
	action  TEXT NOT NULL,
	success INTEGER NOT NULL,
	message TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS events_tunnel ON events (tunnel);
`

// Store implements common.EventRecorder on a SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open history %s: %w", path, err)
	}
	// One writer at a time keeps SQLite from reporting SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate history %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

// Record appends an event.
func (s *Store) Record(e common.Event) error {
	_, err := s.db.Exec(
		`INSERT INTO events (id, time, tunnel, action, success, message) VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID, e.Time.UTC().Format(time.RFC3339Nano), e.Tunnel, e.Action, e.Success, e.Message,
	)
	if err != nil {
		return fmt.Errorf("record %s event for %s: %w", e.Action, e.Tunnel, err)
	}
	return nil
}

// Recent returns up to limit events, newest first. An empty tunnel matches
// every tunnel.
func (s *Store) Recent(ctx context.Context, tunnel string, limit int) ([]common.Event, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `SELECT id, time, tunnel, action, success, message FROM events`
	args := []any{}
	if tunnel != "" {
		query += ` WHERE tunnel = ?`
		args = append(args, tunnel)
	}
	query += ` ORDER BY seq DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var events []common.Event
	for rows.Next() {
		var (
			e  common.Event
			ts string
		)
		if err := rows.Scan(&e.ID, &ts, &e.Tunnel, &e.Action, &e.Success, &e.Message); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		if e.Time, err = time.Parse(time.RFC3339Nano, ts); err != nil {
			return nil, fmt.Errorf("history row %s: bad time %q: %w", e.ID, ts, err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
