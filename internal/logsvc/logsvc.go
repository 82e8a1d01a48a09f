// Package logsvc owns the append-only audit log the other services fan
// their mutation records into. Entries are timestamped here, on arrival,
// so the log's ordering does not depend on the senders' clocks.
package logsvc

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/storefront-labs/storefront/internal/pkg/sqlitedb"
)

// ErrEmptyMessage rejects blank audit lines.
var ErrEmptyMessage = errors.New("logsvc: message is required")

const schema = `
CREATE TABLE IF NOT EXISTS logs (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    message     TEXT NOT NULL,
    created_at  TEXT NOT NULL
);
`

// Entry is one audit line.
type Entry struct {
	ID        int64
	Message   string
	CreatedAt time.Time
}

// Store is the SQLite-backed logs table.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the logs database at the given path.
func Open(path string) (*Store, error) {
	db, err := sqlitedb.Open(path, schema)
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// OpenMemory opens a fresh in-memory store, used by tests.
func OpenMemory() (*Store, error) {
	db, err := sqlitedb.OpenMemory(schema)
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Append writes one entry. Nothing ever updates or deletes a row.
func (s *Store) Append(ctx context.Context, message string, at time.Time) (Entry, error) {
	if message == "" {
		return Entry{}, ErrEmptyMessage
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO logs (message, created_at) VALUES (?, ?)`,
		message, sqlitedb.FormatTime(at))
	if err != nil {
		return Entry{}, fmt.Errorf("logsvc: append: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Entry{}, fmt.Errorf("logsvc: append: %w", err)
	}
	return Entry{ID: id, Message: message, CreatedAt: at}, nil
}

// List returns all entries, oldest first.
func (s *Store) List(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, message, created_at FROM logs ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("logsvc: list: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var created string
		if err := rows.Scan(&e.ID, &e.Message, &created); err != nil {
			return nil, fmt.Errorf("logsvc: scan: %w", err)
		}
		e.CreatedAt, err = sqlitedb.ParseTime(created)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
