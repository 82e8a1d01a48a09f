// Package sqlitedb opens the SQLite database each service owns its table in.
//
// WAL mode is enabled on Open so that readers never block writers and vice
// versa — important because request handlers read while mutations are being
// applied concurrently.
package sqlitedb

import (
	"database/sql"
	"fmt"
	"time"

	// Register the pure-Go SQLite driver.
	// We use modernc.org/sqlite instead of mattn/go-sqlite3 to avoid CGO
	// requirements, making it easier to build and run in Docker (Alpine).
	_ "modernc.org/sqlite"
)

// Open opens (or creates) the SQLite database at the given path and applies
// the supplied schema DDL. The DDL must be idempotent (IF NOT EXISTS).
func Open(path, schema string) (*sql.DB, error) {
	// The pure-Go driver uses _pragma query parameters to configure connection
	// state. WAL enables concurrent readers. busy_timeout waits for locks
	// instead of failing immediately.
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(on)&_pragma=busy_timeout(5000)", path)

	// Use "sqlite", not "sqlite3" for the modernc driver.
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %q: %w", path, err)
	}

	// SQLite performs best with a single writer connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: apply schema: %w", err)
	}

	return db, nil
}

// OpenMemory opens a fresh in-memory database, used by store tests.
func OpenMemory(schema string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", "file::memory:?_pragma=foreign_keys(on)")
	if err != nil {
		return nil, fmt.Errorf("sqlite: open memory db: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: apply schema: %w", err)
	}
	return db, nil
}

// FormatTime renders a timestamp the way it is stored: RFC3339 TEXT, UTC.
// SQLite has no native datetime type.
func FormatTime(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.999999999Z")
}

// ParseTime parses the timestamp strings stored in SQLite.
func ParseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("sqlite: parse time %q: %w", s, err)
	}
	return t, nil
}

// NullableString returns nil for empty strings so SQLite stores NULL instead
// of an empty TEXT.
func NullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
