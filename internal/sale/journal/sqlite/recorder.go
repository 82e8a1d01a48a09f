// Package sqlite provides a SQLite-backed implementation of journal.Recorder.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/storefront-labs/storefront/internal/pkg/sqlitedb"
	"github.com/storefront-labs/storefront/internal/sale/journal"
)

// The table is append-only: each row is an immutable event in an attempt's
// lifecycle. Querying MAX(recorded_at) per attempt_id gives the current state.
const schema = `
CREATE TABLE IF NOT EXISTS purchase_journal (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    attempt_id      TEXT        NOT NULL,
    status          TEXT        NOT NULL,
    current_step    TEXT        NOT NULL DEFAULT '',
    payload         TEXT,
    error_messages  TEXT        NOT NULL DEFAULT '[]',
    trace_id        TEXT        NOT NULL DEFAULT '',
    span_id         TEXT        NOT NULL DEFAULT '',
    recorded_at     TEXT        NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_purchase_journal_attempt_id ON purchase_journal(attempt_id, recorded_at);
CREATE INDEX IF NOT EXISTS idx_purchase_journal_trace_id ON purchase_journal(trace_id);
`

// Recorder is the SQLite implementation of journal.Recorder.
type Recorder struct {
	db *sql.DB
}

// Open opens (or creates) the journal database at the given path.
func Open(path string) (*Recorder, error) {
	db, err := sqlitedb.Open(path, schema)
	if err != nil {
		return nil, err
	}
	return &Recorder{db: db}, nil
}

// OpenMemory opens a fresh in-memory journal, used by tests.
func OpenMemory() (*Recorder, error) {
	db, err := sqlitedb.OpenMemory(schema)
	if err != nil {
		return nil, err
	}
	return &Recorder{db: db}, nil
}

// NewRecorder wraps an existing database handle; used by tests.
func NewRecorder(db *sql.DB) *Recorder {
	return &Recorder{db: db}
}

// Close releases the database connection. Call it with defer in main().
func (r *Recorder) Close() error {
	return r.db.Close()
}

// Record inserts a new journal entry. It is safe to call concurrently.
func (r *Recorder) Record(ctx context.Context, entry *journal.Entry) error {
	const q = `
		INSERT INTO purchase_journal
			(attempt_id, status, current_step, payload, error_messages, trace_id, span_id, recorded_at)
		VALUES
			(?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, q,
		entry.AttemptID,
		string(entry.Status),
		entry.CurrentStep,
		sqlitedb.NullableString(entry.Payload),
		entry.ErrorMessages,
		entry.TraceID,
		entry.SpanID,
		sqlitedb.FormatTime(entry.RecordedAt),
	)
	if err != nil {
		return fmt.Errorf("journal: record entry for %q: %w", entry.AttemptID, err)
	}
	return nil
}

// GetLatest returns the most recent entry for a given attempt ID.
func (r *Recorder) GetLatest(ctx context.Context, attemptID string) (*journal.Entry, error) {
	const q = `
		SELECT attempt_id, status, current_step, COALESCE(payload,''), error_messages,
		       trace_id, span_id, recorded_at
		FROM   purchase_journal
		WHERE  attempt_id = ?
		ORDER  BY recorded_at DESC, id DESC
		LIMIT  1`

	row := r.db.QueryRowContext(ctx, q, attemptID)

	var entry journal.Entry
	var recordedAt string
	err := row.Scan(
		&entry.AttemptID,
		&entry.Status,
		&entry.CurrentStep,
		&entry.Payload,
		&entry.ErrorMessages,
		&entry.TraceID,
		&entry.SpanID,
		&recordedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("journal: attempt %q: %w", attemptID, journal.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("journal: get latest for %q: %w", attemptID, err)
	}

	entry.RecordedAt, err = sqlitedb.ParseTime(recordedAt)
	if err != nil {
		return nil, err
	}

	return &entry, nil
}
