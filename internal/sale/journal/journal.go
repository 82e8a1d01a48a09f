// Package journal defines the append-only audit trail of purchase attempts.
//
// Every state transition a purchase saga goes through is recorded as a row.
// It serves two purposes:
//
//  1. Observability: the table shows exactly where an attempt is (or was)
//     and correlates with a distributed trace via the trace_id field.
//
//  2. Reconciliation: when a compensation itself fails, the journal is the
//     record an operator works from to restore consistency by hand.
package journal

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// ErrNotFound is returned by journal reads for an unknown attempt ID.
var ErrNotFound = errors.New("attempt not found")

// Status represents the lifecycle state of a purchase attempt.
type Status string

const (
	StatusStarted      Status = "STARTED"
	StatusStepDone     Status = "STEP_DONE"
	StatusCompleted    Status = "COMPLETED"
	StatusCompensating Status = "COMPENSATING"
	StatusFailed       Status = "FAILED"
)

// Entry is a single row in the purchase_journal table: a point-in-time
// snapshot of one attempt.
type Entry struct {
	// AttemptID identifies the purchase attempt. It doubles as the sale ID
	// on success so the journal can be joined with the ledger.
	AttemptID string

	// Status is the lifecycle state at the time this row was written.
	Status Status

	// CurrentStep is the name of the step that was just executed or failed.
	CurrentStep string

	// Payload is the JSON-serialised input that started the attempt.
	// Written once on STARTED, empty after.
	Payload string

	// ErrorMessages accumulates failure details, one per failed step or
	// failed compensation, stored as a JSON array of strings.
	ErrorMessages string

	// TraceID and SpanID are the W3C identifiers of the OpenTelemetry span
	// active when this entry was written, so a journal row can be jumped to
	// directly from (or to) the full distributed trace.
	TraceID string
	SpanID  string

	// RecordedAt is the wall-clock time of this entry.
	RecordedAt time.Time
}

// Recorder is the port for persisting journal entries. The orchestrator
// depends on this abstraction, not on SQLite directly.
type Recorder interface {
	// Record persists a new entry. Each call appends a row; the table is an
	// append-only log, not an upsert.
	Record(ctx context.Context, entry *Entry) error
}

// NewEntry builds an Entry with trace info extracted from ctx. If the context
// carries no active span (e.g. in unit tests), the trace fields stay empty.
func NewEntry(ctx context.Context, attemptID string, status Status, currentStep, payload string, errs []string) *Entry {
	sc := trace.SpanFromContext(ctx).SpanContext()

	traceID, spanID := "", ""
	if sc.IsValid() {
		traceID = sc.TraceID().String()
		spanID = sc.SpanID().String()
	}

	errJSON := "[]"
	if len(errs) > 0 {
		if b, err := json.Marshal(errs); err == nil {
			errJSON = string(b)
		}
	}

	return &Entry{
		AttemptID:     attemptID,
		Status:        status,
		CurrentStep:   currentStep,
		Payload:       payload,
		ErrorMessages: errJSON,
		TraceID:       traceID,
		SpanID:        spanID,
		RecordedAt:    time.Now().UTC(),
	}
}
