package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/storefront-labs/storefront/internal/sale/journal"
)

func openTestRecorder(t *testing.T) *Recorder {
	t.Helper()
	rec, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { rec.Close() })
	return rec
}

func TestRecordAndGetLatest(t *testing.T) {
	rec := openTestRecorder(t)
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	entries := []*journal.Entry{
		{AttemptID: "a-1", Status: journal.StatusStarted, Payload: `{"good_id":3}`, ErrorMessages: "[]", RecordedAt: base},
		{AttemptID: "a-1", Status: journal.StatusStepDone, CurrentStep: "Decrement_Stock_Step", ErrorMessages: "[]", RecordedAt: base.Add(time.Second)},
		{AttemptID: "a-1", Status: journal.StatusCompleted, ErrorMessages: "[]", RecordedAt: base.Add(2 * time.Second)},
	}
	for _, e := range entries {
		if err := rec.Record(ctx, e); err != nil {
			t.Fatalf("Record(%s): %v", e.Status, err)
		}
	}

	latest, err := rec.GetLatest(ctx, "a-1")
	if err != nil {
		t.Fatalf("GetLatest: %v", err)
	}
	if latest.Status != journal.StatusCompleted {
		t.Errorf("latest status = %s, want COMPLETED", latest.Status)
	}
	if !latest.RecordedAt.Equal(base.Add(2 * time.Second)) {
		t.Errorf("latest recorded_at = %v, want %v", latest.RecordedAt, base.Add(2*time.Second))
	}
}

func TestGetLatestUnknownAttempt(t *testing.T) {
	rec := openTestRecorder(t)

	_, err := rec.GetLatest(context.Background(), "no-such-attempt")
	if !errors.Is(err, journal.ErrNotFound) {
		t.Fatalf("GetLatest on unknown attempt: err = %v, want ErrNotFound", err)
	}
}

func TestRecordPreservesFailureDetails(t *testing.T) {
	rec := openTestRecorder(t)
	ctx := context.Background()

	entry := &journal.Entry{
		AttemptID:     "a-2",
		Status:        journal.StatusFailed,
		CurrentStep:   "Debit_Account_Step",
		ErrorMessages: `["step Debit_Account_Step failed: timeout"]`,
		TraceID:       "0af7651916cd43dd8448eb211c80319c",
		SpanID:        "b7ad6b7169203331",
		RecordedAt:    time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	if err := rec.Record(ctx, entry); err != nil {
		t.Fatalf("Record: %v", err)
	}

	got, err := rec.GetLatest(ctx, "a-2")
	if err != nil {
		t.Fatalf("GetLatest: %v", err)
	}
	if got.ErrorMessages != entry.ErrorMessages {
		t.Errorf("error messages = %s, want %s", got.ErrorMessages, entry.ErrorMessages)
	}
	if got.TraceID != entry.TraceID || got.SpanID != entry.SpanID {
		t.Errorf("trace = %s/%s, want %s/%s", got.TraceID, got.SpanID, entry.TraceID, entry.SpanID)
	}
}

func TestEntriesForSeparateAttemptsDoNotMix(t *testing.T) {
	rec := openTestRecorder(t)
	ctx := context.Background()
	now := time.Now().UTC()

	if err := rec.Record(ctx, &journal.Entry{AttemptID: "a-3", Status: journal.StatusStarted, ErrorMessages: "[]", RecordedAt: now}); err != nil {
		t.Fatal(err)
	}
	if err := rec.Record(ctx, &journal.Entry{AttemptID: "a-4", Status: journal.StatusFailed, ErrorMessages: "[]", RecordedAt: now}); err != nil {
		t.Fatal(err)
	}

	got, err := rec.GetLatest(ctx, "a-3")
	if err != nil {
		t.Fatalf("GetLatest: %v", err)
	}
	if got.Status != journal.StatusStarted {
		t.Errorf("a-3 status = %s, want STARTED", got.Status)
	}
}
