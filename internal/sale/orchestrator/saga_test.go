package orchestrator

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/storefront-labs/storefront/internal/sale/journal"
)

type spyStep struct {
	name          string
	executeErr    error
	compensateErr error
	log           *[]string
}

func (s *spyStep) Name() string { return s.name }

func (s *spyStep) Execute(ctx context.Context) error {
	*s.log = append(*s.log, "execute "+s.name)
	return s.executeErr
}

func (s *spyStep) Compensate(ctx context.Context) error {
	*s.log = append(*s.log, "compensate "+s.name)
	return s.compensateErr
}

type memJournal struct {
	entries []*journal.Entry
	err     error
}

func (m *memJournal) Record(ctx context.Context, e *journal.Entry) error {
	if m.err != nil {
		return m.err
	}
	m.entries = append(m.entries, e)
	return nil
}

func (m *memJournal) statuses() []journal.Status {
	out := make([]journal.Status, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, e.Status)
	}
	return out
}

func statusesEqual(got, want []journal.Status) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

func TestSagaHappyPath(t *testing.T) {
	var log []string
	rec := &memJournal{}
	saga := NewSaga("attempt-1", []Step{
		&spyStep{name: "first", log: &log},
		&spyStep{name: "second", log: &log},
	}, `{"k":"v"}`, rec)

	if err := saga.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	want := []string{"execute first", "execute second"}
	if strings.Join(log, ",") != strings.Join(want, ",") {
		t.Errorf("call order = %v, want %v", log, want)
	}
	wantStatuses := []journal.Status{
		journal.StatusStarted,
		journal.StatusStepDone,
		journal.StatusStepDone,
		journal.StatusCompleted,
	}
	if !statusesEqual(rec.statuses(), wantStatuses) {
		t.Errorf("journal statuses = %v, want %v", rec.statuses(), wantStatuses)
	}
	if rec.entries[0].Payload != `{"k":"v"}` {
		t.Errorf("STARTED payload = %q", rec.entries[0].Payload)
	}
}

func TestSagaCompensatesInReverseOrder(t *testing.T) {
	var log []string
	boom := errors.New("boom")
	rec := &memJournal{}
	saga := NewSaga("attempt-2", []Step{
		&spyStep{name: "first", log: &log},
		&spyStep{name: "second", log: &log},
		&spyStep{name: "third", executeErr: boom, log: &log},
	}, "", rec)

	err := saga.Start(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}

	want := []string{
		"execute first",
		"execute second",
		"execute third",
		"compensate second",
		"compensate first",
	}
	if strings.Join(log, ",") != strings.Join(want, ",") {
		t.Errorf("call order = %v, want %v", log, want)
	}
	wantStatuses := []journal.Status{
		journal.StatusStarted,
		journal.StatusStepDone,
		journal.StatusStepDone,
		journal.StatusCompensating,
		journal.StatusFailed,
	}
	if !statusesEqual(rec.statuses(), wantStatuses) {
		t.Errorf("journal statuses = %v, want %v", rec.statuses(), wantStatuses)
	}
}

func TestSagaFirstStepFailureCompensatesNothing(t *testing.T) {
	var log []string
	boom := errors.New("boom")
	saga := NewSaga("attempt-3", []Step{
		&spyStep{name: "first", executeErr: boom, log: &log},
		&spyStep{name: "second", log: &log},
	}, "", nil)

	if err := saga.Start(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	if len(log) != 1 || log[0] != "execute first" {
		t.Errorf("call log = %v, want only [execute first]", log)
	}
}

func TestSagaReturnsOriginalErrorWhenCompensationFails(t *testing.T) {
	var log []string
	boom := errors.New("boom")
	rec := &memJournal{}
	saga := NewSaga("attempt-4", []Step{
		&spyStep{name: "first", compensateErr: errors.New("undo failed"), log: &log},
		&spyStep{name: "second", executeErr: boom, log: &log},
	}, "", rec)

	err := saga.Start(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want the step error, not the compensation error", err)
	}

	// The failed compensation is preserved in the FAILED entry for an
	// operator to reconcile.
	last := rec.entries[len(rec.entries)-1]
	if last.Status != journal.StatusFailed {
		t.Fatalf("last status = %v, want FAILED", last.Status)
	}
	if !strings.Contains(last.ErrorMessages, "compensation of first failed") {
		t.Errorf("FAILED entry errors = %s, want a compensation failure record", last.ErrorMessages)
	}
}

func TestSagaDeadContextStopsBeforeExecute(t *testing.T) {
	var log []string
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	saga := NewSaga("attempt-5", []Step{
		&spyStep{name: "first", log: &log},
	}, "", nil)

	if err := saga.Start(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if len(log) != 0 {
		t.Errorf("call log = %v, want empty", log)
	}
}

func TestSagaJournalFailureDoesNotFailSaga(t *testing.T) {
	var log []string
	rec := &memJournal{err: errors.New("journal down")}
	saga := NewSaga("attempt-6", []Step{
		&spyStep{name: "first", log: &log},
	}, "", rec)

	if err := saga.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if len(log) != 1 {
		t.Errorf("call log = %v, want one execute", log)
	}
}
