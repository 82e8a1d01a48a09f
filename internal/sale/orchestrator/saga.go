package orchestrator

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/storefront-labs/storefront/internal/sale/journal"
)

// Step represents a single unit of work in the purchase saga.
// Each step must have a compensating action to undo its effects.
type Step interface {
	Name() string
	Execute(ctx context.Context) error
	Compensate(ctx context.Context) error
}

// Saga runs a collection of Steps sequentially and compensates the
// successful ones, in reverse order, when a later step fails.
//
// There is no retry loop: each step is attempted exactly once. Retries, if
// any, belong to the resource clients via idempotent request shaping.
type Saga struct {
	attemptID string
	steps     []Step
	payload   string
	journal   journal.Recorder // nil-safe: journaling skipped if nil
}

// NewSaga builds a saga for one purchase attempt. payload is the
// JSON-serialised input, written to the journal once on STARTED.
func NewSaga(attemptID string, steps []Step, payload string, rec journal.Recorder) *Saga {
	return &Saga{
		attemptID: attemptID,
		steps:     steps,
		payload:   payload,
		journal:   rec,
	}
}

// Start runs the saga steps in order. If a step fails, all previously
// successful steps are compensated (LIFO) and the step's error is returned;
// the caller still observes the original failure even when a compensation
// also fails.
func (s *Saga) Start(ctx context.Context) error {
	s.record(ctx, journal.StatusStarted, "", s.payload, nil)

	var done []Step
	for _, step := range s.steps {
		slog.InfoContext(ctx, "executing step", "attempt_id", s.attemptID, "step", step.Name())
		if err := s.execute(ctx, step); err != nil {
			slog.ErrorContext(ctx, "step failed, starting rollback",
				"attempt_id", s.attemptID, "step", step.Name(), "error", err)
			errs := []string{fmt.Sprintf("step %s failed: %v", step.Name(), err)}
			s.record(ctx, journal.StatusCompensating, step.Name(), "", errs)
			errs = append(errs, s.rollback(ctx, done)...)
			s.record(ctx, journal.StatusFailed, step.Name(), "", errs)
			return err
		}
		done = append(done, step)
		s.record(ctx, journal.StatusStepDone, step.Name(), "", nil)
	}

	s.record(ctx, journal.StatusCompleted, "", "", nil)
	return nil
}

// execute guards a step against a context that died before the call.
func (s *Saga) execute(ctx context.Context, step Step) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return step.Execute(ctx)
}

// rollback compensates the given steps in reverse order and returns the
// descriptions of any compensations that themselves failed. Those are the
// cases an operator must reconcile by hand, so they are logged as critical
// and preserved in the journal.
func (s *Saga) rollback(ctx context.Context, steps []Step) []string {
	var failures []string
	for i := len(steps) - 1; i >= 0; i-- {
		step := steps[i]
		slog.InfoContext(ctx, "compensating step", "attempt_id", s.attemptID, "step", step.Name())
		if err := step.Compensate(ctx); err != nil {
			slog.ErrorContext(ctx, "CRITICAL: failed to compensate step",
				"attempt_id", s.attemptID, "step", step.Name(), "error", err)
			failures = append(failures, fmt.Sprintf("compensation of %s failed: %v", step.Name(), err))
		}
	}
	return failures
}

func (s *Saga) record(ctx context.Context, status journal.Status, step, payload string, errs []string) {
	if s.journal == nil {
		return
	}
	entry := journal.NewEntry(ctx, s.attemptID, status, step, payload, errs)
	if err := s.journal.Record(ctx, entry); err != nil {
		slog.ErrorContext(ctx, "failed to record journal entry",
			"attempt_id", s.attemptID, "status", status, "error", err)
	}
}
