package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/compliance/internal/core/escalation"
	"github.com/example/compliance/internal/ports/primary"
	"github.com/example/compliance/internal/ports/secondary"
)

// DefaultMaxWriteAttempts bounds optimistic write retries per enrollment.
const DefaultMaxWriteAttempts = 3

// transitionFunc computes the next record from the freshest stored one.
type transitionFunc func(current escalation.Record) (escalation.Record, []escalation.Event, error)

// stateWriter applies transitions under optimistic concurrency. On a version
// conflict it re-reads the record and re-applies the transition rather than
// overwriting the concurrent write.
type stateWriter struct {
	repo        secondary.EscalationRepository
	maxAttempts int
	logger      *slog.Logger
}

func (w *stateWriter) load(ctx context.Context, enrollmentID string, now time.Time) (escalation.Record, error) {
	stored, err := w.repo.Get(ctx, enrollmentID)
	if errors.Is(err, secondary.ErrNotFound) {
		return escalation.NewRecord(enrollmentID, now), nil
	}
	if err != nil {
		return escalation.Record{}, fmt.Errorf("failed to load escalation record: %w", err)
	}
	return stateToRecord(stored)
}

func (w *stateWriter) apply(ctx context.Context, enrollmentID string, now time.Time, runID string, fn transitionFunc) (escalation.Record, []*secondary.EscalationEventRecord, error) {
	attempts := w.maxAttempts
	if attempts <= 0 {
		attempts = DefaultMaxWriteAttempts
	}

	for attempt := 1; attempt <= attempts; attempt++ {
		current, err := w.load(ctx, enrollmentID, now)
		if err != nil {
			return escalation.Record{}, nil, err
		}

		next, events, err := fn(current)
		if err != nil {
			return current, nil, err
		}
		if err := next.CheckInvariants(); err != nil {
			return current, nil, err
		}

		state := recordToState(next)
		state.Version = current.Version
		eventRecords := eventsToRecords(events, runID)

		err = w.repo.Save(ctx, state, eventRecords)
		if errors.Is(err, secondary.ErrVersionConflict) {
			w.logger.Debug("escalation write conflict, retrying",
				"enrollment_id", enrollmentID, "attempt", attempt)
			continue
		}
		if err != nil {
			return current, nil, fmt.Errorf("failed to save escalation record: %w", err)
		}

		next.Version = state.Version
		return next, eventRecords, nil
	}

	return escalation.Record{}, nil, &primary.PersistenceConflictError{EnrollmentID: enrollmentID, Attempts: attempts}
}

// notifyAll hands transitions to the notifier. Failures never affect persisted state.
func notifyAll(ctx context.Context, notifier secondary.Notifier, logger *slog.Logger, events []*secondary.EscalationEventRecord) {
	if notifier == nil {
		return
	}
	for _, ev := range events {
		if err := notifier.Notify(ctx, ev); err != nil {
			logger.Warn("failed to deliver escalation notification",
				"enrollment_id", ev.EnrollmentID, "to_level", ev.ToLevel, "error", err)
		}
	}
}

func loggerOrDefault(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}
