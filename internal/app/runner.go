package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/example/compliance/internal/core/compliance"
	"github.com/example/compliance/internal/core/escalation"
	"github.com/example/compliance/internal/ports/primary"
	"github.com/example/compliance/internal/ports/secondary"
)

// RunnerConfig tunes the batch runner.
type RunnerConfig struct {
	Workers          int
	FactTimeout      time.Duration
	MaxWriteAttempts int
	RunLease         time.Duration
	Thresholds       compliance.Policy
	Escalation       escalation.Policy
}

// DefaultRunnerConfig returns the defaults used when nothing is configured.
func DefaultRunnerConfig() RunnerConfig {
	return RunnerConfig{
		Workers:          8,
		FactTimeout:      5 * time.Second,
		MaxWriteAttempts: DefaultMaxWriteAttempts,
		RunLease:         2 * time.Hour,
		Thresholds:       compliance.DefaultPolicy(),
		Escalation:       escalation.DefaultPolicy(),
	}
}

// ComplianceRunnerImpl implements the ComplianceRunner interface.
type ComplianceRunnerImpl struct {
	enrollments secondary.EnrollmentRepository
	runs        secondary.RunRepository
	facts       secondary.FactSource
	notifier    secondary.Notifier
	writer      *stateWriter
	cfg         RunnerConfig
	logger      *slog.Logger
	clock       func() time.Time
}

// NewComplianceRunner creates a new ComplianceRunner with injected dependencies.
// notifier may be nil.
func NewComplianceRunner(
	enrollments secondary.EnrollmentRepository,
	escalations secondary.EscalationRepository,
	runs secondary.RunRepository,
	facts secondary.FactSource,
	notifier secondary.Notifier,
	cfg RunnerConfig,
	logger *slog.Logger,
) *ComplianceRunnerImpl {
	logger = loggerOrDefault(logger)
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	return &ComplianceRunnerImpl{
		enrollments: enrollments,
		runs:        runs,
		facts:       facts,
		notifier:    notifier,
		writer:      &stateWriter{repo: escalations, maxAttempts: cfg.MaxWriteAttempts, logger: logger},
		cfg:         cfg,
		logger:      logger,
		clock:       time.Now,
	}
}

// BeginRun acquires the batch lock for a new run.
func (s *ComplianceRunnerImpl) BeginRun(ctx context.Context, asOf time.Time) (primary.Run, error) {
	runID := uuid.NewString()
	startedAt := s.clock()

	err := s.runs.AcquireLock(ctx, runID, startedAt, s.cfg.RunLease)
	if errors.Is(err, secondary.ErrLockHeld) {
		return nil, primary.ErrRunInProgress
	}
	if err != nil {
		return nil, fmt.Errorf("failed to acquire run lock: %w", err)
	}

	return &batchRun{runner: s, id: runID, asOf: asOf, startedAt: startedAt}, nil
}

// RunAll evaluates every active enrollment as of asOf.
func (s *ComplianceRunnerImpl) RunAll(ctx context.Context, asOf time.Time) (*primary.RunReport, error) {
	run, err := s.BeginRun(ctx, asOf)
	if err != nil {
		return nil, err
	}
	return run.Execute(ctx), nil
}

// RunOne evaluates a single enrollment.
func (s *ComplianceRunnerImpl) RunOne(ctx context.Context, enrollmentID string, asOf time.Time) (*primary.CheckResult, error) {
	enrollment, err := s.enrollments.Get(ctx, enrollmentID)
	if errors.Is(err, secondary.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", primary.ErrEnrollmentNotFound, enrollmentID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load enrollment: %w", err)
	}

	out := s.evaluate(ctx, enrollment, asOf, "")
	if out.err != nil {
		return nil, out.err
	}
	return out.result, nil
}

type outcome struct {
	result *primary.CheckResult
	events []*secondary.EscalationEventRecord
	err    error
}

// evaluate runs fetch, evaluate, advance and persist for one enrollment.
func (s *ComplianceRunnerImpl) evaluate(ctx context.Context, enrollment *secondary.EnrollmentRecord, asOf time.Time, runID string) outcome {
	fetchCtx, cancel := context.WithTimeout(ctx, s.cfg.FactTimeout)
	facts, err := s.facts.Fetch(fetchCtx, enrollment)
	cancel()
	if err == nil && facts == nil {
		err = errors.New("fact source returned no facts")
	}
	if err != nil {
		return outcome{err: &primary.FactFetchError{EnrollmentID: enrollment.ID, Err: err}}
	}

	verdict := compliance.Evaluate(factsToDomain(facts), s.cfg.Thresholds.ThresholdFor(enrollment.RequirementSetID))
	if verdict.ScoreClamped {
		s.logger.Warn("clamped out-of-range score",
			"enrollment_id", enrollment.ID, "reported", facts.OverallScore, "score", verdict.Score)
	}

	next, events, err := s.writer.apply(ctx, enrollment.ID, asOf, runID, func(current escalation.Record) (escalation.Record, []escalation.Event, error) {
		rec, evs := escalation.Advance(current, verdict, asOf, s.cfg.Escalation)
		return rec, evs, nil
	})
	if err != nil {
		return outcome{err: err}
	}

	notifyAll(ctx, s.notifier, s.logger, events)

	transitions := make([]primary.EscalationEvent, len(events))
	for i, ev := range events {
		transitions[i] = recordToEvent(ev)
	}
	return outcome{
		events: events,
		result: &primary.CheckResult{
			EnrollmentID: enrollment.ID,
			Compliant:    verdict.Compliant,
			Reasons:      reasonStrings(verdict.Reasons),
			Score:        verdict.Score,
			Threshold:    verdict.Threshold,
			ScoreClamped: verdict.ScoreClamped,
			Status:       *recordToStatus(next),
			Transitions:  transitions,
		},
	}
}

// batchRun holds the run lock until Execute returns.
type batchRun struct {
	runner    *ComplianceRunnerImpl
	id        string
	asOf      time.Time
	startedAt time.Time
	once      sync.Once
	report    *primary.RunReport
}

func (r *batchRun) ID() string { return r.id }

// Execute sweeps all active enrollments. Calling it again returns the first report.
func (r *batchRun) Execute(ctx context.Context) *primary.RunReport {
	r.once.Do(func() {
		r.report = r.execute(ctx)
	})
	return r.report
}

func (r *batchRun) execute(ctx context.Context) *primary.RunReport {
	s := r.runner
	// Bookkeeping must finish even when the run was cancelled.
	detached := context.WithoutCancel(ctx)

	report := &primary.RunReport{
		RunID:       r.id,
		AsOf:        r.asOf,
		StartedAt:   r.startedAt,
		Transitions: []primary.EscalationEvent{},
		Failures:    []primary.RunFailure{},
	}
	defer r.finish(detached, report)

	s.logger.Info("compliance run started", "run_id", r.id, "as_of", r.asOf)

	enrollments, err := s.enrollments.ListActive(ctx)
	if err != nil {
		s.logger.Error("failed to list enrollments", "run_id", r.id, "error", err)
		report.Error = fmt.Sprintf("failed to list enrollments: %v", err)
		report.Cancelled = ctx.Err() != nil
		return report
	}
	report.Total = len(enrollments)

	var (
		mu         sync.Mutex
		dispatched int
		g          errgroup.Group
	)
	sem := semaphore.NewWeighted(int64(s.cfg.Workers))

	for _, enrollment := range enrollments {
		if ctx.Err() != nil {
			break
		}
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		if ctx.Err() != nil {
			sem.Release(1)
			break
		}
		dispatched++

		enrollment := enrollment
		g.Go(func() error {
			defer sem.Release(1)
			// In-flight work finishes on a detached context; the fetch itself
			// stays bounded by FactTimeout.
			out := s.evaluate(detached, enrollment, r.asOf, r.id)

			mu.Lock()
			defer mu.Unlock()
			r.record(report, enrollment.ID, out)
			return nil
		})
	}
	_ = g.Wait()

	report.Skipped = report.Total - dispatched
	report.Cancelled = ctx.Err() != nil
	return report
}

func (r *batchRun) record(report *primary.RunReport, enrollmentID string, out outcome) {
	if out.err == nil {
		report.Succeeded++
		report.Transitions = append(report.Transitions, out.result.Transitions...)
		report.TransitionCount += len(out.result.Transitions)
		return
	}

	report.Failed++
	report.Failures = append(report.Failures, primary.RunFailure{
		EnrollmentID: enrollmentID,
		Kind:         failureKind(out.err),
		Message:      out.err.Error(),
	})
	r.runner.logger.Error("enrollment evaluation failed",
		"run_id", r.id, "enrollment_id", enrollmentID, "error", out.err)
}

func (r *batchRun) finish(ctx context.Context, report *primary.RunReport) {
	s := r.runner
	report.FinishedAt = s.clock()

	if err := s.runs.SaveReport(ctx, reportToRecord(report)); err != nil {
		s.logger.Error("failed to save run report", "run_id", r.id, "error", err)
	}
	if err := s.runs.ReleaseLock(ctx, r.id); err != nil {
		s.logger.Error("failed to release run lock", "run_id", r.id, "error", err)
	}

	s.logger.Info("compliance run finished",
		"run_id", r.id,
		"total", report.Total,
		"succeeded", report.Succeeded,
		"failed", report.Failed,
		"skipped", report.Skipped,
		"transitions", report.TransitionCount,
		"cancelled", report.Cancelled,
		"duration", report.FinishedAt.Sub(report.StartedAt))
}

func failureKind(err error) string {
	var fetchErr *primary.FactFetchError
	var conflictErr *primary.PersistenceConflictError
	var invariantErr *escalation.InvariantError
	switch {
	case errors.As(err, &fetchErr):
		return primary.FailureKindFactFetch
	case errors.As(err, &conflictErr):
		return primary.FailureKindConflict
	case errors.As(err, &invariantErr):
		return primary.FailureKindInvalidData
	default:
		return primary.FailureKindPersistence
	}
}

// Ensure ComplianceRunnerImpl implements the interface
var _ primary.ComplianceRunner = (*ComplianceRunnerImpl)(nil)
