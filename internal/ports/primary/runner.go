package primary

import (
	"context"
	"time"
)

// ComplianceRunner defines the primary port for compliance evaluation.
type ComplianceRunner interface {
	// BeginRun acquires the batch lock and returns a run ready to execute.
	// Returns ErrRunInProgress if another run holds the lock.
	BeginRun(ctx context.Context, asOf time.Time) (Run, error)

	// RunAll is BeginRun followed by Execute.
	RunAll(ctx context.Context, asOf time.Time) (*RunReport, error)

	// RunOne evaluates a single enrollment synchronously. Failures are returned,
	// never swallowed.
	RunOne(ctx context.Context, enrollmentID string, asOf time.Time) (*CheckResult, error)
}

// Run is a batch sweep that holds the run lock until Execute returns.
type Run interface {
	// ID returns the run identifier.
	ID() string

	// Execute evaluates every active enrollment and releases the lock.
	// It always returns a well-formed report; cancelling ctx stops dispatch
	// but lets in-flight enrollments finish.
	Execute(ctx context.Context) *RunReport
}

// RunReport summarizes one batch sweep.
type RunReport struct {
	RunID           string            `json:"run_id"`
	AsOf            time.Time         `json:"as_of"`
	StartedAt       time.Time         `json:"started_at"`
	FinishedAt      time.Time         `json:"finished_at"`
	Total           int               `json:"total"`
	Succeeded       int               `json:"succeeded"`
	Failed          int               `json:"failed"`
	Skipped         int               `json:"skipped"`
	Cancelled       bool              `json:"cancelled"`
	TransitionCount int               `json:"transition_count"`
	Transitions     []EscalationEvent `json:"transitions"`
	Failures        []RunFailure      `json:"failures"`
	// Error is set when the run could not list enrollments at all.
	Error string `json:"error,omitempty"`
}

// RunFailure describes one enrollment that failed during a run.
type RunFailure struct {
	EnrollmentID string `json:"enrollment_id"`
	Kind         string `json:"kind"`
	Message      string `json:"message"`
}

// Failure kind constants
const (
	FailureKindFactFetch   = "fact_fetch"
	FailureKindConflict    = "persistence_conflict"
	FailureKindPersistence = "persistence"
	FailureKindInvalidData = "invalid_data"
)

// CheckResult is the outcome of evaluating one enrollment.
type CheckResult struct {
	EnrollmentID string            `json:"enrollment_id"`
	Compliant    bool              `json:"compliant"`
	Reasons      []string          `json:"reasons"`
	Score        float64           `json:"score"`
	Threshold    float64           `json:"threshold"`
	ScoreClamped bool              `json:"score_clamped,omitempty"`
	Status       EscalationStatus  `json:"status"`
	Transitions  []EscalationEvent `json:"transitions"`
}
