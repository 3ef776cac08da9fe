// Package secondary defines the secondary ports (driven adapters) for the application.
// These are the interfaces through which the application drives external systems.
package secondary

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned (wrapped) by repositories when a row does not exist.
var ErrNotFound = errors.New("not found")

// ErrVersionConflict is returned (wrapped) when an optimistic write loses the
// compare-and-swap on the version column.
var ErrVersionConflict = errors.New("version conflict")

// ErrLockHeld is returned when the batch run lock is owned by a live holder.
var ErrLockHeld = errors.New("run lock held")

// EscalationRepository defines the secondary port for escalation state persistence.
// Events are append-only: there is no Update or Delete for them.
type EscalationRepository interface {
	// Get retrieves the escalation state of an enrollment.
	// Returns ErrNotFound when the enrollment has never been evaluated.
	Get(ctx context.Context, enrollmentID string) (*EscalationStateRecord, error)

	// Save writes state and appends events atomically. A record with Version 0
	// is inserted; otherwise the row is updated only if its stored version
	// still equals record.Version. On success record.Version is incremented.
	// Returns ErrVersionConflict when another writer got there first.
	Save(ctx context.Context, record *EscalationStateRecord, events []*EscalationEventRecord) error

	// History returns all events for an enrollment in the order they were written.
	History(ctx context.Context, enrollmentID string) ([]*EscalationEventRecord, error)

	// CountByLevel returns the number of records per level name, restricted
	// to active enrollments.
	CountByLevel(ctx context.Context) (map[string]int, error)
}

// EscalationStateRecord represents an escalation record as stored in persistence.
type EscalationStateRecord struct {
	EnrollmentID              string
	Level                     string // 'compliant', 'non_compliant', 'escalated_l1'..'escalated_l3', 'resolved_manually'
	LevelEnteredAt            time.Time
	FirstNonCompliantAt       *time.Time
	ConsecutiveCompliantSince *time.Time
	ResolutionNote            string // Empty string means null
	ResolvedBy                string // Empty string means null
	ResolvedAt                *time.Time
	LastEvaluatedAt           *time.Time
	Version                   int
}

// EscalationEventRecord represents an audit event as stored in persistence.
type EscalationEventRecord struct {
	ID           string
	EnrollmentID string
	FromLevel    string
	ToLevel      string
	Reason       string
	OccurredAt   time.Time
	TriggeredBy  string // 'system', 'admin'
	ActorID      string // Empty string means null
	RunID        string // Empty string means null
	NotifyRole   string // Empty string means null
}

// EnrollmentRepository defines the secondary port for reading enrollments.
// Enrollments are owned by the training system; the engine never writes them.
type EnrollmentRepository interface {
	// Get retrieves an enrollment by ID. Returns ErrNotFound if unknown.
	Get(ctx context.Context, id string) (*EnrollmentRecord, error)

	// ListActive returns every active enrollment ordered by ID.
	ListActive(ctx context.Context) ([]*EnrollmentRecord, error)

	// CountActive returns the number of active enrollments.
	CountActive(ctx context.Context) (int, error)
}

// EnrollmentRecord represents an enrollment as stored in persistence.
type EnrollmentRecord struct {
	ID               string
	UserID           string
	RequirementSetID string
	Active           bool
	CreatedAt        time.Time
}

// RunRepository defines the secondary port for the batch run lock and run reports.
type RunRepository interface {
	// AcquireLock takes the singleton batch lock for holder. A lock whose
	// lease has expired at now may be taken over. Returns ErrLockHeld otherwise.
	AcquireLock(ctx context.Context, holder string, now time.Time, lease time.Duration) error

	// ReleaseLock releases the batch lock if holder still owns it.
	ReleaseLock(ctx context.Context, holder string) error

	// SaveReport persists a finished run report.
	SaveReport(ctx context.Context, report *RunReportRecord) error

	// Latest returns the most recently finished run. Returns ErrNotFound if none.
	Latest(ctx context.Context) (*RunReportRecord, error)
}

// RunReportRecord represents a finished run as stored in persistence.
type RunReportRecord struct {
	RunID       string
	AsOf        time.Time
	StartedAt   time.Time
	FinishedAt  time.Time
	Total       int
	Succeeded   int
	Failed      int
	Skipped     int
	Transitions int
	Cancelled   bool
	Error       string // Empty string means null
	Failures    []RunFailureRecord
}

// RunFailureRecord describes one enrollment that failed during a run.
type RunFailureRecord struct {
	EnrollmentID string `json:"enrollment_id"`
	Kind         string `json:"kind"`
	Message      string `json:"message"`
}
