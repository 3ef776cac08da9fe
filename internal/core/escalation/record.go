package escalation

import "time"

// Trigger identifies who caused a transition.
type Trigger string

const (
	TriggerSystem Trigger = "system"
	TriggerAdmin  Trigger = "admin"
)

// Record is the durable escalation state of one enrollment.
type Record struct {
	EnrollmentID   string
	Level          Level
	LevelEnteredAt time.Time
	// FirstNonCompliantAt anchors every threshold calculation of the episode.
	FirstNonCompliantAt *time.Time
	// ConsecutiveCompliantSince gates de-escalation.
	ConsecutiveCompliantSince *time.Time
	ResolutionNote            string
	ResolvedBy                string
	ResolvedAt                *time.Time
	LastEvaluatedAt           *time.Time
	// Version is the optimistic-concurrency counter. Zero means not yet persisted.
	Version int
}

// NewRecord returns the implicit starting record for an enrollment that has
// never been evaluated.
func NewRecord(enrollmentID string, now time.Time) Record {
	return Record{
		EnrollmentID:   enrollmentID,
		Level:          LevelCompliant,
		LevelEnteredAt: now,
	}
}

// IsNew reports whether the record has never been persisted.
func (r Record) IsNew() bool {
	return r.Version == 0
}

// Equal compares every state field except Version and LastEvaluatedAt.
func (r Record) Equal(o Record) bool {
	return r.EnrollmentID == o.EnrollmentID &&
		r.Level == o.Level &&
		r.LevelEnteredAt.Equal(o.LevelEnteredAt) &&
		timePtrEqual(r.FirstNonCompliantAt, o.FirstNonCompliantAt) &&
		timePtrEqual(r.ConsecutiveCompliantSince, o.ConsecutiveCompliantSince) &&
		r.ResolutionNote == o.ResolutionNote &&
		r.ResolvedBy == o.ResolvedBy &&
		timePtrEqual(r.ResolvedAt, o.ResolvedAt)
}

// CheckInvariants returns the first violated record invariant, or nil.
func (r Record) CheckInvariants() error {
	switch r.Level {
	case LevelCompliant:
		if r.FirstNonCompliantAt != nil {
			return invariantError(r, "compliant record has first_noncompliant_at set")
		}
		if r.ResolutionNote != "" {
			return invariantError(r, "compliant record has a resolution note")
		}
	case LevelEscalatedL1, LevelEscalatedL2, LevelEscalatedL3:
		if r.FirstNonCompliantAt == nil {
			return invariantError(r, "escalated record has no first_noncompliant_at")
		}
		if r.FirstNonCompliantAt.After(r.LevelEnteredAt) {
			return invariantError(r, "first_noncompliant_at is after level_entered_at")
		}
	case LevelNonCompliant, LevelResolvedManually:
	}
	return nil
}

// Event is an immutable audit entry written for every transition.
type Event struct {
	EnrollmentID string
	From         Level
	To           Level
	Reason       string
	OccurredAt   time.Time
	TriggeredBy  Trigger
	// ActorID is the admin who triggered the event; empty for system events.
	ActorID string
	// NotifyRole is the role responsible for the target level.
	NotifyRole Role
}

func newEvent(r Record, to Level, reason string, now time.Time, by Trigger, actor string) Event {
	return Event{
		EnrollmentID: r.EnrollmentID,
		From:         r.Level,
		To:           to,
		Reason:       reason,
		OccurredAt:   now,
		TriggeredBy:  by,
		ActorID:      actor,
		NotifyRole:   to.Responsible(),
	}
}

func timePtrEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

func timePtr(t time.Time) *time.Time {
	return &t
}
