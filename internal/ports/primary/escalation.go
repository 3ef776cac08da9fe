package primary

import (
	"context"
	"time"
)

// ResolutionService defines the primary port for manual resolution of escalations.
type ResolutionService interface {
	// Resolve marks a non-compliant or escalated enrollment as resolved by an admin.
	Resolve(ctx context.Context, req ResolveRequest) (*EscalationStatus, error)
}

// ResolveRequest contains parameters for a manual resolution.
type ResolveRequest struct {
	EnrollmentID string `json:"enrollment_id" validate:"required"`
	Note         string `json:"reason" validate:"required,max=2000"`
	ResolvedBy   string `json:"-"`
}

// EscalationStatus is the escalation record of one enrollment at the port boundary.
type EscalationStatus struct {
	EnrollmentID              string     `json:"enrollment_id"`
	Level                     string     `json:"level"`
	Tier                      int        `json:"tier"`
	Responsible               string     `json:"responsible,omitempty"`
	LevelEnteredAt            time.Time  `json:"level_entered_at"`
	FirstNonCompliantAt       *time.Time `json:"first_noncompliant_at"`
	ConsecutiveCompliantSince *time.Time `json:"consecutive_compliant_since"`
	ResolutionNote            string     `json:"resolution_note,omitempty"`
	ResolvedBy                string     `json:"resolved_by,omitempty"`
	ResolvedAt                *time.Time `json:"resolved_at"`
	LastEvaluatedAt           *time.Time `json:"last_evaluated_at"`
	Version                   int        `json:"version"`
}

// EscalationEvent is one audit log entry at the port boundary.
type EscalationEvent struct {
	ID           string    `json:"id"`
	EnrollmentID string    `json:"enrollment_id"`
	FromLevel    string    `json:"from_level"`
	ToLevel      string    `json:"to_level"`
	Reason       string    `json:"reason"`
	OccurredAt   time.Time `json:"timestamp"`
	TriggeredBy  string    `json:"triggered_by"`
	ActorID      string    `json:"actor_id,omitempty"`
	RunID        string    `json:"run_id,omitempty"`
	NotifyRole   string    `json:"notify_role,omitempty"`
}

// Escalation level constants
const (
	LevelCompliant        = "compliant"
	LevelNonCompliant     = "non_compliant"
	LevelEscalatedL1      = "escalated_l1"
	LevelEscalatedL2      = "escalated_l2"
	LevelEscalatedL3      = "escalated_l3"
	LevelResolvedManually = "resolved_manually"
)

// Event trigger constants
const (
	TriggeredBySystem = "system"
	TriggeredByAdmin  = "admin"
)
