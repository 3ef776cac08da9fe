package primary

import "context"

// DashboardService defines the primary port for read-only compliance views.
type DashboardService interface {
	// Summarize returns counts over the current escalation records.
	Summarize(ctx context.Context) (*DashboardSummary, error)

	// Status returns the current escalation record of one enrollment.
	Status(ctx context.Context, enrollmentID string) (*EscalationStatus, error)

	// History returns the audit events of one enrollment, oldest first.
	History(ctx context.Context, enrollmentID string) ([]*EscalationEvent, error)

	// LatestRun returns the report of the most recent finished run.
	LatestRun(ctx context.Context) (*RunReport, error)
}

// DashboardSummary is the dashboard projection.
type DashboardSummary struct {
	TotalEnrollments    int            `json:"total_enrollments"`
	CompliantCount      int            `json:"compliant_count"`
	NonCompliantCount   int            `json:"non_compliant_count"`
	EscalatedCount      int            `json:"escalated_count"`
	ResolvedCount       int            `json:"resolved_count"`
	UnevaluatedCount    int            `json:"unevaluated_count"`
	EscalationBreakdown map[string]int `json:"escalation_breakdown"`
	LastRun             *RunReport     `json:"last_run,omitempty"`
}
