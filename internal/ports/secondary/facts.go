package secondary

import "context"

// FactSource fetches compliance facts from the training system.
// Implementations must honour the deadline carried by ctx.
type FactSource interface {
	// Fetch returns the current facts for an enrollment.
	Fetch(ctx context.Context, enrollment *EnrollmentRecord) (*FactsRecord, error)
}

// FactsRecord is a snapshot of an enrollment's training progress.
type FactsRecord struct {
	CompletedAllModules bool    `json:"completed_all_modules"`
	PassedAllQuizzes    bool    `json:"passed_all_quizzes"`
	OverallScore        float64 `json:"overall_score"`
}

// Notifier hands escalation transitions to the messaging collaborator.
type Notifier interface {
	// Notify delivers one transition. Errors are reported to the caller, which
	// must not roll back persisted state because of them.
	Notify(ctx context.Context, event *EscalationEventRecord) error
}
