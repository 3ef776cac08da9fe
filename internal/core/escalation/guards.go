package escalation

import "fmt"

// GuardResult represents the outcome of a guard evaluation.
type GuardResult struct {
	Allowed bool
	Reason  string
}

// Error converts the guard result to an error if not allowed.
func (r GuardResult) Error() error {
	if r.Allowed {
		return nil
	}
	return fmt.Errorf("%s", r.Reason)
}

// ResolveContext provides context for manual resolution guards.
type ResolveContext struct {
	EnrollmentID string
	RecordExists bool
	Level        Level
	Note         string
	ResolvedBy   string
}

// CanResolve evaluates whether an enrollment can be manually resolved.
// Rules:
// - An escalation record must exist
// - Level must be NonCompliant or EscalatedL1..L3
// - Note and resolver are required
func CanResolve(ctx ResolveContext) GuardResult {
	if !ctx.RecordExists {
		return GuardResult{
			Allowed: false,
			Reason:  fmt.Sprintf("enrollment %s has never been evaluated; nothing to resolve", ctx.EnrollmentID),
		}
	}

	switch ctx.Level {
	case LevelNonCompliant, LevelEscalatedL1, LevelEscalatedL2, LevelEscalatedL3:
	case LevelCompliant:
		return GuardResult{
			Allowed: false,
			Reason:  fmt.Sprintf("enrollment %s is compliant; nothing to resolve", ctx.EnrollmentID),
		}
	case LevelResolvedManually:
		return GuardResult{
			Allowed: false,
			Reason:  fmt.Sprintf("enrollment %s is already resolved", ctx.EnrollmentID),
		}
	default:
		return GuardResult{
			Allowed: false,
			Reason:  fmt.Sprintf("enrollment %s has unknown level %s", ctx.EnrollmentID, ctx.Level),
		}
	}

	if ctx.Note == "" {
		return GuardResult{Allowed: false, Reason: "resolution note is required"}
	}
	if ctx.ResolvedBy == "" {
		return GuardResult{Allowed: false, Reason: "resolver is required"}
	}

	return GuardResult{Allowed: true}
}

// InvariantError reports a record that violates the escalation record invariants.
type InvariantError struct {
	EnrollmentID string
	Detail       string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("escalation record %s: %s", e.EnrollmentID, e.Detail)
}

func invariantError(r Record, detail string) error {
	return &InvariantError{EnrollmentID: r.EnrollmentID, Detail: detail}
}
