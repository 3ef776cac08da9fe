package app

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/example/compliance/internal/core/compliance"
	"github.com/example/compliance/internal/core/escalation"
	"github.com/example/compliance/internal/ports/primary"
	"github.com/example/compliance/internal/ports/secondary"
)

func stateToRecord(r *secondary.EscalationStateRecord) (escalation.Record, error) {
	level, err := escalation.ParseLevel(r.Level)
	if err != nil {
		return escalation.Record{}, fmt.Errorf("enrollment %s: %w", r.EnrollmentID, err)
	}
	return escalation.Record{
		EnrollmentID:              r.EnrollmentID,
		Level:                     level,
		LevelEnteredAt:            r.LevelEnteredAt,
		FirstNonCompliantAt:       r.FirstNonCompliantAt,
		ConsecutiveCompliantSince: r.ConsecutiveCompliantSince,
		ResolutionNote:            r.ResolutionNote,
		ResolvedBy:                r.ResolvedBy,
		ResolvedAt:                r.ResolvedAt,
		LastEvaluatedAt:           r.LastEvaluatedAt,
		Version:                   r.Version,
	}, nil
}

func recordToState(r escalation.Record) *secondary.EscalationStateRecord {
	return &secondary.EscalationStateRecord{
		EnrollmentID:              r.EnrollmentID,
		Level:                     r.Level.String(),
		LevelEnteredAt:            r.LevelEnteredAt,
		FirstNonCompliantAt:       r.FirstNonCompliantAt,
		ConsecutiveCompliantSince: r.ConsecutiveCompliantSince,
		ResolutionNote:            r.ResolutionNote,
		ResolvedBy:                r.ResolvedBy,
		ResolvedAt:                r.ResolvedAt,
		LastEvaluatedAt:           r.LastEvaluatedAt,
		Version:                   r.Version,
	}
}

func eventsToRecords(events []escalation.Event, runID string) []*secondary.EscalationEventRecord {
	out := make([]*secondary.EscalationEventRecord, len(events))
	for i, e := range events {
		out[i] = &secondary.EscalationEventRecord{
			ID:           uuid.NewString(),
			EnrollmentID: e.EnrollmentID,
			FromLevel:    e.From.String(),
			ToLevel:      e.To.String(),
			Reason:       e.Reason,
			OccurredAt:   e.OccurredAt,
			TriggeredBy:  string(e.TriggeredBy),
			ActorID:      e.ActorID,
			RunID:        runID,
			NotifyRole:   string(e.NotifyRole),
		}
	}
	return out
}

func recordToStatus(r escalation.Record) *primary.EscalationStatus {
	return &primary.EscalationStatus{
		EnrollmentID:              r.EnrollmentID,
		Level:                     r.Level.String(),
		Tier:                      r.Level.Tier(),
		Responsible:               string(r.Level.Responsible()),
		LevelEnteredAt:            r.LevelEnteredAt,
		FirstNonCompliantAt:       r.FirstNonCompliantAt,
		ConsecutiveCompliantSince: r.ConsecutiveCompliantSince,
		ResolutionNote:            r.ResolutionNote,
		ResolvedBy:                r.ResolvedBy,
		ResolvedAt:                r.ResolvedAt,
		LastEvaluatedAt:           r.LastEvaluatedAt,
		Version:                   r.Version,
	}
}

func recordToEvent(r *secondary.EscalationEventRecord) primary.EscalationEvent {
	return primary.EscalationEvent{
		ID:           r.ID,
		EnrollmentID: r.EnrollmentID,
		FromLevel:    r.FromLevel,
		ToLevel:      r.ToLevel,
		Reason:       r.Reason,
		OccurredAt:   r.OccurredAt,
		TriggeredBy:  r.TriggeredBy,
		ActorID:      r.ActorID,
		RunID:        r.RunID,
		NotifyRole:   r.NotifyRole,
	}
}

func factsToDomain(f *secondary.FactsRecord) compliance.Facts {
	return compliance.Facts{
		CompletedAllModules: f.CompletedAllModules,
		PassedAllQuizzes:    f.PassedAllQuizzes,
		OverallScore:        f.OverallScore,
	}
}

func reasonStrings(reasons []compliance.FailureReason) []string {
	out := make([]string, len(reasons))
	for i, r := range reasons {
		out[i] = string(r)
	}
	return out
}

func reportToRecord(r *primary.RunReport) *secondary.RunReportRecord {
	failures := make([]secondary.RunFailureRecord, len(r.Failures))
	for i, f := range r.Failures {
		failures[i] = secondary.RunFailureRecord(f)
	}
	return &secondary.RunReportRecord{
		RunID:       r.RunID,
		AsOf:        r.AsOf,
		StartedAt:   r.StartedAt,
		FinishedAt:  r.FinishedAt,
		Total:       r.Total,
		Succeeded:   r.Succeeded,
		Failed:      r.Failed,
		Skipped:     r.Skipped,
		Transitions: r.TransitionCount,
		Cancelled:   r.Cancelled,
		Error:       r.Error,
		Failures:    failures,
	}
}

func recordToReport(r *secondary.RunReportRecord) *primary.RunReport {
	failures := make([]primary.RunFailure, len(r.Failures))
	for i, f := range r.Failures {
		failures[i] = primary.RunFailure(f)
	}
	return &primary.RunReport{
		RunID:           r.RunID,
		AsOf:            r.AsOf,
		StartedAt:       r.StartedAt,
		FinishedAt:      r.FinishedAt,
		Total:           r.Total,
		Succeeded:       r.Succeeded,
		Failed:          r.Failed,
		Skipped:         r.Skipped,
		Cancelled:       r.Cancelled,
		TransitionCount: r.Transitions,
		Failures:        failures,
		Error:           r.Error,
	}
}
