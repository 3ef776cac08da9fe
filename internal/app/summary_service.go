package app

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/example/compliance/internal/core/escalation"
	"github.com/example/compliance/internal/ports/primary"
	"github.com/example/compliance/internal/ports/secondary"
)

// DashboardServiceImpl implements the DashboardService interface.
type DashboardServiceImpl struct {
	enrollments secondary.EnrollmentRepository
	escalations secondary.EscalationRepository
	runs        secondary.RunRepository
}

// NewDashboardService creates a new DashboardService with injected dependencies.
func NewDashboardService(
	enrollments secondary.EnrollmentRepository,
	escalations secondary.EscalationRepository,
	runs secondary.RunRepository,
) *DashboardServiceImpl {
	return &DashboardServiceImpl{
		enrollments: enrollments,
		escalations: escalations,
		runs:        runs,
	}
}

// Summarize counts current escalation records by level.
func (s *DashboardServiceImpl) Summarize(ctx context.Context) (*primary.DashboardSummary, error) {
	total, err := s.enrollments.CountActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count enrollments: %w", err)
	}

	counts, err := s.escalations.CountByLevel(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count escalation levels: %w", err)
	}

	summary := &primary.DashboardSummary{
		TotalEnrollments:    total,
		EscalationBreakdown: map[string]int{"1": 0, "2": 0, "3": 0},
	}

	evaluated := 0
	for name, n := range counts {
		level, err := escalation.ParseLevel(name)
		if err != nil {
			return nil, fmt.Errorf("failed to summarize: %w", err)
		}
		evaluated += n

		switch level {
		case escalation.LevelCompliant:
			summary.CompliantCount += n
		case escalation.LevelNonCompliant:
			summary.NonCompliantCount += n
		case escalation.LevelEscalatedL1, escalation.LevelEscalatedL2, escalation.LevelEscalatedL3:
			summary.EscalatedCount += n
			summary.EscalationBreakdown[strconv.Itoa(level.Tier())] += n
		case escalation.LevelResolvedManually:
			summary.ResolvedCount += n
		}
	}
	if total > evaluated {
		summary.UnevaluatedCount = total - evaluated
	}

	last, err := s.LatestRun(ctx)
	switch {
	case err == nil:
		summary.LastRun = last
	case errors.Is(err, primary.ErrNoRuns):
	default:
		return nil, err
	}

	return summary, nil
}

// Status returns the current escalation record of one enrollment.
// Enrollments that were never evaluated report the implicit compliant level.
func (s *DashboardServiceImpl) Status(ctx context.Context, enrollmentID string) (*primary.EscalationStatus, error) {
	enrollment, err := s.enrollments.Get(ctx, enrollmentID)
	if err != nil {
		if errors.Is(err, secondary.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", primary.ErrEnrollmentNotFound, enrollmentID)
		}
		return nil, fmt.Errorf("failed to load enrollment: %w", err)
	}

	stored, err := s.escalations.Get(ctx, enrollmentID)
	if errors.Is(err, secondary.ErrNotFound) {
		return recordToStatus(escalation.NewRecord(enrollmentID, enrollment.CreatedAt)), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load escalation record: %w", err)
	}

	rec, err := stateToRecord(stored)
	if err != nil {
		return nil, err
	}
	return recordToStatus(rec), nil
}

// History returns the audit events of one enrollment, oldest first.
func (s *DashboardServiceImpl) History(ctx context.Context, enrollmentID string) ([]*primary.EscalationEvent, error) {
	if _, err := s.enrollments.Get(ctx, enrollmentID); err != nil {
		if errors.Is(err, secondary.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", primary.ErrEnrollmentNotFound, enrollmentID)
		}
		return nil, fmt.Errorf("failed to load enrollment: %w", err)
	}

	records, err := s.escalations.History(ctx, enrollmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}

	events := make([]*primary.EscalationEvent, len(records))
	for i, r := range records {
		ev := recordToEvent(r)
		events[i] = &ev
	}
	return events, nil
}

// LatestRun returns the most recent finished run.
func (s *DashboardServiceImpl) LatestRun(ctx context.Context) (*primary.RunReport, error) {
	record, err := s.runs.Latest(ctx)
	if errors.Is(err, secondary.ErrNotFound) {
		return nil, primary.ErrNoRuns
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load latest run: %w", err)
	}
	return recordToReport(record), nil
}

// Ensure DashboardServiceImpl implements the interface
var _ primary.DashboardService = (*DashboardServiceImpl)(nil)
