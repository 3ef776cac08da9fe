package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/compliance/internal/ports/primary"
	"github.com/example/compliance/internal/ports/secondary"
)

func TestSummarize(t *testing.T) {
	enrollments := newMockEnrollmentRepository(enrollmentIDs(10)...)
	escalations := newMockEscalationRepository()
	runs := newMockRunRepository()

	levels := []string{
		primary.LevelCompliant, primary.LevelCompliant, primary.LevelCompliant,
		primary.LevelNonCompliant,
		primary.LevelEscalatedL1, primary.LevelEscalatedL1,
		primary.LevelEscalatedL3,
		primary.LevelResolvedManually,
	}
	for i, level := range levels {
		escalations.put(secondary.EscalationStateRecord{
			EnrollmentID:   enrollmentIDs(10)[i],
			Level:          level,
			LevelEnteredAt: runDay0,
			Version:        1,
		})
	}

	svc := NewDashboardService(enrollments, escalations, runs)

	t.Run("without a finished run", func(t *testing.T) {
		summary, err := svc.Summarize(context.Background())
		require.NoError(t, err)

		assert.Equal(t, 10, summary.TotalEnrollments)
		assert.Equal(t, 3, summary.CompliantCount)
		assert.Equal(t, 1, summary.NonCompliantCount)
		assert.Equal(t, 3, summary.EscalatedCount)
		assert.Equal(t, 1, summary.ResolvedCount)
		assert.Equal(t, 2, summary.UnevaluatedCount)
		assert.Equal(t, map[string]int{"1": 2, "2": 0, "3": 1}, summary.EscalationBreakdown)
		assert.Nil(t, summary.LastRun)
	})

	t.Run("with a finished run", func(t *testing.T) {
		require.NoError(t, runs.SaveReport(context.Background(), &secondary.RunReportRecord{
			RunID:     "run-1",
			Total:     10,
			Succeeded: 9,
			Failed:    1,
			Failures:  []secondary.RunFailureRecord{{EnrollmentID: "ENR-0009", Kind: primary.FailureKindFactFetch, Message: "timeout"}},
		}))

		summary, err := svc.Summarize(context.Background())
		require.NoError(t, err)
		require.NotNil(t, summary.LastRun)
		assert.Equal(t, 1, summary.LastRun.Failed)
		assert.Equal(t, "ENR-0009", summary.LastRun.Failures[0].EnrollmentID)
	})
}

func TestStatusAndHistory(t *testing.T) {
	enrollments := newMockEnrollmentRepository("ENR-1", "ENR-2")
	escalations := newMockEscalationRepository()
	svc := NewDashboardService(enrollments, escalations, newMockRunRepository())

	escalations.put(secondary.EscalationStateRecord{
		EnrollmentID:        "ENR-1",
		Level:               primary.LevelEscalatedL2,
		LevelEnteredAt:      runAt(14),
		FirstNonCompliantAt: ptr(runDay0),
		Version:             3,
	})
	escalations.events = []*secondary.EscalationEventRecord{
		{ID: "a", EnrollmentID: "ENR-1", FromLevel: primary.LevelCompliant, ToLevel: primary.LevelNonCompliant},
		{ID: "b", EnrollmentID: "ENR-2", FromLevel: primary.LevelCompliant, ToLevel: primary.LevelNonCompliant},
		{ID: "c", EnrollmentID: "ENR-1", FromLevel: primary.LevelNonCompliant, ToLevel: primary.LevelEscalatedL1},
	}

	status, err := svc.Status(context.Background(), "ENR-1")
	require.NoError(t, err)
	assert.Equal(t, primary.LevelEscalatedL2, status.Level)
	assert.Equal(t, "department_head", status.Responsible)

	unevaluated, err := svc.Status(context.Background(), "ENR-2")
	require.NoError(t, err)
	assert.Equal(t, primary.LevelCompliant, unevaluated.Level)
	assert.Equal(t, 0, unevaluated.Version)

	_, err = svc.Status(context.Background(), "ENR-404")
	require.ErrorIs(t, err, primary.ErrEnrollmentNotFound)

	history, err := svc.History(context.Background(), "ENR-1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "a", history[0].ID)
	assert.Equal(t, "c", history[1].ID)

	_, err = svc.LatestRun(context.Background())
	require.ErrorIs(t, err, primary.ErrNoRuns)
}
