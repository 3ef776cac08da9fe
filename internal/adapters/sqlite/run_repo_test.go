package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/compliance/internal/adapters/sqlite"
	"github.com/example/compliance/internal/ports/secondary"
)

func TestRunRepository_Lock(t *testing.T) {
	testDB := setupTestDB(t)
	repo := sqlite.NewRunRepository(testDB)
	ctx := context.Background()
	lease := 2 * time.Hour

	require.NoError(t, repo.AcquireLock(ctx, "run-a", day0, lease))

	err := repo.AcquireLock(ctx, "run-b", day0.Add(time.Minute), lease)
	require.ErrorIs(t, err, secondary.ErrLockHeld)

	// Releasing with the wrong holder is a no-op.
	require.NoError(t, repo.ReleaseLock(ctx, "run-b"))
	require.ErrorIs(t, repo.AcquireLock(ctx, "run-b", day0.Add(time.Minute), lease), secondary.ErrLockHeld)

	require.NoError(t, repo.ReleaseLock(ctx, "run-a"))
	require.NoError(t, repo.AcquireLock(ctx, "run-b", day0.Add(2*time.Minute), lease))
}

func TestRunRepository_ExpiredLeaseCanBeTakenOver(t *testing.T) {
	testDB := setupTestDB(t)
	repo := sqlite.NewRunRepository(testDB)
	ctx := context.Background()

	require.NoError(t, repo.AcquireLock(ctx, "crashed-run", day0, time.Hour))
	require.NoError(t, repo.AcquireLock(ctx, "run-b", day0.Add(61*time.Minute), time.Hour))

	// The crashed holder's late release must not free the new holder's lock.
	require.NoError(t, repo.ReleaseLock(ctx, "crashed-run"))
	require.ErrorIs(t, repo.AcquireLock(ctx, "run-c", day0.Add(62*time.Minute), time.Hour), secondary.ErrLockHeld)
}

func TestRunRepository_Reports(t *testing.T) {
	testDB := setupTestDB(t)
	repo := sqlite.NewRunRepository(testDB)
	ctx := context.Background()

	_, err := repo.Latest(ctx)
	require.ErrorIs(t, err, secondary.ErrNotFound)

	require.NoError(t, repo.SaveReport(ctx, &secondary.RunReportRecord{
		RunID: "run-1", AsOf: day0, StartedAt: day0, FinishedAt: day0.Add(time.Second),
		Total: 2, Succeeded: 2,
	}))
	require.NoError(t, repo.SaveReport(ctx, &secondary.RunReportRecord{
		RunID: "run-2", AsOf: day0, StartedAt: day0.Add(time.Hour), FinishedAt: day0.Add(time.Hour + time.Second),
		Total: 3, Succeeded: 1, Failed: 1, Skipped: 1, Transitions: 4, Cancelled: true,
		Failures: []secondary.RunFailureRecord{{EnrollmentID: "ENR-002", Kind: "fact_fetch", Message: "timeout"}},
	}))

	latest, err := repo.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, "run-2", latest.RunID)
	assert.Equal(t, 1, latest.Failed)
	assert.Equal(t, 1, latest.Skipped)
	assert.Equal(t, 4, latest.Transitions)
	assert.True(t, latest.Cancelled)
	assert.True(t, latest.FinishedAt.Equal(day0.Add(time.Hour+time.Second)))
	require.Len(t, latest.Failures, 1)
	assert.Equal(t, "ENR-002", latest.Failures[0].EnrollmentID)
}

func TestEnrollmentRepository(t *testing.T) {
	testDB := setupTestDB(t)
	repo := sqlite.NewEnrollmentRepository(testDB)
	ctx := context.Background()

	seedEnrollment(t, testDB, "ENR-002", "RS-SAFETY", true)
	seedEnrollment(t, testDB, "ENR-001", "", true)
	seedEnrollment(t, testDB, "ENR-003", "", false)

	got, err := repo.Get(ctx, "ENR-002")
	require.NoError(t, err)
	assert.Equal(t, "RS-SAFETY", got.RequirementSetID)
	assert.True(t, got.Active)
	assert.True(t, got.CreatedAt.Equal(testCreatedAt))

	_, err = repo.Get(ctx, "ENR-404")
	require.ErrorIs(t, err, secondary.ErrNotFound)

	active, err := repo.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, "ENR-001", active[0].ID)
	assert.Equal(t, "ENR-002", active[1].ID)

	count, err := repo.CountActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestTrainingFactSource(t *testing.T) {
	testDB := setupTestDB(t)
	source := sqlite.NewTrainingFactSource(testDB)
	ctx := context.Background()

	seedEnrollment(t, testDB, "ENR-001", "", true)
	seedEnrollment(t, testDB, "ENR-002", "", true)
	seedFacts(t, testDB, "ENR-001", true, false, 72.5)

	facts, err := source.Fetch(ctx, &secondary.EnrollmentRecord{ID: "ENR-001"})
	require.NoError(t, err)
	assert.True(t, facts.CompletedAllModules)
	assert.False(t, facts.PassedAllQuizzes)
	assert.Equal(t, 72.5, facts.OverallScore)

	_, err = source.Fetch(ctx, &secondary.EnrollmentRecord{ID: "ENR-002"})
	require.ErrorIs(t, err, secondary.ErrNotFound)
}
