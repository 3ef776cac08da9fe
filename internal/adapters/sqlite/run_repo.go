package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/example/compliance/internal/db"
	"github.com/example/compliance/internal/ports/secondary"
)

// batchLockName is the key of the singleton run lock row.
const batchLockName = "batch"

// RunRepository implements secondary.RunRepository with SQLite.
type RunRepository struct {
	db *sql.DB
}

// NewRunRepository creates a new SQLite run repository.
func NewRunRepository(db *sql.DB) *RunRepository {
	return &RunRepository{db: db}
}

// AcquireLock takes the batch lock by compare-and-swap on its version.
func (r *RunRepository) AcquireLock(ctx context.Context, holder string, now time.Time, lease time.Duration) error {
	var (
		currentHolder sql.NullString
		acquiredAt    sql.NullString
		version       int
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT holder, acquired_at, version FROM run_lock WHERE name = ?`,
		batchLockName,
	).Scan(&currentHolder, &acquiredAt, &version)
	if err == sql.ErrNoRows {
		return fmt.Errorf("run lock row %q missing; run 'compliance db init'", batchLockName)
	}
	if err != nil {
		return fmt.Errorf("failed to read run lock: %w", err)
	}

	if currentHolder.String != "" {
		at, err := parseNullTime(acquiredAt)
		if err != nil {
			return err
		}
		if at != nil && now.Before(at.Add(lease)) {
			return fmt.Errorf("held by %s since %s: %w", currentHolder.String, at.Format(time.RFC3339), secondary.ErrLockHeld)
		}
	}

	result, err := r.db.ExecContext(ctx,
		`UPDATE run_lock SET holder = ?, acquired_at = ?, version = version + 1 WHERE name = ? AND version = ?`,
		holder, db.FormatTime(now), batchLockName, version,
	)
	if err != nil {
		return fmt.Errorf("failed to acquire run lock: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("lost race for run lock: %w", secondary.ErrLockHeld)
	}

	return nil
}

// ReleaseLock clears the batch lock if holder still owns it.
func (r *RunRepository) ReleaseLock(ctx context.Context, holder string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE run_lock SET holder = NULL, acquired_at = NULL, version = version + 1 WHERE name = ? AND holder = ?`,
		batchLockName, holder,
	)
	if err != nil {
		return fmt.Errorf("failed to release run lock: %w", err)
	}
	return nil
}

// SaveReport persists a finished run report.
func (r *RunRepository) SaveReport(ctx context.Context, report *secondary.RunReportRecord) error {
	failures := report.Failures
	if failures == nil {
		failures = []secondary.RunFailureRecord{}
	}
	failuresJSON, err := json.Marshal(failures)
	if err != nil {
		return fmt.Errorf("failed to encode run failures: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO compliance_runs (run_id, as_of, started_at, finished_at, total, succeeded, failed, skipped, transitions, cancelled, error, failures)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		report.RunID,
		db.FormatTime(report.AsOf),
		db.FormatTime(report.StartedAt),
		db.FormatTime(report.FinishedAt),
		report.Total,
		report.Succeeded,
		report.Failed,
		report.Skipped,
		report.Transitions,
		report.Cancelled,
		nullString(report.Error),
		string(failuresJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to save run report: %w", err)
	}
	return nil
}

// Latest returns the most recently saved run report.
func (r *RunRepository) Latest(ctx context.Context) (*secondary.RunReportRecord, error) {
	var (
		asOf, startedAt, finishedAt string
		errText                     sql.NullString
		failuresJSON                string
	)
	report := &secondary.RunReportRecord{}
	err := r.db.QueryRowContext(ctx,
		`SELECT run_id, as_of, started_at, finished_at, total, succeeded, failed, skipped, transitions, cancelled, error, failures
		 FROM compliance_runs ORDER BY seq DESC LIMIT 1`,
	).Scan(&report.RunID, &asOf, &startedAt, &finishedAt, &report.Total, &report.Succeeded, &report.Failed, &report.Skipped, &report.Transitions, &report.Cancelled, &errText, &failuresJSON)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("compliance run: %w", secondary.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest run: %w", err)
	}

	if report.AsOf, err = parseTime(asOf); err != nil {
		return nil, err
	}
	if report.StartedAt, err = parseTime(startedAt); err != nil {
		return nil, err
	}
	if report.FinishedAt, err = parseTime(finishedAt); err != nil {
		return nil, err
	}
	report.Error = errText.String
	if err := json.Unmarshal([]byte(failuresJSON), &report.Failures); err != nil {
		return nil, fmt.Errorf("failed to decode run failures: %w", err)
	}

	return report, nil
}

// Ensure RunRepository implements the interface
var _ secondary.RunRepository = (*RunRepository)(nil)
