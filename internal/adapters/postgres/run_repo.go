package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/example/compliance/internal/ports/secondary"
)

// RunRepository implements secondary.RunRepository with gorm.
type RunRepository struct {
	db *gorm.DB
}

// NewRunRepository creates a new PostgreSQL run repository.
func NewRunRepository(db *gorm.DB) *RunRepository {
	return &RunRepository{db: db}
}

// AcquireLock takes the batch lock by compare-and-swap on its version.
func (r *RunRepository) AcquireLock(ctx context.Context, holder string, now time.Time, lease time.Duration) error {
	var lock runLockModel
	err := r.db.WithContext(ctx).First(&lock, "name = ?", batchLockName).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("run lock row %q missing; run 'compliance db init'", batchLockName)
	}
	if err != nil {
		return fmt.Errorf("failed to read run lock: %w", err)
	}

	if current := strVal(lock.Holder); current != "" && lock.AcquiredAt != nil && now.Before(lock.AcquiredAt.Add(lease)) {
		return fmt.Errorf("held by %s since %s: %w", current, lock.AcquiredAt.UTC().Format(time.RFC3339), secondary.ErrLockHeld)
	}

	acquiredAt := now.UTC()
	res := r.db.WithContext(ctx).Model(&runLockModel{}).
		Where("name = ? AND version = ?", batchLockName, lock.Version).
		Updates(map[string]any{
			"holder":      holder,
			"acquired_at": acquiredAt,
			"version":     gorm.Expr("version + 1"),
		})
	if res.Error != nil {
		return fmt.Errorf("failed to acquire run lock: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("lost race for run lock: %w", secondary.ErrLockHeld)
	}
	return nil
}

// ReleaseLock clears the batch lock if holder still owns it.
func (r *RunRepository) ReleaseLock(ctx context.Context, holder string) error {
	err := r.db.WithContext(ctx).Model(&runLockModel{}).
		Where("name = ? AND holder = ?", batchLockName, holder).
		Updates(map[string]any{
			"holder":      nil,
			"acquired_at": nil,
			"version":     gorm.Expr("version + 1"),
		}).Error
	if err != nil {
		return fmt.Errorf("failed to release run lock: %w", err)
	}
	return nil
}

// SaveReport persists a finished run report.
func (r *RunRepository) SaveReport(ctx context.Context, report *secondary.RunReportRecord) error {
	m, err := reportToModel(report)
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return fmt.Errorf("failed to save run report: %w", err)
	}
	return nil
}

// Latest returns the most recently saved run report.
func (r *RunRepository) Latest(ctx context.Context) (*secondary.RunReportRecord, error) {
	var m runModel
	err := r.db.WithContext(ctx).Order("seq DESC").Take(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("compliance run: %w", secondary.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest run: %w", err)
	}
	return reportFromModel(&m)
}

// Ensure RunRepository implements the interface
var _ secondary.RunRepository = (*RunRepository)(nil)
