package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/example/compliance/internal/ports/secondary"
)

// EscalationRepository implements secondary.EscalationRepository with gorm.
type EscalationRepository struct {
	db *gorm.DB
}

// NewEscalationRepository creates a new PostgreSQL escalation repository.
func NewEscalationRepository(db *gorm.DB) *EscalationRepository {
	return &EscalationRepository{db: db}
}

// Get retrieves the escalation state of an enrollment.
func (r *EscalationRepository) Get(ctx context.Context, enrollmentID string) (*secondary.EscalationStateRecord, error) {
	var m escalationRecordModel
	err := r.db.WithContext(ctx).First(&m, "enrollment_id = ?", enrollmentID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("escalation record %s: %w", enrollmentID, secondary.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get escalation record: %w", err)
	}
	return stateFromModel(&m), nil
}

// Save writes the record under a version compare-and-swap and appends events
// in the same transaction.
func (r *EscalationRepository) Save(ctx context.Context, record *secondary.EscalationStateRecord, events []*secondary.EscalationEventRecord) error {
	now := time.Now().UTC()
	m := stateToModel(record)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if record.Version == 0 {
			m.Version = 1
			m.UpdatedAt = now
			err := tx.Create(m).Error
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return fmt.Errorf("escalation record %s created concurrently: %w", record.EnrollmentID, secondary.ErrVersionConflict)
			}
			if err != nil {
				return fmt.Errorf("failed to create escalation record: %w", err)
			}
		} else {
			columns := m.updateColumns(now)
			columns["version"] = gorm.Expr("version + 1")
			res := tx.Model(&escalationRecordModel{}).
				Where("enrollment_id = ? AND version = ?", record.EnrollmentID, record.Version).
				Updates(columns)
			if res.Error != nil {
				return fmt.Errorf("failed to update escalation record: %w", res.Error)
			}
			if res.RowsAffected == 0 {
				return fmt.Errorf("escalation record %s at version %d: %w", record.EnrollmentID, record.Version, secondary.ErrVersionConflict)
			}
		}

		if len(events) == 0 {
			return nil
		}
		rows := make([]escalationEventModel, 0, len(events))
		for _, ev := range events {
			rows = append(rows, eventToModel(ev))
		}
		if err := tx.Create(&rows).Error; err != nil {
			return fmt.Errorf("failed to append escalation events: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	record.Version++
	return nil
}

// History returns all events for an enrollment in write order.
func (r *EscalationRepository) History(ctx context.Context, enrollmentID string) ([]*secondary.EscalationEventRecord, error) {
	var rows []escalationEventModel
	err := r.db.WithContext(ctx).
		Where("enrollment_id = ?", enrollmentID).
		Order("seq").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query escalation history: %w", err)
	}

	events := make([]*secondary.EscalationEventRecord, 0, len(rows))
	for i := range rows {
		events = append(events, eventFromModel(&rows[i]))
	}
	return events, nil
}

// CountByLevel returns record counts per level for active enrollments.
func (r *EscalationRepository) CountByLevel(ctx context.Context) (map[string]int, error) {
	var rows []struct {
		Level string
		N     int
	}
	err := r.db.WithContext(ctx).
		Table("escalation_records AS r").
		Select("r.level AS level, COUNT(*) AS n").
		Joins("JOIN enrollments e ON e.id = r.enrollment_id").
		Where("e.active = ?", true).
		Group("r.level").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count escalation levels: %w", err)
	}

	counts := make(map[string]int, len(rows))
	for _, row := range rows {
		counts[row.Level] = row.N
	}
	return counts, nil
}

// Ensure EscalationRepository implements the interface
var _ secondary.EscalationRepository = (*EscalationRepository)(nil)
