package postgres

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/example/compliance/internal/ports/secondary"
)

// EnrollmentRepository implements secondary.EnrollmentRepository with gorm.
type EnrollmentRepository struct {
	db *gorm.DB
}

// NewEnrollmentRepository creates a new PostgreSQL enrollment repository.
func NewEnrollmentRepository(db *gorm.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

func (r *EnrollmentRepository) Get(ctx context.Context, id string) (*secondary.EnrollmentRecord, error) {
	var m enrollmentModel
	err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("enrollment %s: %w", id, secondary.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get enrollment: %w", err)
	}
	return enrollmentFromModel(&m), nil
}

func (r *EnrollmentRepository) ListActive(ctx context.Context) ([]*secondary.EnrollmentRecord, error) {
	var rows []enrollmentModel
	if err := r.db.WithContext(ctx).Where("active = ?", true).Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list enrollments: %w", err)
	}
	out := make([]*secondary.EnrollmentRecord, 0, len(rows))
	for i := range rows {
		out = append(out, enrollmentFromModel(&rows[i]))
	}
	return out, nil
}

func (r *EnrollmentRepository) CountActive(ctx context.Context) (int, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&enrollmentModel{}).Where("active = ?", true).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("failed to count enrollments: %w", err)
	}
	return int(n), nil
}

// TrainingFactSource implements secondary.FactSource over the training_facts table.
type TrainingFactSource struct {
	db *gorm.DB
}

// NewTrainingFactSource creates a fact source backed by the training_facts table.
func NewTrainingFactSource(db *gorm.DB) *TrainingFactSource {
	return &TrainingFactSource{db: db}
}

func (s *TrainingFactSource) Fetch(ctx context.Context, enrollment *secondary.EnrollmentRecord) (*secondary.FactsRecord, error) {
	var m trainingFactModel
	err := s.db.WithContext(ctx).First(&m, "enrollment_id = ?", enrollment.ID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("no training facts for enrollment %s: %w", enrollment.ID, secondary.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch training facts: %w", err)
	}
	return &secondary.FactsRecord{
		CompletedAllModules: m.CompletedAllModules,
		PassedAllQuizzes:    m.PassedAllQuizzes,
		OverallScore:        m.OverallScore,
	}, nil
}

var (
	_ secondary.EnrollmentRepository = (*EnrollmentRepository)(nil)
	_ secondary.FactSource           = (*TrainingFactSource)(nil)
)
