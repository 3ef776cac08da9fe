package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/example/compliance/internal/ports/secondary"
)

// TrainingFactSource implements secondary.FactSource over the local
// training_facts table.
type TrainingFactSource struct {
	db *sql.DB
}

// NewTrainingFactSource creates a fact source backed by the training_facts table.
func NewTrainingFactSource(db *sql.DB) *TrainingFactSource {
	return &TrainingFactSource{db: db}
}

// Fetch returns the stored facts for an enrollment.
func (s *TrainingFactSource) Fetch(ctx context.Context, enrollment *secondary.EnrollmentRecord) (*secondary.FactsRecord, error) {
	facts := &secondary.FactsRecord{}
	err := s.db.QueryRowContext(ctx,
		`SELECT completed_all_modules, passed_all_quizzes, overall_score FROM training_facts WHERE enrollment_id = ?`,
		enrollment.ID,
	).Scan(&facts.CompletedAllModules, &facts.PassedAllQuizzes, &facts.OverallScore)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("no training facts for enrollment %s: %w", enrollment.ID, secondary.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch training facts: %w", err)
	}
	return facts, nil
}

// Ensure TrainingFactSource implements the interface
var _ secondary.FactSource = (*TrainingFactSource)(nil)
