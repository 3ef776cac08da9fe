package db

import (
	"database/sql"
	"fmt"
	"time"
)

// TimeLayout is the fixed-width UTC layout used for every TEXT timestamp.
const TimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// FormatTime renders t in TimeLayout.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// Fixture is one demo enrollment with its training facts.
type Fixture struct {
	EnrollmentID     string
	UserID           string
	RequirementSetID string
	CompletedModules bool
	PassedQuizzes    bool
	Score            float64
}

// DemoFixtures returns the enrollments created by 'compliance db seed'.
func DemoFixtures() []Fixture {
	return []Fixture{
		{"ENR-001", "USR-001", "RS-ONBOARDING", true, true, 92},
		{"ENR-002", "USR-002", "RS-ONBOARDING", false, true, 88},
		{"ENR-003", "USR-003", "RS-ONBOARDING", true, false, 71},
		{"ENR-004", "USR-004", "RS-SECURITY", true, true, 79.5},
		{"ENR-005", "USR-005", "RS-SECURITY", true, true, 97},
		{"ENR-006", "USR-001", "RS-SAFETY", false, false, 12},
	}
}

// SeedFixtures populates the database with demo enrollments and training facts.
// Escalation state is never seeded; it only comes from real evaluations.
func SeedFixtures(database *sql.DB) error {
	now := FormatTime(time.Now())

	tx, err := database.Begin()
	if err != nil {
		return fmt.Errorf("seed: %w", err)
	}
	defer tx.Rollback()

	for _, e := range DemoFixtures() {
		if _, err := tx.Exec(
			"INSERT INTO enrollments (id, user_id, requirement_set_id, active, created_at) VALUES (?, ?, ?, 1, ?)",
			e.EnrollmentID, e.UserID, e.RequirementSetID, now,
		); err != nil {
			return fmt.Errorf("seed enrollments: %w", err)
		}
		if _, err := tx.Exec(
			`INSERT INTO training_facts (enrollment_id, completed_all_modules, passed_all_quizzes, overall_score, updated_at)
			 VALUES (?, ?, ?, ?, ?)`,
			e.EnrollmentID, e.CompletedModules, e.PassedQuizzes, e.Score, now,
		); err != nil {
			return fmt.Errorf("seed training facts: %w", err)
		}
	}

	return tx.Commit()
}
