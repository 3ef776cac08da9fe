package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/example/compliance/internal/ports/secondary"
)

// EnrollmentRepository implements secondary.EnrollmentRepository with SQLite.
type EnrollmentRepository struct {
	db *sql.DB
}

// NewEnrollmentRepository creates a new SQLite enrollment repository.
func NewEnrollmentRepository(db *sql.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// Get retrieves an enrollment by ID.
func (r *EnrollmentRepository) Get(ctx context.Context, id string) (*secondary.EnrollmentRecord, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, requirement_set_id, active, created_at FROM enrollments WHERE id = ?`,
		id,
	)
	record, err := scanEnrollment(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("enrollment %s: %w", id, secondary.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get enrollment: %w", err)
	}
	return record, nil
}

// ListActive returns every active enrollment ordered by ID.
func (r *EnrollmentRepository) ListActive(ctx context.Context) ([]*secondary.EnrollmentRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, requirement_set_id, active, created_at FROM enrollments WHERE active = 1 ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list enrollments: %w", err)
	}
	defer rows.Close()

	var enrollments []*secondary.EnrollmentRecord
	for rows.Next() {
		record, err := scanEnrollment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan enrollment: %w", err)
		}
		enrollments = append(enrollments, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate enrollments: %w", err)
	}

	return enrollments, nil
}

// CountActive returns the number of active enrollments.
func (r *EnrollmentRepository) CountActive(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM enrollments WHERE active = 1`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count enrollments: %w", err)
	}
	return count, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEnrollment(row rowScanner) (*secondary.EnrollmentRecord, error) {
	var createdAt string
	record := &secondary.EnrollmentRecord{}
	if err := row.Scan(&record.ID, &record.UserID, &record.RequirementSetID, &record.Active, &createdAt); err != nil {
		return nil, err
	}
	t, err := parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	record.CreatedAt = t
	return record, nil
}

// Ensure EnrollmentRepository implements the interface
var _ secondary.EnrollmentRepository = (*EnrollmentRepository)(nil)
