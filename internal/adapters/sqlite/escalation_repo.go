// Package sqlite contains SQLite implementations of repository interfaces.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/example/compliance/internal/db"
	"github.com/example/compliance/internal/ports/secondary"
)

// EscalationRepository implements secondary.EscalationRepository with SQLite.
type EscalationRepository struct {
	db *sql.DB
}

// NewEscalationRepository creates a new SQLite escalation repository.
func NewEscalationRepository(db *sql.DB) *EscalationRepository {
	return &EscalationRepository{db: db}
}

const escalationColumns = `enrollment_id, level, level_entered_at, first_noncompliant_at, consecutive_compliant_since, resolution_note, resolved_by, resolved_at, last_evaluated_at, version`

// Get retrieves the escalation state of an enrollment.
func (r *EscalationRepository) Get(ctx context.Context, enrollmentID string) (*secondary.EscalationStateRecord, error) {
	var (
		levelEnteredAt      string
		firstNonCompliantAt sql.NullString
		compliantSince      sql.NullString
		resolutionNote      sql.NullString
		resolvedBy          sql.NullString
		resolvedAt          sql.NullString
		lastEvaluatedAt     sql.NullString
	)

	record := &secondary.EscalationStateRecord{}
	err := r.db.QueryRowContext(ctx,
		`SELECT `+escalationColumns+` FROM escalation_records WHERE enrollment_id = ?`,
		enrollmentID,
	).Scan(&record.EnrollmentID, &record.Level, &levelEnteredAt, &firstNonCompliantAt, &compliantSince, &resolutionNote, &resolvedBy, &resolvedAt, &lastEvaluatedAt, &record.Version)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("escalation record %s: %w", enrollmentID, secondary.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get escalation record: %w", err)
	}

	record.ResolutionNote = resolutionNote.String
	record.ResolvedBy = resolvedBy.String
	if record.LevelEnteredAt, err = parseTime(levelEnteredAt); err != nil {
		return nil, err
	}
	for _, f := range []struct {
		src sql.NullString
		dst **time.Time
	}{
		{firstNonCompliantAt, &record.FirstNonCompliantAt},
		{compliantSince, &record.ConsecutiveCompliantSince},
		{resolvedAt, &record.ResolvedAt},
		{lastEvaluatedAt, &record.LastEvaluatedAt},
	} {
		if *f.dst, err = parseNullTime(f.src); err != nil {
			return nil, err
		}
	}

	return record, nil
}

// Save writes the record under a version compare-and-swap and appends events
// in the same transaction.
func (r *EscalationRepository) Save(ctx context.Context, record *secondary.EscalationStateRecord, events []*secondary.EscalationEventRecord) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := db.FormatTime(time.Now())

	if record.Version == 0 {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO escalation_records (`+escalationColumns+`, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?)`,
			record.EnrollmentID,
			record.Level,
			db.FormatTime(record.LevelEnteredAt),
			nullTime(record.FirstNonCompliantAt),
			nullTime(record.ConsecutiveCompliantSince),
			nullString(record.ResolutionNote),
			nullString(record.ResolvedBy),
			nullTime(record.ResolvedAt),
			nullTime(record.LastEvaluatedAt),
			now,
		)
		if isConstraintViolation(err, sqlite3.ErrConstraintPrimaryKey, sqlite3.ErrConstraintUnique) {
			return fmt.Errorf("escalation record %s created concurrently: %w", record.EnrollmentID, secondary.ErrVersionConflict)
		}
		if err != nil {
			return fmt.Errorf("failed to create escalation record: %w", err)
		}
	} else {
		result, err := tx.ExecContext(ctx,
			`UPDATE escalation_records SET
				level = ?,
				level_entered_at = ?,
				first_noncompliant_at = ?,
				consecutive_compliant_since = ?,
				resolution_note = ?,
				resolved_by = ?,
				resolved_at = ?,
				last_evaluated_at = ?,
				version = version + 1,
				updated_at = ?
			WHERE enrollment_id = ? AND version = ?`,
			record.Level,
			db.FormatTime(record.LevelEnteredAt),
			nullTime(record.FirstNonCompliantAt),
			nullTime(record.ConsecutiveCompliantSince),
			nullString(record.ResolutionNote),
			nullString(record.ResolvedBy),
			nullTime(record.ResolvedAt),
			nullTime(record.LastEvaluatedAt),
			now,
			record.EnrollmentID,
			record.Version,
		)
		if err != nil {
			return fmt.Errorf("failed to update escalation record: %w", err)
		}

		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if rowsAffected == 0 {
			return fmt.Errorf("escalation record %s at version %d: %w", record.EnrollmentID, record.Version, secondary.ErrVersionConflict)
		}
	}

	for _, ev := range events {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO escalation_events (id, enrollment_id, from_level, to_level, reason, occurred_at, triggered_by, actor_id, run_id, notify_role) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			ev.ID,
			ev.EnrollmentID,
			ev.FromLevel,
			ev.ToLevel,
			ev.Reason,
			db.FormatTime(ev.OccurredAt),
			ev.TriggeredBy,
			nullString(ev.ActorID),
			nullString(ev.RunID),
			nullString(ev.NotifyRole),
		)
		if err != nil {
			return fmt.Errorf("failed to append escalation event: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit escalation record: %w", err)
	}

	record.Version++
	return nil
}

// History returns all events for an enrollment in write order.
func (r *EscalationRepository) History(ctx context.Context, enrollmentID string) ([]*secondary.EscalationEventRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, enrollment_id, from_level, to_level, reason, occurred_at, triggered_by, actor_id, run_id, notify_role
		 FROM escalation_events WHERE enrollment_id = ? ORDER BY seq`,
		enrollmentID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query escalation history: %w", err)
	}
	defer rows.Close()

	var events []*secondary.EscalationEventRecord
	for rows.Next() {
		var (
			occurredAt string
			actorID    sql.NullString
			runID      sql.NullString
			notifyRole sql.NullString
		)
		ev := &secondary.EscalationEventRecord{}
		if err := rows.Scan(&ev.ID, &ev.EnrollmentID, &ev.FromLevel, &ev.ToLevel, &ev.Reason, &occurredAt, &ev.TriggeredBy, &actorID, &runID, &notifyRole); err != nil {
			return nil, fmt.Errorf("failed to scan escalation event: %w", err)
		}
		if ev.OccurredAt, err = parseTime(occurredAt); err != nil {
			return nil, err
		}
		ev.ActorID = actorID.String
		ev.RunID = runID.String
		ev.NotifyRole = notifyRole.String
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate escalation history: %w", err)
	}

	return events, nil
}

// CountByLevel returns record counts per level for active enrollments.
func (r *EscalationRepository) CountByLevel(ctx context.Context) (map[string]int, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT r.level, COUNT(*)
		 FROM escalation_records r
		 JOIN enrollments e ON e.id = r.enrollment_id
		 WHERE e.active = 1
		 GROUP BY r.level`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to count escalation levels: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var level string
		var n int
		if err := rows.Scan(&level, &n); err != nil {
			return nil, fmt.Errorf("failed to scan level count: %w", err)
		}
		counts[level] = n
	}
	return counts, rows.Err()
}

func isConstraintViolation(err error, codes ...sqlite3.ErrNoExtended) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	for _, code := range codes {
		if sqliteErr.ExtendedCode == code {
			return true
		}
	}
	return false
}

// Ensure EscalationRepository implements the interface
var _ secondary.EscalationRepository = (*EscalationRepository)(nil)
