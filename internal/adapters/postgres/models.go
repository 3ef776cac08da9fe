package postgres

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"

	"github.com/example/compliance/internal/ports/secondary"
)

type enrollmentModel struct {
	ID               string    `gorm:"column:id;type:varchar(64);primaryKey"`
	UserID           string    `gorm:"column:user_id;type:varchar(64);not null"`
	RequirementSetID string    `gorm:"column:requirement_set_id;type:varchar(64);not null"`
	Active           bool      `gorm:"column:active;not null;index"`
	CreatedAt        time.Time `gorm:"column:created_at;type:timestamptz;not null"`
}

func (enrollmentModel) TableName() string { return "enrollments" }

type trainingFactModel struct {
	EnrollmentID        string    `gorm:"column:enrollment_id;type:varchar(64);primaryKey"`
	CompletedAllModules bool      `gorm:"column:completed_all_modules;not null"`
	PassedAllQuizzes    bool      `gorm:"column:passed_all_quizzes;not null"`
	OverallScore        float64   `gorm:"column:overall_score;not null"`
	UpdatedAt           time.Time `gorm:"column:updated_at;type:timestamptz;not null"`
}

func (trainingFactModel) TableName() string { return "training_facts" }

type escalationRecordModel struct {
	EnrollmentID              string     `gorm:"column:enrollment_id;type:varchar(64);primaryKey"`
	Level                     string     `gorm:"column:level;type:varchar(32);not null;index;check:chk_escalation_level,level IN ('compliant','non_compliant','escalated_l1','escalated_l2','escalated_l3','resolved_manually')"`
	LevelEnteredAt            time.Time  `gorm:"column:level_entered_at;type:timestamptz;not null"`
	FirstNonCompliantAt       *time.Time `gorm:"column:first_noncompliant_at;type:timestamptz"`
	ConsecutiveCompliantSince *time.Time `gorm:"column:consecutive_compliant_since;type:timestamptz"`
	ResolutionNote            *string    `gorm:"column:resolution_note;type:text"`
	ResolvedBy                *string    `gorm:"column:resolved_by;type:varchar(64)"`
	ResolvedAt                *time.Time `gorm:"column:resolved_at;type:timestamptz"`
	LastEvaluatedAt           *time.Time `gorm:"column:last_evaluated_at;type:timestamptz"`
	Version                   int        `gorm:"column:version;not null;default:0"`
	UpdatedAt                 time.Time  `gorm:"column:updated_at;type:timestamptz;not null"`
}

func (escalationRecordModel) TableName() string { return "escalation_records" }

type escalationEventModel struct {
	Seq          int64     `gorm:"column:seq;primaryKey;autoIncrement"`
	ID           string    `gorm:"column:id;type:varchar(64);uniqueIndex;not null"`
	EnrollmentID string    `gorm:"column:enrollment_id;type:varchar(64);not null;index:idx_escalation_events_enrollment,priority:1"`
	FromLevel    string    `gorm:"column:from_level;type:varchar(32);not null"`
	ToLevel      string    `gorm:"column:to_level;type:varchar(32);not null"`
	Reason       string    `gorm:"column:reason;type:text;not null"`
	OccurredAt   time.Time `gorm:"column:occurred_at;type:timestamptz;not null;index:idx_escalation_events_enrollment,priority:2"`
	TriggeredBy  string    `gorm:"column:triggered_by;type:varchar(16);not null"`
	ActorID      *string   `gorm:"column:actor_id;type:varchar(64)"`
	RunID        *string   `gorm:"column:run_id;type:varchar(64)"`
	NotifyRole   *string   `gorm:"column:notify_role;type:varchar(32)"`
}

func (escalationEventModel) TableName() string { return "escalation_events" }

type runModel struct {
	Seq         int64          `gorm:"column:seq;primaryKey;autoIncrement"`
	RunID       string         `gorm:"column:run_id;type:varchar(64);uniqueIndex;not null"`
	AsOf        time.Time      `gorm:"column:as_of;type:timestamptz;not null"`
	StartedAt   time.Time      `gorm:"column:started_at;type:timestamptz;not null"`
	FinishedAt  time.Time      `gorm:"column:finished_at;type:timestamptz;not null"`
	Total       int            `gorm:"column:total;not null"`
	Succeeded   int            `gorm:"column:succeeded;not null"`
	Failed      int            `gorm:"column:failed;not null"`
	Skipped     int            `gorm:"column:skipped;not null"`
	Transitions int            `gorm:"column:transitions;not null"`
	Cancelled   bool           `gorm:"column:cancelled;not null"`
	Error       *string        `gorm:"column:error;type:text"`
	Failures    datatypes.JSON `gorm:"column:failures;type:jsonb;not null"`
}

func (runModel) TableName() string { return "compliance_runs" }

type runLockModel struct {
	Name       string     `gorm:"column:name;type:varchar(32);primaryKey"`
	Holder     *string    `gorm:"column:holder;type:varchar(64)"`
	AcquiredAt *time.Time `gorm:"column:acquired_at;type:timestamptz"`
	Version    int        `gorm:"column:version;not null;default:0"`
}

func (runLockModel) TableName() string { return "run_lock" }

// ---- mapping ----

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func strVal(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

func enrollmentFromModel(m *enrollmentModel) *secondary.EnrollmentRecord {
	return &secondary.EnrollmentRecord{
		ID:               m.ID,
		UserID:           m.UserID,
		RequirementSetID: m.RequirementSetID,
		Active:           m.Active,
		CreatedAt:        m.CreatedAt.UTC(),
	}
}

func stateToModel(r *secondary.EscalationStateRecord) *escalationRecordModel {
	return &escalationRecordModel{
		EnrollmentID:              r.EnrollmentID,
		Level:                     r.Level,
		LevelEnteredAt:            r.LevelEnteredAt.UTC(),
		FirstNonCompliantAt:       utcPtr(r.FirstNonCompliantAt),
		ConsecutiveCompliantSince: utcPtr(r.ConsecutiveCompliantSince),
		ResolutionNote:            strPtr(r.ResolutionNote),
		ResolvedBy:                strPtr(r.ResolvedBy),
		ResolvedAt:                utcPtr(r.ResolvedAt),
		LastEvaluatedAt:           utcPtr(r.LastEvaluatedAt),
		Version:                   r.Version,
	}
}

func stateFromModel(m *escalationRecordModel) *secondary.EscalationStateRecord {
	return &secondary.EscalationStateRecord{
		EnrollmentID:              m.EnrollmentID,
		Level:                     m.Level,
		LevelEnteredAt:            m.LevelEnteredAt.UTC(),
		FirstNonCompliantAt:       utcPtr(m.FirstNonCompliantAt),
		ConsecutiveCompliantSince: utcPtr(m.ConsecutiveCompliantSince),
		ResolutionNote:            strVal(m.ResolutionNote),
		ResolvedBy:                strVal(m.ResolvedBy),
		ResolvedAt:                utcPtr(m.ResolvedAt),
		LastEvaluatedAt:           utcPtr(m.LastEvaluatedAt),
		Version:                   m.Version,
	}
}

// updateColumns lists every mutable column so that cleared fields are
// written as NULL; gorm skips zero values when updating from a struct.
func (m *escalationRecordModel) updateColumns(now time.Time) map[string]any {
	return map[string]any{
		"level":                       m.Level,
		"level_entered_at":            m.LevelEnteredAt,
		"first_noncompliant_at":       m.FirstNonCompliantAt,
		"consecutive_compliant_since": m.ConsecutiveCompliantSince,
		"resolution_note":             m.ResolutionNote,
		"resolved_by":                 m.ResolvedBy,
		"resolved_at":                 m.ResolvedAt,
		"last_evaluated_at":           m.LastEvaluatedAt,
		"updated_at":                  now,
	}
}

func eventToModel(e *secondary.EscalationEventRecord) escalationEventModel {
	return escalationEventModel{
		ID:           e.ID,
		EnrollmentID: e.EnrollmentID,
		FromLevel:    e.FromLevel,
		ToLevel:      e.ToLevel,
		Reason:       e.Reason,
		OccurredAt:   e.OccurredAt.UTC(),
		TriggeredBy:  e.TriggeredBy,
		ActorID:      strPtr(e.ActorID),
		RunID:        strPtr(e.RunID),
		NotifyRole:   strPtr(e.NotifyRole),
	}
}

func eventFromModel(m *escalationEventModel) *secondary.EscalationEventRecord {
	return &secondary.EscalationEventRecord{
		ID:           m.ID,
		EnrollmentID: m.EnrollmentID,
		FromLevel:    m.FromLevel,
		ToLevel:      m.ToLevel,
		Reason:       m.Reason,
		OccurredAt:   m.OccurredAt.UTC(),
		TriggeredBy:  m.TriggeredBy,
		ActorID:      strVal(m.ActorID),
		RunID:        strVal(m.RunID),
		NotifyRole:   strVal(m.NotifyRole),
	}
}

func reportToModel(r *secondary.RunReportRecord) (*runModel, error) {
	failures := r.Failures
	if failures == nil {
		failures = []secondary.RunFailureRecord{}
	}
	raw, err := json.Marshal(failures)
	if err != nil {
		return nil, fmt.Errorf("failed to encode run failures: %w", err)
	}
	return &runModel{
		RunID:       r.RunID,
		AsOf:        r.AsOf.UTC(),
		StartedAt:   r.StartedAt.UTC(),
		FinishedAt:  r.FinishedAt.UTC(),
		Total:       r.Total,
		Succeeded:   r.Succeeded,
		Failed:      r.Failed,
		Skipped:     r.Skipped,
		Transitions: r.Transitions,
		Cancelled:   r.Cancelled,
		Error:       strPtr(r.Error),
		Failures:    datatypes.JSON(raw),
	}, nil
}

func reportFromModel(m *runModel) (*secondary.RunReportRecord, error) {
	report := &secondary.RunReportRecord{
		RunID:       m.RunID,
		AsOf:        m.AsOf.UTC(),
		StartedAt:   m.StartedAt.UTC(),
		FinishedAt:  m.FinishedAt.UTC(),
		Total:       m.Total,
		Succeeded:   m.Succeeded,
		Failed:      m.Failed,
		Skipped:     m.Skipped,
		Transitions: m.Transitions,
		Cancelled:   m.Cancelled,
		Error:       strVal(m.Error),
	}
	if len(m.Failures) > 0 {
		if err := json.Unmarshal(m.Failures, &report.Failures); err != nil {
			return nil, fmt.Errorf("failed to decode run failures: %w", err)
		}
	}
	return report, nil
}
