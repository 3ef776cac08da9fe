package db

// SchemaSQL is the complete schema for fresh installs.
// This schema reflects the current state after all migrations.
//
// # Schema Drift Protection
//
// This is the SINGLE SOURCE OF TRUTH for the SQLite schema. Repository tests
// load it via GetSchemaSQL() instead of hardcoding CREATE TABLE statements, so
// a column referenced by repository code but missing here fails immediately
// with "no such column".
//
// Timestamps are TEXT in UTC with a fixed-width nanosecond layout, so string
// ordering matches time ordering.
const SchemaSQL = `
-- Enrollments (mirrored from the training system; the engine only reads them)
CREATE TABLE IF NOT EXISTS enrollments (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	requirement_set_id TEXT NOT NULL,
	active INTEGER NOT NULL DEFAULT 1,
	created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_enrollments_active ON enrollments(active);

-- Training facts (local fact source when no remote training service is configured)
CREATE TABLE IF NOT EXISTS training_facts (
	enrollment_id TEXT PRIMARY KEY,
	completed_all_modules INTEGER NOT NULL DEFAULT 0,
	passed_all_quizzes INTEGER NOT NULL DEFAULT 0,
	overall_score REAL NOT NULL DEFAULT 0,
	updated_at TEXT NOT NULL,
	FOREIGN KEY (enrollment_id) REFERENCES enrollments(id) ON DELETE CASCADE
);

-- Escalation records (one row per evaluated enrollment)
CREATE TABLE IF NOT EXISTS escalation_records (
	enrollment_id TEXT PRIMARY KEY,
	level TEXT NOT NULL CHECK (level IN ('compliant', 'non_compliant', 'escalated_l1', 'escalated_l2', 'escalated_l3', 'resolved_manually')),
	level_entered_at TEXT NOT NULL,
	first_noncompliant_at TEXT,
	consecutive_compliant_since TEXT,
	resolution_note TEXT,
	resolved_by TEXT,
	resolved_at TEXT,
	last_evaluated_at TEXT,
	version INTEGER NOT NULL DEFAULT 1,
	updated_at TEXT NOT NULL,
	FOREIGN KEY (enrollment_id) REFERENCES enrollments(id)
);

CREATE INDEX IF NOT EXISTS idx_escalation_records_level ON escalation_records(level);

-- Escalation events (append-only audit log)
CREATE TABLE IF NOT EXISTS escalation_events (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	id TEXT NOT NULL UNIQUE,
	enrollment_id TEXT NOT NULL,
	from_level TEXT NOT NULL,
	to_level TEXT NOT NULL,
	reason TEXT NOT NULL,
	occurred_at TEXT NOT NULL,
	triggered_by TEXT NOT NULL CHECK (triggered_by IN ('system', 'admin')),
	actor_id TEXT,
	run_id TEXT,
	notify_role TEXT,
	FOREIGN KEY (enrollment_id) REFERENCES enrollments(id)
);

CREATE INDEX IF NOT EXISTS idx_escalation_events_enrollment ON escalation_events(enrollment_id, occurred_at);

CREATE TRIGGER IF NOT EXISTS escalation_events_no_update
BEFORE UPDATE ON escalation_events
BEGIN
	SELECT RAISE(ABORT, 'escalation_events is append-only');
END;

CREATE TRIGGER IF NOT EXISTS escalation_events_no_delete
BEFORE DELETE ON escalation_events
BEGIN
	SELECT RAISE(ABORT, 'escalation_events is append-only');
END;

-- Compliance runs (finished batch reports)
CREATE TABLE IF NOT EXISTS compliance_runs (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT NOT NULL UNIQUE,
	as_of TEXT NOT NULL,
	started_at TEXT NOT NULL,
	finished_at TEXT NOT NULL,
	total INTEGER NOT NULL DEFAULT 0,
	succeeded INTEGER NOT NULL DEFAULT 0,
	failed INTEGER NOT NULL DEFAULT 0,
	skipped INTEGER NOT NULL DEFAULT 0,
	transitions INTEGER NOT NULL DEFAULT 0,
	cancelled INTEGER NOT NULL DEFAULT 0,
	error TEXT,
	failures TEXT NOT NULL DEFAULT '[]'
);

-- Run lock (singleton row guarding RunAll)
CREATE TABLE IF NOT EXISTS run_lock (
	name TEXT PRIMARY KEY,
	holder TEXT,
	acquired_at TEXT,
	version INTEGER NOT NULL DEFAULT 0
);

INSERT OR IGNORE INTO run_lock (name, version) VALUES ('batch', 0);
`

// InitSchema brings the configured database up to date.
func InitSchema() error {
	return RunMigrations()
}

// GetSchemaSQL returns the authoritative schema SQL for use by tests.
// Tests should use this instead of hardcoding their own schema to prevent drift.
func GetSchemaSQL() string {
	return SchemaSQL
}
