// Package sqlite_test contains integration tests for SQLite repositories.
//
// # Schema Protection
//
// This file is the SINGLE POINT where the database schema is loaded for tests.
// All test setup functions use db.GetSchemaSQL() to ensure tests run against
// the authoritative schema, preventing drift between test and production.
//
// DO NOT hardcode CREATE TABLE statements in test files. Instead, use
// setupTestDB() and the seed* helpers.
package sqlite_test

import (
	"database/sql"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/example/compliance/internal/db"
)

// setupTestDB creates an in-memory database with the authoritative schema.
// Every pooled connection to ":memory:" is a separate database, so the pool
// is pinned to one connection.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	testDB, err := sql.Open("sqlite3", "file::memory:?_foreign_keys=on")
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	testDB.SetMaxOpenConns(1)

	// Use the authoritative schema from schema.go
	_, err = testDB.Exec(db.GetSchemaSQL())
	if err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}

	t.Cleanup(func() {
		testDB.Close()
	})

	return testDB
}

var testCreatedAt = time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)

// seedEnrollment inserts a test enrollment and returns its ID.
func seedEnrollment(t *testing.T, testDB *sql.DB, id, requirementSetID string, active bool) string {
	t.Helper()
	if requirementSetID == "" {
		requirementSetID = "RS-DEFAULT"
	}
	_, err := testDB.Exec(
		"INSERT INTO enrollments (id, user_id, requirement_set_id, active, created_at) VALUES (?, ?, ?, ?, ?)",
		id, "USR-"+id, requirementSetID, active, db.FormatTime(testCreatedAt),
	)
	if err != nil {
		t.Fatalf("failed to seed enrollment: %v", err)
	}
	return id
}

// seedFacts inserts training facts for an enrollment.
func seedFacts(t *testing.T, testDB *sql.DB, enrollmentID string, modules, quizzes bool, score float64) {
	t.Helper()
	_, err := testDB.Exec(
		"INSERT INTO training_facts (enrollment_id, completed_all_modules, passed_all_quizzes, overall_score, updated_at) VALUES (?, ?, ?, ?, ?)",
		enrollmentID, modules, quizzes, score, db.FormatTime(testCreatedAt),
	)
	if err != nil {
		t.Fatalf("failed to seed facts: %v", err)
	}
}
