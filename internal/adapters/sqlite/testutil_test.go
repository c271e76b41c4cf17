// Package sqlite_test contains integration tests for SQLite repositories.
//
// # Schema Protection
//
// This file is the SINGLE POINT where the database schema is loaded for
// tests. All test setup uses db.GetSchemaSQL() so tests run against the
// authoritative schema, preventing drift between test and production.
// Do not hardcode CREATE TABLE statements in test files.
package sqlite_test

import (
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/example/surveyforge/internal/db"
)

// setupTestDB creates an in-memory database with the authoritative schema.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	testDB, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}

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

// seedDraft inserts a test draft with the given age offset (a SQLite
// datetime modifier like "-30 hours") and returns its ID.
func seedDraft(t *testing.T, db *sql.DB, id, userID, status, ageOffset string) string {
	t.Helper()
	if id == "" {
		id = "draft-seed-001"
	}
	if userID == "" {
		userID = "user-1"
	}
	if status == "" {
		status = "active"
	}
	if ageOffset == "" {
		ageOffset = "-0 hours"
	}
	_, err := db.Exec(
		"INSERT INTO drafts (id, user_id, company_id, current_step, step_data, status, created_at, updated_at) VALUES (?, ?, 'co-1', 1, '{}', ?, datetime('now', ?), datetime('now', ?))",
		id, userID, status, ageOffset, ageOffset,
	)
	if err != nil {
		t.Fatalf("failed to seed draft: %v", err)
	}
	return id
}
