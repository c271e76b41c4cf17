package db

// SchemaSQL is the complete schema for fresh surveyforge installs.
//
// This is the SINGLE SOURCE OF TRUTH for the database schema. All tests
// use it via GetSchemaSQL() so test schemas cannot drift from production:
// if repository code references a column that doesn't exist here, tests
// fail immediately with "no such column".
//
// When adding new columns or tables:
//  1. Add a migration in internal/db/migrations.go
//  2. Update SchemaSQL here
const SchemaSQL = `
-- Survey drafts (in-progress wizard state, autosaved)
CREATE TABLE IF NOT EXISTS drafts (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	company_id TEXT NOT NULL,
	current_step INTEGER NOT NULL DEFAULT 1,
	step_data TEXT NOT NULL DEFAULT '{}',
	version INTEGER NOT NULL DEFAULT 1,
	auto_save_count INTEGER NOT NULL DEFAULT 1,
	status TEXT NOT NULL CHECK(status IN ('active', 'recovered', 'discarded')) DEFAULT 'active',
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_drafts_owner ON drafts(user_id, company_id, status);
CREATE INDEX IF NOT EXISTS idx_drafts_updated ON drafts(updated_at);
`

// InitSchema creates the database schema
func InitSchema() error {
	db, err := GetDB()
	if err != nil {
		return err
	}

	if _, err := db.Exec(SchemaSQL); err != nil {
		return err
	}

	return RunMigrations()
}

// GetSchemaSQL returns the authoritative schema SQL for use by tests.
// Tests should use this instead of hardcoding their own schema to prevent drift.
func GetSchemaSQL() string {
	return SchemaSQL
}
