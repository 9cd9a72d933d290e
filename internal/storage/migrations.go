package storage

import (
	"database/sql"
	"fmt"
	"time"
)

// Migration represents a database migration.
type Migration struct {
	Version int
	Name    string
	Up      string
}

// migrations holds all database migrations in order.
var migrations = []Migration{
	{
		Version: 1,
		Name:    "initial_schema",
		Up: `
			-- Organizations table
			CREATE TABLE IF NOT EXISTS organizations (
				id TEXT PRIMARY KEY,
				name TEXT NOT NULL,
				is_active INTEGER NOT NULL DEFAULT 1,
				notification_gap_minutes INTEGER NOT NULL DEFAULT 120,
				freshdesk_domain TEXT,
				freshdesk_api_key BLOB,
				slack_webhook_url BLOB,
				gitlab_domain TEXT,
				gitlab_project_path TEXT,
				gitlab_api_key BLOB,
				hubstaff_org_id TEXT,
				hubstaff_access_token BLOB,
				hubstaff_refresh_token BLOB,
				hubstaff_token_expires_at DATETIME,
				last_checked_at DATETIME,
				created_at DATETIME NOT NULL,
				updated_at DATETIME NOT NULL
			);

			-- Per-user work cursor
			CREATE TABLE IF NOT EXISTS user_sessions (
				org_id TEXT NOT NULL,
				hubstaff_user_id INTEGER NOT NULL,
				last_task_id INTEGER NOT NULL,
				last_activity_at DATETIME NOT NULL,
				notified_at DATETIME,
				updated_at DATETIME NOT NULL,
				PRIMARY KEY (org_id, hubstaff_user_id),
				FOREIGN KEY (org_id) REFERENCES organizations(id) ON DELETE CASCADE
			);

			-- Deduplication ledger. The time-entry id carries the
			-- uniqueness constraint guarding against double-processing.
			CREATE TABLE IF NOT EXISTS processed_events (
				id TEXT PRIMARY KEY,
				org_id TEXT NOT NULL,
				hubstaff_user_id INTEGER NOT NULL,
				hubstaff_task_id INTEGER NOT NULL,
				time_entry_id TEXT NOT NULL UNIQUE,
				bucket INTEGER NOT NULL,
				created_at DATETIME NOT NULL,
				FOREIGN KEY (org_id) REFERENCES organizations(id) ON DELETE CASCADE
			);

			-- Indexes
			CREATE INDEX IF NOT EXISTS idx_organizations_active ON organizations(is_active);
			CREATE INDEX IF NOT EXISTS idx_processed_events_task ON processed_events(org_id, hubstaff_user_id, hubstaff_task_id, created_at);
			CREATE INDEX IF NOT EXISTS idx_processed_events_created ON processed_events(created_at);
		`,
	},
}

// runMigrations applies all pending migrations.
func runMigrations(db *sql.DB) error {
	// Create migrations table if not exists
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at DATETIME NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	// Get current version
	var currentVersion int
	err = db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("get current version: %w", err)
	}

	// Apply pending migrations
	for _, m := range migrations {
		if m.Version <= currentVersion {
			continue
		}

		// Run migration in transaction
		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin transaction for migration %d: %w", m.Version, err)
		}

		_, err = tx.Exec(m.Up)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("execute migration %d (%s): %w", m.Version, m.Name, err)
		}

		_, err = tx.Exec(
			"INSERT INTO schema_migrations (version, name, applied_at) VALUES (?, ?, ?)",
			m.Version, m.Name, time.Now(),
		)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}
