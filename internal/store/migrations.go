package store

import (
	"database/sql"
	"fmt"
)

// migration is one versioned schema step. Migrations are embedded rather
// than loaded from disk so the binary is self-contained.
type migration struct {
	Version     string
	Description string
	SQL         string
}

var migrations = []migration{
	{
		Version:     "001",
		Description: "accounts",
		SQL: `
CREATE TABLE IF NOT EXISTS users (
    id            TEXT PRIMARY KEY,
    name          TEXT NOT NULL,
    email         TEXT NOT NULL UNIQUE,
    password_hash TEXT NOT NULL,
    role          TEXT NOT NULL DEFAULT 'user',
    created_at    DATETIME NOT NULL
);`,
	},
	{
		Version:     "002",
		Description: "resumes and share identifiers",
		SQL: `
CREATE TABLE IF NOT EXISTS resumes (
    id         TEXT PRIMARY KEY,
    unique_id  TEXT NOT NULL UNIQUE,
    user_id    TEXT NOT NULL REFERENCES users(id),
    name       TEXT NOT NULL,
    content    TEXT NOT NULL,
    created_at DATETIME NOT NULL,
    updated_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_resumes_user ON resumes(user_id);`,
	},
	{
		Version:     "003",
		Description: "view tracking",
		SQL: `
CREATE TABLE IF NOT EXISTS resume_views (
    id         TEXT PRIMARY KEY,
    resume_id  TEXT NOT NULL,
    ip_address TEXT NOT NULL DEFAULT 'unknown',
    user_agent TEXT NOT NULL DEFAULT 'unknown',
    url        TEXT,
    referrer   TEXT,
    device     TEXT NOT NULL DEFAULT 'unknown',
    browser    TEXT NOT NULL DEFAULT 'unknown',
    os         TEXT NOT NULL DEFAULT 'unknown',
    created_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_views_resume ON resume_views(resume_id, created_at);`,
	},
	{
		Version:     "004",
		Description: "chat history",
		SQL: `
CREATE TABLE IF NOT EXISTS chat_conversations (
    user_id    TEXT PRIMARY KEY,
    user_name  TEXT NOT NULL DEFAULT '',
    user_email TEXT NOT NULL DEFAULT '',
    created_at DATETIME NOT NULL
);
CREATE TABLE IF NOT EXISTS chat_messages (
    id              TEXT PRIMARY KEY,
    conversation_id TEXT NOT NULL REFERENCES chat_conversations(user_id),
    sender          TEXT NOT NULL,
    sender_name     TEXT NOT NULL DEFAULT '',
    body            TEXT NOT NULL,
    created_at      DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_chat_messages_conv ON chat_messages(conversation_id, created_at);`,
	},
}

// applyMigrations runs every pending migration inside its own transaction
// and records it in schema_migrations.
func applyMigrations(db *sql.DB) error {
	_, err := db.Exec(`
CREATE TABLE IF NOT EXISTS schema_migrations (
    version     TEXT PRIMARY KEY,
    description TEXT NOT NULL,
    applied_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
)`)
	if err != nil {
		return fmt.Errorf("failed to create migration table: %w", err)
	}

	applied := make(map[string]bool)
	rows, err := db.Query("SELECT version FROM schema_migrations")
	if err != nil {
		return fmt.Errorf("failed to read applied migrations: %w", err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var version string
		if err := rows.Scan(&version); err != nil {
			return fmt.Errorf("failed to scan migration row: %w", err)
		}
		applied[version] = true
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating migration rows: %w", err)
	}

	for _, mig := range migrations {
		if applied[mig.Version] {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin migration %s: %w", mig.Version, err)
		}
		if _, err := tx.Exec(mig.SQL); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %s (%s) failed: %w", mig.Version, mig.Description, err)
		}
		if _, err := tx.Exec(
			"INSERT INTO schema_migrations (version, description) VALUES (?, ?)",
			mig.Version, mig.Description,
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to record migration %s: %w", mig.Version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %s: %w", mig.Version, err)
		}
	}

	return nil
}
