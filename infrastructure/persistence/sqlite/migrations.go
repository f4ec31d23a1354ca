package sqlite

import (
	"database/sql"
	"fmt"
)

// migration is one schema step. Versions are contiguous starting at 1;
// the applied version is tracked in PRAGMA user_version.
type migration struct {
	version     int
	description string
	statements  []string
}

var migrations = []migration{
	{
		version:     1,
		description: "base schema",
		statements: []string{
			`CREATE TABLE IF NOT EXISTS memory_spaces (
				id TEXT PRIMARY KEY,
				grandparent_name TEXT NOT NULL,
				grandparent_photo_url TEXT,
				relation TEXT NOT NULL,
				access_token TEXT NOT NULL UNIQUE,
				created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
			)`,
			`CREATE TABLE IF NOT EXISTS family_members (
				id TEXT PRIMARY KEY,
				memory_space_id TEXT NOT NULL REFERENCES memory_spaces(id) ON DELETE CASCADE,
				name TEXT NOT NULL,
				email TEXT,
				role TEXT NOT NULL,
				created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
			)`,
			`CREATE TABLE IF NOT EXISTS conversation_sessions (
				id TEXT PRIMARY KEY,
				memory_space_id TEXT NOT NULL REFERENCES memory_spaces(id) ON DELETE CASCADE,
				topic TEXT NOT NULL CHECK (topic IN ('childhood','love_story','career','life_lessons','surprise')),
				status TEXT NOT NULL DEFAULT 'in_progress' CHECK (status IN ('in_progress','completed','abandoned')),
				input_mode TEXT NOT NULL DEFAULT 'text',
				started_at DATETIME NOT NULL,
				completed_at DATETIME,
				question_count INTEGER NOT NULL DEFAULT 0,
				created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
			)`,
			`CREATE TABLE IF NOT EXISTS conversation_messages (
				id TEXT PRIMARY KEY,
				session_id TEXT NOT NULL REFERENCES conversation_sessions(id) ON DELETE CASCADE,
				role TEXT NOT NULL CHECK (role IN ('user','assistant')),
				content TEXT NOT NULL,
				audio_url TEXT,
				sequence_number INTEGER NOT NULL,
				created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
				UNIQUE (session_id, sequence_number)
			)`,
			`CREATE TABLE IF NOT EXISTS stories (
				id TEXT PRIMARY KEY,
				memory_space_id TEXT NOT NULL REFERENCES memory_spaces(id) ON DELETE CASCADE,
				session_id TEXT NOT NULL UNIQUE REFERENCES conversation_sessions(id) ON DELETE CASCADE,
				title TEXT NOT NULL,
				content TEXT NOT NULL,
				topic TEXT NOT NULL,
				style TEXT NOT NULL DEFAULT 'narrative',
				status TEXT NOT NULL DEFAULT 'generated' CHECK (status IN ('generated','edited','published')),
				generated_at DATETIME NOT NULL,
				updated_at DATETIME NOT NULL,
				created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
			)`,
			`CREATE INDEX IF NOT EXISTS idx_family_members_email ON family_members(email)`,
			`CREATE INDEX IF NOT EXISTS idx_sessions_space ON conversation_sessions(memory_space_id)`,
			`CREATE INDEX IF NOT EXISTS idx_messages_session ON conversation_messages(session_id)`,
			`CREATE INDEX IF NOT EXISTS idx_stories_space ON stories(memory_space_id)`,
		},
	},
}

// runMigrations applies every migration above the database's current
// user_version, each in its own transaction.
func runMigrations(db *sql.DB) error {
	current, err := schemaVersion(db)
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		if m.version != current+1 {
			return fmt.Errorf("migration gap: at version %d, next is %d", current, m.version)
		}
		if err := applyMigration(db, m); err != nil {
			return fmt.Errorf("migration %d (%s) failed: %w", m.version, m.description, err)
		}
		current = m.version
	}
	return nil
}

func applyMigration(db *sql.DB, m migration) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, stmt := range m.statements {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}
	// PRAGMA does not accept bind parameters
	if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", m.version)); err != nil {
		return err
	}
	return tx.Commit()
}

func schemaVersion(db *sql.DB) (int, error) {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return version, nil
}
