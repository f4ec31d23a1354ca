// Package sqlite implements the application's repositories on SQLite via
// database/sql. Migrations run at open time; all five tables hang off
// memory_spaces with cascading deletes.
package sqlite

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// Open opens (and creates if needed) the database at path and brings the
// schema up to date. WAL mode keeps readers unblocked during turn
// processing; the busy timeout absorbs short write contention.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}
