package store

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// openParams enables WAL, a write-contention timeout, and foreign keys
// on every connection.
const openParams = "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on"

// DB is the profile's SQLite handle, opened once at startup and held
// for the life of the process.
type DB struct {
	*sql.DB
}

// Open opens (creating if needed) the database at path and verifies it
// answers before handing it out.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite3", path+openParams)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return &DB{db}, nil
}
