// Package store keeps a local record of sensor readings in SQLite.
package store

import (
	"database/sql"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"
)

const sqliteDriverName = "sqlite"

const schemaReadings = `
CREATE TABLE IF NOT EXISTS readings (
    id TEXT PRIMARY KEY,
    captured_at INTEGER NOT NULL,
    co2 INTEGER NOT NULL,
    temperature REAL NOT NULL,
    pressure REAL NOT NULL,
    humidity REAL NOT NULL,
    battery INTEGER NOT NULL,
    interval_s INTEGER NOT NULL
);
`

const schemaReadingsIndex = `
CREATE INDEX IF NOT EXISTS readings_captured_at ON readings (captured_at);
`

// Open opens or creates the database at path and ensures the schema exists.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open(sqliteDriverName, path)
	if err != nil {
		return nil, errors.Wrapf(err, "open sqlite at %q", path)
	}

	// One writer only.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL;",
		"PRAGMA busy_timeout = 5000;",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, errors.Wrapf(err, "set %s", pragma)
		}
	}

	if err := ensureSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "ping sqlite")
	}
	return db, nil
}

func ensureSchema(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return errors.Wrap(err, "begin schema transaction")
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for i, stmt := range []string{schemaReadings, schemaReadingsIndex} {
		if _, err := tx.Exec(stmt); err != nil {
			return errors.Wrapf(err, "apply schema statement %d", i+1)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "commit schema transaction")
	}
	return nil
}
