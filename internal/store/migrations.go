package store

import (
	"database/sql"
	"fmt"

	"veriado/internal/logging"
)

// migration is a single guarded ALTER TABLE, applied only if the
// column is missing. Mirrors the teacher's additive-migration style:
// schema evolves by appending nullable columns, never by rewriting
// existing tables in place.
type migration struct {
	Table  string
	Column string
	Def    string
}

// pendingMigrations lists columns added after the initial schema was
// frozen. Empty for now; CurrentSchemaVersion bumps independently to
// signal "existing projection rows need a full reindex", which is a
// coarser-grained event than a column addition.
var pendingMigrations = []migration{}

// runMigrations applies every pending migration whose column is
// absent. Failures are logged and skipped rather than fatal: a
// missing additive column degrades gracefully, it doesn't corrupt
// existing data.
func runMigrations(db *sql.DB) error {
	for _, m := range pendingMigrations {
		exists, err := columnExists(db, m.Table, m.Column)
		if err != nil {
			logging.StoreWarn("migration check failed for %s.%s: %v", m.Table, m.Column, err)
			continue
		}
		if exists {
			continue
		}
		stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", m.Table, m.Column, m.Def)
		if _, err := db.Exec(stmt); err != nil {
			logging.StoreWarn("migration failed: %s: %v", stmt, err)
			continue
		}
		logging.Store("applied migration: %s.%s", m.Table, m.Column)
	}
	return nil
}

func tableExists(db *sql.DB, table string) (bool, error) {
	var name string
	err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name = ?`, table).Scan(&name)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func columnExists(db *sql.DB, table, column string) (bool, error) {
	ok, err := tableExists(db, table)
	if err != nil || !ok {
		return false, err
	}
	rows, err := db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return false, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			cid       int
			name      string
			ctype     string
			notnull   int
			dfltValue interface{}
			pk        int
		)
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dfltValue, &pk); err != nil {
			return false, err
		}
		if name == column {
			return true, nil
		}
	}
	return false, rows.Err()
}
