// Package store wraps the embedded SQLite database: schema creation,
// migrations, capability probing for the FTS5/trigram search backends,
// and a mutex-guarded handle for the rest of the application to lease
// connections from. Structure follows the teacher's internal/store
// package (LocalStore wrapping *sql.DB behind a RWMutex, a detect*
// capability probe, timer-instrumented methods).
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"veriado/internal/logging"
)

// Capabilities records which full-text backends are usable against
// the open database. Probed once at startup (probeSearchCapabilities)
// because a go-sqlite3 build may have been compiled without the fts5
// build tag.
type Capabilities struct {
	FTS5    bool
	Trigram bool
}

// Store is the single writer handle onto the embedded database. All
// reads and writes funnel through here so the coordinator's
// max_parallelism bound and the store's own mutex compose correctly.
type Store struct {
	mu   sync.RWMutex
	db   *sql.DB
	path string
	caps Capabilities
}

// Open creates (if needed) the database file at path, applies schema
// and migrations, and probes search capabilities.
func Open(path string) (*Store, error) {
	timer := logging.StartTimer(logging.CategoryStore, "Open")
	defer timer.Stop()

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("store: create directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	// Single writer: embedded SQLite serializes writers regardless, but
	// capping Go-level concurrency avoids SQLITE_BUSY storms under the
	// indexing coordinator's worker pool.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: ping %s: %w", path, err)
	}

	s := &Store{db: db, path: path}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	logging.Store("opened database at %s (fts5=%v trigram=%v)", path, s.caps.FTS5, s.caps.Trigram)
	return s, nil
}

func (s *Store) initialize() error {
	for _, stmt := range schemaStatements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("store: schema statement failed: %w", err)
		}
	}
	for _, stmt := range schemaIndexes {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("store: index statement failed: %w", err)
		}
	}
	if err := runMigrations(s.db); err != nil {
		return err
	}
	s.caps = s.probeSearchCapabilities()
	return nil
}

// probeSearchCapabilities attempts to create each virtual/shadow
// search table and records which ones succeeded, mirroring the
// teacher's detectVecExtension pattern of attempting a CREATE VIRTUAL
// TABLE and downgrading to a bool flag on failure rather than treating
// it as fatal.
func (s *Store) probeSearchCapabilities() Capabilities {
	var caps Capabilities

	if _, err := s.db.Exec(ftsCreateStmt); err != nil {
		logging.StoreWarn("fts5 unavailable, falling back to trigram-only search: %v", err)
	} else {
		caps.FTS5 = true
	}

	if _, err := s.db.Exec(trigramCreateStmt); err != nil {
		logging.StoreWarn("trigram shadow table creation failed: %v", err)
	} else {
		if _, err := s.db.Exec(trigramIndexStmt); err != nil {
			logging.StoreWarn("trigram index creation failed: %v", err)
		} else {
			caps.Trigram = true
		}
	}

	return caps
}

// Capabilities returns which search backends are usable.
func (s *Store) Capabilities() Capabilities {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.caps
}

// DB returns the underlying handle for packages that need direct
// query access (search, audit). Callers must still respect lease
// semantics: hold RLock for reads, Lock for writes via WithTx.
func (s *Store) DB() *sql.DB {
	return s.db
}

// RLock/RUnlock expose the read lease directly for callers issuing
// plain (non-transactional) SELECTs.
func (s *Store) RLock()   { s.mu.RLock() }
func (s *Store) RUnlock() { s.mu.RUnlock() }

// WithTx runs fn inside a transaction, holding the store's write
// lock for the duration. Commits on nil return, rolls back otherwise,
// following the teacher's tx, err := db.Begin(); defer tx.Rollback()
// idiom.
func (s *Store) WithTx(fn func(tx *sql.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}
