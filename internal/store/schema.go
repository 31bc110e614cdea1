package store

// CurrentSchemaVersion is bumped whenever the projection tables change
// shape in a way that requires a full reindex (spec.md §4.7).
const CurrentSchemaVersion = 1

// schemaStatements creates the authoritative tables plus the
// supporting outbox/idempotency/write-ahead tables. Executed in order
// inside initialize(); each is idempotent via IF NOT EXISTS.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS files (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		extension TEXT NOT NULL,
		mime TEXT NOT NULL,
		author TEXT NOT NULL,
		size_bytes INTEGER NOT NULL,
		content_hash TEXT NOT NULL UNIQUE,
		created_utc TEXT NOT NULL,
		modified_utc TEXT NOT NULL,
		is_read_only INTEGER NOT NULL DEFAULT 0,
		version INTEGER NOT NULL DEFAULT 1
	)`,
	`CREATE TABLE IF NOT EXISTS file_validity (
		file_id TEXT PRIMARY KEY REFERENCES files(id) ON DELETE CASCADE,
		issued_at TEXT,
		valid_until TEXT,
		has_physical INTEGER NOT NULL DEFAULT 0,
		has_electronic INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS file_system_meta (
		file_id TEXT PRIMARY KEY REFERENCES files(id) ON DELETE CASCADE,
		attributes INTEGER NOT NULL DEFAULT 0,
		created_utc TEXT,
		modified_utc TEXT,
		accessed_utc TEXT,
		owner_sid TEXT,
		hard_links INTEGER NOT NULL DEFAULT 0,
		ads_count INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS file_ext_metadata (
		file_id TEXT NOT NULL REFERENCES files(id) ON DELETE CASCADE,
		format_id TEXT NOT NULL,
		property_id INTEGER NOT NULL,
		kind INTEGER NOT NULL,
		str_value TEXT,
		strs_value TEXT,
		u32_value INTEGER,
		i32_value INTEGER,
		f64_value REAL,
		bool_value INTEGER,
		uuid_value TEXT,
		time_value TEXT,
		bytes_value BLOB,
		PRIMARY KEY (file_id, format_id, property_id)
	)`,
	`CREATE TABLE IF NOT EXISTS file_search_state (
		file_id TEXT PRIMARY KEY REFERENCES files(id) ON DELETE CASCADE,
		schema_version INTEGER NOT NULL DEFAULT 0,
		is_stale INTEGER NOT NULL DEFAULT 1,
		last_indexed_utc TEXT,
		indexed_content_hash TEXT,
		indexed_title TEXT,
		analyzer_version INTEGER,
		token_hash TEXT
	)`,
	// file_search_map is the id-for-id shadow table the auditor diffs
	// against `files`; it exists independently of whichever full-text
	// backend (FTS5, trigram) is actually available so
	// integrity checks work even when a backend is absent.
	`CREATE TABLE IF NOT EXISTS file_search_map (
		file_id TEXT PRIMARY KEY,
		content_hash TEXT NOT NULL,
		token_hash TEXT NOT NULL,
		updated_utc TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS fts_write_ahead (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		file_id TEXT NOT NULL,
		op TEXT NOT NULL,
		content_hash TEXT,
		token_hash TEXT,
		enqueued_utc TEXT NOT NULL,
		attempts INTEGER NOT NULL DEFAULT 0,
		last_error TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS fts_write_ahead_dead_letter (
		seq INTEGER PRIMARY KEY,
		original_seq INTEGER NOT NULL,
		file_id TEXT NOT NULL,
		op TEXT NOT NULL,
		content_hash TEXT,
		token_hash TEXT,
		enqueued_utc TEXT NOT NULL,
		attempts INTEGER NOT NULL,
		dead_lettered_utc TEXT NOT NULL,
		error TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS outbox_events (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		type TEXT NOT NULL,
		payload_json TEXT NOT NULL,
		created_utc TEXT NOT NULL,
		processed_utc TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS idempotency_keys (
		request_id TEXT PRIMARY KEY,
		created_utc TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS search_favourites (
		name TEXT PRIMARY KEY,
		plan_json TEXT NOT NULL,
		created_utc TEXT NOT NULL
	)`,
}

var schemaIndexes = []string{
	`CREATE INDEX IF NOT EXISTS idx_files_modified_utc ON files(modified_utc)`,
	`CREATE INDEX IF NOT EXISTS idx_files_extension ON files(extension)`,
	`CREATE INDEX IF NOT EXISTS idx_search_state_stale ON file_search_state(is_stale)`,
	`CREATE INDEX IF NOT EXISTS idx_write_ahead_file ON fts_write_ahead(file_id)`,
	`CREATE INDEX IF NOT EXISTS idx_outbox_unprocessed ON outbox_events(processed_utc)`,
}

// ftsCreateStmt is run by probeSearchCapabilities, and the table exists
// only when the fts5 module is available. It is an ordinary FTS5 table
// that stores its own copy of each file's title and body (the copy
// that snippet() reads), not a contentless one.
const ftsCreateStmt = `CREATE VIRTUAL TABLE IF NOT EXISTS file_search_fts USING fts5(
	file_id UNINDEXED,
	title,
	body,
	tokenize = 'unicode61 remove_diacritics 2'
)`

// trigramCreateStmt probes trigram support. go-sqlite3 does not ship
// an FTS5 trigram tokenizer by default on every build tag, so trigram
// matching is implemented as a plain shadow table of 3-grams (see
// internal/emit/trigram.go) rather than relying on FTS5's trigram
// tokenizer extension, which this driver build may lack.
const trigramCreateStmt = `CREATE TABLE IF NOT EXISTS file_trigram (
	file_id TEXT NOT NULL,
	gram TEXT NOT NULL
)`

const trigramIndexStmt = `CREATE INDEX IF NOT EXISTS idx_file_trigram_gram ON file_trigram(gram)`
