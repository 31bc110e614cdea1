package model

import "time"

// SearchIndexState is the per-file projection-tracking state stored
// alongside the authoritative row. is_stale=false implies every
// indexed_* field is set (spec.md §3).
type SearchIndexState struct {
	SchemaVersion   int
	IsStale         bool
	LastIndexedUTC  *time.Time
	IndexedHash     string // indexed_content_hash
	IndexedTitle    string // indexed_title
	AnalyzerVersion *int   // nil means never confirmed with the richer contract
	TokenHash       string
}

// Confirm applies the richer ConfirmIndexed contract (schema_version,
// timestamp, analyzer_version, token_hash, normalized_title). This is
// the canonical path; see DESIGN.md Open Question 1.
func (s *SearchIndexState) Confirm(schemaVersion int, at time.Time, analyzerVersion int, tokenHash, normalizedTitle, contentHash string) {
	s.SchemaVersion = schemaVersion
	s.LastIndexedUTC = &at
	av := analyzerVersion
	s.AnalyzerVersion = &av
	s.TokenHash = tokenHash
	s.IndexedTitle = normalizedTitle
	s.IndexedHash = contentHash
	s.IsStale = false
}

// ConfirmLegacy applies the abbreviated (schema_version, timestamp)
// contract. Retained to model the legacy path named in spec.md §9; any
// row confirmed this way leaves AnalyzerVersion unset, which the
// auditor treats as drift on a non-stale row.
func (s *SearchIndexState) ConfirmLegacy(schemaVersion int, at time.Time) {
	s.SchemaVersion = schemaVersion
	s.LastIndexedUTC = &at
	s.IsStale = false
	// AnalyzerVersion, TokenHash, IndexedTitle deliberately left as-is:
	// the legacy contract never supplied them.
}

// MarkStale flags the row for reindex without touching the confirmed
// fields (the auditor/coordinator repopulate them on the next pass).
func (s *SearchIndexState) MarkStale() {
	s.IsStale = true
}
