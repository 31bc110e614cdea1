// Package search implements the query-facing half of the search
// subsystem: scored lookups over the FTS5 and trigram projections,
// capped counting, grid paging with faceting, and hit hydration with
// snippets. Composition style (a Service struct wired from a backing
// store plus functional options) follows
// other_examples/…amanmcp__internal-search-engine.go.go's Engine type.
package search

import (
	"time"

	"veriado/internal/model"
)

// ScoredID pairs a file with its backend-specific relevance score.
type ScoredID struct {
	FileID model.FileID
	Score  float64
}

// CountResult is the capped cardinality of a query, per spec.md §4.5.
type CountResult struct {
	Count       int
	IsTruncated bool
}

// HighlightSpan is a single character-offset match span within a
// hydrated hit's snippet.
type HighlightSpan struct {
	Start int
	End   int
}

// SearchHit is a fully hydrated search result: the matched file, a
// snippet with highlight spans, a handful of secondary display
// fields, and sort metadata.
type SearchHit struct {
	FileID          model.FileID
	Snippet         string
	Highlights      []HighlightSpan
	Secondary       map[string]string
	LastModifiedUTC time.Time
	NormalizedScore float64
	RawScore        float64
}

// GridParams are the structured (non-free-text) filters a grid view
// applies on top of (or instead of) a Match query: the commonly
// faceted File fields.
type GridParams struct {
	Extension string
	Author    string
	MIME      string
	ValidOnly bool // when true, only rows whose validity window covers Today
}

// SortKey is one ORDER BY term for a grid query. Field is validated
// against a fixed whitelist (see gridSortColumns) before ever reaching SQL.
type SortKey struct {
	Field      string
	Descending bool
}

// GridRequest parameterizes SearchGrid: an optional free-text Match
// clause, structured Params, a Sort order, a Today reference for
// validity-window filters, and the offset/limit/candidate_limit
// paging triple.
type GridRequest struct {
	Match          *string
	Params         GridParams
	Sort           []SortKey
	Today          time.Time
	Offset         int
	Limit          int
	CandidateLimit int
}

// PageResult is SearchGrid's return value; see spec.md §4.5 paging
// invariants (i)-(iv).
type PageResult struct {
	Items       []SearchHit
	Page        int
	PageSize    int
	TotalCount  int
	HasMore     bool
	IsTruncated bool
}
