package search

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"veriado/internal/emit"
	"veriado/internal/logging"
	"veriado/internal/model"
	"veriado/internal/planner"
)

// snippetOpen/snippetClose bracket the highlighted runs inside the
// string FTS5's snippet() function returns; they're stripped back out
// while recording their rune offsets as HighlightSpans.
const (
	snippetOpen  = "\x01"
	snippetClose = "\x02"
)

// splitSnippetHighlights strips the snippetOpen/snippetClose markers
// from raw, returning the plain text plus the rune-offset span of each
// marked run.
func splitSnippetHighlights(raw string) (string, []HighlightSpan) {
	var b strings.Builder
	var spans []HighlightSpan
	start := -1
	runeIdx := 0

	// The markers are single-byte ASCII control chars, so they never
	// collide with a multi-byte rune boundary.
	i := 0
	for i < len(raw) {
		switch {
		case strings.HasPrefix(raw[i:], snippetOpen):
			start = runeIdx
			i++
		case strings.HasPrefix(raw[i:], snippetClose):
			if start >= 0 {
				spans = append(spans, HighlightSpan{Start: start, End: runeIdx})
				start = -1
			}
			i++
		default:
			r, size := utf8.DecodeRuneInString(raw[i:])
			b.WriteRune(r)
			i += size
			runeIdx++
		}
	}
	return b.String(), spans
}

// Search hydrates plan's FTS5 matches into display-ready hits: a
// snippet of the body field with character-offset highlight spans, a
// secondary field map, and sort metadata. Scores are min-max
// normalised across the returned page into [0,1].
func (s *Service) Search(ctx context.Context, plan *planner.SearchQueryPlan, limit int) ([]SearchHit, error) {
	timer := logging.StartTimer(logging.CategorySearch, "Search")
	defer timer.Stop()

	if limit <= 0 || limit > s.cfg.MaxPageSize {
		limit = s.cfg.MaxPageSize
	}

	if !s.st.Capabilities().FTS5 {
		return nil, model.SchemaUnavailable("search.Search", fmt.Errorf("fts5 backend unavailable"))
	}

	matchExpr, err := emit.EmitFTS5(plan, s.profile)
	if err != nil {
		return nil, model.Validation("search.Search", err)
	}
	rangeSQL, rangeArgs, err := buildRangeSQL(plan.Ranges)
	if err != nil {
		return nil, err
	}

	query := `SELECT f.id, f.author, f.extension, f.mime, f.modified_utc,
	          -bm25(file_search_fts) AS score,
	          snippet(file_search_fts, 2, ?, ?, '...', 12)
	          FROM file_search_fts
	          JOIN files f ON f.id = file_search_fts.file_id
	          WHERE file_search_fts MATCH ?` + rangeSQL + `
	          ORDER BY score DESC, f.modified_utc DESC
	          LIMIT ?`

	args := []interface{}{snippetOpen, snippetClose, matchExpr}
	args = append(args, rangeArgs...)
	args = append(args, limit)

	s.st.RLock()
	rows, err := s.st.DB().QueryContext(ctx, query, args...)
	s.st.RUnlock()
	if err != nil {
		return nil, model.Transient("search.Search", err)
	}
	defer rows.Close()

	type raw struct {
		hit      SearchHit
		rawScore float64
	}
	var collected []raw
	minScore, maxScore := 0.0, 0.0
	first := true
	for rows.Next() {
		var idStr, author, ext, mime, modified, snip string
		var score float64
		if err := rows.Scan(&idStr, &author, &ext, &mime, &modified, &score, &snip); err != nil {
			return nil, model.Transient("search.Search", err)
		}
		id, err := model.ParseFileID(idStr)
		if err != nil {
			return nil, err
		}
		modTime, _ := time.Parse(time.RFC3339Nano, modified)
		plainSnippet, spans := splitSnippetHighlights(snip)

		collected = append(collected, raw{
			hit: SearchHit{
				FileID:          id,
				Snippet:         plainSnippet,
				Highlights:      spans,
				LastModifiedUTC: modTime,
				RawScore:        score,
				Secondary: map[string]string{
					"author":    author,
					"extension": ext,
					"mime":      mime,
				},
			},
			rawScore: score,
		})
		if first || score < minScore {
			minScore = score
		}
		if first || score > maxScore {
			maxScore = score
		}
		first = false
	}
	if err := rows.Err(); err != nil {
		return nil, model.Transient("search.Search", err)
	}

	spread := maxScore - minScore
	out := make([]SearchHit, len(collected))
	for i, c := range collected {
		h := c.hit
		if spread > 0 {
			h.NormalizedScore = (c.rawScore - minScore) / spread
		} else if len(collected) > 0 {
			h.NormalizedScore = 1
		}
		out[i] = h
	}
	return out, nil
}
