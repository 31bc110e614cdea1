package search

import (
	"context"
	"fmt"
	"strings"

	"veriado/internal/analyzer"
	"veriado/internal/config"
	"veriado/internal/emit"
	"veriado/internal/logging"
	"veriado/internal/model"
	"veriado/internal/planner"
	"veriado/internal/store"
)

// Option configures a Service at construction time, following the
// functional-options pattern the pack's hybrid search engine example
// uses for its optional Classifier/Reranker/QueryExpander components.
type Option func(*Service)

// WithScoreWeights overrides the BM25/trigram/recency blend read from
// config by default.
func WithScoreWeights(cfg config.ScoreConfig) Option {
	return func(s *Service) { s.scoreWeights = cfg }
}

// Service executes search queries against the store's FTS5 and
// trigram projections.
type Service struct {
	st           *store.Store
	cfg          config.SearchConfig
	scoreWeights config.ScoreConfig
	profile      *analyzer.Profile
}

// New builds a Service backed by st, with defaults from cfg. profile is
// the analyzer pass applied to every query leaf before it's lowered to
// FTS5/trigram syntax, the same profile the indexing coordinator uses
// to build the projections being searched.
func New(st *store.Store, cfg config.SearchConfig, profile *analyzer.Profile, opts ...Option) *Service {
	s := &Service{st: st, cfg: cfg, scoreWeights: cfg.Score, profile: profile}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// rangeColumns whitelists which range(field,...) names translate to
// which `files` columns, so a user-controlled field name never reaches
// SQL as anything but a fixed, known-safe identifier.
var rangeColumns = map[string]string{
	"size_bytes":   "f.size_bytes",
	"created_utc":  "f.created_utc",
	"modified_utc": "f.modified_utc",
}

// buildRangeSQL lowers plan.Ranges into bound SQL predicates. Each side
// of a range is independently optional (spec.md §3's lower?/upper?),
// with per-side inclusivity honored via the comparison operator
// instead of always emitting BETWEEN, which only ever expressed the
// two-sided-inclusive case.
func buildRangeSQL(ranges []*planner.QueryNode) (string, []interface{}, error) {
	var clauses []string
	var args []interface{}
	for _, r := range ranges {
		col, ok := rangeColumns[r.RangeField]
		if !ok {
			return "", nil, model.Validation("search.buildRangeSQL", fmt.Errorf("unsupported range field %q", r.RangeField))
		}
		if r.Low == nil && r.High == nil {
			return "", nil, model.Validation("search.buildRangeSQL", fmt.Errorf("range(%s) has no bounds", r.RangeField))
		}
		if r.Low != nil {
			op := ">="
			if !r.IncludeLower {
				op = ">"
			}
			clauses = append(clauses, fmt.Sprintf("%s %s ?", col, op))
			args = append(args, *r.Low)
		}
		if r.High != nil {
			op := "<="
			if !r.IncludeUpper {
				op = "<"
			}
			clauses = append(clauses, fmt.Sprintf("%s %s ?", col, op))
			args = append(args, *r.High)
		}
	}
	if len(clauses) == 0 {
		return "", nil, nil
	}
	return " AND " + strings.Join(clauses, " AND "), args, nil
}

// SearchWithScores runs plan's FTS5 MATCH, applies any range filters
// in SQL, and orders by BM25-derived score descending then
// modified_utc descending, returning the window [skip, skip+take).
func (s *Service) SearchWithScores(ctx context.Context, plan *planner.SearchQueryPlan, skip, take int) ([]ScoredID, error) {
	timer := logging.StartTimer(logging.CategorySearch, "SearchWithScores")
	defer timer.Stop()

	if !s.st.Capabilities().FTS5 {
		return nil, model.SchemaUnavailable("search.SearchWithScores", fmt.Errorf("fts5 backend unavailable"))
	}

	matchExpr, err := emit.EmitFTS5(plan, s.profile)
	if err != nil {
		return nil, model.Validation("search.SearchWithScores", err)
	}
	rangeSQL, rangeArgs, err := buildRangeSQL(plan.Ranges)
	if err != nil {
		return nil, err
	}

	query := `SELECT f.id, -bm25(file_search_fts) AS score
	          FROM file_search_fts
	          JOIN files f ON f.id = file_search_fts.file_id
	          WHERE file_search_fts MATCH ?` + rangeSQL + `
	          ORDER BY score DESC, f.modified_utc DESC
	          LIMIT ? OFFSET ?`

	args := append([]interface{}{matchExpr}, rangeArgs...)
	args = append(args, take, skip)

	s.st.RLock()
	rows, err := s.st.DB().QueryContext(ctx, query, args...)
	s.st.RUnlock()
	if err != nil {
		return nil, model.Transient("search.SearchWithScores", err)
	}
	defer rows.Close()

	var out []ScoredID
	for rows.Next() {
		var idStr string
		var score float64
		if err := rows.Scan(&idStr, &score); err != nil {
			return nil, model.Transient("search.SearchWithScores", err)
		}
		id, err := model.ParseFileID(idStr)
		if err != nil {
			return nil, err
		}
		out = append(out, ScoredID{FileID: id, Score: score})
	}
	return out, rows.Err()
}

// SearchFuzzyWithScores runs plan over the trigram index, scoring by
// normalized trigram overlap between the query's full raw text and
// each candidate file's content.
func (s *Service) SearchFuzzyWithScores(ctx context.Context, plan *planner.SearchQueryPlan, skip, take int) ([]ScoredID, error) {
	timer := logging.StartTimer(logging.CategorySearch, "SearchFuzzyWithScores")
	defer timer.Stop()

	if !s.st.Capabilities().Trigram {
		return nil, model.SchemaUnavailable("search.SearchFuzzyWithScores", fmt.Errorf("trigram backend unavailable"))
	}

	predicate, err := emit.EmitTrigramMatch(plan, s.profile)
	if err != nil {
		return nil, model.Validation("search.SearchFuzzyWithScores", err)
	}
	queryGrams := emit.EmitTrigramIndexEntry(plan.RawText)
	if len(queryGrams) == 0 {
		return nil, model.Validation("search.SearchFuzzyWithScores", fmt.Errorf("empty query"))
	}

	placeholders := make([]string, len(queryGrams))
	gramArgs := make([]interface{}, len(queryGrams))
	for i, g := range queryGrams {
		placeholders[i] = "?"
		gramArgs[i] = g
	}

	query := fmt.Sprintf(`SELECT f.id, COUNT(DISTINCT t.gram) AS overlap
	          FROM files f
	          JOIN file_trigram t ON t.file_id = f.id
	          WHERE (%s) AND t.gram IN (%s)
	          GROUP BY f.id
	          ORDER BY overlap DESC, f.modified_utc DESC
	          LIMIT ? OFFSET ?`, predicate.Expr, strings.Join(placeholders, ","))

	args := append([]interface{}{}, predicate.Args...)
	args = append(args, gramArgs...)
	args = append(args, take, skip)

	s.st.RLock()
	rows, err := s.st.DB().QueryContext(ctx, query, args...)
	s.st.RUnlock()
	if err != nil {
		return nil, model.Transient("search.SearchFuzzyWithScores", err)
	}
	defer rows.Close()

	total := float64(len(queryGrams))
	var out []ScoredID
	for rows.Next() {
		var idStr string
		var overlap int
		if err := rows.Scan(&idStr, &overlap); err != nil {
			return nil, model.Transient("search.SearchFuzzyWithScores", err)
		}
		id, err := model.ParseFileID(idStr)
		if err != nil {
			return nil, err
		}
		out = append(out, ScoredID{FileID: id, Score: float64(overlap) / total})
	}
	return out, rows.Err()
}

// Count returns plan's cardinality, capped at
// config.Search.MaxCandidateResults; IsTruncated reports whether the
// cap was reached.
func (s *Service) Count(ctx context.Context, plan *planner.SearchQueryPlan) (CountResult, error) {
	timer := logging.StartTimer(logging.CategorySearch, "Count")
	defer timer.Stop()

	if !s.st.Capabilities().FTS5 {
		return CountResult{}, model.SchemaUnavailable("search.Count", fmt.Errorf("fts5 backend unavailable"))
	}

	matchExpr, err := emit.EmitFTS5(plan, s.profile)
	if err != nil {
		return CountResult{}, model.Validation("search.Count", err)
	}
	rangeSQL, rangeArgs, err := buildRangeSQL(plan.Ranges)
	if err != nil {
		return CountResult{}, err
	}

	capLimit := s.cfg.MaxCandidateResults
	query := `SELECT f.id FROM file_search_fts
	          JOIN files f ON f.id = file_search_fts.file_id
	          WHERE file_search_fts MATCH ?` + rangeSQL + `
	          LIMIT ?`

	args := append([]interface{}{matchExpr}, rangeArgs...)
	args = append(args, capLimit+1)

	s.st.RLock()
	rows, err := s.st.DB().QueryContext(ctx, query, args...)
	s.st.RUnlock()
	if err != nil {
		return CountResult{}, model.Transient("search.Count", err)
	}
	defer rows.Close()

	n := 0
	for rows.Next() {
		n++
	}
	if err := rows.Err(); err != nil {
		return CountResult{}, model.Transient("search.Count", err)
	}

	if n > capLimit {
		return CountResult{Count: capLimit, IsTruncated: true}, nil
	}
	return CountResult{Count: n, IsTruncated: false}, nil
}

