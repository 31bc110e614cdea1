package search

import (
	"context"
	"fmt"
	"strings"

	"veriado/internal/emit"
	"veriado/internal/logging"
	"veriado/internal/model"
	"veriado/internal/planner"
)

// facetColumns whitelists which grid/match fields can be faceted on.
var facetColumns = map[string]string{
	"extension": "f.extension",
	"author":    "f.author",
	"mime":      "f.mime",
}

// FacetRequest asks for the top MaxValues distinct values of Field
// (and their counts) among plan's matches.
type FacetRequest struct {
	Field     string
	MaxValues int
}

// FacetResult is one distinct value and its candidate-set count.
type FacetResult struct {
	Value string
	Count int
}

// ComputeFacets groups plan's candidate id set (post-filter, pre-page)
// by req.Field, the grid faceting spec.md §2/§4.3 mention but never
// detail the mechanics of.
func (s *Service) ComputeFacets(ctx context.Context, plan *planner.SearchQueryPlan, req FacetRequest) ([]FacetResult, error) {
	timer := logging.StartTimer(logging.CategorySearch, "ComputeFacets")
	defer timer.Stop()

	col, ok := facetColumns[req.Field]
	if !ok {
		return nil, model.Validation("search.ComputeFacets", fmt.Errorf("unsupported facet field %q", req.Field))
	}
	maxValues := req.MaxValues
	if maxValues <= 0 {
		maxValues = 20
	}

	from := "files f"
	where := "1=1"
	args := []interface{}{}
	if plan != nil && strings.TrimSpace(plan.RawText) != "" {
		if !s.st.Capabilities().FTS5 {
			return nil, model.SchemaUnavailable("search.ComputeFacets", fmt.Errorf("fts5 backend unavailable"))
		}
		matchExpr, err := emit.EmitFTS5(plan, s.profile)
		if err != nil {
			return nil, model.Validation("search.ComputeFacets", err)
		}
		from = "file_search_fts JOIN files f ON f.id = file_search_fts.file_id"
		where = "file_search_fts MATCH ?"
		args = append(args, matchExpr)

		rangeSQL, rangeArgs, err := buildRangeSQL(plan.Ranges)
		if err != nil {
			return nil, err
		}
		where += rangeSQL
		args = append(args, rangeArgs...)
	}

	query := fmt.Sprintf(
		`SELECT %s AS value, COUNT(*) AS n FROM %s WHERE %s
		 GROUP BY value ORDER BY n DESC, value ASC LIMIT ?`,
		col, from, where,
	)
	args = append(args, maxValues)

	s.st.RLock()
	rows, err := s.st.DB().QueryContext(ctx, query, args...)
	s.st.RUnlock()
	if err != nil {
		return nil, model.Transient("search.ComputeFacets", err)
	}
	defer rows.Close()

	var out []FacetResult
	for rows.Next() {
		var r FacetResult
		if err := rows.Scan(&r.Value, &r.Count); err != nil {
			return nil, model.Transient("search.ComputeFacets", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
