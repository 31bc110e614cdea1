package search

import (
	"context"
	"fmt"
	"strings"
	"time"

	"veriado/internal/emit"
	"veriado/internal/logging"
	"veriado/internal/model"
	"veriado/internal/planner"
	"veriado/internal/telemetry"
)

// gridSortColumns whitelists the grid's ORDER BY fields.
var gridSortColumns = map[string]string{
	"modified_utc": "f.modified_utc",
	"created_utc":  "f.created_utc",
	"size_bytes":   "f.size_bytes",
	"name":         "f.name",
}

func buildGridSort(keys []SortKey) string {
	if len(keys) == 0 {
		return "f.modified_utc DESC"
	}
	var terms []string
	for _, k := range keys {
		col, ok := gridSortColumns[k.Field]
		if !ok {
			continue
		}
		dir := "ASC"
		if k.Descending {
			dir = "DESC"
		}
		terms = append(terms, col+" "+dir)
	}
	if len(terms) == 0 {
		return "f.modified_utc DESC"
	}
	return strings.Join(terms, ", ")
}

func buildGridWhere(req GridRequest) (string, []interface{}) {
	var clauses []string
	var args []interface{}

	if req.Params.Extension != "" {
		clauses = append(clauses, "f.extension = ?")
		args = append(args, req.Params.Extension)
	}
	if req.Params.Author != "" {
		clauses = append(clauses, "f.author = ?")
		args = append(args, req.Params.Author)
	}
	if req.Params.MIME != "" {
		clauses = append(clauses, "f.mime = ?")
		args = append(args, req.Params.MIME)
	}
	if req.Params.ValidOnly {
		today := req.Today.UTC().Format(time.RFC3339Nano)
		clauses = append(clauses, "v.issued_at IS NOT NULL AND v.issued_at <= ? AND (v.valid_until IS NULL OR v.valid_until >= ?)")
		args = append(args, today, today)
	}

	if len(clauses) == 0 {
		return "", args
	}
	return " AND " + strings.Join(clauses, " AND "), args
}

// SearchGrid runs the combined match + structured-filter pipeline and
// returns a page satisfying the invariants of spec.md §4.5: items.len
// <= limit, total_count = min(actual_total, max_candidate_results),
// has_more iff offset+items.len < total_count, is_truncated iff
// actual_total > max_candidate_results.
func (s *Service) SearchGrid(ctx context.Context, req GridRequest) (PageResult, error) {
	timer := logging.StartTimer(logging.CategorySearch, "SearchGrid")
	defer timer.Stop()

	limit := req.Limit
	if limit <= 0 || limit > s.cfg.MaxPageSize {
		limit = s.cfg.MaxPageSize
	}
	maxCandidates := s.cfg.MaxCandidateResults
	candidateLimit := req.CandidateLimit
	if candidateLimit <= 0 || candidateLimit > maxCandidates {
		candidateLimit = maxCandidates
	}

	var matchExpr string
	useFTS := req.Match != nil && strings.TrimSpace(*req.Match) != ""
	var plan *planner.SearchQueryPlan
	if useFTS {
		if !s.st.Capabilities().FTS5 {
			return PageResult{}, model.SchemaUnavailable("search.SearchGrid", fmt.Errorf("fts5 backend unavailable"))
		}
		var err error
		plan, err = planner.Parse(*req.Match)
		if err != nil {
			return PageResult{}, model.Validation("search.SearchGrid", err)
		}
		matchExpr, err = emit.EmitFTS5(plan, s.profile)
		if err != nil {
			return PageResult{}, model.Validation("search.SearchGrid", err)
		}
	}

	whereExtra, whereArgs := buildGridWhere(req)
	var rangeSQL string
	var rangeArgs []interface{}
	if plan != nil {
		var err error
		rangeSQL, rangeArgs, err = buildRangeSQL(plan.Ranges)
		if err != nil {
			return PageResult{}, err
		}
	}

	from := "files f LEFT JOIN file_validity v ON v.file_id = f.id"
	where := "1=1"
	args := []interface{}{}
	if useFTS {
		from = "file_search_fts JOIN files f ON f.id = file_search_fts.file_id LEFT JOIN file_validity v ON v.file_id = f.id"
		where = "file_search_fts MATCH ?"
		args = append(args, matchExpr)
	}
	where += rangeSQL + whereExtra
	args = append(args, rangeArgs...)
	args = append(args, whereArgs...)

	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM (SELECT f.id FROM %s WHERE %s LIMIT ?) t`, from, where)
	countArgs := append(append([]interface{}{}, args...), candidateLimit+1)

	s.st.RLock()
	var actualTotal int
	err := s.st.DB().QueryRowContext(ctx, countQuery, countArgs...).Scan(&actualTotal)
	s.st.RUnlock()
	if err != nil {
		return PageResult{}, model.Transient("search.SearchGrid", err)
	}

	isTruncated := actualTotal > maxCandidates
	totalCount := actualTotal
	if totalCount > maxCandidates {
		totalCount = maxCandidates
	}

	sortSQL := buildGridSort(req.Sort)
	pageQuery := fmt.Sprintf(
		`SELECT f.id, f.author, f.extension, f.mime, f.modified_utc
		 FROM %s WHERE %s ORDER BY %s LIMIT ? OFFSET ?`,
		from, where, sortSQL,
	)
	pageArgs := append(append([]interface{}{}, args...), limit, req.Offset)

	s.st.RLock()
	rows, err := s.st.DB().QueryContext(ctx, pageQuery, pageArgs...)
	s.st.RUnlock()
	if err != nil {
		return PageResult{}, model.Transient("search.SearchGrid", err)
	}
	defer rows.Close()

	var items []SearchHit
	for rows.Next() {
		var idStr, author, ext, mime, modified string
		if err := rows.Scan(&idStr, &author, &ext, &mime, &modified); err != nil {
			return PageResult{}, model.Transient("search.SearchGrid", err)
		}
		id, err := model.ParseFileID(idStr)
		if err != nil {
			return PageResult{}, err
		}
		modTime, _ := time.Parse(time.RFC3339Nano, modified)
		items = append(items, SearchHit{
			FileID:          id,
			LastModifiedUTC: modTime,
			Secondary: map[string]string{
				"author":    author,
				"extension": ext,
				"mime":      mime,
			},
		})
	}
	if err := rows.Err(); err != nil {
		return PageResult{}, model.Transient("search.SearchGrid", err)
	}

	hasMore := req.Offset+len(items) < totalCount
	page := 0
	if limit > 0 {
		page = req.Offset / limit
	}

	telemetry.RecordGridQuery(actualTotal, maxCandidates)
	logging.SearchDebug(
		"grid offset=%d page_size=%d candidate_limit=%d max_candidate_results=%d returned=%d reported_total=%d actual_total=%d has_more=%t is_truncated=%t",
		req.Offset, limit, candidateLimit, maxCandidates, len(items), totalCount, actualTotal, hasMore, isTruncated,
	)

	return PageResult{
		Items:       items,
		Page:        page,
		PageSize:    limit,
		TotalCount:  totalCount,
		HasMore:     hasMore,
		IsTruncated: isTruncated,
	}, nil
}
