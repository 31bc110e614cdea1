package emit

import (
	"fmt"
	"strings"

	"veriado/internal/analyzer"
	"veriado/internal/planner"
)

// EmitTrigramIndexEntry returns the set of distinct, lowercased
// 3-character grams covering text, padded with a boundary marker so
// short (1-2 char) words still produce at least one gram. Used by the
// projection layer to populate file_trigram rows.
func EmitTrigramIndexEntry(text string) []string {
	padded := "\x02" + strings.ToLower(text) + "\x03"
	runes := []rune(padded)
	if len(runes) < 3 {
		return []string{string(runes)}
	}
	seen := make(map[string]struct{})
	var grams []string
	for i := 0; i+3 <= len(runes); i++ {
		g := string(runes[i : i+3])
		if _, ok := seen[g]; !ok {
			seen[g] = struct{}{}
			grams = append(grams, g)
		}
	}
	return grams
}

// TrigramPredicate is a SQL boolean expression over file_trigram plus
// its positional bind arguments, ready to splice into a WHERE clause
// (e.g. `WHERE <Expr>`) alongside ORDER BY/LIMIT.
type TrigramPredicate struct {
	Expr string
	Args []interface{}
}

// EmitTrigramMatch lowers plan into a TrigramPredicate. Every leaf
// (Term/Phrase/Field) is first run through profile (same analyzer
// pass the FTS5 emitter uses); each surviving analyzed token becomes
// its own `file_id IN (SELECT ...)` subquery requiring every gram of
// that token to co-occur against the same file_id, ANDed together so
// a leaf that analyzes into several words still requires all of them.
// Unlike the FTS5 emitter, there's no MATCH grammar here for a
// reserved word to collide with — grams are always bound parameters,
// never interpolated into the query text — so every surviving token is
// treated identically regardless of whether it's reserved or whether
// it came from raw input. And/Or/Not recombine subqueries with the
// matching SQL boolean operator. A range node anywhere in the plan is
// an error here: the trigram predicate has no range form, and range
// filters are not applied on the trigram search path.
func EmitTrigramMatch(plan *planner.SearchQueryPlan, profile *analyzer.Profile) (*TrigramPredicate, error) {
	if plan == nil || plan.Root == nil {
		return nil, fmt.Errorf("emit: empty plan")
	}
	return emitTrigramNode(plan.Root, profile)
}

func emitTrigramNode(n *planner.QueryNode, profile *analyzer.Profile) (*TrigramPredicate, error) {
	switch n.Kind {
	case planner.NodeTerm, planner.NodePhrase, planner.NodeField:
		return emitTrigramAnalyzedLeaf(n.Text, profile)
	case planner.NodeRange:
		return nil, fmt.Errorf("emit: range(%s) has no trigram representation", n.RangeField)
	case planner.NodeAnd:
		return emitTrigramBool(n.Children, " AND ", profile)
	case planner.NodeOr:
		return emitTrigramBool(n.Children, " OR ", profile)
	case planner.NodeNot:
		if len(n.Children) != 1 {
			return nil, fmt.Errorf("emit: NOT node must have exactly one child")
		}
		child, err := emitTrigramNode(n.Children[0], profile)
		if err != nil {
			return nil, err
		}
		return &TrigramPredicate{Expr: "NOT (" + child.Expr + ")", Args: child.Args}, nil
	default:
		return nil, fmt.Errorf("emit: unknown node kind %d", n.Kind)
	}
}

// emitTrigramAnalyzedLeaf tokenizes raw via profile and ANDs together
// one trigram subquery per surviving token, so a multi-word leaf (a
// quoted phrase, or a field value) requires every one of its analyzed
// words rather than trigram-matching the whole string as one unit.
func emitTrigramAnalyzedLeaf(raw string, profile *analyzer.Profile) (*TrigramPredicate, error) {
	tokens := profile.Tokenize(raw)
	if len(tokens) == 0 {
		return nil, fmt.Errorf("emit: empty trigram term")
	}
	var exprs []string
	var args []interface{}
	for _, t := range tokens {
		p, err := emitTrigramLeaf(t)
		if err != nil {
			return nil, err
		}
		exprs = append(exprs, "("+p.Expr+")")
		args = append(args, p.Args...)
	}
	return &TrigramPredicate{Expr: strings.Join(exprs, " AND "), Args: args}, nil
}

func emitTrigramLeaf(text string) (*TrigramPredicate, error) {
	grams := EmitTrigramIndexEntry(text)
	if len(grams) == 0 {
		return nil, fmt.Errorf("emit: empty trigram term")
	}
	placeholders := make([]string, len(grams))
	args := make([]interface{}, len(grams)+1)
	for i, g := range grams {
		placeholders[i] = "?"
		args[i] = g
	}
	args[len(grams)] = len(grams)

	expr := fmt.Sprintf(
		"file_id IN (SELECT file_id FROM file_trigram WHERE gram IN (%s) GROUP BY file_id HAVING COUNT(DISTINCT gram) = ?)",
		strings.Join(placeholders, ","),
	)
	return &TrigramPredicate{Expr: expr, Args: args}, nil
}

func emitTrigramBool(children []*planner.QueryNode, joiner string, profile *analyzer.Profile) (*TrigramPredicate, error) {
	var exprs []string
	var args []interface{}
	for _, c := range children {
		p, err := emitTrigramNode(c, profile)
		if err != nil {
			return nil, err
		}
		exprs = append(exprs, "("+p.Expr+")")
		args = append(args, p.Args...)
	}
	return &TrigramPredicate{Expr: strings.Join(exprs, joiner), Args: args}, nil
}
