// Package emit lowers a planner.SearchQueryPlan into backend-specific
// MATCH expressions: FTS5's boolean query syntax and a trigram
// equivalent for the fallback fuzzy backend (spec.md §4.4). Both
// emitters produce a single string bound as one MATCH parameter —
// never interpolated into the surrounding SQL — so there is no SQL
// injection surface regardless of what a user's free-text query
// contains.
package emit

import (
	"fmt"
	"strings"

	"veriado/internal/analyzer"
	"veriado/internal/planner"
)

// reservedFTS5Words must be quoted when they appear as bare terms,
// since FTS5's query grammar treats them as operators.
var reservedFTS5Words = map[string]struct{}{
	"and": {}, "or": {}, "not": {}, "near": {},
}

// EmitFTS5 renders plan as an FTS5 MATCH expression against a table
// with `title` and `body` columns. Every Term/Phrase leaf is run
// through profile before emission (spec.md §4.3): reserved words the
// analyzer finds already present in the leaf's raw text are dropped
// rather than OR'd in (so a user's literal "and"/"or" doesn't quietly
// become boolean syntax), while reserved words the analyzer introduces
// that weren't in the raw text are quoted and OR'd in alongside the
// surviving terms. Field-qualified nodes become column filters
// (`column:value`); range nodes are omitted here since FTS5 full-text
// queries have no notion of numeric ranges — the caller applies
// plan.Ranges as ordinary SQL WHERE predicates alongside the MATCH
// clause.
func EmitFTS5(plan *planner.SearchQueryPlan, profile *analyzer.Profile) (string, error) {
	if plan == nil || plan.Root == nil {
		return "", fmt.Errorf("emit: empty plan")
	}
	if plan.Root.Kind == planner.NodeRange {
		return "", fmt.Errorf("emit: range(%s) has no FTS5 MATCH representation", plan.Root.RangeField)
	}
	var b strings.Builder
	ok, err := emitFTS5Node(&b, plan.Root, profile)
	if err != nil {
		return "", err
	}
	if !ok {
		// Every leaf vanished under analysis (e.g. the whole query was
		// stopwords); spec.md §4.3's "empty plan after normalisation"
		// failure mode is not an error, just an empty MATCH expression.
		return "", nil
	}
	return b.String(), nil
}

func emitFTS5Node(b *strings.Builder, n *planner.QueryNode, profile *analyzer.Profile) (bool, error) {
	switch n.Kind {
	case planner.NodeTerm, planner.NodePhrase:
		rendered, ok := emitAnalyzedLeaf(n.Text, profile)
		if ok {
			b.WriteString(rendered)
		}
		return ok, nil
	case planner.NodeField:
		b.WriteString(sanitizeColumn(n.Field))
		b.WriteString(":")
		b.WriteString(quoteFTS5Term(n.Text))
		return true, nil
	case planner.NodeRange:
		// Ranges never translate into the MATCH string and are left out
		// here, like an empty child; a plan that is nothing but a range
		// is rejected up front in EmitFTS5, since an empty MATCH is not
		// valid FTS5.
		return false, nil
	case planner.NodeAnd:
		return emitFTS5Bool(b, n.Children, " AND ", profile)
	case planner.NodeOr:
		return emitFTS5Bool(b, n.Children, " OR ", profile)
	case planner.NodeNot:
		if len(n.Children) != 1 {
			return false, fmt.Errorf("emit: NOT node must have exactly one child")
		}
		var child strings.Builder
		ok, err := emitFTS5Child(&child, n.Children[0], profile)
		if err != nil {
			return false, err
		}
		if !ok {
			// Not(∅) = ∅, per spec.md §4.4's empty-child collapse rule.
			return false, nil
		}
		b.WriteString("NOT ")
		b.WriteString(child.String())
		return true, nil
	default:
		return false, fmt.Errorf("emit: unknown node kind %d", n.Kind)
	}
}

func emitFTS5Bool(b *strings.Builder, children []*planner.QueryNode, joiner string, profile *analyzer.Profile) (bool, error) {
	var rendered []string
	for _, c := range children {
		var child strings.Builder
		ok, err := emitFTS5Child(&child, c, profile)
		if err != nil {
			return false, err
		}
		if ok {
			rendered = append(rendered, child.String())
		}
	}
	if len(rendered) == 0 {
		// And(x, ∅) = x / Or(x, ∅) = x collapse all the way to empty
		// when every child vanished.
		return false, nil
	}
	b.WriteString(strings.Join(rendered, joiner))
	return true, nil
}

// emitFTS5Child parenthesizes compound children, and leaves that
// analysis expanded into an OR-list, so operator precedence in the
// emitted MATCH string matches the parsed tree regardless of FTS5's
// own default precedence.
func emitFTS5Child(b *strings.Builder, n *planner.QueryNode, profile *analyzer.Profile) (bool, error) {
	var inner strings.Builder
	ok, err := emitFTS5Node(&inner, n, profile)
	if err != nil || !ok {
		return ok, err
	}
	needsParens := n.Kind == planner.NodeAnd || n.Kind == planner.NodeOr ||
		((n.Kind == planner.NodeTerm || n.Kind == planner.NodePhrase) && strings.Contains(inner.String(), " OR "))
	if needsParens {
		b.WriteString("(")
	}
	b.WriteString(inner.String())
	if needsParens {
		b.WriteString(")")
	}
	return true, nil
}

// emitAnalyzedLeaf runs raw through profile and renders the surviving
// analyzed tokens as a single term, or an OR-list of terms when
// analysis splits raw into more than one (spec.md §4.4, Testable
// Scenarios S3/S4). The OR-list is returned without parentheses;
// emitFTS5Child adds them when the leaf sits under another operator.
// ok is false when nothing survives analysis.
func emitAnalyzedLeaf(raw string, profile *analyzer.Profile) (string, bool) {
	tokens := profile.Tokenize(raw)
	if len(tokens) == 0 {
		return "", false
	}
	kept := classifyAnalyzedTerms(raw, tokens)
	if len(kept) == 0 {
		return "", false
	}
	if len(kept) == 1 {
		return kept[0], true
	}
	return strings.Join(kept, " OR "), true
}

// classifyAnalyzedTerms renders each analyzed token, deduplicated in
// order of first appearance. A reserved word that also appears
// (case-insensitively) among raw's literal words is dropped from the
// OR-list, since the user typed it as ordinary text rather than
// intending boolean syntax; a reserved word the analyzer produced that
// raw never contained is quoted and kept. If every candidate is a
// raw-typed reserved word, dropping all of them would leave nothing to
// match, so they're kept (quoted) instead — a solitary reserved query
// like `"and"` still matches its literal text.
func classifyAnalyzedTerms(raw string, tokens []string) []string {
	rawWords := make(map[string]struct{}, len(tokens))
	for _, w := range analyzer.SplitWords(raw) {
		rawWords[strings.ToLower(w)] = struct{}{}
	}

	type candidate struct {
		text     string
		reserved bool
		inRaw    bool
	}
	seen := make(map[string]struct{}, len(tokens))
	var cands []candidate
	for _, t := range tokens {
		key := strings.ToLower(t)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		_, reserved := reservedFTS5Words[key]
		_, inRaw := rawWords[key]
		cands = append(cands, candidate{text: t, reserved: reserved, inRaw: inRaw})
	}

	render := func(c candidate) string {
		if c.reserved {
			return fmt.Sprintf(`"%s"`, escapeFTS5Quotes(c.text))
		}
		return quoteFTS5Term(c.text)
	}

	var kept []string
	for _, c := range cands {
		if c.reserved && c.inRaw {
			continue
		}
		kept = append(kept, render(c))
	}
	if len(kept) == 0 {
		for _, c := range cands {
			kept = append(kept, render(c))
		}
	}
	return kept
}

func quoteFTS5Term(term string) string {
	lower := strings.ToLower(term)
	if _, reserved := reservedFTS5Words[lower]; reserved {
		return fmt.Sprintf(`"%s"`, escapeFTS5Quotes(term))
	}
	if strings.ContainsAny(term, " \t\n()\"") {
		return fmt.Sprintf(`"%s"`, escapeFTS5Quotes(term))
	}
	return term
}

func escapeFTS5Quotes(s string) string {
	return strings.ReplaceAll(s, `"`, `""`)
}

// knownColumns maps each field qualifier the parser's knownFields
// whitelist recognizes to its FTS5 column name. The parser already
// refuses to build a NodeField for anything outside that whitelist
// (falling back to literal Term nodes instead), so by the time a field
// name reaches here it should always be one of these four; this map
// is the second line of defense, never trusting a NodeField.Field
// string to become part of the MATCH expression unchecked.
var knownColumns = map[string]string{
	"title": "title", "author": "author", "mime": "mime", "metadata_text": "metadata_text",
}

func sanitizeColumn(field string) string {
	if col, ok := knownColumns[strings.ToLower(field)]; ok {
		return col
	}
	return "title"
}
