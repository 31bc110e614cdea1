package planner

// NodeKind discriminates the variants of QueryNode.
type NodeKind int

const (
	NodeTerm NodeKind = iota
	NodePhrase
	NodeField
	NodeRange
	NodeAnd
	NodeOr
	NodeNot
)

// QueryNode is one node of the boolean expression tree a query string
// parses into. Leaf kinds (Term, Phrase, Field, Range) carry their
// data in the scalar fields; the boolean kinds (And, Or, Not) carry
// children in Children.
type QueryNode struct {
	Kind NodeKind `json:"kind"`

	// Term/Phrase/Field
	Text  string `json:"text,omitempty"`
	Field string `json:"field,omitempty"`

	// Range. Low/High are nil when that side is unbounded (spec.md
	// §3's RangeFilters schema); IncludeLower/IncludeUpper are only
	// meaningful for a present bound.
	RangeField   string  `json:"range_field,omitempty"`
	RangeKind    string  `json:"range_kind,omitempty"`
	Low          *string `json:"low,omitempty"`
	High         *string `json:"high,omitempty"`
	IncludeLower bool    `json:"include_lower,omitempty"`
	IncludeUpper bool    `json:"include_upper,omitempty"`

	// And/Or/Not
	Children []*QueryNode `json:"children,omitempty"`
}

// Term constructs a bare word node.
func Term(text string) *QueryNode { return &QueryNode{Kind: NodeTerm, Text: text} }

// Phrase constructs a quoted-phrase node.
func Phrase(text string) *QueryNode { return &QueryNode{Kind: NodePhrase, Text: text} }

// Field constructs a field:value node.
func Field(field, text string) *QueryNode { return &QueryNode{Kind: NodeField, Field: field, Text: text} }

// RangeFilter constructs a range(field,...) node. low/high may be nil
// to leave that side unbounded; includeLower/includeUpper control
// per-side inclusivity for whichever bounds are present.
func RangeFilter(field, valueKind string, low, high *string, includeLower, includeUpper bool) *QueryNode {
	return &QueryNode{
		Kind: NodeRange, RangeField: field, RangeKind: valueKind,
		Low: low, High: high, IncludeLower: includeLower, IncludeUpper: includeUpper,
	}
}

// And combines children under conjunction, flattening nested And nodes
// so the tree stays shallow and idempotent under re-parsing.
func And(children ...*QueryNode) *QueryNode { return flatten(NodeAnd, children) }

// Or combines children under disjunction.
func Or(children ...*QueryNode) *QueryNode { return flatten(NodeOr, children) }

// Not negates a single child.
func Not(child *QueryNode) *QueryNode { return &QueryNode{Kind: NodeNot, Children: []*QueryNode{child}} }

func flatten(kind NodeKind, children []*QueryNode) *QueryNode {
	flat := make([]*QueryNode, 0, len(children))
	for _, c := range children {
		if c == nil {
			continue
		}
		if c.Kind == kind {
			flat = append(flat, c.Children...)
			continue
		}
		flat = append(flat, c)
	}
	if len(flat) == 1 {
		return flat[0]
	}
	return &QueryNode{Kind: kind, Children: flat}
}

// SearchQueryPlan is the parsed, ready-to-emit form of a search query:
// the boolean tree plus any standalone range filters pulled out for
// backends (like the trigram emitter) that apply them outside the
// MATCH expression.
type SearchQueryPlan struct {
	Root    *QueryNode   `json:"root"`
	Ranges  []*QueryNode `json:"ranges,omitempty"`
	RawText string       `json:"raw_text"`
}

// Equal reports deep structural equality, used by the idempotence
// property test (parsing the same text twice yields equal trees).
func (n *QueryNode) Equal(other *QueryNode) bool {
	if n == nil || other == nil {
		return n == other
	}
	if n.Kind != other.Kind || n.Text != other.Text || n.Field != other.Field ||
		n.RangeField != other.RangeField || n.RangeKind != other.RangeKind ||
		!strPtrEqual(n.Low, other.Low) || !strPtrEqual(n.High, other.High) ||
		n.IncludeLower != other.IncludeLower || n.IncludeUpper != other.IncludeUpper {
		return false
	}
	if len(n.Children) != len(other.Children) {
		return false
	}
	for i := range n.Children {
		if !n.Children[i].Equal(other.Children[i]) {
			return false
		}
	}
	return true
}

func strPtrEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
