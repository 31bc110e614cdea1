package planner

// Builder assembles a SearchQueryPlan programmatically, for callers
// (favourite searches, the grid facade) that construct a query from
// structured parameters rather than parsing free text.
type Builder struct {
	root *QueryNode
}

// NewBuilder starts an empty builder.
func NewBuilder() *Builder { return &Builder{} }

// And combines the builder's current root with additional nodes under
// conjunction.
func (b *Builder) And(nodes ...*QueryNode) *Builder {
	b.root = And(append([]*QueryNode{b.root}, nodes...)...)
	return b
}

// Or combines the builder's current root with additional nodes under
// disjunction.
func (b *Builder) Or(nodes ...*QueryNode) *Builder {
	b.root = Or(append([]*QueryNode{b.root}, nodes...)...)
	return b
}

// Not wraps the builder's current root in negation.
func (b *Builder) Not() *Builder {
	if b.root == nil {
		return b
	}
	b.root = Not(b.root)
	return b
}

// Term sets the root to a bare term node if empty, otherwise ANDs it in.
func (b *Builder) Term(text string) *Builder { return b.add(Term(text)) }

// Phrase sets the root to a quoted-phrase node if empty, otherwise
// ANDs it in.
func (b *Builder) Phrase(text string) *Builder { return b.add(Phrase(text)) }

// Field sets the root to a field:value node if empty, otherwise ANDs
// it in.
func (b *Builder) Field(field, text string) *Builder { return b.add(Field(field, text)) }

// Range sets the root to a range(field,...) node if empty, otherwise
// ANDs it in. Either bound may be nil to leave that side unbounded; a
// present bound defaults to inclusive (spec.md §3 Testable Scenarios
// S1/S2). Use RangeWithInclusivity for an exclusive bound.
func (b *Builder) Range(field, valueKind string, low, high *string) *Builder {
	return b.add(RangeFilter(field, valueKind, low, high, low != nil, high != nil))
}

// RangeWithInclusivity is Range with explicit per-side inclusivity
// control, for callers that need an exclusive bound.
func (b *Builder) RangeWithInclusivity(field, valueKind string, low, high *string, includeLower, includeUpper bool) *Builder {
	return b.add(RangeFilter(field, valueKind, low, high, includeLower, includeUpper))
}

func (b *Builder) add(n *QueryNode) *Builder {
	if b.root == nil {
		b.root = n
		return b
	}
	b.root = And(b.root, n)
	return b
}

// Build finalizes the plan. rawText is carried through for
// diagnostics/favourites display; it is not reparsed.
func (b *Builder) Build(rawText string) *SearchQueryPlan {
	plan := &SearchQueryPlan{Root: b.root, RawText: rawText}
	collectRanges(b.root, &plan.Ranges)
	return plan
}
