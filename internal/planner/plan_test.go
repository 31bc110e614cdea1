package planner

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestParseImplicitAndBetweenWords(t *testing.T) {
	plan, err := Parse("alpha beta")
	require.NoError(t, err)
	want := And(Term("alpha"), Term("beta"))
	require.True(t, want.Equal(plan.Root), cmp.Diff(want, plan.Root))
}

func TestParsePrecedenceNotBindsTighterThanAnd(t *testing.T) {
	plan, err := Parse("NOT alpha AND beta")
	require.NoError(t, err)
	want := And(Not(Term("alpha")), Term("beta"))
	require.True(t, want.Equal(plan.Root))
}

func TestParsePrecedenceAndBindsTighterThanOr(t *testing.T) {
	plan, err := Parse("alpha AND beta OR gamma")
	require.NoError(t, err)
	want := Or(And(Term("alpha"), Term("beta")), Term("gamma"))
	require.True(t, want.Equal(plan.Root))
}

func TestParseLeftToRightAssociativity(t *testing.T) {
	plan, err := Parse("alpha OR beta OR gamma")
	require.NoError(t, err)
	want := Or(Or(Term("alpha"), Term("beta")), Term("gamma"))
	require.True(t, want.Equal(plan.Root))
}

func TestParseParenthesesOverridePrecedence(t *testing.T) {
	plan, err := Parse("alpha AND (beta OR gamma)")
	require.NoError(t, err)
	want := And(Term("alpha"), Or(Term("beta"), Term("gamma")))
	require.True(t, want.Equal(plan.Root))
}

func TestParseQuotedPhrase(t *testing.T) {
	plan, err := Parse(`"annual report" AND finance`)
	require.NoError(t, err)
	want := And(Phrase("annual report"), Term("finance"))
	require.True(t, want.Equal(plan.Root))
}

func TestParseFieldQualifier(t *testing.T) {
	plan, err := Parse("author:smith AND budget")
	require.NoError(t, err)
	want := And(Field("author", "smith"), Term("budget"))
	require.True(t, want.Equal(plan.Root))
}

func TestParseRangeFilter(t *testing.T) {
	plan, err := Parse("budget AND range(size,100,500)")
	require.NoError(t, err)
	require.Len(t, plan.Ranges, 1)
	r := plan.Ranges[0]
	require.Equal(t, "size", r.RangeField)
	require.Equal(t, "numeric", r.RangeKind)
	require.Equal(t, "100", *r.Low)
	require.Equal(t, "500", *r.High)
	require.True(t, r.IncludeLower)
	require.True(t, r.IncludeUpper)
}

func TestParseRangeFilterOneSidedBound(t *testing.T) {
	plan, err := Parse("budget AND range(modified,2024-01-01,null)")
	require.NoError(t, err)
	require.Len(t, plan.Ranges, 1)
	r := plan.Ranges[0]
	require.Equal(t, "2024-01-01", *r.Low)
	require.Nil(t, r.High)
	require.True(t, r.IncludeLower)
	require.False(t, r.IncludeUpper)
}

// TestBuilderRangeOneSidedBound covers Testable Scenario S1: a
// builder-constructed range with a present lower bound and an
// unbounded upper side.
func TestBuilderRangeOneSidedBound(t *testing.T) {
	lower := "2024-01-01T00:00:00Z"
	built := NewBuilder().Term("report").Range("modified_ticks", "numeric", &lower, nil).Build("")
	require.Len(t, built.Ranges, 1)
	r := built.Ranges[0]
	require.Equal(t, lower, *r.Low)
	require.Nil(t, r.High)
	require.True(t, r.IncludeLower)
	require.False(t, r.IncludeUpper)
}

// TestBuilderRangeBothBoundsInclusive covers Testable Scenario S2.
func TestBuilderRangeBothBoundsInclusive(t *testing.T) {
	low, high := "1024", "4096"
	built := NewBuilder().Range("size_bytes", "numeric", &low, &high).Build("")
	require.Len(t, built.Ranges, 1)
	r := built.Ranges[0]
	require.Equal(t, low, *r.Low)
	require.Equal(t, high, *r.High)
	require.True(t, r.IncludeLower)
	require.True(t, r.IncludeUpper)
}

func TestParseUnknownFieldQualifierFallsBackToLiteralTerms(t *testing.T) {
	plan, err := Parse("bogusfield:value")
	require.NoError(t, err)
	want := And(Term("bogusfield"), Term("value"))
	require.True(t, want.Equal(plan.Root), cmp.Diff(want, plan.Root))
}

func TestParseKnownFieldQualifierStillProducesFieldNode(t *testing.T) {
	plan, err := Parse("mime:pdf")
	require.NoError(t, err)
	want := Field("mime", "pdf")
	require.True(t, want.Equal(plan.Root))
}

func TestParseUnterminatedPhraseErrors(t *testing.T) {
	_, err := Parse(`alpha AND "unterminated`)
	require.Error(t, err)
}

func TestParseEmptyQueryErrors(t *testing.T) {
	_, err := Parse("")
	require.Error(t, err)
}

// TestParseIsIdempotentUnderReparse covers the planner idempotence
// property: parsing the same query text twice yields structurally
// identical trees.
func TestParseIsIdempotentUnderReparse(t *testing.T) {
	queries := []string{
		"alpha AND beta OR NOT gamma",
		`author:smith AND "quarterly report" OR range(size,1,1000)`,
		"(alpha OR beta) AND NOT (gamma OR delta)",
	}
	for _, q := range queries {
		first, err := Parse(q)
		require.NoError(t, err)
		second, err := Parse(q)
		require.NoError(t, err)
		require.True(t, first.Root.Equal(second.Root), "query %q not idempotent", q)
	}
}

func TestBuilderProducesEquivalentPlanToParsedQuery(t *testing.T) {
	built := NewBuilder().Term("alpha").Term("beta").Build("alpha beta")
	parsed, err := Parse("alpha beta")
	require.NoError(t, err)
	require.True(t, built.Root.Equal(parsed.Root))
}
