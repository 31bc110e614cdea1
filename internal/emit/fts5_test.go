package emit

import (
	"testing"

	"github.com/stretchr/testify/require"

	"veriado/internal/analyzer"
	"veriado/internal/config"
	"veriado/internal/planner"
)

func mustParse(t *testing.T, q string) *planner.SearchQueryPlan {
	t.Helper()
	plan, err := planner.Parse(q)
	require.NoError(t, err)
	return plan
}

// testProfile builds a lowercase-folding profile with no stopwords, so
// FTS5-emission tests exercise the reserved-word quote/drop logic in
// isolation from the default "cs" profile's stopword list (which
// already removes "and"/"or"/"not" on its own).
func testProfile(t *testing.T) *analyzer.Profile {
	t.Helper()
	registry := analyzer.NewRegistry(config.AnalyzerConfig{
		DefaultProfile: "plain",
		Profiles: []config.ProfileConfig{
			{Name: "plain", Lowercase: true, StripDiacritics: true, MinLen: 1, MaxLen: 64},
		},
	})
	return registry.MustGet("plain")
}

func TestEmitFTS5SimpleAnd(t *testing.T) {
	plan := mustParse(t, "alpha AND beta")
	got, err := EmitFTS5(plan, testProfile(t))
	require.NoError(t, err)
	require.Equal(t, "alpha AND beta", got)
}

func TestEmitFTS5QuotesReservedWordTerm(t *testing.T) {
	plan := mustParse(t, `"and"`)
	got, err := EmitFTS5(plan, testProfile(t))
	require.NoError(t, err)
	require.Equal(t, `"and"`, got)
}

func TestEmitFTS5ParenthesizesNestedOr(t *testing.T) {
	plan := mustParse(t, "alpha AND (beta OR gamma)")
	got, err := EmitFTS5(plan, testProfile(t))
	require.NoError(t, err)
	require.Equal(t, "alpha AND (beta OR gamma)", got)
}

func TestEmitFTS5FieldQualifier(t *testing.T) {
	plan := mustParse(t, "author:smith")
	got, err := EmitFTS5(plan, testProfile(t))
	require.NoError(t, err)
	require.Equal(t, "author:smith", got)
}

func TestEmitFTS5RangeOnlyErrors(t *testing.T) {
	plan := mustParse(t, "range(size,1,10)")
	_, err := EmitFTS5(plan, testProfile(t))
	require.Error(t, err)
}

// TestEmitFTS5DropsRawReservedWordFromOrList covers Testable Scenario
// S3: a quoted phrase containing a reserved word the user actually
// typed drops that word rather than OR-ing it in as a literal match.
func TestEmitFTS5DropsRawReservedWordFromOrList(t *testing.T) {
	plan := mustParse(t, `"alpha and beta"`)
	got, err := EmitFTS5(plan, testProfile(t))
	require.NoError(t, err)
	require.Equal(t, "alpha OR beta", got)
}

// TestEmitFTS5QuotesAnalyzerInjectedReservedWord covers Testable
// Scenario S4: a reserved word introduced by analysis rather than
// appearing in the raw query text is quoted and OR'd in.
func TestEmitFTS5QuotesAnalyzerInjectedReservedWord(t *testing.T) {
	kept := classifyAnalyzedTerms("alpha", []string{"alpha", "and"})
	require.Equal(t, []string{"alpha", `"and"`}, kept)
}
