package analyzer

import (
	"testing"

	"github.com/stretchr/testify/require"

	"veriado/internal/config"
)

func csProfile(t *testing.T) *Profile {
	t.Helper()
	reg := NewRegistry(config.DefaultConfig().Analyzer)
	p, ok := reg.Get("cs")
	require.True(t, ok)
	return p
}

func TestTokenizeFoldsCaseAndDiacritics(t *testing.T) {
	p := csProfile(t)
	tokens := p.Tokenize("Příliš žluťoučký kůň")
	require.Equal(t, []string{"prilis", "zlutoucky", "kun"}, tokens)
}

func TestTokenizeDropsStopwords(t *testing.T) {
	p := csProfile(t)
	tokens := p.Tokenize("a cat and the dog")
	require.Equal(t, []string{"cat", "dog"}, tokens)
}

func TestComputeSignatureIgnoresTokenOrder(t *testing.T) {
	p := csProfile(t)
	a := p.Compute("report", "alpha beta gamma")
	b := p.Compute("report", "gamma alpha beta")
	require.Equal(t, a.TokenHash, b.TokenHash)
	require.Equal(t, a.AnalyzerVersion, b.AnalyzerVersion)
}

func TestComputeSignatureChangesWithContent(t *testing.T) {
	p := csProfile(t)
	a := p.Compute("report", "alpha beta")
	b := p.Compute("report", "alpha beta gamma")
	require.NotEqual(t, a.TokenHash, b.TokenHash)
}

func TestNormalizeTitleTrimsAndFolds(t *testing.T) {
	p := csProfile(t)
	require.Equal(t, "zprava o uctu", p.Normalize("  Zpráva o účtu  "))
}
