package analyzer

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

// Signature is the analyzer's verdict on a piece of content: the
// profile version that produced it, the normalized title, and a
// content-derived token_hash used by the projection layer's
// compare-and-set upsert (spec.md §4.6) to detect drift without
// storing the full token stream.
type Signature struct {
	AnalyzerVersion int
	NormalizedTitle string
	TokenHash       string
	Tokens          []string
}

// Compute tokenizes title+body, derives the normalized title from
// title alone, and hashes the sorted, deduplicated token set so that
// token order and duplicate occurrences don't affect token_hash
// (two documents with the same vocabulary hash identically,
// independent of word frequency or position).
func (p *Profile) Compute(title, body string) Signature {
	titleTokens := p.Tokenize(title)
	bodyTokens := p.Tokenize(body)

	all := make([]string, 0, len(titleTokens)+len(bodyTokens))
	all = append(all, titleTokens...)
	all = append(all, bodyTokens...)

	unique := make(map[string]struct{}, len(all))
	for _, t := range all {
		unique[t] = struct{}{}
	}
	sorted := make([]string, 0, len(unique))
	for t := range unique {
		sorted = append(sorted, t)
	}
	sort.Strings(sorted)

	h := sha256.Sum256([]byte(strings.Join(sorted, "\x1f")))

	return Signature{
		AnalyzerVersion: p.Version,
		NormalizedTitle: p.Normalize(title),
		TokenHash:       hex.EncodeToString(h[:]),
		Tokens:          all,
	}
}
