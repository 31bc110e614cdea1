// Package analyzer turns raw title/body text into the normalized
// token stream and content signature the search projection is built
// from (spec.md §4.2). Tokenization and folding are plain
// stdlib-only code: no library in the example corpus offers a
// Unicode-aware tokenizer/stopword filter, so this is one of the
// deliberate standard-library exceptions recorded in DESIGN.md.
package analyzer

import (
	"strings"
	"unicode"

	"veriado/internal/config"
)

// Profile is a compiled, ready-to-apply analyzer configuration.
type Profile struct {
	Name            string
	Version         int
	Lowercase       bool
	StripDiacritics bool
	Stopwords       map[string]struct{}
	MinLen          int
	MaxLen          int
}

// Registry resolves profile names to compiled Profiles. Each profile's
// Version is its 1-based position in config order, so adding a
// profile never renumbers an existing one as long as profiles are
// only ever appended.
type Registry struct {
	profiles map[string]*Profile
	byName   []string
}

// NewRegistry compiles every profile in cfg.
func NewRegistry(cfg config.AnalyzerConfig) *Registry {
	r := &Registry{profiles: make(map[string]*Profile)}
	for i, pc := range cfg.Profiles {
		stop := make(map[string]struct{}, len(pc.Stopwords))
		for _, w := range pc.Stopwords {
			stop[normalizeCase(w, pc.Lowercase)] = struct{}{}
		}
		r.profiles[pc.Name] = &Profile{
			Name:            pc.Name,
			Version:         i + 1,
			Lowercase:       pc.Lowercase,
			StripDiacritics: pc.StripDiacritics,
			Stopwords:       stop,
			MinLen:          pc.MinLen,
			MaxLen:          pc.MaxLen,
		}
		r.byName = append(r.byName, pc.Name)
	}
	return r
}

// Get resolves a profile by name, ok=false if unknown.
func (r *Registry) Get(name string) (*Profile, bool) {
	p, ok := r.profiles[name]
	return p, ok
}

// MustGet resolves a profile by name, panicking if unknown. Intended
// for callers that already validated the name via config.Validate.
func (r *Registry) MustGet(name string) *Profile {
	p, ok := r.profiles[name]
	if !ok {
		panic("analyzer: unknown profile " + name)
	}
	return p
}

func normalizeCase(s string, lower bool) string {
	if lower {
		return strings.ToLower(s)
	}
	return s
}

// diacriticFold is the lookup table stripDiacriticsString uses to map
// precomposed accented letters to their base letter. No Unicode
// decomposition is done (NFD isn't available without golang.org/x/text,
// which is not in any example repo's go.mod); only the Latin-1
// Supplement and Latin Extended-A letters listed here are folded, which
// covers the Czech/Western-European alphabet the "cs" profile targets.
var diacriticFold = map[rune]rune{
	'á': 'a', 'à': 'a', 'â': 'a', 'ä': 'a', 'ã': 'a', 'å': 'a', 'ā': 'a', 'ą': 'a',
	'é': 'e', 'è': 'e', 'ê': 'e', 'ë': 'e', 'ē': 'e', 'ė': 'e', 'ě': 'e', 'ę': 'e',
	'í': 'i', 'ì': 'i', 'î': 'i', 'ï': 'i', 'ī': 'i', 'į': 'i',
	'ó': 'o', 'ò': 'o', 'ô': 'o', 'ö': 'o', 'õ': 'o', 'ō': 'o', 'ő': 'o',
	'ú': 'u', 'ù': 'u', 'û': 'u', 'ü': 'u', 'ū': 'u', 'ů': 'u', 'ű': 'u',
	'ý': 'y', 'ÿ': 'y',
	'č': 'c', 'ć': 'c', 'ç': 'c', 'ĉ': 'c',
	'ď': 'd', 'đ': 'd',
	'ľ': 'l', 'ĺ': 'l', 'ł': 'l',
	'ň': 'n', 'ń': 'n', 'ñ': 'n',
	'ř': 'r', 'ŕ': 'r',
	'š': 's', 'ś': 's', 'ş': 's',
	'ť': 't',
	'ž': 'z', 'ź': 'z', 'ż': 'z',
}

func stripDiacriticsString(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if folded, ok := diacriticFold[unicode.ToLower(r)]; ok {
			if unicode.IsUpper(r) {
				b.WriteRune(unicode.ToUpper(folded))
			} else {
				b.WriteRune(folded)
			}
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
