package analyzer

import (
	"strings"
	"unicode"
)

// Tokenize splits text on Unicode word boundaries (letters/digits run
// together, everything else is a separator), then applies the
// profile's case-folding, diacritic-stripping, length filter, and
// stopword filter, in that order. Returned tokens preserve source
// order; callers that need uniqueness should dedupe themselves.
func (p *Profile) Tokenize(text string) []string {
	raw := splitWords(text)
	tokens := make([]string, 0, len(raw))
	for _, w := range raw {
		t := w
		if p.Lowercase {
			t = strings.ToLower(t)
		}
		if p.StripDiacritics {
			t = stripDiacriticsString(t)
		}
		if len([]rune(t)) < p.MinLen || len([]rune(t)) > p.MaxLen {
			continue
		}
		if _, stop := p.Stopwords[t]; stop {
			continue
		}
		tokens = append(tokens, t)
	}
	return tokens
}

// SplitWords splits text on Unicode word boundaries with no further
// normalization, used by callers that need to know which literal
// words appeared in raw input (e.g. the FTS5 emitter distinguishing
// reserved words the user typed from ones the analyzer introduced).
func SplitWords(text string) []string {
	return splitWords(text)
}

func splitWords(text string) []string {
	var words []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			words = append(words, cur.String())
			cur.Reset()
		}
	}
	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			cur.WriteRune(r)
		} else {
			flush()
		}
	}
	flush()
	return words
}

// Normalize applies only the case-fold/diacritic-strip steps, with no
// tokenization, length filter, or stopword removal. Used to produce
// the indexed_title projection field from a file's raw name.
func (p *Profile) Normalize(text string) string {
	t := text
	if p.Lowercase {
		t = strings.ToLower(t)
	}
	if p.StripDiacritics {
		t = stripDiacriticsString(t)
	}
	return strings.TrimSpace(t)
}
