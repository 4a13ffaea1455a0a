package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Text folds a display string into its comparison form. It lower-cases, removes
// diacritics and drops control characters, then collapses whitespace. Letters with no
// canonical decomposition (ø, ł, đ, ß and similar) are folded through letterFolds.
// It never fails; "" maps to "".
func Text(input string) string {
	if strings.TrimSpace(input) == "" {
		return ""
	}

	folded, _, err := transform.String(stripMarks(), input)
	if err != nil {
		folded = input
	}
	folded = letterFolds.Replace(strings.ToLower(folded))

	var b strings.Builder
	b.Grow(len(folded))
	lastSpace := false
	for _, r := range folded {
		if unicode.IsSpace(r) {
			if !lastSpace {
				b.WriteRune(' ')
				lastSpace = true
			}
			continue
		}
		if unicode.IsControl(r) {
			continue
		}
		b.WriteRune(r)
		lastSpace = false
	}
	return strings.TrimSpace(b.String())
}

// StripPunctuation removes punctuation and symbols, then collapses whitespace.
func StripPunctuation(input string) string {
	var b strings.Builder
	b.Grow(len(input))
	for _, r := range input {
		if unicode.IsPunct(r) || unicode.IsSymbol(r) {
			continue
		}
		b.WriteRune(r)
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

var letterFolds = strings.NewReplacer(
	"ø", "o",
	"ł", "l",
	"đ", "d",
	"ð", "d",
	"ħ", "h",
	"ı", "i",
	"ŧ", "t",
	"ß", "ss",
	"æ", "ae",
	"œ", "oe",
	"þ", "th",
)

// Transformers carry state, so each call gets its own chain.
func stripMarks() transform.Transformer {
	return transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
}
