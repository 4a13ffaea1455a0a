package similarity

import (
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
)

// Ratio scores two strings in [0,1] as 1 - editDistance/maxLen, counted in runes.
// Two empty strings are identical. Callers pass normalized text.
func Ratio(a, b string) float64 {
	if a == b {
		return 1
	}
	maxLen := utf8.RuneCountInString(a)
	if n := utf8.RuneCountInString(b); n > maxLen {
		maxLen = n
	}
	if maxLen == 0 {
		return 1
	}

	distance := levenshtein.ComputeDistance(a, b)
	score := 1 - float64(distance)/float64(maxLen)
	switch {
	case score < 0:
		return 0
	case score > 1:
		return 1
	default:
		return score
	}
}
