package fuzzycache

import (
	"unicode/utf8"

	"github.com/hbollon/go-edlib"
)

// Similarity returns 1 - d/max(len(a), len(b)), where d is the
// Damerau–Levenshtein distance between a and b (insertions, deletions,
// substitutions and adjacent transpositions) and lengths count runes.
//
// The result is in [0, 1]; 1 means identical. Two empty strings are identical.
// Comparison is case-sensitive; the cache lower-cases both sides first.
func Similarity(a, b string) float64 {
	longest := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
	if longest == 0 {
		return 1
	}

	dist := edlib.DamerauLevenshteinDistance(a, b)

	return 1 - float64(dist)/float64(longest)
}
