package sampling

import "github.com/agnivade/levenshtein"

// Levenshtein returns the edit distance between a and b counted in runes:
// the minimum number of single-rune insertions, deletions, and substitutions
// needed to turn one into the other.
func Levenshtein(a, b string) float64 {
	return float64(levenshtein.ComputeDistance(a, b))
}

// NormalizedLevenshtein scales the edit distance by the longer input's rune
// length, giving a value in [0, 1]: 0 for identical strings, 1 for strings
// with nothing in common. Two empty strings are identical, so 0.
func NormalizedLevenshtein(a, b string) float64 {
	longest := len([]rune(a))
	if lb := len([]rune(b)); lb > longest {
		longest = lb
	}
	if longest == 0 {
		return 0
	}
	return float64(levenshtein.ComputeDistance(a, b)) / float64(longest)
}
