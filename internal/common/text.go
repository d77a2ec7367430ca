package common

import "strings"

func TruncateRunes(value string, maxRunes int) string {
	trimmed := strings.TrimSpace(value)
	if maxRunes <= 0 {
		return trimmed
	}

	runes := []rune(trimmed)
	if len(runes) <= maxRunes {
		return trimmed
	}
	return strings.TrimSpace(string(runes[:maxRunes]))
}

// CollapseWhitespace folds any run of whitespace into a single space, for
// one-line previews of multi-line content.
func CollapseWhitespace(value string) string {
	return strings.Join(strings.Fields(value), " ")
}
