package safety

import (
	"errors"
	"regexp"
	"strings"
)

var (
	emailPattern = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
	phonePattern = regexp.MustCompile(`\+?\d[\d\s().\-]{7,}\d`)
	urlPattern   = regexp.MustCompile(`(?i)https?://\S+|www\.\S+`)
	linkPattern  = regexp.MustCompile(`(?i)https?://|www\.`)
)

// Redact strips contact details from a message sample before it can reach a
// prompt. Emails, URLs, and phone-shaped digit runs are replaced with
// placeholder tokens; everything else passes through untouched.
func Redact(value string) string {
	out := emailPattern.ReplaceAllString(value, "[email]")
	out = urlPattern.ReplaceAllString(out, "[link]")
	out = phonePattern.ReplaceAllString(out, "[phone]")
	return out
}

// ValidateChatMessage checks user-authored chat input.
func ValidateChatMessage(content string, maxLen int) error {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return errors.New("message cannot be empty")
	}
	if len([]rune(trimmed)) > maxLen {
		return errors.New("message exceeds max length")
	}
	if len(linkPattern.FindAllStringIndex(trimmed, -1)) > 2 {
		return errors.New("message failed link spam check")
	}
	return nil
}
