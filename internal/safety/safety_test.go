package safety

import (
	"strings"
	"testing"
)

func TestRedact(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "email",
			input: "write me at jane.doe+x@example.co.uk thanks",
			want:  "write me at [email] thanks",
		},
		{
			name:  "url",
			input: "check https://example.com/a?b=1 and www.other.org today",
			want:  "check [link] and [link] today",
		},
		{
			name:  "phone",
			input: "call +1 (555) 123-4567 tomorrow",
			want:  "call [phone] tomorrow",
		},
		{
			name:  "clean text untouched",
			input: "meeting at 8, bring the 2 books",
			want:  "meeting at 8, bring the 2 books",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Redact(tc.input); got != tc.want {
				t.Fatalf("Redact(%q) = %q, want %q", tc.input, got, tc.want)
			}
		})
	}
}

func TestValidateChatMessage(t *testing.T) {
	if err := ValidateChatMessage("hello twin", 100); err != nil {
		t.Fatalf("valid message rejected: %v", err)
	}
	if err := ValidateChatMessage("   ", 100); err == nil {
		t.Fatal("blank message accepted")
	}
	if err := ValidateChatMessage(strings.Repeat("a", 101), 100); err == nil {
		t.Fatal("oversized message accepted")
	}
	if err := ValidateChatMessage("https://a.com https://b.com https://c.com", 200); err == nil {
		t.Fatal("link spam accepted")
	}
}
