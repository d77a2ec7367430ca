package common

import "testing"

func TestTruncateRunes(t *testing.T) {
	cases := []struct {
		value string
		max   int
		want  string
	}{
		{"  hello  ", 0, "hello"},
		{"hello", 10, "hello"},
		{"hello world", 5, "hello"},
		{"héllo wörld", 6, "héllo"},
	}
	for _, tc := range cases {
		if got := TruncateRunes(tc.value, tc.max); got != tc.want {
			t.Errorf("TruncateRunes(%q, %d) = %q, want %q", tc.value, tc.max, got, tc.want)
		}
	}
}

func TestCollapseWhitespace(t *testing.T) {
	if got := CollapseWhitespace("a\n\n b\t c  "); got != "a b c" {
		t.Fatalf("got %q", got)
	}
}
