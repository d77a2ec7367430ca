package sampling

import "testing"

func TestLevenshtein(t *testing.T) {
	cases := []struct {
		a, b string
		want float64
	}{
		{"", "", 0},
		{"", "abc", 3},
		{"abc", "", 3},
		{"hello world", "hllo world", 1},
		{"kitten", "sitting", 3},
		{"flaw", "lawn", 2},
		{"same", "same", 0},
		{"héllo", "hello", 1},
		{"日本語", "日本", 1},
	}

	for _, tc := range cases {
		if got := Levenshtein(tc.a, tc.b); got != tc.want {
			t.Errorf("Levenshtein(%q, %q) = %g, want %g", tc.a, tc.b, got, tc.want)
		}
		if got := Levenshtein(tc.b, tc.a); got != tc.want {
			t.Errorf("Levenshtein(%q, %q) = %g, want %g (symmetry)", tc.b, tc.a, got, tc.want)
		}
	}
}

func TestNormalizedLevenshtein(t *testing.T) {
	if got := NormalizedLevenshtein("", ""); got != 0 {
		t.Fatalf("two empty strings must be at distance 0, got %g", got)
	}
	if got := NormalizedLevenshtein("abcd", "abcd"); got != 0 {
		t.Fatalf("identical strings must be at distance 0, got %g", got)
	}
	if got := NormalizedLevenshtein("aaaa", "bbbb"); got != 1 {
		t.Fatalf("disjoint strings must be at distance 1, got %g", got)
	}
	if got := NormalizedLevenshtein("ab", "abcd"); got != 0.5 {
		t.Fatalf("expected 0.5, got %g", got)
	}

	for _, pair := range [][2]string{{"short", "a much longer string"}, {"", "x"}, {"日本語", "日本"}} {
		forward := NormalizedLevenshtein(pair[0], pair[1])
		backward := NormalizedLevenshtein(pair[1], pair[0])
		if forward != backward {
			t.Errorf("asymmetric result for %q/%q: %g vs %g", pair[0], pair[1], forward, backward)
		}
		if forward < 0 || forward > 1 {
			t.Errorf("distance for %q/%q out of range: %g", pair[0], pair[1], forward)
		}
	}
}
