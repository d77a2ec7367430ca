package sampling

import (
	"errors"
	"reflect"
	"testing"
)

// exactMatchMetric treats any two distinct strings as maximally far apart.
// It keeps the selection tests independent of the edit-distance code.
func exactMatchMetric(a, b string) float64 {
	if a == b {
		return 0
	}
	return 1
}

func TestSelectRepresentativeFrequencyOrdering(t *testing.T) {
	input := []string{"beta", "alpha", "beta", "gamma", "beta", "gamma"}

	got, err := SelectRepresentativeWithMetric(input, 3, 0.5, exactMatchMetric)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"beta", "gamma", "alpha"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestSelectRepresentativeTiesKeepFirstSeenOrder(t *testing.T) {
	input := []string{"one", "two", "three", "two", "one", "three"}

	got, err := SelectRepresentativeWithMetric(input, 5, 0.5, exactMatchMetric)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"one", "two", "three"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestSelectRepresentativeBoundedOutput(t *testing.T) {
	input := []string{"a", "b", "c", "d", "a"}

	got, err := SelectRepresentativeWithMetric(input, 2, 0.5, exactMatchMetric)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 results, got %v", got)
	}

	got, err = SelectRepresentativeWithMetric(input, 50, 0.5, exactMatchMetric)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 4 {
		t.Fatalf("topN above eligible count should return all eligible, got %v", got)
	}
}

func TestSelectRepresentativeFiltersBlankEntries(t *testing.T) {
	got, err := SelectRepresentativeWithMetric([]string{"", "   ", "a", "a"}, 5, 0.1, exactMatchMetric)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"a"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestSelectRepresentativeEmptyInput(t *testing.T) {
	got, err := SelectRepresentativeWithMetric(nil, 5, 0.5, exactMatchMetric)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty result, got %v", got)
	}
}

func TestSelectRepresentativeZeroTopN(t *testing.T) {
	got, err := SelectRepresentativeWithMetric([]string{"a", "b", "c"}, 0, 0.5, exactMatchMetric)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("topN=0 must return nothing, got %v", got)
	}
}

func TestSelectRepresentativeZeroMinDistance(t *testing.T) {
	// With minDistance 0 every distinct string is admitted; repeats still
	// collapse through the frequency map.
	input := []string{"hello", "hello", "hellp", "other"}

	got, err := SelectRepresentativeWithMetric(input, 10, 0, NormalizedLevenshtein)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"hello", "hellp", "other"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestSelectRepresentativeNearDuplicateRejected(t *testing.T) {
	input := []string{"hello world", "hello world", "goodbye world", "hllo world"}

	got, err := SelectRepresentativeWithMetric(input, 2, 3, Levenshtein)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"hello world", "goodbye world"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestSelectRepresentativeRejectionIsFinal(t *testing.T) {
	// "hllo world" is rejected against the pool at its first occurrence and
	// must never be reconsidered no matter how often it recurs.
	input := []string{
		"hello world",
		"hllo world", "hllo world", "hllo world", "hllo world",
	}

	got, err := SelectRepresentativeWithMetric(input, 5, 3, Levenshtein)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"hello world"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestSelectRepresentativeAdmissionInvariant(t *testing.T) {
	input := []string{
		"the quick brown fox jumps",
		"a completely different sentence",
		"the quick brown fox jumped",
		"yet another unrelated line",
		"short",
	}
	const minDistance = 0.5

	got, err := SelectRepresentative(input, 10, minDistance)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Every member must be at least minDistance from every member admitted
	// before it. Insertion order is preserved within equal frequencies, and
	// all counts here are 1, so output order is admission order.
	for i := 1; i < len(got); i++ {
		for j := 0; j < i; j++ {
			if d := NormalizedLevenshtein(got[j], got[i]); d < minDistance {
				t.Fatalf("members %q and %q are only %g apart", got[j], got[i], d)
			}
		}
	}
}

func TestSelectRepresentativeDuplicateShuffleKeepsOutputSet(t *testing.T) {
	// Moving repeat occurrences around must not change the selected set as
	// long as first-seen order of distinct values is untouched.
	a := []string{"x", "x", "y", "z", "y", "x"}
	b := []string{"x", "y", "z", "x", "x", "y"}

	gotA, err := SelectRepresentativeWithMetric(a, 3, 0.5, exactMatchMetric)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	gotB, err := SelectRepresentativeWithMetric(b, 3, 0.5, exactMatchMetric)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !reflect.DeepEqual(gotA, gotB) {
		t.Fatalf("shuffling duplicates changed the result: %v vs %v", gotA, gotB)
	}
	want := []string{"x", "y", "z"}
	if !reflect.DeepEqual(gotA, want) {
		t.Fatalf("got %v, want %v", gotA, want)
	}
}

func TestSelectRepresentativeInvalidParameters(t *testing.T) {
	cases := []struct {
		name        string
		topN        int
		minDistance float64
		metric      Metric
	}{
		{name: "negative topN", topN: -1, minDistance: 0.5, metric: exactMatchMetric},
		{name: "negative minDistance", topN: 5, minDistance: -0.1, metric: exactMatchMetric},
		{name: "nil metric", topN: 5, minDistance: 0.5, metric: nil},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := SelectRepresentativeWithMetric([]string{"a"}, tc.topN, tc.minDistance, tc.metric)
			if !errors.Is(err, ErrInvalidParameter) {
				t.Fatalf("expected ErrInvalidParameter, got %v", err)
			}
		})
	}
}
