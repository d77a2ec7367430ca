// Package sampling compresses noisy, repetitive text collections into a
// small representative sample. It powers backstory synthesis: raw social
// exports contain hundreds of near-identical messages, and the LLM prompt
// only has room for the ones that carry signal.
package sampling

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Metric measures dissimilarity between two strings. Implementations must be
// symmetric and return 0 for identical inputs.
type Metric func(a, b string) float64

var ErrInvalidParameter = errors.New("sampling: invalid parameter")

type candidate struct {
	value string
	count int
}

// SelectRepresentative returns up to topN of the most frequent strings in
// input such that every returned string is at least minDistance away (under
// NormalizedLevenshtein) from every string admitted before it.
func SelectRepresentative(input []string, topN int, minDistance float64) ([]string, error) {
	return SelectRepresentativeWithMetric(input, topN, minDistance, NormalizedLevenshtein)
}

// SelectRepresentativeWithMetric is SelectRepresentative with a caller-chosen
// distance metric.
//
// The pass is greedy and order-dependent on purpose: each distinct string is
// checked against the pool exactly once, at its first occurrence, and the
// pool never shrinks. A string rejected at first occurrence is never
// reconsidered, and later admissions do not invalidate earlier ones. Cost is
// O(len(input) * pool size), which beats full pairwise clustering on the
// bounded collections this is used for.
//
// Output ordering: descending total occurrence count over the whole input
// (counted after the pass, not at admission time); ties keep first-seen
// order. Blank strings carry no signal and are dropped before counting.
func SelectRepresentativeWithMetric(input []string, topN int, minDistance float64, metric Metric) ([]string, error) {
	if topN < 0 {
		return nil, fmt.Errorf("%w: topN must be >= 0, got %d", ErrInvalidParameter, topN)
	}
	if minDistance < 0 {
		return nil, fmt.Errorf("%w: minDistance must be >= 0, got %g", ErrInvalidParameter, minDistance)
	}
	if metric == nil {
		return nil, fmt.Errorf("%w: metric is required", ErrInvalidParameter)
	}

	counts := make(map[string]int, len(input))
	var pool []candidate

	for _, value := range input {
		if strings.TrimSpace(value) == "" {
			continue
		}
		counts[value]++
		if counts[value] != 1 {
			continue
		}

		admit := true
		for _, existing := range pool {
			if metric(existing.value, value) < minDistance {
				admit = false
				break
			}
		}
		if admit {
			pool = append(pool, candidate{value: value})
		}
	}

	// Admission-time counts are stale by now; re-read the totals.
	for i := range pool {
		pool[i].count = counts[pool[i].value]
	}

	sort.SliceStable(pool, func(i, j int) bool {
		return pool[i].count > pool[j].count
	})

	if topN < len(pool) {
		pool = pool[:topN]
	}

	out := make([]string, len(pool))
	for i, c := range pool {
		out[i] = c.value
	}
	return out, nil
}
