// Package backstory turns titled collections of raw messages into a persona
// narrative. Each group is compressed by the sampler, the survivors are
// assembled into a sectioned prompt, and a single generation call produces
// the backstory.
package backstory

import (
	"context"
	"errors"
	"fmt"

	"twinforge/backend/internal/ai"
	"twinforge/backend/internal/ai/prompts"
	"twinforge/backend/internal/safety"
	"twinforge/backend/internal/sampling"
)

// ErrGenerationFailed wraps any failure of the external generation call.
// The synthesizer never retries or masks it; fallback policy belongs to the
// caller.
var ErrGenerationFailed = errors.New("backstory: generation failed")

// MessageGroup is a titled, ordered collection of raw text samples from one
// data source. Duplicates and blank entries are allowed; the sampler deals
// with both.
type MessageGroup struct {
	Title    string
	Messages []string
}

// Budget caps how many representatives one group contributes and how
// dissimilar they must be, under the sampler's normalized metric.
type Budget struct {
	TopN        int
	MinDistance float64
}

// Per-source budgets. These values are load-bearing: they were tuned against
// real export sizes and changing them changes every regenerated backstory.
var (
	PostsBudget         = Budget{TopN: 10, MinDistance: 0.7}
	CommentsBudget      = Budget{TopN: 15, MinDistance: 0.7}
	ReelsCommentsBudget = Budget{TopN: 5, MinDistance: 0.7}
	InboxBudget         = Budget{TopN: 15, MinDistance: 0.4}
	DefaultBudget       = Budget{TopN: 15, MinDistance: 0.7}
)

// BudgetedGroup pairs a message group with its sampling budget.
type BudgetedGroup struct {
	Group  MessageGroup
	Budget Budget
}

type Synthesizer struct {
	generator ai.TextGenerator

	// Metric is the distance function handed to the sampler. Defaults to
	// sampling.NormalizedLevenshtein.
	Metric sampling.Metric

	// Redact is applied to every sampled line before it enters a prompt.
	// Defaults to safety.Redact.
	Redact func(string) string
}

func New(generator ai.TextGenerator) *Synthesizer {
	return &Synthesizer{
		generator: generator,
		Metric:    sampling.NormalizedLevenshtein,
		Redact:    safety.Redact,
	}
}

// Synthesize samples every group with the uniform default budget and runs
// one generation call.
func (s *Synthesizer) Synthesize(ctx context.Context, groups []MessageGroup) (string, error) {
	budgeted := make([]BudgetedGroup, 0, len(groups))
	for _, group := range groups {
		budgeted = append(budgeted, BudgetedGroup{Group: group, Budget: DefaultBudget})
	}
	return s.SynthesizeBudgeted(ctx, budgeted)
}

// SynthesizeBudgeted is Synthesize with per-group budgets, preserving group
// order in the assembled prompt.
func (s *Synthesizer) SynthesizeBudgeted(ctx context.Context, groups []BudgetedGroup) (string, error) {
	prompt, err := s.BuildPrompt(groups)
	if err != nil {
		return "", err
	}
	return s.Generate(ctx, prompt)
}

// BuildPrompt samples each group and assembles the generation prompt without
// calling the provider. Callers that want a degraded fallback on generation
// failure can hold on to the result.
func (s *Synthesizer) BuildPrompt(groups []BudgetedGroup) (prompts.ChatPrompt, error) {
	metric := s.Metric
	if metric == nil {
		metric = sampling.NormalizedLevenshtein
	}

	sampled := make([]prompts.SampleGroup, 0, len(groups))
	for _, bg := range groups {
		lines, err := sampling.SelectRepresentativeWithMetric(bg.Group.Messages, bg.Budget.TopN, bg.Budget.MinDistance, metric)
		if err != nil {
			return prompts.ChatPrompt{}, fmt.Errorf("sample group %q: %w", bg.Group.Title, err)
		}
		if s.Redact != nil {
			for i, line := range lines {
				lines[i] = s.Redact(line)
			}
		}
		sampled = append(sampled, prompts.SampleGroup{Title: bg.Group.Title, Lines: lines})
	}

	return prompts.Backstory(sampled), nil
}

// Generate runs the external call for an already-built prompt. Any provider
// failure, including an empty response, comes back as ErrGenerationFailed.
func (s *Synthesizer) Generate(ctx context.Context, prompt prompts.ChatPrompt) (string, error) {
	story, err := s.generator.GenerateText(ctx, prompt.System, prompt.User)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrGenerationFailed, err)
	}
	if story == "" {
		return "", fmt.Errorf("%w: %w", ErrGenerationFailed, ai.ErrEmptyResponse)
	}
	return story, nil
}
