package backstory

import (
	"context"
	"errors"
	"strings"
	"testing"

	"twinforge/backend/internal/ai"
)

type stubGenerator struct {
	lastSystem string
	lastUser   string
	response   string
	err        error
	calls      int
}

func (g *stubGenerator) GenerateText(_ context.Context, system, user string) (string, error) {
	g.calls++
	g.lastSystem = system
	g.lastUser = user
	if g.err != nil {
		return "", g.err
	}
	return g.response, nil
}

func TestSynthesizePromptContainsGroupsInOrder(t *testing.T) {
	gen := &stubGenerator{response: "a backstory"}
	s := New(gen)

	groups := []BudgetedGroup{
		{
			Group: MessageGroup{
				Title: "Posts",
				Messages: []string{
					"my favorite hike so far",
					"my favorite hike so farr",
					"my favourite hike so far",
				},
			},
			Budget: Budget{TopN: 2, MinDistance: 0.7},
		},
		{
			Group: MessageGroup{
				Title:    "Comments",
				Messages: []string{"totally agree with this"},
			},
			Budget: Budget{TopN: 2, MinDistance: 0.7},
		},
	}

	got, err := s.SynthesizeBudgeted(context.Background(), groups)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "a backstory" {
		t.Fatalf("response must be returned verbatim, got %q", got)
	}

	postsIdx := strings.Index(gen.lastUser, "Posts:")
	commentsIdx := strings.Index(gen.lastUser, "Comments:")
	if postsIdx < 0 || commentsIdx < 0 {
		t.Fatalf("prompt missing group headers:\n%s", gen.lastUser)
	}
	if postsIdx > commentsIdx {
		t.Fatalf("group order not preserved:\n%s", gen.lastUser)
	}
	if !strings.Contains(gen.lastUser, "my favorite hike so far") {
		t.Fatalf("prompt missing sampled post:\n%s", gen.lastUser)
	}
	if !strings.Contains(gen.lastUser, "totally agree with this") {
		t.Fatalf("prompt missing sampled comment:\n%s", gen.lastUser)
	}
	if !strings.Contains(gen.lastUser, "Output rules:") {
		t.Fatalf("prompt missing instruction suffix:\n%s", gen.lastUser)
	}
}

func TestSynthesizeBudgetCapsGroupContribution(t *testing.T) {
	gen := &stubGenerator{response: "ok"}
	s := New(gen)

	// Mutually distant strings so only TopN limits the output.
	messages := []string{
		"completely unrelated alpha",
		"zzz different beta entry",
		"qqq third thing here",
		"mmm fourth one entirely",
	}

	groups := []BudgetedGroup{
		{Group: MessageGroup{Title: "Inbox", Messages: messages}, Budget: Budget{TopN: 2, MinDistance: 0.4}},
	}
	if _, err := s.SynthesizeBudgeted(context.Background(), groups); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	section := gen.lastUser[strings.Index(gen.lastUser, "Inbox:"):]
	kept := 0
	for _, msg := range messages {
		if strings.Contains(section, msg) {
			kept++
		}
	}
	if kept != 2 {
		t.Fatalf("expected exactly 2 inbox samples in prompt, found %d:\n%s", kept, section)
	}
}

func TestSynthesizeGenerationFailurePropagates(t *testing.T) {
	providerErr := errors.New("provider exploded")
	gen := &stubGenerator{err: providerErr}
	s := New(gen)

	_, err := s.Synthesize(context.Background(), []MessageGroup{
		{Title: "Tweets", Messages: []string{"hello there"}},
	})
	if !errors.Is(err, ErrGenerationFailed) {
		t.Fatalf("expected ErrGenerationFailed, got %v", err)
	}
	if !errors.Is(err, providerErr) {
		t.Fatalf("provider error must stay in the chain, got %v", err)
	}
	if gen.calls != 1 {
		t.Fatalf("synthesizer must not retry, got %d calls", gen.calls)
	}
}

func TestSynthesizeEmptyResponseIsGenerationFailure(t *testing.T) {
	gen := &stubGenerator{response: ""}
	s := New(gen)

	_, err := s.Synthesize(context.Background(), []MessageGroup{
		{Title: "Tweets", Messages: []string{"hello there"}},
	})
	if !errors.Is(err, ErrGenerationFailed) {
		t.Fatalf("expected ErrGenerationFailed, got %v", err)
	}
	if !errors.Is(err, ai.ErrEmptyResponse) {
		t.Fatalf("expected ErrEmptyResponse in the chain, got %v", err)
	}
}

func TestBuildPromptRedactsSampledLines(t *testing.T) {
	s := New(&stubGenerator{})

	prompt, err := s.BuildPrompt([]BudgetedGroup{
		{
			Group: MessageGroup{
				Title:    "Inbox",
				Messages: []string{"write me at someone@example.com ok"},
			},
			Budget: DefaultBudget,
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if strings.Contains(prompt.User, "someone@example.com") {
		t.Fatalf("email leaked into prompt:\n%s", prompt.User)
	}
	if !strings.Contains(prompt.User, "[email]") {
		t.Fatalf("redaction placeholder missing:\n%s", prompt.User)
	}
}

func TestBuildPromptInvalidBudget(t *testing.T) {
	s := New(&stubGenerator{})

	_, err := s.BuildPrompt([]BudgetedGroup{
		{Group: MessageGroup{Title: "Posts", Messages: []string{"x"}}, Budget: Budget{TopN: -1, MinDistance: 0.7}},
	})
	if err == nil {
		t.Fatal("expected error for negative topN")
	}
}

func TestSynthesizeEmptyGroups(t *testing.T) {
	gen := &stubGenerator{response: "minimal story"}
	s := New(gen)

	got, err := s.Synthesize(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "minimal story" {
		t.Fatalf("unexpected response: %q", got)
	}
	if !strings.Contains(gen.lastUser, "No message samples available.") {
		t.Fatalf("empty-input prompt should say so:\n%s", gen.lastUser)
	}
}
