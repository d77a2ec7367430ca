package ai

import (
	"context"
	"fmt"
	"strings"
)

// MockClient produces deterministic content so the whole stack runs without
// an API key. The text output echoes enough of the user prompt to make
// integration assertions possible.
type MockClient struct{}

func NewMockClient() *MockClient {
	return &MockClient{}
}

func (m *MockClient) GenerateText(_ context.Context, _ string, user string) (string, error) {
	lines := strings.Split(user, "\n")
	var headers []string
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasSuffix(trimmed, ":") {
			headers = append(headers, strings.TrimSuffix(trimmed, ":"))
		}
	}
	if len(headers) == 0 {
		return "A reserved person of few recorded words.", nil
	}
	return fmt.Sprintf(
		"A person whose voice emerges from %s. They write plainly, repeat what matters to them, and keep the rest to themselves.",
		strings.Join(headers, ", "),
	), nil
}

func (m *MockClient) GenerateImage(_ context.Context, prompt string) (string, error) {
	seed := 0
	for _, r := range prompt {
		seed = (seed*31 + int(r)) % 100000
	}
	return fmt.Sprintf("https://avatars.example.com/mock/%05d.png", seed), nil
}
