package ai

import (
	"context"
	"errors"
)

// ErrEmptyResponse means the provider answered successfully but produced no
// usable content. It is never retried: an empty completion is a prompt
// problem, not a transient one.
var ErrEmptyResponse = errors.New("ai: provider returned empty content")

type TextGenerator interface {
	GenerateText(ctx context.Context, system, user string) (string, error)
}

// ImageGenerator returns a URL for a generated image. Callers treat failures
// as "no image produced" rather than hard errors.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt string) (string, error)
}

type Client interface {
	TextGenerator
	ImageGenerator
}
