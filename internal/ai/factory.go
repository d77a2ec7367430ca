package ai

import "twinforge/backend/internal/config"

func NewFromConfig(cfg config.Config) Client {
	if cfg.LLMProvider == "openai" {
		return NewOpenAIClient(
			cfg.OpenAIAPIKey,
			cfg.OpenAIBaseURL,
			cfg.OpenAIModel,
			cfg.OpenAIImageModel,
			cfg.OpenAIRequestTimeout,
			cfg.OpenAIMaxRetries,
			cfg.OpenAIRetryBase,
		)
	}
	return NewMockClient()
}
