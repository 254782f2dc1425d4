package llm

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"taskchat/internal/config"
)

// NewProvider creates an LLM provider from config.
func NewProvider(cfg config.LLMConfig) (Provider, error) {
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	switch cfg.Provider {
	case "openai", "openrouter", "local":
		return NewOpenAIProvider(OpenAIConfig{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			Timeout: timeout,
		}), nil
	case "anthropic":
		return NewAnthropicProvider(AnthropicConfig{
			APIKey:  cfg.APIKey,
			Model:   cfg.Model,
			Timeout: timeout,
		}), nil
	default:
		return nil, fmt.Errorf("unknown LLM provider: %s", cfg.Provider)
	}
}

// Build assembles the full provider stack from config: the primary provider,
// an optional fallback chain, and retry with backoff on top.
func Build(primary config.LLMConfig, fallback *config.LLMConfig, logger *zap.Logger) (Provider, error) {
	p, err := NewProvider(primary)
	if err != nil {
		return nil, err
	}

	var provider Provider = p
	if fallback != nil {
		fb, err := NewProvider(*fallback)
		if err != nil {
			return nil, fmt.Errorf("fallback provider: %w", err)
		}
		provider = NewFallbackProvider(logger, provider, fb)
	}

	maxAttempts := primary.MaxRetries
	if maxAttempts == 0 {
		maxAttempts = 3
	}
	return NewRetryProvider(provider, maxAttempts, logger), nil
}
