package llm

import (
	"context"

	"go.uber.org/zap"
)

// FallbackProvider tries providers in order, falling back on retryable errors.
type FallbackProvider struct {
	providers []Provider
	logger    *zap.Logger
}

// NewFallbackProvider creates a provider chain. The first provider is primary.
func NewFallbackProvider(logger *zap.Logger, providers ...Provider) *FallbackProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FallbackProvider{providers: providers, logger: logger}
}

func (f *FallbackProvider) Name() string {
	if len(f.providers) > 0 {
		return f.providers[0].Name() + "+fallback"
	}
	return "fallback"
}

func (f *FallbackProvider) DefaultModel() string {
	if len(f.providers) > 0 {
		return f.providers[0].DefaultModel()
	}
	return ""
}

func (f *FallbackProvider) Chat(ctx context.Context, req *ChatRequest) (*LLMResponse, error) {
	var lastErr error
	for _, p := range f.providers {
		resp, err := p.Chat(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !isRetryable(err) {
			return nil, err
		}
		f.logger.Warn("provider failed, trying next",
			zap.String("provider", p.Name()),
			zap.Error(err))
	}
	return nil, lastErr
}
