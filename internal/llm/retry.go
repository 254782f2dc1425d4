package llm

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"go.uber.org/zap"
)

// RetryProvider wraps a Provider with exponential backoff on transient errors.
// Rate limits, server errors, timeouts and network failures are retried;
// auth and invalid-request errors are returned immediately since repeating
// them cannot succeed.
type RetryProvider struct {
	inner       Provider
	maxAttempts int
	baseDelay   time.Duration
	logger      *zap.Logger
}

// NewRetryProvider wraps inner with up to maxAttempts attempts per call.
func NewRetryProvider(inner Provider, maxAttempts int, logger *zap.Logger) *RetryProvider {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RetryProvider{
		inner:       inner,
		maxAttempts: maxAttempts,
		baseDelay:   500 * time.Millisecond,
		logger:      logger,
	}
}

func (r *RetryProvider) Name() string         { return r.inner.Name() + "+retry" }
func (r *RetryProvider) DefaultModel() string { return r.inner.DefaultModel() }

func (r *RetryProvider) Chat(ctx context.Context, req *ChatRequest) (*LLMResponse, error) {
	var lastErr error
	for attempt := 0; attempt < r.maxAttempts; attempt++ {
		if attempt > 0 {
			delay := r.backoff(attempt)
			r.logger.Warn("retrying llm call",
				zap.Int("attempt", attempt+1),
				zap.Duration("delay", delay),
				zap.Error(lastErr))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		resp, err := r.inner.Chat(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !isRetryable(err) {
			return nil, err
		}
	}
	return nil, lastErr
}

// backoff returns the delay before the given attempt: exponential with
// up to 25% random jitter to avoid thundering herds.
func (r *RetryProvider) backoff(attempt int) time.Duration {
	delay := r.baseDelay << (attempt - 1)
	jitter := time.Duration(rand.Int63n(int64(delay) / 4))
	return delay + jitter
}

// isRetryable returns true for errors that warrant another attempt or a
// different provider.
func isRetryable(err error) bool {
	var llmErr *LLMError
	if !errors.As(err, &llmErr) {
		return true // unknown errors are retryable
	}
	switch llmErr.Type {
	case ErrorAuth, ErrorInvalidInput:
		return false // these won't succeed on retry
	case ErrorRateLimit, ErrorServerError, ErrorTimeout, ErrorNetwork:
		return true
	default:
		return true
	}
}
