// Package ratelimit decorates the embedding and completion providers with
// client-side rate limiting and bounded retry.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/meridianlab/semsearch/internal/domain"
)

var (
	baseBackoff = 500 * time.Millisecond
	maxBackoff  = 8 * time.Second
)

// Embedder wraps a domain.Embedder with rate limiting and retry.
type Embedder struct {
	inner      domain.Embedder
	limiter    *rate.Limiter
	maxRetries int
	logger     *zap.Logger
}

// NewEmbedder creates a rate-limited embedder. perMinute <= 0 disables limiting.
func NewEmbedder(inner domain.Embedder, perMinute, maxRetries int, logger *zap.Logger) *Embedder {
	return &Embedder{
		inner:      inner,
		limiter:    newLimiter(perMinute),
		maxRetries: maxRetries,
		logger:     logger,
	}
}

// Embed implements domain.Embedder.
func (e *Embedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	var result domain.EmbeddingResult
	err := call(ctx, e.limiter, e.maxRetries, e.logger, "embed", func() error {
		var innerErr error
		result, innerErr = e.inner.Embed(ctx, text)
		return innerErr
	})
	if err != nil {
		return domain.EmbeddingResult{}, err
	}
	return result, nil
}

// Completer wraps a domain.Completer with rate limiting and retry.
type Completer struct {
	inner      domain.Completer
	limiter    *rate.Limiter
	maxRetries int
	logger     *zap.Logger
}

// NewCompleter creates a rate-limited completer. perMinute <= 0 disables limiting.
func NewCompleter(inner domain.Completer, perMinute, maxRetries int, logger *zap.Logger) *Completer {
	return &Completer{
		inner:      inner,
		limiter:    newLimiter(perMinute),
		maxRetries: maxRetries,
		logger:     logger,
	}
}

// Complete implements domain.Completer.
func (c *Completer) Complete(ctx context.Context, prompt string) (string, error) {
	var out string
	err := call(ctx, c.limiter, c.maxRetries, c.logger, "complete", func() error {
		var innerErr error
		out, innerErr = c.inner.Complete(ctx, prompt)
		return innerErr
	})
	if err != nil {
		return "", err
	}
	return out, nil
}

func newLimiter(perMinute int) *rate.Limiter {
	if perMinute <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), perMinute)
}

// call runs fn under the limiter, retrying retryable failures with
// exponential backoff up to maxRetries extra attempts.
func call(
	ctx context.Context, limiter *rate.Limiter, maxRetries int,
	logger *zap.Logger, op string, fn func() error,
) error {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limit wait: %w", err)
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !retryable(lastErr) || attempt == maxRetries {
			return lastErr
		}

		delay := backoff(attempt)
		if logger != nil {
			logger.Warn("Retrying after provider error",
				zap.String("op", op),
				zap.Int("attempt", attempt+1),
				zap.Duration("delay", delay),
				zap.Error(lastErr))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return lastErr
}

func retryable(err error) bool {
	return errors.Is(err, domain.ErrRateLimited) ||
		errors.Is(err, domain.ErrEmbeddingUnavailable) ||
		errors.Is(err, domain.ErrLLMUnavailable)
}

func backoff(attempt int) time.Duration {
	d := baseBackoff << attempt
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}
