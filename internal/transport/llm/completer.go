package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"

	"github.com/meridianlab/semsearch/internal/domain"
	"github.com/meridianlab/semsearch/internal/metrics"
)

// Client implements domain.Completer over an OpenAI-compatible chat API.
type Client struct {
	model     llms.Model
	modelName string
	purpose   string
	timeout   time.Duration
	logger    *zap.Logger
}

// Config holds the chat completion provider settings.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
	Logger  *zap.Logger
}

// New creates a chat completion client.
func New(cfg *Config) (*Client, error) {
	opts := []openai.Option{
		openai.WithToken(cfg.APIKey),
		openai.WithModel(cfg.Model),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}

	model, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("create llm client: %w", err)
	}

	return &Client{
		model:     model,
		modelName: cfg.Model,
		purpose:   "chat",
		timeout:   cfg.Timeout,
		logger:    cfg.Logger,
	}, nil
}

// ForPurpose returns a copy of the client whose metrics carry the given
// purpose label (e.g. "expansion", "summary").
func (c *Client) ForPurpose(purpose string) *Client {
	cp := *c
	cp.purpose = purpose
	return &cp
}

// Complete implements domain.Completer. Every failure is wrapped with
// domain.ErrLLMUnavailable so callers can degrade instead of failing.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()

	out, err := llms.GenerateFromSinglePrompt(ctx, c.model, prompt, llms.WithTemperature(0.7))

	duration := time.Since(start)

	if err != nil {
		metrics.LLMRequestsTotal.WithLabelValues(c.modelName, c.purpose, "error").Inc()
		c.logger.Warn("LLM completion failed",
			zap.String("purpose", c.purpose),
			zap.Duration("duration", duration),
			zap.Error(err))
		return "", fmt.Errorf("llm completion: %v: %w", err, domain.ErrLLMUnavailable)
	}

	metrics.LLMRequestsTotal.WithLabelValues(c.modelName, c.purpose, "success").Inc()
	metrics.LLMRequestDuration.WithLabelValues(c.modelName, c.purpose).Observe(duration.Seconds())

	return out, nil
}

// HealthCheck verifies the provider answers at all. It requests a
// single token to keep the probe cheap.
func (c *Client) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := llms.GenerateFromSinglePrompt(ctx, c.model, "ping", llms.WithMaxTokens(1))
	if err != nil {
		return fmt.Errorf("llm health check: %w", err)
	}
	return nil
}
