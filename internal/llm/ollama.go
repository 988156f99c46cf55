// Package llm is the boundary to the language model that answers questions
// over a packed context.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	ollama "github.com/ollama/ollama/api"
)

// ErrUnavailable means the model could not be reached after all retries.
var ErrUnavailable = errors.New("language model unavailable")

// Generator produces a completion for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type Config struct {
	Host        string
	Model       string
	Timeout     time.Duration
	MaxRetries  int
	Temperature float64
	MaxTokens   int
	RetryDelay  time.Duration // first backoff step
}

// Client calls an Ollama server's generate endpoint.
type Client struct {
	api   *ollama.Client
	cfg   Config
	stats *LLMStats
	log   *slog.Logger
}

func NewClient(cfg Config, stats *LLMStats, log *slog.Logger) (*Client, error) {
	if log == nil {
		log = slog.Default()
	}
	if cfg.Host == "" {
		cfg.Host = "http://localhost:11434"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 2048
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	u, err := url.Parse(cfg.Host)
	if err != nil {
		return nil, fmt.Errorf("invalid llm host %q: %w", cfg.Host, err)
	}
	if stats == nil {
		stats = NewLLMStats(time.Hour)
	}
	return &Client{
		api:   ollama.NewClient(u, &http.Client{Timeout: cfg.Timeout}),
		cfg:   cfg,
		stats: stats,
		log:   log,
	}, nil
}

// Stats returns the latency tracker this client records into.
func (c *Client) Stats() *LLMStats { return c.stats }

func (c *Client) Model() string { return c.cfg.Model }

// Generate retries transient failures with exponential backoff. Exhausted
// retries wrap ErrUnavailable.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	var answer string
	err := retry.Do(
		func() error {
			start := time.Now()
			out, err := c.generateOnce(ctx, prompt)
			c.stats.Record(time.Since(start).Milliseconds(), err)
			if err != nil {
				return err
			}
			answer = out
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(uint(c.cfg.MaxRetries)),
		retry.Delay(c.cfg.RetryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.RetryIf(IsRetryable),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			c.log.Warn("llm call failed, retrying", "attempt", n+1, "model", c.cfg.Model, "error", err)
		}),
	)
	if err != nil {
		if IsRetryable(err) {
			return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return "", err
	}
	return answer, nil
}

func (c *Client) generateOnce(ctx context.Context, prompt string) (string, error) {
	stream := false
	req := &ollama.GenerateRequest{
		Model:  c.cfg.Model,
		Prompt: prompt,
		Stream: &stream,
		Options: map[string]any{
			"temperature":    c.cfg.Temperature,
			"num_predict":    c.cfg.MaxTokens,
			"top_p":          0.9,
			"repeat_penalty": 1.1,
		},
	}

	var sb strings.Builder
	err := c.api.Generate(ctx, req, func(gr ollama.GenerateResponse) error {
		sb.WriteString(gr.Response)
		return nil
	})
	if err != nil {
		return "", classify(ctx, err)
	}

	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", &RetryableError{StatusCode: http.StatusOK, Message: "empty response"}
	}
	return text, nil
}

// classify marks rate limits, server errors and transport failures as
// retryable. Cancellation and other client errors are final.
func classify(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return fmt.Errorf("ollama generate: %w", err)
	}
	var se ollama.StatusError
	if errors.As(err, &se) {
		if se.StatusCode == http.StatusTooManyRequests || se.StatusCode >= 500 {
			return &RetryableError{StatusCode: se.StatusCode, Message: se.Error()}
		}
		return fmt.Errorf("ollama status %d: %w", se.StatusCode, err)
	}
	return &RetryableError{Message: err.Error()}
}

// RetryableError indicates a transient failure that can be retried.
type RetryableError struct {
	StatusCode int
	Message    string
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("retryable error (status %d): %s", e.StatusCode, truncate(e.Message, 200))
}

// IsRetryable checks if an error is worth retrying.
func IsRetryable(err error) bool {
	var retryErr *RetryableError
	return errors.As(err, &retryErr)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
