// Package llm wraps the external LLM provider call with bounded retries,
// exponential backoff and a circuit breaker. Only masked text ever reaches
// this package.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/securedocflow/securedoc-proxy/internal/config"
	"github.com/securedocflow/securedoc-proxy/internal/logger"
	"go.uber.org/zap"
)

// Client talks to the upstream LLM provider. Safe for concurrent use; the
// breaker state is shared across all calls made by one instance.
type Client struct {
	cfg     config.LLMConfig
	http    *http.Client
	breaker *breaker
	logger  *logger.Logger
}

// New creates an LLM client from configuration.
func New(cfg config.LLMConfig, log *logger.Logger) *Client {
	return &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		breaker: newBreaker(cfg.CircuitThreshold),
		logger:  log,
	}
}

// Generate sends masked text to the provider and returns the generated
// response. With no API key configured, or with the circuit open, it returns
// the degraded fallback instead of touching the network. A cancelled context
// abandons the call without mutating breaker state.
func (c *Client) Generate(ctx context.Context, masked, task string) (string, error) {
	if c.cfg.APIKey == "" {
		c.logger.Warn("LLM API key not configured, returning fallback response")
		return Fallback(masked, task), nil
	}

	if c.breaker.open() {
		c.logger.Error("circuit breaker open, returning fallback response",
			zap.Int("consecutive_failures", c.breaker.count()),
		)
		return Fallback(masked, task), nil
	}

	var lastErr error

	for attempt := 0; attempt < c.cfg.MaxRetries; attempt++ {
		out, err := c.request(ctx, masked, task)
		if err == nil {
			c.breaker.reset()
			return out, nil
		}
		lastErr = err

		// Abandoned by the caller: no breaker mutation either way.
		if ctx.Err() != nil {
			return "", fmt.Errorf("llm call abandoned: %w", ctx.Err())
		}

		var ue *UpstreamError
		if errors.As(err, &ue) && !ue.Retryable {
			c.logger.Error("non-retryable upstream error",
				zap.Int("status", ue.Status),
			)
			c.breaker.recordFailure()
			return "", err
		}

		if !retryable(err) {
			// Unexpected failure class; do not spin on it.
			c.logger.Error("unexpected upstream error", zap.Error(err))
			c.breaker.recordFailure()
			break
		}

		if attempt < c.cfg.MaxRetries-1 {
			delay := c.cfg.RetryBaseDelay * time.Duration(1<<attempt)
			c.logger.Warn("retryable upstream failure, backing off",
				zap.Int("attempt", attempt+1),
				zap.Int("max_retries", c.cfg.MaxRetries),
				zap.Duration("delay", delay),
			)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return "", fmt.Errorf("llm call abandoned: %w", ctx.Err())
			}
		} else {
			c.logger.Error("upstream retries exhausted",
				zap.Int("max_retries", c.cfg.MaxRetries),
			)
			c.breaker.recordFailure()
		}
	}

	return "", fmt.Errorf("%w after %d attempts: %v", ErrExhausted, c.cfg.MaxRetries, lastErr)
}

// retryable reports whether an error is worth another attempt: a retryable
// upstream status or a transport timeout.
func retryable(err error) bool {
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return ue.Retryable
	}
	var timeout interface{ Timeout() bool }
	if errors.As(err, &timeout) {
		return timeout.Timeout()
	}
	return false
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// request performs one HTTP round trip to the provider.
func (c *Client) request(ctx context.Context, masked, task string) (string, error) {
	payload := chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: "You are a medical assistant. Task: " + task},
			{Role: "user", Content: masked},
		},
		Temperature: 0.7,
		MaxTokens:   2000,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	c.logger.Debug("calling LLM provider",
		zap.String("model", c.cfg.Model),
		zap.Int("prompt_length", len(masked)),
	)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("upstream request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return "", &UpstreamError{
			Status:    resp.StatusCode,
			Retryable: retryableStatuses[resp.StatusCode],
		}
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("upstream response has no choices")
	}

	c.logger.Debug("LLM provider call succeeded",
		zap.Int("response_length", len(out.Choices[0].Message.Content)),
	)
	return out.Choices[0].Message.Content, nil
}

// Fallback builds the degraded response served when the provider cannot be
// reached. It derives only from the masked input and the task, so it can
// never reintroduce PHI.
func Fallback(masked, task string) string {
	preview := masked
	if utf8.RuneCountInString(preview) > 200 {
		runes := []rune(preview)
		preview = string(runes[:200])
	}
	return fmt.Sprintf(
		"[Fallback response for task: %s]\n\nAnalysis of masked text:\n%s...\n\nSummary: The masked document shows clinical information with protected identifiers withheld.",
		task, preview,
	)
}
