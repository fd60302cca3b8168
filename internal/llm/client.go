// Package llm wraps a chat-completion HTTP API with retry, timeout and
// error classification. The report generator and the AI question generator
// both go through this client.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

// ErrorKind classifies an API failure so callers can decide between retry,
// fallback and surfacing the error.
type ErrorKind string

const (
	KindUnauthorized ErrorKind = "unauthorized"
	KindRateLimited  ErrorKind = "rate_limited"
	KindServerError  ErrorKind = "server_error"
	KindTimeout      ErrorKind = "timeout"
	KindConnection   ErrorKind = "connection"
	KindMalformed    ErrorKind = "malformed_response"
	KindAPI          ErrorKind = "api_error"
)

// APIError carries the failure class plus enough context (status code or
// message fragment) for the caller to decide fallback behavior.
type APIError struct {
	Kind    ErrorKind
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("llm: %s (status %d): %s", e.Kind, e.Status, e.Message)
	}
	return fmt.Sprintf("llm: %s: %s", e.Kind, e.Message)
}

// Retryable reports whether another attempt can help. A bad API key or a
// structurally broken response will not get better on retry.
func (e *APIError) Retryable() bool {
	switch e.Kind {
	case KindUnauthorized, KindMalformed:
		return false
	}
	return true
}

// ErrGenerationFailed marks a failed AI question generation. Unlike report
// generation there is no local fallback for content generation.
var ErrGenerationFailed = errors.New("question generation failed")

type Config struct {
	BaseURL     string
	APIKey      string
	Model       string
	Timeout     time.Duration
	MaxAttempts int
	RetryDelay  time.Duration
}

const systemPrompt = "You are an IGCSE Physics tutor."

type Client struct {
	cfg        Config
	httpClient *http.Client
	sleep      func(time.Duration)
}

func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 5 * time.Second
	}
	if cfg.Model == "" {
		cfg.Model = "deepseek-chat"
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{},
		sleep:      time.Sleep,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Complete sends the prompt and returns the model's text. Up to
// cfg.MaxAttempts attempts with a fixed cfg.RetryDelay between them.
// Unauthorized and malformed-response failures are not retried.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	var lastErr *APIError

	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		text, err := c.doAttempt(ctx, prompt)
		if err == nil {
			return text, nil
		}

		var apiErr *APIError
		if !errors.As(err, &apiErr) {
			apiErr = &APIError{Kind: KindAPI, Message: err.Error()}
		}
		lastErr = apiErr
		log.Printf("LLM attempt %d/%d failed: %v", attempt, c.cfg.MaxAttempts, apiErr)

		if !apiErr.Retryable() {
			return "", apiErr
		}
		// The caller is gone; retrying would only burn attempts and sleeps.
		if ctx.Err() != nil {
			return "", apiErr
		}
		if attempt < c.cfg.MaxAttempts {
			c.sleep(c.cfg.RetryDelay)
		}
	}

	return "", lastErr
}

func (c *Client) doAttempt(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
		Temperature: 0.7,
		MaxTokens:   2000,
	})
	if err != nil {
		return "", err
	}

	attemptCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, c.cfg.BaseURL, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", classifyTransportError(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", classifyTransportError(err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
		var parsed chatResponse
		if err := json.Unmarshal(data, &parsed); err != nil {
			return "", &APIError{Kind: KindMalformed, Status: resp.StatusCode, Message: err.Error()}
		}
		if len(parsed.Choices) == 0 {
			return "", &APIError{Kind: KindMalformed, Status: resp.StatusCode, Message: "response has no choices"}
		}
		return parsed.Choices[0].Message.Content, nil
	case http.StatusUnauthorized:
		return "", &APIError{Kind: KindUnauthorized, Status: resp.StatusCode, Message: "invalid API key"}
	case http.StatusTooManyRequests:
		return "", &APIError{Kind: KindRateLimited, Status: resp.StatusCode, Message: "rate limited"}
	case http.StatusInternalServerError:
		return "", &APIError{Kind: KindServerError, Status: resp.StatusCode, Message: truncate(string(data), 100)}
	default:
		return "", &APIError{Kind: KindAPI, Status: resp.StatusCode, Message: truncate(string(data), 100)}
	}
}

func classifyTransportError(err error) *APIError {
	if errors.Is(err, context.DeadlineExceeded) {
		return &APIError{Kind: KindTimeout, Message: "request timed out"}
	}
	var timeoutErr interface{ Timeout() bool }
	if errors.As(err, &timeoutErr) && timeoutErr.Timeout() {
		return &APIError{Kind: KindTimeout, Message: "request timed out"}
	}
	return &APIError{Kind: KindConnection, Message: truncate(err.Error(), 200)}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
