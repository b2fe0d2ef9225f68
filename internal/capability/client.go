// Package capability provides the shared plumbing for calls to the external
// semantic capability: an OpenAI-compatible chat-completions client, response
// payload parsing, optional response caching, and call metrics.
//
// Callers treat the capability as best-effort: every scoring path that uses
// it has a deterministic fallback, so errors from this package are logged and
// absorbed, never surfaced to API callers.
package capability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// ErrUnavailable indicates the capability is not configured (no API key or
// endpoint); callers should go straight to their fallback.
var ErrUnavailable = errors.New("capability not configured")

// Timeout bounds for a single capability call.
const (
	MinTimeout     = 10 * time.Second
	MaxTimeout     = 30 * time.Second
	DefaultTimeout = 15 * time.Second
)

// Completer is the minimal completion surface consumers depend on.
type Completer interface {
	// Complete sends a system + user prompt pair and returns the raw text
	// of the first choice.
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// Config holds client construction parameters.
type Config struct {
	BaseURL string // e.g. "https://api.openai.com/v1"
	APIKey  string
	Model   string
	Timeout time.Duration // clamped to [MinTimeout, MaxTimeout]; DefaultTimeout when zero
}

// Client is an OpenAI-compatible chat-completions client.
// A call is a single attempt with a context deadline; there are no retries.
type Client struct {
	client  *http.Client
	baseURL string
	apiKey  string
	model   string
	timeout time.Duration
	metrics *Metrics
}

// NewClient creates a capability client. The HTTP transport is instrumented
// for tracing. Metrics may be nil.
func NewClient(cfg Config, metrics *Metrics) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	if timeout < MinTimeout {
		timeout = MinTimeout
	}
	if timeout > MaxTimeout {
		timeout = MaxTimeout
	}

	return &Client{
		client: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		baseURL: baseURL,
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		timeout: timeout,
		metrics: metrics,
	}
}

// Available reports whether the client is configured to make calls.
func (c *Client) Available() bool {
	return c.apiKey != ""
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Complete sends a system + user prompt pair and returns the raw text of the
// first choice. Single attempt; the context deadline is the configured call
// timeout unless the caller's context expires sooner.
func (c *Client) Complete(ctx context.Context, system, prompt string) (string, error) {
	if !c.Available() {
		return "", ErrUnavailable
	}

	start := time.Now()
	text, err := c.complete(ctx, system, prompt)
	if c.metrics != nil {
		c.metrics.ObserveCall(time.Since(start).Seconds(), err)
	}
	return text, err
}

func (c *Client) complete(ctx context.Context, system, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	payload, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("capability: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("capability: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("capability: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("capability: unexpected status %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	var decoded chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("capability: decode response: %w", err)
	}
	if len(decoded.Choices) == 0 {
		return "", errors.New("capability: response has no choices")
	}
	return decoded.Choices[0].Message.Content, nil
}
