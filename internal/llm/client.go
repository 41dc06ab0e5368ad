// Package llm provides the Claude Haiku API client used to phrase the
// agent's chat replies.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

const (
	apiURL       = "https://api.anthropic.com/v1/messages"
	apiVersion   = "2023-06-01"
	defaultModel = "claude-haiku-4-5-20251001"
	maxRetries   = 3
)

var (
	// ErrDisabled is returned by a client without an API key.
	ErrDisabled = errors.New("LLM client not configured")
	// ErrRateLimited is returned when the local per-minute budget is spent
	// or the API keeps answering 429.
	ErrRateLimited = errors.New("rate limit exceeded")
)

// Options configures a Client. Zero fields take defaults.
type Options struct {
	APIKey    string
	Model     string
	BaseURL   string
	MaxPerMin int
	Timeout   time.Duration
}

// Client wraps the Anthropic Messages API for Haiku calls.
type Client struct {
	apiKey     string
	model      string
	url        string
	httpClient *http.Client

	// Rate limiting: max calls per minute.
	mu        sync.Mutex
	callCount int
	resetAt   time.Time
	maxPerMin int

	// sleep waits between 429 retries; replaced in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewClient creates a new Haiku API client.
// Returns nil if the API key is empty (LLM features disabled).
func NewClient(opts Options) *Client {
	if opts.APIKey == "" {
		return nil
	}
	c := &Client{
		apiKey:     opts.APIKey,
		model:      opts.Model,
		url:        opts.BaseURL,
		httpClient: &http.Client{Timeout: opts.Timeout},
		maxPerMin:  opts.MaxPerMin,
		sleep:      sleepCtx,
	}
	if c.model == "" {
		c.model = defaultModel
	}
	if c.url == "" {
		c.url = apiURL
	}
	if c.httpClient.Timeout <= 0 {
		c.httpClient.Timeout = 30 * time.Second
	}
	if c.maxPerMin <= 0 {
		c.maxPerMin = 20 // Conservative rate limit
	}
	return c
}

// Enabled returns true if the client has a valid API key.
func (c *Client) Enabled() bool {
	return c != nil && c.apiKey != ""
}

// Message represents a chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// request is the API request body.
type request struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	System    string    `json:"system,omitempty"`
	Messages  []Message `json:"messages"`
}

// response is the API response body.
type response struct {
	Content []struct {
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// Complete sends a prompt to Haiku and returns the response text. HTTP 429
// answers are retried after 2s and 4s; ctx bounds the whole exchange.
func (c *Client) Complete(ctx context.Context, system, userPrompt string, maxTokens int) (string, error) {
	if !c.Enabled() {
		return "", ErrDisabled
	}
	if err := c.take(); err != nil {
		return "", err
	}

	body, err := json.Marshal(request{
		Model:     c.model,
		MaxTokens: maxTokens,
		System:    system,
		Messages: []Message{
			{Role: "user", Content: userPrompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	for attempt := 1; ; attempt++ {
		status, respBody, err := c.post(ctx, body)
		if err != nil {
			return "", err
		}
		if status == http.StatusTooManyRequests {
			if attempt >= maxRetries {
				return "", fmt.Errorf("%w: API returned 429 after %d attempts", ErrRateLimited, attempt)
			}
			wait := time.Duration(1<<attempt) * time.Second
			slog.Warn("model rate limited, retrying", "attempt", attempt, "wait", wait)
			if err := c.sleep(ctx, wait); err != nil {
				return "", err
			}
			continue
		}
		if status != http.StatusOK {
			return "", fmt.Errorf("API error %d: %s", status, truncate(string(respBody), 200))
		}
		return decode(respBody)
	}
}

// take spends one call from the per-minute budget.
func (c *Client) take() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	if now.After(c.resetAt) {
		c.callCount = 0
		c.resetAt = now.Add(time.Minute)
	}
	if c.callCount >= c.maxPerMin {
		return fmt.Errorf("%w (%d calls/min)", ErrRateLimited, c.maxPerMin)
	}
	c.callCount++
	return nil
}

func (c *Client) post(ctx context.Context, body []byte) (int, []byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return 0, nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", apiVersion)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return 0, nil, fmt.Errorf("API call: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, respBody, nil
}

func decode(respBody []byte) (string, error) {
	var apiResp response
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return "", fmt.Errorf("unmarshal response: %w", err)
	}
	if len(apiResp.Content) == 0 {
		return "", fmt.Errorf("empty response")
	}

	slog.Debug("haiku call",
		"input_tokens", apiResp.Usage.InputTokens,
		"output_tokens", apiResp.Usage.OutputTokens,
	)
	return apiResp.Content[0].Text, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
