// Package llm talks to an OpenAI-compatible chat-completions endpoint. It is
// the transport shared by the AI candidate ranker and the review evaluator;
// both keep the same contract: one attempt, caller-supplied deadline, typed
// provider errors so callers can fall back deterministically.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/justDance-everybody/Taskbot-MVP/internal/domain"
)

// Client calls a chat-completions API.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client. Used by tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithModel sets the model name sent with each request.
func WithModel(model string) Option {
	return func(c *Client) { c.model = model }
}

// NewClient builds a Client for the given endpoint. baseURL is the API root,
// e.g. "https://api.openai.com/v1".
func NewClient(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   "gpt-4o-mini",
		// The transport timeout is a backstop; callers set the real deadline
		// through ctx.
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name identifies the provider in logs and metrics.
func (c *Client) Name() string { return "openai-compat" }

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	Temperature    float64       `json:"temperature"`
	ResponseFormat *respFormat   `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type respFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Complete sends one chat-completions request and returns the first choice's
// content. There is no retry here: each caller decides its own fallback.
func (c *Client) Complete(ctx context.Context, system, user string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature:    0.1,
		ResponseFormat: &respFormat{Type: "json_object"},
	})
	if err != nil {
		return "", fmt.Errorf("marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", &domain.ProviderTimeoutError{Provider: c.Name(), Timeout: 0}
		}
		return "", &domain.ProviderError{Provider: c.Name(), Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", &domain.ProviderError{Provider: c.Name(), Err: err}
	}

	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", &domain.ProviderError{Provider: c.Name(), Err: fmt.Errorf("decode response: %w", err)}
	}
	if resp.StatusCode != http.StatusOK {
		msg := "status " + resp.Status
		if parsed.Error != nil {
			msg = parsed.Error.Message
		}
		return "", &domain.ProviderError{Provider: c.Name(), Err: fmt.Errorf("api error: %s", msg)}
	}
	if len(parsed.Choices) == 0 {
		return "", &domain.ProviderError{Provider: c.Name(), Err: fmt.Errorf("empty choices")}
	}
	return parsed.Choices[0].Message.Content, nil
}

// ExtractJSON strips markdown code fences some models wrap around JSON output.
func ExtractJSON(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if i := strings.LastIndex(s, "```"); i >= 0 {
			s = s[:i]
		}
	}
	return strings.TrimSpace(s)
}
