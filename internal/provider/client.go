// Package provider executes chat completions against the upstream LLM
// APIs. Every provider in the catalog speaks the OpenAI-compatible
// chat/completions wire format, so a single client covers all of them;
// only the base URL and API key differ.
package provider

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
)

// Sentinel errors classifying completion failures. A failed completion
// is always fatal to the current attempt; the escalation loop decides
// what happens next.
var (
	ErrNotConfigured = errors.New("provider not configured")
	ErrUnavailable   = errors.New("provider unavailable")
	ErrAuth          = errors.New("provider rejected credentials")
)

// maxResponseBytes caps how much of an upstream response body is read.
const maxResponseBytes = 10 << 20

// Message is one turn of an OpenAI-style chat conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// UserMessage wraps a prompt as a single-turn conversation.
func UserMessage(content string) []Message {
	return []Message{{Role: "user", Content: content}}
}

// Result is a completed chat call with the real token usage reported
// by the provider.
type Result struct {
	Content          string
	Model            string
	PromptTokens     int
	CompletionTokens int
}

type chatRequest struct {
	Model     string    `json:"model"`
	Messages  []Message `json:"messages"`
	MaxTokens int       `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Client calls one provider's chat endpoint.
type Client struct {
	provider string
	baseURL  string
	apiKey   string
	http     *http.Client
}

// NewClient builds a client for one provider. baseURL is the API root
// without a trailing slash, e.g. "https://api.openai.com/v1".
func NewClient(provider, baseURL, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		provider: provider,
		baseURL:  strings.TrimRight(baseURL, "/"),
		apiKey:   apiKey,
		http:     &http.Client{Timeout: timeout},
	}
}

// Complete sends a chat completion and returns the first choice.
func (c *Client) Complete(ctx context.Context, model string, messages []Message, maxTokens int) (*Result, error) {
	body, err := json.Marshal(chatRequest{Model: model, Messages: messages, MaxTokens: maxTokens})
	if err != nil {
		return nil, fmt.Errorf("provider.Complete: marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("provider.Complete: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("provider.Complete: %s: %w: %v", c.provider, ErrUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("provider.Complete: %s: %w: read body: %v", c.provider, ErrUnavailable, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, classifyStatus(c.provider, resp.StatusCode, raw)
	}

	var out chatResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("provider.Complete: %s: %w: decode: %v", c.provider, ErrUnavailable, err)
	}
	if out.Error != nil {
		return nil, fmt.Errorf("provider.Complete: %s: %w: %s", c.provider, ErrUnavailable, out.Error.Message)
	}
	if len(out.Choices) == 0 {
		return nil, fmt.Errorf("provider.Complete: %s: %w: response has no choices", c.provider, ErrUnavailable)
	}

	res := &Result{
		Content:          out.Choices[0].Message.Content,
		Model:            out.Model,
		PromptTokens:     out.Usage.PromptTokens,
		CompletionTokens: out.Usage.CompletionTokens,
	}
	if res.Model == "" {
		res.Model = model
	}
	return res, nil
}

// classifyStatus maps an HTTP error status onto the failure taxonomy:
// 401/403 are credential problems, everything else (429, 5xx, odd 4xx)
// means the provider could not serve this attempt.
func classifyStatus(provider string, status int, body []byte) error {
	snippet := strings.TrimSpace(string(body))
	if len(snippet) > 200 {
		snippet = snippet[:200]
	}
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return fmt.Errorf("provider.Complete: %s: %w: status %d: %s", provider, ErrAuth, status, snippet)
	}
	return fmt.Errorf("provider.Complete: %s: %w: status %d: %s", provider, ErrUnavailable, status, snippet)
}
