package review

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

	"github.com/praxislegal/sentinel/internal/config"
)

// Provider failure classes. Wrapped into returned errors so callers can
// distinguish throttling from outage with errors.Is; anything else is an
// unclassified provider error.
var (
	ErrRateLimited = errors.New("provider rate limited")
	ErrUnavailable = errors.New("provider unavailable")
)

// Completion is one chat-completion result.
type Completion struct {
	Text     string
	Provider string
}

// Completer is the AI completion abstraction the reviewer depends on.
type Completer interface {
	Complete(ctx context.Context, prompt string) (Completion, error)
}

// Client calls an OpenAI-compatible chat-completions endpoint. Anthropic
// and self-hosted gateways are reachable through the same surface via
// BaseURL.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	maxTokens  int
	label      string
	httpClient *http.Client
}

func NewClient(cfg config.ProviderConfig) *Client {
	label := cfg.Type
	if label == "" {
		label = "openai"
	}
	return &Client{
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		model:      cfg.Model,
		maxTokens:  cfg.MaxTokens,
		label:      label,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *Client) Complete(ctx context.Context, prompt string) (Completion, error) {
	if strings.TrimSpace(c.apiKey) == "" {
		return Completion{}, fmt.Errorf("missing provider api key")
	}
	baseURL := c.baseURL
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}

	body := map[string]any{
		"model": c.model,
		"messages": []map[string]string{{
			"role":    "user",
			"content": prompt,
		}},
		"max_tokens":  c.maxTokens,
		"temperature": 0.3,
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return Completion{}, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return Completion{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Completion{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return Completion{}, fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return Completion{}, fmt.Errorf("%w: http 429", ErrRateLimited)
	case resp.StatusCode >= 500:
		return Completion{}, fmt.Errorf("%w: http %d", ErrUnavailable, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return Completion{}, fmt.Errorf("provider http %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var decoded struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(respBody, &decoded); err != nil {
		return Completion{}, fmt.Errorf("decode response: %w", err)
	}
	if len(decoded.Choices) == 0 {
		return Completion{}, fmt.Errorf("empty choices in response")
	}
	content := strings.TrimSpace(decoded.Choices[0].Message.Content)
	if content == "" {
		return Completion{}, fmt.Errorf("empty content in response")
	}
	return Completion{Text: content, Provider: c.label}, nil
}
