package ai

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

const openRouterAttempts = 3

// Completer sends one system+user prompt pair and returns the raw model text.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

type OpenRouterClient struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

func NewOpenRouterClient(apiKey, model, baseURL string, timeout time.Duration) *OpenRouterClient {
	return &OpenRouterClient{
		apiKey:  apiKey,
		model:   model,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

type orMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type orResponseFormat struct {
	Type string `json:"type"`
}

type orRequest struct {
	Model          string           `json:"model"`
	Messages       []orMessage      `json:"messages"`
	MaxTokens      int              `json:"max_tokens"`
	Temperature    float64          `json:"temperature"`
	ResponseFormat orResponseFormat `json:"response_format"`
}

type orResponse struct {
	Choices []struct {
		Message      orMessage `json:"message"`
		FinishReason string    `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (c *OpenRouterClient) Complete(ctx context.Context, system, user string) (string, error) {
	if c.apiKey == "" {
		return "", ErrUnavailable
	}

	body, err := json.Marshal(orRequest{
		Model:          c.model,
		MaxTokens:      600,
		ResponseFormat: orResponseFormat{Type: "json_object"},
		Messages: []orMessage{
			{Role: "system", Content: strings.ToValidUTF8(system, "")},
			{Role: "user", Content: strings.ToValidUTF8(user, "")},
		},
	})
	if err != nil {
		return "", err
	}

	lastErr := errors.New("openrouter: no attempts made")
	for attempt := 1; attempt <= openRouterAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		out, retry, err := c.do(ctx, body)
		if err == nil {
			return out, nil
		}
		lastErr = err
		if !retry {
			break
		}
	}
	return "", lastErr
}

// do performs one attempt. retry reports whether another attempt may succeed.
func (c *OpenRouterClient) do(ctx context.Context, body []byte) (string, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", false, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("X-Title", "fliptok")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", true, fmt.Errorf("openrouter request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", true, fmt.Errorf("openrouter read: %w", err)
	}
	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return "", true, fmt.Errorf("openrouter http %d", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return "", false, fmt.Errorf("openrouter http %d: %s", resp.StatusCode, trim(string(raw), 200))
	}

	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return "", true, errors.New("openrouter: empty body")
	}

	var out orResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", true, fmt.Errorf("openrouter decode: %w", err)
	}
	if out.Error != nil {
		return "", false, fmt.Errorf("openrouter: %s", out.Error.Message)
	}
	if len(out.Choices) == 0 {
		return "", true, errors.New("openrouter: no choices")
	}
	if out.Choices[0].FinishReason == "content_filter" {
		return "", false, ErrSafetyBlocked
	}
	return out.Choices[0].Message.Content, false, nil
}

func trim(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "…"
}
