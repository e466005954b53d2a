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
)

// Client calls any OpenAI-compatible chat-completions endpoint (hosted
// providers as well as ollama and lmstudio expose this shape).
type Client struct {
	provider string
	model    string
	baseURL  string
	apiKey   string
	http     *http.Client
}

// NewClient creates a backend client. baseURL is the API root, e.g.
// "https://api.openai.com/v1" or "http://localhost:11434/v1".
func NewClient(provider, model, baseURL, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &Client{
		provider: provider,
		model:    model,
		baseURL:  strings.TrimRight(baseURL, "/"),
		apiKey:   apiKey,
		http:     &http.Client{Timeout: timeout},
	}
}

// Provider returns the configured provider name.
func (c *Client) Provider() string { return c.provider }

// Model returns the configured model identifier.
func (c *Client) Model() string { return c.model }

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
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    any    `json:"code"`
	} `json:"error"`
}

// Complete issues one chat-completions call.
func (c *Client) Complete(ctx context.Context, req Request) (string, error) {
	payload := chatRequest{
		Model:       c.model,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxOutputTokens,
		Messages: []chatMessage{
			{Role: "system", Content: req.SystemPrompt},
			{Role: "user", Content: req.UserPrompt},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("llm: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("llm: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("llm: call %s: %w", c.provider, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return "", fmt.Errorf("llm: read response: %w", err)
	}

	var parsed chatResponse
	decodeErr := json.Unmarshal(raw, &parsed)

	if resp.StatusCode != http.StatusOK {
		msg := string(raw)
		if decodeErr == nil && parsed.Error != nil {
			msg = parsed.Error.Message
		}
		if resp.StatusCode == http.StatusBadRequest && looksLikeOverflow(msg) {
			return "", &OverflowError{RequestedTokens: req.MaxOutputTokens, Message: msg}
		}
		return "", fmt.Errorf("llm: %s returned status %d: %s", c.provider, resp.StatusCode, msg)
	}
	if decodeErr != nil {
		return "", fmt.Errorf("llm: decode response: %w", decodeErr)
	}

	if len(parsed.Choices) == 0 {
		return "", nil
	}
	return parsed.Choices[0].Message.Content, nil
}

// overflowHints are substrings backends use when the requested output
// allowance does not fit. Matched case-insensitively on 400 responses.
var overflowHints = []string{
	"max_tokens",
	"maximum context length",
	"context length exceeded",
	"too many tokens",
	"exceeds the limit",
	"output limit",
}

func looksLikeOverflow(msg string) bool {
	lower := strings.ToLower(msg)
	for _, h := range overflowHints {
		if strings.Contains(lower, h) {
			return true
		}
	}
	return false
}
