package llm

import (
	"context"
	"fmt"
	"strings"
)

// anthropicVersion is the API version header sent with every request.
const anthropicVersion = "2023-06-01"

// Claude is a client for the Anthropic messages API.
type Claude struct {
	client      *client
	baseURL     string
	apiKey      string
	model       string
	temperature float64
	maxTokens   int
}

// NewClaude creates a messages client from a resolved config.
func NewClaude(cfg Config) *Claude {
	return &Claude{
		client:      newClient(cfg.Provider, cfg.Timeout, cfg.Retries, cfg.Headers),
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
	}
}

type messagesRequest struct {
	Model       string        `json:"model"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
	Messages    []chatMessage `json:"messages"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// Generate sends prompt as a single user message and joins the text blocks
// of the reply.
func (c *Claude) Generate(ctx context.Context, prompt string) (string, error) {
	req := messagesRequest{
		Model:       c.model,
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
	}
	headers := map[string]string{
		"x-api-key":         c.apiKey,
		"anthropic-version": anthropicVersion,
	}

	var resp messagesResponse
	if err := c.client.postJSON(ctx, c.baseURL+"/messages", headers, req, &resp); err != nil {
		return "", err
	}
	if resp.Error.Message != "" {
		return "", &APIError{Provider: c.client.provider, Status: 200, Message: resp.Error.Message}
	}

	var b strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("%w from %s", ErrEmptyResponse, c.client.provider)
	}
	return b.String(), nil
}

// Model returns the model being used by this client.
func (c *Claude) Model() string { return c.model }
