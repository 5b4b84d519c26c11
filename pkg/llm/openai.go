package llm

import (
	"context"
	"fmt"
	"strings"
)

// OpenAI is a client for OpenAI-compatible chat-completions APIs. It serves
// the openai, openrouter and groq providers.
type OpenAI struct {
	client      *client
	baseURL     string
	apiKey      string
	model       string
	temperature float64
	maxTokens   int
}

// NewOpenAI creates a chat-completions client from a resolved config.
func NewOpenAI(cfg Config) *OpenAI {
	return &OpenAI{
		client:      newClient(cfg.Provider, cfg.Timeout, cfg.Retries, cfg.Headers),
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Generate sends prompt as a single user message and returns the first choice.
func (o *OpenAI) Generate(ctx context.Context, prompt string) (string, error) {
	req := chatRequest{
		Model:       o.model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		MaxTokens:   o.maxTokens,
		Temperature: o.temperature,
	}
	headers := map[string]string{"Authorization": "Bearer " + o.apiKey}

	var resp chatResponse
	if err := o.client.postJSON(ctx, o.baseURL+"/chat/completions", headers, req, &resp); err != nil {
		return "", err
	}
	if resp.Error.Message != "" {
		return "", &APIError{Provider: o.client.provider, Status: 200, Message: resp.Error.Message}
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("%w from %s", ErrEmptyResponse, o.client.provider)
	}
	return resp.Choices[0].Message.Content, nil
}

// Model returns the model being used by this client.
func (o *OpenAI) Model() string { return o.model }
