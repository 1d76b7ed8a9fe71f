package llm

import (
	"context"
	"errors"
	"net/http"
	"time"
)

const anthropicAPIVersion = "2023-06-01"

// AnthropicProvider talks to Anthropic's Messages API.
type AnthropicProvider struct {
	model string
	api   apiClient
}

// NewAnthropicProvider returns a provider for model at baseURL.
func NewAnthropicProvider(apiKey, model, baseURL string, timeout time.Duration) *AnthropicProvider {
	header := http.Header{}
	header.Set("x-api-key", apiKey)
	header.Set("anthropic-version", anthropicAPIVersion)
	return &AnthropicProvider{
		model: model,
		api:   newAPIClient(baseURL, timeout, header),
	}
}

// Name returns the provider name.
func (p *AnthropicProvider) Name() string {
	return "anthropic"
}

// Complete sends prompt as a single user message and returns the first text
// block of the reply.
func (p *AnthropicProvider) Complete(ctx context.Context, prompt string) (string, error) {
	req := messagesRequest{
		Model:     p.model,
		MaxTokens: 1024,
		Messages:  []chatMessage{{Role: "user", Content: prompt}},
	}

	var resp messagesResponse
	if err := p.api.post(ctx, "/messages", req, &resp); err != nil {
		return "", err
	}
	for _, block := range resp.Content {
		if block.Type == "text" {
			return block.Text, nil
		}
	}
	return "", errors.New("no text content")
}

type messagesRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}
