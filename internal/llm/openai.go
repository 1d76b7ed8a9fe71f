package llm

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// OpenAIProvider talks to the chat completions endpoint of OpenAI or any
// compatible service (OpenRouter, Groq, a local proxy).
type OpenAIProvider struct {
	model string
	api   apiClient
}

// NewOpenAIProvider returns a provider for model at baseURL.
func NewOpenAIProvider(apiKey, model, baseURL string, timeout time.Duration) *OpenAIProvider {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+apiKey)
	return &OpenAIProvider{
		model: model,
		api:   newAPIClient(baseURL, timeout, header),
	}
}

// Name returns the provider name.
func (p *OpenAIProvider) Name() string {
	return "openai"
}

// Complete sends prompt as a single user message and returns the first choice.
func (p *OpenAIProvider) Complete(ctx context.Context, prompt string) (string, error) {
	req := chatRequest{
		Model:               p.model,
		Messages:            []chatMessage{{Role: "user", Content: prompt}},
		MaxCompletionTokens: 1024,
		Temperature:         0,
	}

	var resp chatResponse
	if err := p.api.post(ctx, "/chat/completions", req, &resp); err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("empty choices array")
	}
	return resp.Choices[0].Message.Content, nil
}

type chatRequest struct {
	Model               string        `json:"model"`
	Messages            []chatMessage `json:"messages"`
	MaxCompletionTokens int           `json:"max_completion_tokens,omitempty"`
	Temperature         float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}
