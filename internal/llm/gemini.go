package llm

import (
	"context"
	"fmt"
	"net/http"

	"google.golang.org/genai"
)

// GeminiProvider implements the Provider interface for Google's Gemini API.
type GeminiProvider struct {
	client *genai.Client
	model  string
}

// NewGeminiProvider creates a Gemini provider. cfg.BaseURL overrides the API
// endpoint when set.
func NewGeminiProvider(ctx context.Context, cfg Config) (*GeminiProvider, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}

	clientCfg := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Timeout: timeout},
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &GeminiProvider{client: client, model: cfg.Model}, nil
}

// Name returns the provider name.
func (p *GeminiProvider) Name() string {
	return "gemini"
}

// Complete sends the prompt to the Gemini API and returns the reply text.
func (p *GeminiProvider) Complete(ctx context.Context, prompt string) (string, error) {
	result, err := p.client.Models.GenerateContent(ctx, p.model, genai.Text(prompt), &genai.GenerateContentConfig{
		Temperature: genai.Ptr[float32](0),
	})
	if err != nil {
		return "", fmt.Errorf("GenAI generate failed: %w", err)
	}
	if len(result.Candidates) == 0 {
		return "", fmt.Errorf("no candidates returned")
	}
	return result.Text(), nil
}
