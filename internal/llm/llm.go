// Package llm turns a prompt into a bare SQL statement using a configurable
// text-generation backend.
package llm

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Provider defines the interface for text-generation backends.
type Provider interface {
	// Complete sends prompt to the backend and returns its free-text reply.
	Complete(ctx context.Context, prompt string) (string, error)

	// Name returns the provider name for logging/debugging.
	Name() string
}

// Config holds LLM provider configuration.
type Config struct {
	Provider string        // "gemini", "openai" or "anthropic"
	APIKey   string        // API key for the provider
	Model    string        // Model name (e.g., "gemini-1.5-flash", "gpt-4o")
	BaseURL  string        // Base URL (for OpenRouter, proxies, test servers)
	Timeout  time.Duration // Per-request HTTP timeout (0 = provider default)
}

// ErrMissingAPIKey is returned by NewProvider when no credential is configured.
var ErrMissingAPIKey = errors.New("LLM API key is required")

// NewProvider creates an LLM provider based on configuration.
func NewProvider(ctx context.Context, cfg Config) (Provider, error) {
	if cfg.Provider == "" {
		cfg.Provider = "gemini"
	}

	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}

	switch cfg.Provider {
	case "gemini":
		if cfg.Model == "" {
			cfg.Model = "gemini-1.5-flash"
		}
		return NewGeminiProvider(ctx, cfg)

	case "openai":
		if cfg.Model == "" {
			cfg.Model = "gpt-4o"
		}
		if cfg.BaseURL == "" {
			cfg.BaseURL = "https://api.openai.com/v1"
		}
		return NewOpenAIProvider(cfg.APIKey, cfg.Model, cfg.BaseURL, cfg.Timeout), nil

	case "anthropic":
		if cfg.Model == "" {
			cfg.Model = "claude-sonnet-4-20250514"
		}
		if cfg.BaseURL == "" {
			cfg.BaseURL = "https://api.anthropic.com/v1"
		}
		return NewAnthropicProvider(cfg.APIKey, cfg.Model, cfg.BaseURL, cfg.Timeout), nil

	default:
		return nil, fmt.Errorf("unknown LLM provider: %q (supported: gemini, openai, anthropic)", cfg.Provider)
	}
}

// TranslationError reports a backend that could not produce usable SQL.
type TranslationError struct {
	Provider string
	Reason   string
	Err      error
}

func (e *TranslationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("translate with %s: %s: %v", e.Provider, e.Reason, e.Err)
	}
	return fmt.Sprintf("translate with %s: %s", e.Provider, e.Reason)
}

func (e *TranslationError) Unwrap() error { return e.Err }

// Translator wraps a Provider and normalizes its reply into a bare statement.
type Translator struct {
	provider Provider
}

// NewTranslator returns a Translator backed by p.
func NewTranslator(p Provider) *Translator {
	return &Translator{provider: p}
}

// Name returns the backing provider's name.
func (t *Translator) Name() string { return t.provider.Name() }

// Translate sends prompt to the backend and returns the SQL it produced with
// code fences and surrounding whitespace removed.
func (t *Translator) Translate(ctx context.Context, prompt string) (string, error) {
	raw, err := t.provider.Complete(ctx, prompt)
	if err != nil {
		return "", &TranslationError{Provider: t.provider.Name(), Reason: "backend request failed", Err: err}
	}
	sql := ExtractSQL(raw)
	if sql == "" {
		return "", &TranslationError{Provider: t.provider.Name(), Reason: "model returned no SQL"}
	}
	return sql, nil
}

var fenceMarker = regexp.MustCompile("(?i)```[ \t]*((sql|sqlite|postgres|postgresql)\\b)?")

// ExtractSQL strips Markdown code fences (```, ```sql, ```sqlite,
// ```postgres, ```postgresql in any case) and surrounding whitespace from a
// model reply.
func ExtractSQL(raw string) string {
	return strings.TrimSpace(fenceMarker.ReplaceAllString(raw, ""))
}
