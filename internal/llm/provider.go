// Package llm sends single-shot text prompts to a generation service.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Generator turns a prompt into generated text.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	Name() string
}

// ErrDisabled is returned by the disabled provider, so every call falls back.
var ErrDisabled = errors.New("text generation disabled")

type Config struct {
	Provider string
	APIKey   string
	Model    string
	BaseURL  string
}

// New picks a provider. Without an API key generation is disabled.
func New(cfg Config) (Generator, error) {
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if provider == "" || provider == "none" || provider == "disabled" || cfg.APIKey == "" {
		return Disabled{}, nil
	}
	switch provider {
	case "openai":
		return NewOpenAIProvider(cfg.APIKey, cfg.BaseURL, cfg.Model), nil
	case "gemini":
		return newGeminiProvider(cfg.APIKey, cfg.BaseURL, cfg.Model), nil
	case "anthropic":
		return NewAnthropicProvider(cfg.APIKey, cfg.BaseURL, cfg.Model), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}

type Disabled struct{}

func (Disabled) Name() string { return "disabled" }

func (Disabled) Generate(context.Context, string) (string, error) {
	return "", ErrDisabled
}
