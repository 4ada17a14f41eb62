package llm

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

const (
	defaultOpenAIModel = openai.GPT4oMini

	// Gemini serves an OpenAI-compatible chat completions endpoint.
	defaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai"
	defaultGeminiModel   = "gemini-2.0-flash"
)

// OpenAIProvider talks to the OpenAI chat completions API or any endpoint
// compatible with it.
type OpenAIProvider struct {
	client  *openai.Client
	name    string
	baseURL string
	model   string
}

func NewOpenAIProvider(apiKey, baseURL, model string) *OpenAIProvider {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if model == "" {
		model = defaultOpenAIModel
	}
	return &OpenAIProvider{
		client:  openai.NewClientWithConfig(cfg),
		name:    "openai",
		baseURL: cfg.BaseURL,
		model:   model,
	}
}

func newGeminiProvider(apiKey, baseURL, model string) *OpenAIProvider {
	if baseURL == "" {
		baseURL = defaultGeminiBaseURL
	}
	if model == "" {
		model = defaultGeminiModel
	}
	p := NewOpenAIProvider(apiKey, baseURL, model)
	p.name = "gemini"
	return p
}

func (p *OpenAIProvider) Name() string { return p.name }

func (p *OpenAIProvider) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: p.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("%s chat: %w", p.name, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%s returned no choices", p.name)
	}
	return resp.Choices[0].Message.Content, nil
}
