package provider

import (
	"context"
	"errors"

	"github.com/researchly/marketscout/config"
	openai_provider "github.com/researchly/marketscout/provider/openai"
)

// Message is a single chat message sent to the generation provider.
type Message = openai_provider.Message

// Provider is the text-generation gateway. Implementations make exactly one
// attempt per call and honour the context deadline.
type Provider interface {
	Complete(ctx context.Context, messages []Message) (string, error)
	Healthy(ctx context.Context) bool
}

// NewProvider builds the configured generation client. Every endpoint we
// target speaks the OpenAI chat-completions dialect (vLLM included), so a
// single client covers them.
func NewProvider(cfg config.LLMConfig) (Provider, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("llm base_url not configured")
	}
	return openai_provider.NewClient(cfg.BaseURL, cfg.APIKey, cfg.Model, cfg.Temperature, cfg.MaxTokens, cfg.Timeout), nil
}
