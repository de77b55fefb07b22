// Package llm wraps the model providers used for extraction.
package llm

import (
	"context"
	"fmt"

	"github.com/raphaelgruber/reqjourney-go/internal/config"
)

// Media is a binary attachment (audio or video) for multimodal models.
type Media struct {
	MIMEType string
	Data     []byte
}

// Request is one generation call.
type Request struct {
	System      string
	Prompt      string
	Media       []Media
	JSON        bool
	Temperature float64
	// OnChunk receives streamed output when the provider supports it.
	OnChunk func(chunk []byte)
}

// Response is the generated text plus token usage when reported.
type Response struct {
	Text         string
	InputTokens  int
	OutputTokens int
}

// Generator produces text from a prompt.
type Generator interface {
	Generate(ctx context.Context, req Request) (*Response, error)
	Model() string
}

// New returns the generator for cfg.LLMProvider.
func New(ctx context.Context, cfg config.Config) (Generator, error) {
	switch cfg.LLMProvider {
	case config.ProviderGemini:
		return NewGeminiModel(ctx, cfg)
	case config.ProviderOllama, config.ProviderOpenAI, config.ProviderAnthropic, config.ProviderBedrock:
		return NewModel(ctx, cfg)
	}
	return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.LLMProvider)
}
