package llm

import (
	"context"
	"fmt"
	"strings"

	genai "google.golang.org/genai"

	"github.com/raphaelgruber/reqjourney-go/internal/config"
)

// GeminiModel calls Gemini through the official genai client. It accepts
// audio and video inline, which langchaingo's providers do not.
type GeminiModel struct {
	cli   *genai.Client
	model string
}

func NewGeminiModel(ctx context.Context, cfg config.Config) (*GeminiModel, error) {
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("Gemini API key required")
	}
	cli, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &GeminiModel{cli: cli, model: cfg.LLMModel}, nil
}

func (g *GeminiModel) Generate(ctx context.Context, req Request) (*Response, error) {
	parts := []*genai.Part{{Text: req.Prompt}}
	for _, m := range req.Media {
		parts = append(parts, &genai.Part{InlineData: &genai.Blob{MIMEType: m.MIMEType, Data: m.Data}})
	}

	temp := float32(req.Temperature)
	genCfg := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: req.System}}},
		Temperature:       &temp,
	}
	if req.JSON {
		genCfg.ResponseMIMEType = "application/json"
	}

	resp, err := g.cli.Models.GenerateContent(ctx, g.model,
		[]*genai.Content{{Role: genai.RoleUser, Parts: parts}},
		genCfg,
	)
	if err != nil {
		return nil, wrapFatalError(fmt.Errorf("gemini generate: %w", err))
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, fmt.Errorf("no response candidates")
	}

	var sb strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	text := sb.String()
	if req.OnChunk != nil {
		req.OnChunk([]byte(text))
	}

	out := &Response{Text: text}
	if u := resp.UsageMetadata; u != nil {
		out.InputTokens = int(u.PromptTokenCount)
		out.OutputTokens = int(u.CandidatesTokenCount)
	}
	return out, nil
}

func (g *GeminiModel) Model() string { return g.model }
