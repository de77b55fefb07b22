package extraction

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/raphaelgruber/reqjourney-go/internal/config"
	"github.com/raphaelgruber/reqjourney-go/internal/llm"
)

// FromConfig picks the client cfg describes: the demo client for the demo
// provider, a RemoteClient when an extraction URL is set, otherwise a model
// backed LLMClient. usage may be nil.
func FromConfig(ctx context.Context, cfg config.Config, usage UsageRecorder, logger *slog.Logger) (Client, error) {
	switch {
	case cfg.LLMProvider == config.ProviderDemo:
		logger.Info("using demo extraction client")
		return NewDemoClient(), nil
	case cfg.ExtractionURL != "":
		logger.Info("using remote extraction service", "url", cfg.ExtractionURL)
		return NewRemoteClient(cfg.ExtractionURL, cfg.JobTimeout), nil
	}

	gen, err := llm.New(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("init model: %w", err)
	}
	logger.Info("using model extraction", "provider", cfg.LLMProvider, "model", gen.Model())
	return NewLLMClient(gen, cfg.LLMTemperature, usage, logger), nil
}
