// internal/llmclient/factory.go
package llmclient

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/pilot-cli/api/schemas"
	"github.com/xkilldash9x/pilot-cli/internal/config"
)

// NewClient builds the oracle used by the agent: one Gemini client per tier
// behind an LLMRouter, wrapped in the pacing layer.
func NewClient(ctx context.Context, cfg config.LLMRouterConfig, logger *zap.Logger) (schemas.LLMClient, error) {
	fast, err := newProviderClient(ctx, cfg.ModelFor(cfg.DefaultFastModel), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create fast tier client: %w", err)
	}

	powerful := fast
	if cfg.DefaultPowerfulModel != cfg.DefaultFastModel {
		powerful, err = newProviderClient(ctx, cfg.ModelFor(cfg.DefaultPowerfulModel), logger)
		if err != nil {
			_ = fast.Close()
			return nil, fmt.Errorf("failed to create powerful tier client: %w", err)
		}
	}

	router, err := NewLLMRouter(logger, fast, powerful)
	if err != nil {
		return nil, err
	}
	return NewPacedClient(router, cfg.PacingDelay, cfg.RequestsPerMinute, logger), nil
}

func newProviderClient(ctx context.Context, mc config.LLMModelConfig, logger *zap.Logger) (schemas.LLMClient, error) {
	switch mc.Provider {
	case config.ProviderGemini:
		return NewGeminiClient(ctx, mc, logger)
	default:
		return nil, fmt.Errorf("unknown or unsupported LLM provider configured: '%s'. Supported: [%s]", mc.Provider, config.ProviderGemini)
	}
}
