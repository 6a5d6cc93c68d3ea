package llm

import (
	"fmt"

	"go.uber.org/zap"
)

// NewClient creates a completion client for the given provider.
// Supported providers: "openai" (any OpenAI-compatible endpoint) and
// "anthropic".
func NewClient(provider string, cfg *Config, logger *zap.Logger) (CompletionClient, error) {
	switch provider {
	case "openai":
		return NewOpenAIClient(cfg, logger)
	case "anthropic":
		return NewAnthropicClient(cfg, logger)
	default:
		return nil, fmt.Errorf("unsupported completion provider %q", provider)
	}
}
