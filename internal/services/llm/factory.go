package llm

import (
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/tessera/internal/common"
	"github.com/ternarybob/tessera/internal/interfaces"
)

// NewLLMService creates the appropriate LLM service implementation
// based on the configured default provider.
func NewLLMService(cfg *common.Config, logger arbor.ILogger) (interfaces.LLMService, error) {
	provider := cfg.LLM.DefaultProvider
	if provider == "" {
		provider = common.LLMProviderGemini
	}

	logger.Info().Str("provider", string(provider)).Msg("Initializing LLM service")

	switch provider {
	case common.LLMProviderGemini:
		return NewGeminiService(&cfg.Gemini, logger)

	case common.LLMProviderClaude:
		return NewClaudeService(&cfg.Claude, logger)

	default:
		return nil, fmt.Errorf("unsupported LLM provider '%s': must be 'gemini' or 'claude'", provider)
	}
}
