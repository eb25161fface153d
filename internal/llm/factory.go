package llm

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/ppiankov/stackguard/internal/model"
)

// NewProvider creates a new inference provider based on configuration
func NewProvider(config Config) (Provider, error) {
	provider := strings.ToLower(config.Provider)

	switch provider {
	case "openai":
		return NewOpenAIProvider(config)

	case "anthropic", "claude":
		return NewAnthropicProvider(config)

	case "ollama":
		return NewOllamaProvider(config)

	case "huggingface", "hf":
		return NewHuggingFaceProvider(config)

	case "":
		// No provider configured - return nil (AI enhancement disabled)
		return nil, nil

	default:
		return nil, fmt.Errorf("unknown inference provider: %s (supported: openai, anthropic, ollama, huggingface)", config.Provider)
	}
}

// ConfigFromModel converts model.LLMConfig to llm.Config
func ConfigFromModel(modelConfig model.LLMConfig, logger *slog.Logger) Config {
	return Config{
		Provider:      modelConfig.Provider,
		Model:         modelConfig.Model,
		ClassifyModel: modelConfig.ClassifyModel,
		APIKey:        modelConfig.APIKey,
		BaseURL:       modelConfig.BaseURL,
		Timeout:       modelConfig.Timeout,
		MaxTokens:     modelConfig.MaxTokens,
		HTTPProxy:     modelConfig.HTTPProxy,
		HTTPSProxy:    modelConfig.HTTPSProxy,
		Logger:        logger,
	}
}
