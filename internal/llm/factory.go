package llm

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"thinktwice/internal/config"
)

const ollamaDefaultBaseURL = "http://localhost:11434/v1"

// NewService creates a completion service based on configuration
func NewService(cfg config.LLMConfig, logger *zap.Logger) (Service, error) {
	switch strings.ToLower(cfg.Provider) {
	case "openai", "":
		return NewClient(cfg, logger)

	case "ollama":
		// Ollama speaks the OpenAI wire protocol; no API key required
		if cfg.BaseURL == "" {
			cfg.BaseURL = ollamaDefaultBaseURL
		}
		if cfg.APIKey == "" {
			cfg.APIKey = "ollama"
		}
		return NewClient(cfg, logger)

	default:
		return nil, fmt.Errorf("unknown LLM provider: %s (supported: openai, ollama)", cfg.Provider)
	}
}
