package llm

import (
	"context"
	"fmt"

	"lakeguide/internal/config"
)

// NewFromConfig builds a Client from the configured provider.
func NewFromConfig(ctx context.Context, cfg config.LLMConfig) (Client, error) {
	timeout := config.Duration(cfg.Timeout, DefaultChatConfig("").Timeout)

	switch cfg.Provider {
	case "", "openai":
		cc := DefaultChatConfig(cfg.APIKey)
		if cfg.BaseURL != "" {
			cc.BaseURL = cfg.BaseURL
		}
		if cfg.Model != "" {
			cc.Model = cfg.Model
		}
		cc.Timeout = timeout
		return NewChatClient(cc), nil
	case "gemini":
		return NewGeminiClient(ctx, cfg.APIKey, cfg.Model)
	default:
		return nil, fmt.Errorf("unknown LLM provider: %q", cfg.Provider)
	}
}
