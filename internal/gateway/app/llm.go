package app

import (
	"context"
	"time"

	"go.uber.org/zap"

	"codereview/internal/gateway/config"
	"codereview/internal/llm"
)

// NewLLMClient builds the configured provider behind the middleware stack:
// logging and hooks see one logical call, retries wrap rate limiting, and
// every attempt gets its own timeout.
func NewLLMClient(ctx context.Context, cfg config.LLMConfig, logger *zap.Logger) (llm.LLMClient, error) {
	var base llm.LLMClient
	switch cfg.Provider {
	case "gemini":
		g, err := llm.NewGeminiClient(ctx, cfg.APIKey, cfg.Model)
		if err != nil {
			return nil, err
		}
		base = g
	default:
		base = llm.NewFakeClient()
	}
	return llm.Wrap(base,
		llm.WithLogging(logger),
		llm.WithHooks(),
		llm.Retry(cfg.Retries, 500*time.Millisecond),
		llm.RateLimit(cfg.RPS, cfg.Burst),
		llm.Timeout(cfg.Timeout),
	), nil
}
