// Package llm selects the advisory oracle for the configured provider.
package llm

import (
	"context"
	"os"
	"time"

	"llm-fx-advisor/internal/interfaces"
	"llm-fx-advisor/internal/llm/claude"
	"llm-fx-advisor/internal/llm/gemini"
	"llm-fx-advisor/internal/llm/llmobs"
	"llm-fx-advisor/internal/llm/noop"
	"llm-fx-advisor/internal/llm/openai"
	"llm-fx-advisor/internal/logger"
	"llm-fx-advisor/internal/store"
)

// New returns the oracle for cfg.LLM.Provider wrapped with observability.
// A provider whose key is absent is still returned; its calls fail with ErrOracleUnavailable
// before any network traffic, so the session shows the missing key instead of silently using noop.
func New(ctx context.Context, cfg *store.Config) interfaces.Oracle {
	var oracle interfaces.Oracle

	switch cfg.LLM.Provider {
	case "gemini":
		oracle = gemini.New(cfg)
		warnMissingKey(ctx, gemini.APIKeyEnv)
	case "openai":
		oracle = openai.New(cfg)
		warnMissingKey(ctx, openai.APIKeyEnv)
	case "claude":
		oracle = claude.New(cfg)
		warnMissingKey(ctx, claude.APIKeyEnv)
	default:
		oracle = noop.New()
		logger.Warn(ctx, "No LLM provider configured - using Noop oracle (always WAIT)")
	}

	if rpm := cfg.LLM.RequestsPerMinute; rpm > 0 {
		oracle = Throttle(oracle, NewRateLimiter(rpm, time.Minute/time.Duration(rpm)))
		logger.Info(ctx, "Oracle calls rate limited", "requests_per_minute", rpm)
	}
	return llmobs.Wrap(oracle)
}

func warnMissingKey(ctx context.Context, env string) {
	if os.Getenv(env) == "" {
		logger.Warn(ctx, "API key not set - advisories will report ERROR", "env", env)
	}
}
