// Package providers selects the text-generation adapter from configuration.
package providers

import (
	"context"
	"fmt"

	"promptscan-backend/internal/llm"
	"promptscan-backend/internal/llm/claude"
	"promptscan-backend/internal/llm/gemini"
	"promptscan-backend/internal/llm/openai"
	"promptscan-backend/internal/shared/config"
	"promptscan-backend/internal/shared/telemetry"
)

// New returns the provider named by cfg.LLMProvider together with the
// generation options every call will use. Missing credentials fall back to
// the placeholder provider so the service still boots.
func New(ctx context.Context, cfg config.Config) (llm.Provider, llm.Options, error) {
	opts := llm.Options{
		Model:           cfg.LLMModel,
		MaxOutputTokens: cfg.LLMMaxOutputTokens,
		Temperature:     cfg.LLMTemperature,
	}

	var (
		provider llm.Provider
		err      error
	)
	switch cfg.LLMProvider {
	case "placeholder":
		return llm.PlaceholderClient{}, opts, nil
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			return placeholder("openai", opts)
		}
		if opts.Model == "" {
			opts.Model = openai.DefaultModel
		}
		provider, err = openai.NewClient(cfg.OpenAIAPIKey, cfg.LLMTimeout)
	case "anthropic":
		if cfg.AnthropicAPIKey == "" {
			return placeholder("anthropic", opts)
		}
		if opts.Model == "" {
			opts.Model = claude.DefaultModel
		}
		provider, err = claude.NewClient(cfg.AnthropicAPIKey, cfg.LLMTimeout)
	default:
		if cfg.GeminiAPIKey == "" {
			return placeholder("gemini", opts)
		}
		if opts.Model == "" {
			opts.Model = gemini.DefaultModel
		}
		provider, err = gemini.NewClient(ctx, cfg.GeminiAPIKey)
		if err == nil && cfg.LLMTimeout > 0 {
			provider = WithTimeout(provider, cfg.LLMTimeout)
		}
	}
	if err != nil {
		return nil, opts, fmt.Errorf("init %s provider: %w", cfg.LLMProvider, err)
	}
	telemetry.Info("llm.provider", map[string]any{
		"provider":          cfg.LLMProvider,
		"model":             opts.Model,
		"max_output_tokens": opts.MaxOutputTokens,
		"temperature":       opts.Temperature,
	})
	return provider, opts, nil
}

func placeholder(name string, opts llm.Options) (llm.Provider, llm.Options, error) {
	telemetry.Warn("llm.provider", map[string]any{
		"provider": name,
		"reason":   "api key missing, using placeholder",
	})
	return llm.PlaceholderClient{}, opts, nil
}
