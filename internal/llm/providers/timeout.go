package providers

import (
	"context"
	"time"

	"promptscan-backend/internal/llm"
)

// WithTimeout bounds every call of p by d.
func WithTimeout(p llm.Provider, d time.Duration) llm.Provider {
	return llm.ProviderFunc(func(ctx context.Context, prompt string, opts llm.Options) (string, error) {
		ctx, cancel := context.WithTimeout(ctx, d)
		defer cancel()
		return p.GenerateText(ctx, prompt, opts)
	})
}
