package cli

import (
	"bytes"
	"context"
	"testing"

	"promptscan-backend/internal/llm"
	"promptscan-backend/internal/shared/config"
)

// stubProvider answers every prompt with a fixed prefix and records the
// config it was built from.
func stubProvider(t *testing.T) *config.Config {
	t.Helper()
	var seen config.Config
	prev := newProvider
	newProvider = func(ctx context.Context, cfg config.Config) (llm.Provider, llm.Options, error) {
		seen = cfg
		return llm.ProviderFunc(func(ctx context.Context, prompt string, opts llm.Options) (string, error) {
			return "Cloud answer for " + prompt, nil
		}), llm.Options{}, nil
	}
	t.Cleanup(func() { newProvider = prev })
	return &seen
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	out, _, err := runLogged(t, args...)
	return out, err
}

// runLogged returns command output and log lines separately.
func runLogged(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var out, logs bytes.Buffer
	err := runWithArgs("test", args, &out, &logs)
	return out.String(), logs.String(), err
}
