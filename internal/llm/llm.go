package llm

import (
	"context"
	"errors"
	"strings"
)

// Provider abstracts text-generation backends.
type Provider interface {
	GenerateText(ctx context.Context, prompt string, opts Options) (string, error)
}

// Options carries the generation budget handed to every call.
type Options struct {
	Model           string
	MaxOutputTokens int
	Temperature     float32
}

// ProviderFunc adapts a plain function to Provider.
type ProviderFunc func(ctx context.Context, prompt string, opts Options) (string, error)

// GenerateText calls f.
func (f ProviderFunc) GenerateText(ctx context.Context, prompt string, opts Options) (string, error) {
	return f(ctx, prompt, opts)
}

var (
	// ErrNotConfigured is returned by the placeholder provider.
	ErrNotConfigured = errors.New("text generation provider not configured")
	// ErrEmptyResponse marks a call that succeeded but produced no text.
	ErrEmptyResponse = errors.New("empty response")
)

// PlaceholderClient is used when no provider credentials are available.
type PlaceholderClient struct{}

// GenerateText returns ErrNotConfigured.
func (PlaceholderClient) GenerateText(ctx context.Context, prompt string, opts Options) (string, error) {
	_ = ctx
	_ = prompt
	_ = opts
	return "", ErrNotConfigured
}

// RequireText trims provider output and rejects empty text.
func RequireText(provider, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", providerError(provider, ErrEmptyResponse)
	}
	return text, nil
}

func providerError(provider string, err error) error {
	return &Error{Provider: provider, Err: err}
}

// Error tags a failure with the provider that produced it.
type Error struct {
	Provider string
	Err      error
}

func (e *Error) Error() string {
	if e.Provider == "" {
		return e.Err.Error()
	}
	return e.Provider + " " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }
