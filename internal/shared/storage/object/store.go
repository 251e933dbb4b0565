package object

import (
	"context"
	"io"
)

// ObjectStore saves and retrieves uploaded batch files and export artifacts.
type ObjectStore interface {
	// SaveWithKey stores r at an exact key, replacing any previous object.
	SaveWithKey(ctx context.Context, storageKey string, contentType string, r io.Reader) (int64, error)
	Open(ctx context.Context, storageKey string) (io.ReadCloser, error)
}
