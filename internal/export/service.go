package export

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/google/uuid"

	"promptscan-backend/internal/sessions"
	"promptscan-backend/internal/shared/storage/object"
	"promptscan-backend/internal/shared/telemetry"
	"promptscan-backend/internal/shared/util"
)

const contentTypeJSON = "application/json"

// Service stores artifacts in the object store and indexes them.
type Service struct {
	Repo  Repo
	Store object.ObjectStore
	Now   func() time.Time
}

// Export writes the artifact for session and records it in the index.
// It returns the encoded artifact so callers can stream it back.
func (s *Service) Export(ctx context.Context, session sessions.Session) (Record, []byte, error) {
	if session.ID == "" {
		return Record{}, nil, ErrSessionMissing
	}
	if s.Store == nil || s.Repo == nil {
		return Record{}, nil, ErrStoreMissing
	}

	exportedAt := s.now()
	data, err := Build(session, exportedAt).Encode()
	if err != nil {
		return Record{}, nil, fmt.Errorf("encode export: %w", err)
	}

	rec := Record{
		ID:         uuid.NewString(),
		SessionID:  session.ID,
		Lane:       session.Lane,
		ItemCount:  len(session.Items),
		Checksum:   util.SHA256Hex(data),
		ExportedAt: exportedAt,
	}
	rec.StorageKey = StorageKey(session.ID, rec.ID)

	size, err := s.Store.SaveWithKey(ctx, rec.StorageKey, contentTypeJSON, bytes.NewReader(data))
	if err != nil {
		return Record{}, nil, fmt.Errorf("store export: %w", err)
	}
	rec.SizeBytes = size

	if err := s.Repo.Create(ctx, rec); err != nil {
		return Record{}, nil, fmt.Errorf("index export: %w", err)
	}
	telemetry.Info("export.saved", map[string]any{
		"request_id": sessions.RequestIDFromContext(ctx),
		"export_id":  rec.ID,
		"session_id": rec.SessionID,
		"lane":       rec.Lane,
		"size_bytes": rec.SizeBytes,
		"items":      rec.ItemCount,
	})
	return rec, data, nil
}

// Get returns an export record by ID.
func (s *Service) Get(ctx context.Context, id string) (Record, error) {
	if id == "" {
		return Record{}, ErrNotFound
	}
	return s.Repo.GetByID(ctx, id)
}

// List returns export records newest-first.
func (s *Service) List(ctx context.Context, limit, offset int) ([]Record, error) {
	return s.Repo.List(ctx, limit, offset)
}

// Open returns the record and a reader over the stored artifact.
func (s *Service) Open(ctx context.Context, id string) (Record, io.ReadCloser, error) {
	rec, err := s.Get(ctx, id)
	if err != nil {
		return Record{}, nil, err
	}
	if s.Store == nil {
		return Record{}, nil, ErrStoreMissing
	}
	body, err := s.Store.Open(ctx, rec.StorageKey)
	if err != nil {
		return Record{}, nil, fmt.Errorf("open export: %w", err)
	}
	return rec, body, nil
}

// StorageKey is the object key of an export artifact.
func StorageKey(sessionID, exportID string) string {
	return path.Join("exports", sessionID, exportID+".json")
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}
