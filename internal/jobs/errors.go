package jobs

import "errors"

var (
	ErrNotFound           = errors.New("batch job not found")
	ErrQueueNotConfigured = errors.New("batch queue not configured")
	ErrStoreMissing       = errors.New("batch store not configured")
	ErrEmptyUpload        = errors.New("batch upload is empty")
	ErrInvalidUpload      = errors.New("invalid batch upload")
)
