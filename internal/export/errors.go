package export

import "errors"

var (
	ErrNotFound       = errors.New("export not found")
	ErrStoreMissing   = errors.New("export store not configured")
	ErrSessionMissing = errors.New("session id is required")
)
