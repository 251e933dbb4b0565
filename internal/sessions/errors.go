package sessions

import (
	"errors"

	"promptscan-backend/internal/batch"
)

var (
	ErrNoPrompts         = errors.New("at least one prompt is required")
	ErrNoKeywords        = errors.New("at least one keyword is required")
	ErrTooManyPrompts    = errors.New("too many prompts")
	ErrTooManyRows       = batch.ErrTooManyRows
	ErrNoSession         = errors.New("no session")
	ErrInvalidTransition = errors.New("invalid item status transition")
)
