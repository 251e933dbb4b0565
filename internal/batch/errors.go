package batch

import "errors"

var (
	ErrMissingColumns = errors.New("batch file must have prompt and keywords columns")
	ErrNoRows         = errors.New("batch file has no rows with both a prompt and keywords")
	ErrTooManyRows    = errors.New("batch file exceeds the row limit")
)
