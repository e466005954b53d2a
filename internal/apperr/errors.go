package apperr

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrAlreadyExists = errors.New("already exists")
	// ErrUnprocessable marks input the pipeline could not turn into a
	// usable result (no sections, or every chunk failed).
	ErrUnprocessable = errors.New("unprocessable")
)
