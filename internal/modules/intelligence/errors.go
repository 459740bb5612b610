package intelligence

import "errors"

var (
	// ErrNotFound is returned when no intelligence has been extracted for an owner.
	ErrNotFound = errors.New("intelligence record not found")

	// ErrConflict is returned when a concurrent writer got there first. Callers
	// surface this to the client, which re-reads and retries; the store never
	// retries on its own.
	ErrConflict = errors.New("intelligence version conflict")
)
