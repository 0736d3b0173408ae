package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists indicates a uniqueness violation.
	ErrAlreadyExists = errors.New("already exists")
	// ErrConflict indicates a stale optimistic-concurrency token.
	ErrConflict = errors.New("stale update token")
	// ErrInvalidAPIKey indicates authentication failure.
	ErrInvalidAPIKey = errors.New("invalid api key")
)
