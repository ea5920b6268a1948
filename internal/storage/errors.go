package storage

import "errors"

// Storage errors for append-only stores.
var (
	// ErrNotFound is returned when a requested record or stream does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey is returned when attempting to create a record or file
	// that already exists. Versioned artifacts are never overwritten.
	ErrDuplicateKey = errors.New("duplicate key: append-only store does not allow updates")

	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("invalid input")
)
