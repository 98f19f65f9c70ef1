package store

import "errors"

var (
	// ErrNotFound is returned when a message file is absent from the
	// directory an operation expected it in. Racing consumers see this
	// routinely; it is recoverable, never fatal.
	ErrNotFound = errors.New("store: message not found")

	// ErrInvalidID is returned for ids that are empty or attempt path
	// traversal.
	ErrInvalidID = errors.New("store: invalid message id")
)
