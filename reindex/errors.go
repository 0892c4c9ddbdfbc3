package reindex

import "errors"

var (
	// ErrInvalidMaxAttempts is returned when maxAttempts is <= 0
	ErrInvalidMaxAttempts = errors.New("maxAttempts must be greater than 0")

	// ErrEngineRequired is returned when no storage engine is supplied
	ErrEngineRequired = errors.New("storage engine is required")

	// ErrRootRequired is returned when the conversation root is empty
	ErrRootRequired = errors.New("conversation root is required")
)
