package services

import "errors"

// Sentinel errors crossing the service boundary. Handlers map these onto
// HTTP statuses; callers always get a tagged error, never a panic.
var (
	// ErrValidation: malformed input or AI output that failed schema
	// validation. Nothing was persisted.
	ErrValidation = errors.New("validation failed")

	// ErrUpstream: a dependency (AI backend, transcription, storage,
	// database write) failed. The caller may retry the whole operation.
	ErrUpstream = errors.New("upstream dependency failed")

	// ErrNotFound: the referenced session or question does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict: the operation is not valid for the session's current
	// state (already completed, already answered, already initialized).
	ErrConflict = errors.New("conflict")
)
