package models

import "errors"

// Pipeline error taxonomy. Storage and validation errors surface
// synchronously to the caller; collaborator and exhaustion errors are
// terminal states of background jobs and reach the operator channel instead.
var (
	// ErrDuplicateIdentity is returned when a freshly generated prediction
	// id collides with an existing record at the storage layer.
	ErrDuplicateIdentity = errors.New("duplicate prediction identity")

	// ErrAlreadyExists is returned by stores when a record with the same
	// key is already present. Existing records are never overwritten.
	ErrAlreadyExists = errors.New("record already exists")

	// ErrNotFound is returned by stores when no record matches the key.
	ErrNotFound = errors.New("record not found")

	// ErrUnknownPrediction is returned when feedback references a
	// prediction id that was never ingested.
	ErrUnknownPrediction = errors.New("unknown prediction id")

	// ErrDuplicateFeedback is returned when feedback already exists for a
	// prediction. Feedback is write-once; resubmission is rejected.
	ErrDuplicateFeedback = errors.New("duplicate feedback")

	// ErrStorageTimeout is returned when a storage operation exceeds its
	// bounded timeout. Callers never hang on storage I/O.
	ErrStorageTimeout = errors.New("storage operation timed out")

	// ErrCollaboratorFailure wraps a failed drift/metric collaborator call.
	ErrCollaboratorFailure = errors.New("collaborator failure")

	// ErrExhausted marks a job that hit its retry ceiling.
	ErrExhausted = errors.New("job retry ceiling exhausted")
)
