package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist or is
	// logically deleted.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates an entity already exists.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrValidation indicates an entity violates a model invariant
	// (empty vector, duplicate chunk index, missing owner).
	ErrValidation = errors.New("validation failed")

	// ErrConflict indicates a sync state transition was attempted from a
	// state other than its expected source state, e.g. committing a result
	// for an embedding that is no longer pending. Callers skip the item
	// and re-evaluate on the next pass.
	ErrConflict = errors.New("sync state conflict")

	// ErrExternalService indicates a transport, auth or quota failure from
	// the vector index. The whole call failed; the batch is retryable.
	ErrExternalService = errors.New("vector index unavailable")

	// ErrExternalRejected indicates the vector index explicitly rejected a
	// specific item. Not retried automatically; surfaced to the caller.
	ErrExternalRejected = errors.New("vector index rejected item")

	// ErrVectorIndexUnavailable indicates no vector index is configured.
	ErrVectorIndexUnavailable = errors.New("vector index not configured")
)
