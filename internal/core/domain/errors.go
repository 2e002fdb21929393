package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested record does not exist remotely.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrOffline indicates a write was attempted while unreachable and
	// offline queueing is disabled.
	ErrOffline = errors.New("offline")

	// ErrQueueCleared indicates a pending write was discarded by an
	// explicit queue clear.
	ErrQueueCleared = errors.New("queue cleared")

	// ErrUnreachable indicates a network-level failure: the remote API
	// could not be reached at all. The transport client wraps connection
	// and timeout errors with this sentinel so the offline queue can tell
	// "no connectivity" apart from "the API rejected the request".
	ErrUnreachable = errors.New("remote unreachable")

	// ErrCategoryCycle indicates a category parent change would make a
	// category its own ancestor.
	ErrCategoryCycle = errors.New("category cycle")
)
