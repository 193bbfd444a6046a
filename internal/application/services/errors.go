package services

import "errors"

var (
	// ErrQueueFull is returned when the indexing queue cannot accept more work.
	// Callers should retry later; no job is registered.
	ErrQueueFull = errors.New("indexing queue is full")

	// ErrJobTimeout is returned when a job exceeds its overall deadline
	ErrJobTimeout = errors.New("indexing job deadline exceeded")

	// ErrUnknownToken is returned when a job references a token that was
	// never registered for tracking
	ErrUnknownToken = errors.New("token is not tracked")
)
