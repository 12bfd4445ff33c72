// Package apperr defines the sentinel errors shared across layers.
package apperr

import "errors"

var (
	// ErrNotFound means the requested post, category, or tag does not exist.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists means a create collided with an existing record.
	ErrAlreadyExists = errors.New("already exists")
	// ErrInvalid means caller-side input failed validation before dispatch.
	ErrInvalid = errors.New("invalid input")
	// ErrUnavailable means a transient fetch or storage failure; callers may retry.
	ErrUnavailable = errors.New("temporarily unavailable")
)
