// Package services holds the messaging use cases behind the REST handlers.
package services

import "errors"

var (
	// ErrInvalidInput marks a request the caller must fix.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotFound marks a referenced user, post or message that does not exist.
	ErrNotFound = errors.New("not found")
)
