package lookup

import (
	"errors"
	"fmt"
)

// Common errors returned by the resolver.
var (
	// ErrNotFound is returned when no character matches after the retry budget is spent.
	ErrNotFound = errors.New("character not found")

	// ErrTransport marks a failure to talk to the search API at all.
	ErrTransport = errors.New("search transport failure")
)

// TransportError describes a failed search request.
type TransportError struct {
	// StatusCode is the HTTP status of the response, 0 when none was received.
	StatusCode int
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("search error (status %d): %s: %v", e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("search error (status %d): %s", e.StatusCode, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// Is reports every TransportError as ErrTransport.
func (e *TransportError) Is(target error) bool {
	return target == ErrTransport
}
