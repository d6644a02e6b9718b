package generation

import (
	"errors"
	"fmt"
)

// ErrInitialization marks a failure of the renderer's readiness precondition.
// Producers wrap it so the coordinator can report it apart from render failures.
var ErrInitialization = errors.New("renderer initialization failed")

// Kind classifies a generation failure.
type Kind string

const (
	// KindInit means the renderer could not be made ready.
	KindInit Kind = "init"

	// KindRender means the renderer failed (or timed out) for a resolved id.
	KindRender Kind = "render"
)

// Error is returned by Obtain when a generation fails. Every caller waiting on the
// same key receives the same Error.
type Error struct {
	Kind Kind
	Key  string
	Err  error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("generate %s: %s", e.Key, e.Reason())
}

// Reason returns the message shown to HTTP clients.
func (e *Error) Reason() string {
	switch e.Kind {
	case KindInit:
		return fmt.Sprintf("Init failed: %v", e.Err)
	default:
		return fmt.Sprintf("render failed: %v", e.Err)
	}
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Err
}

// classify wraps a producer failure into an *Error.
func classify(key string, err error) *Error {
	var genErr *Error
	if errors.As(err, &genErr) {
		return genErr
	}

	kind := KindRender
	if errors.Is(err, ErrInitialization) {
		kind = KindInit
	}
	return &Error{Kind: kind, Key: key, Err: err}
}
