// Package apperr defines the client-facing error taxonomy shared by the
// catalog and order domains.
package apperr

import (
	"fmt"

	"github.com/go-faster/errors"
)

// Error kinds. Every client error unwraps to exactly one of these, so callers
// classify with errors.Is.
var (
	// ErrInvalidRequest marks malformed, missing or out-of-range input.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrNotFound marks a missing record or an out-of-range page.
	ErrNotFound = errors.New("not found")
	// ErrConflict marks a request that clashes with current state, such as a
	// duplicate product name or insufficient stock.
	ErrConflict = errors.New("conflict")
)

// Error is a client error with a human readable message.
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Kind
}

// Invalid returns an ErrInvalidRequest error with a formatted message.
func Invalid(format string, args ...any) error {
	return &Error{Kind: ErrInvalidRequest, Message: fmt.Sprintf(format, args...)}
}

// NotFound returns an ErrNotFound error with a formatted message.
func NotFound(format string, args ...any) error {
	return &Error{Kind: ErrNotFound, Message: fmt.Sprintf(format, args...)}
}

// Conflict returns an ErrConflict error with a formatted message.
func Conflict(format string, args ...any) error {
	return &Error{Kind: ErrConflict, Message: fmt.Sprintf(format, args...)}
}

// Kind reports which taxonomy sentinel err belongs to, or nil when err is not
// a client error.
func Kind(err error) error {
	for _, kind := range []error{ErrInvalidRequest, ErrNotFound, ErrConflict} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
