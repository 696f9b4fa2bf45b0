package service

import (
	"errors"
	"fmt"
	"modelhub/internal/database"
)

// Error kinds. Every *Error unwraps to exactly one of them.
var (
	ErrValidation   = errors.New("validation failed")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrUnavailable  = errors.New("service unavailable")
)

// Error carries a client-facing message next to its kind.
type Error struct {
	Kind    error
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Kind, e.Err}
	}
	return []error{e.Kind}
}

func newError(kind error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func validationError(format string, args ...interface{}) *Error {
	return newError(ErrValidation, format, args...)
}

func notFound(what string) *Error {
	return newError(ErrNotFound, "%s not found", what)
}

// storeError classifies a failed store call. Retryable database failures
// become ErrUnavailable, anything else is returned wrapped with op.
func storeError(op string, err error) error {
	if database.IsUnavailable(err) {
		return &Error{Kind: ErrUnavailable, Message: "service temporarily unavailable, please retry", Err: err}
	}
	return fmt.Errorf("%s: %w", op, err)
}

// Message returns the client-facing text of err, or "" when err is not an
// *Error.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return ""
}
