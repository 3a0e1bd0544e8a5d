// Package apperr defines the error kinds surfaced by the API and their
// mapping to HTTP status codes.
package apperr

import (
	"errors"
	"net/http"
)

var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrValidation      = errors.New("validation failed")
	ErrUpstream        = errors.New("upstream failure")
)

const (
	internalMessage = "Internal server error"
	upstreamMessage = "The request could not be completed, please try again later"
)

// Error carries a kind, a short message that is safe to show to clients and
// an optional cause that is only logged.
type Error struct {
	kind    error
	message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return e.message + ": " + e.cause.Error()
	}
	return e.message
}

func (e *Error) Is(target error) bool {
	return target == e.kind
}

func (e *Error) Unwrap() error {
	return e.cause
}

func New(kind error, message string) error {
	return &Error{kind: kind, message: message}
}

func Wrap(kind error, message string, cause error) error {
	return &Error{kind: kind, message: message, cause: cause}
}

func Unauthenticated(message string) error { return New(ErrUnauthenticated, message) }
func Forbidden(message string) error       { return New(ErrForbidden, message) }
func NotFound(message string) error        { return New(ErrNotFound, message) }
func Conflict(message string) error        { return New(ErrConflict, message) }
func Validation(message string) error      { return New(ErrValidation, message) }

func Upstream(message string, cause error) error {
	return Wrap(ErrUpstream, message, cause)
}

// Status maps an error to the HTTP status returned to the client.
func Status(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict), errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Message returns the client-facing text for err. Upstream failures and
// unclassified errors never expose their internals.
func Message(err error) string {
	var appErr *Error
	if !errors.As(err, &appErr) {
		return internalMessage
	}
	if appErr.kind == ErrUpstream {
		return upstreamMessage
	}
	return appErr.message
}
