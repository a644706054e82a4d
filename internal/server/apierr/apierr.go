// Package apierr defines the typed errors that cross the HTTP boundary.
//
// Services return *Error for every anticipated business-rule violation. Any
// other error reaching a handler is treated as unexpected and rendered as a
// generic 500 by the response package.
package apierr

import (
	"errors"
	"net/http"
)

// Kind классифицирует ошибку для маппинга в HTTP статус
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindConflict
	KindTooManyRequests
	KindUnavailable
)

// Error is an API-visible failure.
type Error struct {
	cause    error
	Message  string
	Messages []string
	Kind     Kind
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.cause != nil {
		return e.Message + ": " + e.cause.Error()
	}
	return e.Message
}

// Unwrap exposes the underlying cause for errors.Is / errors.As.
func (e *Error) Unwrap() error {
	return e.cause
}

// StatusCode maps the error kind to an HTTP status.
func (e *Error) StatusCode() int {
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindTooManyRequests:
		return http.StatusTooManyRequests
	case KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage returns what the client is allowed to see: either a single
// string or the list of validation messages.
func (e *Error) PublicMessage() any {
	if e.Kind == KindInternal {
		return internalMessage
	}
	if len(e.Messages) > 0 {
		return e.Messages
	}
	return e.Message
}

const internalMessage = "internal server error"

// BadRequest creates a 400 error with a single message.
func BadRequest(message string) *Error {
	return &Error{Kind: KindValidation, Message: message}
}

// Validation creates a 400 error carrying one message per failed rule.
func Validation(messages ...string) *Error {
	e := &Error{Kind: KindValidation, Message: "validation failed", Messages: messages}
	if len(messages) == 1 {
		e.Message = messages[0]
		e.Messages = nil
	}
	return e
}

// Unauthorized creates a 401 error.
func Unauthorized(message string) *Error {
	return &Error{Kind: KindUnauthorized, Message: message}
}

// Forbidden creates a 403 error.
func Forbidden(message string) *Error {
	return &Error{Kind: KindForbidden, Message: message}
}

// NotFound creates a 404 error.
func NotFound(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message}
}

// Conflict creates a 409 error.
func Conflict(message string) *Error {
	return &Error{Kind: KindConflict, Message: message}
}

// TooManyRequests creates a 429 error.
func TooManyRequests(message string) *Error {
	return &Error{Kind: KindTooManyRequests, Message: message}
}

// Unavailable creates a 503 error, used when a dependency is down.
func Unavailable(message string) *Error {
	return &Error{Kind: KindUnavailable, Message: message}
}

// Internal wraps an unexpected failure. The cause is kept for server-side
// logging and never rendered to the client.
func Internal(cause error) *Error {
	return &Error{Kind: KindInternal, Message: internalMessage, cause: cause}
}

// Wrap attaches a cause to a typed error without changing what the client sees.
func Wrap(e *Error, cause error) *Error {
	cp := *e
	cp.cause = cause
	return &cp
}

// As extracts an *Error from err. Errors of any other type are converted
// into Internal with err as the cause.
func As(err error) *Error {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return Internal(err)
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Kind == kind
}
