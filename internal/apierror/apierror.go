// Package apierror defines the error taxonomy shared by the auth core and
// the HTTP handlers, and the JSON envelope every response is wrapped in.
// Storage causes are kept on the error for logging but never serialized.
package apierror

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an Error and decides its HTTP status.
type Kind int

const (
	KindValidation Kind = iota + 1
	KindNotFound
	KindAuthentication
	KindAuthorization
	KindConflict
	KindRateLimit
	KindStorage
)

// Error is the canonical application error.
type Error struct {
	Kind       Kind
	Code       string // machine readable, e.g. "invalid_balance"
	Message    string // safe to show to clients
	Err        error  // underlying cause, never exposed
	HTTPStatus int    // overrides the status derived from Kind when set
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return e.Code + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Status maps the error kind to an HTTP status code.
func (e *Error) Status() int {
	if e.HTTPStatus != 0 {
		return e.HTTPStatus
	}
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindAuthentication:
		return http.StatusUnauthorized
	case KindAuthorization:
		return http.StatusForbidden
	case KindConflict:
		return http.StatusConflict
	case KindRateLimit:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func Validation(code, msg string) *Error {
	return &Error{Kind: KindValidation, Code: code, Message: msg}
}

func NotFound(code, msg string) *Error {
	return &Error{Kind: KindNotFound, Code: code, Message: msg}
}

func Unauthenticated(code, msg string) *Error {
	return &Error{Kind: KindAuthentication, Code: code, Message: msg}
}

func Forbidden(code, msg string) *Error {
	return &Error{Kind: KindAuthorization, Code: code, Message: msg}
}

func Conflict(code, msg string) *Error {
	return &Error{Kind: KindConflict, Code: code, Message: msg}
}

func TooManyRequests(code, msg string) *Error {
	return &Error{Kind: KindRateLimit, Code: code, Message: msg}
}

// Storage wraps a persistence failure.
func Storage(code string, err error) *Error {
	return &Error{Kind: KindStorage, Code: code, Message: "internal storage error", Err: err}
}

// From converts any error into an *Error.  Unknown errors become a generic
// storage error so that nothing internal leaks to the client.
func From(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Storage("internal_error", err)
}

// Is reports whether err is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}
