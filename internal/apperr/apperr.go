// Package apperr defines the error taxonomy shared by services and handlers.
// Services classify every failure with a Kind; only the HTTP boundary turns a
// Kind into a status code.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for the transport boundary.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindUnauthorized
	KindForbidden
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	default:
		return "internal"
	}
}

// HTTPStatus maps a Kind to its response status.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Error carries a Kind, a client-safe message and an optional cause.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Err == nil:
		return e.Msg
	case e.Msg == "":
		return e.Err.Error()
	default:
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
}

func (e *Error) Unwrap() error { return e.Err }

func Validation(msg string) error   { return &Error{Kind: KindValidation, Msg: msg} }
func Unauthorized(msg string) error { return &Error{Kind: KindUnauthorized, Msg: msg} }
func Forbidden(msg string) error    { return &Error{Kind: KindForbidden, Msg: msg} }
func NotFound(msg string) error     { return &Error{Kind: KindNotFound, Msg: msg} }

// Internal wraps an unexpected failure.  op names the operation and becomes
// the redacted message in production ("<op> failed").
func Internal(op string, err error) error {
	return &Error{Kind: KindInternal, Msg: op, Err: err}
}

// KindOf returns the Kind of the first *Error in err's chain, or
// KindInternal for unclassified errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given Kind.
func Is(err error, k Kind) bool {
	return err != nil && KindOf(err) == k
}

// Message returns the client-facing message for err.  For internal errors
// the full text is returned unless redact is set.
func Message(err error, redact bool) string {
	var e *Error
	if !errors.As(err, &e) {
		if redact {
			return "internal server error"
		}
		return err.Error()
	}
	if e.Kind != KindInternal {
		return e.Msg
	}
	if redact {
		if e.Msg == "" {
			return "internal server error"
		}
		return e.Msg + " failed"
	}
	return e.Error()
}

// Wrap classifies an unclassified error as Internal under op.  Errors that
// already carry a kind pass through.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return Internal(op, err)
}
