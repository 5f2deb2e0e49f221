// Package apperr defines the typed errors shared by the query engine, the
// dataset adapters and the HTTP layer. The HTTP layer maps a Kind to a status
// code; everything else only constructs and wraps them.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind represents the category of error.
type Kind int

const (
	// KindUnknown is the default for errors that are not an *Error.
	KindUnknown Kind = iota
	// KindValidation marks malformed or contradictory query parameters.
	KindValidation
	// KindNotFound marks a dataset without backing data.
	KindNotFound
	// KindInternal marks any other unexpected condition.
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "invalid_spec"
	case KindNotFound:
		return "dataset_not_found"
	case KindInternal:
		return "internal"
	default:
		return "unknown"
	}
}

// Error is a domain error with a typed Kind for HTTP mapping.
type Error struct {
	Kind    Kind
	Message string
	Op      string // operation that failed (optional)
	Err     error  // underlying error (optional)
	Details any    // extra response context such as the failing parameter
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if e.Op != "" {
		msg = fmt.Sprintf("%s: %s", e.Op, msg)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Err
}

// HTTPStatus returns the status code for this error kind.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// New creates a new domain error with the given kind and message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap creates a new domain error wrapping an existing error.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// WithOp sets the operation and returns the same error.
func (e *Error) WithOp(op string) *Error {
	e.Op = op
	return e
}

// WithDetails sets the response details and returns the same error.
func (e *Error) WithDetails(details any) *Error {
	e.Details = details
	return e
}

// Validation creates an invalid-spec error.
func Validation(message string) *Error {
	return New(KindValidation, message)
}

// NotFound creates a dataset-not-found error.
func NotFound(message string) *Error {
	return New(KindNotFound, message)
}

// Internal creates an internal failure.
func Internal(message string) *Error {
	return New(KindInternal, message)
}

// KindOf extracts the kind from anywhere in err's chain.
// Returns KindUnknown if no *Error is present.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// As returns the first *Error in err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
