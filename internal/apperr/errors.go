// Package apperr defines the error kinds shared by the services and mapped to
// HTTP statuses by the gateway.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrDuplicateMembership = errors.New("student is already enrolled")
	ErrDuplicateUsername   = errors.New("Username already exists")
	ErrUnauthenticated     = errors.New("Not authenticated")
	ErrForbidden           = errors.New("permission denied")
	ErrStoreUnavailable    = errors.New("store unavailable")
)

// kindError attaches a client-facing message and an optional cause to one of
// the sentinel kinds above.
type kindError struct {
	kind  error
	msg   string
	cause error
}

func (e *kindError) Error() string {
	if e.cause != nil {
		return e.msg + ": " + e.cause.Error()
	}
	return e.msg
}

func (e *kindError) Unwrap() []error {
	if e.cause != nil {
		return []error{e.kind, e.cause}
	}
	return []error{e.kind}
}

// NotFoundf builds an ErrNotFound with a formatted message.
func NotFoundf(format string, args ...any) error {
	return &kindError{kind: ErrNotFound, msg: fmt.Sprintf(format, args...)}
}

// Unauthenticatedf builds an ErrUnauthenticated with a formatted message.
func Unauthenticatedf(format string, args ...any) error {
	return &kindError{kind: ErrUnauthenticated, msg: fmt.Sprintf(format, args...)}
}

// Forbiddenf builds an ErrForbidden with a formatted message.
func Forbiddenf(format string, args ...any) error {
	return &kindError{kind: ErrForbidden, msg: fmt.Sprintf(format, args...)}
}

// Unavailable marks err as a store failure. nil stays nil.
func Unavailable(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrStoreUnavailable) {
		return err
	}
	return &kindError{kind: ErrStoreUnavailable, msg: ErrStoreUnavailable.Error(), cause: err}
}

// Message returns the client-facing text of err: the message of a kind error
// or validation error, without the underlying cause.
func Message(err error) string {
	var ke *kindError
	if errors.As(err, &ke) {
		return ke.msg
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Error()
	}
	return err.Error()
}

// FieldError is used to indicate an error with a specific request field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError reports malformed or missing input.
type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{Err: err, Fields: flds}
}

// Invalid is a shorthand for a single-field validation error.
func Invalid(field, msg string) error {
	return NewValidationError(errors.New(msg), FieldError{Field: field, Message: msg})
}

func (e *ValidationError) Error() string {
	if e.Err == nil {
		return "validation failed"
	}
	return e.Err.Error()
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}
