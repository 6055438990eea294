// Package errors carries the typed error kinds shared by the workflow, the
// repositories and the transport layers. Every error returned across a
// package boundary is either an *Error or wraps one.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Code classifies an error for callers and transports.
type Code string

const (
	ErrCodeUnauthorizedRole  Code = "UNAUTHORIZED_ROLE"
	ErrCodeIllegalTransition Code = "ILLEGAL_TRANSITION"
	ErrCodeValidation        Code = "VALIDATION_FAILED"
	ErrCodeNotFound          Code = "NOT_FOUND"
	ErrCodeConflict          Code = "CONFLICT"
	ErrCodeUnauthenticated   Code = "UNAUTHENTICATED"
	ErrCodeInternal          Code = "INTERNAL"
)

// Error is the concrete error type used across the service.
type Error struct {
	Code    Code
	Message string
	Field   string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Field != "" {
		msg = fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches on Code so that errors.Is(err, &Error{Code: X}) works as a kind check.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code && (t.Message == "" || t.Message == e.Message)
}

// New creates an error of the given code.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches a code and message to an underlying error. Wrapping an *Error
// keeps the inner code unless the inner one is INTERNAL.
func Wrap(err error, code Code, message string) *Error {
	var inner *Error
	if stderrors.As(err, &inner) && inner.Code != ErrCodeInternal {
		code = inner.Code
	}
	return &Error{Code: code, Message: message, Err: err}
}

// NotFound reports a missing entity.
func NotFound(entity, id string) *Error {
	return &Error{Code: ErrCodeNotFound, Message: fmt.Sprintf("%s %s not found", entity, id)}
}

// InvalidInput reports a validation failure on a single field.
func InvalidInput(field, message string) *Error {
	return &Error{Code: ErrCodeValidation, Field: field, Message: message}
}

// UnauthorizedRole reports that the actor's role may not perform the action.
func UnauthorizedRole(message string) *Error {
	return &Error{Code: ErrCodeUnauthorizedRole, Message: message}
}

// IllegalTransition reports a transition that is not reachable from the current status.
func IllegalTransition(message string) *Error {
	return &Error{Code: ErrCodeIllegalTransition, Message: message}
}

// Conflict reports a lost optimistic-concurrency race.
func Conflict(message string) *Error {
	return &Error{Code: ErrCodeConflict, Message: message}
}

// CodeOf returns the code carried by err, or INTERNAL for foreign errors.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var e *Error
	if stderrors.As(err, &e) {
		return e.Code
	}
	return ErrCodeInternal
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}

// Is and As re-export the standard helpers so callers need a single import.
func Is(err, target error) bool { return stderrors.Is(err, target) }

func As(err error, target any) bool { return stderrors.As(err, target) }
