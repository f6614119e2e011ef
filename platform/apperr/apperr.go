// Package apperr provides standardized domain error types for the application.
// Components return these typed errors so callers can branch on the failure
// category without parsing messages.
package apperr

import (
	"errors"
	"fmt"
)

// Kind represents the category of error.
type Kind int

const (
	// KindUnknown is the default error kind when none is specified.
	KindUnknown Kind = iota
	// KindDataUnavailable indicates the data store could not be reached or timed out.
	KindDataUnavailable
	// KindInvalidCriteria indicates a malformed lookup filter.
	KindInvalidCriteria
	// KindAgentFailure indicates an opaque failure from the agent runtime or model.
	KindAgentFailure
	// KindValidation indicates invalid input data.
	KindValidation
	// KindInternal indicates an unexpected internal error.
	KindInternal
)

// String returns the name used for the kind in logs and tool results.
func (k Kind) String() string {
	switch k {
	case KindDataUnavailable:
		return "DataUnavailable"
	case KindInvalidCriteria:
		return "InvalidCriteria"
	case KindAgentFailure:
		return "AgentFailure"
	case KindValidation:
		return "Validation"
	case KindInternal:
		return "Internal"
	default:
		return "Unknown"
	}
}

// Error is a domain error with a typed Kind.
type Error struct {
	Kind    Kind
	Message string
	Op      string // Operation that failed (optional)
	Err     error  // Underlying error (optional)
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

// New creates a new domain error with the given kind and message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap creates a new domain error wrapping an existing error.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// WithOp returns the error with the operation set.
func (e *Error) WithOp(op string) *Error {
	e.Op = op
	return e
}

// Convenience constructors for common error types.

// DataUnavailable creates a store-unreachable error.
func DataUnavailable(message string, err error) *Error {
	return Wrap(KindDataUnavailable, message, err)
}

// InvalidCriteria creates a malformed-filter error.
func InvalidCriteria(message string) *Error {
	return New(KindInvalidCriteria, message)
}

// AgentFailure creates an agent runtime error.
func AgentFailure(message string, err error) *Error {
	return Wrap(KindAgentFailure, message, err)
}

// Validation creates a validation error.
func Validation(message string) *Error {
	return New(KindValidation, message)
}

// Internal creates an internal error.
func Internal(message string) *Error {
	return New(KindInternal, message)
}

// GetKind extracts the error kind from an error chain.
// Returns KindUnknown if no *Error is found.
func GetKind(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Is checks if err carries an *Error with the given kind.
func Is(err error, kind Kind) bool {
	return GetKind(err) == kind
}
