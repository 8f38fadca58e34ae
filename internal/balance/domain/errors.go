package balance

import (
	"errors"
	"fmt"
)

// Sentinel errors for record invariants.
var (
	ErrNilRecord          = errors.New("balance: nil record")
	ErrInvalidTimestamp   = errors.New("balance: invalid timestamp")
	ErrInvalidGranularity = errors.New("balance: invalid granularity")
	ErrRecordNotFound     = errors.New("balance: record not found")
)

// ErrorKind is the closed set of ingestion failure classes. Callers match
// kinds exhaustively instead of walking an error type hierarchy.
type ErrorKind string

const (
	KindInvalidRange       ErrorKind = "invalid_range"
	KindFetch              ErrorKind = "fetch"
	KindResponseShape      ErrorKind = "response_shape"
	KindNormalization      ErrorKind = "normalization"
	KindPersistence        ErrorKind = "persistence"
	KindUnknownGranularity ErrorKind = "unknown_granularity"
)

// Error carries an ingestion failure kind, a message, and an optional
// wrapped cause.
type Error struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

// NewError builds an Error without a cause.
func NewError(kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// WrapError builds an Error wrapping an underlying cause.
func WrapError(kind ErrorKind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the cause for errors.Is / errors.As.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// KindOf extracts the error kind, or "" for foreign errors.
func KindOf(err error) ErrorKind {
	var ingestErr *Error
	if errors.As(err, &ingestErr) {
		return ingestErr.Kind
	}
	return ""
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}
