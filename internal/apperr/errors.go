// Package apperr defines the error kinds shared by the client components.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error by how the client reacts to it.
type Kind string

const (
	// KindValidation is a client-side precondition failure; it never reaches the network.
	KindValidation Kind = "validation"
	// KindRemote is a network or backend failure. The gateway masks it with a fallback result.
	KindRemote Kind = "remote"
	// KindInvalidState is an action attempted without the context it needs.
	KindInvalidState Kind = "invalid_state"
	// KindStorage is a persistence failure. The resilient store absorbs it.
	KindStorage Kind = "storage"
)

// Error is an application error with a kind and an optional cause.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Status  int
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Validation creates a KindValidation error.
func Validation(message string) *Error {
	return &Error{Kind: KindValidation, Message: message}
}

// InvalidState creates a KindInvalidState error.
func InvalidState(message string) *Error {
	return &Error{Kind: KindInvalidState, Message: message}
}

// Remote creates a KindRemote error for a gateway operation.
func Remote(op string, status int, message string, err error) *Error {
	return &Error{Kind: KindRemote, Op: op, Status: status, Message: message, Err: err}
}

// Storage wraps a persistence failure.
func Storage(op string, err error) *Error {
	return &Error{Kind: KindStorage, Op: op, Message: "storage unavailable", Err: err}
}

// Is reports whether any error in err's chain is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind == kind
	}
	return false
}

// UserMessage returns the text shown to the user for err.
func UserMessage(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) && appErr.Message != "" {
		return appErr.Message
	}
	return err.Error()
}
