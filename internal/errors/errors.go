// Package errors classifies controller failures.
//
// Every failure that reaches the command line carries a Kind and a single
// human-readable message. Kinds are stable and drive how a failure is
// reported (config problems are reported before any network activity,
// ownership refusals are never retried).
package errors

import (
	"errors"
	"fmt"
)

// Kind identifies the failure domain of an Error.
type Kind string

const (
	KindConfig      Kind = "config"      // bad address syntax, missing token, bad paths
	KindTransport   Kind = "transport"   // connect failure, timeout, closed stream
	KindProtocol    Kind = "protocol"    // malformed message, missing result
	KindRemote      Kind = "remote"      // business-level rejection reported by the daemon
	KindOwnership   Kind = "ownership"   // forced termination refused by the ownership gate
	KindProcess     Kind = "process"     // signal delivery failure, process survives escalation
	KindInterrupted Kind = "interrupted" // operation ended before the daemon state was confirmed
	KindUnknown     Kind = "unknown"
)

// Error is a classified controller error.
type Error struct {
	Kind    Kind
	Message string // Human-readable message shown to the operator
	Cause   error  // Underlying error (may be nil)
}

// Error implements the error interface. The message is printed verbatim to
// the operator, so the kind is not part of it.
func (e *Error) Error() string {
	if e.Message == "" && e.Cause != nil {
		return e.Cause.Error()
	}
	return e.Message
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new Error with the given kind and message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf creates a new Error with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Kinded is implemented by errors of other packages that know their kind
// without being an *Error (wire-level errors, for example).
type Kinded interface {
	error
	ErrorKind() Kind
}

// KindOf extracts the kind from an error chain.
// Unclassified errors report KindUnknown.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var classified *Error
	if errors.As(err, &classified) {
		return classified.Kind
	}
	var kinded Kinded
	if errors.As(err, &kinded) {
		return kinded.ErrorKind()
	}
	return KindUnknown
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// Message extracts the operator-facing message from an error.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var classified *Error
	if errors.As(err, &classified) {
		return classified.Error()
	}
	return err.Error()
}

// Config creates a KindConfig error.
func Config(format string, args ...any) *Error {
	return Newf(KindConfig, format, args...)
}

// Ownership creates a KindOwnership error.
func Ownership(format string, args ...any) *Error {
	return Newf(KindOwnership, format, args...)
}

// Process creates a KindProcess error.
func Process(format string, args ...any) *Error {
	return Newf(KindProcess, format, args...)
}
