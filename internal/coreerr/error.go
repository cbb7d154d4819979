// Package coreerr implements the closed error-kind taxonomy used across the
// repository core, per the error handling design: every operation reports a
// tagged error value with a kind and a human-readable message, wrapping any
// underlying cause with fmt.Errorf's %w the way the rest of the codebase does.
package coreerr

import (
	"errors"
	"fmt"
)

// Kind is the closed set of error categories operations may report.
type Kind int

const (
	// NotFound: loose path absent, ref missing, no such remote.
	NotFound Kind = iota
	// AlreadyExists: non-tolerant overwrite of a ref or object.
	AlreadyExists
	// CorruptedObject: digest mismatch on read or write.
	CorruptedObject
	// MalformedObject: record failed canonical parse.
	MalformedObject
	// InvalidArgument: unknown storage mode, bad refspec, etc.
	InvalidArgument
	// PolicyDenied: free-space, modebits-in-bare-user-only, unlabeled file.
	PolicyDenied
	// SignatureInvalid: verifier found signatures but none valid.
	SignatureInvalid
	// SignatureMissing: verifier required but no signatures present.
	SignatureMissing
	// Io: wrapped OS error.
	Io
	// Cancelled: cancellation token tripped.
	Cancelled
	// Busy: transaction already open, or staging lock held.
	Busy
	// Versioning: repo-version or object-version newer than supported.
	Versioning
)

func (k Kind) String() string {
	switch k {
	case NotFound:
		return "not-found"
	case AlreadyExists:
		return "already-exists"
	case CorruptedObject:
		return "corrupted-object"
	case MalformedObject:
		return "malformed-object"
	case InvalidArgument:
		return "invalid-argument"
	case PolicyDenied:
		return "policy-denied"
	case SignatureInvalid:
		return "signature-invalid"
	case SignatureMissing:
		return "signature-missing"
	case Io:
		return "io"
	case Cancelled:
		return "cancelled"
	case Busy:
		return "busy"
	case Versioning:
		return "versioning"
	default:
		return "unknown"
	}
}

// Error is a tagged error carrying a Kind, a message, and an optional
// wrapped cause.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap lets errors.Is/errors.As see through to the wrapped cause.
func (e *Error) Unwrap() error { return e.Cause }

// New builds an *Error with no wrapped cause.
func New(k Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: k, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds an *Error that wraps cause, unless cause is already a
// *Error of the same Kind, in which case it is returned unchanged to
// avoid nesting redundant layers as errors cross component boundaries.
func Wrap(k Kind, cause error, format string, args ...interface{}) *Error {
	if ce, ok := cause.(*Error); ok && ce.Kind == k {
		return ce
	}
	return &Error{Kind: k, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// Is reports whether err is, or wraps, a *Error of kind k.
func Is(err error, k Kind) bool {
	var ce *Error
	if !errors.As(err, &ce) {
		return false
	}
	return ce.Kind == k
}
