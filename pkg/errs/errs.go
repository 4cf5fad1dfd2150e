// Package errs provides the structured error type shared by the sync
// pipeline. Every failure carries a kind, so callers decide between
// retrying, skipping an item and aborting a run without matching on
// message strings.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies a failure by what the caller should do about it.
type Kind string

const (
	// KindRemoteUnavailable covers network faults, 5xx answers and
	// undecodable payloads. Transient, worth a bounded retry.
	KindRemoteUnavailable Kind = "remote_unavailable"

	// KindRemoteRateLimited means the remote refused with 429 or the
	// run's own call budget ran out. The run must stop, never retry.
	KindRemoteRateLimited Kind = "remote_rate_limited"

	// KindRemoteNotFound means the requested resource is gone upstream.
	// The item is skipped, the run continues.
	KindRemoteNotFound Kind = "remote_not_found"

	// KindRemoteAuth means the credential was rejected. Retrying cannot
	// help, the run must stop.
	KindRemoteAuth Kind = "remote_auth"

	// KindTransform means a remote record could not be mapped to a row.
	// The item is skipped, the run continues.
	KindTransform Kind = "transform"

	// KindReferential means a write referenced a row that does not
	// exist. That is a pipeline ordering bug, never remote weather, so
	// the run must stop loudly.
	KindReferential Kind = "referential"
)

// Error is the structured error used throughout the pipeline.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Cause   error
}

// Error returns a formatted error string.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %s: %v", e.Kind, e.Op, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Kind, e.Op, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether the target matches this error's kind.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Kind == t.Kind
	}
	return false
}

// New creates a new Error.
func New(kind Kind, op, message string) *Error {
	return &Error{Kind: kind, Op: op, Message: message}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(kind Kind, op, message string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Message: message, Cause: cause}
}

// KindOf extracts the kind from an error chain. Returns the empty kind
// when the chain holds no *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether the error chain carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// IsRetryable reports whether retrying the failed call can help. Only
// transient remote faults qualify; rate limits, rejected credentials,
// missing resources and local bugs never do.
func IsRetryable(err error) bool {
	return KindOf(err) == KindRemoteUnavailable
}

// Convenience constructors for the pipeline's failure modes.

func RemoteUnavailable(op, message string, cause error) *Error {
	return Wrap(KindRemoteUnavailable, op, message, cause)
}

func RemoteRateLimited(op, message string) *Error {
	return New(KindRemoteRateLimited, op, message)
}

func RemoteNotFound(op, message string) *Error {
	return New(KindRemoteNotFound, op, message)
}

func RemoteAuth(op, message string) *Error {
	return New(KindRemoteAuth, op, message)
}

func Transform(op, message string, cause error) *Error {
	return Wrap(KindTransform, op, message, cause)
}

func Referential(op, message string, cause error) *Error {
	return Wrap(KindReferential, op, message, cause)
}
