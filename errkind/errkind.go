// Package errkind classifies errors into the kinds spec'd for operator
// propagation policy: configuration and validation errors are fatal to
// the caller, transient errors are retried locally, cancellation is a
// dedicated terminal kind. See §7 of the design for the full policy.
package errkind

import "github.com/pkg/errors"

// Kind is one of the error classes the system distinguishes.
type Kind int

const (
	// Unknown is the default kind for errors not explicitly classified.
	Unknown Kind = iota
	// Configuration errors are fatal at entry; no writes performed.
	Configuration
	// Transient errors (timeouts, 429/5xx, connection reset) are
	// retried locally and only surfaced once the retry budget is spent.
	Transient
	// Validation errors are schema/shape failures in model output.
	Validation
	// Store errors are fatal to the operation that triggered them.
	Store
	// Cancelled marks a cooperative cancellation.
	Cancelled
)

type kindError struct {
	kind Kind
	err  error
}

func (e *kindError) Error() string { return e.err.Error() }
func (e *kindError) Cause() error  { return e.err }
func (e *kindError) Unwrap() error { return e.err }

// Wrap attaches kind to err, preserving err's message and stack via
// pkg/errors. A nil err returns nil.
func Wrap(err error, kind Kind, msg string) error {
	if err == nil {
		return nil
	}
	return &kindError{kind: kind, err: errors.Wrap(err, msg)}
}

// New creates a new error of the given kind.
func New(kind Kind, msg string) error {
	return &kindError{kind: kind, err: errors.New(msg)}
}

// Of returns the Kind attached to err, or Unknown if err was never
// classified by this package.
func Of(err error) Kind {
	for err != nil {
		if ke, ok := err.(*kindError); ok {
			return ke.kind
		}
		cause, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = cause.Unwrap()
	}
	return Unknown
}

// Is reports whether err was classified as kind.
func Is(err error, kind Kind) bool {
	return Of(err) == kind
}
