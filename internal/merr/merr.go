// Package merr defines the error taxonomy shared across Moltis components.
// Every component-level error wraps one of these kinds so callers (the
// gateway frame router in particular) can map failures to stable codes
// without string-matching error text.
package merr

import (
	"errors"
	"fmt"
)

// Kind classifies an error into one of the taxonomy's buckets.
type Kind string

const (
	KindNotFound     Kind = "not_found"
	KindInvalidInput Kind = "invalid_input"
	KindUnauthorized Kind = "unauthorized"
	KindForbidden    Kind = "forbidden"
	KindConflict     Kind = "conflict"
	KindSealed       Kind = "sealed"        // vault not unsealed
	KindBadCredential Kind = "bad_credential" // wrong password/recovery phrase
	KindUnavailable  Kind = "unavailable"   // transient, e.g. sandbox backend down
	KindTimeout      Kind = "timeout"
	KindInternal     Kind = "internal"
)

// Code maps a Kind to the gateway's public wire error code. Several
// internal kinds collapse onto the same wire code since callers outside
// the process only need to distinguish retry-worthy classes of failure,
// not the exact internal reason.
func (k Kind) Code() string {
	switch k {
	case KindInvalidInput:
		return "invalid_request"
	case KindUnavailable, KindSealed:
		return "unavailable"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindUnauthorized, KindForbidden, KindBadCredential:
		return "unauthenticated"
	case KindTimeout:
		return "timeout"
	default:
		return "internal"
	}
}

// Code returns the public wire error code for err, defaulting to
// "internal" when err does not carry a merr.Error.
func Code(err error) string {
	return KindOf(err).Code()
}

// Error is the concrete error type every component returns for expected
// failure modes. Unexpected failures should still be wrapped via New so the
// taxonomy stays closed.
type Error struct {
	Kind    Kind
	Message string
	Err     error // underlying cause, if any
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds an Error of the given kind around an existing cause.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// Is reports whether err (or any error in its chain) carries the given kind.
func Is(err error, kind Kind) bool {
	var me *Error
	if errors.As(err, &me) {
		return me.Kind == kind
	}
	return false
}

// KindOf extracts the Kind from err, defaulting to KindInternal when err
// does not carry one.
func KindOf(err error) Kind {
	var me *Error
	if errors.As(err, &me) {
		return me.Kind
	}
	return KindInternal
}
