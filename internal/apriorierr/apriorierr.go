// Package apriorierr implements the error-kind taxonomy of §7: a small
// set of sentinel kinds, each wrapped with context via fmt.Errorf("%w",
// ...) in the Go idiom, in place of the original project's Rust error
// enum (whose bracketed `[kind] detail` Display rendering this package's
// Error() mirrors).
package apriorierr

import (
	"errors"
	"fmt"
)

// Kind names one of the error categories from §7.
type Kind int

const (
	// KindInput covers malformed durations/vectors/colors, unknown
	// commands, and invalid command arguments. The engine state is
	// left unchanged.
	KindInput Kind = iota
	// KindSessionConflict covers save-with-duplicate-name,
	// rename-to-existing, delete-non-existent.
	KindSessionConflict
	// KindStoreIO covers a failed database round-trip. Session-lock
	// loss is always fatal; other store errors are returned to the
	// caller as they are, and nothing retries them.
	KindStoreIO
	// KindScene covers object name collisions on add, or object not
	// found on rename.
	KindScene
	// KindUncomputedTrack: the interpolator was asked for a position
	// at a time outside any segment.
	KindUncomputedTrack
	// KindInterrupted: a background task observed an interrupter
	// signal and abandoned its result. Not surfaced to the user.
	KindInterrupted
	// KindConsistency: an invariant (I1-I5) was violated. Always
	// fatal — indicates a bug.
	KindConsistency
)

func (k Kind) String() string {
	switch k {
	case KindInput:
		return "input"
	case KindSessionConflict:
		return "session conflict"
	case KindStoreIO:
		return "store"
	case KindScene:
		return "scene"
	case KindUncomputedTrack:
		return "uncomputed track"
	case KindInterrupted:
		return "interrupted"
	case KindConsistency:
		return "consistency"
	default:
		return "unknown"
	}
}

// Error wraps an underlying cause with a Kind and renders as
// "[kind] message: cause", matching the original project's bracketed
// Display convention.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %s", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Fatal reports whether the engine must shut down on this error:
// consistency violations always are; session-lock loss (a StoreIO error
// wrapping ErrSessionLockLost) always is; nothing else is (§7, §12.2).
func (e *Error) Fatal() bool {
	if e.Kind == KindConsistency {
		return true
	}
	if e.Kind == KindStoreIO && errors.Is(e.Cause, ErrSessionLockLost) {
		return true
	}
	return false
}

// New constructs an *Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap constructs an *Error of the given kind around cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// ErrSessionLockLost is returned by any mutating store call once the
// session's lock token no longer matches the one the caller was issued
// (§12.2) — always fatal per Fatal() above.
var ErrSessionLockLost = errors.New("session lock lost to another process")

// ErrUncomputedTrack is the sentinel wrapped by KindUncomputedTrack
// errors raised when a location query misses every segment of a body.
var ErrUncomputedTrack = errors.New("no segment covers the requested instant")

// ErrInterrupted is the sentinel a rehydration task returns when it
// observes its interrupter fire mid-flight (§4.4 "Interrupt semantics").
var ErrInterrupted = errors.New("rehydration interrupted")

// Fatal reports whether err (of any type produced by this package)
// demands engine shutdown. Non-*Error values are never fatal.
func Fatal(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Fatal()
	}
	return false
}
