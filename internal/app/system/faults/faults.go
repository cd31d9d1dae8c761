// internal/app/system/faults/faults.go

// Package faults defines the error taxonomy every core operation returns.
// A Fault carries a kind the transport layer maps to a fixed response
// shape; internal faults wrap the underlying cause for logging but the
// cause is never surfaced to callers.
package faults

import (
	"errors"
	"fmt"
)

// Kind classifies a fault.
type Kind string

const (
	// KindValidation marks missing or malformed required input.
	KindValidation Kind = "validation"
	// KindAuthorization marks an authenticated actor lacking the required
	// role or ownership. Distinct from authentication failures, which are
	// handled at the session edge.
	KindAuthorization Kind = "authorization"
	// KindNotFound marks an absent entity, or one deliberately hidden from
	// the actor to avoid existence leakage.
	KindNotFound Kind = "not_found"
	// KindConflict marks a precondition on current state that no longer
	// holds: already claimed, wrong status for a transition, duplicate
	// registration e-mail.
	KindConflict Kind = "conflict"
	// KindInternal marks store or notification infrastructure failure.
	KindInternal Kind = "internal"
)

// Fault is a classified error.
type Fault struct {
	Kind Kind
	Msg  string
	Err  error // wrapped cause, internal faults only
}

func (f *Fault) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("%s: %s: %v", f.Kind, f.Msg, f.Err)
	}
	return fmt.Sprintf("%s: %s", f.Kind, f.Msg)
}

func (f *Fault) Unwrap() error { return f.Err }

// Validation returns a validation fault with the given client-facing message.
func Validation(msg string) error {
	return &Fault{Kind: KindValidation, Msg: msg}
}

// Authorization returns an authorization fault.
func Authorization(msg string) error {
	return &Fault{Kind: KindAuthorization, Msg: msg}
}

// NotFound returns a not-found fault.
func NotFound(msg string) error {
	return &Fault{Kind: KindNotFound, Msg: msg}
}

// Conflict returns a conflict fault.
func Conflict(msg string) error {
	return &Fault{Kind: KindConflict, Msg: msg}
}

// Internal wraps an infrastructure error. The message shown to callers is
// generic; err is preserved for logs.
func Internal(err error) error {
	return &Fault{Kind: KindInternal, Msg: "internal error", Err: err}
}

// KindOf returns the kind of err, or KindInternal for unclassified errors.
// A nil err has no kind; callers must check err != nil first.
func KindOf(err error) Kind {
	var f *Fault
	if errors.As(err, &f) {
		return f.Kind
	}
	return KindInternal
}

// Message returns the client-facing message for err. Unclassified and
// internal errors yield a generic message so no detail leaks.
func Message(err error) string {
	var f *Fault
	if errors.As(err, &f) && f.Kind != KindInternal {
		return f.Msg
	}
	return "internal error"
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, k Kind) bool {
	return err != nil && KindOf(err) == k
}
