package errs

import (
	"errors"
	"fmt"
)

// Kind classifies an engine error for callers and the HTTP layer.
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindConflict
	KindNotFound
	KindUnauthorized
	KindFraudHold
	KindIntegrity
)

// Well-known conflict reasons.
const (
	ReasonAlreadyRequested = "AlreadyRequested"
	ReasonAlreadyDecided   = "AlreadyDecided"
	ReasonAlreadyAssigned  = "AlreadyAssigned"
	ReasonNotRequested     = "NotRequested"
	ReasonNotAvailable     = "NotAvailable"
)

// Error is the typed error returned by every engine operation.
type Error struct {
	Kind   Kind
	Reason string
	msg    string
	err    error
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.err)
	}
	return e.msg
}

func (e *Error) Unwrap() error { return e.err }

// Validation reports caller-fixable malformed or missing input.
func Validation(format string, args ...interface{}) *Error {
	return &Error{Kind: KindValidation, msg: fmt.Sprintf(format, args...)}
}

// Conflict reports a state-machine or lock violation with a reason code.
func Conflict(reason, format string, args ...interface{}) *Error {
	return &Error{Kind: KindConflict, Reason: reason, msg: fmt.Sprintf(format, args...)}
}

// NotFound reports an unknown identifier.
func NotFound(format string, args ...interface{}) *Error {
	return &Error{Kind: KindNotFound, msg: fmt.Sprintf(format, args...)}
}

// Unauthorized reports a role or identity mismatch against the expected actor.
func Unauthorized(format string, args ...interface{}) *Error {
	return &Error{Kind: KindUnauthorized, msg: fmt.Sprintf(format, args...)}
}

// FraudHold reports certification blocked pending an explicit override.
func FraudHold(format string, args ...interface{}) *Error {
	return &Error{Kind: KindFraudHold, msg: fmt.Sprintf(format, args...)}
}

// Integrity reports a fatal invariant violation. The triggering operation
// must abort; the data is never silently repaired.
func Integrity(format string, args ...interface{}) *Error {
	return &Error{Kind: KindIntegrity, msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches a cause to an engine error.
func Wrap(err error, kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, msg: fmt.Sprintf(format, args...), err: err}
}

// KindOf returns the Kind of err, or KindUnknown for untyped errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// ReasonOf returns the conflict reason code carried by err, if any.
func ReasonOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Reason
	}
	return ""
}

func IsValidation(err error) bool   { return KindOf(err) == KindValidation }
func IsConflict(err error) bool     { return KindOf(err) == KindConflict }
func IsNotFound(err error) bool     { return KindOf(err) == KindNotFound }
func IsUnauthorized(err error) bool { return KindOf(err) == KindUnauthorized }
func IsFraudHold(err error) bool    { return KindOf(err) == KindFraudHold }
func IsIntegrity(err error) bool    { return KindOf(err) == KindIntegrity }
