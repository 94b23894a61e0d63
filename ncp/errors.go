package ncp

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies an Error the way spec §7 enumerates (invalid-args,
// invalid-state, parse, no-buffers, no-frame-received, failed,
// disabled-feature, not-implemented).
type Kind int

const (
	KindInvalidArgs Kind = iota
	KindInvalidState
	KindParse
	KindNoBuffers
	KindNoFrameReceived
	KindFailed
	KindDisabledFeature
	KindNotImplemented
)

func (k Kind) String() string {
	switch k {
	case KindInvalidArgs:
		return "invalid-args"
	case KindInvalidState:
		return "invalid-state"
	case KindParse:
		return "parse"
	case KindNoBuffers:
		return "no-buffers"
	case KindNoFrameReceived:
		return "no-frame-received"
	case KindFailed:
		return "failed"
	case KindDisabledFeature:
		return "disabled-feature"
	case KindNotImplemented:
		return "not-implemented"
	default:
		return "unknown"
	}
}

// Error is the typed error surfaced by every externally observable driver
// operation (spec §7). The wrapped cause, if any, is still reachable with
// github.com/pkg/errors.Cause (via the Cause method below) as well as the
// standard library's errors.Is/errors.As/errors.Unwrap; the Kind is
// reachable with errors.As.
type Error struct {
	Kind  Kind
	Msg   string
	cause error
}

func (e *Error) Error() string {
	if e.cause != nil {
		// e.cause is errors.Wrap(cause, e.Msg), which already renders as
		// "e.Msg: cause.Error()".
		return e.Kind.String() + ": " + e.cause.Error()
	}
	return e.Kind.String() + ": " + e.Msg
}

// Unwrap exposes the wrapped cause to errors.Is/errors.As/errors.Unwrap.
func (e *Error) Unwrap() error { return e.cause }

// Cause implements the github.com/pkg/errors causer interface, the same
// way the store, spinel and gpio packages
// rely on errors.Wrap/Wrapf to make their errors recoverable with
// errors.Cause. e.cause, when present, already comes from errors.Wrap
// (see wrapf below), whose own Cause method walks the rest of the chain,
// so returning it here unconditionally is enough; when there is no
// wrapped cause, a plain terminal error is returned instead of e itself,
// since returning e would make errors.Cause loop on it forever.
func (e *Error) Cause() error {
	if e.cause != nil {
		return e.cause
	}
	return fmt.Errorf("%s: %s", e.Kind, e.Msg)
}

// newErr builds an *Error, wrapping cause with errors.Wrap when present so
// the wrapped error carries a stack trace the way the rest of the module's
// errors do.
func newErr(kind Kind, msg string, cause error) error {
	var wrapped error
	if cause != nil {
		wrapped = errors.Wrap(cause, msg)
	}
	return &Error{Kind: kind, Msg: msg, cause: wrapped}
}

// wrapf builds an *Error with a formatted message and an optional wrapped
// cause, used throughout the package wherever an internal error crosses
// into the public, kind-tagged surface.
func wrapf(kind Kind, cause error, format string, args ...interface{}) error {
	return newErr(kind, fmt.Sprintf(format, args...), cause)
}
