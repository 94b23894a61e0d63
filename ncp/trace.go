package ncp

import (
	"context"
	"log"
	"time"

	"github.com/imdario/mergo"
)

// Trace defines a structure of hook functions invoked at points of
// interest in the driver's lifecycle, the way the teacher's ClientTrace
// exposes NETCONF session events. Any nil field is a no-op; callers
// typically start from NoOpHooks or DefaultHooks and override only
// the hooks they care about.
type Trace struct {
	// RequestStart/RequestDone bracket a synchronous property request.
	RequestStart func(cmd, key uint32, tid byte)
	RequestDone  func(cmd, key uint32, tid byte, err error, d time.Duration)

	// FrameDecoded is called for every frame the framer delivers, matched
	// or not.
	FrameDecoded func(cmd, key uint32, tid byte)
	// DecodeError is called when the framer rejects a frame (spec §4.3/§7).
	DecodeError func(err error)

	// RoleChanged is called when an unsolicited net-role update arrives.
	RoleChanged func(role NetRole)
	// ScanResult is called for each mac-scan-beacon insertion.
	ScanResult func()
	// LegacyULAPrefixChanged is called when the vendor legacy ULA prefix
	// property changes.
	LegacyULAPrefixChanged func()
	// StateChanged is called once per coalesced batch of pending client
	// notification flags (spec §4.8).
	StateChanged func(flags PendingFlags)

	// Recovery is called when the supervisor enters ResetRecovery.
	Recovery func(reason error)
	// SessionStateChanged is called on every Driver.state transition.
	SessionStateChanged func(from, to SessionState)

	// PumpSendFailed is called when the pump frees a message without a
	// successful last-status (spec §4.7 step 5).
	PumpSendFailed func(err error)

	// Error is a catch-all for conditions with no more specific hook.
	Error func(context string, err error)
}

// unique type to prevent collisions with other packages' context keys.
type traceContextKey struct{}

// WithTrace returns a context carrying trace, for use with
// driver construction; New reads it back via TraceFromContext.
func WithTrace(ctx context.Context, trace *Trace) context.Context {
	return context.WithValue(ctx, traceContextKey{}, trace)
}

// TraceFromContext recovers the Trace stored by WithTrace, with every
// unset hook filled in from NoOpHooks so callers never need a nil check.
func TraceFromContext(ctx context.Context) *Trace {
	trace, _ := ctx.Value(traceContextKey{}).(*Trace)
	if trace == nil {
		return NoOpHooks
	}
	merged := *trace
	_ = mergo.Merge(&merged, *NoOpHooks)
	return &merged
}

// DefaultHooks logs only errors.
var DefaultHooks = &Trace{
	Error: func(context string, err error) {
		log.Printf("THCI-Error context:%s err:%v\n", context, err)
	},
}

// DiagnosticHooks logs every lifecycle event, for local debugging.
var DiagnosticHooks = &Trace{
	RequestStart: func(cmd, key uint32, tid byte) {
		log.Printf("THCI-RequestStart cmd:%#x key:%#x tid:%d\n", cmd, key, tid)
	},
	RequestDone: func(cmd, key uint32, tid byte, err error, d time.Duration) {
		log.Printf("THCI-RequestDone cmd:%#x key:%#x tid:%d err:%v took:%dms\n", cmd, key, tid, err, d.Milliseconds())
	},
	DecodeError: func(err error) {
		log.Printf("THCI-DecodeError err:%v\n", err)
	},
	RoleChanged: func(role NetRole) {
		log.Printf("THCI-RoleChanged role:%s\n", role)
	},
	Recovery: func(reason error) {
		log.Printf("THCI-Recovery reason:%v\n", reason)
	},
	SessionStateChanged: func(from, to SessionState) {
		log.Printf("THCI-SessionStateChanged from:%s to:%s\n", from, to)
	},
	PumpSendFailed: func(err error) {
		log.Printf("THCI-PumpSendFailed err:%v\n", err)
	},
	Error: DefaultHooks.Error,
}

// NoOpHooks does nothing; it is the base every Trace is merged against so
// every hook field is guaranteed non-nil.
var NoOpHooks = &Trace{
	RequestStart:           func(cmd, key uint32, tid byte) {},
	RequestDone:            func(cmd, key uint32, tid byte, err error, d time.Duration) {},
	FrameDecoded:           func(cmd, key uint32, tid byte) {},
	DecodeError:            func(err error) {},
	RoleChanged:            func(role NetRole) {},
	ScanResult:             func() {},
	LegacyULAPrefixChanged: func() {},
	StateChanged:           func(flags PendingFlags) {},
	Recovery:               func(reason error) {},
	SessionStateChanged:    func(from, to SessionState) {},
	PumpSendFailed:         func(err error) {},
	Error:                  func(context string, err error) {},
}
