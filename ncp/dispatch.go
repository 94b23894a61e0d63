package ncp

import (
	"sync"

	"github.com/ezhangle/thci/ncp/spinel"
)

// NetRole re-exports spinel.NetRole so callers outside this module never
// need to import the wire-format package directly.
type NetRole = spinel.NetRole

// PendingFlags is a bitmask of client notifications the dispatcher has
// accumulated since the last state-changed event (spec §4.8). It is
// cleared to zero atomically by the post-processor each time it is read.
type PendingFlags uint32

const (
	FlagRoleChanged PendingFlags = 1 << iota
	FlagScanComplete
	FlagLegacyULA
	FlagScanResult
	FlagChildTableChanged
	FlagAddressTableChanged
	FlagMulticastTableChanged
	FlagDebugStream
	FlagLegacyWake
)

// CallbackBuffer holds the most recent copy of an unsolicited payload the
// control plane could not safely hand to the client inline (spec §4.8
// "callback-buffer slot"). Handlers overwrite the slot matching their
// Kind before folding the corresponding flag into the pending set.
type CallbackBuffer struct {
	Kind    PendingFlags
	Payload []byte
}

// dispatcher classifies frames the transaction matcher did not claim,
// maintains the pending-flag aggregate, and notifies the client once per
// zero-to-nonzero transition (spec §4.8).
type dispatcher struct {
	mu    sync.Mutex
	flags PendingFlags

	netRole    spinel.NetRole
	lastStatus uint32

	legacyULA  CallbackBuffer
	scanResult CallbackBuffer

	secureSeenOnInsecurePort bool

	trace      *Trace
	onRecovery func(error)
	onDatagram func(secure bool, payload []byte)
}

func newDispatcher(trace *Trace, onRecovery func(error), onDatagram func(secure bool, payload []byte)) *dispatcher {
	return &dispatcher{trace: trace, onRecovery: onRecovery, onDatagram: onDatagram}
}

// handle classifies an unclaimed frame by (command, key) and folds any
// resulting notification into the pending-flag set, posting a single
// state-changed event if the set transitioned from zero to non-zero.
func (d *dispatcher) handle(cmd, key uint32, payload []byte) {
	switch cmd {
	case spinel.CmdPropValueIs:
		d.handlePropValueIs(key, payload)
	case spinel.CmdPropValueInserted:
		d.handlePropValueInserted(key, payload)
	default:
		d.trace.Error("dispatch", wrapf(KindParse, nil, "unhandled control-plane command %#x", cmd))
	}
}

func (d *dispatcher) handlePropValueIs(key uint32, payload []byte) {
	switch key {
	case spinel.PropLastStatus:
		d.handleLastStatus(payload)
	case spinel.PropNetRole:
		d.handleNetRole(payload)
	case spinel.PropVendorLegacyULAPrefix:
		d.setFlag(FlagLegacyULA, func() { d.legacyULA = CallbackBuffer{Kind: FlagLegacyULA, Payload: payload} })
		d.trace.LegacyULAPrefixChanged()
	case spinel.PropMACScanState:
		d.setFlag(FlagScanComplete, nil)
	case spinel.PropChildTable:
		d.setFlag(FlagChildTableChanged, nil)
	case spinel.PropIPv6AddressTable:
		d.setFlag(FlagAddressTableChanged, nil)
	case spinel.PropIPv6MulticastAddressTable:
		d.setFlag(FlagMulticastTableChanged, nil)
	case spinel.PropStreamDebug:
		d.setFlag(FlagDebugStream, nil)
	case spinel.PropVendorLegacyWake:
		d.setFlag(FlagLegacyWake, nil)
	case spinel.PropStreamNet:
		d.datagram(true, payload)
	case spinel.PropStreamNetInsecure:
		d.datagram(false, payload)
	default:
		// Properties outside the semantic list (spec §6) are ignored
		// rather than treated as a parse error.
	}
}

func (d *dispatcher) handlePropValueInserted(key uint32, payload []byte) {
	switch key {
	case spinel.PropMACScanBeacon:
		d.setFlag(FlagScanResult, func() { d.scanResult = CallbackBuffer{Kind: FlagScanResult, Payload: payload} })
		d.trace.ScanResult()
	default:
	}
}

func (d *dispatcher) handleLastStatus(payload []byte) {
	dec := spinel.NewDecoder(payload)
	code, err := dec.PackedUint()
	if err != nil {
		d.trace.Error("dispatch last-status", err)
		return
	}
	d.mu.Lock()
	d.lastStatus = code
	d.mu.Unlock()

	if spinel.IsResetStatus(code) && d.onRecovery != nil {
		d.onRecovery(wrapf(KindFailed, nil, "NCP reset itself (last-status %#x)", code))
	}
}

func (d *dispatcher) handleNetRole(payload []byte) {
	dec := spinel.NewDecoder(payload)
	v, err := dec.Uint8()
	if err != nil {
		d.trace.Error("dispatch net-role", err)
		return
	}
	role := spinel.NetRole(v)
	d.setFlag(FlagRoleChanged, func() { d.netRole = role })
	d.trace.RoleChanged(role)
}

// datagram hands a secure-stream or insecure-stream payload up to the
// upper stack, and tracks the secure-message-seen-on-insecure-port
// monotonic flag (spec §4.8, §8 invariant 5).
func (d *dispatcher) datagram(secure bool, payload []byte) {
	d.mu.Lock()
	if secure {
		d.secureSeenOnInsecurePort = true
	}
	d.mu.Unlock()
	if d.onDatagram != nil {
		cp := append([]byte(nil), payload...)
		d.onDatagram(secure, cp)
	}
}

// setFlag folds flag into the pending set under mutex, running update (if
// non-nil) to copy any payload into a callback-buffer slot first, and
// posts StateChanged exactly once per zero-to-nonzero transition.
func (d *dispatcher) setFlag(flag PendingFlags, update func()) {
	d.mu.Lock()
	if update != nil {
		update()
	}
	before := d.flags
	d.flags |= flag
	after := d.flags
	d.mu.Unlock()

	if before == 0 && after != 0 {
		d.trace.StateChanged(after)
	}
}

// drain atomically reads and zeroes the pending-flag set, the way the
// spec's post-processor "reads it to zero" before invoking the client
// callback.
func (d *dispatcher) drain() PendingFlags {
	d.mu.Lock()
	defer d.mu.Unlock()
	f := d.flags
	d.flags = 0
	return f
}

func (d *dispatcher) role() spinel.NetRole {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.netRole
}

func (d *dispatcher) secureSeenOnInsecure() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.secureSeenOnInsecurePort
}
