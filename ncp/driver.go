// Package ncp implements the NCP (network co-processor) transport and
// session layer for a host-side Thread/802.15.4 radio stack: HDLC-style
// framing, the Spinel request/response property protocol, a bounded
// outbound-message store, and the supervisory state machine that takes
// the link through reset/recovery, host-sleep and firmware-update
// handoff.
package ncp

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ezhangle/thci/ncp/gpio"
	"github.com/ezhangle/thci/ncp/hdlc"
	"github.com/ezhangle/thci/ncp/ring"
	"github.com/ezhangle/thci/ncp/serial"
	"github.com/ezhangle/thci/ncp/spinel"
	"github.com/ezhangle/thci/ncp/store"
)

// SessionState enumerates the supervisor's lifecycle states (spec §4.9).
type SessionState int

const (
	Uninitialized SessionState = iota
	Initialized
	ResetRecovery
	HostSleep
)

func (s SessionState) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Initialized:
		return "initialized"
	case ResetRecovery:
		return "reset-recovery"
	case HostSleep:
		return "host-sleep"
	default:
		return "unknown"
	}
}

// ResetPolicy selects the path Initialize takes to bring the link up.
type ResetPolicy int

const (
	// AlwaysReset always runs ResetNcpWithVerify.
	AlwaysReset ResetPolicy = iota
	// MaySkipReset tries the re-establish fast path first (spec §4.9),
	// falling back to a full reset on failure.
	MaySkipReset
)

// Driver is the session supervisor (C9) and the anchor all of a link's
// collaborators (C1-C8) hang off of. Its instance id is a fresh UUID,
// primarily useful for correlating log lines across a process that
// manages more than one NCP link.
type Driver struct {
	id   uuid.UUID
	cfg  *Config
	tr   serial.Transport
	hook gpio.Hook

	trace *Trace

	fifo    *ring.FIFO
	adapter *serial.Adapter
	rxWake  chan struct{}

	dec *hdlc.Decoder
	enc *hdlc.Encoder

	txCfg    []byte
	frameBuf []byte

	store *store.Store
	tm    *transactionMatcher
	disp  *dispatcher
	pump  *pump

	mu    sync.Mutex
	state SessionState

	stopc chan struct{}
	wg    sync.WaitGroup

	inbound chan Datagram
}

// Datagram is one inbound IPv6 payload handed up from the NCP's datagram
// stream (spec §4.8 "inbound datagrams").
type Datagram struct {
	Secure  bool
	Payload []byte
}

// New constructs a Driver over transport and resetHook. cfg is resolved
// against DefaultConfig (nil is accepted and resolves entirely to
// defaults). The driver starts Uninitialized; callers must call
// Initialize before issuing requests.
func New(ctx context.Context, transport serial.Transport, resetHook gpio.Hook, cfg *Config) *Driver {
	resolved := resolveConfig(cfg)
	trace := TraceFromContext(ctx)

	d := &Driver{
		id:     uuid.New(),
		cfg:    resolved,
		tr:     transport,
		hook:   resetHook,
		trace:  trace,
		fifo:   ring.New(resolved.RxFIFOSize),
		rxWake: make(chan struct{}, 1),
		enc:    hdlc.NewEncoder(),
		store:   store.New(resolved.TxRingBufferSize),
		tm:      newTransactionMatcher(),
		stopc:   make(chan struct{}),
		inbound: make(chan Datagram, resolved.MessageQueueSize),
	}

	d.adapter = serial.NewAdapter(transport, d.fifo, resolved.RxNearFullThreshold, d.wake, nil, nil)
	d.dec = hdlc.NewDecoder(hdlc.WithFrameHandler(d.onFrame), hdlc.WithErrorHandler(d.onFrameError))
	d.disp = newDispatcher(trace, d.InitiateRecovery, d.deliverInbound)
	d.pump = newPump(d)

	return d
}

// ID returns the driver's instance identifier.
func (d *Driver) ID() uuid.UUID { return d.id }

// State returns the current session state.
func (d *Driver) State() SessionState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

func (d *Driver) setState(s SessionState) {
	d.mu.Lock()
	from := d.state
	d.state = s
	d.mu.Unlock()
	if from != s {
		d.trace.SessionStateChanged(from, s)
	}
}

// wake is the Adapter callback invoked from interrupt context on every
// received byte; it must not block.
func (d *Driver) wake() {
	select {
	case d.rxWake <- struct{}{}:
	default:
	}
}

// RxISR feeds one received byte into the driver. Call this from whatever
// interrupt or goroutine owns the physical byte stream.
func (d *Driver) RxISR(b byte) { d.adapter.RxISR(b) }

// Initialize brings the link up per the supervisor state machine (spec
// §4.9). On success the session state becomes Initialized and the
// background read loop is running.
func (d *Driver) Initialize(ctx context.Context, policy ResetPolicy) error {
	d.startReadLoop()

	if policy == MaySkipReset && d.cfg.InitializeWithoutReset {
		if err := d.tryReestablish(ctx); err == nil {
			d.setState(Initialized)
			return nil
		}
	}

	if err := d.resetNCPWithVerify(ctx); err != nil {
		d.stopReadLoop()
		return err
	}
	d.setState(Initialized)
	return nil
}

// tryReestablish attempts the re-establish fast path: issue a
// property-get for net-role without resetting, and treat success as
// Initialized (spec §4.9).
func (d *Driver) tryReestablish(ctx context.Context) error {
	_, err := d.request(ctx, spinel.CmdPropValueGet, spinel.PropNetRole, nil, false)
	return err
}

// resetNCPWithVerify performs up to cfg.ResetAttempts reset cycles,
// awaiting a don't-care last-status in the reset range on each attempt
// (spec §4.9).
func (d *Driver) resetNCPWithVerify(ctx context.Context) error {
	attempts := d.cfg.ResetAttempts
	if attempts <= 0 {
		attempts = DefaultConfig.ResetAttempts
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		pt, err := d.tm.begin(spinel.CmdPropValueIs, spinel.PropLastStatus, true)
		if err != nil {
			lastErr = err
			continue
		}

		gpio.PulseReset(d.hook, false, d.cfg.ResetHoldTime, d.cfg.ResetSettleDelay)

		select {
		case res := <-pt.resultc:
			d.tm.end(pt)
			if res.success {
				dec := spinel.NewDecoder(res.payload)
				code, derr := dec.PackedUint()
				if derr == nil && spinel.IsResetStatus(code) {
					return nil
				}
			}
			lastErr = wrapf(KindFailed, nil, "reset attempt %d: unexpected last-status", i+1)
		case <-time.After(d.cfg.RequestTimeout):
			d.tm.end(pt)
			lastErr = wrapf(KindNoFrameReceived, nil, "reset attempt %d: no frame received", i+1)
		}
	}
	return wrapf(KindFailed, lastErr, "NCP did not verify reset after %d attempts", attempts)
}

// Finalize sends a best-effort power-state-offline request, disables the
// byte I/O and transitions to Uninitialized (spec §4.9).
func (d *Driver) Finalize(ctx context.Context) error {
	_, _ = d.request(ctx, spinel.CmdPropValueSet, spinel.PropHostPowerState, func(e *spinel.Encoder) { e.Uint8(0) }, false)
	d.stopReadLoop()
	_ = d.tr.Close()
	d.setState(Uninitialized)
	return nil
}

// InitiateRecovery transitions the session to ResetRecovery and posts a
// Recovery trace event; it is idempotent if recovery is already underway
// (spec §4.9). The caller-supplied recovery callback (wired by the
// embedder through the Recovery trace hook) is expected to re-run
// Initialize and rehydrate NCP state.
func (d *Driver) InitiateRecovery(reason error) {
	d.mu.Lock()
	already := d.state == ResetRecovery
	d.state = ResetRecovery
	d.mu.Unlock()
	if already {
		return
	}
	d.trace.Recovery(reason)
}

// HostSleep sends host-power-state=low-power and attempts to disable the
// byte I/O; it only succeeds once the receive FIFO is empty and no frame
// is mid-decode, retrying up to attempts times since the NCP may send one
// more frame before settling (spec §4.9).
func (d *Driver) HostSleep(ctx context.Context, attempts int) error {
	if _, err := d.request(ctx, spinel.CmdPropValueSet, spinel.PropHostPowerState, func(e *spinel.Encoder) { e.Uint8(1) }, false); err != nil {
		return err
	}

	if attempts <= 0 {
		attempts = 3
	}
	for i := 0; i < attempts; i++ {
		if d.fifo.IsEmpty() && !d.dec.InFrame() {
			d.stopReadLoop()
			d.setState(HostSleep)
			return nil
		}
		time.Sleep(5 * time.Millisecond)
	}
	return wrapf(KindFailed, nil, "host-sleep: byte I/O did not quiesce after %d attempts", attempts)
}

// HostWake re-enables byte I/O and returns the session to Initialized
// (spec §4.9).
func (d *Driver) HostWake(ctx context.Context) error {
	d.startReadLoop()
	d.setState(Initialized)
	return nil
}

func (d *Driver) startReadLoop() {
	select {
	case <-d.stopc:
		d.stopc = make(chan struct{})
	default:
	}
	d.wg.Add(1)
	go d.readLoop()
}

func (d *Driver) stopReadLoop() {
	close(d.stopc)
	d.wg.Wait()
}

// readLoop is the driver task: it drains the receive FIFO into the HDLC
// decoder whenever new bytes arrive, re-arming the near-full mask once
// drained (spec §4.2), and drives the outbound pump whenever it is
// signalled (spec §4.7).
func (d *Driver) readLoop() {
	defer d.wg.Done()
	ticker := time.NewTicker(2 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-d.stopc:
			return
		case <-d.rxWake:
			d.drainRx()
		case <-ticker.C:
			d.drainRx()
			d.pump.tick()
		}
	}
}

func (d *Driver) drainRx() {
	for {
		b, ok := d.fifo.Get()
		if !ok {
			break
		}
		d.dec.Byte(b)
	}
	d.adapter.Drained()
}

func (d *Driver) onFrame(frame []byte) {
	dec := spinel.NewDecoder(frame)
	header, err := dec.Header()
	if err != nil {
		d.trace.DecodeError(err)
		return
	}
	cmd, err := dec.PackedUint()
	if err != nil {
		d.trace.DecodeError(err)
		return
	}
	key, err := dec.PackedUint()
	if err != nil {
		d.trace.DecodeError(err)
		return
	}
	payload := append([]byte(nil), dec.Remaining()...)

	d.trace.FrameDecoded(cmd, key, header.TID())

	if d.tm.deliver(header, cmd, key, payload) {
		return
	}
	d.disp.handle(cmd, key, payload)
}

func (d *Driver) onFrameError(err error, partial []byte) {
	d.trace.DecodeError(err)
	d.InitiateRecovery(wrapf(KindParse, err, "frame decode failed"))
}

// expectedResponseCmd maps an outgoing request command to the command a
// successful response carries (spec §3's transaction record stores this
// as "expected-command", distinct from the request's own command: a
// property-value-get's reply arrives as property-value-is, not as
// another property-value-get).
func expectedResponseCmd(reqCmd uint32) uint32 {
	switch reqCmd {
	case spinel.CmdPropValueInsert:
		return spinel.CmdPropValueInserted
	case spinel.CmdPropValueRemove:
		return spinel.CmdPropValueRemoved
	default: // CmdPropValueGet, CmdPropValueSet, CmdNetClear, vendor variants
		return spinel.CmdPropValueIs
	}
}

// request issues a synchronous property request and returns the matching
// response's argument payload. dontCare requests tid 1, matched by
// (command, key) alone; otherwise a fresh round-robin tid is drawn. A
// failure match (tid matched but (command, key) did not) surfaces as
// KindFailed.
func (d *Driver) request(ctx context.Context, cmd, key uint32, args func(*spinel.Encoder), dontCare bool) ([]byte, error) {
	d.trace.RequestStart(cmd, key, 0)
	start := time.Now()

	pt, err := d.tm.begin(expectedResponseCmd(cmd), key, dontCare)
	if err != nil {
		d.trace.RequestDone(cmd, key, 0, err, time.Since(start))
		return nil, err
	}

	if err := d.sendFrame(spinel.NewHeader(0, pt.tid), cmd, key, args); err != nil {
		d.tm.end(pt)
		d.trace.RequestDone(cmd, key, pt.tid, err, time.Since(start))
		return nil, err
	}

	timeout := d.cfg.RequestTimeout
	if dl, ok := ctx.Deadline(); ok {
		if until := time.Until(dl); until < timeout {
			timeout = until
		}
	}

	select {
	case res := <-pt.resultc:
		d.tm.end(pt)
		d.trace.RequestDone(cmd, key, pt.tid, nil, time.Since(start))
		if !res.success {
			return res.payload, d.lastStatusFailure(res)
		}
		return res.payload, nil
	case <-ctx.Done():
		d.tm.end(pt)
		err := wrapf(KindNoFrameReceived, ctx.Err(), "request cancelled")
		d.trace.RequestDone(cmd, key, pt.tid, err, time.Since(start))
		return nil, err
	case <-time.After(timeout):
		d.tm.end(pt)
		err := wrapf(KindNoFrameReceived, nil, "no response to cmd %#x key %#x within %s", cmd, key, timeout)
		d.trace.RequestDone(cmd, key, pt.tid, err, time.Since(start))
		d.InitiateRecovery(err)
		return nil, err
	}
}

// lastStatusFailure decodes a failure match's payload as a last-status
// code when possible, for a more informative error message.
func (d *Driver) lastStatusFailure(res matchResult) error {
	if res.cmd == spinel.CmdPropValueIs && res.key == spinel.PropLastStatus {
		dec := spinel.NewDecoder(res.payload)
		if code, err := dec.PackedUint(); err == nil {
			return wrapf(KindFailed, nil, "NCP rejected request with last-status %#x", code)
		}
	}
	return wrapf(KindFailed, nil, "NCP rejected request with cmd %#x key %#x", res.cmd, res.key)
}

// sendFrame packs a Spinel header/command/key/argument sequence, HDLC
// frames it and writes it out through the byte transport, draining the
// receive FIFO while it spins so a stalled NCP cannot deadlock the host
// against its own unconsumed receive side (spec §5).
func (d *Driver) sendFrame(header spinel.Header, cmd, key uint32, args func(*spinel.Encoder)) error {
	penc := spinel.NewEncoder(d.frameBuf[:0])
	penc.Header(header).PackedUint(cmd).PackedUint(key)
	if args != nil {
		args(penc)
	}
	d.frameBuf = penc.Bytes()

	out := make([]byte, 0, 2*len(d.frameBuf)+8)
	d.enc.Reset(out[:cap(out)])
	if _, err := d.enc.Write(d.frameBuf); err != nil {
		return wrapf(KindFailed, err, "hdlc encode")
	}
	if err := d.enc.Finish(); err != nil {
		return wrapf(KindFailed, err, "hdlc finish")
	}

	for _, b := range d.enc.Bytes() {
		if !d.adapter.TxPut(b, d.cfg.RequestTimeout, d.drainRx) {
			return wrapf(KindFailed, nil, "tx: console did not accept byte within deadline")
		}
	}
	return nil
}
