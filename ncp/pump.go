package ncp

import (
	"context"
	"encoding/binary"
	"sync/atomic"

	"github.com/ezhangle/thci/ncp/spinel"
	"github.com/ezhangle/thci/ncp/store"
)

// pump implements the data-plane pump (C7): it drains the outbound store
// in arrival order, framing and sending each message and awaiting its
// last-status response, and stops draining the moment it is stalled or a
// send fails (spec §4.7).
type pump struct {
	d *Driver

	stalled atomic.Bool
	// posted is the "pump-event-posted" sticky flag (spec §4.7): at most
	// one pump wakeup may be resident in the driver's mailbox at a time.
	posted atomic.Bool

	// insecurePortOpened/insecurePort track the provisional-join insecure
	// source port opened on first use (spec §4.7 step 2).
	insecurePortOpened bool
	insecurePort       uint16
}

func newPump(d *Driver) *pump {
	return &pump{d: d}
}

// post requests a pump wakeup, coalescing with any wakeup already
// resident (spec §8 invariant 4). Called on fresh outbound arrival and on
// un-stall.
func (p *pump) post() {
	if p.posted.CompareAndSwap(false, true) {
		p.d.wake()
	}
}

// Stall prevents the pump from draining further messages until Unstall is
// called; it models the upper-stack-imposed backpressure spec §4.7
// describes ("under stall the pump returns without draining").
func (p *pump) Stall() { p.stalled.Store(true) }

// Unstall lifts a stall and re-posts a pump wakeup so draining resumes.
func (p *pump) Unstall() {
	p.stalled.Store(false)
	p.post()
}

// tick is the pump's task entry point, invoked from the driver's read
// loop. It atomically reads-and-clears the posted flag (spec's "cleared
// atomically at event entry") and, if it was set and the pump is not
// stalled, drains the outbound store.
func (p *pump) tick() {
	if !p.posted.Swap(false) {
		return
	}
	if p.stalled.Load() {
		return
	}
	p.drain()
}

// drain dequeues and sends outbound messages while the store is
// non-empty and the pump is not stalled (spec §4.7).
func (p *pump) drain() {
	for !p.d.store.Empty() && !p.stalled.Load() {
		if !p.drainOne() {
			if !p.d.store.Empty() {
				p.post()
			}
			return
		}
	}
}

// drainOne sends the single oldest outbound message, returning false if
// draining should stop (a send or wait failure, per spec §4.7 step 5).
func (p *pump) drainOne() bool {
	msg := p.d.store.Oldest()
	if msg == nil {
		return true
	}

	payload := msg.Bytes()

	// Silent drop (spec §7 user-visible failure behavior, case (a)): a
	// secured datagram with the radio detached has nowhere to go and is
	// not surfaced as an error, since the caller has no standing request
	// that could carry one.
	if msg.Secure() && p.d.NetRole() == spinel.NetRoleDetached {
		_ = p.d.store.Free(msg)
		return true
	}

	if msg.Secure() && !p.insecurePortOpened {
		if port, ok := tcpSourcePort(payload); ok {
			if err := p.openInsecurePort(port); err == nil {
				p.insecurePortOpened = true
				p.insecurePort = port
			}
		}
	}

	cmd, key := spinel.CmdPropValueSet, p.streamKey(msg)

	// The pump always awaits a last-status response, not an echo of the
	// stream key, regardless of which stream it sent on (spec §4.7 step 4).
	pt, err := p.d.tm.begin(spinel.CmdPropValueIs, spinel.PropLastStatus, false)
	if err != nil {
		return false
	}

	sendErr := p.d.sendFrame(spinel.NewHeader(0, pt.tid), cmd, key, func(e *spinel.Encoder) { e.Data(payload) })

	// Free the message before awaiting the response, so store space is
	// reclaimed as early as possible (spec §4.7 step 4).
	_ = p.d.store.Free(msg)

	if sendErr != nil {
		p.d.tm.end(pt)
		p.d.trace.PumpSendFailed(sendErr)
		return false
	}

	for {
		select {
		case res := <-pt.resultc:
			p.d.tm.end(pt)
			if !res.success {
				p.d.trace.PumpSendFailed(p.d.lastStatusFailure(res))
				return true
			}
			dec := spinel.NewDecoder(res.payload)
			code, derr := dec.PackedUint()
			if derr != nil || code != spinel.StatusOK {
				p.d.trace.PumpSendFailed(wrapf(KindFailed, derr, "pump send: last-status %#x", code))
			}
			return true
		case <-p.d.rxWake:
			// The pump runs on the read loop, the receive FIFO's only
			// consumer, so it decodes arriving bytes itself while it waits.
			p.d.drainRx()
		case <-p.d.stopc:
			p.d.tm.end(pt)
			return false
		}
	}
}

// streamKey selects the command/key pair for msg per spec §4.7 step 3:
// vendor-legacy stream when flagged legacy, secure datagram stream when
// flagged secure, insecure datagram stream otherwise.
func (p *pump) streamKey(msg *store.Message) uint32 {
	switch {
	case msg.Legacy():
		return spinel.PropVendorLegacyStream
	case msg.Secure():
		return spinel.PropStreamNet
	default:
		return spinel.PropStreamNetInsecure
	}
}

// openInsecurePort asks the NCP to accept traffic on port as an insecure
// source port, part of the provisional-join window (spec §4.7 step 2).
func (p *pump) openInsecurePort(port uint16) error {
	_, err := p.d.request(context.Background(), spinel.CmdPropValueInsert, spinel.PropAssistingPorts,
		func(e *spinel.Encoder) { e.Uint16(port) }, false)
	return err
}

// tcpSourcePort parses an IPv6 header and TCP source port out of a raw
// datagram, as spec §4.7 step 2 requires for provisional-join insecure
// port discovery. It returns ok=false for anything shorter than the
// 40-byte IPv6 header plus the two TCP source-port bytes, or whose
// next-header is not TCP (6).
func tcpSourcePort(datagram []byte) (uint16, bool) {
	const ipv6HeaderLen = 40
	if len(datagram) < ipv6HeaderLen+2 {
		return 0, false
	}
	nextHeader := datagram[6]
	if nextHeader != 6 {
		return 0, false
	}
	return binary.BigEndian.Uint16(datagram[ipv6HeaderLen : ipv6HeaderLen+2]), true
}
