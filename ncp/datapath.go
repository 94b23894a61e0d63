package ncp

import (
	"github.com/ezhangle/thci/ncp/store"
)

// SubmitOutbound queues payload for transmission, honouring flags
// (secure/legacy, spec §3), blocking up to the configured allocation
// timeout if the outbound store has no room. Submission ordering is
// preserved: the pump drains messages in the order they were accepted
// here (spec §5 "ordering guarantees").
func (d *Driver) SubmitOutbound(payload []byte, flags store.MessageFlags) error {
	msg, err := d.store.Alloc(len(payload), flags, d.cfg.AllocTimeout)
	if err != nil {
		return wrapf(KindNoBuffers, err, "submit outbound: %d bytes", len(payload))
	}
	if err := d.store.Append(msg, payload); err != nil {
		_ = d.store.Free(msg)
		return wrapf(KindInvalidArgs, err, "submit outbound: append")
	}
	d.pump.post()
	return nil
}

// OutboundQueueEmpty reports whether the outbound store currently holds
// no live messages, for monitoring and for tests that assert a full
// drain occurred.
func (d *Driver) OutboundQueueEmpty() bool { return d.store.Empty() }

// Inbound returns the channel inbound datagrams are delivered on (spec
// §6 "receive one inbound datagram").
func (d *Driver) Inbound() <-chan Datagram { return d.inbound }

// deliverInbound is the dispatcher's onDatagram callback; it hands a
// freshly allocated payload to whatever is reading Inbound(), dropping it
// if the channel is full rather than blocking the driver task.
func (d *Driver) deliverInbound(secure bool, payload []byte) {
	select {
	case d.inbound <- Datagram{Secure: secure, Payload: payload}:
	default:
	}
}

// StallPump and UnstallPump let the embedder apply upper-stack
// backpressure to the data-plane pump (spec §4.7).
func (d *Driver) StallPump()   { d.pump.Stall() }
func (d *Driver) UnstallPump() { d.pump.Unstall() }

// DrainPendingFlags atomically reads and clears the set of client
// notifications the control-plane dispatch has accumulated since the
// last call, and is intended to be invoked by the state-changed trace
// hook's registered callback (spec §4.8).
func (d *Driver) DrainPendingFlags() PendingFlags { return d.disp.drain() }

// NetRole returns the most recently observed net-role value.
func (d *Driver) NetRole() NetRole { return d.disp.role() }

// SecureSeenOnInsecurePort reports whether a secure datagram has been
// observed on the provisional-join insecure port, which closes the
// provisional-join window (spec §8 invariant 5).
func (d *Driver) SecureSeenOnInsecurePort() bool { return d.disp.secureSeenOnInsecure() }
