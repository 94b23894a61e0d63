// Package serial defines the byte I/O adapter (spec C1) between an
// interrupt-driven serial console and the driver's receive FIFO, plus the
// narrow Transport interface it is built on.
package serial

import (
	"time"

	"github.com/ezhangle/thci/ncp/ring"
)

// Transport is the narrow byte-sink/source surface the driver needs from
// whatever physical (or virtual, in tests) serial console it is attached
// to. It deliberately says nothing about baud rate, flow control or device
// paths -- spec §1 places any particular physical serial-port driver out
// of scope -- modeled on the teacher's own thin Transport interface
// (netconf/client.Transport) wrapping an io.ReadWriteCloser.
type Transport interface {
	// TxReady reports whether the console can currently accept a byte.
	TxReady() bool
	// TxPut writes one byte to the console. It must only be called when
	// TxReady reported true.
	TxPut(b byte)
	// Close releases the underlying console.
	Close() error
}

// Adapter bridges a Transport's interrupt-context byte arrivals into a
// ring.FIFO, applying the near-full backpressure watermark described in
// spec §4.1/§4.2. Adapter itself holds no lock shared between interrupt
// and task context; RxISR and the task-context methods only ever touch the
// FIFO, which is already safe for single-producer/single-consumer use.
type Adapter struct {
	t         Transport
	fifo      *ring.FIFO
	threshold int
	masked    bool

	// wake is invoked (from interrupt context, so it must not block) each
	// time a byte is successfully enqueued, to nudge the framer task.
	wake func()
	// mask/unmask are invoked on the near-full transitions; a real build
	// wires these to the platform's interrupt controller. They may be
	// nil in tests.
	mask, unmask func()
}

// NewAdapter creates an Adapter over fifo with the given near-full
// threshold (spec default: half of the FIFO's capacity).
func NewAdapter(t Transport, fifo *ring.FIFO, threshold int, wake func(), mask, unmask func()) *Adapter {
	if threshold <= 0 {
		threshold = fifo.Cap() / 2
	}
	return &Adapter{t: t, fifo: fifo, threshold: threshold, wake: wake, mask: mask, unmask: unmask}
}

// RxISR delivers one received byte. It is safe to call from interrupt
// context: it never blocks and never allocates.
func (a *Adapter) RxISR(b byte) {
	if !a.fifo.Put(b) {
		return // FIFO overflow: byte dropped, nothing more we can do here.
	}
	if a.wake != nil {
		a.wake()
	}
	if !a.masked && a.fifo.NearFull(a.threshold) {
		a.masked = true
		if a.mask != nil {
			a.mask()
		}
	}
}

// Drained is called from task context after bytes have been consumed from
// the FIFO. It re-arms the receive interrupt once occupancy has fallen
// below twice the near-full threshold, giving the mask hysteresis spec
// §4.2 calls for.
func (a *Adapter) Drained() {
	if a.masked && !a.fifo.NearFull(2*a.threshold) {
		a.masked = false
		if a.unmask != nil {
			a.unmask()
		}
	}
}

// Masked reports whether the receive interrupt is currently masked.
func (a *Adapter) Masked() bool { return a.masked }

// TxPut writes b to the console, spinning until TxReady or deadline
// elapses. While spinning it calls drain (typically the driver's FIFO
// drain step) so that a stalled NCP which itself is waiting on its own
// receive side does not deadlock against this host (spec §5).
func (a *Adapter) TxPut(b byte, deadline time.Duration, drain func()) bool {
	end := time.Now().Add(deadline)
	for !a.t.TxReady() {
		if drain != nil {
			drain()
		}
		if time.Now().After(end) {
			return false
		}
		time.Sleep(time.Millisecond)
	}
	a.t.TxPut(b)
	return true
}
