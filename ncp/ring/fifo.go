// Package ring implements a fixed-capacity single-producer/single-consumer
// byte ring used to hand received bytes from an interrupt source to the
// driver's task-context read loop without sharing a lock between the two.
package ring

import "sync/atomic"

// DefaultCapacity is the FIFO capacity used when none is supplied.
const DefaultCapacity = 128

// FIFO is a lock-free single-producer/single-consumer byte ring.
//
// Put is called from interrupt context; Get, IsEmpty and NearFull are
// called from task context. The head and tail indices are only ever
// written by their respective side and read (atomically) by the other, so
// no mutex is required and none should be added: sharing a lock between an
// ISR and a task risks the task blocking the interrupt indefinitely.
type FIFO struct {
	buf  []byte
	head atomic.Uint32 // next slot the consumer will read
	tail atomic.Uint32 // next slot the producer will write
}

// New creates a FIFO with the given capacity. A non-positive capacity is
// replaced with DefaultCapacity.
func New(capacity int) *FIFO {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &FIFO{buf: make([]byte, capacity)}
}

// Put enqueues b, returning false if the FIFO is full (overflow).
func (f *FIFO) Put(b byte) bool {
	tail := f.tail.Load()
	next := f.advance(tail)
	if next == f.head.Load() {
		return false // full
	}
	f.buf[tail] = b
	f.tail.Store(next)
	return true
}

// Get dequeues the oldest byte. ok is false if the FIFO is empty.
func (f *FIFO) Get() (b byte, ok bool) {
	head := f.head.Load()
	if head == f.tail.Load() {
		return 0, false
	}
	b = f.buf[head]
	f.head.Store(f.advance(head))
	return b, true
}

// IsEmpty reports whether the FIFO currently holds no bytes.
func (f *FIFO) IsEmpty() bool {
	return f.head.Load() == f.tail.Load()
}

// Len returns the number of bytes currently queued.
func (f *FIFO) Len() int {
	tail, head := int(f.tail.Load()), int(f.head.Load())
	if tail >= head {
		return tail - head
	}
	return len(f.buf) - head + tail
}

// Cap returns the FIFO's capacity (one less than the backing array length,
// since one slot is always kept empty to distinguish full from empty).
func (f *FIFO) Cap() int {
	return len(f.buf) - 1
}

// NearFull reports whether the queued byte count has reached threshold.
// The producer side should stop accepting new bytes (mask its interrupt
// source) once this returns true; the consumer side should re-arm once
// NearFull(2*threshold) becomes false, giving the two watermarks hysteresis
// so a producer sitting exactly on the line does not chatter the mask.
func (f *FIFO) NearFull(threshold int) bool {
	return f.Len() >= threshold
}

func (f *FIFO) advance(i uint32) uint32 {
	i++
	if int(i) == len(f.buf) {
		return 0
	}
	return i
}
