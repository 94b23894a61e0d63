// Package store implements the bounded outbound-message ring buffer
// (spec C6): a single backing byte array from which variable-length,
// 4-byte-aligned messages are allocated as a head segment and a tail
// segment with a possibly-zero end-gap between them, under one mutex, with
// a waiter wakeup when a blocked allocation is satisfied by a release.
package store

import (
	"sync"
	"time"

	"github.com/pkg/errors"
)

// MTU is the IPv6 datagram MTU the core assumes (spec §3).
const MTU = 1280

// DefaultCapacity is the default store byte budget: 5x MTU.
const DefaultCapacity = 5 * MTU

// DefaultAllocTimeout is the default deadline Alloc blocks for before
// failing (spec §4.6).
const DefaultAllocTimeout = 2 * time.Second

// Errors returned by Store operations.
var (
	ErrTooLarge        = errors.New("store: message exceeds MTU")
	ErrExhausted       = errors.New("store: allocation timed out")
	ErrOverflow        = errors.New("store: append exceeds message capacity")
	ErrInvalidRelease  = errors.New("store: free must target the oldest or newest live message")
	ErrNotLive         = errors.New("store: message does not belong to this store")
)

// Store is a bounded ring allocator of outbound messages.
type Store struct {
	mu sync.Mutex

	buf  []byte
	cap  int
	head int // next allocation offset
	tail int // offset of the oldest live message
	gap  int // end-gap bytes skipped by the most recent wrap

	live []*Message

	waiters  int
	wake     chan struct{}
}

// New creates a Store with the given byte capacity. A non-positive
// capacity is replaced with DefaultCapacity.
func New(capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Store{
		buf:  make([]byte, capacity),
		cap:  capacity,
		wake: make(chan struct{}, 1),
	}
}

// Alloc reserves a header-plus-payload run for a message of the given
// payload length and flags, blocking up to timeout if no run is
// immediately available. A non-positive timeout uses DefaultAllocTimeout.
func (s *Store) Alloc(length int, flags MessageFlags, timeout time.Duration) (*Message, error) {
	if length > MTU {
		return nil, errors.Wrapf(ErrTooLarge, "length %d exceeds MTU %d", length, MTU)
	}
	if timeout <= 0 {
		timeout = DefaultAllocTimeout
	}
	total := align4(headerSize + length)

	deadline := time.Now().Add(timeout)
	s.mu.Lock()
	for {
		if msg, ok := s.tryAlloc(total, length, flags); ok {
			s.mu.Unlock()
			return msg, nil
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			s.mu.Unlock()
			return nil, errors.Wrapf(ErrExhausted, "no space for %d bytes within %s", total, timeout)
		}
		s.waiters++
		s.mu.Unlock()

		select {
		case <-s.wake:
		case <-time.After(remaining):
		}

		s.mu.Lock()
		s.waiters--
	}
}

// tryAlloc attempts a single, non-blocking allocation attempt. Caller must
// hold s.mu.
func (s *Store) tryAlloc(total, length int, flags MessageFlags) (*Message, bool) {
	var offset int
	switch {
	case len(s.live) == 0:
		// Empty store: rebase to the front to avoid unbounded drift.
		s.head, s.tail, s.gap = 0, 0, 0
		if total > s.cap {
			return nil, false
		}
		offset = 0
		s.head = total

	case s.head == s.tail:
		// Live messages with head == tail: the ring is exactly full.
		return nil, false

	case s.head > s.tail:
		// Linear layout: used run is [tail, head); free space is
		// [head, cap) and, if we wrap, [0, tail).
		if total <= s.cap-s.head {
			offset = s.head
			s.head += total
		} else if total <= s.tail {
			// Wrap: the tail end of the run from head to cap is skipped.
			s.gap = s.cap - s.head
			offset = 0
			s.head = total
		} else {
			return nil, false
		}

	default:
		// Already wrapped: used is [0, head) plus [tail, cap); the only
		// free space is the middle run [head, tail).
		if total <= s.tail-s.head {
			offset = s.head
			s.head += total
		} else {
			return nil, false
		}
	}

	msg := &Message{
		capacity:    length,
		buf:         s.buf[offset+headerSize : offset+headerSize+length],
		flags:       flags,
		storeOffset: offset,
		totalSize:   total,
	}
	s.live = append(s.live, msg)
	return msg, true
}

// Free releases msg, which must be either the oldest or the newest live
// message in the store (spec §4.6). Releasing any other message is a
// programming error and returns ErrInvalidRelease rather than panicking,
// so that a calling mistake in a test does not bring the whole process
// down.
func (s *Store) Free(msg *Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.live) == 0 {
		return errors.Wrap(ErrNotLive, "store is empty")
	}

	switch {
	case s.live[0] == msg:
		s.freeTail(msg)
	case s.live[len(s.live)-1] == msg:
		s.freeHead(msg)
	default:
		return ErrInvalidRelease
	}

	s.notifyWaiters()
	return nil
}

// freeTail releases the oldest live message. Caller holds s.mu.
func (s *Store) freeTail(msg *Message) {
	newTail := msg.storeOffset + msg.totalSize
	if s.gap > 0 && newTail == s.cap-s.gap {
		newTail = 0
		s.gap = 0
	} else if newTail == s.cap {
		newTail = 0
	}
	s.tail = newTail
	s.live = s.live[1:]
}

// freeHead releases the newest live message, rewinding the allocation
// point. Caller holds s.mu.
func (s *Store) freeHead(msg *Message) {
	if msg.storeOffset == 0 && s.gap > 0 {
		// This message was the first placed after a wrap: rewinding past
		// it undoes the wrap entirely.
		s.head = s.cap - s.gap
		s.gap = 0
	} else {
		s.head = msg.storeOffset
	}
	s.live = s.live[:len(s.live)-1]
}

func (s *Store) notifyWaiters() {
	if s.waiters == 0 {
		return
	}
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Append copies p into msg's reserved payload at its current write
// position, returning ErrOverflow if it would not fit.
func (s *Store) Append(msg *Message, p []byte) error {
	if msg.length+len(p) > msg.capacity {
		return errors.Wrapf(ErrOverflow, "append %d bytes to message with %d/%d used", len(p), msg.length, msg.capacity)
	}
	copy(msg.buf[msg.length:], p)
	msg.length += len(p)
	return nil
}

// Read copies up to len(dst) bytes out of msg's payload starting at its current
// read offset, returning the number of bytes copied into dst.
func (s *Store) Read(msg *Message, dst []byte) int {
	avail := msg.length - msg.offset
	if avail <= 0 {
		return 0
	}
	n := copy(dst, msg.buf[msg.offset:msg.offset+min(avail, len(dst))])
	msg.offset += n
	return n
}

// Oldest returns the oldest live message without releasing it, or nil if
// the store holds none. The pump uses this to peek the next message to
// send before freeing it (spec §4.7 step 4).
func (s *Store) Oldest() *Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.live) == 0 {
		return nil
	}
	return s.live[0]
}

// Len returns the number of currently live messages.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.live)
}

// Empty reports whether the store currently holds no live messages.
func (s *Store) Empty() bool {
	return s.Len() == 0
}

// LiveBytes returns the total 4-byte-aligned size of all live
// allocations, for invariant checks.
func (s *Store) LiveBytes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	var total int
	for _, m := range s.live {
		total += m.totalSize
	}
	return total
}

// Gap returns the current end-gap size, for invariant checks.
func (s *Store) Gap() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gap
}
