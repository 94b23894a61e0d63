package store_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ezhangle/thci/ncp/store"
)

func TestAllocFreeFIFO(t *testing.T) {
	s := store.New(256)

	m1, err := s.Alloc(20, 0, time.Second)
	require.NoError(t, err)
	m2, err := s.Alloc(20, store.FlagSecure, time.Second)
	require.NoError(t, err)
	require.Equal(t, 2, s.Len())

	require.NoError(t, s.Append(m1, []byte("hello")))
	require.Equal(t, []byte("hello"), m1.Bytes())

	require.NoError(t, s.Free(m1))
	require.Equal(t, 1, s.Len())
	require.NoError(t, s.Free(m2))
	require.True(t, s.Empty())
}

func TestFreeInteriorIsRejected(t *testing.T) {
	s := store.New(256)
	m1, _ := s.Alloc(10, 0, time.Second)
	m2, _ := s.Alloc(10, 0, time.Second)
	m3, _ := s.Alloc(10, 0, time.Second)

	err := s.Free(m2) // interior: rejected
	require.ErrorIs(t, err, store.ErrInvalidRelease)

	err = s.Free(m3) // newest: fine
	require.NoError(t, err)

	err = s.Free(m1) // oldest: fine
	require.NoError(t, err)
}

func TestFreeNonLiveIsRejected(t *testing.T) {
	s := store.New(256)
	m1, _ := s.Alloc(10, 0, time.Second)
	_, _ = s.Alloc(10, 0, time.Second)
	m3, _ := s.Alloc(10, 0, time.Second)

	err := s.Free(m1)
	require.NoError(t, err) // oldest, ok
	_ = m3

	// m1 is no longer live; freeing it again must fail rather than corrupt state.
	err = s.Free(m1)
	require.ErrorIs(t, err, store.ErrInvalidRelease)
}

func TestOversizeMessageRejectedAtSubmission(t *testing.T) {
	s := store.New(store.DefaultCapacity)
	_, err := s.Alloc(store.MTU+1, 0, time.Second)
	require.ErrorIs(t, err, store.ErrTooLarge)
}

func TestAppendOverflow(t *testing.T) {
	s := store.New(256)
	m, _ := s.Alloc(4, 0, time.Second)
	err := s.Append(m, []byte("12345"))
	require.ErrorIs(t, err, store.ErrOverflow)
}

// TestWrapAllocation exercises the case where the head run is too small
// for the next request but the tail run has been vacated and is large
// enough, forcing a wrap that records an end-gap, and confirms a
// subsequent tail release correctly skips that gap.
func TestWrapAllocation(t *testing.T) {
	s := store.New(64) // small capacity to force wraparound quickly

	// Fill most of the buffer with two messages, then free the first so
	// there is room at the front but not at the tail-adjacent head.
	a, err := s.Alloc(20, 0, time.Second)
	require.NoError(t, err)
	b, err := s.Alloc(20, 0, time.Second)
	require.NoError(t, err)

	require.NoError(t, s.Free(a)) // now only b is live, near the front

	// Request something that does not fit in the remaining run at head
	// (near the end of the 64-byte array) but does fit by wrapping to the
	// freed space at the front.
	c, err := s.Alloc(20, 0, time.Second)
	require.NoError(t, err)
	require.Equal(t, 8, s.Gap()) // b ends at 56, so the 8 bytes [56, 64) are skipped

	require.NoError(t, s.Free(b))
	require.NoError(t, s.Free(c))
	require.True(t, s.Empty())
	require.Equal(t, 0, s.Gap())
}

func TestAllocBlocksThenUnblocksOnFree(t *testing.T) {
	s := store.New(24) // tiny: one 8-byte message leaves no room for a second

	m1, err := s.Alloc(8, 0, time.Second)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, e := s.Alloc(8, 0, time.Second)
		done <- e
	}()

	// Give the allocator a moment to block, then free the only message.
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, s.Free(m1))

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("blocked allocation was not woken by the release")
	}
}

func TestAllocTimesOutWhenStoreStaysFull(t *testing.T) {
	s := store.New(16)
	_, err := s.Alloc(4, 0, time.Second)
	require.NoError(t, err)

	_, err = s.Alloc(4, 0, 30*time.Millisecond)
	require.ErrorIs(t, err, store.ErrExhausted)
}
