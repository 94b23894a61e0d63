package ring_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ezhangle/thci/ncp/ring"
)

func TestFIFOPutGetOrder(t *testing.T) {
	f := ring.New(4)
	require.True(t, f.IsEmpty())

	require.True(t, f.Put(1))
	require.True(t, f.Put(2))
	require.True(t, f.Put(3))
	require.False(t, f.IsEmpty())

	b, ok := f.Get()
	require.True(t, ok)
	require.Equal(t, byte(1), b)

	b, ok = f.Get()
	require.True(t, ok)
	require.Equal(t, byte(2), b)

	b, ok = f.Get()
	require.True(t, ok)
	require.Equal(t, byte(3), b)

	_, ok = f.Get()
	require.False(t, ok)
	require.True(t, f.IsEmpty())
}

func TestFIFOOverflow(t *testing.T) {
	f := ring.New(4)
	require.Equal(t, 3, f.Cap())

	require.True(t, f.Put(1))
	require.True(t, f.Put(2))
	require.True(t, f.Put(3))
	require.False(t, f.Put(4), "fourth put should overflow a capacity-3 ring")

	// Draining one slot makes room for exactly one more.
	_, _ = f.Get()
	require.True(t, f.Put(4))
}

func TestFIFONearFullHysteresis(t *testing.T) {
	f := ring.New(16)
	threshold := 4

	for i := 0; i < threshold; i++ {
		require.True(t, f.Put(byte(i)))
	}
	require.True(t, f.NearFull(threshold))

	// Drain to just below 2*threshold worth of headroom -- i.e. down to
	// threshold-1 queued bytes -- and confirm the wider watermark clears.
	_, _ = f.Get()
	require.False(t, f.NearFull(2*threshold))
}

func TestFIFOWrapAround(t *testing.T) {
	f := ring.New(4)
	for round := 0; round < 10; round++ {
		require.True(t, f.Put(byte(round)))
		b, ok := f.Get()
		require.True(t, ok)
		require.Equal(t, byte(round), b)
	}
}
