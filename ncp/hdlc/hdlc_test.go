package hdlc_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ezhangle/thci/ncp/hdlc"
)

func encodeFrame(t *testing.T, payload []byte) []byte {
	t.Helper()
	e := hdlc.NewEncoder()
	e.Reset(make([]byte, 0, 4096))
	n, err := e.Write(payload)
	require.NoError(t, err)
	require.Equal(t, len(payload), n)
	require.NoError(t, e.Finish())
	out := make([]byte, len(e.Bytes()))
	copy(out, e.Bytes())
	return out
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cases := [][]byte{
		{},
		{0x01},
		{0x7E, 0x7D, 0x11, 0x13, 0x00, 0xFF},
		make([]byte, 300),
	}
	for i := range cases[3] {
		cases[3][i] = byte(i)
	}

	for _, payload := range cases {
		wire := encodeFrame(t, payload)

		var got []byte
		var decErr error
		d := hdlc.NewDecoder(
			hdlc.WithFrameHandler(func(frame []byte) {
				got = append([]byte(nil), frame...)
			}),
			hdlc.WithErrorHandler(func(err error, _ []byte) { decErr = err }),
		)
		for _, b := range wire {
			d.Byte(b)
		}
		require.NoError(t, decErr)
		require.Equal(t, payload, got)
	}
}

func TestDecodeFrameCheckFailure(t *testing.T) {
	wire := encodeFrame(t, []byte{1, 2, 3})
	wire[len(wire)-3] ^= 0xFF // corrupt the first FCS byte

	var gotErr error
	var calledFrame bool
	d := hdlc.NewDecoder(
		hdlc.WithFrameHandler(func([]byte) { calledFrame = true }),
		hdlc.WithErrorHandler(func(err error, _ []byte) { gotErr = err }),
	)
	for _, b := range wire {
		d.Byte(b)
	}
	require.False(t, calledFrame)
	require.True(t, errors.Is(gotErr, hdlc.ErrFrameCheck))
}

func TestDecodeTruncation(t *testing.T) {
	var gotErr error
	d := hdlc.NewDecoder(
		hdlc.WithMaxFrameSize(hdlc.DefaultMaxFrameSize),
		hdlc.WithErrorHandler(func(err error, _ []byte) { gotErr = err }),
	)
	d.Byte(0x7E) // open frame
	for i := 0; i < hdlc.DefaultMaxFrameSize+10; i++ {
		d.Byte(0x55) // never a flag or escape byte, so the frame stays open
	}
	require.True(t, errors.Is(gotErr, hdlc.ErrTruncated))
}

func TestDecodeProtocolViolation(t *testing.T) {
	var gotErr error
	d := hdlc.NewDecoder(
		hdlc.WithErrorHandler(func(err error, _ []byte) { gotErr = err }),
	)
	d.Byte(0x7E)
	d.Byte(0x01)
	d.Byte(0x7D) // escape
	d.Byte(0x7E) // flag immediately after escape: invalid
	require.True(t, errors.Is(gotErr, hdlc.ErrProtocol))
}

func TestEncoderBufferExhausted(t *testing.T) {
	payload := []byte{1, 2, 3, 4, 5, 6, 7, 8}

	e := hdlc.NewEncoder()
	e.Reset(make([]byte, 0, 2)) // far too small for the whole payload + FCS
	n, err := e.Write(payload)
	require.ErrorIs(t, err, hdlc.ErrBufferExhausted)
	require.Less(t, n, len(payload))

	var wire []byte
	wire = append(wire, e.Bytes()...)

	e.Resume(make([]byte, 0, 4096))
	_, err = e.Write(payload[n:])
	require.NoError(t, err)
	require.NoError(t, e.Finish())
	wire = append(wire, e.Bytes()...)

	var got []byte
	d := hdlc.NewDecoder(hdlc.WithFrameHandler(func(frame []byte) {
		got = append([]byte(nil), frame...)
	}))
	for _, b := range wire {
		d.Byte(b)
	}
	require.Equal(t, payload, got)
}
