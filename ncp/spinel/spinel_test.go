package spinel_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ezhangle/thci/ncp/spinel"
)

func TestHeaderRoundTrip(t *testing.T) {
	h := spinel.NewHeader(0, 7)
	require.True(t, h.Valid())
	require.Equal(t, byte(7), h.TID())
	require.Equal(t, byte(0), h.IID())
}

func TestPackedUintRoundTrip(t *testing.T) {
	values := []uint32{0, 1, 0x7F, 0x80, 0x3FFF, 0x4000, 0xFFFFFFFF}
	for _, v := range values {
		e := spinel.NewEncoder(nil)
		e.PackedUint(v)

		d := spinel.NewDecoder(e.Bytes())
		got, err := d.PackedUint()
		require.NoError(t, err)
		require.Equal(t, v, got, "value %#x", v)
		require.Equal(t, 0, d.Len())
	}
}

func TestArgumentRoundTrip(t *testing.T) {
	e := spinel.NewEncoder(nil)
	e.Header(spinel.NewHeader(0, spinel.TIDMin)).
		PackedUint(spinel.CmdPropValueIs).
		PackedUint(spinel.PropNCPVersion).
		UTF8("OPENTHREAD/1.0").
		Uint32(0xDEADBEEF).
		Bool(true).
		Data([]byte{1, 2, 3})

	d := spinel.NewDecoder(e.Bytes())

	h, err := d.Header()
	require.NoError(t, err)
	require.Equal(t, spinel.TIDMin, h.TID())

	cmd, err := d.PackedUint()
	require.NoError(t, err)
	require.Equal(t, spinel.CmdPropValueIs, cmd)

	key, err := d.PackedUint()
	require.NoError(t, err)
	require.Equal(t, spinel.PropNCPVersion, key)

	s, err := d.UTF8()
	require.NoError(t, err)
	require.Equal(t, "OPENTHREAD/1.0", s)

	u32, err := d.Uint32()
	require.NoError(t, err)
	require.Equal(t, uint32(0xDEADBEEF), u32)

	b, err := d.Bool()
	require.NoError(t, err)
	require.True(t, b)

	data, err := d.Data()
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3}, data)

	require.Equal(t, 0, d.Len())
}

func TestUnpackShortBufferIsParseError(t *testing.T) {
	d := spinel.NewDecoder([]byte{0x01})
	_, err := d.Uint32()
	require.ErrorIs(t, err, spinel.ErrShortBuffer)
	require.ErrorIs(t, err, spinel.ErrParse)
}

func TestUnpackInvalidHeaderFlagBit(t *testing.T) {
	d := spinel.NewDecoder([]byte{0x00})
	_, err := d.Header()
	require.ErrorIs(t, err, spinel.ErrParse)
}

func TestStructRoundTrip(t *testing.T) {
	e := spinel.NewEncoder(nil)
	e.Struct(func(inner *spinel.Encoder) {
		inner.Uint8(1).Uint16(2)
	})

	d := spinel.NewDecoder(e.Bytes())
	inner, err := d.Struct()
	require.NoError(t, err)

	v8, err := inner.Uint8()
	require.NoError(t, err)
	require.Equal(t, uint8(1), v8)

	v16, err := inner.Uint16()
	require.NoError(t, err)
	require.Equal(t, uint16(2), v16)
}
