package spinel

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// Encoder packs a Spinel header, command, property key and a sequence of
// typed arguments into a caller-owned byte slice.
type Encoder struct {
	buf []byte
}

// NewEncoder returns an Encoder appending to buf[:0].
func NewEncoder(buf []byte) *Encoder {
	return &Encoder{buf: buf[:0]}
}

// Bytes returns the packed bytes written so far.
func (e *Encoder) Bytes() []byte { return e.buf }

// Header appends the one-byte Spinel header.
func (e *Encoder) Header(h Header) *Encoder {
	e.buf = append(e.buf, byte(h))
	return e
}

// PackedUint appends v as a Spinel packed (LEB128-style, 7 bits per byte)
// unsigned integer. It is used for both the command and the property key.
func (e *Encoder) PackedUint(v uint32) *Encoder {
	for v >= 0x80 {
		e.buf = append(e.buf, byte(v)|0x80)
		v >>= 7
	}
	e.buf = append(e.buf, byte(v))
	return e
}

// Uint8 appends an unsigned 8-bit argument.
func (e *Encoder) Uint8(v uint8) *Encoder {
	e.buf = append(e.buf, v)
	return e
}

// Int8 appends a signed 8-bit argument.
func (e *Encoder) Int8(v int8) *Encoder {
	return e.Uint8(uint8(v))
}

// Bool appends a boolean argument, encoded as a single byte.
func (e *Encoder) Bool(v bool) *Encoder {
	if v {
		return e.Uint8(1)
	}
	return e.Uint8(0)
}

// Uint16 appends a little-endian unsigned 16-bit argument.
func (e *Encoder) Uint16(v uint16) *Encoder {
	var tmp [2]byte
	binary.LittleEndian.PutUint16(tmp[:], v)
	e.buf = append(e.buf, tmp[:]...)
	return e
}

// Uint32 appends a little-endian unsigned 32-bit argument.
func (e *Encoder) Uint32(v uint32) *Encoder {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	e.buf = append(e.buf, tmp[:]...)
	return e
}

// UTF8 appends a NUL-terminated UTF-8 string argument.
func (e *Encoder) UTF8(s string) *Encoder {
	e.buf = append(e.buf, s...)
	e.buf = append(e.buf, 0)
	return e
}

// EUI64 appends a fixed 8-byte EUI-64 argument.
func (e *Encoder) EUI64(v [8]byte) *Encoder {
	e.buf = append(e.buf, v[:]...)
	return e
}

// IPv6Addr appends a fixed 16-byte IPv6 address argument.
func (e *Encoder) IPv6Addr(v [16]byte) *Encoder {
	e.buf = append(e.buf, v[:]...)
	return e
}

// Data appends a length-prefixed (uint16 little-endian length) opaque
// argument.
func (e *Encoder) Data(p []byte) *Encoder {
	if len(p) > 0xFFFF {
		// Defensive: the wire format cannot represent this; callers are
		// expected to have validated length against the MTU before this
		// point, so this should be unreachable in practice.
		p = p[:0xFFFF]
	}
	e.Uint16(uint16(len(p)))
	e.buf = append(e.buf, p...)
	return e
}

// Struct appends an anonymous length-prefixed grouping, built by calling
// build with a fresh Encoder and appending its result length-prefixed.
func (e *Encoder) Struct(build func(*Encoder)) *Encoder {
	inner := NewEncoder(nil)
	build(inner)
	return e.Data(inner.Bytes())
}

// ErrDataTooLarge names an argument too long for the wire format's 16-bit
// length prefix. No function in this package returns it: Encoder.Data
// truncates such an argument to 65535 bytes instead.
var ErrDataTooLarge = errors.New("spinel: data argument exceeds 65535 bytes")
