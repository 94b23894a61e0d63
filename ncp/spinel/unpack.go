package spinel

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// ErrParse is wrapped by every unpack failure; callers that need to
// distinguish "ran out of bytes" from other parse problems should compare
// against ErrShortBuffer specifically.
var (
	ErrParse       = errors.New("spinel: parse error")
	ErrShortBuffer = errors.Wrap(ErrParse, "spinel: buffer too short")
)

// Decoder unpacks a Spinel header, command, property key and a sequence
// of typed arguments from a borrowed byte slice. The Decoder does not copy
// its input; string/data arguments it returns alias the input slice and
// are only valid as long as the input is (see package ncp's frame
// ownership rule).
type Decoder struct {
	buf []byte
	pos int
}

// NewDecoder returns a Decoder reading from buf.
func NewDecoder(buf []byte) *Decoder {
	return &Decoder{buf: buf}
}

// Remaining returns the unconsumed tail of the input.
func (d *Decoder) Remaining() []byte { return d.buf[d.pos:] }

// Len reports how many unconsumed bytes remain.
func (d *Decoder) Len() int { return len(d.buf) - d.pos }

func (d *Decoder) need(n int) error {
	if d.Len() < n {
		return errors.Wrapf(ErrShortBuffer, "need %d bytes, have %d", n, d.Len())
	}
	return nil
}

// Header unpacks the one-byte Spinel header.
func (d *Decoder) Header() (Header, error) {
	if err := d.need(1); err != nil {
		return 0, err
	}
	h := Header(d.buf[d.pos])
	d.pos++
	if !h.Valid() {
		return 0, errors.Wrap(ErrParse, "invalid header flag bit")
	}
	return h, nil
}

// PackedUint unpacks a Spinel packed unsigned integer.
func (d *Decoder) PackedUint() (uint32, error) {
	var v uint32
	var shift uint
	for {
		if err := d.need(1); err != nil {
			return 0, errors.Wrap(err, "packed-uint")
		}
		if shift >= 35 {
			return 0, errors.Wrap(ErrParse, "packed-uint overflow")
		}
		b := d.buf[d.pos]
		d.pos++
		v |= uint32(b&0x7F) << shift
		if b&0x80 == 0 {
			return v, nil
		}
		shift += 7
	}
}

// Uint8 unpacks an unsigned 8-bit argument.
func (d *Decoder) Uint8() (uint8, error) {
	if err := d.need(1); err != nil {
		return 0, err
	}
	v := d.buf[d.pos]
	d.pos++
	return v, nil
}

// Int8 unpacks a signed 8-bit argument.
func (d *Decoder) Int8() (int8, error) {
	v, err := d.Uint8()
	return int8(v), err
}

// Bool unpacks a boolean argument.
func (d *Decoder) Bool() (bool, error) {
	v, err := d.Uint8()
	return v != 0, err
}

// Uint16 unpacks a little-endian unsigned 16-bit argument.
func (d *Decoder) Uint16() (uint16, error) {
	if err := d.need(2); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint16(d.buf[d.pos:])
	d.pos += 2
	return v, nil
}

// Uint32 unpacks a little-endian unsigned 32-bit argument.
func (d *Decoder) Uint32() (uint32, error) {
	if err := d.need(4); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint32(d.buf[d.pos:])
	d.pos += 4
	return v, nil
}

// UTF8 unpacks a NUL-terminated UTF-8 string, returning a string copy (a
// string necessarily copies, since Go strings are immutable and the
// source buffer is borrowed and reused by the caller).
func (d *Decoder) UTF8() (string, error) {
	for i := d.pos; i < len(d.buf); i++ {
		if d.buf[i] == 0 {
			s := string(d.buf[d.pos:i])
			d.pos = i + 1
			return s, nil
		}
	}
	return "", errors.Wrap(ErrParse, "unterminated string")
}

// EUI64 unpacks a fixed 8-byte EUI-64 argument.
func (d *Decoder) EUI64() (v [8]byte, err error) {
	if err = d.need(8); err != nil {
		return
	}
	copy(v[:], d.buf[d.pos:])
	d.pos += 8
	return
}

// IPv6Addr unpacks a fixed 16-byte IPv6 address argument.
func (d *Decoder) IPv6Addr() (v [16]byte, err error) {
	if err = d.need(16); err != nil {
		return
	}
	copy(v[:], d.buf[d.pos:])
	d.pos += 16
	return
}

// Data unpacks a length-prefixed opaque argument. The returned slice
// aliases the Decoder's input.
func (d *Decoder) Data() ([]byte, error) {
	n, err := d.Uint16()
	if err != nil {
		return nil, errors.Wrap(err, "data length")
	}
	if err := d.need(int(n)); err != nil {
		return nil, errors.Wrap(err, "data body")
	}
	v := d.buf[d.pos : d.pos+int(n)]
	d.pos += int(n)
	return v, nil
}

// Struct unpacks an anonymous length-prefixed grouping and returns a
// Decoder scoped to its contents.
func (d *Decoder) Struct() (*Decoder, error) {
	body, err := d.Data()
	if err != nil {
		return nil, errors.Wrap(err, "struct")
	}
	return NewDecoder(body), nil
}
