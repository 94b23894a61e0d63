// Package hdlc implements the byte-stuffed, frame-checked framing used on
// the NCP serial console. It is a byte-by-byte encoder/decoder: the decoder
// never blocks and never allocates on its hot path, matching the spec's
// requirement that frame decoding run inline on the driver's single task.
//
// The packaging of this package -- Option-function constructors for a
// pair of Encoder/Decoder types -- follows the shape of rfc6242's
// DecoderOption/EncoderOption idiom, though the framing itself (flag byte,
// byte-stuffed escapes, trailing FCS16) is a different wire format from
// RFC6242's delimiter/chunk framing and has no shared implementation.
package hdlc

const (
	flagByte   = 0x7E
	escapeByte = 0x7D
	escapeXOR  = 0x20
)

// DefaultMaxFrameSize is the maximum decoded frame length used when none is
// configured. The spec requires at least 1500 bytes.
const DefaultMaxFrameSize = 1500

// needsEscape reports whether b must be byte-stuffed on the wire.
func needsEscape(b byte) bool {
	switch b {
	case flagByte, escapeByte, 0x11, 0x13: // flag, escape, XON, XOFF
		return true
	default:
		return false
	}
}
