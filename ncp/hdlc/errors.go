package hdlc

import "github.com/pkg/errors"

// Sentinel decode errors, surfaced to a Decoder's error handler. Wrap these
// with errors.Wrap when more context is available; callers should compare
// with errors.Is.
var (
	// ErrFrameCheck indicates the trailing FCS16 did not validate.
	ErrFrameCheck = errors.New("hdlc: frame check failed")
	// ErrTruncated indicates more bytes arrived than MaxFrameSize allows
	// before a closing flag was seen.
	ErrTruncated = errors.New("hdlc: frame exceeds maximum size")
	// ErrProtocol indicates a structurally invalid byte sequence, e.g. an
	// escape byte immediately followed by a flag byte.
	ErrProtocol = errors.New("hdlc: protocol violation")
	// ErrBufferExhausted is returned by Encoder.Write when the caller's
	// output buffer fills before the input is fully encoded; the caller
	// should drain the buffer and call Resume.
	ErrBufferExhausted = errors.New("hdlc: output buffer exhausted")
)
