package hdlc

// FrameHandler receives a complete, check-valid frame. frame is a slice of
// the Decoder's internal scratch buffer: it is only valid for the duration
// of the call and must be copied if the caller needs to retain it.
type FrameHandler func(frame []byte)

// ErrorHandler receives a decode error together with whatever partial
// frame contents had been accumulated.
type ErrorHandler func(err error, partial []byte)

// DecoderOption configures a Decoder at construction time.
type DecoderOption func(*Decoder)

// WithMaxFrameSize bounds the decoded frame length. Values below
// DefaultMaxFrameSize are rejected in favour of the default, since the
// wire protocol this decoder serves never frames anything smaller.
func WithMaxFrameSize(n int) DecoderOption {
	return func(d *Decoder) {
		if n < DefaultMaxFrameSize {
			n = DefaultMaxFrameSize
		}
		d.maxSize = n
	}
}

// WithFrameHandler sets the Decoder's frame handler.
func WithFrameHandler(h FrameHandler) DecoderOption {
	return func(d *Decoder) { d.onFrame = h }
}

// WithErrorHandler sets the Decoder's error handler.
func WithErrorHandler(h ErrorHandler) DecoderOption {
	return func(d *Decoder) { d.onError = h }
}

// Decoder is an inline HDLC-style framing decoder. It consumes bytes one
// at a time (Byte), never blocks, and never allocates after construction:
// the scratch buffer accumulating the in-progress frame is sized once, at
// NewDecoder time, to MaxFrameSize+2 (payload plus trailing FCS16) and
// reused frame after frame.
//
// Decoder is not safe for concurrent use; the spec requires it to run
// inline on a single driver task.
type Decoder struct {
	maxSize int
	buf     []byte

	fcs      uint16
	inFrame  bool
	escaping bool

	onFrame FrameHandler
	onError ErrorHandler
}

// NewDecoder creates a Decoder configured with the supplied options.
func NewDecoder(opts ...DecoderOption) *Decoder {
	d := &Decoder{maxSize: DefaultMaxFrameSize, fcs: fcsInit}
	for _, opt := range opts {
		opt(d)
	}
	d.buf = make([]byte, 0, d.maxSize+2)
	return d
}

// InFrame reports whether the decoder currently holds partial frame
// content (a start flag has been seen but not yet the matching close),
// used by callers that need to know the link is not safely quiescent.
func (d *Decoder) InFrame() bool { return d.inFrame }

// SetHandlers replaces the Decoder's frame and error handlers.
func (d *Decoder) SetHandlers(onFrame FrameHandler, onError ErrorHandler) {
	d.onFrame = onFrame
	d.onError = onError
}

// Byte feeds a single received byte through the decoder, synchronously
// invoking the frame or error handler if this byte completes or aborts a
// frame.
func (d *Decoder) Byte(b byte) {
	if b == flagByte {
		d.handleFlag()
		return
	}

	if d.escaping {
		d.escaping = false
		d.accumulate(b ^ escapeXOR)
		return
	}

	if b == escapeByte {
		d.escaping = true
		d.inFrame = true
		return
	}

	d.accumulate(b)
}

func (d *Decoder) handleFlag() {
	switch {
	case d.escaping:
		// An escape byte must never be immediately followed by a flag
		// byte: the sender either botched stuffing or the link dropped a
		// byte.
		d.fail(ErrProtocol)
	case !d.inFrame:
		// Idle, or a redundant flag between frames; nothing to deliver.
	case len(d.buf) < 2:
		d.fail(ErrTruncated)
	default:
		payload := d.buf[:len(d.buf)-2]
		if d.fcs == fcsGood {
			if d.onFrame != nil {
				d.onFrame(payload)
			}
		} else {
			d.fail(ErrFrameCheck)
		}
	}
	d.reset()
}

func (d *Decoder) accumulate(b byte) {
	d.inFrame = true
	if len(d.buf) == cap(d.buf) {
		d.fail(ErrTruncated)
		d.reset()
		return
	}
	d.buf = append(d.buf, b)
	d.fcs = fcsUpdate(d.fcs, b)
}

func (d *Decoder) fail(err error) {
	if d.onError != nil {
		d.onError(err, d.buf)
	}
}

func (d *Decoder) reset() {
	d.buf = d.buf[:0]
	d.fcs = fcsInit
	d.inFrame = false
	d.escaping = false
}
