package hdlc

// Encoder frames an outbound byte stream into a caller-supplied fixed
// buffer. It never allocates: when the buffer fills, Write returns
// ErrBufferExhausted (having written as much as fit) so the caller can
// drain the buffer (e.g. hand it to the serial transport) and call Resume
// with the same or a fresh buffer to continue.
type Encoder struct {
	buf     []byte
	n       int
	fcs     uint16
	started bool
}

// NewEncoder creates an Encoder, configured with any options provided.
func NewEncoder(opts ...EncoderOption) *Encoder {
	e := &Encoder{fcs: fcsInit}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// EncoderOption configures an Encoder at construction time.
type EncoderOption func(*Encoder)

// Reset discards any in-progress frame and directs subsequent output at
// buf[:0].
func (e *Encoder) Reset(buf []byte) {
	e.buf = buf[:0]
	e.n = 0
	e.fcs = fcsInit
	e.started = false
}

// Resume continues encoding into a new (or drained) output buffer after a
// previous Write or Finish returned ErrBufferExhausted. It does not reset
// the running frame check.
func (e *Encoder) Resume(buf []byte) {
	e.buf = buf[:0]
}

// Bytes returns the bytes encoded into the current output buffer so far.
func (e *Encoder) Bytes() []byte { return e.buf }

// Write encodes p's bytes into the current output buffer, byte-stuffing as
// required. It returns the number of input bytes actually consumed and
// ErrBufferExhausted if the buffer filled before all of p was consumed.
func (e *Encoder) Write(p []byte) (int, error) {
	if !e.started {
		if !e.putRaw(flagByte) {
			return 0, ErrBufferExhausted
		}
		e.started = true
	}
	for i, b := range p {
		if needsEscape(b) {
			if cap(e.buf)-len(e.buf) < 2 {
				return i, ErrBufferExhausted
			}
			e.putRaw(escapeByte)
			e.putRaw(b ^ escapeXOR)
		} else if !e.putRaw(b) {
			return i, ErrBufferExhausted
		}
		e.fcs = fcsUpdate(e.fcs, b)
	}
	return len(p), nil
}

// Finish appends the complement of the running frame check and the
// closing flag byte, completing the frame. That tail (up to five bytes
// with escapes) is written whole or not at all: if the buffer lacks room
// for all of it, nothing is written and ErrBufferExhausted is returned.
// After Finish returns nil the Encoder is ready for a new frame via Reset.
func (e *Encoder) Finish() error {
	if !e.started {
		if !e.putRaw(flagByte) {
			return ErrBufferExhausted
		}
		e.started = true
	}
	check := ^e.fcs
	var tail [5]byte
	n := 0
	for _, b := range [2]byte{byte(check), byte(check >> 8)} {
		if needsEscape(b) {
			tail[n], n = escapeByte, n+1
			b ^= escapeXOR
		}
		tail[n], n = b, n+1
	}
	tail[n], n = flagByte, n+1
	if cap(e.buf)-len(e.buf) < n {
		return ErrBufferExhausted
	}
	e.buf = append(e.buf, tail[:n]...)
	e.fcs = fcsInit
	e.started = false
	return nil
}

func (e *Encoder) putRaw(b byte) bool {
	if len(e.buf) == cap(e.buf) {
		return false
	}
	e.buf = append(e.buf, b)
	return true
}
