// Package nctest provides an in-process fake NCP for exercising a Driver
// without a real serial console, built the way the teacher's
// testserver.TestNCServer builds a fake NETCONF peer: a builder-pattern
// construction (WithPropertyHandler mirrors WithRequestHandler) wrapping
// a pair of in-memory transports wired back to back.
package nctest

import (
	"sync"

	"github.com/ezhangle/thci/ncp/hdlc"
	"github.com/ezhangle/thci/ncp/serial"
	"github.com/ezhangle/thci/ncp/spinel"
)

// Request is a decoded Spinel request the fake NCP received.
type Request struct {
	Header spinel.Header
	Cmd    uint32
	Key    uint32
	Payload []byte
}

// Response is what a RequestHandler wants sent back to the driver, framed
// with the same transaction id as the Request it answers. Drop suppresses
// any reply at all, for simulating an NCP that never answers (e.g. to
// exercise transaction-timeout/recovery behaviour).
type Response struct {
	Cmd     uint32
	Key     uint32
	Payload []byte
	Drop    bool
}

// RequestHandler inspects req and, if it wants to answer it, returns the
// Response and true. The first handler in registration order that
// returns true wins; none matching falls back to an OK last-status.
type RequestHandler func(req Request) (Response, bool)

// FakeNCP is a minimal NCP peer: it decodes HDLC/Spinel frames written to
// its Transport, dispatches them to registered handlers, and encodes
// replies back out through the same link.
type FakeNCP struct {
	mu       sync.Mutex
	dec      *hdlc.Decoder
	enc      *hdlc.Encoder
	out      *serial.PipeTransport
	handlers []RequestHandler
}

// New creates a FakeNCP and the serial.Transport a Driver should be
// constructed with. driverRxISR is the Driver's RxISR method (or any
// func(byte) that feeds its receive FIFO); the fake NCP calls it for
// every byte of its own replies.
func New(driverRxISR func(byte)) (*FakeNCP, serial.Transport) {
	f := &FakeNCP{
		enc: hdlc.NewEncoder(),
		out: serial.NewPipeTransport(driverRxISR),
	}
	f.dec = hdlc.NewDecoder(hdlc.WithFrameHandler(f.onFrame))
	return f, serial.NewPipeTransport(f.dec.Byte)
}

// WithPropertyHandler registers a handler, returning the FakeNCP for
// chaining, the way TestNCServer.WithRequestHandler does.
func (f *FakeNCP) WithPropertyHandler(h RequestHandler) *FakeNCP {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers = append(f.handlers, h)
	return f
}

// GetSetHandler builds a RequestHandler that answers property-value-get
// and property-value-set for the given key by always returning payload
// from a property-value-is response, regardless of which value was set
// (i.e. it models a property whose stored value the test does not care
// about, only that requests against it succeed).
func GetSetHandler(key uint32, payload []byte) RequestHandler {
	return func(req Request) (Response, bool) {
		if req.Key != key {
			return Response{}, false
		}
		switch req.Cmd {
		case spinel.CmdPropValueGet:
			return Response{Cmd: spinel.CmdPropValueIs, Key: key, Payload: payload}, true
		case spinel.CmdPropValueSet:
			return Response{Cmd: spinel.CmdPropValueIs, Key: key, Payload: payload}, true
		default:
			return Response{}, false
		}
	}
}

// DropHandler builds a RequestHandler that silently swallows every
// request for the given key, never sending a reply.
func DropHandler(key uint32) RequestHandler {
	return func(req Request) (Response, bool) {
		if req.Key != key {
			return Response{}, false
		}
		return Response{Drop: true}, true
	}
}

func (f *FakeNCP) onFrame(frame []byte) {
	dec := spinel.NewDecoder(frame)
	header, err := dec.Header()
	if err != nil {
		return
	}
	cmd, err := dec.PackedUint()
	if err != nil {
		return
	}
	key, err := dec.PackedUint()
	if err != nil {
		return
	}
	payload := append([]byte(nil), dec.Remaining()...)

	req := Request{Header: header, Cmd: cmd, Key: key, Payload: payload}

	f.mu.Lock()
	handlers := append([]RequestHandler(nil), f.handlers...)
	f.mu.Unlock()

	for _, h := range handlers {
		if resp, ok := h(req); ok {
			if !resp.Drop {
				f.reply(header.TID(), resp)
			}
			return
		}
	}

	f.reply(header.TID(), Response{Cmd: spinel.CmdPropValueIs, Key: spinel.PropLastStatus,
		Payload: encodePackedUint(spinel.StatusOK)})
}

// SendUnsolicited injects an unprompted frame (e.g. a net-role change or
// a reset-range last-status) as if the NCP originated it, using the
// don't-care transaction id.
func (f *FakeNCP) SendUnsolicited(cmd, key uint32, payload []byte) {
	f.reply(spinel.TIDDontCare, Response{Cmd: cmd, Key: key, Payload: payload})
}

func (f *FakeNCP) reply(tid byte, resp Response) {
	f.mu.Lock()
	defer f.mu.Unlock()

	penc := spinel.NewEncoder(nil)
	penc.Header(spinel.NewHeader(0, tid)).PackedUint(resp.Cmd).PackedUint(resp.Key)
	body := append(penc.Bytes(), resp.Payload...)

	buf := make([]byte, 0, 2*len(body)+8)
	f.enc.Reset(buf[:cap(buf)])
	if _, err := f.enc.Write(body); err != nil {
		return
	}
	if err := f.enc.Finish(); err != nil {
		return
	}
	for _, b := range f.enc.Bytes() {
		f.out.TxPut(b)
	}
}

func encodePackedUint(v uint32) []byte {
	return spinel.NewEncoder(nil).PackedUint(v).Bytes()
}
