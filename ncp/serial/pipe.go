package serial

import "sync"

// PipeTransport is an in-memory Transport implementation used by tests and
// by the nctest fake-NCP harness. Writes are always accepted immediately
// (TxReady always true) unless Stall is set, letting tests exercise the
// back-pressure paths deterministically instead of racing a real console.
type PipeTransport struct {
	mu     sync.Mutex
	Stall  bool
	Out    []byte
	onByte func(byte)
}

// NewPipeTransport creates a PipeTransport. onByte, if non-nil, is invoked
// synchronously for every byte written (e.g. to feed a peer's decoder).
func NewPipeTransport(onByte func(byte)) *PipeTransport {
	return &PipeTransport{onByte: onByte}
}

func (p *PipeTransport) TxReady() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.Stall
}

func (p *PipeTransport) TxPut(b byte) {
	p.mu.Lock()
	p.Out = append(p.Out, b)
	cb := p.onByte
	p.mu.Unlock()
	if cb != nil {
		cb(b)
	}
}

func (p *PipeTransport) Close() error { return nil }

// SetStall toggles whether TxReady reports false, for exercising spec §5's
// TxPut spin-and-drain path.
func (p *PipeTransport) SetStall(stall bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Stall = stall
}
