package ncp

import "sync"

// matchResult is delivered down a transaction's reply channel once the
// transaction matcher (transaction.go) has classified an inbound frame as
// a success or failure match for the pending request (spec §4.5).
type matchResult struct {
	success bool
	cmd     uint32
	key     uint32
	payload []byte
}

// callbackPool recycles the one-slot buffered channels used to wake a blocked
// requester, the way sesImpl.pool recycles *common.RPCReply channels in
// the teacher. Because this driver only ever has one transaction pending
// at a time (spec §4.5/§5), the pool never holds more than a handful of
// channels; it exists to avoid allocating one per request under load.
type callbackPool struct {
	mu   sync.Mutex
	free []chan matchResult
}

func newCallbackPool() *callbackPool {
	return &callbackPool{}
}

func (p *callbackPool) alloc() chan matchResult {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := len(p.free)
	if n == 0 {
		return make(chan matchResult, 1)
	}
	var ch chan matchResult
	p.free, ch = p.free[:n-1], p.free[n-1]
	return ch
}

func (p *callbackPool) release(ch chan matchResult) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.free = append(p.free, ch)
}
