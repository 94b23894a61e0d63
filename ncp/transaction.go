package ncp

import (
	"sync"

	"github.com/ezhangle/thci/ncp/spinel"
)

// transactionMatcher implements the single-pending-request discipline of
// spec §4.5: at most one transaction record is active at a time, guarded
// by tids drawn from {2..14} round robin. TID 0 is reserved and 15 is
// reserved; TID 1 is the don't-care identifier used for fire-and-forget
// requests whose response is matched on (command, key) alone.
type transactionMatcher struct {
	mu      sync.Mutex
	nextTID byte
	active  *pendingTransaction
	pool    *callbackPool
}

type pendingTransaction struct {
	tid     byte
	cmd     uint32
	key     uint32
	resultc chan matchResult
}

func newTransactionMatcher() *transactionMatcher {
	return &transactionMatcher{nextTID: spinel.TIDMin, pool: newCallbackPool()}
}

// begin starts a new transaction for the given expected (command, key)
// pair, drawing a fresh tid unless dontCare requests the reserved
// don't-care identifier. It returns a KindInvalidState *Error if a transaction is
// already active, enforcing "transaction uniqueness" (spec §7 edge case 2).
func (m *transactionMatcher) begin(cmd, key uint32, dontCare bool) (*pendingTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active != nil {
		return nil, wrapf(KindInvalidState, nil, "transaction already pending (tid %d)", m.active.tid)
	}

	tid := spinel.TIDDontCare
	if !dontCare {
		tid = m.nextTID
		m.nextTID++
		if m.nextTID > spinel.TIDMax {
			m.nextTID = spinel.TIDMin
		}
	}

	pt := &pendingTransaction{tid: tid, cmd: cmd, key: key, resultc: m.pool.alloc()}
	m.active = pt
	return pt, nil
}

// end clears the active transaction and returns its reply channel to the
// pool. Safe to call once the caller has stopped reading from resultc.
func (m *transactionMatcher) end(pt *pendingTransaction) {
	m.mu.Lock()
	if m.active == pt {
		m.active = nil
	}
	m.mu.Unlock()
	m.pool.release(pt.resultc)
}

// deliver is called from the decode path (Driver.onFrame) for every frame
// the framer hands up. It reports whether the frame was claimed by the
// pending transaction; if so the caller must not also route the frame to
// the control-plane dispatch (spec §7 edge case 3, framer isolation).
//
// Matching follows spec §4.5: the frame matches if the pending tid is not
// don't-care and the frame's tid equals it, or the pending tid is
// don't-care and the frame's (command, key) equals the expected pair. A
// tid match with a differing (command, key) is still claimed, but
// delivered as a failure match.
func (m *transactionMatcher) deliver(header spinel.Header, cmd, key uint32, payload []byte) bool {
	m.mu.Lock()
	pt := m.active
	if pt == nil {
		m.mu.Unlock()
		return false
	}

	tid := header.TID()
	tidMatch := pt.tid != spinel.TIDDontCare && tid == pt.tid
	dontCareMatch := pt.tid == spinel.TIDDontCare && cmd == pt.cmd && key == pt.key
	if !tidMatch && !dontCareMatch {
		m.mu.Unlock()
		return false
	}

	success := cmd == pt.cmd && key == pt.key
	m.active = nil
	m.mu.Unlock()

	pt.resultc <- matchResult{success: success, cmd: cmd, key: key, payload: payload}
	return true
}
