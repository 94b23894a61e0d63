package store

// MessageFlags records per-message routing flags (spec §3).
type MessageFlags uint8

const (
	// FlagSecure requests link security be applied to the datagram.
	FlagSecure MessageFlags = 1 << iota
	// FlagLegacy routes the datagram via the vendor legacy channel
	// instead of the ordinary IPv6 datagram stream.
	FlagLegacy
)

// headerSize is the bookkeeping overhead counted against every
// allocation's 4-byte-aligned total size (spec §3: "header + payload").
const headerSize = 8

// align4 rounds n up to the next multiple of 4.
func align4(n int) int {
	return (n + 3) &^ 3
}

// Message is a single outbound-store allocation: a header-plus-payload
// run, owned by the Store until released via Free.
type Message struct {
	buf      []byte // the message's payload window into the store's backing array
	length   int    // bytes written via Append so far
	capacity int    // usable payload capacity
	offset   int    // read cursor for Read
	flags    MessageFlags

	storeOffset int // this message's start offset within the store's backing array, header included
	totalSize   int // 4-byte-aligned header+payload size
}

// Len returns the number of bytes written to the message so far.
func (m *Message) Len() int { return m.length }

// Cap returns the message's usable payload capacity.
func (m *Message) Cap() int { return m.capacity }

// Flags returns the message's routing flags.
func (m *Message) Flags() MessageFlags { return m.flags }

// Secure reports whether FlagSecure is set.
func (m *Message) Secure() bool { return m.flags&FlagSecure != 0 }

// Legacy reports whether FlagLegacy is set.
func (m *Message) Legacy() bool { return m.flags&FlagLegacy != 0 }

// Bytes returns the written portion of the message's payload.
func (m *Message) Bytes() []byte { return m.buf[:m.length] }
