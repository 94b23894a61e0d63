package ncp

import "time"

// Config configures Driver behaviour. Fields left at their zero value when
// passed to New are filled in from DefaultConfig (see config_merge.go),
// mirroring the teacher's client.Config/DefaultConfig/mergo.Merge idiom.
type Config struct {
	// RequestTimeout bounds how long a synchronous request waits for a
	// matching response before surfacing no-frame-received (spec §4.5).
	RequestTimeout time.Duration

	// AllocTimeout bounds how long the outbound store blocks a caller
	// when no allocation run is currently available (spec §4.6).
	AllocTimeout time.Duration

	// ResetAttempts bounds how many ResetNcpWithVerify cycles Initialize
	// will try before giving up (spec §4.9).
	ResetAttempts int

	// InitializeWithoutReset allows the re-establish fast path (spec §6,
	// "initialize-without-reset").
	InitializeWithoutReset bool

	// MessageQueueSize bounds the depth of the inbound datagram channel
	// (Driver.Inbound); a slow reader causes Driver.deliverInbound to drop
	// rather than block. Outbound admission is governed entirely by the
	// store's byte budget, TxRingBufferSize -- spec §6's message-queue-size
	// option has no outbound-count analogue in this driver, since the
	// store's unit of admission is bytes, not messages.
	MessageQueueSize int

	// TxRingBufferSize is the outbound store's byte capacity.
	TxRingBufferSize int

	// RxFIFOSize is the receive FIFO's byte capacity.
	RxFIFOSize int
	// RxNearFullThreshold is the receive FIFO's backpressure watermark.
	RxNearFullThreshold int

	// ResetHoldTime and ResetSettleDelay configure gpio.PulseReset.
	ResetHoldTime    time.Duration
	ResetSettleDelay time.Duration

	// LegacyAlarmSupport is the legacy-alarm option. The driver does not
	// read it: messages flagged store.FlagLegacy are always sent on the
	// vendor legacy stream, and legacy-ULA and legacy-wake updates are
	// always dispatched.
	LegacyAlarmSupport bool
	// SpinelVendorSupport is the vendor-dialect option. The driver does not
	// read it: vendor commands and properties are always accepted.
	SpinelVendorSupport bool
}

// DefaultConfig supplies every field Config leaves unset.
var DefaultConfig = &Config{
	RequestTimeout:         3 * time.Second,
	AllocTimeout:           2 * time.Second,
	ResetAttempts:          3,
	InitializeWithoutReset: false,
	MessageQueueSize:       16,
	TxRingBufferSize:       0, // 0 resolves to store.DefaultCapacity (5x MTU)
	RxFIFOSize:             128,
	RxNearFullThreshold:    64,
	ResetHoldTime:          10 * time.Millisecond,
	ResetSettleDelay:       400 * time.Millisecond,
	LegacyAlarmSupport:     false,
	SpinelVendorSupport:    false,
}
