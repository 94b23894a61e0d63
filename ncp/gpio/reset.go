// Package gpio defines the narrow reset/boot-mode-select surface the
// session supervisor uses to hard-reset the NCP, and a fake implementation
// for tests.
package gpio

import "time"

// Default timing used by PulseReset when passed a non-positive hold or
// settle duration.
const (
	DefaultHoldTime       = 10 * time.Millisecond
	DefaultSettleDelay    = 400 * time.Millisecond
)

// Hook is the reset/boot-mode-select surface a session supervisor drives.
// It is intentionally narrow (spec §4.10): it knows nothing about the
// serial link or the Spinel protocol, only how to assert/deassert reset
// and select which firmware the NCP will boot into.
type Hook interface {
	// SetReset asserts (true) or deasserts (false) the NCP's reset line.
	SetReset(asserted bool)
	// SetBootloaderMode selects whether the next boot enters the
	// bootloader (true) or the application (false).
	SetBootloaderMode(enabled bool)
}

// PulseReset asserts reset, holds it for hold, deasserts it having first
// selected the requested boot mode, and then waits settle before
// returning, giving the NCP time to come up before the caller touches the
// serial link again.
func PulseReset(h Hook, inBootloader bool, hold, settle time.Duration) {
	if hold <= 0 {
		hold = DefaultHoldTime
	}
	if settle <= 0 {
		settle = DefaultSettleDelay
	}
	h.SetReset(true)
	time.Sleep(hold)
	h.SetBootloaderMode(inBootloader)
	h.SetReset(false)
	time.Sleep(settle)
}

// Fake is an in-memory Hook recording calls, for use in tests.
type Fake struct {
	Asserted     bool
	Bootloader   bool
	ResetHistory []bool
}

func (f *Fake) SetReset(asserted bool) {
	f.Asserted = asserted
	f.ResetHistory = append(f.ResetHistory, asserted)
}

func (f *Fake) SetBootloaderMode(enabled bool) {
	f.Bootloader = enabled
}
