// Package critsec implements the kernel's single sanctioned IRQ-mask
// gate for short critical sections: disable interrupts on entry,
// restore the prior interrupt-enable state on exit.
package critsec

import "biscuit/cpu"

// Guard holds the interrupt-enable state saved by Enter.
type Guard struct {
	wasEnabled bool
}

// enabled stands in for RFLAGS.IF, which would normally be read from
// RFLAGS itself; this kernel tracks
// interrupt-enable state with a package-level flag instead of probing
// RFLAGS directly, since EnableInterrupts/DisableInterrupts are the
// only paths that change it.
var enabled = true

// Enter disables interrupts and returns a Guard that restores the
// previous state when Exit is called.
func Enter() Guard {
	g := Guard{wasEnabled: enabled}
	cpu.DisableInterrupts()
	enabled = false
	return g
}

// Exit restores the interrupt-enable state saved by Enter.
func (g Guard) Exit() {
	if g.wasEnabled {
		enabled = true
		cpu.EnableInterrupts()
	}
}

// Enabled reports whether interrupts are currently enabled according
// to the last Enter/Exit or explicit SetEnabled call.
func Enabled() bool {
	return enabled
}

// SetEnabled records the interrupt-enable state after a direct call
// to cpu.EnableInterrupts/DisableInterrupts outside a Guard (used at
// boot before any critical section has run).
func SetEnabled(v bool) {
	enabled = v
}
