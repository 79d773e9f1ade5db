// Package tick holds the kernel's monotonic tick counter, incremented
// once per LAPIC timer interrupt.
package tick

import "sync/atomic"

// Frequency is the configured periodic timer rate, in Hz.
const Frequency = 1000

var ticks atomic.Uint64

// Get returns the number of ticks since boot. Relaxed ordering: this
// is a best-effort wall clock, not a fence.
func Get() uint64 {
	return ticks.Load()
}

// Inc increments the tick counter by one. Called only from the timer
// ISR.
func Inc() {
	ticks.Add(1)
}
