// Package pit drives the legacy 8253/54 Programmable Interval Timer.
// Channel 0 only is actively used, to program one-shot calibration
// windows for the LAPIC timer.
package pit

import (
	"sync"

	"biscuit/cpu"
	"biscuit/kerr"
)

// TimerFrequency is the PIT's fixed input clock, in Hz.
const TimerFrequency = 1_193_182

const cmdPort = 0x43

// Channel identifies one of the PIT's three counters.
type Channel uint8

const (
	Channel0 Channel = 0
	Channel1 Channel = 1
	Channel2 Channel = 2
)

func (c Channel) port() uint16 {
	switch c {
	case Channel0:
		return 0x40
	case Channel1:
		return 0x41
	default:
		return 0x42
	}
}

// AccessMode selects how the 16-bit reload value is latched/read.
type AccessMode uint8

const (
	LatchCountValue AccessMode = 0
	LoByte          AccessMode = 1
	HiByte          AccessMode = 2
	LoHiByte        AccessMode = 3
)

// OperatingMode selects the PIT's counting mode.
type OperatingMode uint8

const (
	InterruptOnTerminalCount     OperatingMode = 0
	HardwareRetriggerableOneShot OperatingMode = 1
	RateGenerator                OperatingMode = 2
	SquareWaveGenerator          OperatingMode = 3
	SoftwareTriggeredStrobe      OperatingMode = 4
	HardwareTriggeredStrobe      OperatingMode = 5
)

// Timer_t wraps one PIT channel. There are three process-wide
// instances (PIT0, PIT1, PIT2); only PIT0 is exercised by this kernel.
type Timer_t struct {
	mu sync.Mutex
	ch Channel
}

// PIT0, PIT1, PIT2 are the three channel instances.
var (
	PIT0 = &Timer_t{ch: Channel0}
	PIT1 = &Timer_t{ch: Channel1}
	PIT2 = &Timer_t{ch: Channel2}
)

func setCmd(channel Channel, access AccessMode, mode OperatingMode) {
	val := uint8(channel)
	val |= uint8(access) << 4
	val |= uint8(mode) << 1
	cpu.Outb(cmdPort, val)
}

// StartTimer programs this channel to TimerFrequency/freq ticks,
// written low-then-high byte via the channel's data port. Fails if
// the computed divisor does not fit in 16 bits.
func (t *Timer_t) StartTimer(mode OperatingMode, freqHz uint32) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if freqHz == 0 {
		return kerr.New(kerr.VerificationFailed, "pit: zero frequency")
	}
	divisor := TimerFrequency / freqHz
	if divisor > 0xFFFF {
		return kerr.New(kerr.VerificationFailed, "pit: divisor does not fit in 16 bits")
	}

	setCmd(t.ch, LoHiByte, mode)
	port := t.ch.port()
	cpu.Outb(port, uint8(divisor&0xFF))
	cpu.Outb(port, uint8(divisor>>8))
	return nil
}

// GetCount reads the current 16-bit counter value, low byte then high.
func (t *Timer_t) GetCount() uint16 {
	t.mu.Lock()
	defer t.mu.Unlock()

	port := t.ch.port()
	lo := cpu.Inb(port)
	hi := cpu.Inb(port)
	return uint16(hi)<<8 | uint16(lo)
}
