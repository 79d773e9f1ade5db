// Package lapic drives the local APIC: MMIO register access,
// calibration of its periodic timer against the legacy PIT, and EOI.
//
// Mapped once at physical 0xFEE0_0000 through the direct physical
// map (spec.md §3/§6).
package lapic

import (
	"sync"

	"biscuit/cpu"
	"biscuit/kerr"
	"biscuit/pit"
	"biscuit/util"
)

// PhysAddr is the LAPIC's fixed physical MMIO base.
const PhysAddr = 0xFEE0_0000

// Register offsets, in bytes, within the 4 KiB MMIO window.
const (
	regID        = 0x020
	regVersion   = 0x030
	regEOI       = 0x0B0
	regSVR       = 0x0F0
	regLVTTimer  = 0x320
	regTimerInit = 0x380
	regTimerCur  = 0x390
	regTimerDiv  = 0x3E0
)

const (
	lvtMasked   = 0x0001_0000
	lvtPeriodic = 0x0002_0000
	svrEnable   = 0x0000_0100

	divideBy16 = 0x3

	// legacy 8259 mask ports, disabled once the LAPIC takes over.
	pic1DataPort = 0x21
	pic2DataPort = 0xA1
)

// TickIRQVector is the vector the periodic timer is programmed to
// fire on (IRQ0 = 32, per spec.md §6).
const TickIRQVector = 32

// IA32_APIC_BASE (spec.md §6 "APIC Base MSR: 0x1B"): bit 11 is the
// global enable flag, bits 12..35 hold the APIC's physical base.
const (
	apicBaseMSR        = 0x1B
	apicBaseEnableFlag = 1 << 11
	apicBaseAddrMask   = 0x0000_000F_FFFF_F000
)

// Lapic_t wraps the local APIC's MMIO register window.
type Lapic_t struct {
	mu   sync.Mutex
	base uint64 // direct-mapped virtual address of the MMIO window
}

// New wraps the LAPIC MMIO window at virtBase (PhysOffset+PhysAddr,
// mapped by the caller), disables the legacy 8259 PIC, and confirms
// via the APIC Base MSR that this CPU's LAPIC is globally enabled and
// mapped where the caller expects.
func New(virtBase uint64) (*Lapic_t, error) {
	if err := verifyBase(); err != nil {
		return nil, err
	}
	disable8259()
	return &Lapic_t{base: virtBase}, nil
}

// verifyBase reads IA32_APIC_BASE and checks the global-enable bit and
// the fixed physical base this kernel assumes (PhysAddr).
func verifyBase() error {
	base := cpu.RDMSR(apicBaseMSR)
	if base&apicBaseEnableFlag == 0 {
		return kerr.New(kerr.VerificationFailed, "lapic: global enable bit clear in APIC base MSR")
	}
	if base&apicBaseAddrMask != PhysAddr {
		return kerr.New(kerr.VerificationFailed, "lapic: APIC base MSR reports an unexpected physical address")
	}
	return nil
}

func disable8259() {
	cpu.Outb(pic2DataPort, 0xFF)
	cpu.Outb(pic1DataPort, 0xFF)
}

func (l *Lapic_t) regs() []uint32 {
	return util.WordsAt32(l.base, regTimerDiv/4+1)
}

// Read returns the raw value of the register at byte offset reg.
func (l *Lapic_t) Read(reg uint32) uint32 {
	return l.regs()[reg/4]
}

// Write stores val into the register at byte offset reg.
func (l *Lapic_t) Write(reg uint32, val uint32) {
	l.regs()[reg/4] = val
}

// EOI signals end-of-interrupt. Must be the last write an ISR makes.
func (l *Lapic_t) EOI() {
	l.Write(regEOI, 0)
}

// ID returns this LAPIC's ID (bits 24..31 of the ID register).
func (l *Lapic_t) ID() uint8 {
	return uint8(l.Read(regID) >> 24)
}

// verifyID restores the ID register to the value it held before a
// verification read, on every return path (the defer guarantees
// this regardless of whether the comparison below matched).
func (l *Lapic_t) verifyID(want uint8) (ok bool) {
	before := l.Read(regID)
	defer func() { l.Write(regID, before) }()
	return uint8(before>>24) == want
}

// Verify confirms this LAPIC reports the CPU ID the caller expects
// (e.g. from CPUID), restoring the ID register unconditionally
// regardless of the outcome.
func (l *Lapic_t) Verify(wantID uint8) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.verifyID(wantID) {
		return kerr.New(kerr.VerificationFailed, "lapic: ID mismatch")
	}
	return nil
}

// StartTimer calibrates the periodic LAPIC timer against PIT0 and
// leaves it running at tickHz. Must run with interrupts disabled:
// callers are expected to hold a critsec.Guard for the duration.
//
//  1. Program LVT timer divide = /16; mask LVT timer.
//  2. Arm PIT0 for a 10ms window (100 Hz, InterruptOnTerminalCount).
//  3. Write LAPIC initial count 0xFFFF_FFFF.
//  4. Busy-wait until PIT0's count reaches 0.
//  5. Stop the LAPIC timer; compute ticks_per_10ms from the consumed
//     count, scale to ticks_per_s.
//  6. Program LVT timer periodic on TickIRQVector at ticks_per_s/tickHz.
func (l *Lapic_t) StartTimer(tickHz uint32) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.Write(regSVR, l.Read(regSVR)|svrEnable)
	l.Write(regTimerDiv, divideBy16)
	l.Write(regLVTTimer, lvtMasked)

	if err := pit.PIT0.StartTimer(pit.InterruptOnTerminalCount, 100); err != nil {
		return err
	}
	l.Write(regTimerInit, 0xFFFF_FFFF)

	for pit.PIT0.GetCount() != 0 {
	}

	l.Write(regLVTTimer, lvtMasked)
	current := l.Read(regTimerCur)
	ticksPer10ms := uint64(0xFFFF_FFFF) - uint64(current)
	if ticksPer10ms == 0 {
		return kerr.New(kerr.VerificationFailed, "lapic: calibration produced zero ticks")
	}
	ticksPerS := ticksPer10ms * 100

	l.Write(regLVTTimer, uint32(TickIRQVector)|lvtPeriodic)
	l.Write(regTimerInit, uint32(ticksPerS/uint64(tickHz)))
	return nil
}
