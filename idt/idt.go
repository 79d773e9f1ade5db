// Package idt builds and loads the x86_64 interrupt descriptor table,
// dispatching each vector to a registered Go handler. The gate-table
// shape (empty Go declarations over a hand-written assembly dispatch
// trampoline) follows gopheros's gate package; the concrete handlers
// (general fault, page fault, LAPIC timer, COM1) come from
// original_source/kernel/src/trap.rs.
package idt

import (
	"unsafe"

	"biscuit/cpu"
	"biscuit/internal/trapdump"
	"biscuit/kerr"
	"biscuit/klog"
	"biscuit/lapic"
	"biscuit/serial"
	"biscuit/tick"
	"biscuit/util"
)

// stubCount is the number of distinct assembly entry trampolines
// installed: the 32 CPU exception vectors plus the 16 legacy IRQ
// lines remapped to 32..47 (spec.md §6). Vectors beyond this range are
// never raised by this kernel's hardware configuration and are left
// not-present.
const stubCount = 48

// PageFaultVector, TimerVector and Com1Vector are the interrupt
// vectors this kernel installs concrete handlers on.
const (
	PageFaultVector = 14
	TimerVector     = 32 // IRQ0, lapic.TickIRQVector
	Com1Vector      = 36 // IRQ0 + serial.ComIRQ
)

const (
	kernelCS    = 0x08 // code segment selector set up by the bootloader/GDT
	gateTypeInt = 0x8E // present, DPL 0, 64-bit interrupt gate
)

// gate_t is one IDT entry: a 64-bit interrupt gate.
type gate_t struct {
	offsetLow  uint16
	selector   uint16
	ist        uint8
	typeAttr   uint8
	offsetMid  uint16
	offsetHigh uint32
	zero       uint32
}

var idtTable [stubCount]gate_t

// idtDescriptor is the LIDT operand: a 10-byte {limit, base} pair.
type idtDescriptor struct {
	limit uint16
	base  uint64
}

var descriptor idtDescriptor

// stubAddr returns the address of the assembly entry trampoline for
// vector, looked up from the stub table built in idt_amd64.s.
func stubAddr(vector uint8) uintptr

func setGate(vector uint8, handlerAddr uintptr) {
	idtTable[vector] = gate_t{
		offsetLow:  uint16(handlerAddr),
		selector:   kernelCS,
		ist:        0,
		typeAttr:   gateTypeInt,
		offsetMid:  uint16(handlerAddr >> 16),
		offsetHigh: uint32(handlerAddr >> 32),
	}
}

// Registers snapshots the general-purpose registers saved by a stub
// before it calls into dispatch, plus the interrupt frame the CPU
// itself pushes (IRETQ's inputs).
type Registers struct {
	RAX, RBX, RCX, RDX uint64
	RSI, RDI, RBP      uint64
	R8, R9, R10, R11   uint64
	R12, R13, R14, R15 uint64

	Vector    uint64
	ErrorCode uint64

	RIP, CS, RFlags, RSP, SS uint64
}

// Handler is invoked with a pointer to the trapped registers.
type Handler func(*Registers)

var handlers [stubCount]Handler

// dispatchInterrupt is the landing pad every assembly stub jumps to
// after pushing its vector number and building a Registers frame on
// the stack; called back into from idt_amd64.s's common trampoline.
func dispatchInterrupt(regs *Registers) {
	h := handlers[regs.Vector]
	if h == nil {
		h = defaultHandler
	}
	h(regs)
}

// HandleInterrupt registers handler for vector. It may be called
// before or after Init: dispatchInterrupt looks the handler up each
// time the vector fires.
func HandleInterrupt(vector uint8, handler Handler) {
	handlers[vector] = handler
}

// Init builds a gate for every stub vector, pointing at its assembly
// trampoline, and loads the IDT via LIDT. Vectors with no handler
// registered through HandleInterrupt fall back to defaultHandler.
func Init() {
	for v := 0; v < stubCount; v++ {
		setGate(uint8(v), stubAddr(uint8(v)))
	}
	descriptor = idtDescriptor{
		limit: uint16(unsafe.Sizeof(idtTable)) - 1,
		base:  uint64(uintptr(unsafe.Pointer(&idtTable[0]))),
	}
	cpu.LoadIDT(uintptr(unsafe.Pointer(&descriptor)))
}

// trapdumpWindow is how many bytes of instruction stream are decoded
// starting at the faulting RIP for the crash log.
const trapdumpWindow = 64

func defaultHandler(r *Registers) {
	klog.Printf("interrupt: vector=%#x errcode=%#x rip=%#x\n", r.Vector, r.ErrorCode, r.RIP)
	klog.Printf("%s", trapdump.Dump(util.BytesAt(r.RIP, trapdumpWindow), r.RIP))
	panic(kerr.New(kerr.NotSupported, "unhandled interrupt"))
}

// PageFaultHandler logs CR2 (the faulting address) and panics; this
// kernel does not demand-page or recover from faults.
func PageFaultHandler(r *Registers) {
	klog.Printf("page fault: addr=%#x errcode=%#x rip=%#x\n", cpu.ReadCR2(), r.ErrorCode, r.RIP)
	klog.Printf("%s", trapdump.Dump(util.BytesAt(r.RIP, trapdumpWindow), r.RIP))
	panic(kerr.New(kerr.NotSupported, "page fault"))
}

// TimerHandler builds the LAPIC periodic-timer handler for
// idt.TimerVector: increment the monotonic tick counter, then EOI.
// Every hardware interrupt handler must end with an EOI write
// (spec.md §5); this is the one for vector 32.
func TimerHandler(l *lapic.Lapic_t) Handler {
	return func(r *Registers) {
		tick.Inc()
		l.EOI()
	}
}

// Com1Handler builds the COM1 handler for idt.Com1Vector: drain and
// echo the UART's receive FIFO, then EOI.
func Com1Handler(s *serial.Serial_t, l *lapic.Lapic_t) Handler {
	return func(r *Registers) {
		s.HandleInterrupt()
		l.EOI()
	}
}
