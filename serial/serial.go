// Package serial drives the COM1 UART: polled initialization over
// I/O ports, then IRQ-driven echo once interrupts are enabled.
package serial

import (
	"sync"

	"golang.org/x/text/transform"

	"biscuit/cpu"
	"biscuit/ioapic"
	"biscuit/kerr"
)

// Port is COM1's base I/O port.
const Port = 0x3F8

// ComIRQ is the legacy IRQ line COM1 is wired to (IRQ0+4 = vector 36,
// per spec.md §6).
const ComIRQ = 4

// Serial_t wraps one UART. The kernel drives a single one, on COM1
// (Port); the package itself declares no instance.
type Serial_t struct {
	mu   sync.Mutex
	port uint16
}

// New initializes the UART at port: disable IRQs, enable DLAB with
// divisor 3 (38400 baud), 8N1, FIFO with a 14-byte threshold, then a
// loopback self-test with byte 0xAE. Returns SerialFaulty if the
// loopback byte does not come back unchanged.
func New(port uint16) (*Serial_t, error) {
	cpu.Outb(port+1, 0x00) // disable all interrupts
	cpu.Outb(port+3, 0x80) // enable DLAB
	cpu.Outb(port+0, 0x03) // divisor lo: 3 (38400 baud)
	cpu.Outb(port+1, 0x00) // divisor hi
	cpu.Outb(port+3, 0x03) // 8N1
	cpu.Outb(port+2, 0xC7) // enable FIFO, clear, 14-byte threshold
	cpu.Outb(port+4, 0x0B) // IRQs enabled, RTS/DSR set
	cpu.Outb(port+4, 0x1E) // loopback mode
	cpu.Outb(port+0, 0xAE) // test byte

	if cpu.Inb(port) != 0xAE {
		return nil, kerr.New(kerr.SerialFaulty, "loopback byte mismatch")
	}

	// Normal operation: not loopback, IRQs enabled, OUT#1/OUT#2 set.
	cpu.Outb(port+4, 0x0F)
	return &Serial_t{port: port}, nil
}

// EnableInterrupts unmasks the UART's receive-data-available
// interrupt, acknowledges any pending condition, and routes COM1
// through the I/O APIC to cpu 0.
func (s *Serial_t) EnableInterrupts(io *ioapic.IoApic_t) {
	s.mu.Lock()
	cpu.Outb(s.port+1, 0x01)
	cpu.Inb(s.port + 2)
	cpu.Inb(s.port)
	s.mu.Unlock()

	io.Enable(ComIRQ, 0)
}

// WriteByte writes one byte to the transmit port. Satisfies
// klog.Writer.
func (s *Serial_t) WriteByte(b byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cpu.Outb(s.port, b)
	return nil
}

func (s *Serial_t) dataAvailable() bool {
	return cpu.Inb(s.port+5)&1 == 1
}

func (s *Serial_t) readByte() (byte, bool) {
	if s.dataAvailable() {
		return cpu.Inb(s.port), true
	}
	return 0, false
}

// lineDiscipline is a transform.Transformer expanding one received
// byte into the bytes echoed for it: 0x7F (DEL) becomes BS SPACE BS;
// CR/LF become CRLF; everything else passes through unchanged. It is
// the same streaming byte-substitution shape x/text's charmap and
// unicode encoders implement, applied to COM1's line discipline
// instead of a character set.
type lineDiscipline struct{ transform.NopResetter }

func (lineDiscipline) Transform(dst, src []byte, atEOF bool) (nDst, nSrc int, err error) {
	for nSrc < len(src) {
		var out []byte
		switch b := src[nSrc]; b {
		case 0x7F:
			out = []byte{0x08, ' ', 0x08}
		case '\r', '\n':
			out = []byte{'\r', '\n'}
		default:
			out = []byte{b}
		}
		if nDst+len(out) > len(dst) {
			err = transform.ErrShortDst
			return
		}
		nDst += copy(dst[nDst:], out)
		nSrc++
	}
	return
}

// translate runs lineDiscipline over a single received byte.
func translate(b byte) []byte {
	out, _, err := transform.Bytes(lineDiscipline{}, []byte{b})
	if err != nil {
		return []byte{b}
	}
	return out
}

// HandleInterrupt drains the receive FIFO, echoing each byte through
// translate. Called from the COM1 ISR; EOI is the caller's
// responsibility.
func (s *Serial_t) HandleInterrupt() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for {
		b, ok := s.readByte()
		if !ok {
			return
		}
		for _, out := range translate(b) {
			cpu.Outb(s.port, out)
		}
	}
}
