// Package trapdump disassembles the instruction stream around a
// faulting RIP so a panic handler can print what was actually
// executing, not just raw register values.
package trapdump

import (
	"fmt"
	"strings"

	"golang.org/x/arch/x86/x86asm"
)

// maxInsns bounds how many instructions Dump decodes forward from rip,
// so a corrupted or mid-instruction RIP can't spin the decoder
// indefinitely on garbage bytes.
const maxInsns = 8

// Dump decodes up to maxInsns x86-64 instructions starting at rip from
// code (the raw bytes already read from the faulting address via the
// kernel's direct physical/virtual map) and renders them one per line,
// prefixed with their address, in AT&T-ish syntax matching x86asm's
// default GNUSyntax renderer.
func Dump(code []byte, rip uint64) string {
	var b strings.Builder
	off := 0
	for i := 0; i < maxInsns && off < len(code); i++ {
		inst, err := x86asm.Decode(code[off:], 64)
		if err != nil {
			fmt.Fprintf(&b, "%#x: <bad instruction: %v>\n", rip+uint64(off), err)
			break
		}
		fmt.Fprintf(&b, "%#x: %s\n", rip+uint64(off), x86asm.GNUSyntax(inst, rip+uint64(off), nil))
		off += inst.Len
	}
	return b.String()
}
