// Command chentry patches the entry address of the kernel's ELF image
// and, optionally, sanity-checks it before doing so.
//
// The original implementation only ever rewrote a numeric entry
// address (written in C, ported verbatim to Go by the teacher repo).
// This version keeps that core untouched but adds two things the
// boot pipeline in spec.md §2 benefits from: a symbol-name lookup (so
// build scripts can say "_start" instead of hunting for its address
// by hand) and an optional static points-to check that the chosen
// entry symbol is actually reachable from main, catching a
// misconfigured linker script before it ever reaches a VM.
package main

import (
	"debug/elf"
	"encoding/binary"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/ianlancetaylor/demangle"
	"golang.org/x/tools/go/packages"
	"golang.org/x/tools/go/pointer"
	"golang.org/x/tools/go/ssa"
	"golang.org/x/tools/go/ssa/ssautil"
)

func usage() {
	fmt.Fprintf(os.Stderr, "%s [-pointer-check pkg] <filename> <addr-or-symbol>\n\n"+
		"Change the ELF entry point of <filename> to <addr-or-symbol>.\n"+
		"If <addr-or-symbol> is not a valid number it is looked up in the\n"+
		"file's symbol table.\n", os.Args[0])
	os.Exit(1)
}

// chkELF validates the ELF file header to ensure we are modifying the
// correct type of binary.
func chkELF(eh *elf.FileHeader) {
	if eh.Ident[0] != 0x7f || string(eh.Ident[1:4]) != "ELF" {
		log.Fatal("not an elf")
	}
	if eh.Ident[elf.EI_DATA] != elf.ELFDATA2LSB {
		log.Fatal("not little-endian?")
	}
	if eh.Type != elf.ET_EXEC {
		log.Fatal("not an executable elf")
	}
	if eh.Machine != elf.EM_X86_64 {
		log.Fatal("not a 64 bit elf")
	}
}

func main() {
	pointerCheckPkg := flag.String("pointer-check", "", "optional Go package path to verify the entry symbol is reachable from main before patching")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() != 2 {
		usage()
	}
	fn, want := flag.Arg(0), flag.Arg(1)

	f, err := os.OpenFile(fn, os.O_RDWR, 0)
	if err != nil {
		log.Fatal(err)
	}
	defer f.Close()

	ef, err := elf.NewFile(f)
	if err != nil {
		log.Fatal(err)
	}
	chkELF(&ef.FileHeader)

	addr, symbol, err := resolveEntry(ef, want)
	if err != nil {
		log.Fatal(err)
	}
	if addr>>32 != 0 {
		log.Fatal("entry is 64bit pointer; bootloader will perish")
	}

	if *pointerCheckPkg != "" && symbol != "" {
		if err := verifyReachable(*pointerCheckPkg, symbol); err != nil {
			log.Fatalf("pointer check failed: %v", err)
		}
		fmt.Printf("pointer check: %s is reachable from main in %s\n", demangle.Filter(symbol), *pointerCheckPkg)
	}

	fmt.Printf("using address 0x%x\n", addr)
	ef.FileHeader.Entry = addr

	if _, err := f.Seek(0, 0); err != nil {
		log.Fatal(err)
	}
	if err := binary.Write(f, binary.LittleEndian, &ef.FileHeader); err != nil {
		log.Fatal(err)
	}
}

// resolveEntry accepts either a numeric address (parsed like C's
// strtoul with base 0) or a symbol name, returning the resolved
// address and, when a symbol was given, its name for the optional
// pointer check.
func resolveEntry(ef *elf.File, want string) (addr uint64, symbol string, err error) {
	if a, perr := strconv.ParseUint(want, 0, 64); perr == nil {
		return a, "", nil
	}

	syms, err := ef.Symbols()
	if err != nil {
		return 0, "", fmt.Errorf("%q is not a number and the file has no symbol table: %w", want, err)
	}
	for _, s := range syms {
		if s.Name == want {
			return s.Value, s.Name, nil
		}
	}
	return 0, "", fmt.Errorf("symbol %q not found", want)
}

// verifyReachable loads pkgPath, builds its SSA representation, runs
// Andersen-style points-to analysis over its main package(s), and
// reports whether a function named symbol appears in the resulting
// call graph at all, i.e. is reachable from some main.
func verifyReachable(pkgPath, symbol string) error {
	cfg := &packages.Config{Mode: packages.LoadAllSyntax}
	pkgs, err := packages.Load(cfg, pkgPath)
	if err != nil {
		return err
	}
	if packages.PrintErrors(pkgs) > 0 {
		return fmt.Errorf("package %s failed to load cleanly", pkgPath)
	}

	prog, ssaPkgs := ssautil.AllPackages(pkgs, ssa.SanityCheckFunctions)
	prog.Build()

	var mains []*ssa.Package
	for _, p := range ssaPkgs {
		if p != nil && p.Pkg.Name() == "main" {
			mains = append(mains, p)
		}
	}
	if len(mains) == 0 {
		return fmt.Errorf("no main package found under %s", pkgPath)
	}

	result, err := pointer.Analyze(&pointer.Config{
		Mains:          mains,
		BuildCallGraph: true,
	})
	if err != nil {
		return err
	}

	for fn := range result.CallGraph.Nodes {
		if fn != nil && fn.Name() == symbol {
			return nil
		}
	}
	return fmt.Errorf("%s does not appear in the call graph rooted at main", symbol)
}
