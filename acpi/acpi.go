// Package acpi walks the ACPI RSDP -> RSDT/XSDT -> MADT chain to
// discover the I/O APIC's physical address, the set of usable local
// APIC IDs, and whether the legacy 8259 PICs are present.
//
// Grounded on original_source/kernel/src/acpi.rs for the *shape* of
// the problem (an AcpiHandler that maps physical regions through the
// direct physical map, i.e. virt = physOffset + phys) — but the
// original delegates the actual table walk to the `acpi` Rust crate,
// which has no retrieved Go counterpart in this pack, so the MADT
// parse below is hand-rolled directly against the ACPI specification
// (see DESIGN.md for why no third-party library covers this).
package acpi

import (
	"biscuit/kerr"
	"biscuit/util"
)

// Info summarizes the pieces of the ACPI table chain this kernel
// actually needs.
type Info struct {
	IOAPICPhysAddr  uint64
	IOAPICID        uint8
	GSIBase         uint32
	LegacyPICPresent bool
	LAPICIDs        []uint8
}

// ebdaSegmentPtr is the real-mode segment:offset where the BIOS
// publishes the Extended BIOS Data Area's base address.
const ebdaSegmentPtr = 0x40E

// biosROMStart/End bound the fallback search window for the RSDP
// signature within the BIOS read-only memory area.
const (
	biosROMStart = 0xE0000
	biosROMEnd   = 0xFFFFF
)

const rsdpSignature = "RSD PTR "

// Discover walks the ACPI tables, mapping physical addresses to
// virtual ones via physOffset (the kernel's fixed direct-map window,
// spec.md §3).
func Discover(physOffset uint64) (Info, error) {
	rsdp, err := findRSDP(physOffset)
	if err != nil {
		return Info{}, err
	}

	madt, err := findMADT(physOffset, rsdp)
	if err != nil {
		return Info{}, err
	}

	return parseMADT(physOffset, madt), nil
}

func checksumOK(region []byte) bool {
	var sum byte
	for _, b := range region {
		sum += b
	}
	return sum == 0
}

// findRSDP scans the EBDA and the BIOS ROM area for the 8-byte RSDP
// signature on a 16-byte boundary, validating the checksum of
// whichever candidate it finds first.
func findRSDP(physOffset uint64) (uint64, error) {
	ebdaSeg := uint64(util.BytesAt(physOffset+ebdaSegmentPtr, 2)[0]) |
		uint64(util.BytesAt(physOffset+ebdaSegmentPtr, 2)[1])<<8
	ebdaBase := ebdaSeg << 4

	if addr, ok := scanForRSDP(physOffset, ebdaBase, ebdaBase+1024); ok {
		return addr, nil
	}
	if addr, ok := scanForRSDP(physOffset, biosROMStart, biosROMEnd); ok {
		return addr, nil
	}
	return 0, kerr.New(kerr.NotSupported, "acpi: RSDP not found")
}

func scanForRSDP(physOffset, start, end uint64) (uint64, bool) {
	for addr := start; addr+20 <= end; addr += 16 {
		window := util.BytesAt(physOffset+addr, 20)
		if string(window[:8]) != rsdpSignature {
			continue
		}
		if !checksumOK(window) {
			continue
		}
		return addr, true
	}
	return 0, false
}

const tableHeaderSize = 36

func readU32(physOffset, addr uint64) uint32 {
	b := util.BytesAt(physOffset+addr, 4)
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func readU64(physOffset, addr uint64) uint64 {
	return uint64(readU32(physOffset, addr)) | uint64(readU32(physOffset, addr+4))<<32
}

// findMADT reads the RSDP to locate the RSDT or XSDT (preferring the
// 64-bit XSDT when the RSDP's revision is >=2), then scans its table
// pointers for the one whose signature is "APIC" (the MADT).
func findMADT(physOffset, rsdpAddr uint64) (uint64, error) {
	revision := util.BytesAt(physOffset+rsdpAddr, 16)[15]

	var sdtAddr uint64
	var entrySize uint64
	if revision >= 2 {
		sdtAddr = readU64(physOffset, rsdpAddr+24)
		entrySize = 8
	} else {
		sdtAddr = uint64(readU32(physOffset, rsdpAddr+16))
		entrySize = 4
	}

	length := readU32(physOffset, sdtAddr+4)
	count := (uint64(length) - tableHeaderSize) / entrySize

	for i := uint64(0); i < count; i++ {
		var tableAddr uint64
		if entrySize == 8 {
			tableAddr = readU64(physOffset, sdtAddr+tableHeaderSize+i*8)
		} else {
			tableAddr = uint64(readU32(physOffset, sdtAddr+tableHeaderSize+i*4))
		}

		sig := util.BytesAt(physOffset+tableAddr, 4)
		if string(sig) == "APIC" {
			return tableAddr, nil
		}
	}

	return 0, kerr.New(kerr.NotSupported, "acpi: MADT not present")
}

const (
	madtEntryLocalAPIC = 0
	madtEntryIOAPIC    = 1
)

// parseMADT walks the MADT's variable-length entry list, collecting
// every enabled local APIC's ID and the first I/O APIC it finds.
func parseMADT(physOffset, madtAddr uint64) Info {
	length := readU32(physOffset, madtAddr+4)
	flags := readU32(physOffset, madtAddr+tableHeaderSize+4)

	info := Info{LegacyPICPresent: flags&1 != 0}

	off := uint64(tableHeaderSize + 8) // skip LocalApicAddress + Flags
	for off < uint64(length) {
		entry := util.BytesAt(physOffset+madtAddr+off, 2)
		entryType, entryLen := entry[0], uint64(entry[1])
		if entryLen == 0 {
			break
		}

		switch entryType {
		case madtEntryLocalAPIC:
			data := util.BytesAt(physOffset+madtAddr+off+2, 4)
			apicID, apicFlags := data[1], uint32(data[2])|uint32(data[3])<<8
			if apicFlags&1 != 0 { // processor enabled
				info.LAPICIDs = append(info.LAPICIDs, apicID)
			}
		case madtEntryIOAPIC:
			if info.IOAPICPhysAddr == 0 {
				data := util.BytesAt(physOffset+madtAddr+off+2, 10)
				info.IOAPICID = data[0]
				info.IOAPICPhysAddr = uint64(uint32(data[2]) | uint32(data[3])<<8 | uint32(data[4])<<16 | uint32(data[5])<<24)
				info.GSIBase = uint32(data[6]) | uint32(data[7])<<8 | uint32(data[8])<<16 | uint32(data[9])<<24
			}
		}

		off += entryLen
	}

	return info
}
