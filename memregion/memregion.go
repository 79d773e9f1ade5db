// Package memregion reads the bootloader-supplied physical memory map.
package memregion

// Kind classifies a physical memory region.
type Kind int

const (
	Usable Kind = iota
	Reserved
	BootloaderReclaimable
	BadMemory
)

// Region_t is a single (start, end, kind) triple from the bootloader's
// memory map. Start is inclusive, End is exclusive, both page-aligned.
type Region_t struct {
	Start uint64
	End   uint64
	Kind  Kind
}

// Len returns the size in bytes of the region.
func (r Region_t) Len() uint64 {
	return r.End - r.Start
}

// Map_t is the read-only sequence of regions supplied once at boot.
type Map_t struct {
	Regions []Region_t
}

// Usable returns only the usable subset of the map, in the order
// the bootloader supplied them. This subset is the domain of the
// boot allocator and bitmap frame allocator.
func (m Map_t) Usable() []Region_t {
	out := make([]Region_t, 0, len(m.Regions))
	for _, r := range m.Regions {
		if r.Kind == Usable {
			out = append(out, r)
		}
	}
	return out
}

// TotalUsableBytes sums the length of every usable region.
func (m Map_t) TotalUsableBytes() uint64 {
	var total uint64
	for _, r := range m.Usable() {
		total += r.Len()
	}
	return total
}
