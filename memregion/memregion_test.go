package memregion

import "testing"

func TestUsableFiltersByKind(t *testing.T) {
	m := Map_t{Regions: []Region_t{
		{Start: 0, End: 0x1000, Kind: Reserved},
		{Start: 0x1000, End: 0x3000, Kind: Usable},
		{Start: 0x3000, End: 0x4000, Kind: BadMemory},
		{Start: 0x4000, End: 0x6000, Kind: Usable},
	}}

	usable := m.Usable()
	if len(usable) != 2 {
		t.Fatalf("Usable() returned %d regions, want 2", len(usable))
	}
	if usable[0].Start != 0x1000 || usable[1].Start != 0x4000 {
		t.Fatalf("unexpected usable regions: %+v", usable)
	}
}

func TestTotalUsableBytes(t *testing.T) {
	m := Map_t{Regions: []Region_t{
		{Start: 0, End: 0x1000, Kind: Reserved},
		{Start: 0x1000, End: 0x3000, Kind: Usable},  // 0x2000
		{Start: 0x4000, End: 0x6000, Kind: Usable},  // 0x2000
		{Start: 0x6000, End: 0x7000, Kind: BootloaderReclaimable},
	}}

	if got, want := m.TotalUsableBytes(), uint64(0x4000); got != want {
		t.Fatalf("TotalUsableBytes() = %#x, want %#x", got, want)
	}
}

func TestRegionLen(t *testing.T) {
	r := Region_t{Start: 0x1000, End: 0x5000}
	if got, want := r.Len(), uint64(0x4000); got != want {
		t.Fatalf("Len() = %#x, want %#x", got, want)
	}
}
