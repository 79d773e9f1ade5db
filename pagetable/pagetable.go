// Package pagetable wraps the 4-level x86_64 page table with the two
// operations the rest of the kernel needs: map a single kernel page
// with fixed flags, and unmap one, tearing down now-empty
// intermediate tables.
//
// Addressing is via the kernel's direct physical map (spec.md §3):
// every physical frame is visible at PhysOffset+phys without a
// separate mapping step, matching the teacher's dmap.go idiom
// (Kpmap/pgtracker_t) collapsed to the single fixed window this
// kernel uses instead of per-CPU caching.
package pagetable

import (
	"sync"

	"biscuit/cpu"
	"biscuit/kerr"
	"biscuit/util"
)

// Flags mirror the PTE bits this kernel programs.
type Flags uint64

const (
	Present  Flags = 1 << 0
	Writable Flags = 1 << 1
	User     Flags = 1 << 2
	Global   Flags = 1 << 8
)

const (
	entriesPerTable = 512
	pageSize        = 4096
	addrMask        = 0x000F_FFFF_FFFF_F000
)

// FrameSource is satisfied by frame.Allocator_t: the wrapper pulls
// frames for intermediate tables and the mapped page itself from it.
type FrameSource interface {
	AllocateFrame() (uint64, error)
	DeallocateFrame(addr uint64) error
}

// Table_t is the kernel's single page-table wrapper. There is exactly
// one process-wide instance, guarded by a mutex every mapper/unmapper
// acquires.
type Table_t struct {
	mu         sync.Mutex
	physOffset uint64 // direct physical map base
	root       uint64 // physical address of the PML4
}

// New wraps the currently-active PML4 (read from CR3) using
// physOffset as the direct physical map base.
func New(physOffset uint64) *Table_t {
	return &Table_t{physOffset: physOffset, root: cpu.ReadCR3() & addrMask}
}

func (t *Table_t) tableAt(phys uint64) []uint64 {
	return util.WordsAt(t.physOffset+phys, entriesPerTable)
}

// walk returns the level-1 (PTE) table for virt, allocating
// intermediate tables from fa as needed. Intermediate tables inherit
// Present|Writable regardless of the final page's requested flags.
func (t *Table_t) walk(fa FrameSource, virt uint64, create bool) ([]uint64, int, error) {
	idx := [4]uint64{
		(virt >> 39) & 0x1FF,
		(virt >> 30) & 0x1FF,
		(virt >> 21) & 0x1FF,
		(virt >> 12) & 0x1FF,
	}
	tablePhys := t.root
	for level := 0; level < 3; level++ {
		table := t.tableAt(tablePhys)
		entry := table[idx[level]]
		if entry&uint64(Present) == 0 {
			if !create {
				return nil, 0, kerr.New(kerr.OutOfMemory, "page table entry absent")
			}
			newFrame, err := fa.AllocateFrame()
			if err != nil {
				return nil, 0, err
			}
			zero := t.tableAt(newFrame)
			for i := range zero {
				zero[i] = 0
			}
			table[idx[level]] = (newFrame & addrMask) | uint64(Present) | uint64(Writable)
			tablePhys = newFrame
		} else {
			tablePhys = entry & addrMask
		}
	}
	return t.tableAt(tablePhys), int(idx[3]), nil
}

// MapBootstrap maps virt to phys with flags, used before the
// frame allocator's own mutex-guarded API is appropriate (i.e. while
// the bitmap allocator is being constructed from the boot allocator).
// It allocates no intermediate frames: every intermediate table on
// the path to virt must already be present, otherwise it fails with
// OutOfMemory.
func (t *Table_t) MapBootstrap(virt, phys uint64, flags Flags) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.mapLocked(bootstrapSource{}, virt, phys, flags)
}

type bootstrapSource struct{}

func (bootstrapSource) AllocateFrame() (uint64, error) {
	return 0, kerr.New(kerr.OutOfMemory, "bootstrap mapping requires pre-allocated intermediate tables")
}
func (bootstrapSource) DeallocateFrame(uint64) error { return nil }

func (t *Table_t) mapLocked(fa FrameSource, virt, phys uint64, flags Flags) error {
	pte, idx, err := t.walk(fa, virt, true)
	if err != nil {
		return err
	}
	pte[idx] = (phys & addrMask) | uint64(flags) | uint64(Present)
	cpu.FlushTLBEntry(uintptr(virt))
	return nil
}

// AllocKpage allocates one frame from fa, maps virt to it with
// Present|Writable, and flushes the TLB. Fails with OutOfMemory.
//
// The frame for the mapped page itself is taken from fa before t.mu
// is acquired, so the leaf allocator lock is never held across the
// page-table lock for that allocation, matching spec.md §5's
// FPA -> FRAME_ALLOCATOR -> PAGE_TABLE acquisition order. walk may
// still pull intermediate-table frames from fa while t.mu is held,
// since the table structure it is extending must stay locked for the
// duration; fa's own lock is always the innermost of the two there.
func (t *Table_t) AllocKpage(fa FrameSource, virt uint64) error {
	frame, err := fa.AllocateFrame()
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	return t.mapLocked(fa, virt, frame, Present|Writable)
}

// FreeKpage unmaps virt, flushes the TLB, returns the backing frame
// to fa, then walks the page-table parents freeing any intermediate
// table left entirely empty. The page is zero-filled before unmap to
// surface use-after-free, matching the teacher's debug-build behavior.
func (t *Table_t) FreeKpage(fa FrameSource, virt uint64) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	pte, idx, err := t.walk(fa, virt, false)
	if err != nil {
		return err
	}
	frame := pte[idx] & addrMask

	page := util.BytesAt(t.physOffset+frame, pageSize)
	for i := range page {
		page[i] = 0
	}

	pte[idx] = 0
	cpu.FlushTLBEntry(uintptr(virt))
	if err := fa.DeallocateFrame(frame); err != nil {
		return err
	}

	t.freeEmptyParents(fa, virt)
	return nil
}

// freeEmptyParents walks from the PML4 down to the level-2 table
// covering virt and frees any table that has become entirely empty.
func (t *Table_t) freeEmptyParents(fa FrameSource, virt uint64) {
	idx := [3]uint64{
		(virt >> 39) & 0x1FF,
		(virt >> 30) & 0x1FF,
		(virt >> 21) & 0x1FF,
	}
	phys := [4]uint64{t.root, 0, 0, 0}
	for level := 0; level < 3; level++ {
		table := t.tableAt(phys[level])
		entry := table[idx[level]]
		if entry&uint64(Present) == 0 {
			return
		}
		phys[level+1] = entry & addrMask
	}
	for level := 2; level >= 0; level-- {
		child := t.tableAt(phys[level+1])
		if !allZero(child) {
			return
		}
		parent := t.tableAt(phys[level])
		parent[idx[level]] = 0
		fa.DeallocateFrame(phys[level+1])
	}
}

func allZero(table []uint64) bool {
	for _, e := range table {
		if e != 0 {
			return false
		}
	}
	return true
}
