// Package fpa implements the full-page virtual allocator: a
// first-fit free list of (start, pages) virtual-address runs inside
// the kernel's ALLOCATOR window, held in a self-hosted doubly-linked
// list of descriptor pages.
//
// Each descriptor page is exactly one 4 KiB page holding 170 ordered
// entries plus prev/next links; the allocator carves its own
// descriptor pages from the window it manages, recursively
// bootstrapping itself via the frame allocator and page-table wrapper.
//
// The forward (next) chain is strongly owned; prev is a weak
// back-reference used only to find a page's predecessor during
// removal — never follow prev to free anything.
package fpa

import (
	"sync"
	"sync/atomic"
	"unsafe"

	"biscuit/frame"
	"biscuit/kerr"
	"biscuit/pagetable"
)

const (
	entriesLen = 170
	pageSize   = 4096
)

type entryTag uint64

const (
	tagEmpty entryTag = iota
	tagUsable
)

// entry_t is 24 bytes: an 8-byte tag plus the (start, pages) pair,
// so 170 entries plus two 8-byte links fill exactly one 4 KiB page.
type entry_t struct {
	tag   entryTag
	start uint64
	pages uint64
}

// page_t is the on-disk (in-page) layout of one descriptor page.
type page_t struct {
	entries [entriesLen]entry_t
	prev    uint64 // weak back-reference (virtual address, 0 = none)
	next    uint64 // strongly owned forward link (virtual address, 0 = none)
}

func pageAt(addr uint64) *page_t {
	return (*page_t)(unsafe.Pointer(uintptr(addr)))
}

// Allocator_t is the full-page allocator. One process-wide instance,
// guarded by a single mutex; the mutex is a leaf with respect to the
// frame allocator and page table locks (FPA -> FRAME_ALLOCATOR ->
// PAGE_TABLE), except that the FPA may recursively self-allocate a
// descriptor page while holding its own lock.
type Allocator_t struct {
	mu    sync.Mutex
	head  uint64 // virtual address of first descriptor page, 0 if uninitialized
	start uint64 // ALLOCATOR window start
	end   uint64 // ALLOCATOR window end (exclusive)

	fa *frame.Allocator_t
	pt *pagetable.Table_t

	livePages atomic.Uint64
}

// LivePages reports the number of pages currently outstanding
// (allocated but not yet deallocated), for internal/kstat snapshots.
func (a *Allocator_t) LivePages() uint64 {
	return a.livePages.Load()
}

// New creates an allocator over [windowStart, windowEnd).
// Initialization of the first descriptor page is deferred to the
// first allocation, matching the allocator this is modeled on.
func New(fa *frame.Allocator_t, pt *pagetable.Table_t, windowStart, windowEnd uint64) *Allocator_t {
	return &Allocator_t{fa: fa, pt: pt, start: windowStart, end: windowEnd}
}

// Allocate reserves n 4 KiB pages for size bytes, rounded up, backing
// every page with a frame via the page table. First-fit, not
// best-fit. Panics if align exceeds 4 KiB, per spec.
func (a *Allocator_t) Allocate(size uint64, align uint64) (uint64, error) {
	if align > pageSize {
		panic("fpa: alignment larger than a page is not supported")
	}
	n := (size + pageSize - 1) / pageSize
	if n == 0 {
		n = 1
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.ensureInit(); err != nil {
		return 0, err
	}

	addr, ok := findFreePages(a.head, n)
	if !ok {
		return 0, kerr.New(kerr.OutOfMemory, "fpa: no free run big enough")
	}
	allocPages(a, a.head, addr, n)

	for i := uint64(0); i < n; i++ {
		if err := a.pt.AllocKpage(a.fa, addr+i*pageSize); err != nil {
			return 0, err
		}
	}
	a.livePages.Add(n)
	return addr, nil
}

// Deallocate returns size bytes (rounded up to pages) starting at ptr
// to the free list, unmapping every page and releasing its frame
// first.
func (a *Allocator_t) Deallocate(ptr uint64, size uint64) error {
	n := (size + pageSize - 1) / pageSize
	if n == 0 {
		n = 1
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	for i := uint64(0); i < n; i++ {
		if err := a.pt.FreeKpage(a.fa, ptr+i*pageSize); err != nil {
			return err
		}
	}
	if err := dealloc(a, ptr, n); err != nil {
		return err
	}
	a.livePages.Add(^(n - 1)) // unsigned decrement by n
	return nil
}

// ensureInit carves the very first descriptor page, covering the
// entire window minus its own page, exactly as add_entry_page(None)
// does for the allocator this design is grounded on.
func (a *Allocator_t) ensureInit() error {
	if a.head != 0 {
		return nil
	}
	if err := a.pt.AllocKpage(a.fa, a.start); err != nil {
		return err
	}
	p := pageAt(a.start)
	*p = page_t{}
	p.entries[0] = entry_t{tag: tagUsable, start: a.start + pageSize, pages: (a.end - a.start - pageSize) / pageSize}
	a.head = a.start
	return nil
}

// findFreePages continues past Empty entries within a page and
// recurses into next, rather than short-circuiting on the first
// Empty slot in a page (the corrected semantics per design notes).
func findFreePages(head uint64, req uint64) (uint64, bool) {
	if head == 0 {
		return 0, false
	}
	p := pageAt(head)
	for _, e := range p.entries {
		if e.tag != tagUsable {
			continue
		}
		if e.pages >= req {
			return e.start, true
		}
	}
	if p.next != 0 {
		return findFreePages(p.next, req)
	}
	return 0, false
}

// allocPages finds the Usable entry starting at start and consumes
// pages from its front, removing the entry if it is now empty.
func allocPages(a *Allocator_t, head uint64, start uint64, pages uint64) {
	p := pageAt(head)
	for i := range p.entries {
		e := &p.entries[i]
		if e.tag != tagUsable || e.start != start {
			continue
		}
		if e.pages == pages {
			removeEntry(a, head, i)
		} else {
			e.start += pages * pageSize
			e.pages -= pages
		}
		return
	}
	if p.next != 0 {
		allocPages(a, p.next, start, pages)
		return
	}
	panic("fpa: allocPages: no matching entry found in any descriptor page")
}

// insertEntry inserts entry at idx within the page at head, pushing
// a full last slot into the next page (recursively, carving a new
// descriptor page if none exists).
func insertEntry(a *Allocator_t, head uint64, idx int, e entry_t) error {
	p := pageAt(head)
	if p.entries[entriesLen-1].tag == tagUsable {
		overflow := p.entries[entriesLen-1]
		if p.next != 0 {
			if err := insertEntry(a, p.next, 0, overflow); err != nil {
				return err
			}
		} else {
			next, err := addEntryPage(a, head)
			if err != nil {
				return err
			}
			if err := insertEntry(a, next, 0, overflow); err != nil {
				return err
			}
		}
	}
	copy(p.entries[idx+1:entriesLen], p.entries[idx:entriesLen-1])
	p.entries[idx] = e
	return nil
}

// appendEntry places entry in the first Empty slot reachable from
// head, recursing into next (or carving a new page) if every page is
// full.
func appendEntry(a *Allocator_t, head uint64, e entry_t) error {
	p := pageAt(head)
	for i := range p.entries {
		if p.entries[i].tag == tagEmpty {
			p.entries[i] = e
			return nil
		}
	}
	if p.next != 0 {
		return appendEntry(a, p.next, e)
	}
	next, err := addEntryPage(a, head)
	if err != nil {
		return err
	}
	return appendEntry(a, next, e)
}

// removeEntry removes the entry at idx within the page at head,
// pulling slot 0 of the next page up to backfill the vacated last
// slot, freeing the next page if it becomes entirely Empty.
func removeEntry(a *Allocator_t, head uint64, idx int) entry_t {
	p := pageAt(head)
	var end entry_t
	haveEnd := false
	if p.next != 0 {
		end = removeEntry(a, p.next, 0)
		haveEnd = true
	}

	removed := p.entries[idx]
	copy(p.entries[idx:entriesLen-1], p.entries[idx+1:entriesLen])

	if haveEnd {
		p.entries[entriesLen-1] = end
		if pageAt(p.next).entries[0].tag == tagEmpty {
			removeEntryPage(a, p)
		}
	} else {
		p.entries[entriesLen-1] = entry_t{}
	}
	return removed
}

// squashEntries coalesces adjacent Usable entries within each page in
// the chain, stopping at the first Empty slot per page (entries are
// kept ordered with Empty slots sunk to the end).
func squashEntries(a *Allocator_t, head uint64) {
	p := pageAt(head)
	i := 0
	for i < entriesLen-1 {
		cur := p.entries[i]
		if cur.tag != tagUsable {
			break
		}
		next := p.entries[i+1]
		if next.tag != tagUsable {
			break
		}
		if cur.start+cur.pages*pageSize == next.start {
			p.entries[i].pages = cur.pages + next.pages
			removeEntry(a, head, i+1)
			continue
		}
		i++
	}
	if p.next != 0 {
		squashEntries(a, p.next)
	}
}

// dealloc inserts a freed (ptr, pages) run back into the free list:
// find the first entry with start > ptr; extend it downward if
// adjacent, else insert a new entry before it and squash. If no such
// entry exists anywhere in the chain, append to the end.
func dealloc(a *Allocator_t, ptr uint64, pages uint64) error {
	if walkInsert(a, a.head, ptr, pages) {
		return nil
	}
	if err := appendEntry(a, a.head, entry_t{tag: tagUsable, start: ptr, pages: pages}); err != nil {
		return err
	}
	squashEntries(a, a.head)
	return nil
}

func walkInsert(a *Allocator_t, head uint64, ptr, pages uint64) bool {
	p := pageAt(head)
	for i, e := range p.entries {
		if e.tag != tagUsable || e.start < ptr {
			continue
		}
		if e.start == ptr+pages*pageSize {
			p.entries[i].start = ptr
			p.entries[i].pages = e.pages + pages
			return true
		}
		insertEntry(a, head, i, entry_t{tag: tagUsable, start: ptr, pages: pages})
		squashEntries(a, a.head)
		return true
	}
	if p.next != 0 {
		return walkInsert(a, p.next, ptr, pages)
	}
	return false
}

// addEntryPage carves a new descriptor page off the free list itself,
// maps it, links it after the tail page `after`, and returns its
// address. It runs only when an insertion finds every descriptor page
// full; Allocate reserves no descriptor capacity ahead of time, so it
// fails with OutOfMemory if the free list has no page left to carve.
func addEntryPage(a *Allocator_t, after uint64) (uint64, error) {
	freePage, ok := findFreePages(a.head, 1)
	if !ok {
		return 0, kerr.New(kerr.OutOfMemory, "fpa: no page available to grow descriptor list")
	}
	allocPages(a, a.head, freePage, 1)
	if err := a.pt.AllocKpage(a.fa, freePage); err != nil {
		return 0, err
	}

	np := pageAt(freePage)
	*np = page_t{prev: after}

	tail := pageAt(after)
	tail.next = freePage
	return freePage, nil
}

// removeEntryPage walks to the tail descriptor page and frees it back
// to the page table/frame allocator, unlinking it from its prev.
func removeEntryPage(a *Allocator_t, from *page_t) {
	last := from
	for last.next != 0 {
		last = pageAt(last.next)
	}
	prev := last.prev
	addr := uint64(uintptr(unsafe.Pointer(last)))
	if prev != 0 {
		pageAt(prev).next = 0
	}
	a.pt.FreeKpage(a.fa, addr)
}
