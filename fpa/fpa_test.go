package fpa

import (
	"testing"
	"unsafe"
)

func newTestPage() uint64 {
	p := new(page_t)
	return uint64(uintptr(unsafe.Pointer(p)))
}

func TestFindFreePagesFirstFit(t *testing.T) {
	head := newTestPage()
	p := pageAt(head)
	p.entries[0] = entry_t{tag: tagUsable, start: 0x1000, pages: 2}
	p.entries[1] = entry_t{tag: tagUsable, start: 0x4000, pages: 10}

	addr, ok := findFreePages(head, 5)
	if !ok || addr != 0x4000 {
		t.Fatalf("got %x, %v, want 0x4000, true", addr, ok)
	}
}

func TestFindFreePagesContinuesPastEmptyWithinPage(t *testing.T) {
	// Regression test for the corrected semantics: an Empty slot
	// between two Usable slots in the same page must not
	// short-circuit the scan.
	head := newTestPage()
	p := pageAt(head)
	p.entries[0] = entry_t{tag: tagEmpty}
	p.entries[1] = entry_t{tag: tagUsable, start: 0x9000, pages: 3}

	addr, ok := findFreePages(head, 2)
	if !ok || addr != 0x9000 {
		t.Fatalf("got %x, %v, want 0x9000, true", addr, ok)
	}
}

func TestFindFreePagesRecursesIntoNext(t *testing.T) {
	head := newTestPage()
	next := newTestPage()
	pageAt(head).next = next
	pageAt(next).entries[0] = entry_t{tag: tagUsable, start: 0x20000, pages: 4}

	addr, ok := findFreePages(head, 4)
	if !ok || addr != 0x20000 {
		t.Fatalf("got %x, %v, want 0x20000, true", addr, ok)
	}
}

func TestAllocPagesShrinksEntry(t *testing.T) {
	a := &Allocator_t{}
	head := newTestPage()
	a.head = head
	pageAt(head).entries[0] = entry_t{tag: tagUsable, start: 0x1000, pages: 4}

	allocPages(a, head, 0x1000, 1)

	e := pageAt(head).entries[0]
	if e.tag != tagUsable || e.start != 0x2000 || e.pages != 3 {
		t.Fatalf("got %+v", e)
	}
}

func TestAllocPagesExactRemovesEntry(t *testing.T) {
	a := &Allocator_t{}
	head := newTestPage()
	a.head = head
	pageAt(head).entries[0] = entry_t{tag: tagUsable, start: 0x1000, pages: 1}

	allocPages(a, head, 0x1000, 1)

	e := pageAt(head).entries[0]
	if e.tag != tagEmpty {
		t.Fatalf("expected entry removed, got %+v", e)
	}
}

func TestWalkInsertExtendsAdjacentEntry(t *testing.T) {
	a := &Allocator_t{}
	head := newTestPage()
	a.head = head
	pageAt(head).entries[0] = entry_t{tag: tagUsable, start: 0x5000, pages: 2}

	ok := walkInsert(a, head, 0x3000, 2)
	if !ok {
		t.Fatalf("expected insert to succeed")
	}
	e := pageAt(head).entries[0]
	if e.start != 0x3000 || e.pages != 4 {
		t.Fatalf("got %+v, want start=0x3000 pages=4", e)
	}
}

func TestSquashEntriesCoalescesAdjacent(t *testing.T) {
	a := &Allocator_t{}
	head := newTestPage()
	a.head = head
	p := pageAt(head)
	p.entries[0] = entry_t{tag: tagUsable, start: 0x1000, pages: 1}
	p.entries[1] = entry_t{tag: tagUsable, start: 0x2000, pages: 1}
	p.entries[2] = entry_t{tag: tagUsable, start: 0x5000, pages: 1}

	squashEntries(a, head)

	if p.entries[0].start != 0x1000 || p.entries[0].pages != 2 {
		t.Fatalf("expected coalesced run, got %+v", p.entries[0])
	}
	if p.entries[1].start != 0x5000 || p.entries[1].pages != 1 {
		t.Fatalf("expected untouched second run shifted down, got %+v", p.entries[1])
	}
	if p.entries[2].tag != tagEmpty {
		t.Fatalf("expected vacated slot to be empty, got %+v", p.entries[2])
	}
}
