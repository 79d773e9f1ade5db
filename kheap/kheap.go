// Package kheap implements the bucketed kernel heap: the process-wide
// default allocator, layered on top of the full-page allocator (fpa).
//
// Requests are dispatched by max(size, align) into nine power-of-two
// size classes covering 8..2048 bytes; anything larger goes straight
// to fpa, and an alignment above a page panics. Each bucket is a
// lazily-initialized singly-linked list of pages; each page has an
// inline bitmap tracking which of its 4096/BLOCK blocks are live.
package kheap

import (
	"sync"
	"sync/atomic"

	"biscuit/fpa"
	"biscuit/kerr"
	"biscuit/util"
)

const pageSize = 4096

// classes lists the nine size classes in ascending order.
var classes = [9]uint64{8, 16, 32, 64, 128, 256, 512, 1024, 2048}

// bucket_t is one size class's page list. The bitmap bit at index i
// is set iff block i on this page is live.
type bucket_t struct {
	blockSize uint64
	pageStart uint64
	bitmap    []byte
	next      *bucket_t
}

func newBucket(pa *fpa.Allocator_t, blockSize uint64) (*bucket_t, error) {
	addr, err := pa.Allocate(pageSize, pageSize)
	if err != nil {
		return nil, err
	}
	nblocks := pageSize / blockSize
	return &bucket_t{
		blockSize: blockSize,
		pageStart: addr,
		bitmap:    make([]byte, (nblocks+7)/8),
	}, nil
}

func (b *bucket_t) isEmpty() bool {
	for _, byte := range b.bitmap {
		if byte != 0 {
			return false
		}
	}
	return true
}

func (b *bucket_t) allocateBlock(pa *fpa.Allocator_t) (uint64, error) {
	nblocks := pageSize / b.blockSize
	for i := range b.bitmap {
		if b.bitmap[i] == 0xFF {
			continue
		}
		leading := util.LeadingOnes(b.bitmap[i])
		bit := 7 - leading
		off := uint64(i)*8 + uint64(leading)
		if off >= nblocks {
			continue
		}
		b.bitmap[i] |= 1 << uint(bit)
		return b.pageStart + off*b.blockSize, nil
	}

	if b.next != nil {
		return b.next.allocateBlock(pa)
	}
	nb, err := newBucket(pa, b.blockSize)
	if err != nil {
		return 0, err
	}
	addr, err := nb.allocateBlock(pa)
	if err != nil {
		return 0, err
	}
	b.next = nb
	return addr, nil
}

func (b *bucket_t) freeBlock(pa *fpa.Allocator_t, addr uint64) {
	if util.Rounddown(addr, pageSize) == b.pageStart {
		off := (addr - b.pageStart) / b.blockSize
		byteIdx := off / 8
		bit := 7 - (off % 8)
		b.bitmap[byteIdx] &^= 1 << bit
		return
	}
	if b.next != nil {
		b.next.freeBlock(pa, addr)
		if b.next.isEmpty() {
			reclaimed := b.next
			b.next = reclaimed.next
			pa.Deallocate(reclaimed.pageStart, pageSize)
		}
	}
}

// Heap_t is the kernel's default global allocator.
type Heap_t struct {
	mu      sync.Mutex
	buckets [9]*bucket_t
	pa      *fpa.Allocator_t

	liveAllocs atomic.Int64
}

// New creates a heap backed by pa.
func New(pa *fpa.Allocator_t) *Heap_t {
	return &Heap_t{pa: pa}
}

// LiveAllocs reports the number of outstanding Allocate calls not yet
// matched by a Deallocate, for internal/kstat snapshots.
func (h *Heap_t) LiveAllocs() int64 {
	return h.liveAllocs.Load()
}

func classIndex(max uint64) (int, bool) {
	for i, c := range classes {
		if max <= c {
			return i, true
		}
	}
	return 0, false
}

// Allocate dispatches by max(size, align). Requests above 2048 bytes
// fall through to the page allocator directly; align > 4096 panics.
func (h *Heap_t) Allocate(size, align uint64) (uint64, error) {
	max := util.Max(size, align)

	idx, ok := classIndex(max)
	if !ok {
		if align > pageSize {
			panic("kheap: invalid alignment")
		}
		addr, err := h.pa.Allocate(size, align)
		if err == nil {
			h.liveAllocs.Add(1)
		}
		return addr, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	b := h.buckets[idx]
	if b == nil {
		nb, err := newBucket(h.pa, classes[idx])
		if err != nil {
			return 0, err
		}
		h.buckets[idx] = nb
		b = nb
	}
	addr, err := b.allocateBlock(h.pa)
	if err == nil {
		h.liveAllocs.Add(1)
	}
	return addr, err
}

// Deallocate frees a previous allocation made with the same
// (size, align) pair used to allocate it.
func (h *Heap_t) Deallocate(addr, size, align uint64) error {
	max := util.Max(size, align)

	idx, ok := classIndex(max)
	if !ok {
		if align > pageSize {
			panic("kheap: invalid alignment")
		}
		err := h.pa.Deallocate(addr, size)
		if err == nil {
			h.liveAllocs.Add(-1)
		}
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	b := h.buckets[idx]
	if b == nil {
		return kerr.New(kerr.OutOfMemory, "kheap: free of untracked bucket class")
	}
	b.freeBlock(h.pa, addr)
	h.liveAllocs.Add(-1)
	return nil
}
