// Package frame implements the production bitmap physical-frame
// allocator, bootstrapped from the boot bump allocator (bootalloc)
// while page tables are still being set up.
//
// Bitmap convention: a 1 bit means the frame is allocated, 0 means
// free. This resolves the open question left by the allocator this
// kernel is modeled on, whose first-free-frame scan inverted the
// sense of "leading ones" against a free-means-0 bitmap; tests assume
// "1 = allocated" throughout.
package frame

import (
	"math/bits"
	"sync"

	"biscuit/bootalloc"
	"biscuit/kerr"
	"biscuit/memregion"
	"biscuit/pagetable"
	"biscuit/util"
)

const pageSize = 4096

// Mapper is the subset of the page-table wrapper the bitmap allocator
// needs to map its own backing storage during initialization.
type Mapper interface {
	MapBootstrap(virt, phys uint64, flags pagetable.Flags) error
}

// Allocator_t is the bitmap frame allocator. Mutex-guarded; there is
// exactly one process-wide instance, installed as a package global
// once boot completes C2's handoff.
type Allocator_t struct {
	mu      sync.Mutex
	regions []memregion.Region_t
	bitmap  []uint64
}

// New builds the bitmap allocator: it computes the bitmap size,
// pulls enough physically contiguous frames from boot to hold it,
// maps them into the bitmap window via mapper, zeroes the bitmap,
// then marks every frame boot already consumed as allocated.
func New(m memregion.Map_t, boot *bootalloc.Allocator_t, mapper Mapper, bitmapWindowStart uint64) (*Allocator_t, error) {
	usable := m.Usable()
	totalBytes := m.TotalUsableBytes()
	totalFrames := (totalBytes + pageSize - 1) / pageSize
	bitmapBytes := (totalFrames + 7) / 8
	bitmapFrames := (bitmapBytes + pageSize - 1) / pageSize

	first, ok := boot.AllocateFrame()
	if !ok {
		return nil, kerr.New(kerr.OutOfMemory, "no frame for bitmap")
	}
	last := first
	for i := uint64(1); i < bitmapFrames; i++ {
		f, ok := boot.AllocateFrame()
		if !ok {
			return nil, kerr.New(kerr.OutOfMemory, "bitmap frames exhausted")
		}
		last = f
	}
	if last-first+pageSize != bitmapFrames*pageSize {
		return nil, kerr.New(kerr.VerificationFailed, "bitmap frames are not contiguous")
	}

	for i := uint64(0); i < bitmapFrames; i++ {
		phys := first + i*pageSize
		virt := bitmapWindowStart + i*pageSize
		if err := mapper.MapBootstrap(virt, phys, pagetable.Present|pagetable.Writable); err != nil {
			return nil, err
		}
	}

	words := bitmapFrames * pageSize / 8
	bitmap := util.WordsAt(bitmapWindowStart, words)
	for i := range bitmap {
		bitmap[i] = 0
	}

	a := &Allocator_t{regions: usable, bitmap: bitmap}
	for i := 0; i < boot.Used(); i++ {
		a.markUsed(uint64(i))
	}
	return a, nil
}

// NewForTest builds an allocator directly over an in-memory bitmap,
// bypassing the page-mapping bootstrap. Used by tests and by any
// caller that already owns the backing storage.
func NewForTest(regions []memregion.Region_t, bitmap []uint64) *Allocator_t {
	return &Allocator_t{regions: regions, bitmap: bitmap}
}

func (a *Allocator_t) markUsed(frame uint64) {
	word := frame / 64
	bit := 63 - (frame % 64)
	a.bitmap[word] |= 1 << bit
}

func (a *Allocator_t) markFree(frame uint64) {
	word := frame / 64
	bit := 63 - (frame % 64)
	a.bitmap[word] &^= 1 << bit
}

// firstFreeFrame scans for the first word that is not all-ones, then
// returns the index of its first 0 bit counting from the MSB.
func (a *Allocator_t) firstFreeFrame() (uint64, bool) {
	for i, word := range a.bitmap {
		if word == ^uint64(0) {
			continue
		}
		bit := bits.LeadingZeros64(^word)
		return uint64(i)*64 + uint64(bit), true
	}
	return 0, false
}

// frameToAddress maps a dense frame index back to its physical
// address by walking the usable region list in order.
func (a *Allocator_t) frameToAddress(frame uint64) (uint64, bool) {
	for _, r := range a.regions {
		frames := r.Len() / pageSize
		if frame < frames {
			return r.Start + frame*pageSize, true
		}
		frame -= frames
	}
	return 0, false
}

// addressToFrame maps a physical address to its dense frame index.
// Corrected per design: accumulates (region.end-region.start)/4096
// across skipped regions, not the subtraction-order bug of the
// allocator this is modeled on.
func (a *Allocator_t) addressToFrame(addr uint64) (uint64, bool) {
	var frame uint64
	for _, r := range a.regions {
		if addr >= r.Start && addr < r.End {
			return frame + (addr-r.Start)/pageSize, true
		}
		frame += r.Len() / pageSize
	}
	return 0, false
}

// AllocateFrame returns the physical address of a free frame, marking
// it allocated, or an OutOfMemory error when the bitmap is exhausted.
func (a *Allocator_t) AllocateFrame() (uint64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	frame, ok := a.firstFreeFrame()
	if !ok {
		return 0, kerr.New(kerr.OutOfMemory, "bitmap exhausted")
	}
	a.markUsed(frame)
	addr, ok := a.frameToAddress(frame)
	if !ok {
		return 0, kerr.New(kerr.OutOfMemory, "frame index out of range")
	}
	return addr, nil
}

// DeallocateFrame clears the allocated bit for the frame backing addr.
func (a *Allocator_t) DeallocateFrame(addr uint64) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	frame, ok := a.addressToFrame(addr)
	if !ok {
		return kerr.New(kerr.OutOfMemory, "address not in any usable region")
	}
	a.markFree(frame)
	return nil
}
