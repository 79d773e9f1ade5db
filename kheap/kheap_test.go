package kheap

import "testing"

func TestBucketAllocateFreeRoundTrip(t *testing.T) {
	b := &bucket_t{blockSize: 8, pageStart: 0x10000, bitmap: make([]byte, pageSize/8/8)}

	addr, err := b.allocateBlock(nil)
	if err != nil {
		t.Fatalf("allocateBlock: %v", err)
	}
	if addr != 0x10000 {
		t.Fatalf("got %x, want first block at page start", addr)
	}
	if b.isEmpty() {
		t.Fatalf("bucket should not be empty after allocation")
	}

	b.freeBlock(nil, addr)
	if !b.isEmpty() {
		t.Fatalf("bucket should be empty after freeing its only block")
	}
}

func TestBucketFillsPageWithDistinctBlocks(t *testing.T) {
	const blockSize = 2048
	nblocks := pageSize / blockSize
	b := &bucket_t{blockSize: blockSize, pageStart: 0x20000, bitmap: make([]byte, (nblocks+7)/8)}

	seen := map[uint64]bool{}
	for i := 0; i < nblocks; i++ {
		addr, err := b.allocateBlock(nil)
		if err != nil {
			t.Fatalf("allocateBlock %d: %v", i, err)
		}
		if seen[addr] {
			t.Fatalf("duplicate block address %x", addr)
		}
		seen[addr] = true
	}
	for i := 0; i < nblocks; i++ {
		if b.bitmap[0]&(1<<uint(7-i)) == 0 {
			t.Fatalf("expected bit %d set after full allocation", i)
		}
	}
}

func TestClassIndexDispatch(t *testing.T) {
	cases := []struct {
		max  uint64
		want int
		ok   bool
	}{
		{1, 0, true},
		{8, 0, true},
		{9, 1, true},
		{2048, 8, true},
		{2049, 0, false},
	}
	for _, c := range cases {
		idx, ok := classIndex(c.max)
		if ok != c.ok || (ok && idx != c.want) {
			t.Fatalf("classIndex(%d) = (%d,%v), want (%d,%v)", c.max, idx, ok, c.want, c.ok)
		}
	}
}
