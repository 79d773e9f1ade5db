// Package kstat snapshots the kernel's live-allocation counters (full
// page allocator, bucketed heap) into a pprof profile.Profile, so the
// same "inuse_objects" sample shape userspace Go programs export via
// runtime/pprof can be pulled off this kernel over the serial console
// for analysis with the standard pprof tool.
package kstat

import (
	"bytes"

	"github.com/google/pprof/profile"

	"biscuit/fpa"
	"biscuit/kheap"
)

// Sources bundles the allocators kstat reads counters from. Any field
// left nil is simply omitted from the snapshot.
type Sources struct {
	FPA  *fpa.Allocator_t
	Heap *kheap.Heap_t
}

// Snapshot builds an inuse_objects profile.Profile with one sample per
// source, labeled by allocator name.
func Snapshot(src Sources) *profile.Profile {
	p := &profile.Profile{
		SampleType: []*profile.ValueType{
			{Type: "inuse_objects", Unit: "count"},
		},
		PeriodType: &profile.ValueType{Type: "space", Unit: "bytes"},
		Period:     1,
	}

	fn := &profile.Function{ID: 1, Name: "kstat.Snapshot"}
	loc := &profile.Location{ID: 1, Line: []profile.Line{{Function: fn}}}
	p.Function = []*profile.Function{fn}
	p.Location = []*profile.Location{loc}

	addSample := func(name string, count int64) {
		p.Sample = append(p.Sample, &profile.Sample{
			Location: []*profile.Location{loc},
			Value:    []int64{count},
			Label:    map[string][]string{"allocator": {name}},
		})
	}

	if src.FPA != nil {
		addSample("fpa.pages", int64(src.FPA.LivePages()))
	}
	if src.Heap != nil {
		addSample("kheap.allocs", src.Heap.LiveAllocs())
	}

	return p
}

// Encode renders the snapshot as a gzip-compressed pprof-format
// profile, ready to be written out over the serial console or
// written to a file by a host-side tool.
func Encode(src Sources) ([]byte, error) {
	var buf bytes.Buffer
	if err := Snapshot(src).Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
