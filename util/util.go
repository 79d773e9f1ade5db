// Package util contains helper functions used across the kernel.
package util

import "unsafe"

// Int is satisfied by all built-in integer types.
type Int interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 | ~uintptr
}

// Min returns the smaller of a and b.
func Min[T Int](a, b T) T {
	if a < b {
		return a
	}
	return b
}

// Max returns the larger of a and b.
func Max[T Int](a, b T) T {
	if a > b {
		return a
	}
	return b
}

// Rounddown aligns v down to the nearest multiple of b.
func Rounddown[T Int](v, b T) T {
	return v - (v % b)
}

// Roundup aligns v up to the nearest multiple of b.
func Roundup[T Int](v, b T) T {
	return Rounddown(v+b-1, b)
}

// LeadingOnes returns the number of consecutive 1 bits from the
// most-significant end of v.
func LeadingOnes(v uint8) int {
	n := 0
	for i := 7; i >= 0; i-- {
		if v&(1<<uint(i)) == 0 {
			break
		}
		n++
	}
	return n
}

// WordsAt reinterprets the n uint64 words starting at the mapped
// virtual address addr as a Go slice, without copying. The caller
// must ensure addr..addr+8n is mapped and live for the slice's
// lifetime.
func WordsAt(addr uint64, n uint64) []uint64 {
	p := unsafe.Pointer(uintptr(addr))
	return unsafe.Slice((*uint64)(p), n)
}

// WordsAt32 reinterprets the n uint32 words starting at the mapped
// virtual address addr as a Go slice, without copying. Used for MMIO
// register windows (LAPIC, I/O APIC) that are addressed in 32-bit
// units.
func WordsAt32(addr uint64, n uint64) []uint32 {
	p := unsafe.Pointer(uintptr(addr))
	return unsafe.Slice((*uint32)(p), n)
}

// BytesAt reinterprets the n bytes starting at the mapped virtual
// address addr as a Go slice, without copying.
func BytesAt(addr uint64, n uint64) []uint8 {
	p := unsafe.Pointer(uintptr(addr))
	return unsafe.Slice((*uint8)(p), n)
}

// Readn reads n bytes from a starting at off and returns the value.
// It panics if the requested region is out of bounds or the size is unsupported.
func Readn(a []uint8, n int, off int) int {
	if off < 0 || off+n > len(a) {
		panic("Readn out of bounds")
	}
	p := unsafe.Pointer(&a[off])
	var ret int
	switch n {
	case 8:
		ret = *(*int)(p)
	case 4:
		ret = int(*(*uint32)(p))
	case 2:
		ret = int(*(*uint16)(p))
	case 1:
		ret = int(*(*uint8)(p))
	default:
		panic("unsupported size")
	}
	return ret
}

// Writen writes val using sz bytes into a starting at off.
// It panics if the destination is out of bounds or the size is unsupported.
func Writen(a []uint8, sz int, off int, val int) {
	if off < 0 || off+sz > len(a) {
		panic("Writen out of bounds")
	}
	p := unsafe.Pointer(&a[off])
	switch sz {
	case 8:
		*(*int)(p) = val
	case 4:
		*(*uint32)(p) = uint32(val)
	case 2:
		*(*uint16)(p) = uint16(val)
	case 1:
		*(*uint8)(p) = uint8(val)
	default:
		panic("unsupported size")
	}
}
