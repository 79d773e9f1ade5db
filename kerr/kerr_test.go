package kerr

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorStringIncludesContextWhenPresent(t *testing.T) {
	err := New(OutOfMemory, "bitmap exhausted")
	if got, want := err.Error(), "out of memory: bitmap exhausted"; got != want {
		t.Fatalf("Error() = %q, want %q", got, want)
	}
}

func TestErrorStringOmitsEmptyContext(t *testing.T) {
	err := New(NotDirectory, "")
	if got, want := err.Error(), "not a directory"; got != want {
		t.Fatalf("Error() = %q, want %q", got, want)
	}
}

func TestIsMatchesKind(t *testing.T) {
	err := New(Exists, "dup.txt")
	if !Is(err, Exists) {
		t.Fatal("expected Is(err, Exists) to be true")
	}
	if Is(err, NoEntry) {
		t.Fatal("expected Is(err, NoEntry) to be false")
	}
}

func TestIsUnwrapsThroughFmtErrorf(t *testing.T) {
	wrapped := fmt.Errorf("create: %w", New(WrongInode, "ramfs"))
	if !Is(wrapped, WrongInode) {
		t.Fatal("expected Is to see through %w wrapping")
	}
}

func TestIsFalseForForeignError(t *testing.T) {
	if Is(errors.New("plain error"), Unimplemented) {
		t.Fatal("expected Is to return false for a non-*Error")
	}
}
