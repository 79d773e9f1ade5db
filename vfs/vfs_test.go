package vfs

import (
	"testing"

	"biscuit/kerr"
)

func TestIsDir(t *testing.T) {
	dir := Inode{Mode: ModeDirectory}
	if !dir.IsDir() {
		t.Fatal("expected a ModeDirectory inode to report IsDir() == true")
	}

	file := Inode{Mode: ModeRegular}
	if file.IsDir() {
		t.Fatal("expected a ModeRegular inode to report IsDir() == false")
	}

	both := Inode{Mode: ModeDirectory | ModeSymlink}
	if !both.IsDir() {
		t.Fatal("expected IsDir() to ignore unrelated mode bits")
	}
}

func TestErrConstructorsWrapTheirKind(t *testing.T) {
	cases := []struct {
		err  error
		kind kerr.Kind
	}{
		{ErrBadPath("x"), kerr.BadPath},
		{ErrNoEntry("x"), kerr.NoEntry},
		{ErrNoMount("x"), kerr.NoMount},
		{ErrMissingInode("x"), kerr.MissingInode},
		{ErrWrongInode("x"), kerr.WrongInode},
		{ErrNotDirectory("x"), kerr.NotDirectory},
		{ErrExists("x"), kerr.Exists},
		{ErrUnimplemented("x"), kerr.Unimplemented},
	}
	for _, c := range cases {
		if !kerr.Is(c.err, c.kind) {
			t.Errorf("expected error %v to carry kind %v", c.err, c.kind)
		}
	}
}
