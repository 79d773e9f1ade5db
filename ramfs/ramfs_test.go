package ramfs

import (
	"testing"

	"biscuit/kerr"
	"biscuit/vfs"
	"biscuit/vpath"
)

type fakeDEntry struct {
	fs    vfs.FileSystem
	inode vfs.Inode
}

func (d *fakeDEntry) FS() vfs.FileSystem    { return d.fs }
func (d *fakeDEntry) InodeValue() vfs.Inode { return d.inode }

func mountedFS(t *testing.T) (*FileSystem, vfs.Inode) {
	t.Helper()
	fs := New()
	if err := fs.InitSuper(); err != nil {
		t.Fatalf("InitSuper: %v", err)
	}
	root, err := fs.Superblock().Root()
	if err != nil {
		t.Fatalf("Root: %v", err)
	}
	if !root.IsDir() {
		t.Fatalf("root is not a directory: %+v", root)
	}
	return fs, root
}

func TestCreateAddsDirEntryAndSetsRegularMode(t *testing.T) {
	fs, root := mountedFS(t)
	parent := &fakeDEntry{fs: fs, inode: root}

	child, err := fs.Superblock().CreateInode()
	if err != nil {
		t.Fatalf("CreateInode: %v", err)
	}

	comp := vpath.Component{Kind: vpath.Normal, Name: "hello.txt"}
	if err := ops.Create(&child, parent, comp); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if child.Mode != vfs.ModeRegular {
		t.Fatalf("child mode = %v, want ModeRegular", child.Mode)
	}

	entries, err := ops.List(&root)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 1 || entries[0].Name != "hello.txt" || entries[0].Inode != child.Num {
		t.Fatalf("unexpected entries: %+v", entries)
	}
}

func TestCreateRejectsDuplicateName(t *testing.T) {
	fs, root := mountedFS(t)
	parent := &fakeDEntry{fs: fs, inode: root}
	comp := vpath.Component{Kind: vpath.Normal, Name: "dup.txt"}

	first, _ := fs.Superblock().CreateInode()
	if err := ops.Create(&first, parent, comp); err != nil {
		t.Fatalf("first Create: %v", err)
	}

	second, _ := fs.Superblock().CreateInode()
	if err := ops.Create(&second, parent, comp); !kerr.Is(err, kerr.Exists) {
		t.Fatalf("expected Exists error for a duplicate name, got %v", err)
	}
}

func TestMkdirSetsDirectoryMode(t *testing.T) {
	fs, root := mountedFS(t)
	parent := &fakeDEntry{fs: fs, inode: root}

	child, _ := fs.Superblock().CreateInode()
	comp := vpath.Component{Kind: vpath.Normal, Name: "subdir"}
	if err := ops.Mkdir(&child, parent, comp); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}
	if !child.IsDir() {
		t.Fatalf("child is not a directory: %+v", child)
	}
}

func TestUnlinkAndRenameAreUnimplemented(t *testing.T) {
	fs, root := mountedFS(t)
	parent := &fakeDEntry{fs: fs, inode: root}
	child, _ := fs.Superblock().CreateInode()

	if err := ops.Unlink(&child, parent); err == nil {
		t.Fatal("expected unlink to report unimplemented")
	}
	if err := ops.Rename(&child, parent, parent, vpath.Component{Kind: vpath.Normal, Name: "x"}); err == nil {
		t.Fatal("expected rename to report unimplemented")
	}
}

func TestListOnNonDirectoryFails(t *testing.T) {
	fs, root := mountedFS(t)
	parent := &fakeDEntry{fs: fs, inode: root}
	child, _ := fs.Superblock().CreateInode()
	comp := vpath.Component{Kind: vpath.Normal, Name: "file.txt"}
	if err := ops.Create(&child, parent, comp); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if _, err := ops.List(&child); err == nil {
		t.Fatal("expected List on a regular file to fail")
	}
}
