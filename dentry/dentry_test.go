package dentry

import (
	"testing"

	"biscuit/vfs"
	"biscuit/vpath"
)

// fakeFS is a minimal in-memory vfs.FileSystem backing a two-level
// directory tree, just enough to exercise Cache.Get's ancestor-walk
// fill-on-miss path without a real filesystem.
type fakeFS struct {
	name  string
	inodes map[uint64]vfs.Inode
	dirs  map[uint64][]vfs.DirEntry
}

func (f *fakeFS) Name() string            { return f.name }
func (f *fakeFS) MountType() vfs.MountType { return vfs.NoDevice }
func (f *fakeFS) InitSuper() error         { return nil }
func (f *fakeFS) Superblock() vfs.SuperBlock { return f }

func (f *fakeFS) Root() (vfs.Inode, error) { return f.inodes[1], nil }
func (f *fakeFS) CreateInode() (vfs.Inode, error) {
	return vfs.Inode{}, vfs.ErrUnimplemented("fakeFS.CreateInode")
}
func (f *fakeFS) GetInode(num uint64) (vfs.Inode, bool, error) {
	i, ok := f.inodes[num]
	return i, ok, nil
}
func (f *fakeFS) DestroyInode(num uint64) error { return nil }
func (f *fakeFS) WriteInode(inode *vfs.Inode) error {
	f.inodes[inode.Num] = *inode
	return nil
}

func (f *fakeFS) List(inode *vfs.Inode) ([]vfs.DirEntry, error) {
	return f.dirs[inode.Num], nil
}

func (f *fakeFS) Create(dst *vfs.Inode, parent vfs.DEntryRef, name vpath.Component) error {
	return vfs.ErrUnimplemented("fakeFS.Create")
}
func (f *fakeFS) Link(src *vfs.Inode, parent vfs.DEntryRef, name vpath.Component) error {
	return vfs.ErrUnimplemented("fakeFS.Link")
}
func (f *fakeFS) Symlink(dst *vfs.Inode, target vpath.Path, parent vfs.DEntryRef, name vpath.Component) error {
	return vfs.ErrUnimplemented("fakeFS.Symlink")
}
func (f *fakeFS) Unlink(dst *vfs.Inode, parent vfs.DEntryRef) error {
	return vfs.ErrUnimplemented("fakeFS.Unlink")
}
func (f *fakeFS) Rename(src *vfs.Inode, srcParent, dstParent vfs.DEntryRef, name vpath.Component) error {
	return vfs.ErrUnimplemented("fakeFS.Rename")
}
func (f *fakeFS) Mkdir(dst *vfs.Inode, parent vfs.DEntryRef, name vpath.Component) error {
	return vfs.ErrUnimplemented("fakeFS.Mkdir")
}

func newFakeFS() *fakeFS {
	f := &fakeFS{
		name:   "fake",
		inodes: map[uint64]vfs.Inode{},
		dirs:   map[uint64][]vfs.DirEntry{},
	}
	root := vfs.Inode{Num: 1, Mode: vfs.ModeDirectory, Ops: f}
	child := vfs.Inode{Num: 2, Mode: vfs.ModeRegular, Ops: f}
	f.inodes[1] = root
	f.inodes[2] = child
	f.dirs[1] = []vfs.DirEntry{{Name: "child.txt", Inode: 2}}
	return f
}

func TestCacheFillsFromCachedAncestor(t *testing.T) {
	c := NewCache()
	fs := newFakeFS()
	root := NewDEntry("/", fs.inodes[1], fs)
	c.Mount(root)

	d, err := c.Get("/child.txt")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if d.InodeValue().Num != 2 {
		t.Fatalf("resolved inode = %d, want 2", d.InodeValue().Num)
	}

	// Second lookup should hit the fast path (now cached directly).
	d2, err := c.Get("/child.txt")
	if err != nil || d2 != d {
		t.Fatalf("second Get did not hit cache: %v %v", d2, err)
	}
}

func TestCacheGetMissingEntry(t *testing.T) {
	c := NewCache()
	fs := newFakeFS()
	c.Mount(NewDEntry("/", fs.inodes[1], fs))

	if _, err := c.Get("/nope.txt"); err == nil {
		t.Fatal("expected an error for a nonexistent path")
	}
}

func TestEvictionSparesMountPaths(t *testing.T) {
	c := NewCache()
	fs := newFakeFS()
	root := NewDEntry("/", fs.inodes[1], fs)
	c.Mount(root)
	SetMountChecker(func(p vpath.Path) bool { return p == "/" })
	defer SetMountChecker(func(vpath.Path) bool { return false })

	if _, err := c.Get("/child.txt"); err != nil {
		t.Fatalf("Get: %v", err)
	}

	c.mu.Lock()
	c.evictLocked()
	c.mu.Unlock()

	if _, ok := c.entries["/"]; !ok {
		t.Fatal("mount root should survive eviction")
	}
}
