package mount

import (
	"testing"

	"biscuit/dentry"
	"biscuit/vfs"
	"biscuit/vpath"
)

type stubFS struct {
	name       string
	initCalled bool
}

func (s *stubFS) Name() string              { return s.name }
func (s *stubFS) MountType() vfs.MountType  { return vfs.NoDevice }
func (s *stubFS) InitSuper() error          { s.initCalled = true; return nil }
func (s *stubFS) Superblock() vfs.SuperBlock { return s }

func (s *stubFS) Root() (vfs.Inode, error) { return vfs.Inode{Num: 1, Mode: vfs.ModeDirectory}, nil }
func (s *stubFS) CreateInode() (vfs.Inode, error) {
	return vfs.Inode{}, vfs.ErrUnimplemented("stubFS")
}
func (s *stubFS) GetInode(num uint64) (vfs.Inode, bool, error) { return vfs.Inode{}, false, nil }
func (s *stubFS) DestroyInode(num uint64) error                { return nil }
func (s *stubFS) WriteInode(inode *vfs.Inode) error             { return nil }

func TestMountFSCallsInitSuperAndCachesRoot(t *testing.T) {
	m := NewMounts()
	dentry.Dir = dentry.NewCache()
	fs := &stubFS{name: "root-fs"}

	if err := m.MountFS(Ctx{FS: fs}); err != nil {
		t.Fatalf("MountFS: %v", err)
	}
	if !fs.initCalled {
		t.Fatal("expected InitSuper to be called")
	}
	if !m.IsMountPath("/") {
		t.Fatal("expected \"/\" to be a mount path after mounting")
	}

	d, err := dentry.Dir.Get("/")
	if err != nil {
		t.Fatalf("Get(\"/\"): %v", err)
	}
	if d.InodeValue().Num != 1 {
		t.Fatalf("root inode = %d, want 1", d.InodeValue().Num)
	}
}

func TestUnmountClearsMountTableAndCache(t *testing.T) {
	m := NewMounts()
	dentry.Dir = dentry.NewCache()
	fs := &stubFS{name: "removable"}
	if err := m.MountFS(Ctx{FS: fs}); err != nil {
		t.Fatalf("MountFS: %v", err)
	}

	m.Unmount(fs)

	if m.IsMountPath(vpath.Path("/")) {
		t.Fatal("expected \"/\" to no longer be a mount path after unmount")
	}
}
