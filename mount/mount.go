// Package mount implements the system mount table: mounting a
// filesystem with no backing block device (this kernel only ever
// mounts ramfs), caching its root dentry, and tracking mount points so
// the dentry cache never evicts one.
//
// Grounded on original_source/kernel/src/fs/{mount,mod}.rs
// (MountCtx/mount_nodev, the Mounts table, is_mount_path).
package mount

import (
	"sync"

	"biscuit/dentry"
	"biscuit/vfs"
	"biscuit/vpath"
)

func init() {
	dentry.SetMountChecker(Table.IsMountPath)
}

// Ctx describes one mount request.
type Ctx struct {
	FS   vfs.FileSystem
	Dest *dentry.DEntry   // mount point; nil means mount at "/"
}

// mountNodev brings up a filesystem that has no backing block device
// by calling its InitSuper and nothing else.
func mountNodev(fs vfs.FileSystem) (vfs.FileSystem, error) {
	if err := fs.InitSuper(); err != nil {
		return nil, err
	}
	return fs, nil
}

type entry struct {
	fs     vfs.FileSystem
	dentry *dentry.DEntry
}

// Mounts is the system-wide mount table.
type Mounts struct {
	mu     sync.RWMutex
	mounts []entry
}

// Table is the process-wide mount table.
var Table = NewMounts()

// NewMounts builds an empty mount table.
func NewMounts() *Mounts { return &Mounts{} }

// MountFS brings up ctx.FS and records it as mounted at ctx.Dest (or
// at "/" if ctx.Dest is nil), caching its root DEntry.
func (m *Mounts) MountFS(ctx Ctx) error {
	fs, err := mountNodev(ctx.FS)
	if err != nil {
		return err
	}

	d := ctx.Dest
	if d == nil {
		root, err := fs.Superblock().Root()
		if err != nil {
			return err
		}
		d = dentry.NewDEntry(vpath.Path("/"), root, fs)
	}

	m.mu.Lock()
	m.mounts = append(m.mounts, entry{fs: fs, dentry: d})
	m.mu.Unlock()

	dentry.Dir.Mount(d)
	return nil
}

// Unmount drops fs from the mount table and evicts every cache entry
// that belongs to it.
func (m *Mounts) Unmount(fs vfs.FileSystem) {
	m.mu.Lock()
	kept := m.mounts[:0]
	for _, e := range m.mounts {
		if e.fs.Name() != fs.Name() {
			kept = append(kept, e)
		}
	}
	m.mounts = kept
	m.mu.Unlock()

	dentry.Dir.Unmount(fs)
}

// IsMountPath reports whether path is a mounted filesystem's root.
func (m *Mounts) IsMountPath(path vpath.Path) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, e := range m.mounts {
		if e.dentry.Name() == path {
			return true
		}
	}
	return false
}
