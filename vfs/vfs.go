// Package vfs defines the filesystem-independent interfaces every
// backing store implements: FileSystem, SuperBlock, InodeOps, and the
// Inode value they operate on.
//
// Grounded on original_source/kernel/src/fs/vfs/{mod,error,file_iter}.rs.
package vfs

import (
	"biscuit/kerr"
	"biscuit/vpath"
)

// Mode flags an inode's type.
type Mode uint8

const (
	ModeFIFO Mode = 1 << iota
	ModeCharDevice
	ModeDirectory
	ModeBlockDevice
	ModeRegular
	ModeSymlink
	ModeSocket
)

// Permission is a classic rwx/owner/group/other/sticky bit set.
type Permission uint16

const (
	PermOtherExecute Permission = 1 << iota
	PermOtherWrite
	PermOtherRead
	PermGroupExecute
	PermGroupWrite
	PermGroupRead
	PermUserExecute
	PermUserWrite
	PermUserRead
	PermSticky
)

// MountType distinguishes how a FileSystem is backed. This kernel only
// mounts filesystems with no backing block device (ramfs).
type MountType int

const NoDevice MountType = 0

// Inode is the filesystem-independent view of one file or directory.
// Its Ops pointer dispatches operations to the owning filesystem;
// private carries filesystem-specific state (ramfs stores its inode
// number and block list there).
type Inode struct {
	Mode       Mode
	Permission Permission
	UserID     uint16
	GroupID    uint16

	Num  uint64
	Size uint64
	Nlink uint16
	Blocks uint64

	LastAccessTime       uint64
	CreationTime         uint64
	LastModificationTime uint64

	Ops     InodeOps
	Private any
}

// IsDir reports whether the inode is a directory.
func (i *Inode) IsDir() bool { return i.Mode&ModeDirectory != 0 }

// DirEntry is one (name, inode number) pair yielded while listing a
// directory.
type DirEntry struct {
	Name  vpath.Path
	Inode uint64
}

// InodeOps is the set of mutating operations a filesystem implements
// for its inodes. Implementations must not commit changes to parent
// inodes or to the inode itself — callers own writing the inode back
// to its superblock.
type InodeOps interface {
	Create(dst *Inode, parent DEntryRef, name vpath.Component) error
	Link(src *Inode, parent DEntryRef, name vpath.Component) error
	Symlink(dst *Inode, target vpath.Path, parent DEntryRef, name vpath.Component) error
	Unlink(dst *Inode, parent DEntryRef) error
	Rename(src *Inode, srcParent, dstParent DEntryRef, name vpath.Component) error
	Mkdir(dst *Inode, parent DEntryRef, name vpath.Component) error
	List(inode *Inode) ([]DirEntry, error)
}

// DEntryRef is the minimal view InodeOps needs of a directory entry:
// its filesystem and cached inode. The dentry package's *DEntry
// satisfies this; kept as an interface here so vfs does not import
// dentry (which imports vfs).
type DEntryRef interface {
	FS() FileSystem
	InodeValue() Inode
}

// SuperBlock owns inode lifecycle for one mounted filesystem.
type SuperBlock interface {
	Root() (Inode, error)
	CreateInode() (Inode, error)
	GetInode(num uint64) (Inode, bool, error)
	DestroyInode(num uint64) error
	WriteInode(inode *Inode) error
}

// FileSystem is one mountable backing store.
type FileSystem interface {
	Name() string
	MountType() MountType
	InitSuper() error
	Superblock() SuperBlock
}

// ErrNotDirectory, ErrNoEntry, etc. are convenience constructors over the
// shared kerr taxonomy so filesystem code doesn't repeat the
// kerr.New(kerr.Kind, "...") boilerplate for the common cases.
func ErrBadPath(context string) error     { return kerr.New(kerr.BadPath, context) }
func ErrNoEntry(context string) error     { return kerr.New(kerr.NoEntry, context) }
func ErrNoMount(context string) error     { return kerr.New(kerr.NoMount, context) }
func ErrMissingInode(context string) error { return kerr.New(kerr.MissingInode, context) }
func ErrWrongInode(context string) error  { return kerr.New(kerr.WrongInode, context) }
func ErrNotDirectory(context string) error { return kerr.New(kerr.NotDirectory, context) }
func ErrExists(context string) error      { return kerr.New(kerr.Exists, context) }
func ErrUnimplemented(context string) error { return kerr.New(kerr.Unimplemented, context) }
