// Package ramfs implements an in-memory filesystem: monotonically
// numbered inodes, each backed by a list of 4 KiB blocks holding
// either file data or, for directories, a packed directory-entry
// table.
//
// Grounded on original_source/kernel/src/fs/ramfs/mod.rs. The block
// list itself is adapted from biscuit's fs/blk.go BlkList_t
// (container/list wrapping block pointers), repurposed from on-disk
// block caching to in-memory-only storage since this kernel has no
// disk driver (spec.md Non-goals).
package ramfs

import (
	"container/list"
	"sync"

	"biscuit/tick"
	"biscuit/vfs"
	"biscuit/vpath"
)

const fsName = "ramfs"

// blockSize matches the page size so a block can be handed out by the
// page allocator directly in a fuller implementation; here it is just
// the unit directory entries are packed into.
const blockSize = 4096

// dirEntrySize is the packed, fixed-width directory entry: an 8-byte
// inode number, a 1-byte name length, and a 247-byte name buffer.
const dirEntrySize = 256

// FileSystem is a ramfs instance. Each mount gets its own; there is no
// shared global state.
type FileSystem struct {
	sb *superBlock
}

// New builds an unmounted ramfs instance.
func New() *FileSystem {
	return &FileSystem{sb: &superBlock{inodes: map[uint64]*inode{}}}
}

func (fs *FileSystem) Name() string             { return fsName }
func (fs *FileSystem) MountType() vfs.MountType { return vfs.NoDevice }

func (fs *FileSystem) InitSuper() error {
	fs.sb.mu.Lock()
	defer fs.sb.mu.Unlock()

	root := fs.sb.createInodeLocked()
	root.mode = vfs.ModeDirectory
	fs.sb.root = root.num
	return nil
}

func (fs *FileSystem) Superblock() vfs.SuperBlock { return fs.sb }

type superBlock struct {
	mu     sync.RWMutex
	root   uint64
	count  uint64
	inodes map[uint64]*inode
}

func (sb *superBlock) Root() (vfs.Inode, error) {
	sb.mu.RLock()
	defer sb.mu.RUnlock()
	return sb.inodes[sb.root].toVFS(), nil
}

func (sb *superBlock) createInodeLocked() *inode {
	now := tick.Get()
	key := sb.count
	i := &inode{
		num:              key,
		blocks:           list.New(),
		creationTime:     now,
		lastAccess:       now,
		lastModification: now,
	}
	sb.inodes[key] = i
	sb.count++
	return i
}

func (sb *superBlock) CreateInode() (vfs.Inode, error) {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	return sb.createInodeLocked().toVFS(), nil
}

func (sb *superBlock) GetInode(num uint64) (vfs.Inode, bool, error) {
	sb.mu.RLock()
	defer sb.mu.RUnlock()
	i, ok := sb.inodes[num]
	if !ok {
		return vfs.Inode{}, false, nil
	}
	return i.toVFS(), true, nil
}

func (sb *superBlock) DestroyInode(num uint64) error {
	return vfs.ErrUnimplemented("ramfs: destroy_inode")
}

func (sb *superBlock) WriteInode(vi *vfs.Inode) error {
	ri, ok := vi.Private.(*inode)
	if !ok {
		return vfs.ErrWrongInode("ramfs: WriteInode given a foreign inode")
	}

	sb.mu.Lock()
	defer sb.mu.Unlock()
	if _, ok := sb.inodes[ri.num]; !ok {
		return vfs.ErrMissingInode("ramfs: WriteInode for an unknown inode number")
	}
	sb.inodes[ri.num] = ri
	return nil
}

// inode is ramfs's private per-file state. vfs.Inode.Private points at
// one of these; Ops always points at the package-level ops value.
type inode struct {
	mode       vfs.Mode
	permission vfs.Permission
	userID     uint16
	groupID    uint16

	num  uint64
	size uint64
	nlink uint16

	mu     sync.RWMutex
	blocks *list.List // of *[blockSize]byte

	lastAccess       uint64
	creationTime     uint64
	lastModification uint64
}

func (i *inode) blockCount() uint64 {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return uint64(i.blocks.Len())
}

func (i *inode) toVFS() vfs.Inode {
	return vfs.Inode{
		Mode:                 i.mode,
		Permission:           i.permission,
		UserID:               i.userID,
		GroupID:              i.groupID,
		Num:                  i.num,
		Size:                 i.size,
		Nlink:                i.nlink,
		Blocks:               i.blockCount(),
		LastAccessTime:       i.lastAccess,
		CreationTime:         i.creationTime,
		LastModificationTime: i.lastModification,
		Ops:                  ops,
		Private:              i,
	}
}

// dirEntry is one packed 256-byte directory entry: inode number, name
// length, and a fixed 247-byte name buffer.
type dirEntry struct {
	inode  uint64
	length uint8
	name   [247]byte
}

func encodeDirEntry(e dirEntry) []byte {
	buf := make([]byte, dirEntrySize)
	for i := 0; i < 8; i++ {
		buf[i] = byte(e.inode >> (8 * i))
	}
	buf[8] = e.length
	copy(buf[9:], e.name[:])
	return buf
}

func decodeDirEntry(buf []byte) dirEntry {
	var e dirEntry
	for i := 0; i < 8; i++ {
		e.inode |= uint64(buf[i]) << (8 * i)
	}
	e.length = buf[8]
	copy(e.name[:], buf[9:dirEntrySize])
	return e
}

// appendDirEntry writes entry into the first free (inode==0) slot of
// an existing block, or allocates a new block if none has room.
func appendDirEntry(parent *inode, entry dirEntry) {
	parent.mu.Lock()
	defer parent.mu.Unlock()

	for e := parent.blocks.Front(); e != nil; e = e.Next() {
		block := e.Value.(*[blockSize]byte)
		for off := 0; off+dirEntrySize <= blockSize; off += dirEntrySize {
			if decodeDirEntry(block[off:off+dirEntrySize]).inode == 0 {
				copy(block[off:off+dirEntrySize], encodeDirEntry(entry))
				return
			}
		}
	}

	block := new([blockSize]byte)
	copy(block[:dirEntrySize], encodeDirEntry(entry))
	parent.blocks.PushBack(block)
}

type opsT struct{}

var ops vfs.InodeOps = opsT{}

func (opsT) addDirEntry(dst, parent *vfs.Inode, name vpath.Component, inheritPerm bool) (*inode, *inode, error) {
	if name.Kind != vpath.Normal {
		return nil, nil, vfs.ErrBadPath("ramfs: directory entries must be normal path components")
	}
	if !parent.IsDir() {
		return nil, nil, vfs.ErrNotDirectory("ramfs: parent is not a directory")
	}

	entries, err := ops.List(parent)
	if err != nil {
		return nil, nil, err
	}
	for _, e := range entries {
		if e.Name == name.AsPath() {
			return nil, nil, vfs.ErrExists("ramfs: entry already exists")
		}
	}

	iDst, ok := dst.Private.(*inode)
	if !ok {
		return nil, nil, vfs.ErrWrongInode("ramfs: dst is not a ramfs inode")
	}
	iParent, ok := parent.Private.(*inode)
	if !ok {
		return nil, nil, vfs.ErrWrongInode("ramfs: parent is not a ramfs inode")
	}

	nameStr := name.Name
	var entry dirEntry
	entry.inode = iDst.num
	entry.length = uint8(len(nameStr))
	copy(entry.name[:], nameStr)
	appendDirEntry(iParent, entry)

	if inheritPerm {
		iDst.permission = iParent.permission
	}

	now := tick.Get()
	iDst.lastModification, iDst.lastAccess = now, now
	iParent.lastModification, iParent.lastAccess = now, now

	return iDst, iParent, nil
}

func (o opsT) Create(dst *vfs.Inode, parent vfs.DEntryRef, name vpath.Component) error {
	pInode := parent.InodeValue()
	iDst, _, err := o.addDirEntry(dst, &pInode, name, true)
	if err != nil {
		return err
	}
	iDst.mode = vfs.ModeRegular
	*dst = iDst.toVFS()
	return nil
}

func (o opsT) Link(src *vfs.Inode, parent vfs.DEntryRef, name vpath.Component) error {
	pInode := parent.InodeValue()
	iDst, _, err := o.addDirEntry(src, &pInode, name, false)
	if err != nil {
		return err
	}
	*src = iDst.toVFS()
	return nil
}

func (o opsT) Symlink(dst *vfs.Inode, target vpath.Path, parent vfs.DEntryRef, name vpath.Component) error {
	pInode := parent.InodeValue()
	iDst, _, err := o.addDirEntry(dst, &pInode, name, true)
	if err != nil {
		return err
	}
	iDst.mode = vfs.ModeSymlink

	s := string(target)
	if len(s) > blockSize {
		return vfs.ErrBadPath("ramfs: symlink target too long for one block")
	}
	iDst.size = uint64(len(s))

	block := new([blockSize]byte)
	copy(block[:], s)
	iDst.mu.Lock()
	iDst.blocks.PushBack(block)
	iDst.mu.Unlock()

	*dst = iDst.toVFS()
	return nil
}

func (opsT) Unlink(dst *vfs.Inode, parent vfs.DEntryRef) error {
	return vfs.ErrUnimplemented("ramfs: unlink")
}

func (opsT) Rename(src *vfs.Inode, srcParent, dstParent vfs.DEntryRef, name vpath.Component) error {
	return vfs.ErrUnimplemented("ramfs: rename")
}

func (o opsT) Mkdir(dst *vfs.Inode, parent vfs.DEntryRef, name vpath.Component) error {
	pInode := parent.InodeValue()
	iDst, _, err := o.addDirEntry(dst, &pInode, name, true)
	if err != nil {
		return err
	}
	iDst.mode = vfs.ModeDirectory
	*dst = iDst.toVFS()
	return nil
}

func (opsT) List(vi *vfs.Inode) ([]vfs.DirEntry, error) {
	i, ok := vi.Private.(*inode)
	if !ok {
		return nil, vfs.ErrWrongInode("ramfs: List given a foreign inode")
	}
	if i.mode&vfs.ModeDirectory == 0 {
		return nil, vfs.ErrNotDirectory("ramfs: List on a non-directory")
	}

	i.mu.RLock()
	defer i.mu.RUnlock()

	var out []vfs.DirEntry
	for e := i.blocks.Front(); e != nil; e = e.Next() {
		block := e.Value.(*[blockSize]byte)
		for off := 0; off+dirEntrySize <= blockSize; off += dirEntrySize {
			entry := decodeDirEntry(block[off : off+dirEntrySize])
			if entry.inode == 0 || entry.length == 0 {
				continue
			}
			out = append(out, vfs.DirEntry{
				Name:  vpath.Path(entry.name[:entry.length]),
				Inode: entry.inode,
			})
		}
	}
	return out, nil
}
