// Package dentry implements the directory-entry cache: a bounded
// path -> (inode, filesystem) map with LRU-by-tick eviction, filled
// lazily by walking from the nearest cached ancestor.
//
// Grounded on original_source/kernel/src/fs/dentry.rs (DirectoryCache,
// fill_path's ancestor walk, insert_entry/evict_entry).
package dentry

import (
	"sync"

	"biscuit/tick"
	"biscuit/vfs"
	"biscuit/vpath"
)

// cacheSize bounds the number of cached entries. The original sizes
// its cache to a fixed byte budget (0x8000) divided by one entry's
// size; this kernel picks the same order of magnitude directly, since
// Go's DEntry is a different concrete size than the original's
// Arc<RwLock<..>> entry.
const cacheSize = 4096

// isMountPath reports whether path is a live mount root and so must
// never be evicted. Set by package mount's init to break the import
// cycle dentry<->mount that exists in the original (dentry consults
// the global mount table; mount holds DEntry values). Defaults to
// "nothing is a mount point" so the cache still functions, degraded,
// if mount is never linked in.
var isMountPath = func(vpath.Path) bool { return false }

// SetMountChecker installs the predicate used to protect mount roots
// from eviction.
func SetMountChecker(f func(vpath.Path) bool) {
	isMountPath = f
}

type cacheEntry struct {
	dentry     *DEntry
	lastAccess uint64
}

// Cache is a bounded, path-keyed cache of DEntry values.
type Cache struct {
	mu      sync.RWMutex
	entries map[vpath.Path]*cacheEntry
}

// Dir is the process-wide directory cache.
var Dir = NewCache()

// NewCache builds an empty cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[vpath.Path]*cacheEntry, cacheSize)}
}

// Mount inserts dentry, typically a filesystem's root, unconditionally
// (mount roots are always cached, never lazily filled).
func (c *Cache) Mount(d *DEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.insertLocked(d)
}

// Reload re-reads dentry's inode from its filesystem's superblock,
// removing the cache entry entirely if the inode no longer exists.
func (c *Cache) Reload(d *DEntry) error {
	sb := d.FS().Superblock()
	inode, ok, err := sb.GetInode(d.InodeValue().Num)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if ok {
		d.setInode(inode)
	} else {
		delete(c.entries, d.Name())
	}
	return nil
}

func (c *Cache) getCached(path vpath.Path) (*DEntry, bool) {
	c.mu.RLock()
	e, ok := c.entries[path]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	e.lastAccess = tick.Get()
	return e.dentry, true
}

// Get resolves path to a DEntry, filling the cache from the nearest
// cached ancestor if path itself isn't cached yet.
func (c *Cache) Get(path vpath.Path) (*DEntry, error) {
	if d, ok := c.getCached(path); ok {
		return d, nil
	}

	ancestors := path.Ancestors()
	for {
		ancestor, ok := ancestors.Next()
		if !ok {
			break
		}
		d, ok := c.getCached(ancestor)
		if !ok {
			continue
		}

		remaining := stripPrefix(path, ancestor)
		c.mu.Lock()
		defer c.mu.Unlock()
		return c.fillPath(ancestor, d, remaining)
	}

	return nil, vfs.ErrNoMount("no filesystem mounted at root")
}

// stripPrefix returns path's components after ancestor's, assuming
// ancestor really is a prefix of path (guaranteed here since ancestor
// came from path.Ancestors()).
func stripPrefix(path, ancestor vpath.Path) []vpath.Component {
	full := collectComponents(path)
	prefix := collectComponents(ancestor)
	return full[len(prefix):]
}

func collectComponents(p vpath.Path) []vpath.Component {
	var out []vpath.Component
	comps := p.Components()
	for {
		c, ok := comps.Next()
		if !ok {
			return out
		}
		out = append(out, c)
	}
}

// fillPath walks forward from (parent, pdentry) consuming comps one
// directory entry at a time, caching each intermediate DEntry it
// creates. Caller holds c.mu for writing.
func (c *Cache) fillPath(parent vpath.Path, pdentry *DEntry, comps []vpath.Component) (*DEntry, error) {
	if len(comps) == 0 {
		return pdentry, nil
	}
	comp := comps[0]

	inode := pdentry.InodeValue()
	if !inode.IsDir() && len(comps) > 1 {
		return nil, vfs.ErrNoEntry("path component under a non-directory")
	}

	entries, err := inode.Ops.List(&inode)
	if err != nil {
		return nil, err
	}

	for _, de := range entries {
		if de.Name != comp.AsPath() {
			continue
		}

		newPath := vpath.NewPathBuf(parent)
		newPath.Push(de.Name)

		sb := pdentry.FS().Superblock()
		childInode, ok, err := sb.GetInode(de.Inode)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, vfs.ErrMissingInode("directory entry points at a missing inode")
		}

		child := NewDEntry(newPath.AsPath(), childInode, pdentry.FS())
		c.insertLocked(child)

		return c.fillPath(newPath.AsPath(), child, comps[1:])
	}

	return nil, vfs.ErrNoEntry("no such entry in parent directory")
}

// insertLocked adds entry to the cache, evicting the least recently
// used non-mount entry first if the cache is full. Caller holds c.mu.
func (c *Cache) insertLocked(d *DEntry) {
	if len(c.entries) >= cacheSize {
		c.evictLocked()
	}
	c.entries[d.Name()] = &cacheEntry{dentry: d, lastAccess: tick.Get()}
}

func (c *Cache) evictLocked() {
	var lruPath vpath.Path
	var lruTime uint64 = ^uint64(0)
	found := false

	for path, e := range c.entries {
		if isMountPath(path) {
			continue
		}
		if e.lastAccess < lruTime {
			lruPath, lruTime, found = path, e.lastAccess, true
		}
	}

	if found {
		delete(c.entries, lruPath)
	}
}

// Delete removes path's entry, if any.
func (c *Cache) Delete(path vpath.Path) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, path)
}

// DeleteInode drops every cached entry referring to inode num on fs.
func (c *Cache) DeleteInode(fs vfs.FileSystem, num uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for path, e := range c.entries {
		if e.dentry.FS().Name() == fs.Name() && e.dentry.InodeValue().Num == num {
			delete(c.entries, path)
		}
	}
}

// Unmount drops every cached entry belonging to fs.
func (c *Cache) Unmount(fs vfs.FileSystem) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for path, e := range c.entries {
		if e.dentry.FS().Name() == fs.Name() {
			delete(c.entries, path)
		}
	}
}

// DEntry is a cached, shared (path, inode, filesystem) triple.
type DEntry struct {
	mu    sync.RWMutex
	name  vpath.Path
	inode vfs.Inode
	fs    vfs.FileSystem
}

// NewDEntry builds a DEntry. It is not itself inserted into any cache.
func NewDEntry(name vpath.Path, inode vfs.Inode, fs vfs.FileSystem) *DEntry {
	return &DEntry{name: name, inode: inode, fs: fs}
}

// Reload re-reads this entry's inode via the package-level cache.
func (d *DEntry) Reload() error { return Dir.Reload(d) }

// Name returns the entry's cached path.
func (d *DEntry) Name() vpath.Path {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.name
}

// InodeValue returns a copy of the entry's cached inode.
func (d *DEntry) InodeValue() vfs.Inode {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.inode
}

func (d *DEntry) setInode(inode vfs.Inode) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.inode = inode
}

// FS returns the filesystem this entry belongs to.
func (d *DEntry) FS() vfs.FileSystem {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.fs
}
