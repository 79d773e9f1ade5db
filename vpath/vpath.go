// Package vpath implements path algebra over '/'-separated strings:
// component iteration from both ends, parent/file-name/extension
// splitting, and an owned, mutable PathBuf akin to Rust's PathBuf.
// Single-rooted, no drive letters or UNC prefixes — this kernel only
// ever sees one filesystem namespace.
//
// Grounded on original_source/kernel/src/fs/path/{mod,components,pathbuf,ancestors}.rs,
// itself a no_std rewrite of Rust std::path trimmed to a single
// separator and no path prefixes.
package vpath

import "strings"

// Separator is the sole path component delimiter.
const Separator = '/'

// Path is a borrowed, immutable path slice.
type Path string

// ComponentKind distinguishes the four shapes a path component can take.
type ComponentKind int

const (
	RootDir ComponentKind = iota
	CurDir
	ParentDir
	Normal
)

// Component is one element yielded by Components: RootDir and CurDir
// carry no text, ParentDir is always "..", Normal carries its name.
type Component struct {
	Kind ComponentKind
	Name string
}

// AsPath renders the component back into a one-element path.
func (c Component) AsPath() Path {
	switch c.Kind {
	case RootDir:
		return Path(string(Separator))
	case CurDir:
		return "."
	case ParentDir:
		return ".."
	default:
		return Path(c.Name)
	}
}

func hasPhysicalRoot(s string) bool {
	return len(s) > 0 && s[0] == Separator
}

func parseSingleComponent(comp string) (Component, bool) {
	switch comp {
	case ".", "":
		return Component{}, false // CurDir is handled by includeCurDir at StartDir
	case "..":
		return Component{Kind: ParentDir}, true
	default:
		return Component{Kind: Normal, Name: comp}, true
	}
}

type iterState int

const (
	stateStartDir iterState = iota
	stateBody
	stateDone
)

// Components iterates a Path's components from the front, the back,
// or both — mirroring Rust's std::path::Components.
type Components struct {
	path            string
	hasPhysicalRoot bool
	front, back     iterState
}

// NewComponents builds a Components iterator over p.
func NewComponents(p Path) *Components {
	s := string(p)
	return &Components{
		path:            s,
		hasPhysicalRoot: hasPhysicalRoot(s),
		front:           stateStartDir,
		back:            stateBody,
	}
}

// Components returns an iterator over p's components.
func (p Path) Components() *Components { return NewComponents(p) }

// HasRoot reports whether p begins with Separator.
func (p Path) HasRoot() bool { return hasPhysicalRoot(string(p)) }

// IsAbsolute reports whether p is rooted.
func (p Path) IsAbsolute() bool { return p.HasRoot() }

// IsRelative is the negation of IsAbsolute.
func (p Path) IsRelative() bool { return !p.IsAbsolute() }

func (c *Components) clone() *Components {
	cp := *c
	return &cp
}

// AsPath renders the remaining, not-yet-consumed portion of the
// iterator back into a Path, trimming any separator runs exposed by
// iteration from either end.
func (c *Components) AsPath() Path {
	cp := c.clone()
	if cp.front == stateBody {
		cp.trimLeft()
	}
	if cp.back == stateBody {
		cp.trimRight()
	}
	return Path(cp.path)
}

func (c *Components) finished() bool {
	return c.front == stateDone || c.back == stateDone || c.front > c.back
}

func (c *Components) lenBeforeBody() int {
	n := 0
	if c.front <= stateStartDir && c.hasPhysicalRoot {
		n++
	}
	if c.front <= stateStartDir && c.includeCurDir() {
		n++
	}
	return n
}

func (c *Components) includeCurDir() bool {
	if c.hasPhysicalRoot {
		return false
	}
	if len(c.path) == 0 || c.path[0] != '.' {
		return false
	}
	if len(c.path) == 1 {
		return true
	}
	return c.path[1] == Separator
}

// parseNextComponent returns how many bytes to consume from the front
// to remove the next component, and the component itself if any.
func (c *Components) parseNextComponent() (int, Component, bool) {
	i := strings.IndexByte(c.path, Separator)
	var extra int
	var comp string
	if i < 0 {
		extra, comp = 0, c.path
	} else {
		extra, comp = 1, c.path[:i]
	}
	parsed, ok := parseSingleComponent(comp)
	return len(comp) + extra, parsed, ok
}

func (c *Components) parseNextComponentBack() (int, Component, bool) {
	start := c.lenBeforeBody()
	body := c.path[start:]
	i := strings.LastIndexByte(body, Separator)
	var extra int
	var comp string
	if i < 0 {
		extra, comp = 0, body
	} else {
		extra, comp = 1, body[i+1:]
	}
	parsed, ok := parseSingleComponent(comp)
	return len(comp) + extra, parsed, ok
}

func (c *Components) trimLeft() {
	for len(c.path) > 0 {
		size, _, ok := c.parseNextComponent()
		if ok {
			return
		}
		c.path = c.path[size:]
	}
}

func (c *Components) trimRight() {
	for len(c.path) > c.lenBeforeBody() {
		size, _, ok := c.parseNextComponentBack()
		if ok {
			return
		}
		c.path = c.path[:len(c.path)-size]
	}
}

// Next returns the next component from the front, or ok=false when
// iteration is exhausted.
func (c *Components) Next() (Component, bool) {
	for !c.finished() {
		switch c.front {
		case stateStartDir:
			c.front = stateBody
			if c.hasPhysicalRoot {
				c.path = c.path[1:]
				return Component{Kind: RootDir}, true
			}
			if c.includeCurDir() {
				c.path = c.path[1:]
				return Component{Kind: CurDir}, true
			}
		case stateBody:
			if len(c.path) == 0 {
				c.front = stateDone
				continue
			}
			size, comp, ok := c.parseNextComponent()
			c.path = c.path[size:]
			if ok {
				return comp, true
			}
		}
	}
	return Component{}, false
}

// NextBack returns the next component from the back, or ok=false when
// iteration is exhausted.
func (c *Components) NextBack() (Component, bool) {
	for !c.finished() {
		switch c.back {
		case stateBody:
			if len(c.path) <= c.lenBeforeBody() {
				c.back = stateStartDir
				continue
			}
			size, comp, ok := c.parseNextComponentBack()
			c.path = c.path[:len(c.path)-size]
			if ok {
				return comp, true
			}
		case stateStartDir:
			c.back = stateDone
			if c.hasPhysicalRoot {
				c.path = c.path[:len(c.path)-1]
				return Component{Kind: RootDir}, true
			}
			if c.includeCurDir() {
				c.path = c.path[:len(c.path)-1]
				return Component{Kind: CurDir}, true
			}
		}
	}
	return Component{}, false
}

// Parent returns p with its final component removed. A path of one
// relative component, such as "a" or ".", has parent "". It returns
// ("", false) if p has no parent (it is empty or "/").
func (p Path) Parent() (Path, bool) {
	comps := p.Components()
	last, ok := comps.NextBack()
	if !ok {
		return "", false
	}
	switch last.Kind {
	case CurDir, ParentDir, Normal:
		return comps.AsPath(), true
	default: // RootDir
		return "", false
	}
}

// FileName returns p's final component if it is a normal name.
func (p Path) FileName() (string, bool) {
	comps := p.Components()
	last, ok := comps.NextBack()
	if !ok || last.Kind != Normal {
		return "", false
	}
	return last.Name, true
}

func rsplitFileAtDot(file string) (before, after string, hasAfter bool) {
	if file == ".." {
		return file, "", false
	}
	i := strings.LastIndexByte(file, '.')
	if i <= 0 {
		return file, "", false
	}
	return file[:i], file[i+1:], true
}

// FileStem returns the file name with its final extension, if any,
// stripped.
func (p Path) FileStem() (string, bool) {
	name, ok := p.FileName()
	if !ok {
		return "", false
	}
	before, _, _ := rsplitFileAtDot(name)
	return before, true
}

// Extension returns the file name's final extension, without the dot.
func (p Path) Extension() (string, bool) {
	name, ok := p.FileName()
	if !ok {
		return "", false
	}
	_, after, hasAfter := rsplitFileAtDot(name)
	return after, hasAfter
}

// Join appends other to p, following the same rules as PathBuf.Push.
func (p Path) Join(other Path) Path {
	buf := NewPathBuf(p)
	buf.Push(other)
	return buf.AsPath()
}

// WithExtension returns a copy of p with its extension replaced by
// ext (no leading dot); if p has no extension, ext is appended.
func (p Path) WithExtension(ext string) Path {
	stem, _ := p.FileStem()
	dir, hasParent := p.Parent()
	var base string
	if hasParent && dir != "" {
		base = string(dir.Join(Path(stem)))
	} else {
		base = stem
	}
	if ext == "" {
		return Path(base)
	}
	return Path(base + "." + ext)
}

func (p Path) String() string { return string(p) }

// Ancestors yields p, then each of p's ancestors in turn, ending at
// the root (or the shortest relative prefix).
type Ancestors struct {
	next    Path
	hasNext bool
}

// NewAncestors builds an Ancestors iterator starting at p.
func NewAncestors(p Path) *Ancestors {
	return &Ancestors{next: p, hasNext: true}
}

// Ancestors returns an iterator over p and its ancestors.
func (p Path) Ancestors() *Ancestors { return NewAncestors(p) }

// Next returns the next ancestor, or ok=false once exhausted.
func (a *Ancestors) Next() (Path, bool) {
	if !a.hasNext {
		return "", false
	}
	cur := a.next
	parent, ok := cur.Parent()
	a.next, a.hasNext = parent, ok
	return cur, true
}

// PathBuf is an owned, mutable path, analogous to String for Path.
type PathBuf struct {
	s string
}

// NewPathBuf builds a PathBuf initialized to p.
func NewPathBuf(p Path) *PathBuf {
	return &PathBuf{s: string(p)}
}

// AsPath borrows buf as a Path.
func (buf *PathBuf) AsPath() Path { return Path(buf.s) }

func (buf *PathBuf) String() string { return buf.s }

// Push appends path to buf: an absolute path replaces buf entirely; a
// rooted-but-relative path (rare outside this single-root scheme) is
// appended as-is; otherwise a separator is inserted if buf doesn't
// already end in one.
func (buf *PathBuf) Push(path Path) {
	needSep := len(buf.s) > 0 && buf.s[len(buf.s)-1] != Separator

	if path.IsAbsolute() {
		buf.s = ""
	} else if path.HasRoot() {
		// pure relative path rooted at "": nothing to do
	} else if needSep {
		buf.s += string(Separator)
	}
	buf.s += string(path)
}

// Pop removes buf's final component, reporting whether there was one
// to remove.
func (buf *PathBuf) Pop() bool {
	parent, ok := buf.AsPath().Parent()
	if !ok {
		return false
	}
	buf.s = string(parent)
	return true
}

// SetFileName replaces buf's final component with name, or appends it
// if buf currently has none.
func (buf *PathBuf) SetFileName(name string) {
	if _, ok := buf.AsPath().FileName(); ok {
		buf.Pop()
	}
	buf.Push(Path(name))
}

// SetExtension replaces buf's extension with ext (no leading dot),
// reporting whether buf had a file name to attach it to.
func (buf *PathBuf) SetExtension(ext string) bool {
	stem, ok := buf.AsPath().FileStem()
	if !ok {
		return false
	}
	dir, hasParent := buf.AsPath().Parent()
	var base string
	if hasParent && dir != "" {
		base = string(dir.Join(Path(stem)))
	} else {
		base = stem
	}
	if ext != "" {
		base += "." + ext
	}
	buf.s = base
	return true
}
