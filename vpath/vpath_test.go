package vpath

import "testing"

func collect(c *Components) []Component {
	var out []Component
	for {
		comp, ok := c.Next()
		if !ok {
			return out
		}
		out = append(out, comp)
	}
}

func TestComponentsAbsolute(t *testing.T) {
	got := collect(Path("/a/b/c").Components())
	want := []ComponentKind{RootDir, Normal, Normal, Normal}
	if len(got) != len(want) {
		t.Fatalf("got %d components, want %d: %+v", len(got), len(want), got)
	}
	for i, k := range want {
		if got[i].Kind != k {
			t.Errorf("component %d kind = %v, want %v", i, got[i].Kind, k)
		}
	}
	if got[1].Name != "a" || got[2].Name != "b" || got[3].Name != "c" {
		t.Errorf("names = %+v", got)
	}
}

func TestComponentsCollapsesRepeatedSeparators(t *testing.T) {
	got := collect(Path("/a//b///c/").Components())
	if len(got) != 4 {
		t.Fatalf("got %d components, want 4: %+v", len(got), got)
	}
}

func TestComponentsRelativeWithCurAndParent(t *testing.T) {
	got := collect(Path("./a/../b").Components())
	want := []ComponentKind{CurDir, Normal, ParentDir, Normal}
	if len(got) != len(want) {
		t.Fatalf("got %d components, want %d: %+v", len(got), len(want), got)
	}
	for i, k := range want {
		if got[i].Kind != k {
			t.Errorf("component %d kind = %v, want %v", i, got[i].Kind, k)
		}
	}
}

func TestComponentsBidirectional(t *testing.T) {
	c := Path("/a/b/c").Components()
	first, ok := c.Next()
	if !ok || first.Kind != RootDir {
		t.Fatalf("first = %+v", first)
	}
	last, ok := c.NextBack()
	if !ok || last.Kind != Normal || last.Name != "c" {
		t.Fatalf("last = %+v", last)
	}
	mid, ok := c.Next()
	if !ok || mid.Name != "a" {
		t.Fatalf("mid = %+v", mid)
	}
}

func TestParent(t *testing.T) {
	cases := []struct {
		in       Path
		want     Path
		hasParent bool
	}{
		{"/a/b", "/a", true},
		{"/a", "/", true},
		{"/", "", false},
		{"a", "", true},
		{"a/b", "a", true},
	}
	for _, c := range cases {
		got, ok := c.in.Parent()
		if ok != c.hasParent || got != c.want {
			t.Errorf("Parent(%q) = (%q, %v), want (%q, %v)", c.in, got, ok, c.want, c.hasParent)
		}
	}
}

func TestFileNameStemExtension(t *testing.T) {
	name, ok := Path("/a/b.txt").FileName()
	if !ok || name != "b.txt" {
		t.Fatalf("FileName = (%q, %v)", name, ok)
	}
	stem, ok := Path("/a/b.txt").FileStem()
	if !ok || stem != "b" {
		t.Fatalf("FileStem = (%q, %v)", stem, ok)
	}
	ext, ok := Path("/a/b.txt").Extension()
	if !ok || ext != "txt" {
		t.Fatalf("Extension = (%q, %v)", ext, ok)
	}
	if _, ok := Path("/a/b").Extension(); ok {
		t.Fatalf("expected no extension for /a/b")
	}
	if _, ok := Path("/a/..").FileStem(); ok {
		t.Fatalf("a path ending in .. has no file name, hence no stem")
	}
}

func TestJoin(t *testing.T) {
	if got := Path("/a").Join("b"); got != "/a/b" {
		t.Errorf("Join = %q", got)
	}
	if got := Path("/a").Join("/b"); got != "/b" {
		t.Errorf("Join with absolute should replace: got %q", got)
	}
}

func TestWithExtension(t *testing.T) {
	if got := Path("/a/b.txt").WithExtension("md"); got != "/a/b.md" {
		t.Errorf("WithExtension = %q", got)
	}
	if got := Path("/a/b").WithExtension("md"); got != "/a/b.md" {
		t.Errorf("WithExtension (no prior ext) = %q", got)
	}
}

func TestPathBufPushPopSetFileName(t *testing.T) {
	buf := NewPathBuf("/a")
	buf.Push("b")
	if buf.String() != "/a/b" {
		t.Fatalf("after Push: %q", buf.String())
	}
	buf.SetFileName("c")
	if buf.String() != "/a/c" {
		t.Fatalf("after SetFileName: %q", buf.String())
	}
	if !buf.Pop() || buf.String() != "/a" {
		t.Fatalf("after Pop: %q", buf.String())
	}
}

func TestAncestors(t *testing.T) {
	var got []Path
	a := Path("/a/b/c").Ancestors()
	for {
		p, ok := a.Next()
		if !ok {
			break
		}
		got = append(got, p)
	}
	want := []Path{"/a/b/c", "/a/b", "/a", "/"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("ancestor %d = %q, want %q", i, got[i], want[i])
		}
	}
}
