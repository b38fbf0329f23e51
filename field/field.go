package field

import (
	"strconv"
	"strings"
)

// An Elem is one element of a Path: a document member name or an
// array position.
type Elem interface {
	String() string
	elem()
}

type (
	Name  string
	Index int
)

func (Name) elem()  {}
func (Index) elem() {}

func (n Name) String() string  { return string(n) }
func (i Index) String() string { return strconv.Itoa(int(i)) }

// A Path is a sequence of elements addressing a location inside a
// document.  An empty Path addresses the document itself.
type Path []Elem

func New(name string) Path {
	return Path{Name(name)}
}

func NewIndex(i int) Path {
	return Path{Index(i)}
}

func (p Path) String() string {
	if len(p) == 0 {
		return "this"
	}
	elems := make([]string, 0, len(p))
	for _, e := range p {
		elems = append(elems, e.String())
	}
	return strings.Join(elems, ".")
}

func (p Path) Leaf() Elem {
	return p[len(p)-1]
}

// LeafName returns the final element when it is a member name.
func (p Path) LeafName() (Name, bool) {
	if len(p) == 0 {
		return "", false
	}
	n, ok := p[len(p)-1].(Name)
	return n, ok
}

func (p Path) IsEmpty() bool {
	return len(p) == 0
}

func (p Path) Equal(to Path) bool {
	if len(p) != len(to) {
		return false
	}
	for k := range p {
		if p[k] != to[k] {
			return false
		}
	}
	return true
}

func (p Path) HasPrefix(prefix Path) bool {
	return len(p) >= len(prefix) && prefix.Equal(p[:len(prefix)])
}

func (p Path) HasStrictPrefix(prefix Path) bool {
	return len(p) > len(prefix) && prefix.Equal(p[:len(prefix)])
}

// Concat returns the path addressing q inside the location addressed
// by p.  Neither receiver nor argument is modified.
func (p Path) Concat(q Path) Path {
	if len(p) == 0 {
		return q
	}
	if len(q) == 0 {
		return p
	}
	out := make(Path, 0, len(p)+len(q))
	out = append(out, p...)
	return append(out, q...)
}

func (p Path) In(list List) bool {
	return list.Has(p)
}

// Dotted parses a dotted path string.  All-digit elements become
// array positions.
func Dotted(s string) Path {
	var p Path
	for _, elem := range strings.Split(s, ".") {
		if i, err := strconv.Atoi(elem); err == nil {
			p = append(p, Index(i))
		} else {
			p = append(p, Name(elem))
		}
	}
	return p
}

type List []Path

func (l List) String() string {
	paths := make([]string, 0, len(l))
	for _, p := range l {
		paths = append(paths, p.String())
	}
	return strings.Join(paths, ",")
}

func (l List) Has(in Path) bool {
	for _, p := range l {
		if p.Equal(in) {
			return true
		}
	}
	return false
}

func (l List) Equal(to List) bool {
	if len(l) != len(to) {
		return false
	}
	for k, p := range l {
		if !p.Equal(to[k]) {
			return false
		}
	}
	return true
}

// FlattenMapping maps each input collection of leaf names into a
// common namespace disjoint from every input, returning one bijection
// per collection.  Fresh names are assigned in input order so the
// result is deterministic.
func FlattenMapping(keyLists ...[]Name) []map[Name]Name {
	taken := make(map[Name]bool)
	for _, keys := range keyLists {
		for _, k := range keys {
			taken[k] = true
		}
	}
	var n int
	fresh := func() Name {
		for {
			name := Name("__f" + strconv.Itoa(n))
			n++
			if !taken[name] {
				return name
			}
		}
	}
	mappings := make([]map[Name]Name, len(keyLists))
	for i, keys := range keyLists {
		m := make(map[Name]Name, len(keys))
		for _, k := range keys {
			m[k] = fresh()
		}
		mappings[i] = m
	}
	return mappings
}
