package expr

import "github.com/docql/docql/field"

// A DocVar is a reference into a document: the document root, or a
// field path below it.  DocVars inside an op are always expressed
// relative to the output document of that op's source.
type DocVar struct {
	Path field.Path
}

// Root is the reference to the whole document.
func Root() DocVar {
	return DocVar{}
}

// DocField references the document member at path.
func DocField(path field.Path) DocVar {
	return DocVar{Path: path}
}

func (v DocVar) IsRoot() bool {
	return len(v.Path) == 0
}

// Cat returns the reference to w inside the document referenced by v.
func (v DocVar) Cat(w DocVar) DocVar {
	return DocVar{Path: v.Path.Concat(w.Path)}
}

func (v DocVar) StartsWith(w DocVar) bool {
	return v.Path.HasPrefix(w.Path)
}

// Deref returns the field path of v, or false when v is the root.
func (v DocVar) Deref() (field.Path, bool) {
	if v.IsRoot() {
		return nil, false
	}
	return v.Path, true
}

func (v DocVar) Equal(to DocVar) bool {
	return v.Path.Equal(to.Path)
}

func (v DocVar) String() string {
	if v.IsRoot() {
		return "$$ROOT"
	}
	return "$" + v.Path.String()
}
