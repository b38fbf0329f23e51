package expr

import (
	"github.com/docql/docql/bson"
	"github.com/docql/docql/field"
	"github.com/docql/docql/js"
)

// A Selector is a find-query predicate.  Selectors containing a JS
// Where predicate cannot be expressed as a pipeline stage.
type Selector interface {
	SelNode()
}

type (
	// True matches every document.
	True struct{}
	And  struct {
		Conds []Selector
	}
	Or struct {
		Conds []Selector
	}
	Nor struct {
		Conds []Selector
	}
	// A Term compares the named field against a literal with one of
	// the engine's query operators ($eq, $gt, $lt, $in, $exists, ...).
	Term struct {
		Field field.Path
		Op    string
		Value bson.Value
	}
	// Where runs a JS predicate over the whole document.
	Where struct {
		Fn js.Expr
	}
)

func (*True) SelNode()  {}
func (*And) SelNode()   {}
func (*Or) SelNode()    {}
func (*Nor) SelNode()   {}
func (*Term) SelNode()  {}
func (*Where) SelNode() {}

func NewTerm(path field.Path, op string, value bson.Value) *Term {
	return &Term{Field: path, Op: op, Value: value}
}

// SelAnd conjoins two selectors, flattening nested conjunctions and
// dropping match-all terms.
func SelAnd(a, b Selector) Selector {
	if _, ok := a.(*True); ok {
		return b
	}
	if _, ok := b.(*True); ok {
		return a
	}
	var conds []Selector
	if and, ok := a.(*And); ok {
		conds = append(conds, and.Conds...)
	} else {
		conds = append(conds, a)
	}
	if and, ok := b.(*And); ok {
		conds = append(conds, and.Conds...)
	} else {
		conds = append(conds, b)
	}
	return &And{Conds: conds}
}

// HasWhere reports whether s contains a JS predicate, including
// transitively through compound selectors.
func HasWhere(s Selector) bool {
	switch s := s.(type) {
	case *Where:
		return true
	case *And:
		return anyWhere(s.Conds)
	case *Or:
		return anyWhere(s.Conds)
	case *Nor:
		return anyWhere(s.Conds)
	}
	return false
}

func anyWhere(conds []Selector) bool {
	for _, c := range conds {
		if HasWhere(c) {
			return true
		}
	}
	return false
}

// SelectorFields returns the field paths s tests, in traversal order.
// A Where predicate reads the whole document and contributes no path.
func SelectorFields(s Selector) []field.Path {
	var paths []field.Path
	walkSelector(s, func(t *Term) *Term {
		paths = append(paths, t.Field)
		return t
	})
	return paths
}

// MapSelectorFields rebuilds s with every tested field path replaced
// by f's image.
func MapSelectorFields(s Selector, f func(field.Path) field.Path) Selector {
	return walkSelector(s, func(t *Term) *Term {
		return &Term{Field: f(t.Field), Op: t.Op, Value: t.Value}
	})
}

func walkSelector(s Selector, f func(*Term) *Term) Selector {
	switch s := s.(type) {
	case *Term:
		return f(s)
	case *And:
		return &And{Conds: walkSelectors(s.Conds, f)}
	case *Or:
		return &Or{Conds: walkSelectors(s.Conds, f)}
	case *Nor:
		return &Nor{Conds: walkSelectors(s.Conds, f)}
	}
	return s
}

func walkSelectors(conds []Selector, f func(*Term) *Term) []Selector {
	out := make([]Selector, 0, len(conds))
	for _, c := range conds {
		out = append(out, walkSelector(c, f))
	}
	return out
}

// SelectorToBson renders s in the engine's find-query syntax.
func SelectorToBson(s Selector) bson.Value {
	switch s := s.(type) {
	case *True:
		return bson.NewDoc()
	case *And:
		return compoundToBson("$and", s.Conds)
	case *Or:
		return compoundToBson("$or", s.Conds)
	case *Nor:
		return compoundToBson("$nor", s.Conds)
	case *Term:
		return bson.NewDoc(bson.Entry{
			Key:   s.Field.String(),
			Value: bson.NewDoc(bson.Entry{Key: s.Op, Value: s.Value}),
		})
	case *Where:
		return bson.NewDoc(bson.Entry{
			Key:   "$where",
			Value: bson.JavaScript(js.Render(s.Fn)),
		})
	}
	return bson.NewDoc()
}

func compoundToBson(op string, conds []Selector) bson.Value {
	elems := make([]bson.Value, 0, len(conds))
	for _, c := range conds {
		elems = append(elems, SelectorToBson(c))
	}
	return bson.NewDoc(bson.Entry{Key: op, Value: bson.NewArr(elems...)})
}
