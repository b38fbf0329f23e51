package expr

import (
	"github.com/docql/docql/bson"
	"github.com/docql/docql/field"
)

// A Reshape is a reshaping specification: an ordered mapping from
// member names (Doc form) or array positions (Arr form) to either an
// expression or a nested Reshape.
type Reshape struct {
	IsArr   bool
	Entries []ReshapeEntry
}

type ReshapeEntry struct {
	Field field.Elem
	Value ShapeValue
}

// A ShapeValue holds exactly one of an expression or a nested shape.
type ShapeValue struct {
	Expr  Expr
	Shape *Reshape
}

func ExprValue(e Expr) ShapeValue {
	return ShapeValue{Expr: e}
}

func ShapeOf(r *Reshape) ShapeValue {
	return ShapeValue{Shape: r}
}

func NewDocShape(entries ...ReshapeEntry) *Reshape {
	return &Reshape{Entries: entries}
}

func NewArrShape(entries ...ReshapeEntry) *Reshape {
	return &Reshape{IsArr: true, Entries: entries}
}

func DocEntry(name string, v ShapeValue) ReshapeEntry {
	return ReshapeEntry{Field: field.Name(name), Value: v}
}

func ArrEntry(i int, v ShapeValue) ReshapeEntry {
	return ReshapeEntry{Field: field.Index(i), Value: v}
}

func (r *Reshape) Keys() []field.Elem {
	keys := make([]field.Elem, 0, len(r.Entries))
	for _, entry := range r.Entries {
		keys = append(keys, entry.Field)
	}
	return keys
}

// Get resolves a path through nested shapes.
func (r *Reshape) Get(path field.Path) (ShapeValue, bool) {
	if len(path) == 0 {
		return ShapeValue{}, false
	}
	for _, entry := range r.Entries {
		if entry.Field != path[0] {
			continue
		}
		if len(path) == 1 {
			return entry.Value, true
		}
		if entry.Value.Shape != nil {
			return entry.Value.Shape.Get(path[1:])
		}
		return ShapeValue{}, false
	}
	return ShapeValue{}, false
}

// Set returns a shape with path bound to v, creating intermediate
// containers as needed.  The receiver is not modified.
func (r *Reshape) Set(path field.Path, v ShapeValue) *Reshape {
	if len(path) == 0 {
		return r
	}
	out := &Reshape{IsArr: r.IsArr, Entries: make([]ReshapeEntry, len(r.Entries))}
	copy(out.Entries, r.Entries)
	for k, entry := range out.Entries {
		if entry.Field != path[0] {
			continue
		}
		if len(path) == 1 {
			out.Entries[k].Value = v
			return out
		}
		inner := entry.Value.Shape
		if inner == nil {
			inner = emptyShapeFor(path[1])
		}
		out.Entries[k].Value = ShapeValue{Shape: inner.Set(path[1:], v)}
		return out
	}
	value := v
	if len(path) > 1 {
		value = ShapeValue{Shape: emptyShapeFor(path[1]).Set(path[1:], v)}
	}
	out.Entries = append(out.Entries, ReshapeEntry{Field: path[0], Value: value})
	return out
}

func emptyShapeFor(elem field.Elem) *Reshape {
	if _, ok := elem.(field.Index); ok {
		return &Reshape{IsArr: true}
	}
	return &Reshape{}
}

// A ShapeField is one flattened leaf of a Reshape.
type ShapeField struct {
	Path field.Path
	Expr Expr
}

// GetAll flattens the shape to its leaf expressions.
func (r *Reshape) GetAll() []ShapeField {
	var fields []ShapeField
	r.getAll(nil, &fields)
	return fields
}

func (r *Reshape) getAll(prefix field.Path, fields *[]ShapeField) {
	for _, entry := range r.Entries {
		path := prefix.Concat(field.Path{entry.Field})
		if entry.Value.Shape != nil {
			entry.Value.Shape.getAll(path, fields)
		} else {
			*fields = append(*fields, ShapeField{Path: path, Expr: entry.Value.Expr})
		}
	}
}

// RemoveAll returns a shape without the listed leaf paths.  Containers
// emptied by the removal are dropped.
func (r *Reshape) RemoveAll(paths field.List) *Reshape {
	out := &Reshape{IsArr: r.IsArr}
	for _, entry := range r.Entries {
		path := field.Path{entry.Field}
		if path.In(paths) {
			continue
		}
		if entry.Value.Shape != nil {
			var nested field.List
			for _, p := range paths {
				if p.HasStrictPrefix(path) {
					nested = append(nested, p[1:])
				}
			}
			inner := entry.Value.Shape.RemoveAll(nested)
			if len(inner.Entries) == 0 {
				continue
			}
			entry = ReshapeEntry{Field: entry.Field, Value: ShapeValue{Shape: inner}}
		}
		out.Entries = append(out.Entries, entry)
	}
	return out
}

// MapShapeExprs rebuilds the shape with every leaf expression
// replaced by f's image.
func (r *Reshape) MapShapeExprs(f func(Expr) Expr) *Reshape {
	out := &Reshape{IsArr: r.IsArr, Entries: make([]ReshapeEntry, 0, len(r.Entries))}
	for _, entry := range r.Entries {
		v := entry.Value
		if v.Shape != nil {
			v = ShapeValue{Shape: v.Shape.MapShapeExprs(f)}
		} else {
			v = ShapeValue{Expr: f(v.Expr)}
		}
		out.Entries = append(out.Entries, ReshapeEntry{Field: entry.Field, Value: v})
	}
	return out
}

// ShapeToBson renders a reshape in the engine's $project syntax.
func ShapeToBson(r *Reshape) bson.Value {
	if r.IsArr {
		elems := make([]bson.Value, 0, len(r.Entries))
		for _, entry := range r.Entries {
			elems = append(elems, shapeValueToBson(entry.Value))
		}
		return bson.NewArr(elems...)
	}
	entries := make([]bson.Entry, 0, len(r.Entries))
	for _, entry := range r.Entries {
		entries = append(entries, bson.Entry{
			Key:   entry.Field.String(),
			Value: shapeValueToBson(entry.Value),
		})
	}
	return bson.NewDoc(entries...)
}

func shapeValueToBson(v ShapeValue) bson.Value {
	if v.Shape != nil {
		return ShapeToBson(v.Shape)
	}
	return ToBson(v.Expr)
}

// Grouped is the aggregation specification of a Group: an ordered
// mapping from leaf member names to aggregators.
type Grouped struct {
	Entries []GroupedEntry
}

type GroupedEntry struct {
	Name field.Name
	Agg  GroupOp
}

func NewGrouped(entries ...GroupedEntry) *Grouped {
	return &Grouped{Entries: entries}
}

func GroupedField(name string, agg GroupOp) GroupedEntry {
	return GroupedEntry{Name: field.Name(name), Agg: agg}
}

func (g *Grouped) Keys() []field.Name {
	keys := make([]field.Name, 0, len(g.Entries))
	for _, entry := range g.Entries {
		keys = append(keys, entry.Name)
	}
	return keys
}

func (g *Grouped) Get(name field.Name) (GroupOp, bool) {
	for _, entry := range g.Entries {
		if entry.Name == name {
			return entry.Agg, true
		}
	}
	return nil, false
}

// Set returns a Grouped with name bound to agg, preserving order.
func (g *Grouped) Set(name field.Name, agg GroupOp) *Grouped {
	out := &Grouped{Entries: make([]GroupedEntry, len(g.Entries))}
	copy(out.Entries, g.Entries)
	for k, entry := range out.Entries {
		if entry.Name == name {
			out.Entries[k].Agg = agg
			return out
		}
	}
	out.Entries = append(out.Entries, GroupedEntry{Name: name, Agg: agg})
	return out
}

// GroupedToBson renders the aggregator map as $group stage members.
func GroupedToBson(g *Grouped) []bson.Entry {
	entries := make([]bson.Entry, 0, len(g.Entries))
	for _, entry := range g.Entries {
		entries = append(entries, bson.Entry{
			Key:   entry.Name.String(),
			Value: ToBson(entry.Agg),
		})
	}
	return entries
}
