package workflow

import (
	"github.com/docql/docql/compiler/expr"
)

// Coalesce fuses adjacent compatible ops.  It is idempotent,
// confluent under the local rules below, and never increases the
// tree's op count.
func Coalesce(op Op) (Op, error) {
	switch op := op.(type) {
	case *Pure, *Read:
		return op, nil
	case *Match:
		return coalesceMatch(op)
	case *Limit:
		return coalesceLimit(op)
	case *Skip:
		return coalesceSkip(op)
	case *Project:
		return coalesceProject(op)
	case *Group:
		return coalesceGroup(op)
	case *GeoNear:
		return coalesceGeoNear(op)
	case *Map:
		return coalesceMap(op)
	case *FlatMap:
		return coalesceFlatMap(op)
	case *FoldLeft:
		return coalesceFoldLeft(op)
	case *Join:
		srcs, err := coalesceAll(op.Srcs)
		if err != nil {
			return nil, err
		}
		return &Join{Srcs: srcs}, nil
	case SingleSourceOp:
		// Sort, Redact, Unwind, Reduce: recurse only.
		src, err := Coalesce(op.Source())
		if err != nil {
			return nil, err
		}
		return op.Reparent(src), nil
	}
	return op, nil
}

func coalesceAll(ops []Op) ([]Op, error) {
	out := make([]Op, 0, len(ops))
	for _, op := range ops {
		c, err := Coalesce(op)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func coalesceMatch(op *Match) (Op, error) {
	src, err := Coalesce(op.Src)
	if err != nil {
		return nil, err
	}
	switch src := src.(type) {
	case *Match:
		return Coalesce(&Match{Src: src.Src, Sel: expr.SelAnd(src.Sel, op.Sel)})
	case *Sort:
		// Matches are pushed below sorts.
		inner, err := Coalesce(&Match{Src: src.Src, Sel: op.Sel})
		if err != nil {
			return nil, err
		}
		return &Sort{Src: inner, Keys: src.Keys}, nil
	}
	return &Match{Src: src, Sel: op.Sel}, nil
}

func coalesceLimit(op *Limit) (Op, error) {
	src, err := Coalesce(op.Src)
	if err != nil {
		return nil, err
	}
	switch src := src.(type) {
	case *Limit:
		return &Limit{Src: src.Src, Count: min(op.Count, src.Count)}, nil
	case *Skip:
		inner, err := Coalesce(&Limit{Src: src.Src, Count: src.Count + op.Count})
		if err != nil {
			return nil, err
		}
		return &Skip{Src: inner, Count: src.Count}, nil
	}
	return &Limit{Src: src, Count: op.Count}, nil
}

func coalesceSkip(op *Skip) (Op, error) {
	src, err := Coalesce(op.Src)
	if err != nil {
		return nil, err
	}
	if inner, ok := src.(*Skip); ok {
		return &Skip{Src: inner.Src, Count: op.Count + inner.Count}, nil
	}
	return &Skip{Src: src, Count: op.Count}, nil
}

func coalesceProject(op *Project) (Op, error) {
	src, err := Coalesce(op.Src)
	if err != nil {
		return nil, err
	}
	if _, ok := src.(*Project); ok {
		shapes, base := collectShapes(src)
		if merged, ok := inlineProject(op.Shape, shapes); ok {
			return &Project{Src: base, Shape: merged}, nil
		}
	}
	return &Project{Src: src, Shape: op.Shape}, nil
}

// collectShapes gathers the contiguous run of project shapes starting
// at op, nearest first, and returns the non-Project ancestor.
func collectShapes(op Op) ([]*expr.Reshape, Op) {
	var shapes []*expr.Reshape
	for {
		p, ok := op.(*Project)
		if !ok {
			return shapes, op
		}
		shapes = append(shapes, p.Shape)
		op = p.Src
	}
}

// inlineProject substitutes every reference in outer through the
// chain of inner shapes.  It fails when a reference escapes the
// chain: an unknown field, the document root, or a path landing on a
// nested container.
func inlineProject(outer *expr.Reshape, inners []*expr.Reshape) (*expr.Reshape, bool) {
	result := outer
	for _, inner := range inners {
		var ok bool
		result, ok = substShapeRefs(result, inner)
		if !ok {
			return nil, false
		}
	}
	return result, true
}

func substShapeRefs(r, inner *expr.Reshape) (*expr.Reshape, bool) {
	ok := true
	out := r.MapShapeExprs(func(e expr.Expr) expr.Expr {
		return expr.MapVars(e, func(v expr.DocVar) expr.Expr {
			sub, found := lookupShape(inner, v)
			if !found {
				ok = false
				return expr.NewVar(v)
			}
			return sub
		})
	})
	if !ok {
		return nil, false
	}
	return out, true
}

func lookupShape(r *expr.Reshape, v expr.DocVar) (expr.Expr, bool) {
	path, ok := v.Deref()
	if !ok {
		return nil, false
	}
	value, ok := r.Get(path)
	if !ok || value.Shape != nil {
		return nil, false
	}
	return value.Expr, true
}

// coalesceGroup inlines a run of projects below the group, rewriting
// the group's references through the project shapes so the group
// reads its true source directly (inlineGroupProjects).  Aggregation
// across a group boundary is never fused.
func coalesceGroup(op *Group) (Op, error) {
	src, err := Coalesce(op.Src)
	if err != nil {
		return nil, err
	}
	if _, ok := src.(*Project); ok {
		if inlined, ok, err := inlineGroupProjects(op, src); err != nil {
			return nil, err
		} else if ok {
			return inlined, nil
		}
	}
	return &Group{Src: src, Grouped: op.Grouped, By: op.By}, nil
}

func inlineGroupProjects(op *Group, src Op) (Op, bool, error) {
	shapes, base := collectShapes(src)
	subst := func(e expr.Expr) (expr.Expr, bool) {
		inlined := e
		for _, shape := range shapes {
			ok := true
			inlined = expr.MapVars(inlined, func(v expr.DocVar) expr.Expr {
				sub, found := lookupShape(shape, v)
				if !found {
					ok = false
					return expr.NewVar(v)
				}
				return sub
			})
			if !ok {
				return nil, false
			}
		}
		return inlined, true
	}
	grouped := &expr.Grouped{}
	for _, entry := range op.Grouped.Entries {
		agg, ok := subst(entry.Agg)
		if !ok {
			return nil, false, nil
		}
		g, ok := agg.(expr.GroupOp)
		if !ok {
			return nil, false, groupRewriteError(op, entry.Name, agg)
		}
		grouped.Entries = append(grouped.Entries, expr.GroupedEntry{Name: entry.Name, Agg: g})
	}
	by := op.By
	if by.Shape != nil {
		ok := true
		shape := by.Shape.MapShapeExprs(func(e expr.Expr) expr.Expr {
			sub, good := subst(e)
			if !good {
				ok = false
				return e
			}
			return sub
		})
		if !ok {
			return nil, false, nil
		}
		by = expr.ShapeValue{Shape: shape}
	} else {
		e, ok := subst(by.Expr)
		if !ok {
			return nil, false, nil
		}
		by = expr.ShapeValue{Expr: e}
	}
	return &Group{Src: base, Grouped: grouped, By: by}, true, nil
}

func coalesceGeoNear(op *GeoNear) (Op, error) {
	src, err := Coalesce(op.Src)
	if err != nil {
		return nil, err
	}
	switch src := src.(type) {
	case *GeoNear:
		// Only the outer GeoNear is retained.
		return Coalesce(op.Reparent(src.Src))
	case PipelineOp:
		// GeoNear must execute first: lift the pipeline op above it.
		return Coalesce(src.Reparent(op.Reparent(src.Source())))
	}
	return op.Reparent(src), nil
}

func coalesceMap(op *Map) (Op, error) {
	src, err := Coalesce(op.Src)
	if err != nil {
		return nil, err
	}
	switch src := src.(type) {
	case *Map:
		return &Map{Src: src.Src, Fn: composePair(op.Fn, src.Fn)}, nil
	case *FlatMap:
		return &FlatMap{Src: src.Src, Fn: composeMapEach(op.Fn, src.Fn)}, nil
	}
	return &Map{Src: src, Fn: op.Fn}, nil
}

func coalesceFlatMap(op *FlatMap) (Op, error) {
	src, err := Coalesce(op.Src)
	if err != nil {
		return nil, err
	}
	switch src := src.(type) {
	case *Map:
		return &FlatMap{Src: src.Src, Fn: composePair(op.Fn, src.Fn)}, nil
	case *FlatMap:
		return &FlatMap{Src: src.Src, Fn: composeConcat(op.Fn, src.Fn)}, nil
	}
	return &FlatMap{Src: src, Fn: op.Fn}, nil
}

func coalesceFoldLeft(op *FoldLeft) (Op, error) {
	srcs, err := coalesceAll(op.Srcs)
	if err != nil {
		return nil, err
	}
	if head, ok := srcs[0].(*FoldLeft); ok {
		flat := make([]Op, 0, len(head.Srcs)+len(srcs)-1)
		flat = append(flat, head.Srcs...)
		return &FoldLeft{Srcs: append(flat, srcs[1:]...)}, nil
	}
	return &FoldLeft{Srcs: srcs}, nil
}
