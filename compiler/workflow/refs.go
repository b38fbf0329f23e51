package workflow

import (
	"fmt"

	"github.com/docql/docql/compiler/expr"
	"github.com/docql/docql/field"
	"github.com/docql/docql/order"
)

// A Subst is a partial renaming of document references.  It returns
// the image of a DocVar and whether the DocVar is in its domain.
type Subst func(expr.DocVar) (expr.DocVar, bool)

// PrefixBase substitutes every reference under base.
func PrefixBase(base expr.DocVar) Subst {
	return func(v expr.DocVar) (expr.DocVar, bool) {
		return base.Cat(v), true
	}
}

// RewriteRefs returns op with every DocVar in its payload replaced by
// sigma's image (identity elsewhere).  The rewrite is strictly local:
// sources are untouched and the op's variant is preserved.  Field
// names appearing as map keys are rewritten by probing sigma with the
// corresponding DocField and keeping the result only when it
// dereferences to a usable field path.
//
// A rewrite that changes the variant of a Group aggregator is an
// internal invariant violation and yields an error.
func RewriteRefs(op Op, sigma Subst) (Op, error) {
	rw := &refRewriter{sigma: sigma}
	out := rw.rewrite(op)
	return out, rw.err
}

// Refs returns every DocVar appearing in op's payload, in traversal
// order.  It is the rewriter run with the identity substitution and a
// collection sink.
func Refs(op Op) []expr.DocVar {
	var refs []expr.DocVar
	rw := &refRewriter{sigma: func(v expr.DocVar) (expr.DocVar, bool) {
		refs = append(refs, v)
		return v, false
	}}
	rw.rewrite(op)
	return refs
}

type refRewriter struct {
	sigma Subst
	err   error
}

// groupRewriteError reports the fatal invariant violation of a
// rewrite turning an aggregator into a non-aggregator expression.
func groupRewriteError(op *Group, name field.Name, agg expr.Expr) error {
	return fmt.Errorf("workflow: rewrite changed aggregator %q into non-aggregator %T in op:\n%s",
		name, agg, Sprint(op))
}

func (r *refRewriter) rewrite(op Op) Op {
	switch op := op.(type) {
	case *Match:
		return &Match{Src: op.Src, Sel: r.selector(op.Sel)}
	case *Project:
		return &Project{Src: op.Src, Shape: r.shape(op.Shape)}
	case *Redact:
		return &Redact{Src: op.Src, Expr: r.expr(op.Expr)}
	case *Unwind:
		f := op.Field
		if w, ok := r.sigma(f); ok {
			f = w
		}
		return &Unwind{Src: op.Src, Field: f}
	case *Group:
		grouped, err := r.grouped(op)
		if err != nil {
			r.err = err
			return op
		}
		return &Group{Src: op.Src, Grouped: grouped, By: r.shapeValue(op.By)}
	case *Sort:
		keys := make(order.SortKeys, 0, len(op.Keys))
		for _, key := range op.Keys {
			keys = append(keys, order.NewSortKey(r.path(key.Key), key.Order))
		}
		return &Sort{Src: op.Src, Keys: keys}
	case *GeoNear:
		out := *op
		out.DistanceField = r.path(op.DistanceField)
		if len(op.IncludeLocs) > 0 {
			out.IncludeLocs = r.path(op.IncludeLocs)
		}
		if op.Query != nil {
			out.Query = r.selector(op.Query)
		}
		return &out
	}
	// Source ops and composite ops carry no references; JS-bearing
	// ops are opaque.
	return op
}

func (r *refRewriter) expr(e expr.Expr) expr.Expr {
	return expr.MapVars(e, func(v expr.DocVar) expr.Expr {
		if w, ok := r.sigma(v); ok {
			return expr.NewVar(w)
		}
		return expr.NewVar(v)
	})
}

// path rewrites a field path appearing as a map key.
func (r *refRewriter) path(p field.Path) field.Path {
	if v, ok := r.sigma(expr.DocField(p)); ok {
		if q, ok := v.Deref(); ok {
			return q
		}
	}
	return p
}

// leaf rewrites a single-element key, keeping the result only when it
// stays a single element.
func (r *refRewriter) leaf(e field.Elem) field.Elem {
	if v, ok := r.sigma(expr.DocField(field.Path{e})); ok {
		if q, ok := v.Deref(); ok && len(q) == 1 {
			return q[0]
		}
	}
	return e
}

func (r *refRewriter) selector(s expr.Selector) expr.Selector {
	if expr.HasWhere(s) {
		// A JS predicate reads the whole document.
		r.sigma(expr.Root())
	}
	return expr.MapSelectorFields(s, r.path)
}

func (r *refRewriter) shape(s *expr.Reshape) *expr.Reshape {
	out := &expr.Reshape{IsArr: s.IsArr}
	for _, entry := range s.Entries {
		v := entry.Value
		if v.Shape != nil {
			v = expr.ShapeValue{Shape: r.shape(v.Shape)}
		} else {
			v = expr.ShapeValue{Expr: r.expr(v.Expr)}
		}
		out.Entries = append(out.Entries, expr.ReshapeEntry{
			Field: r.leaf(entry.Field),
			Value: v,
		})
	}
	return out
}

func (r *refRewriter) shapeValue(v expr.ShapeValue) expr.ShapeValue {
	if v.Shape != nil {
		return expr.ShapeValue{Shape: r.shape(v.Shape)}
	}
	return expr.ShapeValue{Expr: r.expr(v.Expr)}
}

func (r *refRewriter) grouped(op *Group) (*expr.Grouped, error) {
	out := &expr.Grouped{}
	for _, entry := range op.Grouped.Entries {
		agg := r.expr(entry.Agg)
		g, ok := agg.(expr.GroupOp)
		if !ok {
			return nil, groupRewriteError(op, entry.Name, agg)
		}
		name := entry.Name
		if n, ok := r.leaf(entry.Name).(field.Name); ok {
			name = n
		}
		out.Entries = append(out.Entries, expr.GroupedEntry{Name: name, Agg: g})
	}
	return out, nil
}
