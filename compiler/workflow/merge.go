package workflow

import (
	"reflect"
	"strconv"

	"github.com/docql/docql/bson"
	"github.com/docql/docql/compiler/expr"
	"github.com/docql/docql/field"
)

// Labels under which merge places each side's documents.
var (
	LeftName  = field.Name("lEft")
	RightName = field.Name("rIght")
	ValueName = field.Name("value")
)

func LeftVar() expr.DocVar  { return expr.DocField(field.Path{LeftName}) }
func RightVar() expr.DocVar { return expr.DocField(field.Path{RightName}) }
func ExprVar() expr.DocVar  { return expr.DocField(field.Path{ValueName}) }

// Merge combines two independently constructed op trees into one.
// It returns base offsets lbase and rbase such that rewriting a
// reference to a's output by lbase.Cat(v) — and to b's by
// rbase.Cat(v) — resolves it against the merged tree's output.
//
// Merge is total: pairs no case recognizes fall through to a
// fold-left of the two pre-projected branches.  Each case is tried in
// the given orientation and then swapped, so where only the swapped
// orientation matches, merge(b, a) is merge(a, b) with the bases
// exchanged.  Where both orientations match a case, or the case builds
// its result from both sides (Pure with Pure, Project with Project,
// unwinds of different fields, the fold-left fallback), the swapped
// call can produce a structurally different tree.  Every op in the
// result is coalesced.
func Merge(a, b Op) (expr.DocVar, expr.DocVar, Op, error) {
	lbase, rbase, merged, ok, err := mergeCases(a, b)
	if err != nil {
		return expr.DocVar{}, expr.DocVar{}, nil, err
	}
	if !ok {
		merged = mergeFoldLeft(a, b)
		lbase, rbase = ExprVar().Cat(LeftVar()), ExprVar().Cat(RightVar())
	}
	merged, err = Coalesce(merged)
	if err != nil {
		return expr.DocVar{}, expr.DocVar{}, nil, err
	}
	return lbase, rbase, merged, nil
}

type mergeCase func(a, b Op) (expr.DocVar, expr.DocVar, Op, bool, error)

// mergeCases tries each case in order, first in the given
// orientation and then swapped; the first match wins.
func mergeCases(a, b Op) (expr.DocVar, expr.DocVar, Op, bool, error) {
	cases := []mergeCase{
		mergeEqual,
		mergePures,
		mergePureAny,
		mergeGeoNearPipeline,
		mergeShapePreservingPipeline,
		mergeProjectSource,
		mergeGroups,
		mergeGroupPipeline,
		mergeProjects,
		mergeProjectPipeline,
		mergeRedacts,
		mergeUnwinds,
		mergeUnwindRedact,
		mergeReadMap,
		mergeMapProject,
		mergeAnyPipeline,
	}
	for _, c := range cases {
		l, r, m, ok, err := c(a, b)
		if err != nil {
			return expr.DocVar{}, expr.DocVar{}, nil, false, err
		}
		if ok {
			return l, r, m, true, nil
		}
		// Swapped orientation at the same priority.
		l, r, m, ok, err = c(b, a)
		if err != nil {
			return expr.DocVar{}, expr.DocVar{}, nil, false, err
		}
		if ok {
			return r, l, m, true, nil
		}
	}
	return expr.DocVar{}, expr.DocVar{}, nil, false, nil
}

func noMerge() (expr.DocVar, expr.DocVar, Op, bool, error) {
	return expr.DocVar{}, expr.DocVar{}, nil, false, nil
}

func mergeEqual(a, b Op) (expr.DocVar, expr.DocVar, Op, bool, error) {
	if !Equal(a, b) {
		return noMerge()
	}
	return expr.Root(), expr.Root(), a, true, nil
}

func mergePures(a, b Op) (expr.DocVar, expr.DocVar, Op, bool, error) {
	pa, ok := a.(*Pure)
	if !ok {
		return noMerge()
	}
	pb, ok := b.(*Pure)
	if !ok {
		return noMerge()
	}
	merged := &Pure{Value: bson.NewDoc(
		bson.Entry{Key: LeftName.String(), Value: pa.Value},
		bson.Entry{Key: RightName.String(), Value: pb.Value},
	)}
	return LeftVar(), RightVar(), merged, true, nil
}

func mergePureAny(a, b Op) (expr.DocVar, expr.DocVar, Op, bool, error) {
	pa, ok := a.(*Pure)
	if !ok {
		return noMerge()
	}
	shape := expr.NewDocShape(
		expr.DocEntry(LeftName.String(), expr.ExprValue(expr.NewLiteral(pa.Value))),
		expr.DocEntry(RightName.String(), expr.ExprValue(expr.NewVar(expr.Root()))),
	)
	return LeftVar(), RightVar(), &Project{Src: b, Shape: shape}, true, nil
}

func mergeGeoNearPipeline(a, b Op) (expr.DocVar, expr.DocVar, Op, bool, error) {
	if _, ok := a.(*GeoNear); !ok {
		return noMerge()
	}
	pb, ok := b.(PipelineOp)
	if !ok {
		return noMerge()
	}
	return reparentOnMerged(a, pb)
}

func mergeShapePreservingPipeline(a, b Op) (expr.DocVar, expr.DocVar, Op, bool, error) {
	if _, ok := a.(ShapePreservingOp); !ok {
		return noMerge()
	}
	pb, ok := b.(PipelineOp)
	if !ok {
		return noMerge()
	}
	return reparentOnMerged(a, pb)
}

// reparentOnMerged merges a with b's source and reparents the
// rewritten b onto the result.
func reparentOnMerged(a Op, b PipelineOp) (expr.DocVar, expr.DocVar, Op, bool, error) {
	lbase, rbase, src, err := Merge(a, b.Source())
	if err != nil {
		return expr.DocVar{}, expr.DocVar{}, nil, false, err
	}
	rewritten, err := RewriteRefs(b, PrefixBase(rbase))
	if err != nil {
		return expr.DocVar{}, expr.DocVar{}, nil, false, err
	}
	merged := rewritten.(SingleSourceOp).Reparent(src)
	return lbase, rbase, merged, true, nil
}

func mergeProjectSource(a, b Op) (expr.DocVar, expr.DocVar, Op, bool, error) {
	pa, ok := a.(*Project)
	if !ok {
		return noMerge()
	}
	if _, ok := b.(SourceOp); !ok {
		return noMerge()
	}
	lbase, rbase, src, err := Merge(pa.Src, b)
	if err != nil {
		return expr.DocVar{}, expr.DocVar{}, nil, false, err
	}
	shape, err := rewriteProjectShape(pa, lbase)
	if err != nil {
		return expr.DocVar{}, expr.DocVar{}, nil, false, err
	}
	merged := &Project{Src: src, Shape: expr.NewDocShape(
		expr.DocEntry(LeftName.String(), expr.ShapeOf(shape)),
		expr.DocEntry(RightName.String(), expr.ExprValue(expr.NewVar(expr.Root()))),
	)}
	return LeftVar().Cat(lbase), RightVar().Cat(rbase), merged, true, nil
}

func mergeGroups(a, b Op) (expr.DocVar, expr.DocVar, Op, bool, error) {
	ga, ok := a.(*Group)
	if !ok {
		return noMerge()
	}
	gb, ok := b.(*Group)
	if !ok {
		return noMerge()
	}
	if !reflect.DeepEqual(ga.By, gb.By) || groupKeysCollide(ga, gb) {
		return noMerge()
	}
	lbase, rbase, src, err := Merge(ga.Src, gb.Src)
	if err != nil {
		return expr.DocVar{}, expr.DocVar{}, nil, false, err
	}
	ra, err := rewriteGroup(ga, lbase)
	if err != nil {
		return expr.DocVar{}, expr.DocVar{}, nil, false, err
	}
	rb, err := rewriteGroup(gb, rbase)
	if err != nil {
		return expr.DocVar{}, expr.DocVar{}, nil, false, err
	}
	// Flatten the two key spaces into one disjoint namespace, group
	// once over the promoted two-element by, then project the
	// renamed leaves back to their original names.
	mappings := field.FlattenMapping(ra.Grouped.Keys(), rb.Grouped.Keys())
	grouped := &expr.Grouped{}
	var projected []expr.ReshapeEntry
	for k, g := range []*Group{ra, rb} {
		for _, entry := range g.Grouped.Entries {
			renamed := mappings[k][entry.Name]
			grouped.Entries = append(grouped.Entries, expr.GroupedEntry{
				Name: renamed,
				Agg:  entry.Agg,
			})
			projected = append(projected, expr.DocEntry(entry.Name.String(),
				expr.ExprValue(expr.NewVar(expr.DocField(field.Path{renamed})))))
		}
	}
	by := expr.ShapeValue{Shape: expr.NewArrShape(
		expr.ArrEntry(0, ra.By),
		expr.ArrEntry(1, rb.By),
	)}
	merged := &Project{
		Src:   &Group{Src: src, Grouped: grouped, By: by},
		Shape: expr.NewDocShape(projected...),
	}
	return lbase, rbase, merged, true, nil
}

func groupKeysCollide(a, b *Group) bool {
	keys := make(map[field.Name]bool)
	for _, k := range a.Grouped.Keys() {
		keys[k] = true
	}
	for _, k := range b.Grouped.Keys() {
		if keys[k] {
			return true
		}
	}
	return false
}

func mergeGroupPipeline(a, b Op) (expr.DocVar, expr.DocVar, Op, bool, error) {
	ga, ok := a.(*Group)
	if !ok {
		return noMerge()
	}
	pb, ok := b.(PipelineOp)
	if !ok {
		return noMerge()
	}
	lbase, rbase, src, err := Merge(ga.Src, pb)
	if err != nil {
		return expr.DocVar{}, expr.DocVar{}, nil, false, err
	}
	ra, err := rewriteGroup(ga, lbase)
	if err != nil {
		return expr.DocVar{}, expr.DocVar{}, nil, false, err
	}
	// Push the right side's documents through the group under a
	// fresh field, then unwind it to restore them.
	u := freshName(ra.Grouped.Keys())
	grouped := ra.Grouped.Set(u, &expr.Push{Arg: expr.NewVar(rbase)})
	merged := &Unwind{
		Src:   &Group{Src: src, Grouped: grouped, By: ra.By},
		Field: expr.DocField(field.Path{u}),
	}
	return expr.Root(), expr.DocField(field.Path{u}), merged, true, nil
}

func freshName(taken []field.Name) field.Name {
	used := make(map[field.Name]bool, len(taken))
	for _, name := range taken {
		used[name] = true
	}
	for i := 0; ; i++ {
		name := field.Name("__tmp" + strconv.Itoa(i))
		if !used[name] {
			return name
		}
	}
}

func mergeProjects(a, b Op) (expr.DocVar, expr.DocVar, Op, bool, error) {
	pa, ok := a.(*Project)
	if !ok {
		return noMerge()
	}
	pb, ok := b.(*Project)
	if !ok {
		return noMerge()
	}
	lbase, rbase, src, err := Merge(pa.Src, pb.Src)
	if err != nil {
		return expr.DocVar{}, expr.DocVar{}, nil, false, err
	}
	sa, err := rewriteProjectShape(pa, lbase)
	if err != nil {
		return expr.DocVar{}, expr.DocVar{}, nil, false, err
	}
	sb, err := rewriteProjectShape(pb, rbase)
	if err != nil {
		return expr.DocVar{}, expr.DocVar{}, nil, false, err
	}
	merged := &Project{Src: src, Shape: expr.NewDocShape(
		expr.DocEntry(LeftName.String(), expr.ShapeOf(sa)),
		expr.DocEntry(RightName.String(), expr.ShapeOf(sb)),
	)}
	return LeftVar().Cat(lbase), RightVar().Cat(rbase), merged, true, nil
}

func mergeProjectPipeline(a, b Op) (expr.DocVar, expr.DocVar, Op, bool, error) {
	pa, ok := a.(*Project)
	if !ok {
		return noMerge()
	}
	pb, ok := b.(PipelineOp)
	if !ok {
		return noMerge()
	}
	lbase, rbase, src, err := Merge(pa.Src, pb)
	if err != nil {
		return expr.DocVar{}, expr.DocVar{}, nil, false, err
	}
	sa, err := rewriteProjectShape(pa, lbase)
	if err != nil {
		return expr.DocVar{}, expr.DocVar{}, nil, false, err
	}
	merged := &Project{Src: src, Shape: expr.NewDocShape(
		expr.DocEntry(LeftName.String(), expr.ShapeOf(sa)),
		expr.DocEntry(RightName.String(), expr.ExprValue(expr.NewVar(expr.Root()))),
	)}
	return LeftVar().Cat(lbase), RightVar().Cat(rbase), merged, true, nil
}

func mergeRedacts(a, b Op) (expr.DocVar, expr.DocVar, Op, bool, error) {
	ra, ok := a.(*Redact)
	if !ok {
		return noMerge()
	}
	rb, ok := b.(*Redact)
	if !ok {
		return noMerge()
	}
	lbase, rbase, src, err := Merge(ra.Src, rb.Src)
	if err != nil {
		return expr.DocVar{}, expr.DocVar{}, nil, false, err
	}
	a2, err := RewriteRefs(ra, PrefixBase(lbase))
	if err != nil {
		return expr.DocVar{}, expr.DocVar{}, nil, false, err
	}
	b2, err := RewriteRefs(rb, PrefixBase(rbase))
	if err != nil {
		return expr.DocVar{}, expr.DocVar{}, nil, false, err
	}
	merged := b2.(SingleSourceOp).Reparent(a2.(SingleSourceOp).Reparent(src))
	return lbase, rbase, merged, true, nil
}

func mergeUnwinds(a, b Op) (expr.DocVar, expr.DocVar, Op, bool, error) {
	ua, ok := a.(*Unwind)
	if !ok {
		return noMerge()
	}
	ub, ok := b.(*Unwind)
	if !ok {
		return noMerge()
	}
	lbase, rbase, src, err := Merge(ua.Src, ub.Src)
	if err != nil {
		return expr.DocVar{}, expr.DocVar{}, nil, false, err
	}
	a2, err := RewriteRefs(ua, PrefixBase(lbase))
	if err != nil {
		return expr.DocVar{}, expr.DocVar{}, nil, false, err
	}
	b2, err := RewriteRefs(ub, PrefixBase(rbase))
	if err != nil {
		return expr.DocVar{}, expr.DocVar{}, nil, false, err
	}
	wa, wb := a2.(*Unwind), b2.(*Unwind)
	if wa.Field.Equal(wb.Field) {
		return lbase, rbase, wa.Reparent(src), true, nil
	}
	return lbase, rbase, wb.Reparent(wa.Reparent(src)), true, nil
}

func mergeUnwindRedact(a, b Op) (expr.DocVar, expr.DocVar, Op, bool, error) {
	ua, ok := a.(*Unwind)
	if !ok {
		return noMerge()
	}
	if _, ok := b.(*Redact); !ok {
		return noMerge()
	}
	// The unwind stays outside the redact.
	lbase, rbase, src, err := Merge(ua.Src, b)
	if err != nil {
		return expr.DocVar{}, expr.DocVar{}, nil, false, err
	}
	a2, err := RewriteRefs(ua, PrefixBase(lbase))
	if err != nil {
		return expr.DocVar{}, expr.DocVar{}, nil, false, err
	}
	return lbase, rbase, a2.(SingleSourceOp).Reparent(src), true, nil
}

func mergeReadMap(a, b Op) (expr.DocVar, expr.DocVar, Op, bool, error) {
	if _, ok := a.(*Read); !ok {
		return noMerge()
	}
	if _, ok := b.(*Map); !ok {
		return noMerge()
	}
	merged := mergeFoldLeft(a, b)
	return ExprVar().Cat(LeftVar()), ExprVar().Cat(RightVar()), merged, true, nil
}

func mergeMapProject(a, b Op) (expr.DocVar, expr.DocVar, Op, bool, error) {
	if _, ok := a.(*Map); !ok {
		return noMerge()
	}
	pb, ok := b.(*Project)
	if !ok {
		return noMerge()
	}
	lbase, rbase, src, err := Merge(a, pb.Src)
	if err != nil {
		return expr.DocVar{}, expr.DocVar{}, nil, false, err
	}
	sb, err := rewriteProjectShape(pb, rbase)
	if err != nil {
		return expr.DocVar{}, expr.DocVar{}, nil, false, err
	}
	merged := &Project{Src: src, Shape: expr.NewDocShape(
		expr.DocEntry(LeftName.String(), expr.ExprValue(expr.NewVar(expr.Root()))),
		expr.DocEntry(RightName.String(), expr.ShapeOf(sb)),
	)}
	return LeftVar().Cat(lbase), RightVar().Cat(rbase), merged, true, nil
}

func mergeAnyPipeline(a, b Op) (expr.DocVar, expr.DocVar, Op, bool, error) {
	pb, ok := b.(PipelineOp)
	if !ok {
		return noMerge()
	}
	return reparentOnMerged(a, pb)
}

// mergeFoldLeft is the always-safe fallback: fold the two branches,
// each pre-projected under the value.lEft / value.rIght wrappers and
// reduced with the standard field-copy function.
func mergeFoldLeft(a, b Op) Op {
	return &FoldLeft{Srcs: []Op{
		&Reduce{Src: &Project{Src: a, Shape: branchShape(LeftName)}, Fn: FieldCopyReduce()},
		&Reduce{Src: &Project{Src: b, Shape: branchShape(RightName)}, Fn: FieldCopyReduce()},
	}}
}

func branchShape(name field.Name) *expr.Reshape {
	inner := expr.NewDocShape(
		expr.DocEntry(name.String(), expr.ExprValue(expr.NewVar(expr.Root()))))
	return expr.NewDocShape(
		expr.DocEntry(ValueName.String(), expr.ShapeOf(inner)))
}

func rewriteProjectShape(p *Project, base expr.DocVar) (*expr.Reshape, error) {
	rewritten, err := RewriteRefs(p, PrefixBase(base))
	if err != nil {
		return nil, err
	}
	return rewritten.(*Project).Shape, nil
}

func rewriteGroup(g *Group, base expr.DocVar) (*Group, error) {
	rewritten, err := RewriteRefs(g, PrefixBase(base))
	if err != nil {
		return nil, err
	}
	return rewritten.(*Group), nil
}
