package workflow

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/docql/docql/bson"
	"github.com/docql/docql/compiler/expr"
	"github.com/docql/docql/field"
)

func mustMerge(t *testing.T, a, b Op) (expr.DocVar, expr.DocVar, Op) {
	t.Helper()
	l, r, m, err := Merge(a, b)
	require.NoError(t, err)
	return l, r, m
}

func TestMergeIdentity(t *testing.T) {
	ops := []Op{
		readC(),
		&Match{Src: readC(), Sel: gtZero("x")},
		&Limit{Src: &Sort{Src: readC(), Keys: sortBy("x")}, Count: 3},
	}
	for _, op := range ops {
		l, r, m := mustMerge(t, op, op)
		require.True(t, l.IsRoot())
		require.True(t, r.IsRoot())
		requireEqualOps(t, op, m)
	}
}

func TestMergePures(t *testing.T) {
	a := &Pure{Value: bson.NewDoc(bson.Entry{Key: "x", Value: bson.Int64(1)})}
	b := &Pure{Value: bson.NewDoc(bson.Entry{Key: "y", Value: bson.Int64(2)})}
	l, r, m := mustMerge(t, a, b)
	require.Equal(t, "$lEft", l.String())
	require.Equal(t, "$rIght", r.String())
	want := &Pure{Value: bson.NewDoc(
		bson.Entry{Key: "lEft", Value: a.Value},
		bson.Entry{Key: "rIght", Value: b.Value},
	)}
	requireEqualOps(t, want, m)
}

func TestMergePureRead(t *testing.T) {
	a := &Pure{Value: bson.Int64(7)}
	l, r, m := mustMerge(t, a, readC())
	require.Equal(t, "$lEft", l.String())
	require.Equal(t, "$rIght", r.String())
	want := &Project{Src: readC(), Shape: docShape(
		expr.DocEntry("lEft", expr.ExprValue(expr.NewLiteral(bson.Int64(7)))),
		expr.DocEntry("rIght", expr.ExprValue(expr.NewVar(expr.Root()))),
	)}
	requireEqualOps(t, want, m)
}

// Two reads over different collections share no structure, so merge
// falls back to a fold-left of the two pre-projected branches.
func TestMergeReadsFallback(t *testing.T) {
	l, r, m := mustMerge(t, &Read{Collection: "a"}, &Read{Collection: "b"})
	require.Equal(t, "$value.lEft", l.String())
	require.Equal(t, "$value.rIght", r.String())
	want := &FoldLeft{Srcs: []Op{
		&Reduce{
			Src: &Project{Src: &Read{Collection: "a"}, Shape: branchShape(LeftName)},
			Fn:  FieldCopyReduce(),
		},
		&Reduce{
			Src: &Project{Src: &Read{Collection: "b"}, Shape: branchShape(RightName)},
			Fn:  FieldCopyReduce(),
		},
	}}
	requireEqualOps(t, want, m)
}

func TestMergeEqualByGroups(t *testing.T) {
	a := &Group{
		Src:     readC(),
		Grouped: expr.NewGrouped(expr.GroupedField("n", &expr.Sum{Arg: expr.NewLiteral(bson.Int64(1))})),
		By:      expr.ShapeValue{Expr: expr.NewField("s")},
	}
	b := &Group{
		Src:     readC(),
		Grouped: expr.NewGrouped(expr.GroupedField("m", &expr.Push{Arg: expr.NewField("x")})),
		By:      expr.ShapeValue{Expr: expr.NewField("s")},
	}
	l, r, m := mustMerge(t, a, b)
	require.True(t, l.IsRoot())
	require.True(t, r.IsRoot())
	want := &Project{
		Src: &Group{
			Src: readC(),
			Grouped: expr.NewGrouped(
				expr.GroupedField("__f0", &expr.Sum{Arg: expr.NewLiteral(bson.Int64(1))}),
				expr.GroupedField("__f1", &expr.Push{Arg: expr.NewField("x")}),
			),
			By: expr.ShapeValue{Shape: expr.NewArrShape(
				expr.ArrEntry(0, expr.ShapeValue{Expr: expr.NewField("s")}),
				expr.ArrEntry(1, expr.ShapeValue{Expr: expr.NewField("s")}),
			)},
		},
		Shape: docShape(
			expr.DocEntry("n", expr.ExprValue(expr.NewField("__f0"))),
			expr.DocEntry("m", expr.ExprValue(expr.NewField("__f1"))),
		),
	}
	requireEqualOps(t, want, m)
}

// A match against a sort merges by pushing the match below and
// stacking both over the shared read.
func TestMergeMatchSort(t *testing.T) {
	a := &Match{Src: readC(), Sel: gtZero("x")}
	b := &Sort{Src: readC(), Keys: sortBy("x")}
	l, r, m := mustMerge(t, a, b)
	require.True(t, l.IsRoot())
	require.True(t, r.IsRoot())
	want := &Sort{Src: &Match{Src: readC(), Sel: gtZero("x")}, Keys: sortBy("x")}
	requireEqualOps(t, want, m)
}

// Merge is symmetric: the swapped call produces the same tree with
// the bases exchanged (delegated cases).
func TestMergeSymmetry(t *testing.T) {
	pairs := [][2]Op{
		{&Match{Src: readC(), Sel: gtZero("x")}, &Sort{Src: readC(), Keys: sortBy("x")}},
		{&Match{Src: readC(), Sel: gtZero("x")}, readC()},
		{
			&Project{Src: readC(), Shape: docShape(expr.DocEntry("a", expr.ExprValue(expr.NewField("x"))))},
			&Match{Src: readC(), Sel: gtZero("x")},
		},
	}
	for _, pair := range pairs {
		l1, r1, m1 := mustMerge(t, pair[0], pair[1])
		l2, r2, m2 := mustMerge(t, pair[1], pair[0])
		requireEqualOps(t, m1, m2)
		require.True(t, l1.Equal(r2), "lbase %s != swapped rbase %s", l1, r2)
		require.True(t, r1.Equal(l2), "rbase %s != swapped lbase %s", r1, l2)
	}
}

func TestMergeShapePreservingOverPipeline(t *testing.T) {
	a := &Limit{Src: readC(), Count: 10}
	b := &Sort{Src: readC(), Keys: sortBy("pop")}
	l, r, m := mustMerge(t, a, b)
	require.True(t, l.IsRoot())
	require.True(t, r.IsRoot())
	want := &Sort{Src: &Limit{Src: readC(), Count: 10}, Keys: sortBy("pop")}
	requireEqualOps(t, want, m)
}

func TestMergeProjects(t *testing.T) {
	a := &Project{Src: readC(), Shape: docShape(expr.DocEntry("a", expr.ExprValue(expr.NewField("x"))))}
	b := &Project{Src: readC(), Shape: docShape(expr.DocEntry("b", expr.ExprValue(expr.NewField("y"))))}
	l, r, m := mustMerge(t, a, b)
	require.Equal(t, "$lEft", l.String())
	require.Equal(t, "$rIght", r.String())
	want := &Project{Src: readC(), Shape: docShape(
		expr.DocEntry("lEft", expr.ShapeOf(docShape(
			expr.DocEntry("a", expr.ExprValue(expr.NewField("x")))))),
		expr.DocEntry("rIght", expr.ShapeOf(docShape(
			expr.DocEntry("b", expr.ExprValue(expr.NewField("y")))))),
	)}
	requireEqualOps(t, want, m)
}

func TestMergeUnwindsSameField(t *testing.T) {
	a := &Unwind{Src: &Match{Src: readC(), Sel: gtZero("x")}, Field: expr.DocField(field.New("xs"))}
	b := &Unwind{Src: readC(), Field: expr.DocField(field.New("xs"))}
	_, _, m := mustMerge(t, a, b)
	requireEqualOps(t, a, m)
}

func TestMergeUnwindsDifferentFields(t *testing.T) {
	a := &Unwind{Src: readC(), Field: expr.DocField(field.New("xs"))}
	b := &Unwind{Src: readC(), Field: expr.DocField(field.New("ys"))}
	l, r, m := mustMerge(t, a, b)
	require.True(t, l.IsRoot())
	require.True(t, r.IsRoot())
	want := &Unwind{
		Src:   &Unwind{Src: readC(), Field: expr.DocField(field.New("xs"))},
		Field: expr.DocField(field.New("ys")),
	}
	requireEqualOps(t, want, m)
}

func TestMergeGroupPipeline(t *testing.T) {
	a := &Group{
		Src:     readC(),
		Grouped: expr.NewGrouped(expr.GroupedField("n", &expr.Sum{Arg: expr.NewLiteral(bson.Int64(1))})),
		By:      expr.ShapeValue{Expr: expr.NewField("s")},
	}
	b := &Sort{Src: readC(), Keys: sortBy("x")}
	l, r, m := mustMerge(t, a, b)
	require.True(t, l.IsRoot())
	require.Equal(t, "$__tmp0", r.String())
	unwind, ok := m.(*Unwind)
	require.True(t, ok, "expected Unwind at the top, got %T", m)
	require.Equal(t, "$__tmp0", unwind.Field.String())
	group, ok := unwind.Src.(*Group)
	require.True(t, ok, "expected Group under the unwind, got %T", unwind.Src)
	push, ok := group.Grouped.Get(field.Name("__tmp0"))
	require.True(t, ok)
	require.IsType(t, &expr.Push{}, push)
	requireEqualOps(t, &Sort{Src: readC(), Keys: sortBy("x")}, group.Src)
}

// A group against a shape-preserving op resolves at the
// shape-preserving case: the filter slides under the group.
func TestMergeGroupMatch(t *testing.T) {
	a := &Group{
		Src:     readC(),
		Grouped: expr.NewGrouped(expr.GroupedField("n", &expr.Sum{Arg: expr.NewLiteral(bson.Int64(1))})),
		By:      expr.ShapeValue{Expr: expr.NewField("s")},
	}
	b := &Match{Src: readC(), Sel: gtZero("x")}
	_, _, m := mustMerge(t, a, b)
	want := a.Reparent(&Match{Src: readC(), Sel: gtZero("x")})
	requireEqualOps(t, want, m)
}

// Merged results are always coalesced (P1 holds on merge output).
func TestMergeOutputCoalesced(t *testing.T) {
	r := rand.New(rand.NewSource(5))
	for i := 0; i < 100; i++ {
		a, b := genOp(r, 3), genOp(r, 3)
		_, _, m, err := Merge(a, b)
		require.NoError(t, err)
		again, err := Coalesce(m)
		require.NoError(t, err)
		requireEqualOps(t, m, again)
	}
}
