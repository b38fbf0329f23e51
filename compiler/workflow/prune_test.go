package workflow

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/docql/docql/bson"
	"github.com/docql/docql/compiler/expr"
	"github.com/docql/docql/field"
)

func wideProject(src Op) *Project {
	return &Project{Src: src, Shape: docShape(
		expr.DocEntry("a", expr.ExprValue(expr.NewField("x"))),
		expr.DocEntry("b", expr.ExprValue(expr.NewField("y"))),
	)}
}

// A group reads only one of the project's fields; the other is dead.
func TestPruneProjectUnderGroup(t *testing.T) {
	op := &Group{
		Src:     wideProject(readC()),
		Grouped: expr.NewGrouped(expr.GroupedField("n", &expr.Sum{Arg: expr.NewField("a")})),
		By:      expr.ShapeValue{Expr: expr.NewField("a")},
	}
	got := Prune(op)
	group, ok := got.(*Group)
	require.True(t, ok)
	project, ok := group.Src.(*Project)
	require.True(t, ok)
	_, hasA := project.Shape.Get(field.New("a"))
	_, hasB := project.Shape.Get(field.New("b"))
	require.True(t, hasA, "field a is read by the group and must survive")
	require.False(t, hasB, "field b is unread and must be pruned")
}

// Nothing outside the plan reads the root, so the root itself is
// never pruned.
func TestPruneRootUntouched(t *testing.T) {
	op := wideProject(readC())
	requireEqualOps(t, op, Prune(op))
}

// JS-bearing ops are opaque: everything below them survives until
// the next project or group boundary.
func TestPruneOpaqueBelowMap(t *testing.T) {
	op := &Group{
		Src: &Map{
			Src: wideProject(readC()),
			Fn:  IdentityMapFn(),
		},
		Grouped: expr.NewGrouped(expr.GroupedField("n", &expr.Sum{Arg: expr.NewField("a")})),
		By:      expr.ShapeValue{Expr: expr.NewField("a")},
	}
	got := Prune(op)
	project := got.(*Group).Src.(*Map).Src.(*Project)
	_, hasB := project.Shape.Get(field.New("b"))
	require.True(t, hasB, "fields below a JS op must not be pruned")
}

// An unwind passes the used set through unchanged.
func TestPruneThroughUnwind(t *testing.T) {
	op := &Group{
		Src: &Unwind{
			Src:   wideProject(readC()),
			Field: expr.DocField(field.New("a")),
		},
		Grouped: expr.NewGrouped(expr.GroupedField("n", &expr.Sum{Arg: expr.NewField("a")})),
		By:      expr.ShapeValue{Expr: expr.NewField("a")},
	}
	got := Prune(op)
	project := got.(*Group).Src.(*Unwind).Src.(*Project)
	_, hasA := project.Shape.Get(field.New("a"))
	_, hasB := project.Shape.Get(field.New("b"))
	require.True(t, hasA)
	require.False(t, hasB)
}

// Dead aggregators are removed when a downstream project ignores
// them.
func TestPruneGroupUnderProject(t *testing.T) {
	op := &Project{
		Src: &Group{
			Src: readC(),
			Grouped: expr.NewGrouped(
				expr.GroupedField("n", &expr.Sum{Arg: expr.NewLiteral(bson.Int64(1))}),
				expr.GroupedField("m", &expr.Push{Arg: expr.NewField("x")}),
			),
			By: expr.ShapeValue{Expr: expr.NewField("s")},
		},
		Shape: docShape(expr.DocEntry("total", expr.ExprValue(expr.NewField("n")))),
	}
	got := Prune(op)
	group := got.(*Project).Src.(*Group)
	_, hasN := group.Grouped.Get(field.Name("n"))
	_, hasM := group.Grouped.Get(field.Name("m"))
	require.True(t, hasN)
	require.False(t, hasM)
}

// A larger used set never prunes more than a smaller one.
func TestPruneMonotone(t *testing.T) {
	op := wideProject(readC())
	small := []expr.DocVar{expr.DocField(field.New("a"))}
	large := append(small, expr.DocField(field.New("b")))
	prunedSmall := deleteUnusedFields(op, small)
	prunedLarge := deleteUnusedFields(op, large)
	require.GreaterOrEqual(t,
		len(prunedLarge.(*Project).Shape.Entries),
		len(prunedSmall.(*Project).Shape.Entries))
}

// Prefixes and extensions both count as used.
func TestPrunePrefixAndExtension(t *testing.T) {
	op := &Project{Src: readC(), Shape: docShape(
		expr.DocEntry("a", expr.ShapeOf(docShape(
			expr.DocEntry("b", expr.ExprValue(expr.NewField("x")))))),
		expr.DocEntry("c", expr.ExprValue(expr.NewField("y"))),
	)}
	used := []expr.DocVar{expr.DocField(field.New("a"))}
	pruned := deleteUnusedFields(op, used).(*Project)
	_, hasAB := pruned.Shape.Get(field.Dotted("a.b"))
	_, hasC := pruned.Shape.Get(field.New("c"))
	require.True(t, hasAB, "a.b extends the used path a")
	require.False(t, hasC)
}
