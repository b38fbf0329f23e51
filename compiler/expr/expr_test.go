package expr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docql/docql/bson"
	"github.com/docql/docql/field"
	"github.com/docql/docql/js"
)

func TestDocVar(t *testing.T) {
	root := Root()
	assert.True(t, root.IsRoot())
	assert.Equal(t, "$$ROOT", root.String())
	_, ok := root.Deref()
	assert.False(t, ok)

	v := DocField(field.Dotted("a.b"))
	assert.Equal(t, "$a.b", v.String())
	p, ok := v.Deref()
	require.True(t, ok)
	assert.True(t, p.Equal(field.Dotted("a.b")))
	assert.True(t, v.StartsWith(DocField(field.New("a"))))
	assert.False(t, v.StartsWith(DocField(field.New("b"))))
	assert.Equal(t, "$a.b.c", DocField(field.New("a")).Cat(DocField(field.Dotted("b.c"))).String())
	assert.Equal(t, "$a.b", root.Cat(v).String())
}

func TestMapVars(t *testing.T) {
	e := NewBinary("$add", NewField("x"), &Sum{Arg: NewField("y")})
	got := MapVars(e, func(v DocVar) Expr {
		return NewVar(LeftPrefix().Cat(v))
	})
	want := NewBinary("$add", NewField("l", "x"), &Sum{Arg: NewField("l", "y")})
	assert.Equal(t, want, got)
	// The input is never mutated.
	assert.Equal(t, NewBinary("$add", NewField("x"), &Sum{Arg: NewField("y")}), e)
}

func LeftPrefix() DocVar {
	return DocField(field.New("l"))
}

func TestVars(t *testing.T) {
	e := &Cond{
		If:   NewBinary("$gt", NewField("a"), NewLiteral(bson.Int64(0))),
		Then: NewField("b"),
		Else: &Keep{},
	}
	vars := Vars(e)
	require.Len(t, vars, 2)
	assert.Equal(t, "$a", vars[0].String())
	assert.Equal(t, "$b", vars[1].String())
}

func TestSelAnd(t *testing.T) {
	a := &Term{Field: field.New("x"), Op: "$gt", Value: bson.Int64(0)}
	b := &Term{Field: field.New("y"), Op: "$lt", Value: bson.Int64(9)}
	assert.Equal(t, a, SelAnd(a, &True{}))
	assert.Equal(t, b, SelAnd(&True{}, b))
	got := SelAnd(SelAnd(a, b), a)
	and, ok := got.(*And)
	require.True(t, ok)
	assert.Len(t, and.Conds, 3)
}

func TestHasWhere(t *testing.T) {
	w := &Where{Fn: &js.Ident{Name: "f"}}
	plain := &Term{Field: field.New("x"), Op: "$gt", Value: bson.Int64(0)}
	assert.True(t, HasWhere(w))
	assert.True(t, HasWhere(&And{Conds: []Selector{plain, &Or{Conds: []Selector{w}}}}))
	assert.False(t, HasWhere(&And{Conds: []Selector{plain}}))
	assert.False(t, HasWhere(&True{}))
}

func TestReshapeSetGet(t *testing.T) {
	r := NewDocShape()
	r = r.Set(field.Dotted("a.b"), ExprValue(NewField("x")))
	r = r.Set(field.New("c"), ExprValue(NewField("y")))
	v, ok := r.Get(field.Dotted("a.b"))
	require.True(t, ok)
	assert.Equal(t, NewField("x"), v.Expr)
	_, ok = r.Get(field.Dotted("a.z"))
	assert.False(t, ok)
	// Intermediate containers are created as needed.
	v, ok = r.Get(field.New("a"))
	require.True(t, ok)
	require.NotNil(t, v.Shape)
}

func TestReshapeSetReplaces(t *testing.T) {
	r := NewDocShape(DocEntry("a", ExprValue(NewField("x"))))
	r2 := r.Set(field.New("a"), ExprValue(NewField("y")))
	v, _ := r2.Get(field.New("a"))
	assert.Equal(t, NewField("y"), v.Expr)
	v, _ = r.Get(field.New("a"))
	assert.Equal(t, NewField("x"), v.Expr, "set must not mutate the receiver")
}

func TestReshapeGetAll(t *testing.T) {
	r := NewDocShape(
		DocEntry("a", ShapeOf(NewDocShape(
			DocEntry("b", ExprValue(NewField("x")))))),
		DocEntry("c", ExprValue(NewField("y"))),
	)
	all := r.GetAll()
	require.Len(t, all, 2)
	assert.True(t, all[0].Path.Equal(field.Dotted("a.b")))
	assert.True(t, all[1].Path.Equal(field.New("c")))
}

func TestReshapeRemoveAll(t *testing.T) {
	r := NewDocShape(
		DocEntry("a", ShapeOf(NewDocShape(
			DocEntry("b", ExprValue(NewField("x"))),
			DocEntry("d", ExprValue(NewField("z")))))),
		DocEntry("c", ExprValue(NewField("y"))),
	)
	got := r.RemoveAll(field.List{field.Dotted("a.b"), field.New("c")})
	all := got.GetAll()
	require.Len(t, all, 1)
	assert.True(t, all[0].Path.Equal(field.Dotted("a.d")))

	// Emptied containers are dropped.
	got = r.RemoveAll(field.List{field.Dotted("a.b"), field.Dotted("a.d")})
	_, ok := got.Get(field.New("a"))
	assert.False(t, ok)
}

func TestGroupedSet(t *testing.T) {
	g := NewGrouped(GroupedField("n", &Sum{Arg: NewLiteral(bson.Int64(1))}))
	g2 := g.Set(field.Name("m"), &Push{Arg: NewField("x")})
	assert.Len(t, g.Entries, 1, "set must not mutate the receiver")
	require.Len(t, g2.Entries, 2)
	agg, ok := g2.Get(field.Name("m"))
	require.True(t, ok)
	assert.IsType(t, &Push{}, agg)
}

func TestSelectorToBson(t *testing.T) {
	sel := &And{Conds: []Selector{
		&Term{Field: field.New("x"), Op: "$gt", Value: bson.Int64(0)},
		&Where{Fn: &js.Ident{Name: "f"}},
	}}
	assert.Equal(t,
		`{"$and": [{"x": {"$gt": 0}}, {"$where": Js(f)}]}`,
		SelectorToBson(sel).String())
}

func TestExprToBson(t *testing.T) {
	e := &Cond{
		If:   NewBinary("$gt", NewField("pop"), NewLiteral(bson.Int64(100))),
		Then: &Descend{},
		Else: &Prune{},
	}
	assert.Equal(t,
		`{"$cond": [{"$gt": ["$pop", {"$literal": 100}]}, "$$DESCEND", "$$PRUNE"]}`,
		expectBson(e))
}

func expectBson(e Expr) string {
	return ToBson(e).String()
}
