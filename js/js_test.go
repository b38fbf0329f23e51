package js

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRenderFunc(t *testing.T) {
	fn := NewFunc([]string{"k"},
		&VarDecl{Name: "rez", Expr: NewMethod(&Ident{Name: "f"}, "call", &This{}, &Ident{Name: "k"})},
		&Return{Expr: &Index{Expr: &Ident{Name: "rez"}, Index: &Num{Value: 1}}})
	assert.Equal(t,
		"function(k) { var rez = f.call(this, k); return rez[1]; }",
		Render(fn))
}

func TestRenderFuncInCallPosition(t *testing.T) {
	fn := NewFunc(nil, &Return{Expr: &This{}})
	call := NewMethod(fn, "call", &Num{Value: 1})
	assert.Equal(t, "(function() { return this; }).call(1)", Render(call))
}

func TestRenderObjectAndArray(t *testing.T) {
	e := &Object{Props: []Prop{
		{Key: "a", Value: &Num{Value: 1}},
		{Key: "b", Value: &Array{Elems: []Expr{&Str{Value: "x"}, &Null{}}}},
	}}
	assert.Equal(t, `{"a": 1, "b": ["x", null]}`, Render(e))
}

func TestRenderForIn(t *testing.T) {
	stmt := &ForIn{Var: "attr", Obj: &Ident{Name: "value"}, Body: []Stmt{
		&ExprStmt{Expr: &Binary{
			Op:  "=",
			LHS: &Index{Expr: &Ident{Name: "rez"}, Index: &Ident{Name: "attr"}},
			RHS: &Index{Expr: &Ident{Name: "value"}, Index: &Ident{Name: "attr"}},
		}},
	}}
	fn := NewFunc(nil, stmt)
	assert.Equal(t,
		"function() { for (var attr in value) { rez[attr] = value[attr]; } }",
		Render(fn))
}

func TestRenderBinaryOperand(t *testing.T) {
	e := &Binary{Op: ">", LHS: &Select{Expr: &This{}, Name: "x"}, RHS: &Num{Value: 0}}
	assert.Equal(t, "this.x > 0", Render(e))
	wrapped := NewCall(&Ident{Name: "f"}, e)
	assert.Equal(t, "f(this.x > 0)", Render(wrapped))
}
