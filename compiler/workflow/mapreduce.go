package workflow

import (
	"github.com/docql/docql/compiler/expr"
	"github.com/docql/docql/js"
	"github.com/docql/docql/order"
)

// A MapReduce describes one engine map/reduce job.  Selection,
// InputSort, and Limit mirror the engine's query/sort/limit job
// parameters; a zero Limit means unlimited.
type MapReduce struct {
	Map       js.Expr
	Reduce    js.Expr
	Finalize  js.Expr
	Selection expr.Selector
	InputSort order.SortKeys
	Limit     int64
	Out       OutAction
}

// OutAction is the job's output disposition.
type OutAction string

const (
	OutReplace OutAction = "replace"
	OutMerge   OutAction = "merge"
	OutReduce  OutAction = "reduce"
)

var (
	emit   = &js.Ident{Name: "emit"}
	thisID = &js.Select{Expr: &js.This{}, Name: "_id"}
)

// MapNOP is the identity mapper.
func MapNOP() js.Expr {
	return js.NewFunc(nil,
		&js.ExprStmt{Expr: js.NewCall(emit, thisID, &js.This{})})
}

// ReduceNOP keeps the first value of each key.
func ReduceNOP() js.Expr {
	return js.NewFunc([]string{"key", "values"},
		&js.Return{Expr: &js.Index{Expr: &js.Ident{Name: "values"}, Index: &js.Num{Value: 0}}})
}

// FieldCopyReduce is the standard fold-left reduce: it copies every
// member of each incoming value onto the accumulated document.
func FieldCopyReduce() js.Expr {
	rez := &js.Ident{Name: "rez"}
	value := &js.Ident{Name: "value"}
	attr := &js.Ident{Name: "attr"}
	copyAttr := &js.If{
		Cond: js.NewMethod(value, "hasOwnProperty", attr),
		Then: []js.Stmt{&js.ExprStmt{Expr: &js.Binary{
			Op:  "=",
			LHS: &js.Index{Expr: rez, Index: attr},
			RHS: &js.Index{Expr: value, Index: attr},
		}}},
	}
	copyValue := js.NewFunc([]string{"value"},
		&js.ForIn{Var: "attr", Obj: value, Body: []js.Stmt{copyAttr}})
	return js.NewFunc([]string{"key", "values"},
		&js.VarDecl{Name: "rez", Expr: &js.Object{}},
		&js.ExprStmt{Expr: js.NewMethod(&js.Ident{Name: "values"}, "forEach", copyValue)},
		&js.Return{Expr: rez})
}

// IdentityMapFn is the identity in the planner's map convention.
func IdentityMapFn() js.Expr {
	return js.NewFunc([]string{"k"},
		&js.Return{Expr: &js.Array{Elems: []js.Expr{&js.Ident{Name: "k"}, &js.This{}}}})
}

// MapperFn adapts a map-convention function into the engine's mapper:
// the function's [key, value] pair is emitted.
func MapperFn(fn js.Expr) js.Expr {
	return js.NewFunc(nil,
		&js.ExprStmt{Expr: js.NewMethod(emit, "apply",
			&js.Null{}, js.NewMethod(fn, "call", &js.This{}, thisID))})
}

// FlatMapperFn adapts a flat-map-convention function: every pair of
// the returned array is emitted.
func FlatMapperFn(fn js.Expr) js.Expr {
	pair := &js.Ident{Name: "pair"}
	emitPair := js.NewFunc([]string{"pair"},
		&js.ExprStmt{Expr: js.NewCall(emit,
			&js.Index{Expr: pair, Index: &js.Num{Value: 0}},
			&js.Index{Expr: pair, Index: &js.Num{Value: 1}})})
	pairs := js.NewMethod(fn, "call", &js.This{}, thisID)
	return js.NewFunc(nil,
		&js.ExprStmt{Expr: js.NewMethod(pairs, "forEach", emitPair)})
}

// FinalizerFn adapts a map-convention function into the engine's
// finalize parameter.
func FinalizerFn(fn js.Expr) js.Expr {
	return js.NewFunc([]string{"key", "value"},
		&js.Return{Expr: &js.Index{
			Expr:  js.NewMethod(fn, "call", &js.Ident{Name: "value"}, &js.Ident{Name: "key"}),
			Index: &js.Num{Value: 1},
		}})
}

// Function-composition templates.  Composing outer o with inner i
// threads the [key, value] pair between the two calls, swapping key
// and value positions.

func composePair(outer, inner js.Expr) js.Expr {
	rez := &js.Ident{Name: "rez"}
	return js.NewFunc([]string{"k"},
		&js.VarDecl{Name: "rez", Expr: js.NewMethod(inner, "call", &js.This{}, &js.Ident{Name: "k"})},
		&js.Return{Expr: js.NewMethod(outer, "call",
			&js.Index{Expr: rez, Index: &js.Num{Value: 1}},
			&js.Index{Expr: rez, Index: &js.Num{Value: 0}})})
}

func composeMapEach(outer, inner js.Expr) js.Expr {
	return js.NewFunc([]string{"k"},
		&js.Return{Expr: js.NewMethod(
			js.NewMethod(inner, "call", &js.This{}, &js.Ident{Name: "k"}),
			"map", eachPair(outer))})
}

func composeConcat(outer, inner js.Expr) js.Expr {
	rez := &js.Ident{Name: "rez"}
	return js.NewFunc([]string{"k"},
		&js.VarDecl{Name: "rez", Expr: js.NewMethod(inner, "call", &js.This{}, &js.Ident{Name: "k"})},
		&js.Return{Expr: js.NewMethod(
			&js.Select{Expr: &js.Array{}, Name: "concat"},
			"apply", &js.Null{}, js.NewMethod(rez, "map", eachPair(outer)))})
}

func eachPair(fn js.Expr) js.Expr {
	r := &js.Ident{Name: "r"}
	return js.NewFunc([]string{"r"},
		&js.Return{Expr: js.NewMethod(fn, "call",
			&js.Index{Expr: r, Index: &js.Num{Value: 1}},
			&js.Index{Expr: r, Index: &js.Num{Value: 0}})})
}
