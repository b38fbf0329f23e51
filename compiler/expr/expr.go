// Package expr implements the expression algebra the workflow planner
// operates over: pipeline expressions, aggregators, selectors, and
// reshaping specifications.
package expr

import (
	"github.com/docql/docql/bson"
	"github.com/docql/docql/field"
)

type Expr interface {
	ExprNode()
}

// A GroupOp is an aggregator expression.  Group.grouped values must
// remain GroupOps across every rewrite.
type GroupOp interface {
	Expr
	GroupNode()
}

// Exprs

type (
	Var struct {
		V DocVar
	}
	Literal struct {
		Value bson.Value
	}
	Binary struct {
		Op  string
		LHS Expr
		RHS Expr
	}
	Call struct {
		Name string
		Args []Expr
	}
	Cond struct {
		If   Expr
		Then Expr
		Else Expr
	}
	// Redact control values.  These are not DocVars and are never
	// touched by reference rewriting.
	Keep    struct{}
	Prune   struct{}
	Descend struct{}
)

func (*Var) ExprNode()     {}
func (*Literal) ExprNode() {}
func (*Binary) ExprNode()  {}
func (*Call) ExprNode()    {}
func (*Cond) ExprNode()    {}
func (*Keep) ExprNode()    {}
func (*Prune) ExprNode()   {}
func (*Descend) ExprNode() {}

// Aggregators

type (
	Push struct {
		Arg Expr
	}
	Sum struct {
		Arg Expr
	}
	First struct {
		Arg Expr
	}
	Last struct {
		Arg Expr
	}
	Min struct {
		Arg Expr
	}
	Max struct {
		Arg Expr
	}
	Avg struct {
		Arg Expr
	}
	AddToSet struct {
		Arg Expr
	}
)

func (*Push) ExprNode()     {}
func (*Sum) ExprNode()      {}
func (*First) ExprNode()    {}
func (*Last) ExprNode()     {}
func (*Min) ExprNode()      {}
func (*Max) ExprNode()      {}
func (*Avg) ExprNode()      {}
func (*AddToSet) ExprNode() {}

func (*Push) GroupNode()     {}
func (*Sum) GroupNode()      {}
func (*First) GroupNode()    {}
func (*Last) GroupNode()     {}
func (*Min) GroupNode()      {}
func (*Max) GroupNode()      {}
func (*Avg) GroupNode()      {}
func (*AddToSet) GroupNode() {}

func NewVar(v DocVar) *Var {
	return &Var{V: v}
}

func NewField(path ...string) *Var {
	var p field.Path
	for _, name := range path {
		p = append(p, field.Name(name))
	}
	return &Var{V: DocVar{Path: p}}
}

func NewLiteral(v bson.Value) *Literal {
	return &Literal{Value: v}
}

func NewBinary(op string, lhs, rhs Expr) *Binary {
	return &Binary{Op: op, LHS: lhs, RHS: rhs}
}

// MapVars rebuilds e bottom-up, replacing every DocVar reference with
// f's image.  Non-Var nodes are rebuilt structurally; variants are
// preserved everywhere except at replaced Var leaves.
func MapVars(e Expr, f func(DocVar) Expr) Expr {
	switch e := e.(type) {
	case *Var:
		return f(e.V)
	case *Literal, *Keep, *Prune, *Descend:
		return e
	case *Binary:
		return &Binary{Op: e.Op, LHS: MapVars(e.LHS, f), RHS: MapVars(e.RHS, f)}
	case *Call:
		args := make([]Expr, 0, len(e.Args))
		for _, arg := range e.Args {
			args = append(args, MapVars(arg, f))
		}
		return &Call{Name: e.Name, Args: args}
	case *Cond:
		return &Cond{
			If:   MapVars(e.If, f),
			Then: MapVars(e.Then, f),
			Else: MapVars(e.Else, f),
		}
	case *Push:
		return &Push{Arg: MapVars(e.Arg, f)}
	case *Sum:
		return &Sum{Arg: MapVars(e.Arg, f)}
	case *First:
		return &First{Arg: MapVars(e.Arg, f)}
	case *Last:
		return &Last{Arg: MapVars(e.Arg, f)}
	case *Min:
		return &Min{Arg: MapVars(e.Arg, f)}
	case *Max:
		return &Max{Arg: MapVars(e.Arg, f)}
	case *Avg:
		return &Avg{Arg: MapVars(e.Arg, f)}
	case *AddToSet:
		return &AddToSet{Arg: MapVars(e.Arg, f)}
	}
	return e
}

// Vars returns every DocVar appearing in e, in traversal order.
func Vars(e Expr) []DocVar {
	var vars []DocVar
	MapVars(e, func(v DocVar) Expr {
		vars = append(vars, v)
		return &Var{V: v}
	})
	return vars
}

// ToBson renders an expression in the engine's pipeline syntax.
func ToBson(e Expr) bson.Value {
	switch e := e.(type) {
	case *Var:
		return bson.String(e.V.String())
	case *Literal:
		return bson.NewDoc(bson.Entry{Key: "$literal", Value: e.Value})
	case *Binary:
		return bson.NewDoc(bson.Entry{
			Key:   e.Op,
			Value: bson.NewArr(ToBson(e.LHS), ToBson(e.RHS)),
		})
	case *Call:
		args := make([]bson.Value, 0, len(e.Args))
		for _, arg := range e.Args {
			args = append(args, ToBson(arg))
		}
		return bson.NewDoc(bson.Entry{Key: e.Name, Value: bson.NewArr(args...)})
	case *Cond:
		return bson.NewDoc(bson.Entry{
			Key:   "$cond",
			Value: bson.NewArr(ToBson(e.If), ToBson(e.Then), ToBson(e.Else)),
		})
	case *Keep:
		return bson.String("$$KEEP")
	case *Prune:
		return bson.String("$$PRUNE")
	case *Descend:
		return bson.String("$$DESCEND")
	case *Push:
		return aggToBson("$push", e.Arg)
	case *Sum:
		return aggToBson("$sum", e.Arg)
	case *First:
		return aggToBson("$first", e.Arg)
	case *Last:
		return aggToBson("$last", e.Arg)
	case *Min:
		return aggToBson("$min", e.Arg)
	case *Max:
		return aggToBson("$max", e.Arg)
	case *Avg:
		return aggToBson("$avg", e.Arg)
	case *AddToSet:
		return aggToBson("$addToSet", e.Arg)
	}
	return bson.Null{}
}

func aggToBson(op string, arg Expr) bson.Value {
	return bson.NewDoc(bson.Entry{Key: op, Value: ToBson(arg)})
}
