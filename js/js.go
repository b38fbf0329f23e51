// Package js models JavaScript function values as opaque syntax
// trees.  The planner composes and renders these trees; it never
// parses or simplifies JS.
package js

import (
	"strconv"
	"strings"
)

type Expr interface {
	exprNode()
}

type Stmt interface {
	stmtNode()
}

// Exprs

type (
	This struct{}
	Ident struct {
		Name string
	}
	Select struct {
		Expr Expr
		Name string
	}
	Index struct {
		Expr  Expr
		Index Expr
	}
	Call struct {
		Fn   Expr
		Args []Expr
	}
	Func struct {
		Params []string
		Body   []Stmt
	}
	Array struct {
		Elems []Expr
	}
	Object struct {
		Props []Prop
	}
	Binary struct {
		Op  string
		LHS Expr
		RHS Expr
	}
	Str struct {
		Value string
	}
	Num struct {
		Value int64
	}
	Null struct{}
)

type Prop struct {
	Key   string
	Value Expr
}

func (*This) exprNode()   {}
func (*Ident) exprNode()  {}
func (*Select) exprNode() {}
func (*Index) exprNode()  {}
func (*Call) exprNode()   {}
func (*Func) exprNode()   {}
func (*Array) exprNode()  {}
func (*Object) exprNode() {}
func (*Binary) exprNode() {}
func (*Str) exprNode()    {}
func (*Num) exprNode()    {}
func (*Null) exprNode()   {}

// Stmts

type (
	Return struct {
		Expr Expr
	}
	VarDecl struct {
		Name string
		Expr Expr
	}
	ExprStmt struct {
		Expr Expr
	}
	ForIn struct {
		Var  string
		Obj  Expr
		Body []Stmt
	}
	If struct {
		Cond Expr
		Then []Stmt
	}
)

func (*Return) stmtNode()   {}
func (*VarDecl) stmtNode()  {}
func (*ExprStmt) stmtNode() {}
func (*ForIn) stmtNode()    {}
func (*If) stmtNode()       {}

// NewFunc builds a function from its parameters and body statements.
func NewFunc(params []string, body ...Stmt) *Func {
	return &Func{Params: params, Body: body}
}

// NewCall applies fn to args.
func NewCall(fn Expr, args ...Expr) *Call {
	return &Call{Fn: fn, Args: args}
}

// NewMethod calls the named method of expr.
func NewMethod(expr Expr, name string, args ...Expr) *Call {
	return NewCall(&Select{Expr: expr, Name: name}, args...)
}

// Render produces deterministic, compact JS source for an expression.
func Render(e Expr) string {
	var b strings.Builder
	renderExpr(&b, e, false)
	return b.String()
}

// renderExpr writes e; operand controls parenthesization of function
// and binary expressions appearing in call/select position.
func renderExpr(b *strings.Builder, e Expr, operand bool) {
	switch e := e.(type) {
	case *This:
		b.WriteString("this")
	case *Ident:
		b.WriteString(e.Name)
	case *Select:
		renderExpr(b, e.Expr, true)
		b.WriteByte('.')
		b.WriteString(e.Name)
	case *Index:
		renderExpr(b, e.Expr, true)
		b.WriteByte('[')
		renderExpr(b, e.Index, false)
		b.WriteByte(']')
	case *Call:
		renderExpr(b, e.Fn, true)
		b.WriteByte('(')
		for k, arg := range e.Args {
			if k > 0 {
				b.WriteString(", ")
			}
			renderExpr(b, arg, false)
		}
		b.WriteByte(')')
	case *Func:
		if operand {
			b.WriteByte('(')
		}
		b.WriteString("function(")
		b.WriteString(strings.Join(e.Params, ", "))
		b.WriteString(") {")
		renderBody(b, e.Body)
		b.WriteString(" }")
		if operand {
			b.WriteByte(')')
		}
	case *Array:
		b.WriteByte('[')
		for k, elem := range e.Elems {
			if k > 0 {
				b.WriteString(", ")
			}
			renderExpr(b, elem, false)
		}
		b.WriteByte(']')
	case *Object:
		b.WriteByte('{')
		for k, prop := range e.Props {
			if k > 0 {
				b.WriteString(", ")
			}
			b.WriteString(strconv.Quote(prop.Key))
			b.WriteString(": ")
			renderExpr(b, prop.Value, false)
		}
		b.WriteByte('}')
	case *Binary:
		if operand {
			b.WriteByte('(')
		}
		renderExpr(b, e.LHS, true)
		b.WriteByte(' ')
		b.WriteString(e.Op)
		b.WriteByte(' ')
		renderExpr(b, e.RHS, true)
		if operand {
			b.WriteByte(')')
		}
	case *Str:
		b.WriteString(strconv.Quote(e.Value))
	case *Num:
		b.WriteString(strconv.FormatInt(e.Value, 10))
	case *Null:
		b.WriteString("null")
	}
}

func renderBody(b *strings.Builder, body []Stmt) {
	for _, stmt := range body {
		b.WriteByte(' ')
		renderStmt(b, stmt)
	}
}

func renderStmt(b *strings.Builder, s Stmt) {
	switch s := s.(type) {
	case *Return:
		b.WriteString("return ")
		renderExpr(b, s.Expr, false)
		b.WriteByte(';')
	case *VarDecl:
		b.WriteString("var ")
		b.WriteString(s.Name)
		b.WriteString(" = ")
		renderExpr(b, s.Expr, false)
		b.WriteByte(';')
	case *ExprStmt:
		renderExpr(b, s.Expr, false)
		b.WriteByte(';')
	case *ForIn:
		b.WriteString("for (var ")
		b.WriteString(s.Var)
		b.WriteString(" in ")
		renderExpr(b, s.Obj, false)
		b.WriteString(") {")
		renderBody(b, s.Body)
		b.WriteString(" }")
	case *If:
		b.WriteString("if (")
		renderExpr(b, s.Cond, false)
		b.WriteString(") {")
		renderBody(b, s.Then)
		b.WriteString(" }")
	}
}
