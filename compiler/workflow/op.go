// Package workflow implements the planner's op algebra: a DAG of
// atomic query operations, the coalescing and pruning rewrites over
// it, the merge combinator joining two independently built trees, and
// the crush lowering onto executable engine tasks.
package workflow

// This module follows the GO AST design pattern in
// https://golang.org/pkg/go/ast/

import (
	"reflect"

	"github.com/docql/docql/bson"
	"github.com/docql/docql/compiler/expr"
	"github.com/docql/docql/field"
	"github.com/docql/docql/js"
	"github.com/docql/docql/order"
)

// An Op is a node in the operation graph.  Ops are immutable values:
// every rewrite builds a new op and leaves its input untouched.
type Op interface {
	OpNode()
}

// A SourceOp produces documents without consuming any.
type SourceOp interface {
	Op
	SourceNode()
}

// A SingleSourceOp consumes the output of exactly one source op.
type SingleSourceOp interface {
	Op
	Source() Op
	// Reparent returns a copy of the op reading from src.
	Reparent(src Op) SingleSourceOp
}

// A PipelineOp is representable in the engine's pipeline DSL
// (modulo a JS Where predicate inside a Match).
type PipelineOp interface {
	SingleSourceOp
	PipelineNode()
}

// A ShapePreservingOp never alters the shape of the documents
// flowing through it.
type ShapePreservingOp interface {
	PipelineOp
	ShapePreservingNode()
}

// Ops

type (
	// Pure emits a single inline literal document.
	Pure struct {
		Value bson.Value
	}
	// Read scans a named collection.
	Read struct {
		Collection string
	}
	Match struct {
		Src Op
		Sel expr.Selector
	}
	Project struct {
		Src   Op
		Shape *expr.Reshape
	}
	Redact struct {
		Src  Op
		Expr expr.Expr
	}
	Limit struct {
		Src   Op
		Count int64
	}
	Skip struct {
		Src   Op
		Count int64
	}
	Unwind struct {
		Src   Op
		Field expr.DocVar
	}
	Group struct {
		Src     Op
		Grouped *expr.Grouped
		By      expr.ShapeValue
	}
	Sort struct {
		Src  Op
		Keys order.SortKeys
	}
	GeoNear struct {
		Src                Op
		Near               [2]float64
		DistanceField      field.Path
		Limit              int64
		Query              expr.Selector
		Spherical          bool
		DistanceMultiplier float64
		MaxDistance        float64
		IncludeLocs        field.Path
		UniqueDocs         bool
	}
	// Map, FlatMap, and Reduce run JS over the source and must
	// lower to map/reduce jobs.  A Map function takes the current
	// key, sees the document as this, and returns a [key, value]
	// pair; a FlatMap function returns an array of such pairs; a
	// Reduce function takes (key, values) and returns one value.
	Map struct {
		Src Op
		Fn  js.Expr
	}
	FlatMap struct {
		Src Op
		Fn  js.Expr
	}
	Reduce struct {
		Src Op
		Fn  js.Expr
	}
	// FoldLeft folds the outputs of its sources sequentially into
	// one result collection.
	FoldLeft struct {
		Srcs []Op
	}
	// Join combines independently computed sources.
	Join struct {
		Srcs []Op
	}
)

// An output-collection op would slot in here as a SingleSourceOp
// writing its source's output to a named collection.  It is omitted
// until its forking semantics are settled: whether the op terminates
// the plan (single output) or tees to the collection and continues.
//
// type Out struct {
// 	Src        Op
// 	Collection string
// }

func (*Pure) OpNode()     {}
func (*Read) OpNode()     {}
func (*Match) OpNode()    {}
func (*Project) OpNode()  {}
func (*Redact) OpNode()   {}
func (*Limit) OpNode()    {}
func (*Skip) OpNode()     {}
func (*Unwind) OpNode()   {}
func (*Group) OpNode()    {}
func (*Sort) OpNode()     {}
func (*GeoNear) OpNode()  {}
func (*Map) OpNode()      {}
func (*FlatMap) OpNode()  {}
func (*Reduce) OpNode()   {}
func (*FoldLeft) OpNode() {}
func (*Join) OpNode()     {}

func (*Pure) SourceNode() {}
func (*Read) SourceNode() {}

func (o *Match) Source() Op    { return o.Src }
func (o *Project) Source() Op  { return o.Src }
func (o *Redact) Source() Op   { return o.Src }
func (o *Limit) Source() Op    { return o.Src }
func (o *Skip) Source() Op     { return o.Src }
func (o *Unwind) Source() Op   { return o.Src }
func (o *Group) Source() Op    { return o.Src }
func (o *Sort) Source() Op     { return o.Src }
func (o *GeoNear) Source() Op  { return o.Src }
func (o *Map) Source() Op      { return o.Src }
func (o *FlatMap) Source() Op  { return o.Src }
func (o *Reduce) Source() Op   { return o.Src }

func (o *Match) Reparent(src Op) SingleSourceOp {
	out := *o
	out.Src = src
	return &out
}

func (o *Project) Reparent(src Op) SingleSourceOp {
	out := *o
	out.Src = src
	return &out
}

func (o *Redact) Reparent(src Op) SingleSourceOp {
	out := *o
	out.Src = src
	return &out
}

func (o *Limit) Reparent(src Op) SingleSourceOp {
	out := *o
	out.Src = src
	return &out
}

func (o *Skip) Reparent(src Op) SingleSourceOp {
	out := *o
	out.Src = src
	return &out
}

func (o *Unwind) Reparent(src Op) SingleSourceOp {
	out := *o
	out.Src = src
	return &out
}

func (o *Group) Reparent(src Op) SingleSourceOp {
	out := *o
	out.Src = src
	return &out
}

func (o *Sort) Reparent(src Op) SingleSourceOp {
	out := *o
	out.Src = src
	return &out
}

func (o *GeoNear) Reparent(src Op) SingleSourceOp {
	out := *o
	out.Src = src
	return &out
}

func (o *Map) Reparent(src Op) SingleSourceOp {
	out := *o
	out.Src = src
	return &out
}

func (o *FlatMap) Reparent(src Op) SingleSourceOp {
	out := *o
	out.Src = src
	return &out
}

func (o *Reduce) Reparent(src Op) SingleSourceOp {
	out := *o
	out.Src = src
	return &out
}

func (*Match) PipelineNode()   {}
func (*Project) PipelineNode() {}
func (*Redact) PipelineNode()  {}
func (*Limit) PipelineNode()   {}
func (*Skip) PipelineNode()    {}
func (*Unwind) PipelineNode()  {}
func (*Group) PipelineNode()   {}
func (*Sort) PipelineNode()    {}
func (*GeoNear) PipelineNode() {}

func (*Match) ShapePreservingNode() {}
func (*Limit) ShapePreservingNode() {}
func (*Skip) ShapePreservingNode()  {}

// Equal is structural equality over op trees.  The algebra never
// observes pointer identity.
func Equal(a, b Op) bool {
	return reflect.DeepEqual(a, b)
}

// Sources returns an op's sources in order.
func Sources(op Op) []Op {
	switch op := op.(type) {
	case SourceOp:
		return nil
	case SingleSourceOp:
		return []Op{op.Source()}
	case *FoldLeft:
		return op.Srcs
	case *Join:
		return op.Srcs
	}
	return nil
}
