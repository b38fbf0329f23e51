package workflow

import (
	"github.com/docql/docql/bson"
	"github.com/docql/docql/compiler/expr"
	"github.com/docql/docql/js"
	"github.com/docql/docql/order"
)

// A Task is an executable unit the engine runs directly.  Crush
// lowers a finished op tree to a task tree.
type Task interface {
	TaskNode()
}

type (
	PureTask struct {
		Value bson.Value
	}
	ReadTask struct {
		Collection string
	}
	PipelineTask struct {
		Source   Task
		Pipeline []Stage
	}
	MapReduceTask struct {
		Source Task
		Spec   MapReduce
	}
	// FoldLeftTask materializes its head, then folds each tail job
	// into the head's output collection; every tail job reduces.
	FoldLeftTask struct {
		Head Task
		Tail []*MapReduceTask
	}
	JoinTask struct {
		Tasks []Task
	}
)

func (*PureTask) TaskNode()      {}
func (*ReadTask) TaskNode()      {}
func (*PipelineTask) TaskNode()  {}
func (*MapReduceTask) TaskNode() {}
func (*FoldLeftTask) TaskNode()  {}
func (*JoinTask) TaskNode()      {}

// A Stage is one pipeline stage in the engine's DSL.
type Stage interface {
	StageNode()
}

type (
	MatchStage struct {
		Sel expr.Selector
	}
	ProjectStage struct {
		Shape *expr.Reshape
	}
	RedactStage struct {
		Expr expr.Expr
	}
	SortStage struct {
		Keys order.SortKeys
	}
	LimitStage struct {
		Count int64
	}
	SkipStage struct {
		Count int64
	}
	UnwindStage struct {
		Field expr.DocVar
	}
	GroupStage struct {
		Grouped *expr.Grouped
		By      expr.ShapeValue
	}
	GeoNearStage struct {
		Near               [2]float64
		DistanceField      string
		Limit              int64
		Query              expr.Selector
		Spherical          bool
		DistanceMultiplier float64
		MaxDistance        float64
		IncludeLocs        string
		UniqueDocs         bool
	}
)

func (*MatchStage) StageNode()   {}
func (*ProjectStage) StageNode() {}
func (*RedactStage) StageNode()  {}
func (*SortStage) StageNode()    {}
func (*LimitStage) StageNode()   {}
func (*SkipStage) StageNode()    {}
func (*UnwindStage) StageNode()  {}
func (*GroupStage) StageNode()   {}
func (*GeoNearStage) StageNode() {}

// StageToBson renders a stage in the engine's pipeline syntax.
func StageToBson(s Stage) bson.Value {
	switch s := s.(type) {
	case *MatchStage:
		return stageDoc("$match", expr.SelectorToBson(s.Sel))
	case *ProjectStage:
		return stageDoc("$project", expr.ShapeToBson(s.Shape))
	case *RedactStage:
		return stageDoc("$redact", expr.ToBson(s.Expr))
	case *SortStage:
		keys := make([]bson.Entry, 0, len(s.Keys))
		for _, key := range s.Keys {
			keys = append(keys, bson.Entry{
				Key:   key.Key.String(),
				Value: bson.Int64(key.Order.Direction()),
			})
		}
		return stageDoc("$sort", bson.NewDoc(keys...))
	case *LimitStage:
		return stageDoc("$limit", bson.Int64(s.Count))
	case *SkipStage:
		return stageDoc("$skip", bson.Int64(s.Count))
	case *UnwindStage:
		return stageDoc("$unwind", bson.String(s.Field.String()))
	case *GroupStage:
		entries := []bson.Entry{{Key: "_id", Value: byToBson(s.By)}}
		entries = append(entries, expr.GroupedToBson(s.Grouped)...)
		return stageDoc("$group", bson.NewDoc(entries...))
	case *GeoNearStage:
		entries := []bson.Entry{
			{Key: "near", Value: bson.NewArr(bson.Float64(s.Near[0]), bson.Float64(s.Near[1]))},
			{Key: "distanceField", Value: bson.String(s.DistanceField)},
		}
		if s.Limit != 0 {
			entries = append(entries, bson.Entry{Key: "limit", Value: bson.Int64(s.Limit)})
		}
		if s.Query != nil {
			entries = append(entries, bson.Entry{Key: "query", Value: expr.SelectorToBson(s.Query)})
		}
		if s.Spherical {
			entries = append(entries, bson.Entry{Key: "spherical", Value: bson.Bool(true)})
		}
		return stageDoc("$geoNear", bson.NewDoc(entries...))
	}
	return bson.NewDoc()
}

func stageDoc(name string, v bson.Value) bson.Value {
	return bson.NewDoc(bson.Entry{Key: name, Value: v})
}

func byToBson(by expr.ShapeValue) bson.Value {
	if by.Shape != nil {
		return expr.ShapeToBson(by.Shape)
	}
	return expr.ToBson(by.Expr)
}

// MapReduceToBson renders a job spec as the engine's command body.
func MapReduceToBson(mr *MapReduce) bson.Value {
	entries := []bson.Entry{
		{Key: "map", Value: bson.JavaScript(js.Render(mr.Map))},
		{Key: "reduce", Value: bson.JavaScript(js.Render(mr.Reduce))},
	}
	if mr.Finalize != nil {
		entries = append(entries, bson.Entry{Key: "finalize", Value: bson.JavaScript(js.Render(mr.Finalize))})
	}
	if mr.Selection != nil {
		entries = append(entries, bson.Entry{Key: "query", Value: expr.SelectorToBson(mr.Selection)})
	}
	if !mr.InputSort.IsNil() {
		keys := make([]bson.Entry, 0, len(mr.InputSort))
		for _, key := range mr.InputSort {
			keys = append(keys, bson.Entry{
				Key:   key.Key.String(),
				Value: bson.Int64(key.Order.Direction()),
			})
		}
		entries = append(entries, bson.Entry{Key: "sort", Value: bson.NewDoc(keys...)})
	}
	if mr.Limit != 0 {
		entries = append(entries, bson.Entry{Key: "limit", Value: bson.Int64(mr.Limit)})
	}
	if mr.Out != "" {
		entries = append(entries, bson.Entry{Key: "out", Value: bson.String(string(mr.Out))})
	}
	return bson.NewDoc(entries...)
}
