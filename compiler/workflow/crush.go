package workflow

import (
	"fmt"
	"reflect"

	"github.com/docql/docql/compiler/expr"
	"github.com/docql/docql/js"
)

// Crush lowers a finished op tree onto the engine's task algebra.
// It is total: ops with no better lowering fall through to a fresh
// map/reduce job rather than failing.
func Crush(op Op) (Task, error) {
	switch op := op.(type) {
	case *Pure:
		return &PureTask{Value: op.Value}, nil
	case *Read:
		return &ReadTask{Collection: op.Collection}, nil
	case *Map:
		return crushMap(op)
	case *FlatMap:
		return crushFlatMap(op)
	case *Reduce:
		return crushReduce(op)
	case *FoldLeft:
		return crushFoldLeft(op)
	case *Join:
		tasks := make([]Task, 0, len(op.Srcs))
		for _, src := range op.Srcs {
			t, err := Crush(src)
			if err != nil {
				return nil, err
			}
			tasks = append(tasks, t)
		}
		return &JoinTask{Tasks: tasks}, nil
	case PipelineOp:
		task, stages, ok, err := pipelineOf(op)
		if err != nil {
			return nil, err
		}
		if ok {
			return &PipelineTask{Source: task, Pipeline: stages}, nil
		}
		// Only a Match with a JS Where predicate is unpipelinable:
		// it becomes a no-op job filtered by the selection.
		m := op.(*Match)
		src, err := Crush(m.Src)
		if err != nil {
			return nil, err
		}
		return &MapReduceTask{Source: src, Spec: MapReduce{
			Map:       MapNOP(),
			Reduce:    ReduceNOP(),
			Selection: m.Sel,
		}}, nil
	}
	return nil, fmt.Errorf("workflow: cannot crush op type %T", op)
}

// pipelineOf returns the upstream task and the stage run expressing
// op in the pipeline DSL, or ok=false when op itself has no stage
// form.  A pipelinable op over an unpipelinable source starts a fresh
// stage run rooted at the source's crush.
func pipelineOf(op PipelineOp) (Task, []Stage, bool, error) {
	stage, ok := stageOf(op)
	if !ok {
		return nil, nil, false, nil
	}
	if src, isPipe := op.Source().(PipelineOp); isPipe {
		task, stages, ok, err := pipelineOf(src)
		if err != nil {
			return nil, nil, false, err
		}
		if ok {
			return task, append(stages, stage), true, nil
		}
	}
	task, err := Crush(op.Source())
	if err != nil {
		return nil, nil, false, err
	}
	return task, []Stage{stage}, true, nil
}

func stageOf(op PipelineOp) (Stage, bool) {
	switch op := op.(type) {
	case *Match:
		if expr.HasWhere(op.Sel) {
			return nil, false
		}
		return &MatchStage{Sel: op.Sel}, true
	case *Project:
		return &ProjectStage{Shape: op.Shape}, true
	case *Redact:
		return &RedactStage{Expr: op.Expr}, true
	case *Limit:
		return &LimitStage{Count: op.Count}, true
	case *Skip:
		return &SkipStage{Count: op.Count}, true
	case *Unwind:
		return &UnwindStage{Field: op.Field}, true
	case *Group:
		return &GroupStage{Grouped: op.Grouped, By: op.By}, true
	case *Sort:
		return &SortStage{Keys: op.Keys}, true
	case *GeoNear:
		return &GeoNearStage{
			Near:               op.Near,
			DistanceField:      op.DistanceField.String(),
			Limit:              op.Limit,
			Query:              op.Query,
			Spherical:          op.Spherical,
			DistanceMultiplier: op.DistanceMultiplier,
			MaxDistance:        op.MaxDistance,
			IncludeLocs:        locsOf(op),
			UniqueDocs:         op.UniqueDocs,
		}, true
	}
	return nil, false
}

func locsOf(op *GeoNear) string {
	if len(op.IncludeLocs) == 0 {
		return ""
	}
	return op.IncludeLocs.String()
}

// peelMR peels a short trailing pipeline prefix of src — a limit over
// a sort over a JS-free match — into the equivalent map/reduce job
// parameters.
func peelMR(src Op) (MapReduce, Op, bool) {
	var mr MapReduce
	cur := src
	if l, ok := cur.(*Limit); ok {
		mr.Limit = l.Count
		cur = l.Src
	}
	if s, ok := cur.(*Sort); ok {
		mr.InputSort = s.Keys
		cur = s.Src
	}
	if m, ok := cur.(*Match); ok && !expr.HasWhere(m.Sel) {
		mr.Selection = m.Sel
		cur = m.Src
	}
	return mr, cur, !Equal(cur, src)
}

func crushMap(op *Map) (Task, error) {
	if mr, base, ok := peelMR(op.Src); ok {
		src, err := Crush(base)
		if err != nil {
			return nil, err
		}
		mr.Map = MapperFn(op.Fn)
		mr.Reduce = ReduceNOP()
		return &MapReduceTask{Source: src, Spec: mr}, nil
	}
	src, err := Crush(op.Src)
	if err != nil {
		return nil, err
	}
	// A map over an existing job becomes its finalizer.
	if t, ok := src.(*MapReduceTask); ok && t.Spec.Finalize == nil {
		spec := t.Spec
		spec.Finalize = FinalizerFn(op.Fn)
		return &MapReduceTask{Source: t.Source, Spec: spec}, nil
	}
	return &MapReduceTask{Source: src, Spec: MapReduce{
		Map:    MapperFn(op.Fn),
		Reduce: ReduceNOP(),
	}}, nil
}

func crushFlatMap(op *FlatMap) (Task, error) {
	if mr, base, ok := peelMR(op.Src); ok {
		src, err := Crush(base)
		if err != nil {
			return nil, err
		}
		mr.Map = FlatMapperFn(op.Fn)
		mr.Reduce = ReduceNOP()
		return &MapReduceTask{Source: src, Spec: mr}, nil
	}
	src, err := Crush(op.Src)
	if err != nil {
		return nil, err
	}
	return &MapReduceTask{Source: src, Spec: MapReduce{
		Map:    FlatMapperFn(op.Fn),
		Reduce: ReduceNOP(),
	}}, nil
}

func crushReduce(op *Reduce) (Task, error) {
	src, err := Crush(op.Src)
	if err != nil {
		return nil, err
	}
	// Attach to an existing reduce-free job if there is one.
	if t, ok := src.(*MapReduceTask); ok && t.Spec.Finalize == nil && isReduceNOP(t.Spec.Reduce) {
		spec := t.Spec
		spec.Reduce = op.Fn
		return &MapReduceTask{Source: t.Source, Spec: spec}, nil
	}
	return &MapReduceTask{Source: src, Spec: MapReduce{
		Map:    MapNOP(),
		Reduce: op.Fn,
	}}, nil
}

func isReduceNOP(fn js.Expr) bool {
	return reflect.DeepEqual(fn, ReduceNOP())
}

func crushFoldLeft(op *FoldLeft) (Task, error) {
	head, err := Crush(op.Srcs[0])
	if err != nil {
		return nil, err
	}
	tail := make([]*MapReduceTask, 0, len(op.Srcs)-1)
	for _, branch := range op.Srcs[1:] {
		mr, err := crushFoldBranch(branch)
		if err != nil {
			return nil, err
		}
		tail = append(tail, mr)
	}
	return &FoldLeftTask{Head: head, Tail: tail}, nil
}

// crushFoldBranch lowers a fold-left tail branch and forces its
// output action to reduce.  A branch with no map/reduce form is
// rewritten under an identity map; if that still yields no job, the
// plan violates an internal invariant.
func crushFoldBranch(branch Op) (*MapReduceTask, error) {
	task, err := Crush(branch)
	if err != nil {
		return nil, err
	}
	mr, ok := task.(*MapReduceTask)
	if !ok {
		task, err = Crush(&Map{Src: branch, Fn: IdentityMapFn()})
		if err != nil {
			return nil, err
		}
		if mr, ok = task.(*MapReduceTask); !ok {
			return nil, fmt.Errorf("workflow: fold-left tail does not lower to a map/reduce job:\n%s",
				SprintTask(task))
		}
	}
	out := *mr
	out.Spec.Out = OutReduce
	return &out, nil
}
