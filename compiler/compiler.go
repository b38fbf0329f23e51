// Package compiler exposes the planner façade: it validates a
// workflow op tree, runs the normalization passes, and lowers the
// result onto executable engine tasks.
package compiler

import (
	"go.uber.org/zap"

	"github.com/docql/docql/compiler/workflow"
)

type Planner struct {
	logger *zap.Logger
}

type Option func(*Planner)

// WithLogger directs pass-level observations to logger.
func WithLogger(logger *zap.Logger) Option {
	return func(p *Planner) {
		p.logger = logger
	}
}

func NewPlanner(opts ...Option) *Planner {
	p := &Planner{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Plan compiles an op tree into an executable workflow.  The op tree
// is left untouched; all passes build new values.
func (p *Planner) Plan(op workflow.Op) (*workflow.Workflow, error) {
	if err := workflow.Validate(op); err != nil {
		return nil, err
	}
	before := workflow.OpCount(op)
	finished, err := workflow.Finish(op)
	if err != nil {
		return nil, err
	}
	p.logger.Debug("finished op tree",
		zap.Int("ops_in", before),
		zap.Int("ops_out", workflow.OpCount(finished)))
	task, err := workflow.Crush(finished)
	if err != nil {
		return nil, err
	}
	wf := workflow.New(task)
	p.logger.Debug("crushed workflow",
		zap.Stringer("id", wf.ID),
		zap.String("task", taskKind(task)))
	return wf, nil
}

func taskKind(task workflow.Task) string {
	switch task.(type) {
	case *workflow.PureTask:
		return "pure"
	case *workflow.ReadTask:
		return "read"
	case *workflow.PipelineTask:
		return "pipeline"
	case *workflow.MapReduceTask:
		return "mapreduce"
	case *workflow.FoldLeftTask:
		return "foldleft"
	case *workflow.JoinTask:
		return "join"
	}
	return "unknown"
}
