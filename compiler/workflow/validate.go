package workflow

import (
	"fmt"

	"go.uber.org/multierr"
)

// Validate checks the structural invariants every well-formed op tree
// satisfies: non-source ops have sources, composite ops have non-empty
// source lists, and aggregation specs are populated.  All violations
// are reported together.
func Validate(op Op) error {
	var err error
	walkOps(op, func(op Op) {
		switch op := op.(type) {
		case SingleSourceOp:
			if op.Source() == nil {
				err = multierr.Append(err, fmt.Errorf("workflow: %T has no source", op))
			}
		case *FoldLeft:
			if len(op.Srcs) == 0 {
				err = multierr.Append(err, fmt.Errorf("workflow: fold-left has no sources"))
			}
		case *Join:
			if len(op.Srcs) == 0 {
				err = multierr.Append(err, fmt.Errorf("workflow: join has no sources"))
			}
		}
		if g, ok := op.(*Group); ok {
			if g.Grouped == nil {
				err = multierr.Append(err, fmt.Errorf("workflow: group has no aggregation spec"))
				return
			}
			for _, entry := range g.Grouped.Entries {
				if entry.Agg == nil {
					err = multierr.Append(err,
						fmt.Errorf("workflow: group aggregator %q is empty", entry.Name))
				}
			}
		}
	})
	return err
}

func walkOps(op Op, visit func(Op)) {
	if op == nil {
		return
	}
	visit(op)
	for _, src := range Sources(op) {
		walkOps(src, visit)
	}
}

// OpCount returns the number of ops in the tree, for pass-level
// observability.
func OpCount(op Op) int {
	var n int
	walkOps(op, func(Op) { n++ })
	return n
}
