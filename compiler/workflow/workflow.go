package workflow

import "github.com/segmentio/ksuid"

// A Workflow is a fully lowered plan ready for the execution layer,
// tagged with an identity for log correlation.
type Workflow struct {
	ID   ksuid.KSUID
	Task Task
}

// New wraps a lowered task in a Workflow with a fresh identity.
func New(task Task) *Workflow {
	return &Workflow{ID: ksuid.New(), Task: task}
}

// Finish normalizes an op tree: coalesce, then prune, repeated until
// the tree stops changing (pruning can expose new fusions).  Finish is
// idempotent; its result is closed under coalescing.
func Finish(op Op) (Op, error) {
	for {
		coalesced, err := Coalesce(op)
		if err != nil {
			return nil, err
		}
		pruned := Prune(coalesced)
		if Equal(pruned, op) {
			return pruned, nil
		}
		op = pruned
	}
}

// Plan finishes the op tree and crushes it onto the task algebra.
func Plan(op Op) (*Workflow, error) {
	finished, err := Finish(op)
	if err != nil {
		return nil, err
	}
	task, err := Crush(finished)
	if err != nil {
		return nil, err
	}
	return New(task), nil
}
