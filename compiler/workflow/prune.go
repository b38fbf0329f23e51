package workflow

import (
	"github.com/docql/docql/compiler/expr"
	"github.com/docql/docql/field"
)

// Prune removes defined fields that no downstream op reads.  Nothing
// outside the plan reads the root op, so pruning starts below it.
func Prune(op Op) Op {
	return deleteUnusedFields(op, nil)
}

// deleteUnusedFields removes from op every defined field that is
// neither a prefix nor an extension of a used reference, then
// recurses with the used set the op propagates to its sources.  An
// empty used set disables removal at the current op.
func deleteUnusedFields(op Op, used []expr.DocVar) Op {
	op = removeUnused(op, used)
	childUsed := childUses(op, used)
	switch op := op.(type) {
	case SingleSourceOp:
		return op.Reparent(deleteUnusedFields(op.Source(), childUsed))
	case *FoldLeft:
		return &FoldLeft{Srcs: pruneAll(op.Srcs, childUsed)}
	case *Join:
		return &Join{Srcs: pruneAll(op.Srcs, childUsed)}
	}
	return op
}

func pruneAll(ops []Op, used []expr.DocVar) []Op {
	out := make([]Op, 0, len(ops))
	for _, op := range ops {
		out = append(out, deleteUnusedFields(op, used))
	}
	return out
}

func removeUnused(op Op, used []expr.DocVar) Op {
	if len(used) == 0 {
		return op
	}
	switch op := op.(type) {
	case *Project:
		var remove field.List
		for _, f := range op.Shape.GetAll() {
			if !fieldUsed(f.Path, used) {
				remove = append(remove, f.Path)
			}
		}
		if len(remove) == 0 {
			return op
		}
		return &Project{Src: op.Src, Shape: op.Shape.RemoveAll(remove)}
	case *Group:
		grouped := &expr.Grouped{}
		for _, entry := range op.Grouped.Entries {
			if fieldUsed(field.Path{entry.Name}, used) {
				grouped.Entries = append(grouped.Entries, entry)
			}
		}
		if len(grouped.Entries) == len(op.Grouped.Entries) {
			return op
		}
		return &Group{Src: op.Src, Grouped: grouped, By: op.By}
	}
	return op
}

func fieldUsed(p field.Path, used []expr.DocVar) bool {
	for _, u := range used {
		if u.Path.HasPrefix(p) || p.HasPrefix(u.Path) {
			return true
		}
	}
	return false
}

// childUses computes the used set an op passes to its sources.
// Project and Group define a new shape, so only their own references
// flow down.  JS-bearing ops are opaque: the empty set disables
// pruning below them until the next Project or Group boundary.
func childUses(op Op, used []expr.DocVar) []expr.DocVar {
	switch op.(type) {
	case *Unwind:
		return used
	case *Group, *Project:
		return Refs(op)
	case *Map, *FlatMap, *Reduce:
		return nil
	}
	if len(used) == 0 {
		return nil
	}
	out := make([]expr.DocVar, 0, len(used))
	out = append(out, used...)
	return append(out, Refs(op)...)
}
