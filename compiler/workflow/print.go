package workflow

import (
	"fmt"
	"strings"

	"github.com/kr/text"

	"github.com/docql/docql/compiler/expr"
	"github.com/docql/docql/js"
)

const indent = "    "

// Sprint renders an op tree for diagnostics.
func Sprint(op Op) string {
	var b strings.Builder
	sprintOp(&b, op)
	return strings.TrimRight(b.String(), "\n")
}

func sprintOp(b *strings.Builder, op Op) {
	switch op := op.(type) {
	case *Pure:
		fmt.Fprintf(b, "Pure(%s)\n", op.Value)
	case *Read:
		fmt.Fprintf(b, "Read(%q)\n", op.Collection)
	case *Match:
		fmt.Fprintf(b, "Match(%s)\n", expr.SelectorToBson(op.Sel))
	case *Project:
		fmt.Fprintf(b, "Project(%s)\n", expr.ShapeToBson(op.Shape))
	case *Redact:
		fmt.Fprintf(b, "Redact(%s)\n", expr.ToBson(op.Expr))
	case *Limit:
		fmt.Fprintf(b, "Limit(%d)\n", op.Count)
	case *Skip:
		fmt.Fprintf(b, "Skip(%d)\n", op.Count)
	case *Unwind:
		fmt.Fprintf(b, "Unwind(%s)\n", op.Field)
	case *Group:
		fmt.Fprintf(b, "Group(%s by %s)\n",
			groupedString(op.Grouped), byToBson(op.By))
	case *Sort:
		fmt.Fprintf(b, "Sort(%s)\n", sortKeysString(op))
	case *GeoNear:
		fmt.Fprintf(b, "GeoNear(%v -> %s)\n", op.Near, op.DistanceField)
	case *Map:
		fmt.Fprintf(b, "Map(%s)\n", js.Render(op.Fn))
	case *FlatMap:
		fmt.Fprintf(b, "FlatMap(%s)\n", js.Render(op.Fn))
	case *Reduce:
		fmt.Fprintf(b, "Reduce(%s)\n", js.Render(op.Fn))
	case *FoldLeft:
		b.WriteString("FoldLeft\n")
	case *Join:
		b.WriteString("Join\n")
	default:
		fmt.Fprintf(b, "%T\n", op)
	}
	for _, src := range Sources(op) {
		b.WriteString(text.Indent(Sprint(src), indent))
		b.WriteByte('\n')
	}
}

func groupedString(g *expr.Grouped) string {
	parts := make([]string, 0, len(g.Entries))
	for _, entry := range g.Entries {
		parts = append(parts, fmt.Sprintf("%s: %s", entry.Name, expr.ToBson(entry.Agg)))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func sortKeysString(op *Sort) string {
	parts := make([]string, 0, len(op.Keys))
	for _, key := range op.Keys {
		parts = append(parts, key.String())
	}
	return strings.Join(parts, ", ")
}

// SprintTask renders a task tree for diagnostics.
func SprintTask(task Task) string {
	var b strings.Builder
	sprintTask(&b, task)
	return strings.TrimRight(b.String(), "\n")
}

func sprintTask(b *strings.Builder, task Task) {
	switch task := task.(type) {
	case *PureTask:
		fmt.Fprintf(b, "PureTask(%s)\n", task.Value)
	case *ReadTask:
		fmt.Fprintf(b, "ReadTask(%q)\n", task.Collection)
	case *PipelineTask:
		b.WriteString("PipelineTask\n")
		for _, stage := range task.Pipeline {
			fmt.Fprintf(b, "%s%s\n", indent, StageToBson(stage))
		}
		b.WriteString(text.Indent(SprintTask(task.Source), indent))
		b.WriteByte('\n')
	case *MapReduceTask:
		fmt.Fprintf(b, "MapReduceTask(%s)\n", MapReduceToBson(&task.Spec))
		b.WriteString(text.Indent(SprintTask(task.Source), indent))
		b.WriteByte('\n')
	case *FoldLeftTask:
		b.WriteString("FoldLeftTask\n")
		b.WriteString(text.Indent(SprintTask(task.Head), indent))
		b.WriteByte('\n')
		for _, mr := range task.Tail {
			b.WriteString(text.Indent(SprintTask(mr), indent))
			b.WriteByte('\n')
		}
	case *JoinTask:
		b.WriteString("JoinTask\n")
		for _, t := range task.Tasks {
			b.WriteString(text.Indent(SprintTask(t), indent))
			b.WriteByte('\n')
		}
	}
}
