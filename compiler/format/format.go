package format

import (
	"context"
	"fmt"
	"strings"

	"github.com/nikandfor/hacked/hfmt"

	"github.com/slowlang/irmips/compiler/ir"
	"github.com/slowlang/irmips/compiler/live"
	"github.com/slowlang/irmips/compiler/prog"
)

// CFG appends a Graphviz digraph with a cluster per function.
func CFG(b []byte, cls *prog.Class) []byte {
	b = app(b, 0, "digraph %s {\n", cls.Name)
	b = app(b, 1, "node [shape=box, fontname=monospace];\n")

	for _, f := range cls.Order {
		b = append(b, '\n')
		b = cfgFunc(b, f)
	}

	return app(b, 0, "}\n")
}

func cfgFunc(b []byte, f *prog.Func) []byte {
	b = app(b, 1, "subgraph cluster_%s {\n", f.Name)
	b = app(b, 2, "label = %q;\n", f.Name)

	for id, blk := range f.CFG.Blocks {
		if len(blk.Code) == 0 {
			continue
		}

		b = app(b, 2, "%s [label=\"", node(f, id))

		for _, i := range blk.Code {
			b = hfmt.Appendf(b, "%d: %s\\l", i, escape(fmt.Sprint(f.Code[i])))
		}

		b = append(b, "\"];\n"...)
	}

	for id, blk := range f.CFG.Blocks {
		if len(blk.Code) == 0 {
			continue
		}

		for _, i := range f.CFG.Entries(id) {
			b = app(b, 2, "%s -> %s;\n", node(f, id), node(f, f.Block(i)))
		}
	}

	return app(b, 1, "}\n")
}

// Liveness appends live-in and live-out sets of every command of every function.
func Liveness(ctx context.Context, b []byte, cls *prog.Class) []byte {
	for i, f := range cls.Order {
		if i != 0 {
			b = append(b, '\n')
		}

		b = LivenessFunc(b, f, live.Analyze(ctx, f))
	}

	return b
}

func LivenessFunc(b []byte, f *prog.Func, l *live.Sets) []byte {
	b = app(b, 0, "function %s\n", f.Name)

	for i, x := range f.Code {
		b = app(b, 1, "%d: in: {%s} out: {%s}\t# %v\n", i, names(l.In(i)), names(l.Out(i)), x)
	}

	return b
}

func names(vs []ir.Var) string {
	var s strings.Builder

	for i, v := range vs {
		if i != 0 {
			s.WriteString(", ")
		}

		s.WriteString(v.Name)
	}

	return s.String()
}

func node(f *prog.Func, block int) string {
	return fmt.Sprintf("%s_b%d", f.Name, block)
}

func escape(s string) string {
	return strings.ReplaceAll(s, `"`, `\"`)
}

func app(b []byte, d int, f string, args ...any) []byte {
	const tabs = "\t\t\t\t\t\t\t\t\t\t\t\t\t\t\t"
	b = append(b, tabs[:d]...)
	b = hfmt.Appendf(b, f, args...)
	return b
}
