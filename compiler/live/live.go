package live

import (
	"context"

	"tlog.app/go/tlog"

	"github.com/slowlang/irmips/compiler/ir"
	"github.com/slowlang/irmips/compiler/prog"
	"github.com/slowlang/irmips/compiler/set"
)

type (
	// Sets holds live-in and live-out variables of every command of a function.
	Sets struct {
		Vars []ir.Var

		index map[ir.Key]int

		use, decl []*set.Bitmap
		in, out   []*set.Bitmap

		Passes int
	}
)

// Analyze runs the backward dataflow fixpoint
//
//	in[i]  = use[i] | (out[i] &^ decl[i])
//	out[i] = | in[s] for s in succ(i)
func Analyze(ctx context.Context, f *prog.Func) (l *Sets) {
	tr, _ := tlog.SpawnFromContextAndWrap(ctx, "liveness", "func", f.Name, "cmds", len(f.Code))
	defer func() {
		tr.Finish("vars", len(l.Vars), "passes", l.Passes)
	}()

	n := len(f.Code)

	l = &Sets{
		index: map[ir.Key]int{},
		use:   make([]*set.Bitmap, n),
		decl:  make([]*set.Bitmap, n),
		in:    make([]*set.Bitmap, n),
		out:   make([]*set.Bitmap, n),
	}

	for i, x := range f.Code {
		l.use[i] = l.bitmap(x.Uses())
		l.decl[i] = l.bitmap(x.Decls())
	}

	for i := range f.Code {
		l.in[i] = set.NewBitmap(len(l.Vars))
		l.out[i] = set.NewBitmap(len(l.Vars))
	}

	succ := make([][]int, n)
	for i := range f.Code {
		succ[i] = f.Succ(i)
	}

	for changed := true; changed; {
		changed = false
		l.Passes++

		for i := n - 1; i >= 0; i-- {
			out := set.NewBitmap(len(l.Vars))

			for _, s := range succ[i] {
				out.Or(l.in[s])
			}

			in := out.Copy()
			in.AndNot(l.decl[i])
			in.Or(l.use[i])

			if !out.Equal(l.out[i]) || !in.Equal(l.in[i]) {
				changed = true
			}

			l.in[i], l.out[i] = in, out
		}
	}

	if tr.If("dump_liveness") {
		for i, x := range f.Code {
			tr.Printw("live", "i", i, "typ", tlog.NextAsType, x, "val", x, "in", l.in[i], "out", l.out[i])
		}
	}

	return l
}

func (l *Sets) Len() int { return len(l.in) }

// In returns variables live right before command i.
func (l *Sets) In(i int) []ir.Var { return l.vars(l.in[i]) }

// Out returns variables live right after command i.
func (l *Sets) Out(i int) []ir.Var { return l.vars(l.out[i]) }

func (l *Sets) IsLiveIn(i int, v ir.Var) bool {
	id, ok := l.index[v.Key()]
	return ok && l.in[i].IsSet(id)
}

func (l *Sets) IsLiveOut(i int, v ir.Var) bool {
	id, ok := l.index[v.Key()]
	return ok && l.out[i].IsSet(id)
}

func (l *Sets) bitmap(vs []ir.Var) *set.Bitmap {
	b := set.NewBitmap(0)

	for _, v := range vs {
		id, ok := l.index[v.Key()]
		if !ok {
			id = len(l.Vars)
			l.index[v.Key()] = id
			l.Vars = append(l.Vars, v)
		}

		b.Set(id)
	}

	return b
}

func (l *Sets) vars(b *set.Bitmap) []ir.Var {
	ids := b.Ones()
	r := make([]ir.Var, len(ids))

	for i, id := range ids {
		r[i] = l.Vars[id]
	}

	return r
}
