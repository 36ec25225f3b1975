package regalloc

import (
	"context"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/slowlang/irmips/compiler/color"
	"github.com/slowlang/irmips/compiler/ir"
	"github.com/slowlang/irmips/compiler/live"
	"github.com/slowlang/irmips/compiler/mem"
	"github.com/slowlang/irmips/compiler/mips"
	"github.com/slowlang/irmips/compiler/prog"
)

// Briggs binds variables colored by the interference graph
// to registers for the whole function. The rest are spilled
// the Naive way through the scratch registers.
type Briggs struct {
	base

	IntColors   []string
	FloatColors []string

	ints, floats *color.Graph

	// pinned holds colored variables for the whole function.
	pinned struct {
		ints, floats *mem.Pool
	}
}

func NewBriggs() *Briggs {
	ni := len(mips.IntSaved) - 3
	nf := len(mips.FloatSaved) - 3

	a := &Briggs{
		base:        newBase(mips.IntSaved[ni:], mips.FloatSaved[nf:]),
		IntColors:   mips.IntSaved[:ni],
		FloatColors: mips.FloatSaved[:nf],
	}

	a.pinned.ints = mem.NewPool(a.IntColors...)
	a.pinned.floats = mem.NewPool(a.FloatColors...)

	a.fixed = a.colored

	return a
}

func (a *Briggs) Reset(ctx context.Context, f *prog.Func) (err error) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "briggs", "func", f.Name)
	defer tr.Finish("err", &err)

	a.reset(f)
	a.pinned.ints.Reset()
	a.pinned.floats.Reset()

	l := live.Analyze(ctx, f)

	snaps := make([][]ir.Var, l.Len())

	for i := range snaps {
		for _, v := range l.In(i) {
			if f.InFrame(v) {
				snaps[i] = append(snaps[i], v)
			}
		}
	}

	a.ints, a.floats = color.Build(ctx, snaps)

	spilled := a.ints.Color(ctx, a.IntColors)
	spilled += a.floats.Color(ctx, a.FloatColors)

	if tr.If("dump_colors") {
		for _, g := range []*color.Graph{a.ints, a.floats} {
			for _, v := range g.Nodes {
				r, ok := g.Register(v)
				tr.Printw("color", "var", v, "reg", r, "colored", ok, "neighbors", g.Neighbors(v))
			}
		}
	}

	for _, g := range []*color.Graph{a.ints, a.floats} {
		for _, v := range g.Nodes {
			r, ok := g.Register(v)
			if !ok {
				continue
			}

			if err = a.pin(v.Type).Force(v, r); err != nil {
				return errors.Wrap(err, "pin %v", v.Name)
			}
		}
	}

	tr.Printw("colored", "ints", a.ints.Len(), "floats", a.floats.Len(), "spilled", spilled)

	return nil
}

// EnterFunction moves colored arguments into their registers.
// Arguments passed in registers are copied, the rest are loaded from the frame.
func (a *Briggs) EnterFunction() (r []mips.Instr, err error) {
	for _, p := range a.f.Params {
		reg, ok := a.colored(p)
		if !ok {
			continue
		}

		if l, ok := a.f.ArgPool(p.Type).Address(p); ok {
			tlog.V("alloc").Printw("argument register", "var", p, "reg", reg, "from", l)

			r = append(r, mips.Move{Dst: reg, Src: mips.NewReg(l.Reg, p.Type)})

			continue
		}

		l, err := a.load(p, reg)
		if err != nil {
			return nil, err
		}

		r = append(r, l...)
	}

	return r, nil
}

func (a *Briggs) EnterCommand(i int) ([]mips.Instr, error) {
	return a.enter(a.f.Code[i])
}

func (a *Briggs) ExitCommand(i int) ([]mips.Instr, error) {
	return a.exit(a.f.Code[i])
}

func (a *Briggs) Graph(tp ir.Type) *color.Graph {
	if tp == ir.Float {
		return a.floats
	}

	return a.ints
}

func (a *Briggs) pin(tp ir.Type) *mem.Pool {
	if tp == ir.Float {
		return a.pinned.floats
	}

	return a.pinned.ints
}

func (a *Briggs) colored(v ir.Var) (mips.Reg, bool) {
	if v.Kind != ir.Scalar {
		return mips.Reg{}, false
	}

	l, ok := a.pin(v.Type).Address(v)
	if !ok {
		return mips.Reg{}, false
	}

	return mips.NewReg(l.Reg, v.Type), true
}
