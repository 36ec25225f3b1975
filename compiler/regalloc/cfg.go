package regalloc

import (
	"context"
	"sort"

	"tlog.app/go/tlog"

	"github.com/slowlang/irmips/compiler/ir"
	"github.com/slowlang/irmips/compiler/mips"
	"github.com/slowlang/irmips/compiler/prog"
)

type (
	// CFG caches the most used variables of a basic block
	// in registers for the whole block.
	CFG struct {
		base

		// Reserve is the number of registers per file left for per-command scratch.
		Reserve int

		block []ir.Var
	}

	useCount struct {
		v ir.Var
		n int
	}
)

func NewCFG() *CFG {
	return &CFG{
		base:    newBase(mips.IntSaved, mips.FloatSaved),
		Reserve: 3,
	}
}

func (a *CFG) Reset(ctx context.Context, f *prog.Func) error {
	a.reset(f)
	a.block = a.block[:0]

	return nil
}

func (a *CFG) EnterFunction() ([]mips.Instr, error) { return nil, nil }

func (a *CFG) EnterCommand(i int) (r []mips.Instr, err error) {
	b := a.f.Block(i)

	if a.f.CFG.First(b, i) {
		r, err = a.enterBlock(b)
		if err != nil {
			return nil, err
		}
	}

	l, err := a.enter(a.f.Code[i])
	if err != nil {
		return nil, err
	}

	return append(r, l...), nil
}

func (a *CFG) ExitCommand(i int) (r []mips.Instr, err error) {
	r, err = a.exit(a.f.Code[i])
	if err != nil {
		return nil, err
	}

	if b := a.f.Block(i); !a.f.CFG.Last(b, i) {
		return r, nil
	}

	l, err := a.exitBlock()
	if err != nil {
		return nil, err
	}

	return append(r, l...), nil
}

func (a *CFG) enterBlock(b int) (r []mips.Instr, err error) {
	for _, c := range a.rank(b) {
		p := a.pool(c.v.Type)

		if p.Free() <= a.Reserve {
			continue
		}

		reg, err := a.bind(c.v)
		if err != nil {
			return nil, err
		}

		a.block = append(a.block, c.v)

		l, err := a.load(c.v, reg)
		if err != nil {
			return nil, err
		}

		r = append(r, l...)
	}

	tlog.V("alloc").Printw("enter block", "func", a.f.Name, "block", b, "resident", a.block)

	return r, nil
}

func (a *CFG) exitBlock() (r []mips.Instr, err error) {
	for _, v := range a.block {
		reg, _ := a.Register(v)

		s, err := a.store(v, reg)
		if err != nil {
			return nil, err
		}

		r = append(r, s...)

		a.release(v)
	}

	a.block = a.block[:0]

	return r, nil
}

// rank orders frame variables of block b by use count.
// Statics are never cached: callees may access them.
func (a *CFG) rank(b int) []useCount {
	var l []useCount
	idx := map[ir.Key]int{}

	count := func(v ir.Var) {
		if !a.f.InFrame(v) {
			return
		}

		if i, ok := idx[v.Key()]; ok {
			l[i].n++
			return
		}

		idx[v.Key()] = len(l)
		l = append(l, useCount{v: v, n: 1})
	}

	for _, i := range a.f.CFG.Blocks[b].Code {
		x := a.f.Code[i]

		for _, v := range x.Uses() {
			count(v)
		}

		for _, v := range x.Decls() {
			count(v)
		}
	}

	sort.SliceStable(l, func(i, j int) bool {
		return l[i].n > l[j].n
	})

	return l
}
