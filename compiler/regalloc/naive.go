package regalloc

import (
	"context"

	"github.com/slowlang/irmips/compiler/mips"
	"github.com/slowlang/irmips/compiler/prog"
)

// Naive keeps nothing in registers between commands.
type Naive struct {
	base
}

func NewNaive() *Naive {
	return &Naive{base: newBase(mips.IntSaved, mips.FloatSaved)}
}

func (a *Naive) Reset(ctx context.Context, f *prog.Func) error {
	a.reset(f)
	return nil
}

func (a *Naive) EnterFunction() ([]mips.Instr, error) { return nil, nil }

func (a *Naive) EnterCommand(i int) ([]mips.Instr, error) {
	return a.enter(a.f.Code[i])
}

func (a *Naive) ExitCommand(i int) ([]mips.Instr, error) {
	return a.exit(a.f.Code[i])
}
