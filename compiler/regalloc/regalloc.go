package regalloc

import (
	"context"

	"tlog.app/go/errors"
	"tlog.app/go/loc"
	"tlog.app/go/tlog"

	"github.com/slowlang/irmips/compiler/ir"
	"github.com/slowlang/irmips/compiler/mem"
	"github.com/slowlang/irmips/compiler/mips"
	"github.com/slowlang/irmips/compiler/prog"
)

type (
	// Allocator brackets every command of a function with
	// the instructions materializing its operands in registers.
	Allocator interface {
		// Reset prepares clean register pools for f.
		Reset(ctx context.Context, f *prog.Func) error

		// EnterFunction runs after the prologue.
		EnterFunction() ([]mips.Instr, error)

		EnterCommand(i int) ([]mips.Instr, error)
		ExitCommand(i int) ([]mips.Instr, error)

		// Register returns the register holding v during the current command.
		Register(v ir.Var) (mips.Reg, bool)
	}

	// base implements the load-use-store discipline for a single command.
	base struct {
		f *prog.Func

		ints, floats *mem.Pool

		scratch []ir.Var

		// fixed reports variables bound to a register for the whole function.
		fixed func(v ir.Var) (mips.Reg, bool)
	}
)

var ErrUnknownAllocator = errors.New("unknown allocator")

// Names lists allocator policies New accepts.
var Names = []string{"naive", "cfg", "briggs"}

func New(name string) (Allocator, error) {
	switch name {
	case "naive":
		return NewNaive(), nil
	case "cfg":
		return NewCFG(), nil
	case "briggs":
		return NewBriggs(), nil
	default:
		return nil, errors.Wrap(ErrUnknownAllocator, "%q", name)
	}
}

func newBase(ints, floats []string) base {
	return base{
		ints:   mem.NewPool(ints...),
		floats: mem.NewPool(floats...),
	}
}

func (a *base) reset(f *prog.Func) {
	a.f = f
	a.ints.Reset()
	a.floats.Reset()
	a.scratch = a.scratch[:0]
}

func (a *base) pool(tp ir.Type) *mem.Pool {
	if tp == ir.Float {
		return a.floats
	}

	return a.ints
}

func (a *base) Register(v ir.Var) (mips.Reg, bool) {
	if v.Kind == ir.Register {
		return mips.NewReg(v.Reg, v.Type), true
	}

	if a.fixed != nil {
		if r, ok := a.fixed(v); ok {
			return r, true
		}
	}

	l, ok := a.pool(v.Type).Address(v)
	if !ok {
		return mips.Reg{}, false
	}

	return mips.NewReg(l.Reg, v.Type), true
}

func (a *base) resident(v ir.Var) bool {
	_, ok := a.Register(v)
	return ok
}

// bind takes a register for v.
func (a *base) bind(v ir.Var) (mips.Reg, error) {
	p := a.pool(v.Type)

	if !p.Declare(v) {
		return mips.Reg{}, errors.Wrap(mem.ErrExhausted, "%v register for %v", v.Type, v.Name)
	}

	l, _ := p.Address(v)

	return mips.NewReg(l.Reg, v.Type), nil
}

func (a *base) release(v ir.Var) {
	a.pool(v.Type).Release(v)
}

func (a *base) load(v ir.Var, r mips.Reg) ([]mips.Instr, error) {
	l, ok := a.f.Address(v)
	if !ok {
		return nil, errors.New("no address for %v", v.Name)
	}

	tlog.V("alloc").Printw("load", "var", v, "reg", r, "from", l, "caller", loc.Caller(1))

	return mips.LoadFrom(r, l), nil
}

func (a *base) store(v ir.Var, r mips.Reg) ([]mips.Instr, error) {
	l, ok := a.f.Address(v)
	if !ok {
		return nil, errors.New("no address for %v", v.Name)
	}

	tlog.V("alloc").Printw("store", "var", v, "reg", r, "to", l, "caller", loc.Caller(1))

	return mips.StoreTo(r, l), nil
}

// enter loads used and allocates declared variables not already in registers.
// Uses which don't fit are left in memory for the translator to load itself.
func (a *base) enter(x ir.Cmd) (r []mips.Instr, err error) {
	decls := x.Decls()

	for _, v := range x.Uses() {
		if a.resident(v) {
			continue
		}

		if a.pool(v.Type).Free() <= a.reserved(decls, v) {
			tlog.V("alloc").Printw("spill use", "var", v, "free", a.pool(v.Type).Free(), "caller", loc.Caller(1))
			continue
		}

		reg, err := a.bind(v)
		if err != nil {
			return nil, err
		}

		a.scratch = append(a.scratch, v)

		l, err := a.load(v, reg)
		if err != nil {
			return nil, err
		}

		r = append(r, l...)
	}

	for _, v := range decls {
		if a.resident(v) {
			continue
		}

		_, err := a.bind(v)
		if err != nil {
			return nil, err
		}

		a.scratch = append(a.scratch, v)
	}

	return r, nil
}

// exit stores declared scratch variables and frees all scratch registers.
func (a *base) exit(x ir.Cmd) (r []mips.Instr, err error) {
	for _, v := range x.Decls() {
		if !a.isScratch(v) {
			continue
		}

		reg, _ := a.Register(v)

		s, err := a.store(v, reg)
		if err != nil {
			return nil, err
		}

		r = append(r, s...)
	}

	for _, v := range a.scratch {
		a.release(v)
	}

	a.scratch = a.scratch[:0]

	return r, nil
}

func (a *base) isScratch(v ir.Var) bool {
	for _, s := range a.scratch {
		if s.Is(v) {
			return true
		}
	}

	return false
}

// reserved counts registers of use's file still needed by declared variables.
func (a *base) reserved(decls []ir.Var, use ir.Var) (n int) {
	for _, d := range decls {
		if d.Type == use.Type && !d.Is(use) && !a.resident(d) {
			n++
		}
	}

	return n
}
