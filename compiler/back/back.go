package back

import (
	"context"
	"fmt"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/slowlang/irmips/compiler/ir"
	"github.com/slowlang/irmips/compiler/mem"
	"github.com/slowlang/irmips/compiler/mips"
	"github.com/slowlang/irmips/compiler/prog"
	"github.com/slowlang/irmips/compiler/regalloc"
)

type (
	Compiler struct {
		Alloc regalloc.Allocator
	}

	funContext struct {
		*prog.Func

		alloc regalloc.Allocator

		// translator temporaries, valid within one command
		ints, floats *mem.Pool
		ntemp        int

		calls int // outgoing argument area
		frame int
	}
)

var ErrBadLiteral = errors.New("bad literal")

const (
	// linkage is the return address and saved frame pointer slots.
	linkage = 8

	stackAlign = 8
)

func New(a regalloc.Allocator) *Compiler {
	return &Compiler{Alloc: a}
}

func (c *Compiler) CompileClass(ctx context.Context, b []byte, cls *prog.Class) (_ []byte, err error) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "back: compile class", "name", cls.Name, "funcs", len(cls.Order))
	defer tr.Finish("err", &err)

	a := c.Alloc
	if a == nil {
		a = regalloc.NewNaive()
	}

	b = fmt.Appendf(b, "# class %s\n\n", cls.Name)

	b = appendData(b, cls)

	b = append(b, '\n')
	b = mips.Append(b, mips.Directive{Name: "text"})
	b = mips.Append(b, mips.Directive{Name: "globl", Args: []string{"main"}})

	for _, f := range cls.Order {
		b = append(b, '\n')

		b, err = c.compileFunc(ctx, b, a, f)
		if err != nil {
			return nil, errors.Wrap(err, "func %v", f.Name)
		}
	}

	if tr.If("omit_out") {
		b = nil
	}

	return b, nil
}

func appendData(b []byte, cls *prog.Class) []byte {
	b = mips.Append(b, mips.Directive{Name: "data"})

	for _, v := range cls.Static.Vars() {
		l, _ := cls.Static.Address(v)

		d := mips.Data{Label: l.Label}

		switch {
		case v.Kind == ir.Array:
			d.Kind, d.Init = "space", fmt.Sprintf("%d", v.Size())
		case v.Type == ir.Float:
			d.Kind, d.Init = "float", "0.0"
		default:
			d.Kind, d.Init = "word", "0"
		}

		b = mips.Append(b, d)
	}

	return b
}

func (c *Compiler) compileFunc(ctx context.Context, b []byte, a regalloc.Allocator, fn *prog.Func) (_ []byte, err error) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "compile func", "name", fn.Name, "params", fn.Params, "ret", fn.Ret, "void", fn.Void)
	defer tr.Finish("err", &err)

	f := &funContext{
		Func:   fn,
		alloc:  a,
		ints:   mem.NewPool(mips.IntTemps...),
		floats: mem.NewPool(mips.FloatTemps...),
	}

	f.calls = fn.CallFrame()
	fn.Locals.Bias = f.calls + mips.SavedSize + linkage
	f.frame = (fn.Locals.Bias + fn.Locals.Size() + stackAlign - 1) &^ (stackAlign - 1)
	fn.Frame = f.frame

	tr.Printw("frame", "size", f.frame, "calls", f.calls, "locals", fn.Locals.Size(), "args", fn.Args.Size())

	err = a.Reset(ctx, fn)
	if err != nil {
		return nil, errors.Wrap(err, "reset allocator")
	}

	b = mips.AppendAll(b, f.prologue())

	l, err := a.EnterFunction()
	if err != nil {
		return nil, errors.Wrap(err, "enter function")
	}

	b = mips.AppendAll(b, l)

	for i, x := range fn.Code {
		if tr.If("dump_code") {
			tr.Printw("command", "i", i, "block", fn.Block(i), "typ", tlog.NextAsType, x, "cmd", fmt.Sprint(x))
		}

		l, err := f.command(i, x)
		if err != nil {
			return nil, errors.Wrap(err, "command %d: %v", i, x)
		}

		b = mips.AppendAll(b, l)
	}

	b = mips.AppendAll(b, f.epilogue())

	return b, nil
}

func (f *funContext) prologue() []mips.Instr {
	ra := f.calls + mips.SavedSize

	r := []mips.Instr{
		mips.Label{Name: f.Name},
		mips.OpImm{Op: "addiu", Dst: mips.SP, A: mips.SP, Imm: -f.frame},
		mips.Store{Src: mips.RA, Addr: mips.Addr{Base: mips.SP, Offset: ra}},
		mips.Store{Src: mips.FP, Addr: mips.Addr{Base: mips.SP, Offset: ra + 4}},
	}

	r = append(r, f.saved(true)...)

	return append(r, mips.OpImm{Op: "addiu", Dst: mips.FP, A: mips.SP, Imm: f.frame})
}

func (f *funContext) epilogue() []mips.Instr {
	ra := f.calls + mips.SavedSize

	r := []mips.Instr{mips.Label{Name: f.exitLabel()}}

	r = append(r, f.saved(false)...)

	return append(r,
		mips.Load{Dst: mips.RA, Addr: mips.Addr{Base: mips.SP, Offset: ra}},
		mips.Load{Dst: mips.FP, Addr: mips.Addr{Base: mips.SP, Offset: ra + 4}},
		mips.OpImm{Op: "addiu", Dst: mips.SP, A: mips.SP, Imm: f.frame},
		mips.JumpReg{Reg: mips.RA},
	)
}

// saved spills or restores callee-saved registers right above the call area.
func (f *funContext) saved(store bool) (r []mips.Instr) {
	off := f.calls

	regs := make([]mips.Reg, 0, len(mips.IntSaved)+len(mips.FloatSaved))

	for _, n := range mips.IntSaved {
		regs = append(regs, mips.IntReg(n))
	}

	for _, n := range mips.FloatSaved {
		regs = append(regs, mips.FloatReg(n))
	}

	for _, reg := range regs {
		a := mips.Addr{Base: mips.SP, Offset: off}

		if store {
			r = append(r, mips.Store{Src: reg, Addr: a})
		} else {
			r = append(r, mips.Load{Dst: reg, Addr: a})
		}

		off += reg.Type.Size()
	}

	return r
}

func (f *funContext) label(name string) string { return f.Name + "_" + name }

func (f *funContext) exitLabel() string { return f.Name + "_exit" }

func (f *funContext) temp(tp ir.Type) (mips.Reg, error) {
	p := f.ints
	if tp == ir.Float {
		p = f.floats
	}

	v := ir.NewVar(fmt.Sprintf(".t%d", f.ntemp), tp)
	f.ntemp++

	if !p.Declare(v) {
		return mips.Reg{}, errors.Wrap(mem.ErrExhausted, "%v temporaries", tp)
	}

	l, _ := p.Address(v)

	return mips.NewReg(l.Reg, tp), nil
}

func (f *funContext) freeTemps() {
	f.ints.Reset()
	f.floats.Reset()
}
