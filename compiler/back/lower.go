package back

import (
	"fmt"
	"strconv"

	"tlog.app/go/errors"
	"tlog.app/go/loc"
	"tlog.app/go/tlog"

	"github.com/slowlang/irmips/compiler/ir"
	"github.com/slowlang/irmips/compiler/mips"
	"github.com/slowlang/irmips/compiler/prog"
)

var syscalls = map[string]int{
	"puti": 1,
	"putf": 2,
	"putc": 11,
	"geti": 5,
	"getf": 6,
	"getc": 12,
	"exit": 10,
}

// command lowers x bracketed by the allocator.
// Control transfers are emitted after the allocator has stored everything back.
func (f *funContext) command(i int, x ir.Cmd) (r []mips.Instr, err error) {
	defer f.freeTemps()

	r = append(r, mips.Comment{Text: fmt.Sprint(x)})

	if l, ok := x.(ir.Label); ok {
		r = append(r, mips.Label{Name: f.label(l.Name)})
	}

	l, err := f.alloc.EnterCommand(i)
	if err != nil {
		return nil, errors.Wrap(err, "enter")
	}

	r = append(r, l...)

	var body, tail []mips.Instr

	switch x := x.(type) {
	case ir.Label:
	case ir.BinOp:
		body, err = f.binOp(x)
	case ir.Assign:
		body, err = f.assign(x)
	case ir.ArrayLoad:
		body, err = f.arrayLoad(x)
	case ir.ArrayStore:
		body, err = f.arrayStore(x)
	case ir.Call:
		body, err = f.call(x.Func, x.Args, nil)
	case ir.CallR:
		body, err = f.call(x.Func, x.Args, &x.Dst)
	case ir.Branch:
		body, tail, err = f.branch(x)
	case ir.Goto:
		tail = []mips.Instr{mips.Jump{Label: f.label(x.Label)}}
	case ir.Return:
		body, err = f.ret(x)
		tail = []mips.Instr{mips.Jump{Label: f.exitLabel()}}
	default:
		panic(x)
	}

	if err != nil {
		return nil, err
	}

	r = append(r, body...)

	l, err = f.alloc.ExitCommand(i)
	if err != nil {
		return nil, errors.Wrap(err, "exit")
	}

	r = append(r, l...)
	r = append(r, tail...)

	return r, nil
}

func (f *funContext) binOp(x ir.BinOp) (r []mips.Instr, err error) {
	dst, err := f.dest(x.Dst)
	if err != nil {
		return nil, err
	}

	tp := x.Dst.Type
	if x.Op == ir.And || x.Op == ir.Or {
		tp = ir.Int
	}

	a, r, err := f.operand(x.A, tp)
	if err != nil {
		return nil, err
	}

	out := dst
	if out.Type != tp {
		out, err = f.temp(tp)
		if err != nil {
			return nil, err
		}
	}

	if op, imm, ok := immediate(x.Op, x.B, tp); ok {
		r = append(r, mips.OpImm{Op: op, Dst: out, A: a, Imm: imm})
	} else {
		b, l, err := f.operand(x.B, tp)
		if err != nil {
			return nil, err
		}

		r = append(r, l...)
		r = append(r, mips.Op3{Op: mips.Arith(x.Op, tp == ir.Float), Dst: out, A: a, B: b})
	}

	if out == dst {
		return r, nil
	}

	l, err := f.convertInto(dst, out)
	if err != nil {
		return nil, err
	}

	return append(r, l...), nil
}

// immediate returns the immediate instruction form of "op a, b" if b fits.
func immediate(op ir.Op, b ir.Arg, tp ir.Type) (string, int, bool) {
	c, ok := b.(ir.Const)
	if !ok || tp != ir.Int || c.ArgType() != ir.Int {
		return "", 0, false
	}

	n, err := strconv.Atoi(c.Text)
	if err != nil {
		return "", 0, false
	}

	if op == ir.Sub {
		op, n = ir.Add, -n
	}

	m, ok := mips.ArithImm(op, n)

	return m, n, ok
}

func (f *funContext) assign(x ir.Assign) ([]mips.Instr, error) {
	if x.Dst.Kind == ir.Array {
		return f.fill(x)
	}

	dst, err := f.dest(x.Dst)
	if err != nil {
		return nil, err
	}

	return f.moveInto(dst, x.Value)
}

// fill sets Count elements of an array to a value or copies them from another array.
func (f *funContext) fill(x ir.Assign) (r []mips.Instr, err error) {
	n := x.Count
	if n == 0 {
		n = x.Dst.Len
	}

	if n > x.Dst.Len {
		return nil, errors.New("assign %d elements to %v[%d]", n, x.Dst.Name, x.Dst.Len)
	}

	if src, ok := x.Value.(ir.Var); ok && src.Kind == ir.Array {
		if n > src.Len {
			return nil, errors.New("copy %d elements from %v[%d]", n, src.Name, src.Len)
		}

		for k := 0; k < n; k++ {
			l, err := f.copyElement(x.Dst, src, k)
			if err != nil {
				return nil, errors.Wrap(err, "element %d", k)
			}

			r = append(r, l...)

			f.freeTemps()
		}

		return r, nil
	}

	v, r, err := f.operand(x.Value, x.Dst.Type)
	if err != nil {
		return nil, err
	}

	for k := 0; k < n; k++ {
		pre, addr, err := f.elementAt(x.Dst, k)
		if err != nil {
			return nil, err
		}

		r = append(r, pre...)
		r = append(r, mips.Store{Src: v, Addr: addr})
	}

	return r, nil
}

func (f *funContext) copyElement(dst, src ir.Var, k int) (r []mips.Instr, err error) {
	t, err := f.temp(src.Type)
	if err != nil {
		return nil, err
	}

	pre, addr, err := f.elementAt(src, k)
	if err != nil {
		return nil, err
	}

	r = append(r, pre...)
	r = append(r, mips.Load{Dst: t, Addr: addr})

	v, r, err := f.convert(t, dst.Type, r)
	if err != nil {
		return nil, err
	}

	pre, addr, err = f.elementAt(dst, k)
	if err != nil {
		return nil, err
	}

	r = append(r, pre...)

	return append(r, mips.Store{Src: v, Addr: addr}), nil
}

func (f *funContext) arrayLoad(x ir.ArrayLoad) (r []mips.Instr, err error) {
	dst, err := f.dest(x.Dst)
	if err != nil {
		return nil, err
	}

	r, addr, err := f.element(x.Array, x.Index)
	if err != nil {
		return nil, err
	}

	if dst.Type == x.Array.Type {
		return append(r, mips.Load{Dst: dst, Addr: addr}), nil
	}

	t, err := f.temp(x.Array.Type)
	if err != nil {
		return nil, err
	}

	r = append(r, mips.Load{Dst: t, Addr: addr})

	l, err := f.convertInto(dst, t)
	if err != nil {
		return nil, err
	}

	return append(r, l...), nil
}

func (f *funContext) arrayStore(x ir.ArrayStore) (r []mips.Instr, err error) {
	v, r, err := f.operand(x.Value, x.Array.Type)
	if err != nil {
		return nil, err
	}

	pre, addr, err := f.element(x.Array, x.Index)
	if err != nil {
		return nil, err
	}

	r = append(r, pre...)

	return append(r, mips.Store{Src: v, Addr: addr}), nil
}

// element addresses arr[idx]. Constant indexes are folded into the offset.
func (f *funContext) element(arr ir.Var, idx ir.Arg) (r []mips.Instr, _ mips.Addr, err error) {
	if c, ok := idx.(ir.Const); ok {
		k, err := strconv.Atoi(c.Text)
		if err != nil {
			return nil, mips.Addr{}, errors.Wrap(ErrBadLiteral, "index %q of %v", c.Text, arr.Name)
		}

		return f.elementAt(arr, k)
	}

	i, r, err := f.operand(idx, ir.Int)
	if err != nil {
		return nil, mips.Addr{}, err
	}

	pre, base, err := f.arrayBase(arr)
	if err != nil {
		return nil, mips.Addr{}, err
	}

	t, err := f.temp(ir.Int)
	if err != nil {
		return nil, mips.Addr{}, err
	}

	r = append(r, mips.OpImm{Op: "mul", Dst: t, A: i, Imm: arr.Type.Size()})
	r = append(r, pre...)
	r = append(r, mips.Op3{Op: "add", Dst: t, A: t, B: base.Base})

	return r, mips.Addr{Base: t, Offset: base.Offset}, nil
}

func (f *funContext) elementAt(arr ir.Var, k int) ([]mips.Instr, mips.Addr, error) {
	pre, base, err := f.arrayBase(arr)
	if err != nil {
		return nil, mips.Addr{}, err
	}

	base.Offset += k * arr.Type.Size()

	return pre, base, nil
}

func (f *funContext) arrayBase(arr ir.Var) ([]mips.Instr, mips.Addr, error) {
	if arr.Kind != ir.Array {
		return nil, mips.Addr{}, errors.New("%v is not an array", arr.Name)
	}

	l, ok := f.Address(arr)
	if !ok {
		return nil, mips.Addr{}, errors.New("no location for %v", arr.Name)
	}

	pre, a := mips.AddrOf(l)

	return pre, a, nil
}

func (f *funContext) branch(x ir.Branch) (body, tail []mips.Instr, err error) {
	tp := ir.Int
	if x.A.ArgType() == ir.Float || x.B.ArgType() == ir.Float {
		tp = ir.Float
	}

	a, body, err := f.operand(x.A, tp)
	if err != nil {
		return nil, nil, err
	}

	b, l, err := f.operand(x.B, tp)
	if err != nil {
		return nil, nil, err
	}

	body = append(body, l...)

	label := f.label(x.Label)

	if tp == ir.Int {
		return body, []mips.Instr{mips.Branch{Op: mips.IntBranch(x.Cond), A: a, B: b, Label: label}}, nil
	}

	cmp, onTrue := mips.FloatBranchOps(x.Cond)

	body = append(body, mips.FloatCmp{Op: cmp, A: a, B: b})

	return body, []mips.Instr{mips.FloatBranch{OnTrue: onTrue, Label: label}}, nil
}

func (f *funContext) ret(x ir.Return) ([]mips.Instr, error) {
	if x.Value == nil || f.Void {
		return nil, nil
	}

	return f.moveInto(mips.Return(f.Ret), x.Value)
}

// call stores arguments to the outgoing area and copies the first few
// into argument registers.
func (f *funContext) call(name string, args []ir.Arg, dst *ir.Var) (r []mips.Instr, err error) {
	if _, ok := syscalls[name]; ok {
		return f.intrinsic(name, args, dst)
	}

	var ni, nf, off int

	for k, tp := range f.CallTypes(name, args) {
		v, l, err := f.operand(args[k], tp)
		if err != nil {
			return nil, errors.Wrap(err, "arg %d", k)
		}

		r = append(r, l...)
		r = append(r, mips.Store{Src: v, Addr: mips.Addr{Base: mips.SP, Offset: off}})

		switch {
		case tp == ir.Float && nf < len(prog.FloatArgRegs):
			r = append(r, mips.Move{Dst: mips.FloatReg(prog.FloatArgRegs[nf]), Src: v})
			nf++
		case tp == ir.Int && ni < len(prog.IntArgRegs):
			r = append(r, mips.Move{Dst: mips.IntReg(prog.IntArgRegs[ni]), Src: v})
			ni++
		}

		off += tp.Size()

		f.freeTemps()
	}

	r = append(r, mips.Call{Label: name})

	if dst == nil {
		return r, nil
	}

	ret := dst.Type
	if f.Class != nil {
		if callee, ok := f.Class.Funcs[name]; ok {
			ret = callee.Ret
		}
	}

	return f.result(r, *dst, mips.Return(ret))
}

func (f *funContext) intrinsic(name string, args []ir.Arg, dst *ir.Var) (r []mips.Instr, err error) {
	switch name {
	case "puti", "putc", "putf":
		if len(args) != 1 {
			return nil, errors.New("%v takes 1 argument, got %d", name, len(args))
		}

		reg := mips.IntReg("a0")
		if name == "putf" {
			reg = mips.FloatReg("f12")
		}

		r, err = f.moveInto(reg, args[0])
		if err != nil {
			return nil, err
		}
	}

	tlog.V("intrinsic").Printw("syscall", "name", name, "code", syscalls[name], "caller", loc.Caller(1))

	r = append(r,
		mips.LoadImm{Dst: mips.V0, Value: strconv.Itoa(syscalls[name])},
		mips.Syscall{},
	)

	if dst == nil {
		return r, nil
	}

	res := mips.V0
	if name == "getf" {
		res = mips.F0
	}

	return f.result(r, *dst, res)
}

func (f *funContext) result(r []mips.Instr, dst ir.Var, res mips.Reg) ([]mips.Instr, error) {
	d, err := f.dest(dst)
	if err != nil {
		return nil, err
	}

	l, err := f.convertInto(d, res)
	if err != nil {
		return nil, err
	}

	return append(r, l...), nil
}

func (f *funContext) dest(v ir.Var) (mips.Reg, error) {
	r, ok := f.alloc.Register(v)
	if !ok {
		return mips.Reg{}, errors.New("no register for %v", v.Name)
	}

	return r, nil
}

// operand returns a register holding a as type tp.
// Variables the allocator left in memory are loaded into temporaries.
func (f *funContext) operand(a ir.Arg, tp ir.Type) (mips.Reg, []mips.Instr, error) {
	switch a := a.(type) {
	case ir.Const:
		err := checkLiteral(a)
		if err != nil {
			return mips.Reg{}, nil, err
		}

		t, err := f.temp(a.ArgType())
		if err != nil {
			return mips.Reg{}, nil, err
		}

		return f.convert(t, tp, []mips.Instr{mips.LoadImm{Dst: t, Value: a.Text}})
	case ir.Var:
		if a.Kind == ir.Array {
			return mips.Reg{}, nil, errors.New("array %v used as a scalar", a.Name)
		}

		if reg, ok := f.alloc.Register(a); ok {
			return f.convert(reg, tp, nil)
		}

		l, ok := f.Address(a)
		if !ok {
			return mips.Reg{}, nil, errors.New("no location for %v", a.Name)
		}

		t, err := f.temp(a.Type)
		if err != nil {
			return mips.Reg{}, nil, err
		}

		tlog.V("spill").Printw("load spilled", "var", a, "from", l, "reg", t, "caller", loc.Caller(1))

		return f.convert(t, tp, mips.LoadFrom(t, l))
	default:
		panic(a)
	}
}

// convert appends conversion of src to tp if it has a different type.
func (f *funContext) convert(src mips.Reg, tp ir.Type, r []mips.Instr) (mips.Reg, []mips.Instr, error) {
	if src.Type == tp {
		return src, r, nil
	}

	dst, err := f.temp(tp)
	if err != nil {
		return mips.Reg{}, nil, err
	}

	l, err := f.convertInto(dst, src)
	if err != nil {
		return mips.Reg{}, nil, err
	}

	return dst, append(r, l...), nil
}

func (f *funContext) convertInto(dst, src mips.Reg) ([]mips.Instr, error) {
	switch {
	case dst.Type == src.Type && dst == src:
		return nil, nil
	case dst.Type == src.Type:
		return []mips.Instr{mips.Move{Dst: dst, Src: src}}, nil
	case dst.IsFloat():
		return []mips.Instr{mips.IntToFloat{Dst: dst, Src: src}}, nil
	}

	t, err := f.temp(ir.Float)
	if err != nil {
		return nil, err
	}

	return []mips.Instr{mips.FloatToInt{Dst: dst, Src: src, Tmp: t}}, nil
}

// moveInto puts a into dst, converting it to dst type.
func (f *funContext) moveInto(dst mips.Reg, a ir.Arg) ([]mips.Instr, error) {
	if c, ok := a.(ir.Const); ok && c.ArgType() == dst.Type {
		err := checkLiteral(c)
		if err != nil {
			return nil, err
		}

		return []mips.Instr{mips.LoadImm{Dst: dst, Value: c.Text}}, nil
	}

	src, r, err := f.operand(a, a.ArgType())
	if err != nil {
		return nil, err
	}

	l, err := f.convertInto(dst, src)
	if err != nil {
		return nil, err
	}

	return append(r, l...), nil
}

func checkLiteral(c ir.Const) (err error) {
	if c.ArgType() == ir.Float {
		_, err = strconv.ParseFloat(c.Text, 32)
	} else {
		_, err = strconv.ParseInt(c.Text, 0, 32)
	}

	if err != nil {
		return errors.Wrap(ErrBadLiteral, "%q", c.Text)
	}

	return nil
}
