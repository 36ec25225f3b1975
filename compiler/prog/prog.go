package prog

import (
	"tlog.app/go/errors"

	"github.com/slowlang/irmips/compiler/cfg"
	"github.com/slowlang/irmips/compiler/ir"
	"github.com/slowlang/irmips/compiler/mem"
)

type (
	Class struct {
		Name string

		Funcs  map[string]*Func
		Order  []*Func
		Static *mem.Static
	}

	Func struct {
		Name string
		Ret  ir.Type
		Void bool

		Params []ir.Var

		Locals *mem.Stack // $sp based, reversed numbering
		Args   *mem.Stack // $fp based, caller's outgoing area

		ArgInt   *mem.Pool
		ArgFloat *mem.Pool

		Code  []ir.Cmd
		block []int

		// Frame is the stack frame size, known after code generation.
		Frame int

		CFG *cfg.Graph

		Class *Class
	}
)

var (
	IntArgRegs   = []string{"a0", "a1", "a2", "a3"}
	FloatArgRegs = []string{"f12", "f14"}
)

// Intrinsics are lowered to system calls.
var Intrinsics = map[string]bool{
	"puti": true,
	"putf": true,
	"putc": true,
	"geti": true,
	"getf": true,
	"getc": true,
	"exit": true,
}

func NewClass(name string) *Class {
	return &Class{
		Name:   name,
		Funcs:  map[string]*Func{},
		Static: mem.NewStatic("v_"),
	}
}

func (c *Class) AddFunc(f *Func) error {
	if _, ok := c.Funcs[f.Name]; ok {
		return errors.New("duplicate function %v", f.Name)
	}

	c.Funcs[f.Name] = f
	c.Order = append(c.Order, f)
	f.Class = c

	return nil
}

func (c *Class) AddStatic(v ir.Var) error {
	if !c.Static.Declare(v) {
		return errors.New("duplicate static %v", v.Name)
	}

	return nil
}

func NewFunc(name string) *Func {
	return &Func{
		Name:     name,
		Void:     true,
		Locals:   mem.NewStack("sp", true),
		Args:     mem.NewStack("fp", false),
		ArgInt:   mem.NewPool(IntArgRegs...),
		ArgFloat: mem.NewPool(FloatArgRegs...),
		CFG:      cfg.New(),
	}
}

// AddParam declares an incoming argument.
// The first few of each type are also bound to argument registers.
func (f *Func) AddParam(v ir.Var) error {
	if !f.Args.Declare(v) {
		return errors.New("duplicate argument %v", v.Name)
	}

	f.Params = append(f.Params, v)

	f.ArgPool(v.Type).Declare(v)

	return nil
}

func (f *Func) AddLocal(v ir.Var) error {
	if _, ok := f.Args.Lookup(v.Name); ok {
		return errors.New("local %v shadows argument", v.Name)
	}

	if !f.Locals.Declare(v) {
		return errors.New("duplicate local %v", v.Name)
	}

	return nil
}

func (f *Func) ArgPool(tp ir.Type) *mem.Pool {
	if tp == ir.Float {
		return f.ArgFloat
	}

	return f.ArgInt
}

// Add appends a command to the current basic block.
func (f *Func) Add(x ir.Cmd) int {
	i := len(f.Code)

	f.Code = append(f.Code, x)
	f.block = append(f.block, f.CFG.Add(i))

	return i
}

func (f *Func) StartBlock(label string) error { return f.CFG.StartBlock(label) }

func (f *Func) EndBlock(label string, cond bool) { f.CFG.EndBlock(label, cond) }

func (f *Func) EndReturn() { f.CFG.EndReturn() }

// Finish checks the function is complete.
func (f *Func) Finish() error {
	err := f.CFG.Finish()
	if err != nil {
		return errors.Wrap(err, "func %v", f.Name)
	}

	return nil
}

// Block returns the block command i belongs to.
func (f *Func) Block(i int) int { return f.block[i] }

// Succ returns indexes of commands that may execute right after command i.
func (f *Func) Succ(i int) []int {
	b := f.block[i]

	if !f.CFG.Last(b, i) {
		return []int{i + 1}
	}

	return f.CFG.Entries(b)
}

// Resolve finds the variable named name: locals, arguments, statics.
// Unknown names are literal constants.
func (f *Func) Resolve(name string) ir.Arg {
	if v, ok := f.Locals.Lookup(name); ok {
		return v
	}

	if v, ok := f.Args.Lookup(name); ok {
		return v
	}

	if f.Class != nil {
		if v, ok := f.Class.Static.Lookup(name); ok {
			return v
		}
	}

	return ir.Const{Text: name}
}

func (f *Func) Address(v ir.Var) (mem.Location, bool) {
	if l, ok := f.Locals.Address(v); ok {
		return l, true
	}

	if l, ok := f.Args.Address(v); ok {
		return l, true
	}

	if f.Class != nil {
		return f.Class.Static.Address(v)
	}

	return mem.Location{}, false
}

// InFrame reports whether v is a local or an argument of f.
func (f *Func) InFrame(v ir.Var) bool {
	if _, ok := f.Locals.Address(v); ok {
		return true
	}

	_, ok := f.Args.Address(v)

	return ok
}

// CallTypes returns the parameter types a call passes its arguments as.
// Arguments of unknown functions keep their own types.
func (f *Func) CallTypes(name string, args []ir.Arg) []ir.Type {
	var callee *Func
	if f.Class != nil {
		callee = f.Class.Funcs[name]
	}

	r := make([]ir.Type, len(args))

	for i, a := range args {
		r[i] = a.ArgType()

		if callee != nil && i < len(callee.Params) {
			r[i] = callee.Params[i].Type
		}
	}

	return r
}

// CallFrame is the largest outgoing argument area over all call sites.
func (f *Func) CallFrame() (size int) {
	for _, x := range f.Code {
		var name string
		var args []ir.Arg

		switch x := x.(type) {
		case ir.Call:
			name, args = x.Func, x.Args
		case ir.CallR:
			name, args = x.Func, x.Args
		default:
			continue
		}

		if Intrinsics[name] {
			continue
		}

		s := 0
		for _, tp := range f.CallTypes(name, args) {
			s += tp.Size()
		}

		if s > size {
			size = s
		}
	}

	return size
}
