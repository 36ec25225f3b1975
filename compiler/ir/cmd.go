package ir

import (
	"fmt"
	"strings"
)

type (
	// Cmd is one of BinOp, Branch, Goto, Return, Call, CallR,
	// ArrayLoad, ArrayStore, Assign, Label.
	Cmd interface {
		Uses() []Var
		Decls() []Var
	}

	Op   string
	Cond string

	BinOp struct {
		Op   Op
		A, B Arg
		Dst  Var
	}

	Branch struct {
		Cond  Cond
		A, B  Arg
		Label string
	}

	Goto struct {
		Label string
	}

	Return struct {
		Value Arg // nil for a bare return
	}

	Call struct {
		Func string
		Args []Arg
	}

	CallR struct {
		Dst  Var
		Func string
		Args []Arg
	}

	ArrayLoad struct {
		Dst   Var
		Array Var
		Index Arg
	}

	ArrayStore struct {
		Array Var
		Index Arg
		Value Arg
	}

	// Assign copies Value into Dst.
	// If Dst is an array, Count elements are filled with Value,
	// or copied element-wise if Value is an array too.
	Assign struct {
		Dst   Var
		Count int
		Value Arg
	}

	Label struct {
		Name string
	}
)

const (
	Add  Op = "add"
	Sub  Op = "sub"
	Mult Op = "mult"
	Div  Op = "div"
	And  Op = "and"
	Or   Op = "or"
)

const (
	BrNeq Cond = "brneq"
	BrEq  Cond = "breq"
	BrGt  Cond = "brgt"
	BrGeq Cond = "brgeq"
	BrLt  Cond = "brlt"
	BrLeq Cond = "brleq"
)

func ParseOp(s string) (Op, bool) {
	switch op := Op(s); op {
	case Add, Sub, Mult, Div, And, Or:
		return op, true
	}

	return "", false
}

func ParseCond(s string) (Cond, bool) {
	switch c := Cond(s); c {
	case BrNeq, BrEq, BrGt, BrGeq, BrLt, BrLeq:
		return c, true
	}

	return "", false
}

// vars collects distinct allocatable variables.
// Constants, arrays and fixed registers are not allocatable.
func vars(args ...Arg) (r []Var) {
outer:
	for _, a := range args {
		v, ok := a.(Var)
		if !ok || v.Kind != Scalar {
			continue
		}

		for _, x := range r {
			if x.Is(v) {
				continue outer
			}
		}

		r = append(r, v)
	}

	return r
}

func (x BinOp) Uses() []Var  { return vars(x.A, x.B) }
func (x BinOp) Decls() []Var { return vars(x.Dst) }

func (x Branch) Uses() []Var  { return vars(x.A, x.B) }
func (x Branch) Decls() []Var { return nil }

func (x Goto) Uses() []Var  { return nil }
func (x Goto) Decls() []Var { return nil }

func (x Return) Uses() []Var {
	if x.Value == nil {
		return nil
	}

	return vars(x.Value)
}

func (x Return) Decls() []Var { return nil }

func (x Call) Uses() []Var  { return vars(x.Args...) }
func (x Call) Decls() []Var { return nil }

func (x CallR) Uses() []Var  { return vars(x.Args...) }
func (x CallR) Decls() []Var { return vars(x.Dst) }

func (x ArrayLoad) Uses() []Var  { return vars(x.Index) }
func (x ArrayLoad) Decls() []Var { return vars(x.Dst) }

// Decls of an array store is empty: the written element is not tracked.
func (x ArrayStore) Uses() []Var  { return vars(x.Index, x.Value) }
func (x ArrayStore) Decls() []Var { return nil }

func (x Assign) Uses() []Var  { return vars(x.Value) }
func (x Assign) Decls() []Var { return vars(x.Dst) }

func (x Label) Uses() []Var  { return nil }
func (x Label) Decls() []Var { return nil }

func (x BinOp) String() string {
	return fmt.Sprintf("%v, %v, %v, %v", x.Op, x.A, x.B, x.Dst)
}

func (x Branch) String() string {
	return fmt.Sprintf("%v, %v, %v, %v", x.Cond, x.A, x.B, x.Label)
}

func (x Goto) String() string { return "goto, " + x.Label }

func (x Return) String() string {
	if x.Value == nil {
		return "return"
	}

	return fmt.Sprintf("return, %v", x.Value)
}

func (x Call) String() string {
	return "call, " + x.Func + joinArgs(x.Args)
}

func (x CallR) String() string {
	return fmt.Sprintf("callr, %v, %v%v", x.Dst, x.Func, joinArgs(x.Args))
}

func (x ArrayLoad) String() string {
	return fmt.Sprintf("array_load, %v, %v, %v", x.Dst, x.Array, x.Index)
}

func (x ArrayStore) String() string {
	return fmt.Sprintf("array_store, %v, %v, %v", x.Array, x.Index, x.Value)
}

func (x Assign) String() string {
	if x.Count != 0 {
		return fmt.Sprintf("assign, %v, %d, %v", x.Dst, x.Count, x.Value)
	}

	return fmt.Sprintf("assign, %v, %v", x.Dst, x.Value)
}

func (x Label) String() string { return x.Name + ":" }

func joinArgs(args []Arg) string {
	var b strings.Builder

	for _, a := range args {
		fmt.Fprintf(&b, ", %v", a)
	}

	return b.String()
}
