package ir

import (
	"strings"

	"tlog.app/go/tlog/tlwire"
)

type (
	Type int

	VarKind int

	// Arg is a command operand: Const or Var.
	Arg interface {
		ArgType() Type
	}

	Const struct {
		Text string
	}

	Var struct {
		Name string
		Type Type
		Kind VarKind

		Len int    // Array element count
		Reg string // Register physical name without $
	}

	// Key identifies a variable. Two variables with equal keys are the same entity.
	Key struct {
		Name string
		Type Type
	}
)

const (
	Int Type = iota
	Float
)

const (
	Scalar VarKind = iota
	Array
	Register
)

func (t Type) Size() int {
	if t == Float {
		return 8
	}

	return 4
}

func (t Type) String() string {
	if t == Float {
		return "float"
	}

	return "int"
}

func ParseType(s string) (Type, bool) {
	switch s {
	case "int":
		return Int, true
	case "float":
		return Float, true
	default:
		return Int, false
	}
}

func (c Const) ArgType() Type {
	if strings.Contains(c.Text, ".") {
		return Float
	}

	return Int
}

func (c Const) String() string { return c.Text }

func NewVar(name string, tp Type) Var {
	return Var{Name: name, Type: tp}
}

func NewArray(name string, tp Type, n int) Var {
	return Var{Name: name, Type: tp, Kind: Array, Len: n}
}

func NewRegister(name string, reg string, tp Type) Var {
	return Var{Name: name, Type: tp, Kind: Register, Reg: reg}
}

func (v Var) ArgType() Type { return v.Type }

func (v Var) Key() Key { return Key{Name: v.Name, Type: v.Type} }

func (v Var) Is(x Var) bool { return v.Key() == x.Key() }

// Size is the number of bytes the variable occupies in memory.
func (v Var) Size() int {
	if v.Kind == Array {
		return v.Len * v.Type.Size()
	}

	return v.Type.Size()
}

func (v Var) String() string {
	if v.Kind == Register {
		return "$" + v.Reg
	}

	return v.Name
}

func (v Var) TlogAppend(b []byte) []byte {
	var e tlwire.Encoder

	n := 2
	if v.Kind == Array {
		n++
	}

	b = e.AppendMap(b, n)

	b = e.AppendString(b, "name")
	b = e.AppendString(b, v.Name)

	b = e.AppendString(b, "type")
	b = e.AppendString(b, v.Type.String())

	if v.Kind == Array {
		b = e.AppendKeyInt(b, "len", v.Len)
	}

	return b
}
