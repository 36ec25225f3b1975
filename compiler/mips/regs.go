package mips

import (
	"github.com/slowlang/irmips/compiler/ir"
)

type (
	Reg struct {
		Name string
		Type ir.Type
	}
)

var (
	Zero = IntReg("zero")
	SP   = IntReg("sp")
	FP   = IntReg("fp")
	RA   = IntReg("ra")
	V0   = IntReg("v0")
	F0   = FloatReg("f0")

	// AT holds synthesized addresses of data segment symbols.
	AT = IntReg("t9")
)

var (
	IntTemps   = []string{"t0", "t1", "t2", "t3", "t4", "t5", "t6", "t7", "t8"}
	FloatTemps = []string{"f4", "f6", "f8", "f10", "f16", "f18"}

	IntSaved   = []string{"s0", "s1", "s2", "s3", "s4", "s5", "s6", "s7"}
	FloatSaved = []string{"f20", "f22", "f24", "f26", "f28", "f30"}
)

// SavedSize is the frame space the callee-saved registers are spilled to.
var SavedSize = len(IntSaved)*ir.Int.Size() + len(FloatSaved)*ir.Float.Size()

func IntReg(name string) Reg   { return Reg{Name: name, Type: ir.Int} }
func FloatReg(name string) Reg { return Reg{Name: name, Type: ir.Float} }

func NewReg(name string, tp ir.Type) Reg { return Reg{Name: name, Type: tp} }

// Return is the register a value of type tp is returned in.
func Return(tp ir.Type) Reg {
	if tp == ir.Float {
		return F0
	}

	return V0
}

func (r Reg) IsFloat() bool { return r.Type == ir.Float }

func (r Reg) Valid() bool { return r.Name != "" }

func (r Reg) String() string { return "$" + r.Name }
