package mips

import (
	"fmt"

	"github.com/slowlang/irmips/compiler/ir"
)

type (
	Instr any

	Addr struct {
		Base   Reg
		Offset int
	}

	Op3 struct {
		Op   string
		Dst  Reg
		A, B Reg
	}

	OpImm struct {
		Op  string
		Dst Reg
		A   Reg
		Imm int
	}

	Load struct {
		Dst  Reg
		Addr Addr
	}

	Store struct {
		Src  Reg
		Addr Addr
	}

	LoadImm struct {
		Dst   Reg
		Value string
	}

	LoadAddr struct {
		Dst   Reg
		Label string
	}

	Move struct {
		Dst, Src Reg
	}

	Branch struct {
		Op    string
		A, B  Reg
		Label string
	}

	FloatCmp struct {
		Op   string
		A, B Reg
	}

	FloatBranch struct {
		OnTrue bool
		Label  string
	}

	Jump struct {
		Label string
	}

	Call struct {
		Label string
	}

	JumpReg struct {
		Reg Reg
	}

	IntToFloat struct {
		Dst Reg // float
		Src Reg // int
	}

	// FloatToInt converts through Tmp so Src is preserved.
	FloatToInt struct {
		Dst Reg // int
		Src Reg // float
		Tmp Reg // float
	}

	Label struct {
		Name string
	}

	Comment struct {
		Text string
	}

	Syscall struct{}

	Directive struct {
		Name string
		Args []string
	}

	Data struct {
		Label string
		Kind  string
		Init  string
	}
)

func (a Addr) String() string {
	return fmt.Sprintf("%d(%v)", a.Offset, a.Base)
}

// Append encodes instruction x as assembly text.
func Append(b []byte, x Instr) []byte {
	switch x := x.(type) {
	case Op3:
		return fmt.Appendf(b, "\t%s\t%v, %v, %v\n", x.Op, x.Dst, x.A, x.B)
	case OpImm:
		return fmt.Appendf(b, "\t%s\t%v, %v, %d\n", x.Op, x.Dst, x.A, x.Imm)
	case Load:
		op := "lw"
		if x.Dst.IsFloat() {
			op = "l.s"
		}

		return fmt.Appendf(b, "\t%s\t%v, %v\n", op, x.Dst, x.Addr)
	case Store:
		op := "sw"
		if x.Src.IsFloat() {
			op = "s.s"
		}

		return fmt.Appendf(b, "\t%s\t%v, %v\n", op, x.Src, x.Addr)
	case LoadImm:
		op := "li"
		if x.Dst.IsFloat() {
			op = "li.s"
		}

		return fmt.Appendf(b, "\t%s\t%v, %s\n", op, x.Dst, x.Value)
	case LoadAddr:
		return fmt.Appendf(b, "\tla\t%v, %s\n", x.Dst, x.Label)
	case Move:
		op := "move"
		if x.Dst.IsFloat() {
			op = "mov.s"
		}

		return fmt.Appendf(b, "\t%s\t%v, %v\n", op, x.Dst, x.Src)
	case Branch:
		return fmt.Appendf(b, "\t%s\t%v, %v, %s\n", x.Op, x.A, x.B, x.Label)
	case FloatCmp:
		return fmt.Appendf(b, "\t%s\t%v, %v\n", x.Op, x.A, x.B)
	case FloatBranch:
		op := "bc1f"
		if x.OnTrue {
			op = "bc1t"
		}

		return fmt.Appendf(b, "\t%s\t%s\n", op, x.Label)
	case Jump:
		return fmt.Appendf(b, "\tj\t%s\n", x.Label)
	case Call:
		return fmt.Appendf(b, "\tjal\t%s\n", x.Label)
	case JumpReg:
		return fmt.Appendf(b, "\tjr\t%v\n", x.Reg)
	case IntToFloat:
		b = fmt.Appendf(b, "\tmtc1\t%v, %v\n", x.Src, x.Dst)
		return fmt.Appendf(b, "\tcvt.s.w\t%v, %v\n", x.Dst, x.Dst)
	case FloatToInt:
		b = fmt.Appendf(b, "\tcvt.w.s\t%v, %v\n", x.Tmp, x.Src)
		return fmt.Appendf(b, "\tmfc1\t%v, %v\n", x.Dst, x.Tmp)
	case Label:
		return fmt.Appendf(b, "%s:\n", x.Name)
	case Comment:
		return fmt.Appendf(b, "\t# %s\n", x.Text)
	case Syscall:
		return append(b, "\tsyscall\n"...)
	case Directive:
		b = fmt.Appendf(b, ".%s", x.Name)

		for i, a := range x.Args {
			if i == 0 {
				b = append(b, ' ')
			} else {
				b = append(b, ", "...)
			}

			b = append(b, a...)
		}

		return append(b, '\n')
	case Data:
		return fmt.Appendf(b, "%s:\t.%s\t%s\n", x.Label, x.Kind, x.Init)
	default:
		panic(x)
	}
}

func AppendAll(b []byte, l []Instr) []byte {
	for _, x := range l {
		b = Append(b, x)
	}

	return b
}

// Arith returns the mnemonic for a register-register operation.
func Arith(op ir.Op, float bool) string {
	var m string

	switch op {
	case ir.Add:
		m = "add"
	case ir.Sub:
		m = "sub"
	case ir.Mult:
		m = "mul"
	case ir.Div:
		m = "div"
	case ir.And:
		return "and"
	case ir.Or:
		return "or"
	default:
		panic(op)
	}

	if float {
		m += ".s"
	}

	return m
}

// ArithImm returns the immediate form of an integer operation if it has one.
func ArithImm(op ir.Op, imm int) (string, bool) {
	switch op {
	case ir.Add:
		return "addi", imm >= -1<<15 && imm < 1<<15
	case ir.And:
		return "andi", imm >= 0 && imm < 1<<16
	case ir.Or:
		return "ori", imm >= 0 && imm < 1<<16
	default:
		return "", false
	}
}

func IntBranch(c ir.Cond) string {
	switch c {
	case ir.BrNeq:
		return "bne"
	case ir.BrEq:
		return "beq"
	case ir.BrGt:
		return "bgt"
	case ir.BrGeq:
		return "bge"
	case ir.BrLt:
		return "blt"
	case ir.BrLeq:
		return "ble"
	default:
		panic(c)
	}
}

// FloatBranchOps returns the comparison setting the condition flag
// and whether to branch when the flag is set.
func FloatBranchOps(c ir.Cond) (cmp string, onTrue bool) {
	switch c {
	case ir.BrNeq:
		return "c.eq.s", false
	case ir.BrEq:
		return "c.eq.s", true
	case ir.BrGt:
		return "c.le.s", false
	case ir.BrGeq:
		return "c.lt.s", false
	case ir.BrLt:
		return "c.lt.s", true
	case ir.BrLeq:
		return "c.le.s", true
	default:
		panic(c)
	}
}
