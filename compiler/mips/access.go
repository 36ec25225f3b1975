package mips

import (
	"github.com/slowlang/irmips/compiler/mem"
)

// AddrOf returns a base+offset address for a memory location.
// Data segment symbols are first loaded into AT.
func AddrOf(l mem.Location) ([]Instr, Addr) {
	if l.IsGlobal() {
		return []Instr{LoadAddr{Dst: AT, Label: l.Label}}, Addr{Base: AT}
	}

	return nil, Addr{Base: IntReg(l.Base), Offset: l.Offset}
}

func LoadFrom(dst Reg, l mem.Location) []Instr {
	pre, a := AddrOf(l)
	return append(pre, Load{Dst: dst, Addr: a})
}

func StoreTo(src Reg, l mem.Location) []Instr {
	pre, a := AddrOf(l)
	return append(pre, Store{Src: src, Addr: a})
}
