package mem

import (
	"fmt"
	"slices"

	"tlog.app/go/errors"
	"tlog.app/go/tlog/tlwire"

	"github.com/slowlang/irmips/compiler/ir"
)

type (
	// Space maps variables to locations.
	Space interface {
		Declare(v ir.Var) bool
		Address(v ir.Var) (Location, bool)
		Lookup(name string) (ir.Var, bool)
	}

	// Location is either a register (Reg),
	// a memory cell at Offset from Base register,
	// or a data segment symbol (Label).
	Location struct {
		Reg    string
		Base   string
		Offset int
		Label  string
	}

	// Pool is a free list of physical registers.
	Pool struct {
		regs []string
		free []string

		bound map[ir.Key]string
		vars  map[string]ir.Var
	}

	// Stack assigns byte offsets from Base in declaration order.
	Stack struct {
		Base     string
		Reversed bool
		Bias     int

		size   int
		offset map[ir.Key]int
		vars   map[string]ir.Var
		order  []ir.Var
	}

	// Static maps module-level variables to data segment symbols.
	Static struct {
		Prefix string

		labels map[ir.Key]string
		vars   map[string]ir.Var
		order  []ir.Var
	}
)

var ErrExhausted = errors.New("register pool exhausted")

var (
	_ Space = &Pool{}
	_ Space = &Stack{}
	_ Space = &Static{}
)

func (l Location) IsReg() bool    { return l.Reg != "" }
func (l Location) IsGlobal() bool { return l.Label != "" }

func (l Location) String() string {
	switch {
	case l.Reg != "":
		return "$" + l.Reg
	case l.Label != "":
		return l.Label
	default:
		return fmt.Sprintf("%d($%s)", l.Offset, l.Base)
	}
}

func (l Location) TlogAppend(b []byte) []byte {
	var e tlwire.Encoder

	return e.AppendString(b, l.String())
}

func NewPool(regs ...string) *Pool {
	p := &Pool{regs: regs}
	p.Reset()

	return p
}

// Reset frees all registers.
func (p *Pool) Reset() {
	p.free = append(p.free[:0], p.regs...)
	p.bound = map[ir.Key]string{}
	p.vars = map[string]ir.Var{}
}

// Declare binds v to the first free register.
// It fails if the pool is exhausted.
func (p *Pool) Declare(v ir.Var) bool {
	if _, ok := p.bound[v.Key()]; ok {
		return true
	}

	if len(p.free) == 0 {
		return false
	}

	r := p.free[0]
	p.free = p.free[1:]

	p.bind(v, r)

	return true
}

// Force binds v to the register r for pre-colored allocation,
// taking r off the free list. Variables that never meet may share r.
func (p *Pool) Force(v ir.Var, r string) error {
	if !slices.Contains(p.regs, r) {
		return errors.New("register %v is not in the pool", r)
	}

	if i := slices.Index(p.free, r); i >= 0 {
		p.free = slices.Delete(p.free, i, i+1)
	}

	p.bind(v, r)

	return nil
}

func (p *Pool) Release(v ir.Var) {
	r, ok := p.bound[v.Key()]
	if !ok {
		return
	}

	delete(p.bound, v.Key())
	delete(p.vars, v.Name)

	for _, o := range p.bound {
		if o == r {
			return
		}
	}

	p.free = append(p.free, r)
}

func (p *Pool) Address(v ir.Var) (Location, bool) {
	r, ok := p.bound[v.Key()]
	if !ok {
		return Location{}, false
	}

	return Location{Reg: r}, true
}

func (p *Pool) Lookup(name string) (ir.Var, bool) {
	v, ok := p.vars[name]
	return v, ok
}

func (p *Pool) Free() int { return len(p.free) }

func (p *Pool) bind(v ir.Var, r string) {
	p.bound[v.Key()] = r
	p.vars[v.Name] = v
}

func NewStack(base string, reversed bool) *Stack {
	return &Stack{
		Base:     base,
		Reversed: reversed,
		offset:   map[ir.Key]int{},
		vars:     map[string]ir.Var{},
	}
}

// Declare reserves v.Size() bytes. Redeclaration fails.
func (s *Stack) Declare(v ir.Var) bool {
	if _, ok := s.offset[v.Key()]; ok {
		return false
	}

	s.offset[v.Key()] = s.size
	s.vars[v.Name] = v
	s.order = append(s.order, v)
	s.size += v.Size()

	return true
}

// Offset is the slot offset within the frame, without Bias.
func (s *Stack) Offset(v ir.Var) (int, bool) {
	off, ok := s.offset[v.Key()]
	if !ok {
		return 0, false
	}

	if s.Reversed {
		off = s.size - off - v.Size()
	}

	return off, true
}

func (s *Stack) Address(v ir.Var) (Location, bool) {
	off, ok := s.Offset(v)
	if !ok {
		return Location{}, false
	}

	return Location{Base: s.Base, Offset: s.Bias + off}, true
}

func (s *Stack) Lookup(name string) (ir.Var, bool) {
	v, ok := s.vars[name]
	return v, ok
}

func (s *Stack) Size() int { return s.size }

func (s *Stack) Vars() []ir.Var { return s.order }

func NewStatic(prefix string) *Static {
	return &Static{
		Prefix: prefix,
		labels: map[ir.Key]string{},
		vars:   map[string]ir.Var{},
	}
}

func (s *Static) Declare(v ir.Var) bool {
	if _, ok := s.labels[v.Key()]; ok {
		return false
	}

	s.labels[v.Key()] = s.Prefix + v.Name
	s.vars[v.Name] = v
	s.order = append(s.order, v)

	return true
}

func (s *Static) Address(v ir.Var) (Location, bool) {
	l, ok := s.labels[v.Key()]
	if !ok {
		return Location{}, false
	}

	return Location{Label: l}, true
}

func (s *Static) Lookup(name string) (ir.Var, bool) {
	v, ok := s.vars[name]
	return v, ok
}

func (s *Static) Vars() []ir.Var { return s.order }
