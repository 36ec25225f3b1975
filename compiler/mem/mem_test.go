package mem

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slowlang/irmips/compiler/ir"
)

func TestStackTiling(t *testing.T) {
	for _, reversed := range []bool{false, true} {
		s := NewStack("sp", reversed)

		vars := []ir.Var{
			ir.NewVar("a", ir.Int),
			ir.NewVar("f", ir.Float),
			ir.NewArray("arr", ir.Int, 3),
			ir.NewVar("b", ir.Int),
			ir.NewArray("farr", ir.Float, 2),
		}

		total := 0
		for _, v := range vars {
			require.True(t, s.Declare(v))
			total += v.Size()
		}

		assert.Equal(t, total, s.Size())

		type span struct{ off, end int }
		var spans []span

		for _, v := range vars {
			off, ok := s.Offset(v)
			require.True(t, ok)

			spans = append(spans, span{off, off + v.Size()})
		}

		sort.Slice(spans, func(i, j int) bool { return spans[i].off < spans[j].off })

		next := 0
		for _, sp := range spans {
			assert.Equal(t, next, sp.off, "reversed %v: gap or overlap at %d", reversed, sp.off)
			next = sp.end
		}

		assert.Equal(t, total, next)
	}
}

func TestStackReversed(t *testing.T) {
	s := NewStack("sp", true)
	s.Bias = 100

	a := ir.NewVar("a", ir.Int)
	f := ir.NewVar("f", ir.Float)

	require.True(t, s.Declare(a))
	require.True(t, s.Declare(f))
	assert.False(t, s.Declare(a))

	off, _ := s.Offset(a)
	assert.Equal(t, 8, off)

	off, _ = s.Offset(f)
	assert.Equal(t, 0, off)

	l, ok := s.Address(a)
	require.True(t, ok)
	assert.Equal(t, Location{Base: "sp", Offset: 108}, l)
	assert.Equal(t, "108($sp)", l.String())

	v, ok := s.Lookup("f")
	require.True(t, ok)
	assert.Equal(t, f, v)
}

func TestPool(t *testing.T) {
	p := NewPool("s0", "s1")

	a := ir.NewVar("a", ir.Int)
	b := ir.NewVar("b", ir.Int)
	c := ir.NewVar("c", ir.Int)

	assert.True(t, p.Declare(a))
	assert.True(t, p.Declare(a), "already bound")
	assert.True(t, p.Declare(b))
	assert.False(t, p.Declare(c), "exhausted")

	_, ok := p.Address(c)
	assert.False(t, ok)

	l, ok := p.Address(a)
	require.True(t, ok)
	assert.Equal(t, Location{Reg: "s0"}, l)
	assert.True(t, l.IsReg())

	p.Release(a)
	assert.Equal(t, 1, p.Free())

	assert.True(t, p.Declare(c))

	l, _ = p.Address(c)
	assert.Equal(t, "s0", l.Reg)

	p.Reset()
	assert.Equal(t, 2, p.Free())

	_, ok = p.Address(a)
	assert.False(t, ok, "reset unbinds")
}

func TestPoolForce(t *testing.T) {
	p := NewPool("s0", "s1", "s2")

	a := ir.NewVar("a", ir.Int)
	b := ir.NewVar("b", ir.Int)
	c := ir.NewVar("c", ir.Int)

	require.NoError(t, p.Force(a, "s1"))
	require.NoError(t, p.Force(b, "s1"), "shared color")
	assert.Error(t, p.Force(c, "s7"))
	assert.Equal(t, 2, p.Free())

	l, ok := p.Address(b)
	require.True(t, ok)
	assert.Equal(t, "s1", l.Reg)

	require.True(t, p.Declare(c))

	l, _ = p.Address(c)
	assert.Equal(t, "s0", l.Reg, "forced register is taken")

	p.Release(a)
	assert.Equal(t, 1, p.Free(), "b still holds s1")

	p.Release(b)
	assert.Equal(t, 2, p.Free())
}

func TestStatic(t *testing.T) {
	s := NewStatic("v_")

	g := ir.NewVar("g", ir.Int)

	require.True(t, s.Declare(g))
	assert.False(t, s.Declare(g))

	l, ok := s.Address(g)
	require.True(t, ok)
	assert.True(t, l.IsGlobal())
	assert.Equal(t, "v_g", l.String())

	_, ok = s.Address(ir.NewVar("g", ir.Float))
	assert.False(t, ok, "identity is name and type")
}
