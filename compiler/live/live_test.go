package live

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slowlang/irmips/compiler/front"
	"github.com/slowlang/irmips/compiler/ir"
	"github.com/slowlang/irmips/compiler/prog"
)

func parse(t *testing.T, text string) *prog.Func {
	t.Helper()

	cls, err := front.Parse(context.Background(), "test.ir", []byte(text))
	require.NoError(t, err)
	require.Len(t, cls.Order, 1)

	return cls.Order[0]
}

func names(vs []ir.Var) []string {
	r := []string{}

	for _, v := range vs {
		r = append(r, v.Name)
	}

	return r
}

func TestStraightLine(t *testing.T) {
	f := parse(t, `
start_function main
int main():
int-list: x, y
    assign, x, 1
    add, x, 1, y
    return, y
end_function main
`)

	l := Analyze(context.Background(), f)

	assert.Equal(t, []string{}, names(l.In(0)))
	assert.Equal(t, []string{"x"}, names(l.In(1)))
	assert.Equal(t, []string{"y"}, names(l.In(2)))

	assert.Equal(t, []string{"x"}, names(l.Out(0)))
	assert.Equal(t, []string{}, names(l.Out(2)))
}

const loop = `
start_function main
void main():
int-list: i, n, s, dead
float-list: f
    assign, n, 10
    assign, s, 0
    assign, i, 0
    assign, f, 0.5
head:
    brgeq, i, n, done
    add, s, i, s
    add, i, 1, i
    assign, dead, i
    goto, head
done:
    call, puti, s
    call, putf, f
end_function main
`

func TestEquations(t *testing.T) {
	f := parse(t, loop)
	l := Analyze(context.Background(), f)

	for i, x := range f.Code {
		in := keys(l.In(i))
		out := keys(l.Out(i))

		want := keys(x.Uses())
		for k := range out {
			want[k] = true
		}

		for _, d := range x.Decls() {
			if !contains(x.Uses(), d) {
				delete(want, d.Key())
			}
		}

		assert.Equal(t, want, in, "in[%d] %v", i, x)

		wantOut := map[ir.Key]bool{}
		for _, s := range f.Succ(i) {
			for _, v := range l.In(s) {
				wantOut[v.Key()] = true
			}
		}

		assert.Equal(t, wantOut, out, "out[%d] %v", i, x)
	}

	head, ok := f.CFG.Lookup("head")
	require.True(t, ok)

	h := f.CFG.Blocks[head].Code[0]

	assert.ElementsMatch(t, []string{"i", "n", "s", "f"}, names(l.In(h)))

	for i := range f.Code {
		assert.False(t, l.IsLiveIn(i, ir.NewVar("dead", ir.Int)), "dead is never read")
	}

	assert.True(t, l.IsLiveOut(0, ir.NewVar("n", ir.Int)))
	assert.False(t, l.IsLiveOut(0, ir.NewVar("n", ir.Float)), "identity is name and type")
}

func TestIdempotent(t *testing.T) {
	f := parse(t, loop)

	ctx := context.Background()

	a := Analyze(ctx, f)
	b := Analyze(ctx, f)

	require.Equal(t, a.Len(), b.Len())

	for i := 0; i < a.Len(); i++ {
		assert.Equal(t, a.In(i), b.In(i))
		assert.Equal(t, a.Out(i), b.Out(i))
	}

	assert.Equal(t, a.Passes, b.Passes)
	assert.Greater(t, a.Passes, 1, "loop needs more than one pass")
}

func keys(vs []ir.Var) map[ir.Key]bool {
	r := map[ir.Key]bool{}

	for _, v := range vs {
		r[v.Key()] = true
	}

	return r
}

func contains(vs []ir.Var, v ir.Var) bool {
	for _, x := range vs {
		if x.Is(v) {
			return true
		}
	}

	return false
}
