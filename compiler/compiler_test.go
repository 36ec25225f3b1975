package compiler

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slowlang/irmips/compiler/back"
	"github.com/slowlang/irmips/compiler/regalloc"
)

const program = `
start_program hello
start_function main
void main():
int-list: i
    assign, i, 0
loop:
    add, i, 1, i
    brlt, i, 3, loop
    call, puti, i
    return
end_function main
end_program hello
`

func write(t *testing.T, dir, name, text string) string {
	t.Helper()

	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(text), 0o644))

	return p
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()

	c, err := LoadConfig(write(t, dir, "irmips.yaml", "allocator: briggs\ndump_cfg: true\n"))
	require.NoError(t, err)
	assert.Equal(t, Config{Allocator: "briggs", DumpCFG: true}, c)

	c, err = LoadConfig(write(t, dir, "empty.yaml", "dump_liveness: true\n"))
	require.NoError(t, err)
	assert.Equal(t, Config{Allocator: "naive", DumpLiveness: true}, c)

	_, err = LoadConfig(write(t, dir, "bad.yaml", "allocator: graph\n"))
	assert.ErrorIs(t, err, regalloc.ErrUnknownAllocator)

	_, err = LoadConfig(write(t, dir, "broken.yaml", "allocator: [\n"))
	assert.Error(t, err)

	_, err = LoadConfig(filepath.Join(dir, "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestCompile(t *testing.T) {
	ctx := context.Background()

	for _, a := range regalloc.Names {
		res, err := Compile(ctx, "hello.ir", []byte(program), Config{Allocator: a})
		require.NoError(t, err, a)

		assert.Contains(t, string(res.Asm), "main:\n", a)
		assert.Nil(t, res.CFG)
		assert.Nil(t, res.Liveness)
	}

	_, err := Compile(ctx, "hello.ir", []byte(program), Config{Allocator: "linear"})
	assert.ErrorIs(t, err, regalloc.ErrUnknownAllocator)

	_, err = Compile(ctx, "bad.ir", []byte("frob\n"), Config{})
	assert.Error(t, err)
}

func TestCompileErrorContext(t *testing.T) {
	const text = `
start_function main
void main():
int-list: arr[4]
    array_store, arr, two, 1
end_function main
`

	_, err := Compile(context.Background(), "bad.ir", []byte(text), Config{})
	require.ErrorIs(t, err, back.ErrBadLiteral)

	// the caller names the file and the action
	assert.True(t, strings.HasPrefix(err.Error(), "codegen: "), "%v", err)
	assert.NotContains(t, err.Error(), "compile")
}

func TestCompileFile(t *testing.T) {
	dir := t.TempDir()
	src := write(t, dir, "hello.ir", program)

	err := CompileFile(context.Background(), src, Config{Allocator: "cfg", DumpCFG: true, DumpLiveness: true})
	require.NoError(t, err)

	for _, name := range []string{"hello.s", "hello.cfg.gv", "hello.liveness"} {
		data, err := os.ReadFile(filepath.Join(dir, name))
		require.NoError(t, err, name)
		assert.NotEmpty(t, data, name)
	}

	gv, err := os.ReadFile(filepath.Join(dir, "hello.cfg.gv"))
	require.NoError(t, err)
	assert.Contains(t, string(gv), "digraph hello {")

	out := filepath.Join(dir, "out", "prog.s")
	require.NoError(t, os.Mkdir(filepath.Dir(out), 0o755))

	err = CompileFile(context.Background(), src, Config{Output: out})
	require.NoError(t, err)

	assert.FileExists(t, out)
	assert.NoFileExists(t, filepath.Join(dir, "out", "prog.cfg.gv"))
}
