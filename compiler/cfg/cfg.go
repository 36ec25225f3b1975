package cfg

import (
	"sort"

	"tlog.app/go/errors"
	"tlog.app/go/tlog/tlwire"
)

type (
	// Graph partitions a command stream into basic blocks.
	// Blocks and commands are referred to by index.
	Graph struct {
		Blocks []Block

		cur     int
		labels  map[string]int
		pending map[string][]int // undefined label -> blocks jumping to it
	}

	Block struct {
		Label string
		Code  []int
		Succ  []int
	}
)

var (
	ErrDuplicateLabel = errors.New("duplicate label")
	ErrUndefinedLabel = errors.New("undefined label")
)

func New() *Graph {
	return &Graph{
		Blocks:  []Block{{}},
		labels:  map[string]int{},
		pending: map[string][]int{},
	}
}

// Current is the block commands are appended to.
func (g *Graph) Current() int { return g.cur }

// Add appends command i to the current block and returns the block index.
func (g *Graph) Add(i int) int {
	b := &g.Blocks[g.cur]
	b.Code = append(b.Code, i)

	return g.cur
}

// StartBlock opens the block defined by label.
// An empty current block is reused instead of leaving it degenerate.
func (g *Graph) StartBlock(label string) error {
	if _, ok := g.labels[label]; ok {
		return errors.Wrap(ErrDuplicateLabel, "%v", label)
	}

	if len(g.Blocks[g.cur].Code) != 0 {
		prev := g.cur
		g.cur = g.open()

		g.link(prev, g.cur)
	}

	g.labels[label] = g.cur
	g.Blocks[g.cur].Label = label

	for _, from := range g.pending[label] {
		g.link(from, g.cur)
	}

	delete(g.pending, label)

	return nil
}

// EndBlock closes the current block with a jump to label.
// Conditional jumps also fall through to the next block.
func (g *Graph) EndBlock(label string, cond bool) {
	if to, ok := g.labels[label]; ok {
		g.link(g.cur, to)
	} else {
		g.pending[label] = append(g.pending[label], g.cur)
	}

	prev := g.cur
	g.cur = g.open()

	if cond {
		g.link(prev, g.cur)
	}
}

// EndReturn closes the current block without successors.
func (g *Graph) EndReturn() {
	g.cur = g.open()
}

// Finish reports jumps to labels that were never defined.
func (g *Graph) Finish() error {
	if len(g.pending) == 0 {
		return nil
	}

	names := make([]string, 0, len(g.pending))

	for l := range g.pending {
		names = append(names, l)
	}

	sort.Strings(names)

	return errors.Wrap(ErrUndefinedLabel, "%v", names)
}

// Lookup returns the block defined by label.
func (g *Graph) Lookup(label string) (int, bool) {
	b, ok := g.labels[label]
	return b, ok
}

// Last reports whether command i ends its block.
func (g *Graph) Last(block, i int) bool {
	c := g.Blocks[block].Code
	return len(c) != 0 && c[len(c)-1] == i
}

// First reports whether command i starts its block.
func (g *Graph) First(block, i int) bool {
	c := g.Blocks[block].Code
	return len(c) != 0 && c[0] == i
}

// Entries returns the first commands reachable from the end of block.
// Empty successor blocks are passed through.
func (g *Graph) Entries(block int) (r []int) {
	visited := map[int]bool{}

	var walk func(b int)
	walk = func(b int) {
		for _, s := range g.Blocks[b].Succ {
			if visited[s] {
				continue
			}

			visited[s] = true

			if c := g.Blocks[s].Code; len(c) != 0 {
				r = append(r, c[0])
				continue
			}

			walk(s)
		}
	}

	walk(block)

	return r
}

func (g *Graph) open() int {
	g.Blocks = append(g.Blocks, Block{})
	return len(g.Blocks) - 1
}

func (g *Graph) link(from, to int) {
	b := &g.Blocks[from]

	for _, s := range b.Succ {
		if s == to {
			return
		}
	}

	b.Succ = append(b.Succ, to)
}

func (b Block) TlogAppend(buf []byte) []byte {
	var e tlwire.Encoder

	buf = e.AppendMap(buf, 3)

	buf = e.AppendString(buf, "label")
	buf = e.AppendString(buf, b.Label)

	buf = e.AppendString(buf, "code")
	buf = e.AppendTag(buf, tlwire.Array, len(b.Code))
	for _, i := range b.Code {
		buf = e.AppendInt(buf, i)
	}

	buf = e.AppendString(buf, "succ")
	buf = e.AppendTag(buf, tlwire.Array, len(b.Succ))
	for _, s := range b.Succ {
		buf = e.AppendInt(buf, s)
	}

	return buf
}
