package color

import (
	"context"

	"nikand.dev/go/heap"
	"tlog.app/go/tlog"
	"tlog.app/go/tlog/tlwire"

	"github.com/slowlang/irmips/compiler/ir"
	"github.com/slowlang/irmips/compiler/set"
)

type (
	// Graph is an interference graph over variables of one register file.
	Graph struct {
		Type  ir.Type
		Nodes []ir.Var

		index map[ir.Key]int
		adj   []*set.Bitmap
		color []int

		palette []string
	}

	node struct {
		id   int
		cost int // neighbors not yet on the stack
		seq  int
	}

	queue struct {
		heap.Heap[node]
	}
)

// Build makes one graph per register file.
// Variables interfere if they are in the same snapshot.
func Build(ctx context.Context, snapshots [][]ir.Var) (ints, floats *Graph) {
	tr, _ := tlog.SpawnFromContextAndWrap(ctx, "interference graph", "snapshots", len(snapshots))
	defer func() {
		tr.Finish("ints", len(ints.Nodes), "floats", len(floats.Nodes))
	}()

	ints = New(ir.Int)
	floats = New(ir.Float)

	var snap [2][]int

	for _, s := range snapshots {
		snap[0], snap[1] = snap[0][:0], snap[1][:0]

		for _, v := range s {
			g, k := ints, 0
			if v.Type == ir.Float {
				g, k = floats, 1
			}

			snap[k] = append(snap[k], g.add(v))
		}

		ints.clique(snap[0])
		floats.clique(snap[1])
	}

	return ints, floats
}

func New(tp ir.Type) *Graph {
	return &Graph{
		Type:  tp,
		index: map[ir.Key]int{},
	}
}

func (g *Graph) Len() int { return len(g.Nodes) }

func (g *Graph) Adjacent(u, v ir.Var) bool {
	x, ok := g.index[u.Key()]
	if !ok {
		return false
	}

	y, ok := g.index[v.Key()]
	if !ok {
		return false
	}

	return g.adj[x].IsSet(y)
}

func (g *Graph) Neighbors(v ir.Var) []ir.Var {
	x, ok := g.index[v.Key()]
	if !ok {
		return nil
	}

	var r []ir.Var

	g.adj[x].Range(func(y int) bool {
		r = append(r, g.Nodes[y])
		return true
	})

	return r
}

// Color assigns palette registers to nodes.
// Nodes are stacked in descending order of pending neighbors
// and colored greedily when unstacked. Nodes left without a free
// register stay uncolored and must live in memory.
func (g *Graph) Color(ctx context.Context, palette []string) (uncolored int) {
	tr, _ := tlog.SpawnFromContextAndWrap(ctx, "color", "type", g.Type, "nodes", len(g.Nodes), "palette", palette)
	defer func() {
		tr.Finish("uncolored", uncolored)
	}()

	g.palette = palette
	g.color = make([]int, len(g.Nodes))

	q := queue{Heap: heap.Heap[node]{Less: costLess}}

	for id := range g.Nodes {
		g.color[id] = -1

		q.Push(node{id: id, cost: g.adj[id].Size(), seq: id})
	}

	onStack := set.NewBitmap(len(g.Nodes))
	stack := make([]int, 0, len(g.Nodes))

	for q.Len() != 0 {
		n := q.Pop()

		onStack.Set(n.id)
		stack = append(stack, n.id)

		g.adj[n.id].Range(func(y int) bool {
			if !onStack.IsSet(y) {
				q.decrease(y)
			}

			return true
		})
	}

	for k := len(stack) - 1; k >= 0; k-- {
		id := stack[k]

		used := set.NewBitmap(len(palette))

		g.adj[id].Range(func(y int) bool {
			if c := g.color[y]; c >= 0 {
				used.Set(c)
			}

			return true
		})

		for c := range palette {
			if !used.IsSet(c) {
				g.color[id] = c
				break
			}
		}

		if g.color[id] < 0 {
			uncolored++
		}

		tr.V("color").Printw("choose color", "var", g.Nodes[id], "color", g.color[id], "used", used)
	}

	return uncolored
}

// Register returns the color assigned to v.
func (g *Graph) Register(v ir.Var) (string, bool) {
	id, ok := g.index[v.Key()]
	if !ok || g.color == nil || g.color[id] < 0 {
		return "", false
	}

	return g.palette[g.color[id]], true
}

func (g *Graph) add(v ir.Var) int {
	if id, ok := g.index[v.Key()]; ok {
		return id
	}

	id := len(g.Nodes)

	g.index[v.Key()] = id
	g.Nodes = append(g.Nodes, v)
	g.adj = append(g.adj, set.NewBitmap(0))

	return id
}

func (g *Graph) clique(ids []int) {
	for _, x := range ids {
		for _, y := range ids {
			if x != y {
				g.adj[x].Set(y)
			}
		}
	}
}

func costLess(d []node, i, j int) bool {
	if d[i].cost != d[j].cost {
		return d[i].cost > d[j].cost
	}

	return d[i].seq < d[j].seq
}

func (q *queue) decrease(id int) {
	for i, n := range q.Data {
		if n.id != id {
			continue
		}

		n.cost--
		q.Data[i] = n

		q.Heap.Fix(i)

		return
	}
}

func (n node) TlogAppend(b []byte) []byte {
	var e tlwire.Encoder

	b = e.AppendMap(b, 2)

	b = e.AppendKeyInt(b, "id", n.id)
	b = e.AppendKeyInt(b, "cost", n.cost)

	return b
}
