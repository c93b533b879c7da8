package graph

import "wcet/internal/block"

// SCC computes the graph's strongly-connected components via Tarjan's
// algorithm, returning each as a list of leaders in the order they are
// popped off Tarjan's stack (most recently discovered first, root last).
// A singleton with a self-loop is reported like any other component;
// callers that only care about cycles must still check HasSelfEdge to tell
// it apart from a trivial acyclic singleton.
func SCC(g *Graph) [][]uint64 {
	t := &tarjan{
		g:       g,
		index:   make(map[uint64]int),
		lowlink: make(map[uint64]int),
		onStack: make(map[uint64]bool),
	}
	// Iterate nodes in a stable order so SCC discovery order, and hence
	// condensation order, does not depend on map iteration.
	nodes := sortedLeaders(g.Blocks)
	for _, n := range nodes {
		if _, seen := t.index[n]; !seen {
			t.strongconnect(n)
		}
	}
	return t.result
}

type tarjan struct {
	g       *Graph
	index   map[uint64]int
	lowlink map[uint64]int
	onStack map[uint64]bool
	stack   []uint64
	counter int
	result  [][]uint64
}

func (t *tarjan) strongconnect(v uint64) {
	t.index[v] = t.counter
	t.lowlink[v] = t.counter
	t.counter++
	t.stack = append(t.stack, v)
	t.onStack[v] = true

	for _, w := range t.g.Edges[v] {
		if _, ok := t.g.Blocks[w]; !ok {
			continue
		}
		if _, seen := t.index[w]; !seen {
			t.strongconnect(w)
			if t.lowlink[w] < t.lowlink[v] {
				t.lowlink[v] = t.lowlink[w]
			}
		} else if t.onStack[w] {
			if t.index[w] < t.lowlink[v] {
				t.lowlink[v] = t.index[w]
			}
		}
	}

	if t.lowlink[v] == t.index[v] {
		var scc []uint64
		for {
			n := len(t.stack) - 1
			w := t.stack[n]
			t.stack = t.stack[:n]
			t.onStack[w] = false
			scc = append(scc, w)
			if w == v {
				break
			}
		}
		t.result = append(t.result, scc)
	}
}

func sortedLeaders(blocks map[uint64]*block.Block) []uint64 {
	out := make([]uint64, 0, len(blocks))
	for k := range blocks {
		out = append(out, k)
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j-1] > out[j]; j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}
