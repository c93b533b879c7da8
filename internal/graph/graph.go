// Package graph implements the leader-keyed directed weighted CFG, its
// Tarjan SCC decomposition, and the negated-weight Bellman-Ford
// longest-path engine. Nodes are addressed by block leader, so handles
// stay stable across insertions and removals.
package graph

import (
	"wcet/internal/block"
)

// Graph is a directed graph over blocks keyed by leader address. Edge
// weight defaults to the target block's latency but may be overridden:
// condensation folds a whole loop's latency onto the edges that enter it,
// which is no longer the intrinsic latency of any one block, so Graph
// keeps an explicit per-edge override alongside the default.
type Graph struct {
	Blocks     map[uint64]*block.Block
	Edges      map[uint64][]uint64
	edgeWeight map[[2]uint64]float64
}

// New builds a Graph from a block set, wiring an edge for every successor
// that resolves to a block actually present in blocks. A successor with no
// matching block (a dangling return or an external jump target) is
// dropped: the source block is a sink in that direction.
func New(blocks map[uint64]*block.Block) *Graph {
	g := &Graph{
		Blocks:     blocks,
		Edges:      make(map[uint64][]uint64, len(blocks)),
		edgeWeight: make(map[[2]uint64]float64),
	}
	for leader, b := range blocks {
		for _, succ := range b.Targets() {
			if _, ok := blocks[succ]; ok {
				g.Edges[leader] = append(g.Edges[leader], succ)
			}
		}
	}
	return g
}

// Weight returns the weight of the from->to edge: the explicit override set
// by SetEdgeWeight if one was recorded, else the target block's latency.
func (g *Graph) Weight(from, to uint64) float64 {
	if w, ok := g.edgeWeight[[2]uint64{from, to}]; ok {
		return w
	}
	if tb, ok := g.Blocks[to]; ok {
		return float64(tb.Latency())
	}
	return 0
}

// SetEdgeWeight overrides the weight of every from->to edge: the condenser
// folds a resolved loop's total latency onto the edges that lead into its
// entry, independent of that entry block's own intrinsic latency.
func (g *Graph) SetEdgeWeight(from, to uint64, weight float64) {
	g.edgeWeight[[2]uint64{from, to}] = weight
}

// RemoveEdge deletes every edge from -> to, used by internal/cycle to
// break an SCC's back-edge(s).
func (g *Graph) RemoveEdge(from, to uint64) {
	succs := g.Edges[from]
	out := succs[:0]
	for _, s := range succs {
		if s != to {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		delete(g.Edges, from)
	} else {
		g.Edges[from] = out
	}
}

// ReplaceBlock installs b under its own leader, overwriting whatever block
// previously held that key.
func (g *Graph) ReplaceBlock(b *block.Block) {
	g.Blocks[b.Leader] = b
}

// RemoveBlock deletes leader's block and every edge touching it: its own
// outgoing edges, any recorded weight overrides, and any surviving edge
// that still targets it. Used by internal/cycle to erase non-representative
// SCC members once their contribution has been folded onto the
// representative node.
func (g *Graph) RemoveBlock(leader uint64) {
	delete(g.Blocks, leader)
	delete(g.Edges, leader)
	for k := range g.edgeWeight {
		if k[0] == leader || k[1] == leader {
			delete(g.edgeWeight, k)
		}
	}
	for from, succs := range g.Edges {
		out := succs[:0]
		for _, s := range succs {
			if s != leader {
				out = append(out, s)
			}
		}
		if len(out) == 0 {
			delete(g.Edges, from)
		} else {
			g.Edges[from] = out
		}
	}
}

// RedirectEdge rewrites every from->oldTo edge to from->newTo, carrying any
// explicit weight override along with it. Used when folding an SCC: edges
// that used to target a non-representative member now target the
// representative leader instead.
func (g *Graph) RedirectEdge(from, oldTo, newTo uint64) {
	succs := g.Edges[from]
	for i, s := range succs {
		if s == oldTo {
			succs[i] = newTo
		}
	}
	if w, ok := g.edgeWeight[[2]uint64{from, oldTo}]; ok {
		delete(g.edgeWeight, [2]uint64{from, oldTo})
		g.edgeWeight[[2]uint64{from, newTo}] = w
	}
}

// AddEdge adds a single from->to edge if it is not already present.
func (g *Graph) AddEdge(from, to uint64) {
	for _, s := range g.Edges[from] {
		if s == to {
			return
		}
	}
	g.Edges[from] = append(g.Edges[from], to)
}

// Subgraph returns a new Graph containing only the given nodes and only
// edges whose source and target are both in that set. Block pointers are
// shared with g, not copied.
func (g *Graph) Subgraph(nodes []uint64) *Graph {
	set := make(map[uint64]bool, len(nodes))
	blocks := make(map[uint64]*block.Block, len(nodes))
	for _, n := range nodes {
		set[n] = true
		blocks[n] = g.Blocks[n]
	}
	sub := New(blocks)
	for _, n := range nodes {
		for _, s := range g.Edges[n] {
			if set[s] {
				sub.SetEdgeWeight(n, s, g.Weight(n, s))
			}
		}
	}
	return sub
}

// Incoming returns every leader with a direct edge into target.
func (g *Graph) Incoming(target uint64) []uint64 {
	var in []uint64
	for from, succs := range g.Edges {
		for _, s := range succs {
			if s == target {
				in = append(in, from)
			}
		}
	}
	return in
}

// HasSelfEdge reports whether leader has an edge to itself.
func (g *Graph) HasSelfEdge(leader uint64) bool {
	for _, s := range g.Edges[leader] {
		if s == leader {
			return true
		}
	}
	return false
}
