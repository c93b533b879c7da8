// Package calldump builds an address-keyed call graph for the optional
// --calls debug dump. This tool works below the symbol layer, so nodes are
// keyed by entry address rather than by function name.
package calldump

import (
	"fmt"
	"sort"

	"github.com/zboralski/lattice"
	"github.com/zboralski/lattice/render"

	"wcet/internal/block"
	"wcet/internal/jump"
)

// Build constructs a lattice.Graph of every call-site discovered while
// building the CFG: one node per address that is either a call instruction's
// block or a callee entry, one edge per call-site. A caller node is the
// leader of the block holding the call, not the entry of the enclosing
// function, so recursion shows up as a cycle only where a call block's
// leader is itself a callee entry.
func Build(blocks map[uint64]*block.Block) *lattice.Graph {
	g := &lattice.Graph{}
	seen := make(map[string]bool)
	node := func(addr uint64) string {
		label := fmt.Sprintf("0x%x", addr)
		if !seen[label] {
			seen[label] = true
			g.Nodes = append(g.Nodes, label)
		}
		return label
	}

	var leaders []uint64
	for leader := range blocks {
		leaders = append(leaders, leader)
	}
	sort.Slice(leaders, func(i, j int) bool { return leaders[i] < leaders[j] })

	for _, leader := range leaders {
		b := blocks[leader]
		if b.ExitJump.Kind != jump.KindCall {
			continue
		}
		caller := node(leader)
		callee := node(b.ExitJump.CalleeEntry)
		g.Edges = append(g.Edges, lattice.Edge{Caller: caller, Callee: callee})
	}
	g.Dedup()
	return g
}

// DOT renders g as a DOT digraph via lattice/render.
func DOT(g *lattice.Graph, name string) string {
	return render.DOT(g, name)
}
