// Package cycle is the recursive SCC condenser: given a CFG it resolves
// every strongly-connected component into a scalar latency, folding
// iteration bounds, entry/exit selection and nested-loop recursion into a
// single number per loop, until the graph is acyclic and internal/graph's
// longest-path engine can traverse it directly.
package cycle

import (
	"fmt"
	"sort"

	"wcet/internal/block"
	"wcet/internal/config"
	"wcet/internal/diag"
	"wcet/internal/graph"
	"wcet/internal/jump"
)

// Bounds supplies everything the condenser needs beyond the graph itself:
// the env-var resolver for CYCLE_/RECURSIVE_ bounds and the
// recursive-function map internal/dupe produced.
type Bounds struct {
	Resolver           *config.Resolver
	RecursiveFunctions map[uint64]uint64 // callee_entry -> return_address

	// OnCycleGraph, if set, is invoked with each SCC's intra-SCC subgraph
	// before its back-edge is broken, numbered in resolution order. Wired
	// by cmd/wcet to write cycle_graph_<n>.dot.
	OnCycleGraph func(seq int, g *graph.Graph)
	// OnCondensedCycleGraph, if set, is invoked with the DAG produced by a
	// nested condensation. Wired by cmd/wcet to write
	// condensed_cycle_graph_<n>.dot.
	OnCondensedCycleGraph func(seq int, g *graph.Graph)
}

// Result is the condenser's output: g folded down to an acyclic graph,
// LatencyMap filled in for every recursive function resolved along the way
// (keyed by return address), and EntryNodeLatencyMap, the
// per-representative-leader entry latency a folded SCC node contributes,
// used both by internal/wcet's final reduction and by nested invocations
// of this same condenser.
type Result struct {
	Graph               *graph.Graph
	LatencyMap          map[uint64]uint32
	EntryNodeLatencyMap map[uint64]float64

	// RecursiveEntries marks the condensed nodes whose latency was already
	// folded into LatencyMap; the final reduction adds that contribution as
	// a separate delay term instead of letting these nodes compete for the
	// longest-path maximum.
	RecursiveEntries map[uint64]bool

	cycleSeq     int
	condensedSeq int
}

// Condense resolves every SCC in g, in place, recursing into nested loops,
// until g is acyclic. g's own entry points (the blocks with no incoming
// edge at all) are untouched except where condensation folds a loop onto
// them.
func Condense(g *graph.Graph, b Bounds) (*Result, error) {
	res := &Result{
		Graph:               g,
		LatencyMap:          make(map[uint64]uint32),
		EntryNodeLatencyMap: make(map[uint64]float64),
		RecursiveEntries:    make(map[uint64]bool),
	}
	if err := condenseInPlace(g, b, res); err != nil {
		return nil, err
	}
	return res, nil
}

func condenseInPlace(g *graph.Graph, b Bounds, res *Result) error {
	for {
		sccs := graph.SCC(g)
		resolvedAny := false
		for _, scc := range sccs {
			if len(scc) == 1 && !g.HasSelfEdge(scc[0]) {
				continue
			}
			if err := resolveSCC(g, scc, b, res); err != nil {
				return err
			}
			resolvedAny = true
			break // g mutated; recompute SCCs before touching another one
		}
		if !resolvedAny {
			return nil
		}
	}
}

// resolveSCC resolves one SCC into a scalar latency and folds it down to
// its representative leader scc[0] in g: build the intra-SCC subgraph,
// pick an entry and an exit, break the back-edges, compute the bounded
// loop latency, then collapse the members.
func resolveSCC(g *graph.Graph, scc []uint64, b Bounds, res *Result) error {
	sort.Slice(scc, func(i, j int) bool { return scc[i] < scc[j] })
	set := make(map[uint64]bool, len(scc))
	for _, n := range scc {
		set[n] = true
	}

	// Intra-SCC subgraph: only edges whose target is also a member.
	sub := g.Subgraph(scc)
	if b.OnCycleGraph != nil {
		res.cycleSeq++
		b.OnCycleGraph(res.cycleSeq, sub)
	}

	// Entries: members targeted from outside the SCC. When the SCC is the
	// whole graph there are none; fall back to the lowest leader.
	entries := sccEntries(g, scc, set)
	if len(entries) == 0 {
		entries = []uint64{scc[0]}
	}

	// Candidate exits: members with a successor outside the SCC. A
	// candidate that is also an entry is a normal, head-controlled exit.
	entrySet := make(map[uint64]bool, len(entries))
	for _, e := range entries {
		entrySet[e] = true
	}
	var candidates []candidate
	seenCandidate := make(map[uint64]bool)
	for _, n := range scc {
		for _, s := range g.Edges[n] {
			if set[s] {
				continue
			}
			if seenCandidate[n] {
				continue
			}
			seenCandidate[n] = true
			candidates = append(candidates, candidate{block: n, isNorm: entrySet[n]})
		}
	}

	// Pick one entry and one exit per resolution.
	var entry, exit uint64
	var prunedExits []uint64
	switch {
	case hasNormal(candidates):
		var normals []uint64
		for _, c := range candidates {
			if c.isNorm {
				normals = append(normals, c.block)
			}
		}
		sort.Slice(normals, func(i, j int) bool { return normals[i] < normals[j] })
		entry, exit = normals[0], normals[0]
		for _, c := range candidates {
			if !c.isNorm {
				prunedExits = append(prunedExits, c.block)
			}
		}
		if len(normals) > 1 || len(prunedExits) > 0 {
			diag.Warnf("cycle: SCC entered at 0x%x has %d exit candidate(s) besides its normal exit; pruning the rest", entry, len(normals)-1+len(prunedExits))
		}

	case len(candidates) == 0:
		diag.Warnf("cycle: SCC entered at 0x%x has no discoverable exit", entries[0])
		entry = entries[0]
		exit = 0 // no exit

	default:
		var falseExits []uint64
		for _, c := range candidates {
			falseExits = append(falseExits, c.block)
		}
		sort.Slice(falseExits, func(i, j int) bool { return falseExits[i] > falseExits[j] })
		if len(falseExits) > 1 {
			diag.Warnf("cycle: SCC entered at 0x%x has %d false exits; picking the highest leader 0x%x", entries[0], len(falseExits), falseExits[0])
		}
		exit = falseExits[0]
		if len(entries) > 1 {
			sort.Slice(entries, func(i, j int) bool { return entries[i] < entries[j] })
			diag.Warnf("cycle: SCC has %d entries with no matching normal exit; picking entry 0x%x", len(entries), entries[0])
		}
		entry = entries[0]
	}

	// Remove the outer-graph exit edges that correspond to pruned
	// candidates, so the tail after a side-exit is not double counted.
	for _, p := range prunedExits {
		for _, s := range append([]uint64(nil), g.Edges[p]...) {
			if !set[s] {
				g.RemoveEdge(p, s)
			}
		}
	}

	iterBound, err := b.Resolver.CycleBound(entry)
	if err != nil {
		return err
	}

	// Break the back-edge(s) into entry, making the subgraph a DAG rooted
	// there.
	for _, from := range sub.Incoming(entry) {
		sub.RemoveEdge(from, entry)
	}

	total, err := resolveLoopLatency(sub, entry, exit, iterBound, b, res)
	if err != nil {
		return err
	}

	entryBlock := g.Blocks[entry]
	if entryBlock != nil && entryBlock.ExitJump.Kind == jump.KindRet {
		if retAddr, recursive := b.RecursiveFunctions[entry]; recursive {
			if err := resolveRecursion(entry, retAddr, total, entryLatency(res, entryBlock), sub, res, b); err != nil {
				return err
			}
			res.RecursiveEntries[scc[0]] = true
		}
	}

	foldSCC(g, scc, entry, exit, total, res)
	return nil
}

// candidate is an SCC-member block whose successor list reaches outside
// the SCC, tagged with whether it also doubles as an entry (a normal,
// head-controlled exit).
type candidate struct {
	block  uint64
	isNorm bool
}

func hasNormal(cs []candidate) bool {
	for _, c := range cs {
		if c.isNorm {
			return true
		}
	}
	return false
}

// sccEntries returns the SCC members that are targets of at least one edge
// originating outside the SCC.
func sccEntries(g *graph.Graph, scc []uint64, set map[uint64]bool) []uint64 {
	var entries []uint64
	seen := make(map[uint64]bool)
	for from, succs := range g.Edges {
		if set[from] {
			continue
		}
		for _, to := range succs {
			if set[to] && !seen[to] {
				seen[to] = true
				entries = append(entries, to)
			}
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i] < entries[j] })
	return entries
}

// entryLatency looks up the intrinsic contribution of an entry block,
// preferring a previously-recorded condensed-node latency (set by a nested
// condensation) over the block's own plain instruction-sum latency.
func entryLatency(res *Result, b *block.Block) float64 {
	if v, ok := res.EntryNodeLatencyMap[b.Leader]; ok {
		return v
	}
	return float64(b.Latency())
}

// resolveLoopLatency computes the bounded latency of one loop:
// cyclePath*iterBound + directedPath, where cyclePath is the longest path
// through one iteration and directedPath subtracts the tail below the exit.
// A longest-path failure means the subgraph still contains a nested loop;
// condense it one level down and retry.
func resolveLoopLatency(sub *graph.Graph, entry, exit uint64, iterBound uint32, b Bounds, res *Result) (float64, error) {
	lpEntry, err := graph.LongestPath(sub, entry)
	if err == graph.ErrNegativeCycle {
		if err2 := condenseInPlace(sub, b, res); err2 != nil {
			return 0, err2
		}
		if b.OnCondensedCycleGraph != nil {
			res.condensedSeq++
			b.OnCondensedCycleGraph(res.condensedSeq, sub)
		}
		lpEntry, err = graph.LongestPath(sub, entry)
	}
	if err != nil {
		return 0, fmt.Errorf("cycle: computing longest path from entry 0x%x: %w", entry, err)
	}

	entryBlock := sub.Blocks[entry]
	if entryBlock == nil {
		return 0, fmt.Errorf("cycle: SCC entry 0x%x has no block", entry)
	}
	cyclePath := lpEntry + entryLatency(res, entryBlock)

	if exit == 0 {
		// No discoverable exit at all; produce the SCC's intrinsic longest
		// path only, with no iteration multiplier.
		return cyclePath, nil
	}

	lpExit, err := graph.LongestPath(sub, exit)
	if err == graph.ErrNegativeCycle {
		lpExit = 0
	} else if err != nil {
		return 0, fmt.Errorf("cycle: computing longest path from exit 0x%x: %w", exit, err)
	}
	directedPath := cyclePath - lpExit
	return cyclePath*float64(iterBound) + directedPath, nil
}

// resolveRecursion folds a recursive call-site's contribution into
// LatencyMap keyed by its return address, to be added as a separate delay
// term by internal/wcet's final reduction rather than competing for the
// longest-path max.
func resolveRecursion(entry, retAddr uint64, total, entryLat float64, sub *graph.Graph, res *Result, b Bounds) error {
	depth, err := b.Resolver.RecursionBound(entry)
	if err != nil {
		return err
	}

	if !hasNestedRecursiveCallSite(sub, entry) {
		res.LatencyMap[retAddr] = uint32((total - entryLat) * float64(depth))
		return nil
	}

	retTail := retThenNextTail(sub, entry)
	res.LatencyMap[retAddr] = uint32((total - entryLat - retTail + retTail*float64(depth)) * float64(depth))
	return nil
}

// hasNestedRecursiveCallSite reports whether any block in sub other than
// entry is itself a call, i.e. the condensed subgraph contains further
// recursive call-sites whose tail must compound per depth level.
func hasNestedRecursiveCallSite(sub *graph.Graph, entry uint64) bool {
	for leader, b := range sub.Blocks {
		if leader == entry {
			continue
		}
		if b.ExitJump.Kind == jump.KindCall {
			return true
		}
	}
	return false
}

// retThenNextTail sums the latency of any Ret-then-Next pair found inside
// sub, excluding entry itself: the post-return tail executed once per
// unwound recursion level.
func retThenNextTail(sub *graph.Graph, entry uint64) float64 {
	var total float64
	for leader, b := range sub.Blocks {
		if leader == entry || b.ExitJump.Kind != jump.KindRet {
			continue
		}
		for _, to := range sub.Edges[leader] {
			if next := sub.Blocks[to]; next != nil && next.ExitJump.Kind == jump.KindNext {
				total += float64(next.Latency())
			}
		}
	}
	return total
}

// foldSCC collapses scc down to its representative leader scc[0], carrying
// total either as the weight of every surviving incoming edge (non-entry
// SCC) or as the representative's own entry latency (an entry SCC has no
// incoming edge to carry it on).
func foldSCC(g *graph.Graph, scc []uint64, entry, exit uint64, total float64, res *Result) {
	rep := scc[0]
	set := make(map[uint64]bool, len(scc))
	for _, n := range scc {
		set[n] = true
	}

	type inEdge struct{ from, to uint64 }
	var incoming []inEdge
	for from, succs := range g.Edges {
		if set[from] {
			continue
		}
		for _, to := range succs {
			if set[to] {
				incoming = append(incoming, inEdge{from, to})
			}
		}
	}

	if len(incoming) == 0 {
		res.EntryNodeLatencyMap[rep] = total
	} else {
		for _, e := range incoming {
			if e.to != rep {
				g.RedirectEdge(e.from, e.to, rep)
			}
			g.SetEdgeWeight(e.from, rep, total)
		}
		if repBlock := g.Blocks[rep]; repBlock != nil {
			res.EntryNodeLatencyMap[rep] = float64(repBlock.Latency())
		}
	}

	// Representative's outward edges become whatever the chosen exit's
	// surviving outside-S edges are (the exit block after step 4's pruning
	// of non-chosen candidates). If entry == exit (the common
	// head-controlled-loop case) this is a no-op when entry == rep.
	var outward []uint64
	if exit != 0 {
		for _, s := range g.Edges[exit] {
			if !set[s] {
				outward = append(outward, s)
			}
		}
	}

	// Remove every non-representative member; their outgoing/incoming
	// edges have already been accounted for above.
	for _, n := range scc {
		if n != rep {
			g.RemoveBlock(n)
		}
	}
	delete(g.Edges, rep)
	for _, s := range outward {
		g.AddEdge(rep, s)
	}
}
