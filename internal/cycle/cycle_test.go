package cycle

import (
	"testing"

	"wcet/internal/block"
	"wcet/internal/config"
	"wcet/internal/graph"
	"wcet/internal/instr"
	"wcet/internal/jump"
)

func blk(leader uint64, latency uint32, exit jump.ExitJump) *block.Block {
	return &block.Block{
		Leader:       leader,
		Instructions: []instr.Instruction{instr.New(leader, "NOP", instr.Operands{}, nil).WithLatency(latency)},
		ExitJump:     exit,
	}
}

// TestCondenseSimpleLoop resolves a single head-controlled loop (entry ->
// header <-> body, header also exits) against the loop-latency formula:
// cyclePath = longestPath(entry) + entryLatency; directedPath = cyclePath -
// longestPath(exit); total = cyclePath*iterBound + directedPath.
//
// Graph: entry(lat 2) -> header(lat 3) -[taken]-> body(lat 4) -> header
//
//	header -[not_taken]-> exit(lat 1)
//
// With CYCLE_0x2=3: cyclePath = 4+3 = 7, directedPath = 7-4 = 3,
// loop total = 7*3+3 = 24. Folded onto edge entry->header, so
// WCET = entry.Latency(2) + 24 + exit.Latency(1) = 27.
func TestCondenseSimpleLoop(t *testing.T) {
	t.Setenv("CYCLE_0x2", "3")

	blocks := map[uint64]*block.Block{
		1: blk(1, 2, jump.ExitJump{Kind: jump.KindUnconditionalAbsolute, Target: 2}),
		2: blk(2, 3, jump.ExitJump{Kind: jump.KindConditionalAbsolute, Taken: 3, NotTaken: 4}),
		3: blk(3, 4, jump.ExitJump{Kind: jump.KindUnconditionalAbsolute, Target: 2}),
		4: blk(4, 1, jump.ExitJump{Kind: jump.KindRet}),
	}
	g := graph.New(blocks)
	resolver := &config.Resolver{Warn: func(string, ...any) {}}

	res, err := Condense(g, Bounds{Resolver: resolver})
	if err != nil {
		t.Fatalf("Condense: %v", err)
	}

	sccs := graph.SCC(res.Graph)
	for _, scc := range sccs {
		if len(scc) != 1 {
			t.Fatalf("condensed graph still has a non-trivial SCC: %v", scc)
		}
	}

	if w := res.Graph.Weight(1, 2); w != 24 {
		t.Fatalf("edge 1->2 weight = %v, want 24 (the folded loop total)", w)
	}

	lp, err := graph.LongestPath(res.Graph, 1)
	if err != nil {
		t.Fatalf("LongestPath on condensed graph: %v", err)
	}
	got := float64(blocks[1].Latency()) + lp
	if got != 27 {
		t.Fatalf("total = %v, want 27", got)
	}
}

// TestCondenseNestedLoops: an outer loop wrapping an inner loop resolves
// bottom-up. The inner SCC {header2, body2} folds first (bound 5), its
// total landing on the edge into header2; the outer SCC {header1 .. tail}
// then resolves over the already-condensed inner node (bound 3).
//
// Graph: entry(2) -> A(3) -> B(1) <-> C(4) -> D(2) -> A, D -> exit(1).
// Inner {B,C}: cyclePath = 4+1 = 5, total = 5*5+5 = 30, folded onto A->B.
// Outer {A,B,C,D}: longest path from A = 30+2 = 32, cyclePath = 32+3 = 35,
// total = 35*3+35 = 140, folded onto entry->A.
// Final: entry.Latency(2) + 140 + exit.Latency(1) = 143.
func TestCondenseNestedLoops(t *testing.T) {
	t.Setenv("CYCLE_0x2", "3")
	t.Setenv("CYCLE_0x3", "5")

	blocks := map[uint64]*block.Block{
		1: blk(1, 2, jump.ExitJump{Kind: jump.KindUnconditionalAbsolute, Target: 2}),
		2: blk(2, 3, jump.ExitJump{Kind: jump.KindUnconditionalAbsolute, Target: 3}),
		3: blk(3, 1, jump.ExitJump{Kind: jump.KindUnconditionalAbsolute, Target: 4}),
		4: blk(4, 4, jump.ExitJump{Kind: jump.KindConditionalAbsolute, Taken: 3, NotTaken: 5}),
		5: blk(5, 2, jump.ExitJump{Kind: jump.KindConditionalAbsolute, Taken: 2, NotTaken: 6}),
		6: blk(6, 1, jump.ExitJump{Kind: jump.KindRet}),
	}
	g := graph.New(blocks)
	resolver := &config.Resolver{Warn: func(string, ...any) {}}

	res, err := Condense(g, Bounds{Resolver: resolver})
	if err != nil {
		t.Fatalf("Condense: %v", err)
	}

	if w := res.Graph.Weight(1, 2); w != 140 {
		t.Fatalf("edge 1->2 weight = %v, want 140 (outer loop total)", w)
	}
	lp, err := graph.LongestPath(res.Graph, 1)
	if err != nil {
		t.Fatalf("LongestPath on condensed graph: %v", err)
	}
	if got := float64(blocks[1].Latency()) + lp; got != 143 {
		t.Fatalf("total = %v, want 143", got)
	}
}

// TestCondenseRecursiveFunction: an SCC whose entry block returns, formed
// by a duplicated recursive callee, must land its bounded contribution in
// LatencyMap keyed by the return address instead of staying in the graph.
//
// Graph: caller(1) -> F(5, Ret -> 0x99) <-> back(3, at 0x99). The SCC has
// no discoverable exit; its intrinsic longest path is 3+5 = 8, and with
// RECURSIVE depth 4 the recursion delay is (8 - 5) * 4 = 12.
func TestCondenseRecursiveFunction(t *testing.T) {
	t.Setenv("RECURSIVE_0x10", "4")

	blocks := map[uint64]*block.Block{
		0x01: blk(0x01, 1, jump.ExitJump{Kind: jump.KindUnconditionalAbsolute, Target: 0x10}),
		0x10: blk(0x10, 5, jump.ExitJump{Kind: jump.KindRet, ReturnAddress: 0x99}),
		0x99: blk(0x99, 3, jump.ExitJump{Kind: jump.KindUnconditionalAbsolute, Target: 0x10}),
	}
	g := graph.New(blocks)
	resolver := &config.Resolver{Warn: func(string, ...any) {}}

	res, err := Condense(g, Bounds{
		Resolver:           resolver,
		RecursiveFunctions: map[uint64]uint64{0x10: 0x200},
	})
	if err != nil {
		t.Fatalf("Condense: %v", err)
	}

	if got := res.LatencyMap[0x200]; got != 12 {
		t.Fatalf("LatencyMap[0x200] = %d, want 12", got)
	}
	if !res.RecursiveEntries[0x10] {
		t.Fatalf("0x10 not marked as a recursive entry: %v", res.RecursiveEntries)
	}
	if w := res.Graph.Weight(0x01, 0x10); w != 8 {
		t.Fatalf("edge 0x01->0x10 weight = %v, want 8 (intrinsic loop path)", w)
	}
	for _, scc := range graph.SCC(res.Graph) {
		if len(scc) != 1 {
			t.Fatalf("condensed graph still has a non-trivial SCC: %v", scc)
		}
	}
}

// TestCondenseAcyclicIsNoOp: a graph with no cycles must pass through
// Condense unchanged (no SCC has more than one member and no self-edges).
func TestCondenseAcyclicIsNoOp(t *testing.T) {
	blocks := map[uint64]*block.Block{
		1: blk(1, 1, jump.ExitJump{Kind: jump.KindNext, Target: 2}),
		2: blk(2, 1, jump.ExitJump{Kind: jump.KindRet}),
	}
	g := graph.New(blocks)
	resolver := &config.Resolver{Warn: func(string, ...any) {}}

	res, err := Condense(g, Bounds{Resolver: resolver})
	if err != nil {
		t.Fatalf("Condense: %v", err)
	}
	if len(res.Graph.Blocks) != 2 {
		t.Fatalf("got %d blocks, want 2 (acyclic graph untouched)", len(res.Graph.Blocks))
	}
	if w := res.Graph.Weight(1, 2); w != 1 {
		t.Fatalf("edge weight = %v, want the plain target latency 1", w)
	}
}
