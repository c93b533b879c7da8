package graph

import "errors"

// ErrNegativeCycle signals that Bellman-Ford found a still-improving edge
// after V-1 relaxation rounds, meaning the subgraph still contains a cycle
// and the caller must condense it before retrying. It is a signal, not a
// failure.
var ErrNegativeCycle = errors.New("graph: negative cycle (subgraph still has a loop)")

// LongestPath computes the longest path starting at source, over edges
// weighted by Weight (an edge's override if one was set, else its target
// block's latency), via negated-weight
// Bellman-Ford: negate every weight, run Bellman-Ford from source, and if
// the result is finite the longest-path latency is -min(finite distances).
// Returns ErrNegativeCycle if the graph still has a loop reachable from
// source.
func LongestPath(g *Graph, source uint64) (float64, error) {
	if _, ok := g.Blocks[source]; !ok {
		return 0, nil
	}

	type edge struct {
		from, to uint64
		weight   float64
	}
	var edges []edge
	for from, succs := range g.Edges {
		for _, to := range succs {
			if _, ok := g.Blocks[to]; !ok {
				continue
			}
			edges = append(edges, edge{from: from, to: to, weight: -g.Weight(from, to)})
		}
	}

	dist := map[uint64]float64{source: 0}
	n := len(g.Blocks)
	for i := 0; i < n-1; i++ {
		changed := false
		for _, e := range edges {
			du, ok := dist[e.from]
			if !ok {
				continue
			}
			nd := du + e.weight
			if dv, ok2 := dist[e.to]; !ok2 || nd < dv {
				dist[e.to] = nd
				changed = true
			}
		}
		if !changed {
			break
		}
	}

	for _, e := range edges {
		du, ok := dist[e.from]
		if !ok {
			continue
		}
		nd := du + e.weight
		dv, ok2 := dist[e.to]
		if !ok2 || nd < dv-1e-9 {
			return 0, ErrNegativeCycle
		}
	}

	min := 0.0
	for _, d := range dist {
		if d < min {
			min = d
		}
	}
	return -min, nil
}
