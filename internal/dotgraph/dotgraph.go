// Package dotgraph renders a CFG as DOT into the graphs output directory:
// graph.dot, condensed_graph.dot, one cycle_graph_<n>.dot per SCC resolved
// and one condensed_cycle_graph_<n>.dot per nested condensation.
package dotgraph

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"wcet/internal/block"
	"wcet/internal/graph"
)

// Theme controls the node/edge colors used when rendering.
type Theme struct {
	NodeFill   string
	NodeBorder string
	EdgeColor  string
}

// Default is a neutral grey palette readable in any DOT viewer.
var Default = Theme{NodeFill: "#f5f5f5", NodeBorder: "#333333", EdgeColor: "#666666"}

// Dir manages the graphs output directory: purged once on Open, with every
// subsequent write scoped to its own file handle.
type Dir struct {
	path string
}

// Open clears (or creates) the graphs directory.
func Open(path string) (*Dir, error) {
	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("dotgraph: clearing %s: %w", path, err)
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("dotgraph: creating %s: %w", path, err)
	}
	return &Dir{path: path}, nil
}

// WriteGraph renders g under name (e.g. "graph.dot", "condensed_graph.dot").
func (d *Dir) WriteGraph(name string, g *graph.Graph, theme Theme) error {
	f, err := os.Create(filepath.Join(d.path, name))
	if err != nil {
		return fmt.Errorf("dotgraph: creating %s: %w", name, err)
	}
	defer f.Close()
	_, err = f.WriteString(Render(g, theme))
	return err
}

// CycleGraphName and CondensedCycleGraphName produce the per-SCC
// filenames, numbered in resolution order.
func CycleGraphName(seq int) string          { return fmt.Sprintf("cycle_graph_%d.dot", seq) }
func CondensedCycleGraphName(seq int) string { return fmt.Sprintf("condensed_cycle_graph_%d.dot", seq) }

// Render emits g as a DOT digraph compatible with common graph viewers
// (Graphviz, xdot, VS Code's Graphviz Preview).
func Render(g *graph.Graph, theme Theme) string {
	var b strings.Builder
	b.WriteString("digraph CFG {\n")
	b.WriteString("  rankdir=TB;\n")
	fmt.Fprintf(&b, "  node [shape=box, style=filled, fillcolor=%q, color=%q, fontname=\"monospace\"];\n", theme.NodeFill, theme.NodeBorder)
	fmt.Fprintf(&b, "  edge [color=%q];\n", theme.EdgeColor)

	for _, leader := range sortedLeaders(g.Blocks) {
		blk := g.Blocks[leader]
		fmt.Fprintf(&b, "  %s [label=%q];\n", nodeID(leader), label(blk))
	}
	for _, from := range sortedLeaders(g.Blocks) {
		for _, to := range sortedSuccessors(g.Edges[from]) {
			fmt.Fprintf(&b, "  %s -> %s [label=%q];\n", nodeID(from), nodeID(to), fmt.Sprintf("%.0f", g.Weight(from, to)))
		}
	}
	b.WriteString("}\n")
	return b.String()
}

func nodeID(leader uint64) string {
	return fmt.Sprintf("n0x%x", leader)
}

func label(b *block.Block) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "0x%x (latency %d)", b.Leader, b.Latency())
	for _, ins := range b.Instructions {
		fmt.Fprintf(&sb, "\\n0x%x: %s", ins.Address, ins.Mnemonic)
	}
	fmt.Fprintf(&sb, "\\n%s", dotEscape(b.ExitJump.String()))
	return sb.String()
}

// dotEscape replaces characters DOT's quoted-string label can't carry
// verbatim: double quotes become single quotes, newlines become "\n".
func dotEscape(s string) string {
	s = strings.ReplaceAll(s, `"`, `'`)
	return strings.ReplaceAll(s, "\n", `\n`)
}

func sortedLeaders(blocks map[uint64]*block.Block) []uint64 {
	out := make([]uint64, 0, len(blocks))
	for k := range blocks {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func sortedSuccessors(s []uint64) []uint64 {
	out := append([]uint64(nil), s...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
