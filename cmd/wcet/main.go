// Command wcet estimates the worst-case execution time, in processor clock
// cycles, of a compiled program supplied as an object file.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"wcet/internal/calldump"
	"wcet/internal/config"
	"wcet/internal/dotgraph"
	"wcet/internal/graph"
	"wcet/internal/objfile"
	"wcet/internal/wcet"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("wcet", flag.ExitOnError)
	graphsDir := fs.String("graphs", "graphs", "directory DOT artefacts are written to")
	calls := fs.Bool("calls", false, "also write calls.dot, the address-keyed call graph")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "usage: wcet <object-file>\n")
		os.Exit(1)
	}
	path := fs.Arg(0)

	if err := config.LoadDotEnv(); err != nil {
		return err
	}

	obj, err := objfile.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}

	dir, err := dotgraph.Open(*graphsDir)
	if err != nil {
		return err
	}

	opts := wcet.Options{
		OnCycleGraph: func(seq int, g *graph.Graph) {
			if err := dir.WriteGraph(dotgraph.CycleGraphName(seq), g, dotgraph.Default); err != nil {
				fmt.Fprintf(os.Stderr, "warning: writing cycle_graph_%d.dot: %v\n", seq, err)
			}
		},
		OnCondensedCycleGraph: func(seq int, g *graph.Graph) {
			if err := dir.WriteGraph(dotgraph.CondensedCycleGraphName(seq), g, dotgraph.Default); err != nil {
				fmt.Fprintf(os.Stderr, "warning: writing condensed_cycle_graph_%d.dot: %v\n", seq, err)
			}
		},
	}

	report, err := wcet.Compute(obj, opts)
	if err != nil {
		return err
	}

	if err := dir.WriteGraph("graph.dot", report.Graph, dotgraph.Default); err != nil {
		return err
	}
	if err := dir.WriteGraph("condensed_graph.dot", report.Condensed, dotgraph.Default); err != nil {
		return err
	}

	if *calls {
		cg := calldump.Build(report.Graph.Blocks)
		dot := calldump.DOT(cg, "calls")
		if err := os.WriteFile(filepath.Join(*graphsDir, "calls.dot"), []byte(dot), 0o644); err != nil {
			return fmt.Errorf("writing calls.dot: %w", err)
		}
	}

	fmt.Printf("WCET: %d clock cycles\n", report.WCET)
	return nil
}
