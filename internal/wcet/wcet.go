// Package wcet orchestrates the full pipeline (decode, CFG build,
// call-site duplication, SCC condensation) and performs the final WCET
// reduction over the condensed DAG's entry super-nodes.
package wcet

import (
	"fmt"
	"sort"

	"wcet/internal/archctx"
	"wcet/internal/block"
	"wcet/internal/cfgbuild"
	"wcet/internal/config"
	"wcet/internal/cycle"
	"wcet/internal/decode"
	"wcet/internal/diag"
	"wcet/internal/dupe"
	"wcet/internal/graph"
	"wcet/internal/instr"
	"wcet/internal/objfile"
)

// Options carries the optional DOT-emission hooks cmd/wcet wires to
// internal/dotgraph; both are nil-safe.
type Options struct {
	OnCycleGraph          func(seq int, g *graph.Graph)
	OnCondensedCycleGraph func(seq int, g *graph.Graph)
}

// Report is the pipeline's full output: the estimated WCET plus the two
// graph snapshots written to disk (the un-condensed CFG and the final
// condensed DAG).
type Report struct {
	WCET      uint64
	Graph     *graph.Graph // full CFG, pre-condensation
	Condensed *graph.Graph // same graph, condensed in place
}

// Compute runs the entire pipeline over an already-loaded object file and
// returns its estimated WCET in clock cycles.
func Compute(obj *objfile.File, opts Options) (*Report, error) {
	dec, err := decode.New(obj.Ctx)
	if err != nil {
		return nil, err
	}

	base, code := obj.Code()
	insts, err := decode.DecodeAll(dec, code, base)
	if err != nil {
		return nil, err
	}

	return ComputeFromInstructions(obj.Ctx, insts, opts)
}

// ComputeFromInstructions runs the pipeline starting from already-decoded
// instructions, skipping object-file loading and decoding. Exercised
// directly by tests that build fixture instruction streams by hand.
func ComputeFromInstructions(ctx archctx.Context, insts []instr.Instruction, opts Options) (*Report, error) {
	insts, err := applyLatencies(ctx, insts)
	if err != nil {
		return nil, err
	}

	built, err := cfgbuild.Build(ctx, insts)
	if err != nil {
		return nil, err
	}

	dup, err := dupe.Run(built)
	if err != nil {
		return nil, err
	}

	full := graph.New(dup.Blocks)
	condensed := graph.New(cloneBlocks(dup.Blocks))

	resolver := &config.Resolver{
		ToOriginal: func(addr uint64) (uint64, bool) {
			orig, ok := dup.FictitiousMap[addr]
			return orig, ok
		},
		Warn: diag.Warnf,
	}
	bounds := cycle.Bounds{
		Resolver:              resolver,
		RecursiveFunctions:    dup.RecursiveFunctions,
		OnCycleGraph:          opts.OnCycleGraph,
		OnCondensedCycleGraph: opts.OnCondensedCycleGraph,
	}

	res, err := cycle.Condense(condensed, bounds)
	if err != nil {
		return nil, err
	}

	total, err := reduce(res)
	if err != nil {
		return nil, err
	}

	return &Report{WCET: total, Graph: full, Condensed: res.Graph}, nil
}

// applyLatencies resolves each instruction's <ARCH>_<MNEMONIC> latency
// override, returning a new slice since Instruction is immutable once
// constructed.
func applyLatencies(ctx archctx.Context, insts []instr.Instruction) ([]instr.Instruction, error) {
	out := make([]instr.Instruction, len(insts))
	cache := make(map[string]uint32)
	for i, ins := range insts {
		lat, ok := cache[ins.Mnemonic]
		if !ok {
			var err error
			lat, err = config.Latency(ctx.Arch.String(), ins.Mnemonic)
			if err != nil {
				return nil, err
			}
			cache[ins.Mnemonic] = lat
		}
		out[i] = ins.WithLatency(lat)
	}
	return out, nil
}

// reduce computes WCET = max(candidate over entry super-nodes) + the sum
// of every recursion latency the condenser resolved; recursive callees
// contribute that delay term instead of competing for the max.
func reduce(res *cycle.Result) (uint64, error) {
	g := res.Graph

	var entries []uint64
	for leader := range g.Blocks {
		if len(g.Incoming(leader)) == 0 {
			entries = append(entries, leader)
		}
	}
	if len(entries) == 0 {
		return 0, fmt.Errorf("wcet: condensed graph has no entry super-node")
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i] < entries[j] })

	var best float64
	for _, e := range entries {
		if res.RecursiveEntries[e] {
			// A recursive callee's contribution is already in LatencyMap;
			// it is added below as a delay term, not a competing candidate.
			continue
		}
		entryLat := float64(g.Blocks[e].Latency())
		if v, ok := res.EntryNodeLatencyMap[e]; ok {
			entryLat = v
		}
		lp, err := graph.LongestPath(g, e)
		if err != nil {
			return 0, fmt.Errorf("wcet: longest path from entry super-node 0x%x: %w", e, err)
		}
		if candidate := entryLat + lp; candidate > best {
			best = candidate
		}
	}

	var recursiveDelay float64
	for _, v := range res.LatencyMap {
		recursiveDelay += float64(v)
	}

	return uint64(best + recursiveDelay), nil
}

func cloneBlocks(m map[uint64]*block.Block) map[uint64]*block.Block {
	out := make(map[uint64]*block.Block, len(m))
	for k, v := range m {
		cp := *v
		out[k] = &cp
	}
	return out
}
