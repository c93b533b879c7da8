// Package dupe makes the CFG context-sensitive across call-sites. Every
// call-site beyond the first to a given callee (as recorded by
// internal/cfgbuild's discovery pass) gets its own private clone of the
// callee's reachable subgraph, so that two callers of the same function
// never share a return edge and each caller's path latency is preserved
// independently.
package dupe

import (
	"fmt"
	"sort"

	"wcet/internal/block"
	"wcet/internal/cfgbuild"
	"wcet/internal/jump"
)

// Result augments the original blocks map with every duplicated clone,
// plus the bookkeeping needed to look up bounds by original address and to
// fold recursion later.
type Result struct {
	Blocks             map[uint64]*block.Block
	FictitiousMap      map[uint64]uint64 // fictitious_address -> original_address
	RecursiveFunctions map[uint64]uint64 // callee_entry -> return_address
}

// dupeFictitiousTag distinguishes fictitious leaders minted here from the
// ones internal/cfgbuild already assigned to the root of each duplicated
// call-site, so the two counters can never collide.
const dupeFictitiousTag = uint64(1) << 62

type duplicator struct {
	original           map[uint64]*block.Block
	blocks             map[uint64]*block.Block
	fictitiousMap      map[uint64]uint64
	recursiveFunctions map[uint64]uint64
	counter            uint64

	// preassigned maps the fictitious leader cfgbuild already substituted
	// into a duplicated call-site's ExitJump back to the real callee entry.
	// The walk below sees those fictitious targets in cloned exits, but
	// original blocks and visited sets are keyed by real addresses only.
	preassigned map[uint64]uint64
}

func (d *duplicator) fresh() uint64 {
	fl := (uint64(1) << 63) | dupeFictitiousTag | d.counter
	d.counter++
	return fl
}

// Run duplicates, in turn, every call-site beyond the first that
// cfgbuild.Build recorded in res.Duplicated, and returns the blocks map extended with
// all clones.
func Run(res *cfgbuild.Result) (*Result, error) {
	d := &duplicator{
		original:           res.Blocks,
		blocks:             cloneMap(res.Blocks),
		fictitiousMap:      make(map[uint64]uint64),
		recursiveFunctions: make(map[uint64]uint64),
		preassigned:        make(map[uint64]uint64, len(res.Duplicated)),
	}
	for site, dup := range res.Duplicated {
		d.preassigned[dup.FictitiousLeader] = site.CalleeEntry
	}
	sites := make([]cfgbuild.CallSite, 0, len(res.Duplicated))
	for site := range res.Duplicated {
		sites = append(sites, site)
	}
	// Clone in call-site address order so fictitious leaders come out the
	// same on every run.
	sort.Slice(sites, func(i, j int) bool { return sites[i].CallAddr < sites[j].CallAddr })
	for _, site := range sites {
		dup := res.Duplicated[site]
		visited := map[uint64]uint64{site.CalleeEntry: dup.FictitiousLeader}
		if err := d.cloneBlock(site.CalleeEntry, dup.FictitiousLeader, dup.FallThrough, site.CalleeEntry, visited); err != nil {
			return nil, err
		}
	}
	return &Result{Blocks: d.blocks, FictitiousMap: d.fictitiousMap, RecursiveFunctions: d.recursiveFunctions}, nil
}

func cloneMap(m map[uint64]*block.Block) map[uint64]*block.Block {
	out := make(map[uint64]*block.Block, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// cloneBlock clones the block at originalLeader under fictitiousLeader.
// retTarget is the return address any Ret reached via this branch of the
// DFS resolves to; rootCalleeEntry is the entry of the callee being
// duplicated, used to detect direct recursion when the walk closes a
// back-edge onto it.
func (d *duplicator) cloneBlock(originalLeader, fictitiousLeader, retTarget, rootCalleeEntry uint64, visited map[uint64]uint64) error {
	orig, ok := d.original[originalLeader]
	if !ok {
		return fmt.Errorf("dupe: block 0x%x referenced by a duplicated call-site was never built", originalLeader)
	}
	clone := block.Block{Leader: fictitiousLeader, Instructions: orig.Instructions, ExitJump: orig.ExitJump}
	d.fictitiousMap[fictitiousLeader] = originalLeader
	d.blocks[fictitiousLeader] = &clone

	switch clone.ExitJump.Kind {
	case jump.KindRet:
		clone.ExitJump = jump.ExitJump{Kind: jump.KindRet, ReturnAddress: retTarget}
		return nil

	case jump.KindIndirect:
		return nil

	case jump.KindCall:
		// cfgbuild already routed duplicated call-sites to their fictitious
		// leaders, so the exit's CalleeEntry may be fictitious here; resolve
		// it back to the real entry before any visited/original lookup.
		rawCallee := clone.ExitJump.CalleeEntry
		calleeSucc := rawCallee
		if orig, ok := d.preassigned[rawCallee]; ok {
			calleeSucc = orig
		}
		if existing, seen := visited[calleeSucc]; seen {
			clone.ExitJump = clone.ExitJump.WithSuccessor(rawCallee, existing)
			if calleeSucc == rootCalleeEntry {
				d.recursiveFunctions[rootCalleeEntry] = retTarget
			}
			return nil
		}
		fallClone := d.fresh()
		visited[clone.ExitJump.FallThrough] = fallClone
		if err := d.cloneBlock(clone.ExitJump.FallThrough, fallClone, retTarget, rootCalleeEntry, visited); err != nil {
			return err
		}
		calleeClone := d.fresh()
		visited[calleeSucc] = calleeClone
		if err := d.cloneBlock(calleeSucc, calleeClone, fallClone, rootCalleeEntry, visited); err != nil {
			return err
		}
		clone.ExitJump = jump.ExitJump{Kind: jump.KindCall, CalleeEntry: calleeClone, FallThrough: fallClone}
		return nil

	default:
		for _, succ := range clone.ExitJump.Successors() {
			if existing, seen := visited[succ]; seen {
				clone.ExitJump = clone.ExitJump.WithSuccessor(succ, existing)
				continue
			}
			childFict := d.fresh()
			visited[succ] = childFict
			if err := d.cloneBlock(succ, childFict, retTarget, rootCalleeEntry, visited); err != nil {
				return err
			}
			clone.ExitJump = clone.ExitJump.WithSuccessor(succ, childFict)
		}
		return nil
	}
}
