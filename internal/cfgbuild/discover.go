// Package cfgbuild turns a linear instruction stream into a
// block-per-leader control-flow graph in two forward scans: the first
// discovers leaders, jumps and call-sites, the second partitions the
// stream at the leaders and seals each block with its exit jump.
package cfgbuild

import (
	"fmt"

	"wcet/internal/archctx"
	"wcet/internal/diag"
	"wcet/internal/instr"
	"wcet/internal/jump"
)

// CallSite identifies one call instruction's edge to a callee.
type CallSite struct {
	CalleeEntry uint64
	CallAddr    uint64
}

// Duplicate is what a call-site beyond the first to a given callee is
// routed into: a fictitious leader in place of the callee's real entry,
// and the call's own fall-through address.
type Duplicate struct {
	FictitiousLeader uint64
	FallThrough      uint64
}

// discovery is the first forward scan's output.
type discovery struct {
	leaders    map[uint64]bool
	callMap    map[uint64]uint64 // callee_entry -> fall_through, first call-site only
	duplicated map[CallSite]Duplicate
	external   map[uint64]uint64 // call instruction address -> fall_through, for external/self calls
}

// fictitiousLeader mints a synthetic leader address for a duplicated
// call-site, in an address space (bit 63 set plus a monotonic counter) no
// real instruction address can reach.
func fictitiousLeader(counter uint64) uint64 {
	return (uint64(1) << 63) | counter
}

func discover(ctx archctx.Context, insts []instr.Instruction) (*discovery, error) {
	d := &discovery{
		leaders:    make(map[uint64]bool),
		callMap:    make(map[uint64]uint64),
		duplicated: make(map[CallSite]Duplicate),
		external:   make(map[uint64]uint64),
	}
	if len(insts) == 0 {
		return d, nil
	}
	d.leaders[insts[0].Address] = true

	var dupCounter uint64
	for i, cur := range insts {
		next := cur
		if i+1 < len(insts) {
			next = insts[i+1]
		}
		ex, isBranch, err := jump.Classify(ctx, cur, next)
		if err != nil {
			return nil, fmt.Errorf("cfgbuild: discover at 0x%x: %w", cur.Address, err)
		}
		if !isBranch {
			continue
		}
		if i+1 < len(insts) {
			d.leaders[next.Address] = true
		}

		if ex.Kind == jump.KindIndirect {
			diag.Warnf("indirect branch at 0x%x ignored; block becomes a sink", cur.Address)
			continue
		}
		if ex.Kind != jump.KindCall {
			for _, target := range ex.Successors() {
				d.leaders[target] = true
			}
			continue
		}

		// External and self calls are dropped.
		if ex.CalleeEntry == next.Address || ex.CalleeEntry == cur.Address {
			diag.Warnf("external call at 0x%x to 0x%x ignored", cur.Address, ex.CalleeEntry)
			d.external[cur.Address] = ex.FallThrough
			continue
		}

		if _, seen := d.callMap[ex.CalleeEntry]; seen {
			fl := fictitiousLeader(dupCounter)
			dupCounter++
			d.duplicated[CallSite{CalleeEntry: ex.CalleeEntry, CallAddr: cur.Address}] = Duplicate{
				FictitiousLeader: fl,
				FallThrough:      ex.FallThrough,
			}
			continue
		}
		d.callMap[ex.CalleeEntry] = ex.FallThrough
		d.leaders[ex.CalleeEntry] = true
	}
	return d, nil
}
