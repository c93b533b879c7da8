package cfgbuild

import (
	"fmt"

	"wcet/internal/archctx"
	"wcet/internal/block"
	"wcet/internal/instr"
	"wcet/internal/jump"
)

// Result is the output of Build: the un-duplicated, per-function CFG plus
// everything internal/dupe needs to make it context-sensitive.
type Result struct {
	Blocks     map[uint64]*block.Block
	Duplicated map[CallSite]Duplicate
}

// Build runs both forward scans over insts and returns the resulting
// blocks, keyed by leader address.
func Build(ctx archctx.Context, insts []instr.Instruction) (*Result, error) {
	if len(insts) == 0 {
		return &Result{Blocks: map[uint64]*block.Block{}}, nil
	}
	d, err := discover(ctx, insts)
	if err != nil {
		return nil, err
	}

	blocks := make(map[uint64]*block.Block)
	// vacantRet pairs an unclaimed Ret with the most recently entered
	// callee whose return has not yet been bound. Best-effort: with an empty
	// stack the Ret stays unbound (Ret(0)) and its block is a sink; when calls
	// do not nest, the LIFO pop can pair a Ret with the wrong call-site.
	var vacantRet []uint64

	cur := &block.Block{Leader: insts[0].Address}
	for i, ins := range insts {
		cur.Instructions = append(cur.Instructions, ins)

		next := ins
		hasNext := i+1 < len(insts)
		if hasNext {
			next = insts[i+1]
		}
		sealed := !hasNext || d.leaders[next.Address]
		if !sealed {
			continue
		}

		ex, isBranch, err := jump.Classify(ctx, ins, next)
		if err != nil {
			return nil, fmt.Errorf("cfgbuild: assemble at 0x%x: %w", ins.Address, err)
		}

		switch {
		case !isBranch:
			cur.ExitJump = jump.ExitJump{Kind: jump.KindNext, Target: next.Address}

		case ex.Kind == jump.KindRet:
			var retAddr uint64
			if addr, ok := d.callMap[cur.Leader]; ok {
				retAddr = addr
			} else if n := len(vacantRet); n > 0 {
				retAddr = vacantRet[n-1]
				vacantRet = vacantRet[:n-1]
			}
			cur.ExitJump = jump.ExitJump{Kind: jump.KindRet, ReturnAddress: retAddr}

		case ex.Kind == jump.KindCall:
			if fallThrough, external := d.external[ins.Address]; external {
				cur.ExitJump = jump.ExitJump{Kind: jump.KindNext, Target: fallThrough}
			} else if dup, duplicated := d.duplicated[CallSite{CalleeEntry: ex.CalleeEntry, CallAddr: ins.Address}]; duplicated {
				cur.ExitJump = jump.ExitJump{Kind: jump.KindCall, CalleeEntry: dup.FictitiousLeader, FallThrough: dup.FallThrough}
				vacantRet = append(vacantRet, dup.FallThrough)
			} else {
				cur.ExitJump = ex
				vacantRet = append(vacantRet, ex.FallThrough)
			}

		default:
			cur.ExitJump = ex
		}

		blocks[cur.Leader] = cur
		if hasNext {
			cur = &block.Block{Leader: next.Address}
		}
	}

	return &Result{Blocks: blocks, Duplicated: d.duplicated}, nil
}
