package dupe

import (
	"testing"

	"wcet/internal/archctx"
	"wcet/internal/cfgbuild"
	"wcet/internal/instr"
)

var arm64 = archctx.Context{Arch: archctx.ARM64}

func plain(addr uint64, mnemonic string) instr.Instruction {
	return instr.New(addr, mnemonic, instr.Operands{}, nil)
}

func branch(addr uint64, mnemonic, target string, groups ...instr.Group) instr.Instruction {
	return instr.New(addr, mnemonic, instr.Operands{Second: target}, groups)
}

// TestRunClonesSecondCallSite: a second call-site to the same callee gets
// its own private clone of the callee's block, under a fresh fictitious
// leader distinct from the real callee entry.
func TestRunClonesSecondCallSite(t *testing.T) {
	insts := []instr.Instruction{
		branch(0x1000, "BL", "0x3000", instr.GroupCall),
		plain(0x1004, "MOV"),
		branch(0x1008, "BL", "0x3000", instr.GroupCall),
		plain(0x100C, "MOV"),
		plain(0x3000, "MOV"),
		branch(0x3004, "RET", "", instr.GroupRet),
	}

	built, err := cfgbuild.Build(arm64, insts)
	if err != nil {
		t.Fatalf("cfgbuild.Build: %v", err)
	}
	res, err := Run(built)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	// The second call (0x1008) ends the block led by 0x1004.
	second := res.Blocks[0x1004]
	fictitious := second.ExitJump.CalleeEntry
	if fictitious == 0x3000 {
		t.Fatalf("second call-site still targets the real callee entry")
	}
	clone, ok := res.Blocks[fictitious]
	if !ok {
		t.Fatalf("no cloned block at the fictitious leader 0x%x", fictitious)
	}
	if orig, ok := res.FictitiousMap[fictitious]; !ok || orig != 0x3000 {
		t.Fatalf("FictitiousMap[0x%x] = (0x%x, %v), want (0x3000, true)", fictitious, orig, ok)
	}
	if clone.ExitJump.ReturnAddress != 0x100C {
		t.Fatalf("clone's Ret resolves to 0x%x, want the second call-site's fall-through 0x100C", clone.ExitJump.ReturnAddress)
	}

	first := res.Blocks[0x1000]
	if first.ExitJump.CalleeEntry != 0x3000 {
		t.Fatalf("first call-site was rerouted away from the real callee")
	}
}

// TestRunDetectsDirectRecursionCalleeFirst lays the recursive function F
// out below its external caller in the address space. F's own self-call is
// then the first reference to F's entry and wins cfgbuild's call-map slot,
// keeping its real (un-duplicated) target; the external caller's call is
// the one duplicated, and cloning its callee subgraph walks straight back
// into F's still-real self-call, which is how the duplicator recognizes
// the recursion.
func TestRunDetectsDirectRecursionCalleeFirst(t *testing.T) {
	insts := []instr.Instruction{
		// F, entered at 0x1000: calls itself, then returns.
		plain(0x1000, "MOV"),
		branch(0x1004, "BL", "0x1000", instr.GroupCall),
		plain(0x1008, "MOV"),
		branch(0x100C, "RET", "", instr.GroupRet),
		// External caller above F: its call is the second reference to
		// 0x1000 overall, so cfgbuild duplicates it.
		branch(0x2000, "BL", "0x1000", instr.GroupCall),
		plain(0x2004, "MOV"),
	}

	built, err := cfgbuild.Build(arm64, insts)
	if err != nil {
		t.Fatalf("cfgbuild.Build: %v", err)
	}
	res, err := Run(built)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.RecursiveFunctions) != 1 {
		t.Fatalf("got %d recursive functions, want 1: %v", len(res.RecursiveFunctions), res.RecursiveFunctions)
	}
	if got := res.RecursiveFunctions[0x1000]; got != 0x2004 {
		t.Fatalf("RecursiveFunctions[0x1000] = 0x%x, want the duplicated call-site's fall-through 0x2004", got)
	}
}

// TestRunDetectsDirectRecursionCallerFirst is the common layout: the
// external caller sits below F, so its call is the first reference to F's
// entry and claims the call-map slot, and F's own internal self-call is
// the one cfgbuild routes to a fictitious leader. The duplicator's walk
// then meets an already-fictitious call target inside the subgraph it is
// cloning and must resolve it back to the real entry instead of chasing an
// address no block was ever built for.
func TestRunDetectsDirectRecursionCallerFirst(t *testing.T) {
	insts := []instr.Instruction{
		branch(0x1000, "BL", "0x3000", instr.GroupCall),
		plain(0x1004, "MOV"),
		// F, entered at 0x3000: calls itself, then returns.
		plain(0x3000, "MOV"),
		branch(0x3004, "BL", "0x3000", instr.GroupCall),
		plain(0x3008, "MOV"),
		branch(0x300C, "RET", "", instr.GroupRet),
	}

	built, err := cfgbuild.Build(arm64, insts)
	if err != nil {
		t.Fatalf("cfgbuild.Build: %v", err)
	}
	res, err := Run(built)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := res.RecursiveFunctions[0x3000]; got != 0x3008 {
		t.Fatalf("RecursiveFunctions[0x3000] = 0x%x, want the self-call's fall-through 0x3008", got)
	}

	// The self-call block's clone closes its back-edge onto the clone root
	// rather than escaping to an unbuilt address.
	fict := built.Blocks[0x3000].ExitJump.CalleeEntry
	if fict == 0x3000 {
		t.Fatalf("self-call block was not routed to a fictitious leader")
	}
	clone, ok := res.Blocks[fict]
	if !ok {
		t.Fatalf("no cloned block at the fictitious leader 0x%x", fict)
	}
	if clone.ExitJump.CalleeEntry != fict {
		t.Fatalf("clone's self-call targets 0x%x, want the clone root 0x%x", clone.ExitJump.CalleeEntry, fict)
	}
	if orig := res.FictitiousMap[fict]; orig != 0x3000 {
		t.Fatalf("FictitiousMap[0x%x] = 0x%x, want 0x3000", fict, orig)
	}
}
