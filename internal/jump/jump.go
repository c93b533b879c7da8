// Package jump classifies how control leaves a basic block: it maps
// (instruction, next instruction, decoder groups, architecture) to a variant
// of ExitJump, keeping the taxonomy flat and symbolic so later stages never
// have to look at mnemonic strings again.
package jump

import (
	"fmt"
	"strconv"
	"strings"

	"wcet/internal/archctx"
	"wcet/internal/instr"
)

// Kind tags which variant of ExitJump a value holds. Switches over Kind must
// be exhaustive; a new branch kind means extending Successors in step.
type Kind int

const (
	KindConditionalRelative Kind = iota
	KindConditionalAbsolute
	KindUnconditionalRelative
	KindUnconditionalAbsolute
	KindIndirect
	KindRet
	KindCall
	KindNext
)

// ExitJump captures every way control may leave a basic block.
type ExitJump struct {
	Kind Kind

	// ConditionalRelative / ConditionalAbsolute
	Taken    uint64
	NotTaken uint64

	// UnconditionalRelative / UnconditionalAbsolute / Next
	Target uint64

	// Ret
	ReturnAddress uint64

	// Call
	CalleeEntry uint64
	FallThrough uint64
}

// Successors returns the block's successor addresses: Indirect and unbound
// (0) Ret have none, everything else has one or two.
func (e ExitJump) Successors() []uint64 {
	switch e.Kind {
	case KindConditionalRelative, KindConditionalAbsolute:
		return []uint64{e.Taken, e.NotTaken}
	case KindUnconditionalRelative, KindUnconditionalAbsolute, KindNext:
		return []uint64{e.Target}
	case KindIndirect:
		return nil
	case KindRet:
		if e.ReturnAddress == 0 {
			return nil
		}
		return []uint64{e.ReturnAddress}
	case KindCall:
		return []uint64{e.CalleeEntry}
	default:
		panic(fmt.Sprintf("jump: unhandled ExitJump kind %d", e.Kind))
	}
}

// WithSuccessor returns a copy of e with every occurrence of the successor
// address old replaced by next. Used by internal/dupe to rewrite edges into
// freshly cloned blocks without a kind-by-kind switch at every call site.
func (e ExitJump) WithSuccessor(old, next uint64) ExitJump {
	if e.Taken == old {
		e.Taken = next
	}
	if e.NotTaken == old {
		e.NotTaken = next
	}
	if e.Target == old {
		e.Target = next
	}
	if e.CalleeEntry == old {
		e.CalleeEntry = next
	}
	if e.ReturnAddress == old {
		e.ReturnAddress = next
	}
	return e
}

func (e ExitJump) String() string {
	switch e.Kind {
	case KindConditionalRelative:
		return fmt.Sprintf("ConditionalRelative{taken=0x%x, not_taken=0x%x}", e.Taken, e.NotTaken)
	case KindConditionalAbsolute:
		return fmt.Sprintf("ConditionalAbsolute{taken=0x%x, not_taken=0x%x}", e.Taken, e.NotTaken)
	case KindUnconditionalRelative:
		return fmt.Sprintf("UnconditionalRelative(0x%x)", e.Target)
	case KindUnconditionalAbsolute:
		return fmt.Sprintf("UnconditionalAbsolute(0x%x)", e.Target)
	case KindIndirect:
		return "Indirect"
	case KindRet:
		return fmt.Sprintf("Ret(0x%x)", e.ReturnAddress)
	case KindCall:
		return fmt.Sprintf("Call(0x%x, 0x%x)", e.CalleeEntry, e.FallThrough)
	case KindNext:
		return fmt.Sprintf("Next(0x%x)", e.Target)
	default:
		return "?"
	}
}

// Classify maps cur to its ExitJump variant. next is cur's successor in
// program order, used for fall-through/not-taken targets and a Call's
// return continuation. Returns (jump, false) when cur is not a branch.
func Classify(ctx archctx.Context, cur, next instr.Instruction) (ExitJump, bool, error) {
	if !cur.IsBranch() {
		return ExitJump{}, false, nil
	}

	table, err := archctx.MnemonicTable(ctx.Arch)
	if err != nil {
		return ExitJump{}, false, err
	}

	isRelative := cur.HasGroup(instr.GroupBranchRelative)
	nextAddr := next.Address

	if cur.HasGroup(instr.GroupRet) {
		return ExitJump{Kind: KindRet, ReturnAddress: 0}, true, nil
	}
	if cur.HasGroup(instr.GroupCall) {
		target, ok := parseTarget(cur.LastOperand())
		if !ok {
			return ExitJump{Kind: KindIndirect}, true, nil
		}
		return ExitJump{Kind: KindCall, CalleeEntry: target, FallThrough: nextAddr}, true, nil
	}

	// The decoder has already resolved PC-relative displacements, so the
	// operand is always an absolute target address; the relative group tag
	// only selects which variant the branch is recorded as.
	target, ok := parseTarget(cur.LastOperand())
	if !ok {
		return ExitJump{Kind: KindIndirect}, true, nil
	}

	unconditional := table.IsUnconditional(cur.Mnemonic)

	switch {
	case isRelative && unconditional:
		return ExitJump{Kind: KindUnconditionalRelative, Target: target}, true, nil
	case isRelative && !unconditional:
		return ExitJump{Kind: KindConditionalRelative, Taken: target, NotTaken: nextAddr}, true, nil
	case !isRelative && unconditional:
		return ExitJump{Kind: KindUnconditionalAbsolute, Target: target}, true, nil
	default:
		return ExitJump{Kind: KindConditionalAbsolute, Taken: target, NotTaken: nextAddr}, true, nil
	}
}

// parseTarget parses the last operand of a branch instruction as a
// hexadecimal immediate. Anything that isn't one (a register, a memory
// operand) means the branch target cannot be resolved statically.
func parseTarget(operand string) (uint64, bool) {
	s := strings.TrimSpace(operand)
	s = strings.TrimPrefix(s, "#")
	lower := strings.ToLower(s)
	if !strings.HasPrefix(lower, "0x") {
		return 0, false
	}
	v, err := strconv.ParseUint(lower[2:], 16, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
