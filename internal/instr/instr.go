// Package instr defines the immutable per-instruction record the pipeline
// works with: address, mnemonic, operand pair, and a latency resolved from
// per-architecture configuration.
package instr

import "fmt"

// Group tags the instruction-group membership the decoder reports for a
// single instruction: call, interrupt, jump, return, interrupt-return, and
// whether a branch target is encoded PC-relative.
type Group int

const (
	GroupCall Group = iota
	GroupInt
	GroupJump
	GroupRet
	GroupIret
	GroupBranchRelative
)

// Operands is an instruction's operand pair. Most instructions use at most
// the second slot for a branch/call target or immediate; the first slot
// holds whatever else the decoder supplies (e.g. a register destination).
type Operands struct {
	First  string
	Second string
}

// Instruction is the immutable per-instruction record. Latency defaults to
// 1 and is overridden by internal/config from an <ARCH>_<MNEMONIC> env var.
type Instruction struct {
	Address  uint64
	Mnemonic string
	Operands Operands
	Groups   []Group
	Latency  uint32
}

// New constructs an Instruction with the default latency of 1.
func New(address uint64, mnemonic string, operands Operands, groups []Group) Instruction {
	return Instruction{
		Address:  address,
		Mnemonic: mnemonic,
		Operands: operands,
		Groups:   groups,
		Latency:  1,
	}
}

// WithLatency returns a copy of the instruction with the given latency.
// Instructions are immutable once constructed, so callers never mutate in
// place.
func (i Instruction) WithLatency(latency uint32) Instruction {
	i.Latency = latency
	return i
}

// HasGroup reports whether the instruction carries the given group tag.
func (i Instruction) HasGroup(g Group) bool {
	for _, have := range i.Groups {
		if have == g {
			return true
		}
	}
	return false
}

// IsBranch reports whether the instruction is any kind of control-flow
// transfer: call, interrupt, jump, return, or interrupt-return.
func (i Instruction) IsBranch() bool {
	return i.HasGroup(GroupCall) || i.HasGroup(GroupInt) || i.HasGroup(GroupJump) ||
		i.HasGroup(GroupRet) || i.HasGroup(GroupIret)
}

// LastOperand returns the operand slot a branch target lives in.
func (i Instruction) LastOperand() string {
	if i.Operands.Second != "" {
		return i.Operands.Second
	}
	return i.Operands.First
}

func (i Instruction) String() string {
	return fmt.Sprintf("0x%x: %s %s,%s", i.Address, i.Mnemonic, i.Operands.First, i.Operands.Second)
}
