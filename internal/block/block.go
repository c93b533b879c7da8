// Package block defines the basic-block record and the two queries every
// later stage needs from it: its successor addresses and its total
// latency.
package block

import (
	"wcet/internal/instr"
	"wcet/internal/jump"
)

// Block is a maximal straight-line run of instructions: control enters only
// at Leader and leaves only via ExitJump, on the last instruction.
type Block struct {
	Leader       uint64
	Instructions []instr.Instruction
	ExitJump     jump.ExitJump
}

// Targets returns the block's successor addresses.
func (b Block) Targets() []uint64 {
	return b.ExitJump.Successors()
}

// Latency sums every instruction's latency. This is the block's weight in
// the longest-path computation.
func (b Block) Latency() uint32 {
	var total uint32
	for _, ins := range b.Instructions {
		total += ins.Latency
	}
	return total
}

// Last returns the block's final instruction, the one ExitJump classifies.
func (b Block) Last() instr.Instruction {
	return b.Instructions[len(b.Instructions)-1]
}
