package decode

import (
	"fmt"
	"strings"

	"wcet/internal/instr"

	"golang.org/x/arch/x86/x86asm"
)

// x86Decoder wraps golang.org/x/arch/x86/x86asm for both 32- and 64-bit
// code, selected by mode (32 or 64) the way cmd/objdump does.
type x86Decoder struct {
	mode int
}

func (d x86Decoder) Decode(code []byte, pc uint64) (instr.Instruction, int, error) {
	inst, err := x86asm.Decode(code, d.mode)
	if err != nil {
		return instr.Instruction{}, 0, err
	}
	mnemonic, rest := splitMnemonic(inst.String())
	ops := splitOperands(rest)
	// x86asm renders a Rel operand as ".+N"; resolve it to the absolute
	// target address here so the classifier only ever sees 0x... immediates.
	for _, arg := range inst.Args {
		if rel, ok := arg.(x86asm.Rel); ok {
			ops.Second = fmt.Sprintf("0x%x", pc+uint64(inst.Len)+uint64(int64(rel)))
			break
		}
	}
	return instr.New(pc, mnemonic, ops, x86Groups(mnemonic)), inst.Len, nil
}

// x86Groups classifies an x86 mnemonic into instr.Group tags. JMP/Jcc/CALL
// with a direct (Rel) operand are relative; LOOP/LOOPE/LOOPNE are treated
// as conditional relative jumps, matching how GCC-generated loop tails use
// them as a plain backward branch.
func x86Groups(mnemonic string) []instr.Group {
	switch {
	case mnemonic == "CALL":
		return []instr.Group{instr.GroupCall, instr.GroupBranchRelative}
	case mnemonic == "RET" || mnemonic == "RETF":
		return []instr.Group{instr.GroupRet}
	case mnemonic == "INT" || mnemonic == "INTO":
		return []instr.Group{instr.GroupInt}
	case strings.HasPrefix(mnemonic, "IRET"):
		return []instr.Group{instr.GroupIret}
	case mnemonic == "JMP":
		return []instr.Group{instr.GroupJump, instr.GroupBranchRelative}
	case strings.HasPrefix(mnemonic, "J"), strings.HasPrefix(mnemonic, "LOOP"):
		return []instr.Group{instr.GroupJump, instr.GroupBranchRelative}
	default:
		return nil
	}
}
