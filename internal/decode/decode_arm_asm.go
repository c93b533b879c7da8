package decode

import (
	"fmt"
	"strings"

	"wcet/internal/instr"

	"golang.org/x/arch/arm/armasm"
)

// armDecoder wraps golang.org/x/arch/arm/armasm in ARM (not Thumb) mode.
// Thumb interworking is not handled; every instruction is a fixed 4 bytes.
type armDecoder struct{}

func (armDecoder) Decode(code []byte, pc uint64) (instr.Instruction, int, error) {
	inst, err := armasm.Decode(code, armasm.ModeARM)
	if err != nil {
		return instr.Instruction{}, 0, err
	}
	mnemonic, rest := splitMnemonic(inst.String())
	ops := splitOperands(rest)
	// armasm renders a PCRel operand as "PC+0x..."; resolve it to the
	// absolute target. The ARM PC reads as the instruction address plus 8.
	for _, arg := range inst.Args {
		if rel, ok := arg.(armasm.PCRel); ok {
			ops.Second = fmt.Sprintf("0x%x", pc+8+uint64(int64(rel)))
			break
		}
	}
	return instr.New(pc, mnemonic, ops, armGroups(mnemonic)), inst.Len, nil
}

// armGroups classifies an ARM mnemonic. Predicated forms carry their
// condition as a ".XX" suffix on the Op string (e.g. "BL.EQ"), so an exact
// "BL"/"B" match only ever fires for the unconditional (AL) encoding;
// archctx's unconditional table relies on that same exactness.
func armGroups(mnemonic string) []instr.Group {
	switch {
	case strings.HasPrefix(mnemonic, "BLX"), strings.HasPrefix(mnemonic, "BL"):
		return []instr.Group{instr.GroupCall, instr.GroupBranchRelative}
	case strings.HasPrefix(mnemonic, "BX"):
		return []instr.Group{instr.GroupJump}
	case strings.HasPrefix(mnemonic, "B"):
		return []instr.Group{instr.GroupJump, instr.GroupBranchRelative}
	case strings.HasPrefix(mnemonic, "SVC"), strings.HasPrefix(mnemonic, "SWI"):
		return []instr.Group{instr.GroupInt}
	default:
		return nil
	}
}
