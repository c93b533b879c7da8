package decode

import (
	"fmt"

	"wcet/internal/instr"

	"golang.org/x/arch/arm64/arm64asm"
)

// arm64Decoder wraps golang.org/x/arch/arm64/arm64asm.
type arm64Decoder struct{}

func (arm64Decoder) Decode(code []byte, pc uint64) (instr.Instruction, int, error) {
	inst, err := arm64asm.Decode(code)
	if err != nil {
		return instr.Instruction{}, 0, err
	}
	mnemonic := inst.Op.String()
	// B carries both the unconditional branch and, when Args[0] is a
	// Cond, the conditional B.cond form; arm64asm.GNUSyntax special-cases
	// this the same way (see golang.org/x/arch/arm64/arm64asm/gnu.go).
	// Give the conditional form its own synthetic mnemonic so
	// archctx's unconditional-mnemonic table can tell them apart.
	if mnemonic == "B" {
		if _, isCond := inst.Args[0].(arm64asm.Cond); isCond {
			mnemonic = "Bcond"
		}
	}
	_, rest := splitMnemonic(inst.String())
	ops := splitOperands(rest)
	// arm64asm renders a PCRel operand as ".+0x..."; resolve it to the
	// absolute target (PCRel is relative to the instruction's own address).
	for _, arg := range inst.Args {
		if rel, ok := arg.(arm64asm.PCRel); ok {
			ops.Second = fmt.Sprintf("0x%x", pc+uint64(int64(rel)))
			break
		}
	}
	groups := arm64Groups(inst.Op)
	return instr.New(pc, mnemonic, ops, groups), 4, nil
}

func arm64Groups(op arm64asm.Op) []instr.Group {
	switch op {
	case arm64asm.BL:
		return []instr.Group{instr.GroupCall, instr.GroupBranchRelative}
	case arm64asm.BLR:
		return []instr.Group{instr.GroupCall}
	case arm64asm.RET:
		return []instr.Group{instr.GroupRet}
	case arm64asm.SVC:
		return []instr.Group{instr.GroupInt}
	case arm64asm.B, arm64asm.CBZ, arm64asm.CBNZ, arm64asm.TBZ, arm64asm.TBNZ:
		return []instr.Group{instr.GroupJump, instr.GroupBranchRelative}
	case arm64asm.BR:
		return []instr.Group{instr.GroupJump}
	default:
		return nil
	}
}
