package decode

import (
	"encoding/binary"
	"fmt"
	"strings"

	"wcet/internal/instr"

	"golang.org/x/arch/ppc64/ppc64asm"
)

// ppc64Decoder wraps golang.org/x/arch/ppc64/ppc64asm, which decodes both
// 32- and 64-bit PowerPC encodings; order is always big-endian for the
// object formats this tool accepts.
type ppc64Decoder struct {
	order binary.ByteOrder
}

func (d ppc64Decoder) Decode(code []byte, pc uint64) (instr.Instruction, int, error) {
	inst, err := ppc64asm.Decode(code, d.order)
	if err != nil {
		return instr.Instruction{}, 0, err
	}
	mnemonic, rest := splitMnemonic(strings.ToUpper(inst.String()))
	ops := splitOperands(rest)
	// ppc64asm renders a relative displacement as "PC+0x..." and an absolute
	// one as a Label; normalize both to a plain absolute hex target.
	for _, arg := range inst.Args {
		switch a := arg.(type) {
		case ppc64asm.PCRel:
			ops.Second = fmt.Sprintf("0x%x", pc+uint64(int64(a)))
		case ppc64asm.Label:
			ops.Second = fmt.Sprintf("0x%x", uint64(a))
		}
	}
	return instr.New(pc, mnemonic, ops, ppc64Groups(mnemonic)), inst.Len, nil
}

// ppc64Groups classifies a PowerPC mnemonic. BL/BLA are direct calls; BCTRL
// and BLRL are register-indirect calls through CTR/LR; BCLR/BCCTR family
// without the "L" suffix are conditional returns/indirect jumps.
func ppc64Groups(mnemonic string) []instr.Group {
	switch {
	case mnemonic == "BL":
		return []instr.Group{instr.GroupCall, instr.GroupBranchRelative}
	case mnemonic == "BLA", mnemonic == "BCTRL", mnemonic == "BCCTRL", mnemonic == "BCLRL":
		return []instr.Group{instr.GroupCall}
	case mnemonic == "BCLR", strings.HasPrefix(mnemonic, "BCLR."):
		return []instr.Group{instr.GroupRet}
	case mnemonic == "SC":
		return []instr.Group{instr.GroupInt}
	case mnemonic == "BA":
		return []instr.Group{instr.GroupJump}
	case strings.HasPrefix(mnemonic, "BC"), mnemonic == "B":
		return []instr.Group{instr.GroupJump, instr.GroupBranchRelative}
	default:
		return nil
	}
}
