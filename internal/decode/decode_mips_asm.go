package decode

import (
	"fmt"

	"wcet/internal/instr"
)

// mipsDecoder hand-decodes the fixed-width 32-bit MIPS32/MIPS64 control-flow
// instructions, big-endian (the common object-file convention). As with
// riscvDecoder, non-control-flow opcodes are given a generic name derived
// from the opcode/funct fields, which is all latency accounting needs.
type mipsDecoder struct{}

func (mipsDecoder) Decode(code []byte, pc uint64) (instr.Instruction, int, error) {
	if len(code) < 4 {
		return instr.Instruction{}, 0, fmt.Errorf("mips: truncated instruction at 0x%x", pc)
	}
	word := uint32(code[0])<<24 | uint32(code[1])<<16 | uint32(code[2])<<8 | uint32(code[3])
	opcode := word >> 26
	rs := (word >> 21) & 0x1f
	rt := (word >> 16) & 0x1f
	rd := (word >> 11) & 0x1f
	funct := word & 0x3f

	switch opcode {
	case 0x00: // SPECIAL
		switch funct {
		case 0x08: // JR
			if rs == 31 {
				return instr.New(pc, "JR_RA", instr.Operands{}, []instr.Group{instr.GroupRet}), 4, nil
			}
			return instr.New(pc, "JR", instr.Operands{Second: fmt.Sprintf("$%d", rs)}, []instr.Group{instr.GroupJump}), 4, nil
		case 0x09: // JALR
			groups := []instr.Group{instr.GroupJump}
			if rd != 0 {
				groups = []instr.Group{instr.GroupCall}
			}
			return instr.New(pc, "JALR", instr.Operands{First: fmt.Sprintf("$%d", rd), Second: fmt.Sprintf("$%d", rs)}, groups), 4, nil
		case 0x0c:
			return instr.New(pc, "SYSCALL", instr.Operands{}, []instr.Group{instr.GroupInt}), 4, nil
		default:
			return instr.New(pc, fmt.Sprintf("SPECIAL_0x%02x", funct), instr.Operands{}, nil), 4, nil
		}

	case 0x01: // REGIMM: BLTZ/BGEZ/BLTZAL/BGEZAL
		target := mipsBranchTarget(pc, word)
		mnemonic := mipsRegimmMnemonic(rt)
		return instr.New(pc, mnemonic, instr.Operands{Second: fmt.Sprintf("0x%x", target)},
			[]instr.Group{instr.GroupJump, instr.GroupBranchRelative}), 4, nil

	case 0x02, 0x03: // J, JAL
		target := mipsJumpTarget(pc, word)
		mnemonic, groups := "J", []instr.Group{instr.GroupJump}
		if opcode == 0x03 {
			mnemonic, groups = "JAL", []instr.Group{instr.GroupCall}
		}
		return instr.New(pc, mnemonic, instr.Operands{Second: fmt.Sprintf("0x%x", target)}, groups), 4, nil

	case 0x04, 0x05, 0x06, 0x07, 0x14, 0x15, 0x16, 0x17: // BEQ,BNE,BLEZ,BGTZ and *L likely variants
		target := mipsBranchTarget(pc, word)
		return instr.New(pc, mipsBranchMnemonic(opcode), instr.Operands{Second: fmt.Sprintf("0x%x", target)},
			[]instr.Group{instr.GroupJump, instr.GroupBranchRelative}), 4, nil

	default:
		return instr.New(pc, fmt.Sprintf("OP_0x%02x", opcode), instr.Operands{}, nil), 4, nil
	}
}

func mipsRegimmMnemonic(rt uint32) string {
	switch rt {
	case 0x00:
		return "BLTZ"
	case 0x01:
		return "BGEZ"
	case 0x10:
		return "BLTZAL"
	case 0x11:
		return "BGEZAL"
	default:
		return "REGIMM_RESERVED"
	}
}

func mipsBranchMnemonic(opcode uint32) string {
	switch opcode {
	case 0x04:
		return "BEQ"
	case 0x05:
		return "BNE"
	case 0x06:
		return "BLEZ"
	case 0x07:
		return "BGTZ"
	case 0x14:
		return "BEQL"
	case 0x15:
		return "BNEL"
	case 0x16:
		return "BLEZL"
	case 0x17:
		return "BGTZL"
	default:
		return "BRANCH_RESERVED"
	}
}

// mipsBranchTarget resolves a 16-bit signed branch offset relative to the
// instruction in the branch delay slot (pc+4), as MIPS architecturally
// defines it.
func mipsBranchTarget(pc uint64, word uint32) uint64 {
	offset := int32(int16(word & 0xffff))
	return uint64(int64(pc) + 4 + int64(offset)*4)
}

// mipsJumpTarget resolves J/JAL's 26-bit pseudo-direct target: the low 28
// bits come from the instruction word, the high bits from the delay slot's
// own address.
func mipsJumpTarget(pc uint64, word uint32) uint64 {
	instrIndex := word & 0x3ffffff
	return (pc+4)&0xfffffffff0000000 | (uint64(instrIndex) << 2)
}
