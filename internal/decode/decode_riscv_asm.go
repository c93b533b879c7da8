package decode

import (
	"fmt"

	"wcet/internal/instr"
)

// riscvDecoder hand-decodes the fixed-width 32-bit RV32I/RV64I base
// instruction set: the fields a control-flow instruction needs are read
// directly out of the raw word, and every other opcode gets a generic
// mnemonic derived from its opcode field, which is all latency accounting
// needs: a stable per-opcode name to key an <ARCH>_<MNEMONIC> override on.
// The compressed (RVC) 16-bit extension is not handled; every instruction
// is treated as 4 bytes.
type riscvDecoder struct {
	xlen int
}

func (d riscvDecoder) Decode(code []byte, pc uint64) (instr.Instruction, int, error) {
	if len(code) < 4 {
		return instr.Instruction{}, 0, fmt.Errorf("riscv: truncated instruction at 0x%x", pc)
	}
	word := uint32(code[0]) | uint32(code[1])<<8 | uint32(code[2])<<16 | uint32(code[3])<<24
	if word&0x3 != 0x3 {
		return instr.Instruction{}, 0, fmt.Errorf("riscv: not a 32-bit encoding at 0x%x (compressed instructions unsupported)", pc)
	}

	opcode := word & 0x7f
	funct3 := (word >> 12) & 0x7
	rd := (word >> 7) & 0x1f
	rs1 := (word >> 15) & 0x1f

	switch opcode {
	case 0x6f: // JAL
		imm := riscvJImm(word)
		target := uint64(int64(pc) + imm)
		mnemonic := "JAL"
		groups := []instr.Group{instr.GroupJump, instr.GroupBranchRelative}
		if rd == 1 {
			mnemonic = "JAL_CALL"
			groups = []instr.Group{instr.GroupCall, instr.GroupBranchRelative}
		}
		return instr.New(pc, mnemonic, instr.Operands{First: fmt.Sprintf("x%d", rd), Second: fmt.Sprintf("0x%x", target)}, groups), 4, nil

	case 0x67: // JALR
		imm := riscvIImm(word)
		if rd == 0 && rs1 == 1 && imm == 0 {
			return instr.New(pc, "JALR_RET", instr.Operands{}, []instr.Group{instr.GroupRet}), 4, nil
		}
		groups := []instr.Group{instr.GroupJump}
		mnemonic := "JALR"
		if rd == 1 {
			mnemonic = "JALR_CALL"
			groups = []instr.Group{instr.GroupCall}
		}
		return instr.New(pc, mnemonic, instr.Operands{First: fmt.Sprintf("x%d", rd), Second: fmt.Sprintf("%d(x%d)", imm, rs1)}, groups), 4, nil

	case 0x63: // branches
		mnemonic, ok := riscvBranchMnemonic(funct3)
		if !ok {
			return instr.New(pc, "BRANCH_RESERVED", instr.Operands{}, nil), 4, nil
		}
		imm := riscvBImm(word)
		target := uint64(int64(pc) + imm)
		return instr.New(pc, mnemonic, instr.Operands{Second: fmt.Sprintf("0x%x", target)},
			[]instr.Group{instr.GroupJump, instr.GroupBranchRelative}), 4, nil

	case 0x73: // ECALL/EBREAK (SYSTEM, imm12 selects)
		imm12 := word >> 20
		if imm12 == 0 {
			return instr.New(pc, "ECALL", instr.Operands{}, []instr.Group{instr.GroupInt}), 4, nil
		}
		return instr.New(pc, "EBREAK", instr.Operands{}, []instr.Group{instr.GroupInt}), 4, nil

	default:
		return instr.New(pc, fmt.Sprintf("OP_0x%02x", opcode), instr.Operands{}, nil), 4, nil
	}
}

func riscvBranchMnemonic(funct3 uint32) (string, bool) {
	switch funct3 {
	case 0b000:
		return "BEQ", true
	case 0b001:
		return "BNE", true
	case 0b100:
		return "BLT", true
	case 0b101:
		return "BGE", true
	case 0b110:
		return "BLTU", true
	case 0b111:
		return "BGEU", true
	default:
		return "", false
	}
}

func riscvSignExtend(v uint32, bits int) int64 {
	shift := 32 - bits
	return int64(int32(v<<shift)) >> shift
}

// riscvJImm assembles the J-type immediate used by JAL: imm[20|10:1|11|19:12].
func riscvJImm(word uint32) int64 {
	imm20 := (word >> 31) & 0x1
	imm10_1 := (word >> 21) & 0x3ff
	imm11 := (word >> 20) & 0x1
	imm19_12 := (word >> 12) & 0xff
	v := imm20<<20 | imm19_12<<12 | imm11<<11 | imm10_1<<1
	return riscvSignExtend(v, 21)
}

// riscvBImm assembles the B-type immediate used by the conditional branch
// family: imm[12|10:5|4:1|11].
func riscvBImm(word uint32) int64 {
	imm12 := (word >> 31) & 0x1
	imm10_5 := (word >> 25) & 0x3f
	imm4_1 := (word >> 8) & 0xf
	imm11 := (word >> 7) & 0x1
	v := imm12<<12 | imm11<<11 | imm10_5<<5 | imm4_1<<1
	return riscvSignExtend(v, 13)
}

// riscvIImm assembles the I-type immediate used by JALR: imm[11:0].
func riscvIImm(word uint32) int64 {
	return riscvSignExtend(word>>20, 12)
}
