package decode

import (
	"fmt"

	"wcet/internal/instr"
)

// sparcDecoder hand-decodes the fixed-width 32-bit SPARC V8/V9 control-flow
// formats (format 1 CALL, format 2 Bicc/SETHI, and the JMPL/Ticc members of
// format 3), big-endian. Non-control-flow instructions get a generic
// opcode-derived name, matching riscvDecoder/mipsDecoder.
type sparcDecoder struct{}

func (sparcDecoder) Decode(code []byte, pc uint64) (instr.Instruction, int, error) {
	if len(code) < 4 {
		return instr.Instruction{}, 0, fmt.Errorf("sparc: truncated instruction at 0x%x", pc)
	}
	word := uint32(code[0])<<24 | uint32(code[1])<<16 | uint32(code[2])<<8 | uint32(code[3])
	op := word >> 30

	switch op {
	case 0x1: // CALL, 30-bit word-granular displacement
		disp30 := word & 0x3fffffff
		target := pc + uint64(disp30)*4
		return instr.New(pc, "CALL", instr.Operands{Second: fmt.Sprintf("0x%x", target)},
			[]instr.Group{instr.GroupCall, instr.GroupBranchRelative}), 4, nil

	case 0x0: // format 2: Bicc, FBfcc, SETHI
		op2 := (word >> 22) & 0x7
		cond := (word >> 25) & 0xf
		switch op2 {
		case 0x2, 0x6: // Bicc, FBfcc
			disp22 := sparcSignExtend(word&0x3fffff, 22)
			target := uint64(int64(pc) + disp22*4)
			mnemonic := "BICC"
			if op2 == 0x6 {
				mnemonic = "FBFCC"
			}
			if cond == 0x8 {
				mnemonic += "_BA"
			}
			return instr.New(pc, mnemonic, instr.Operands{Second: fmt.Sprintf("0x%x", target)},
				[]instr.Group{instr.GroupJump, instr.GroupBranchRelative}), 4, nil
		default:
			return instr.New(pc, fmt.Sprintf("FMT2_0x%x", op2), instr.Operands{}, nil), 4, nil
		}

	case 0x2: // format 3: arithmetic/control
		op3 := (word >> 19) & 0x3f
		rd := (word >> 25) & 0x1f
		switch op3 {
		case 0x38: // JMPL
			if rd == 0 {
				return instr.New(pc, "JMPL_RET", instr.Operands{}, []instr.Group{instr.GroupRet}), 4, nil
			}
			return instr.New(pc, "JMPL", instr.Operands{First: fmt.Sprintf("%%r%d", rd)}, []instr.Group{instr.GroupCall}), 4, nil
		case 0x3a: // Ticc (trap)
			return instr.New(pc, "TICC", instr.Operands{}, []instr.Group{instr.GroupInt}), 4, nil
		default:
			return instr.New(pc, fmt.Sprintf("FMT3_0x%02x", op3), instr.Operands{}, nil), 4, nil
		}

	default: // op == 0x3: format 3 load/store
		op3 := (word >> 19) & 0x3f
		return instr.New(pc, fmt.Sprintf("LDST_0x%02x", op3), instr.Operands{}, nil), 4, nil
	}
}

func sparcSignExtend(v uint32, bits int) int64 {
	shift := 32 - bits
	return int64(int32(v<<shift)) >> shift
}
