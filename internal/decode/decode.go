// Package decode turns a raw byte stream into the instr.Instruction values
// the rest of the pipeline works with. X86, ARM, ARM64 and PowerPC decode
// through golang.org/x/arch; RISC-V, MIPS and SPARC have no Go disassembler
// library, so their control-flow formats are decoded by hand from the fixed
// 32-bit encodings. Every backend normalizes branch targets to absolute
// hex addresses in the last operand slot.
package decode

import (
	"encoding/binary"
	"fmt"

	"wcet/internal/archctx"
	"wcet/internal/instr"
)

// Decoder decodes one instruction starting at code[0], which is loaded at
// address pc. It returns the decoded instruction and the number of bytes
// consumed.
type Decoder interface {
	Decode(code []byte, pc uint64) (instr.Instruction, int, error)
}

// New returns the Decoder appropriate for ctx.Arch.
func New(ctx archctx.Context) (Decoder, error) {
	switch ctx.Arch {
	case archctx.X86:
		return x86Decoder{mode: 32}, nil
	case archctx.X86_64:
		return x86Decoder{mode: 64}, nil
	case archctx.ARM:
		return armDecoder{}, nil
	case archctx.ARM64:
		return arm64Decoder{}, nil
	case archctx.PPC32, archctx.PPC64:
		return ppc64Decoder{order: binary.BigEndian}, nil
	case archctx.RISCV32:
		return riscvDecoder{xlen: 32}, nil
	case archctx.RISCV64:
		return riscvDecoder{xlen: 64}, nil
	case archctx.MIPS32, archctx.MIPS64:
		return mipsDecoder{}, nil
	case archctx.SPARC:
		return sparcDecoder{}, nil
	default:
		return nil, fmt.Errorf("decode: unsupported architecture %s", ctx.Arch)
	}
}

// DecodeAll decodes every instruction in code, which is loaded starting at
// baseAddr, stopping at the first decode error or when code is exhausted.
// A trailing partial instruction is dropped rather than treated as fatal:
// it is most often padding past the function's last real instruction.
func DecodeAll(d Decoder, code []byte, baseAddr uint64) ([]instr.Instruction, error) {
	var out []instr.Instruction
	pc := baseAddr
	for len(code) > 0 {
		ins, n, err := d.Decode(code, pc)
		if err != nil {
			if len(out) == 0 {
				return nil, fmt.Errorf("decode: at 0x%x: %w", pc, err)
			}
			break
		}
		if n <= 0 || n > len(code) {
			break
		}
		out = append(out, ins)
		code = code[n:]
		pc += uint64(n)
	}
	return out, nil
}

// splitOperands turns a comma-separated generic-syntax operand string (as
// produced by every golang.org/x/arch Inst.String() method) into the
// Operands pair instr.Instruction stores: everything but the last operand
// goes into First, the last into Second, so LastOperand always yields the
// branch-target slot.
func splitOperands(rest string) instr.Operands {
	if rest == "" {
		return instr.Operands{}
	}
	parts := splitTopLevelComma(rest)
	if len(parts) == 1 {
		return instr.Operands{Second: parts[0]}
	}
	last := parts[len(parts)-1]
	first := parts[0]
	for _, p := range parts[1 : len(parts)-1] {
		first += ", " + p
	}
	return instr.Operands{First: first, Second: last}
}

// splitTopLevelComma splits on ", " without descending into bracketed
// memory operands such as "[R1, #4]", which x86asm/armasm emit verbatim.
func splitTopLevelComma(s string) []string {
	var parts []string
	depth := 0
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '[', '(':
			depth++
		case ']', ')':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, trimSpace(s[start:i]))
				start = i + 1
			}
		}
	}
	parts = append(parts, trimSpace(s[start:]))
	return parts
}

// splitMnemonic splits a golang.org/x/arch Inst.String() rendering of
// "MNEMONIC op1, op2" into its mnemonic and the raw operand remainder.
func splitMnemonic(s string) (mnemonic, rest string) {
	for i := 0; i < len(s); i++ {
		if s[i] == ' ' {
			return s[:i], trimSpace(s[i+1:])
		}
	}
	return s, ""
}

func trimSpace(s string) string {
	for len(s) > 0 && s[0] == ' ' {
		s = s[1:]
	}
	for len(s) > 0 && s[len(s)-1] == ' ' {
		s = s[:len(s)-1]
	}
	return s
}
