package archctx

import "fmt"

// MnemonicSet distinguishes an unconditional branch mnemonic from a
// conditional one.
type MnemonicSet struct {
	unconditional map[string]struct{}
}

// IsUnconditional reports whether mnemonic is this architecture's
// unconditional branch/call/return form. Anything branch-like that isn't
// listed is treated as conditional.
func (s MnemonicSet) IsUnconditional(mnemonic string) bool {
	_, ok := s.unconditional[mnemonic]
	return ok
}

func set(mnemonics ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(mnemonics))
	for _, s := range mnemonics {
		m[s] = struct{}{}
	}
	return m
}

var tables = map[Arch]MnemonicSet{
	ARM64: {unconditional: set("B", "BL", "BR", "BLR", "RET")},
	ARM:   {unconditional: set("B", "BL", "BX", "BLX")},
	X86: {unconditional: set("JMP", "CALL", "RET",
		"JMPQ", "JMPL", "JMPW")},
	X86_64: {unconditional: set("JMP", "CALL", "RET",
		"JMPQ", "JMPL", "JMPW")},
	RISCV32: {unconditional: set("JAL", "JALR")},
	RISCV64: {unconditional: set("JAL", "JALR")},
	MIPS32:  {unconditional: set("J", "JR", "B")},
	MIPS64:  {unconditional: set("J", "JR", "B")},
	PPC32:   {unconditional: set("B", "BA")},
	PPC64:   {unconditional: set("B", "BA")},
	SPARC:   {unconditional: set("BICC_BA", "FBFCC_BA")},
}

// MnemonicTable returns the unconditional/conditional mnemonic table for
// arch, or an error if the architecture has no table (Unknown).
func MnemonicTable(arch Arch) (MnemonicSet, error) {
	t, ok := tables[arch]
	if !ok {
		return MnemonicSet{}, fmt.Errorf("archctx: no mnemonic table for %s", arch)
	}
	return t, nil
}
