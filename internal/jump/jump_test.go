package jump

import (
	"testing"

	"wcet/internal/archctx"
	"wcet/internal/instr"
)

func insn(addr uint64, mnemonic string, operand string, groups ...instr.Group) instr.Instruction {
	return instr.New(addr, mnemonic, instr.Operands{Second: operand}, groups)
}

func TestClassifyNonBranch(t *testing.T) {
	ctx := archctx.Context{Arch: archctx.ARM64}
	cur := insn(0x1000, "MOV", "x0")
	next := insn(0x1004, "NOP", "")

	ex, isBranch, err := Classify(ctx, cur, next)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if isBranch {
		t.Fatalf("MOV classified as branch: %+v", ex)
	}
}

func TestClassifyUnconditionalAbsolute(t *testing.T) {
	ctx := archctx.Context{Arch: archctx.ARM64}
	cur := insn(0x1000, "B", "0x2000", instr.GroupJump)
	next := insn(0x1004, "NOP", "")

	ex, isBranch, err := Classify(ctx, cur, next)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if !isBranch {
		t.Fatalf("B not classified as branch")
	}
	if ex.Kind != KindUnconditionalAbsolute || ex.Target != 0x2000 {
		t.Fatalf("got %+v, want UnconditionalAbsolute(0x2000)", ex)
	}
}

func TestClassifyConditional(t *testing.T) {
	ctx := archctx.Context{Arch: archctx.ARM64}
	cur := insn(0x1000, "BNE", "0x2000", instr.GroupJump)
	next := insn(0x1004, "NOP", "")

	ex, isBranch, err := Classify(ctx, cur, next)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if !isBranch || ex.Kind != KindConditionalAbsolute {
		t.Fatalf("got %+v, want ConditionalAbsolute", ex)
	}
	if ex.Taken != 0x2000 || ex.NotTaken != 0x1004 {
		t.Fatalf("got taken=0x%x not_taken=0x%x, want taken=0x2000 not_taken=0x1004", ex.Taken, ex.NotTaken)
	}
}

func TestClassifyIndirect(t *testing.T) {
	ctx := archctx.Context{Arch: archctx.ARM64}
	cur := insn(0x1000, "BR", "x5", instr.GroupJump)
	next := insn(0x1004, "NOP", "")

	ex, isBranch, err := Classify(ctx, cur, next)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if !isBranch || ex.Kind != KindIndirect {
		t.Fatalf("got %+v, want Indirect", ex)
	}
	if len(ex.Successors()) != 0 {
		t.Fatalf("Indirect block has successors: %v", ex.Successors())
	}
}

func TestClassifyCallAndRet(t *testing.T) {
	ctx := archctx.Context{Arch: archctx.ARM64}
	call := insn(0x1000, "BL", "0x3000", instr.GroupCall)
	next := insn(0x1004, "NOP", "")

	ex, isBranch, err := Classify(ctx, call, next)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if !isBranch || ex.Kind != KindCall || ex.CalleeEntry != 0x3000 || ex.FallThrough != 0x1004 {
		t.Fatalf("got %+v, want Call(0x3000, 0x1004)", ex)
	}

	ret := insn(0x3100, "RET", "", instr.GroupRet)
	ex2, isBranch2, err2 := Classify(ctx, ret, next)
	if err2 != nil {
		t.Fatalf("Classify ret: %v", err2)
	}
	if !isBranch2 || ex2.Kind != KindRet || ex2.ReturnAddress != 0 {
		t.Fatalf("got %+v, want unbound Ret(0)", ex2)
	}
	if len(ex2.Successors()) != 0 {
		t.Fatalf("unbound Ret has successors: %v", ex2.Successors())
	}
}

func TestUnknownArchFails(t *testing.T) {
	ctx := archctx.Context{Arch: archctx.Unknown}
	cur := insn(0x1000, "B", "0x2000", instr.GroupJump)
	next := insn(0x1004, "NOP", "")

	if _, _, err := Classify(ctx, cur, next); err == nil {
		t.Fatalf("Classify with unknown architecture should fail")
	}
}
