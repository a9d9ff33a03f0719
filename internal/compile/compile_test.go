package compile

import (
	"bytes"
	"strings"
	"testing"

	"github.com/joelreymont/hoist-sub004/internal/ir"
	"github.com/joelreymont/hoist-sub004/internal/types"
)

func buildAddFunction() *ir.Function {
	f := ir.NewFunction("add", ir.Signature{
		CallConv: ir.AAPCS64,
		Params:   []types.ID{types.I32, types.I32},
		Returns:  []types.ID{types.I32},
	})
	b := ir.NewBuilder(f)
	block := b.CreateBlock()
	x := b.AppendBlockParam(block, types.I32)
	y := b.AppendBlockParam(block, types.I32)
	b.SwitchToBlock(block)
	sum := b.Binary(ir.OpIadd, types.I32, x, y)
	b.Return([]ir.Value{sum})
	return f
}

func TestCompileAArch64ProducesAlignedNonEmptyCode(t *testing.T) {
	pool := types.NewPool()
	opts, err := NewOptions(ArchAArch64)
	if err != nil {
		t.Fatalf("NewOptions: %v", err)
	}
	code, err := Compile(pool, buildAddFunction(), opts)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if len(code.Bytes) == 0 {
		t.Fatal("expected a non-empty code buffer")
	}
	if len(code.Bytes)%4 != 0 {
		t.Fatalf("expected code length to be a multiple of 4, got %d", len(code.Bytes))
	}
}

func TestCompileRISCV64ProducesAlignedNonEmptyCode(t *testing.T) {
	pool := types.NewPool()
	opts, err := NewOptions(ArchRISCV64)
	if err != nil {
		t.Fatalf("NewOptions: %v", err)
	}
	code, err := Compile(pool, buildAddFunction(), opts)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if len(code.Bytes) == 0 {
		t.Fatal("expected a non-empty code buffer")
	}
	if len(code.Bytes)%4 != 0 {
		t.Fatalf("expected code length to be a multiple of 4, got %d", len(code.Bytes))
	}
}

func TestCompileTracesEveryStage(t *testing.T) {
	pool := types.NewPool()
	var trace bytes.Buffer
	opts, err := NewOptions(ArchAArch64, WithTrace(&trace))
	if err != nil {
		t.Fatalf("NewOptions: %v", err)
	}
	if _, err := Compile(pool, buildAddFunction(), opts); err != nil {
		t.Fatalf("Compile: %v", err)
	}
	for _, stage := range []Stage{StageVerified, StageOptimized, StageLegalized, StageLowered, StageAllocated, StageEncoded} {
		if !strings.Contains(trace.String(), string(stage)) {
			t.Fatalf("expected trace to mention stage %q, got:\n%s", stage, trace.String())
		}
	}
}

func TestCompileRejectsUnterminatedBlock(t *testing.T) {
	pool := types.NewPool()
	f := ir.NewFunction("broken", ir.Signature{Returns: []types.ID{types.I32}})
	b := ir.NewBuilder(f)
	block := b.CreateBlock()
	b.SwitchToBlock(block)

	opts, err := NewOptions(ArchAArch64)
	if err != nil {
		t.Fatalf("NewOptions: %v", err)
	}
	_, err = Compile(pool, f, opts)
	if err == nil {
		t.Fatal("expected an error for a block with no terminator")
	}
	ce, ok := err.(*Error)
	if !ok {
		t.Fatalf("expected a *compile.Error, got %T", err)
	}
	if ce.Stage != StageVerified {
		t.Fatalf("got stage %q, want %q", ce.Stage, StageVerified)
	}
}

func TestCompileClassifiesParamsAndReturnsPerCallingConvention(t *testing.T) {
	pool := types.NewPool()
	opts, err := NewOptions(ArchAArch64)
	if err != nil {
		t.Fatalf("NewOptions: %v", err)
	}
	code, err := Compile(pool, buildAddFunction(), opts)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if len(code.ParamLocs) != 2 {
		t.Fatalf("got %d param locs, want 2", len(code.ParamLocs))
	}
	if code.ParamLocs[0].Reg != 0 || code.ParamLocs[1].Reg != 1 {
		t.Fatalf("expected the two i32 params in consecutive int registers, got %+v", code.ParamLocs)
	}
	if len(code.ReturnLocs) != 1 || code.ReturnLocs[0].Reg != 0 {
		t.Fatalf("expected a single return in int register 0, got %+v", code.ReturnLocs)
	}
}

func TestCompileWithDisassemblyRendersLoweredMnemonics(t *testing.T) {
	pool := types.NewPool()
	opts, err := NewOptions(ArchAArch64, WithDisassembly(true))
	if err != nil {
		t.Fatalf("NewOptions: %v", err)
	}
	code, err := Compile(pool, buildAddFunction(), opts)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if len(code.Disasm) == 0 {
		t.Fatal("expected non-empty disassembly")
	}
	if !strings.Contains(strings.Join(code.Disasm, "\n"), "add") {
		t.Fatalf("expected an add mnemonic in disassembly, got:\n%s", strings.Join(code.Disasm, "\n"))
	}
}

func TestCompileAllRunsIndependentFunctionsConcurrently(t *testing.T) {
	pool := types.NewPool()
	opts, err := NewOptions(ArchAArch64)
	if err != nil {
		t.Fatalf("NewOptions: %v", err)
	}
	fns := []*ir.Function{buildAddFunction(), buildAddFunction(), buildAddFunction()}
	codes, err := CompileAll(pool, fns, opts)
	if err != nil {
		t.Fatalf("CompileAll: %v", err)
	}
	if len(codes) != len(fns) {
		t.Fatalf("got %d codes, want %d", len(codes), len(fns))
	}
	for i, c := range codes {
		if c == nil || len(c.Bytes) == 0 {
			t.Fatalf("codes[%d] is empty", i)
		}
	}
}

func TestWithOptimizeRunsEqualitySaturation(t *testing.T) {
	pool := types.NewPool()
	opts, err := NewOptions(ArchAArch64, WithOptimize(true))
	if err != nil {
		t.Fatalf("NewOptions: %v", err)
	}
	code, err := Compile(pool, buildAddFunction(), opts)
	if err != nil {
		t.Fatalf("Compile with optimization enabled: %v", err)
	}
	if len(code.Bytes) == 0 {
		t.Fatal("expected a non-empty code buffer")
	}
}
