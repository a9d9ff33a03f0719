package egraph

import (
	"testing"

	"github.com/joelreymont/hoist-sub004/internal/ir"
	"github.com/joelreymont/hoist-sub004/internal/types"
)

// buildAddZeroChain constructs `x+0+0+0; return _` (scenario S6:
// repeated additive identity collapses to a bare reference to x).
func buildAddZeroChain(pool *types.Pool) *ir.Function {
	sig := ir.Signature{CallConv: ir.SystemV, Params: []types.ID{types.I64}, Returns: []types.ID{types.I64}}
	f := ir.NewFunction("add_zero_chain", sig)
	b := ir.NewBuilder(f)

	entry := b.CreateBlock()
	x := b.AppendBlockParam(entry, types.I64)
	b.SwitchToBlock(entry)

	zero := b.Iconst(types.I64, 0)
	a := b.Binary(ir.OpIadd, types.I64, x, zero)
	c := b.Binary(ir.OpIadd, types.I64, a, zero)
	d := b.Binary(ir.OpIadd, types.I64, c, zero)
	b.Return([]ir.Value{d})

	return f
}

func TestOptimizeCollapsesAddZeroChain(t *testing.T) {
	pool := types.NewPool()
	f := buildAddZeroChain(pool)

	out, err := Optimize(pool, f)
	if err != nil {
		t.Fatalf("Optimize: %v", err)
	}

	blocks := out.Layout.Blocks()
	if len(blocks) != 1 {
		t.Fatalf("expected 1 block, got %d", len(blocks))
	}
	entry := blocks[0]
	params := out.DFG.BlockParams(entry)
	if len(params) != 1 {
		t.Fatalf("expected 1 param, got %d", len(params))
	}
	x := params[0]

	insts := out.Layout.Insts(entry)
	if len(insts) != 1 {
		t.Fatalf("expected the iadd chain to fully collapse, leaving only the return, got %d insts", len(insts))
	}
	ret := out.DFG.Inst(insts[0])
	if ret.Opcode != ir.OpReturn {
		t.Fatalf("expected a single return instruction, got %s", ret.Opcode)
	}
	if len(ret.Args) != 1 || ret.Args[0] != x {
		t.Fatalf("expected return to reference the original parameter directly, got %v", ret.Args)
	}
}

func TestOptimizeIsIdempotent(t *testing.T) {
	pool := types.NewPool()
	f := buildAddZeroChain(pool)

	once, err := Optimize(pool, f)
	if err != nil {
		t.Fatalf("Optimize: %v", err)
	}
	twice, err := Optimize(pool, once)
	if err != nil {
		t.Fatalf("Optimize (second pass): %v", err)
	}

	if len(once.Layout.Blocks()) != len(twice.Layout.Blocks()) {
		t.Fatalf("block count changed across a second optimize pass")
	}
	for i, b := range once.Layout.Blocks() {
		b2 := twice.Layout.Blocks()[i]
		if len(once.Layout.Insts(b)) != len(twice.Layout.Insts(b2)) {
			t.Fatalf("instruction count changed across a second optimize pass in block %d", i)
		}
	}
}

func TestOptimizePreservesOpaqueLoadStore(t *testing.T) {
	pool := types.NewPool()
	ptrTy := pool.Pointer(types.I64)
	sig := ir.Signature{CallConv: ir.SystemV, Params: []types.ID{ptrTy}, Returns: []types.ID{types.I64}}
	f := ir.NewFunction("load_roundtrip", sig)
	b := ir.NewBuilder(f)

	entry := b.CreateBlock()
	addr := b.AppendBlockParam(entry, ptrTy)
	b.SwitchToBlock(entry)

	v := b.Load(types.I64, addr, 0, ir.MemFlags{})
	zero := b.Iconst(types.I64, 0)
	sum := b.Binary(ir.OpIadd, types.I64, v, zero)
	b.Return([]ir.Value{sum})

	out, err := Optimize(pool, f)
	if err != nil {
		t.Fatalf("Optimize: %v", err)
	}

	entryOut := out.Layout.Blocks()[0]
	insts := out.Layout.Insts(entryOut)
	if len(insts) != 2 {
		t.Fatalf("expected load + return (addzero collapsed), got %d insts", len(insts))
	}
	loadData := out.DFG.Inst(insts[0])
	if loadData.Opcode != ir.OpLoad {
		t.Fatalf("expected the load to survive opaque, got %s", loadData.Opcode)
	}
	retData := out.DFG.Inst(insts[1])
	loadResult := out.DFG.InstResults(insts[0])[0]
	if retData.Args[0] != loadResult {
		t.Fatalf("expected return to reference the load's result directly, got %v", retData.Args)
	}
}
