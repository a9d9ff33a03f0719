package riscv64

import (
	"testing"

	"github.com/joelreymont/hoist-sub004/internal/coverage"
	"github.com/joelreymont/hoist-sub004/internal/ir"
	"github.com/joelreymont/hoist-sub004/internal/isle"
	riscvtarget "github.com/joelreymont/hoist-sub004/internal/target/riscv64"
	"github.com/joelreymont/hoist-sub004/internal/types"
)

func lower(t *testing.T, f *ir.Function, pool *types.Pool) *isle.VCode {
	t.Helper()
	backend := Backend(riscvtarget.New())
	var tracker coverage.Tracker
	vcode, err := isle.LowerFunction(pool, f, backend, &tracker)
	if err != nil {
		t.Fatalf("LowerFunction: %v", err)
	}
	return vcode
}

func TestRemIsNativeNotSynthesized(t *testing.T) {
	pool := types.NewPool()
	sig := ir.Signature{CallConv: ir.SystemV, Params: []types.ID{types.I64, types.I64}, Returns: []types.ID{types.I64}}
	f := ir.NewFunction("urem", sig)
	b := ir.NewBuilder(f)
	entry := b.CreateBlock()
	x := b.AppendBlockParam(entry, types.I64)
	y := b.AppendBlockParam(entry, types.I64)
	b.SwitchToBlock(entry)
	r := b.Binary(ir.OpUrem, types.I64, x, y)
	b.Return([]ir.Value{r})

	vcode := lower(t, f, pool)
	insts := vcode.Blocks[0].Insts
	if insts[0].Op != "remu" {
		t.Fatalf("expected a single native remu, got %+v", insts)
	}
}

func TestMirroredIntCondSwapsOperandsInFusedBranch(t *testing.T) {
	pool := types.NewPool()
	sig := ir.Signature{CallConv: ir.SystemV, Params: []types.ID{types.I64, types.I64}}
	f := ir.NewFunction("sgt_branch", sig)
	b := ir.NewBuilder(f)
	entry := b.CreateBlock()
	thenB := b.CreateBlock()
	elseB := b.CreateBlock()
	x := b.AppendBlockParam(entry, types.I64)
	y := b.AppendBlockParam(entry, types.I64)
	b.SwitchToBlock(entry)
	cond := b.Icmp(ir.IntSGT, types.I64, x, y)
	b.Brif(cond, thenB, nil, elseB, nil)
	b.SwitchToBlock(thenB)
	b.Return(nil)
	b.SwitchToBlock(elseB)
	b.Return(nil)

	vcode := lower(t, f, pool)
	last := vcode.Blocks[0].Insts[len(vcode.Blocks[0].Insts)-1]
	if last.Op != "branch" {
		t.Fatalf("expected a fused branch terminator, got %s", last.Op)
	}
	// x sgt y swaps to y blt x: Uses should be (y's VReg, x's VReg),
	// the reverse of the block params' (x, y) order.
	params := vcode.Blocks[0].Params
	if last.Uses[0] != params[1] || last.Uses[1] != params[0] {
		t.Fatalf("expected swapped operands (params[1], params[0]), got %+v vs params %+v", last.Uses, params)
	}
}

func TestSelectAlwaysExpands(t *testing.T) {
	pool := types.NewPool()
	sig := ir.Signature{CallConv: ir.SystemV, Params: []types.ID{types.I64, types.I64, types.I64}, Returns: []types.ID{types.I64}}
	f := ir.NewFunction("sel", sig)
	b := ir.NewBuilder(f)
	entry := b.CreateBlock()
	c := b.AppendBlockParam(entry, types.I64)
	x := b.AppendBlockParam(entry, types.I64)
	y := b.AppendBlockParam(entry, types.I64)
	b.SwitchToBlock(entry)
	s := b.Select(types.I64, c, x, y)
	b.Return([]ir.Value{s})

	vcode := lower(t, f, pool)
	if vcode.Blocks[0].Insts[0].Op != "select_expand" {
		t.Fatalf("expected select_expand, got %s", vcode.Blocks[0].Insts[0].Op)
	}
}

func TestAddImmRule(t *testing.T) {
	pool := types.NewPool()
	sig := ir.Signature{CallConv: ir.SystemV, Params: []types.ID{types.I64}, Returns: []types.ID{types.I64}}
	f := ir.NewFunction("addi", sig)
	b := ir.NewBuilder(f)
	entry := b.CreateBlock()
	x := b.AppendBlockParam(entry, types.I64)
	b.SwitchToBlock(entry)
	c := b.Iconst(types.I64, 10)
	s := b.Binary(ir.OpIadd, types.I64, x, c)
	b.Return([]ir.Value{s})

	vcode := lower(t, f, pool)
	if vcode.Blocks[0].Insts[0].Op != "addi" || vcode.Blocks[0].Insts[0].Imm != 10 {
		t.Fatalf("expected addi 10, got %+v", vcode.Blocks[0].Insts[0])
	}
}
