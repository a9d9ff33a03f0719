package isle

import (
	"testing"

	"github.com/joelreymont/hoist-sub004/internal/coverage"
	"github.com/joelreymont/hoist-sub004/internal/ir"
	"github.com/joelreymont/hoist-sub004/internal/target"
	"github.com/joelreymont/hoist-sub004/internal/types"
)

type fakeTarget struct{ target.Target }

func (fakeTarget) ArithImm(v int64) target.ArithImmDecision {
	if v >= 0 && v <= 4095 {
		return target.ArithImmValid
	}
	return target.ArithImmLiteralPool
}

func buildAddFunction(pool *types.Pool) (*ir.Function, ir.Value, ir.Value) {
	sig := ir.Signature{CallConv: ir.SystemV, Params: []types.ID{types.I64}, Returns: []types.ID{types.I64}}
	f := ir.NewFunction("add_imm", sig)
	b := ir.NewBuilder(f)
	entry := b.CreateBlock()
	x := b.AppendBlockParam(entry, types.I64)
	b.SwitchToBlock(entry)
	five := b.Iconst(types.I64, 5)
	sum := b.Binary(ir.OpIadd, types.I64, x, five)
	b.Return([]ir.Value{sum})
	return f, x, sum
}

func addBackend() *Backend {
	rules := RuleTable{
		ir.OpIadd: {
			BinaryImmRule(ir.OpIadd, "add_imm", ClassInt, 1, 10),
			BinaryRegRule(ir.OpIadd, "add", ClassInt, 2, 0),
		},
	}
	return &Backend{
		Target: fakeTarget{},
		Rules:  rules,
		LowerBranch: func(ctx *LowerCtx, inst ir.Inst, data ir.InstData) error {
			ctx.Emit(MInst{Op: "ret"})
			return nil
		},
	}
}

func TestLowerFunctionPicksHigherPriorityRule(t *testing.T) {
	pool := types.NewPool()
	f, _, sum := buildAddFunction(pool)
	backend := addBackend()

	var tracker coverage.Tracker
	vcode, err := LowerFunction(pool, f, backend, &tracker)
	if err != nil {
		t.Fatalf("LowerFunction: %v", err)
	}

	if len(vcode.Blocks) != 1 {
		t.Fatalf("expected 1 VCode block, got %d", len(vcode.Blocks))
	}
	insts := vcode.Blocks[0].Insts
	if len(insts) != 2 {
		t.Fatalf("expected 2 MInsts (add_imm, ret), got %d", len(insts))
	}
	if insts[0].Op != "add_imm" {
		t.Fatalf("expected add_imm to win over add (higher priority), got %s", insts[0].Op)
	}
	if insts[0].Imm != 5 {
		t.Fatalf("expected immediate 5, got %d", insts[0].Imm)
	}
	if hits := tracker.Hit(1); hits != 1 {
		t.Fatalf("expected rule 1 to be recorded once, got %d", hits)
	}
	if len(insts[0].Defs) != 1 {
		t.Fatalf("expected add_imm to define one VReg, got %d", len(insts[0].Defs))
	}
	if _, _, ok := f.DFG.ValueDef(sum); !ok {
		t.Fatalf("sum should be an instruction result, not a block param")
	}
}

func TestLowerFunctionFallsBackToRegRegWhenNotImmediate(t *testing.T) {
	pool := types.NewPool()
	sig := ir.Signature{CallConv: ir.SystemV, Params: []types.ID{types.I64, types.I64}, Returns: []types.ID{types.I64}}
	f := ir.NewFunction("add_reg", sig)
	b := ir.NewBuilder(f)
	entry := b.CreateBlock()
	x := b.AppendBlockParam(entry, types.I64)
	y := b.AppendBlockParam(entry, types.I64)
	b.SwitchToBlock(entry)
	sum := b.Binary(ir.OpIadd, types.I64, x, y)
	b.Return([]ir.Value{sum})

	backend := addBackend()
	vcode, err := LowerFunction(pool, f, backend, nil)
	if err != nil {
		t.Fatalf("LowerFunction: %v", err)
	}
	insts := vcode.Blocks[0].Insts
	if insts[0].Op != "add" {
		t.Fatalf("expected reg-reg add fallback, got %s", insts[0].Op)
	}
}

func TestLowerFunctionReportsNoMatchingRule(t *testing.T) {
	pool := types.NewPool()
	sig := ir.Signature{CallConv: ir.SystemV, Params: []types.ID{types.I64, types.I64}, Returns: []types.ID{types.I64}}
	f := ir.NewFunction("sub", sig)
	b := ir.NewBuilder(f)
	entry := b.CreateBlock()
	x := b.AppendBlockParam(entry, types.I64)
	y := b.AppendBlockParam(entry, types.I64)
	b.SwitchToBlock(entry)
	d := b.Binary(ir.OpIsub, types.I64, x, y) // no rule registered for isub
	b.Return([]ir.Value{d})

	backend := addBackend()
	_, err := LowerFunction(pool, f, backend, nil)
	if err == nil {
		t.Fatalf("expected no_matching_rule error")
	}
	isleErr, ok := err.(*Error)
	if !ok || isleErr.Kind != "no_matching_rule" {
		t.Fatalf("expected *Error{Kind: no_matching_rule}, got %v", err)
	}
}
