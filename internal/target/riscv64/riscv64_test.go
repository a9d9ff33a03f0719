package riscv64

import (
	"testing"

	"github.com/joelreymont/hoist-sub004/internal/ir"
	"github.com/joelreymont/hoist-sub004/internal/target"
	"github.com/joelreymont/hoist-sub004/internal/types"
)

func TestArithImmValidWithinSignedTwelveBits(t *testing.T) {
	tg := New()
	if got := tg.ArithImm(2047); got != target.ArithImmValid {
		t.Fatalf("ArithImm(2047) = %v, want ArithImmValid", got)
	}
	if got := tg.ArithImm(-2048); got != target.ArithImmValid {
		t.Fatalf("ArithImm(-2048) = %v, want ArithImmValid", got)
	}
	if got := tg.ArithImm(2048); got == target.ArithImmValid {
		t.Fatalf("ArithImm(2048) = %v, want something other than ArithImmValid", got)
	}
}

func TestIntCondSwapsOperandsForMirroredConditions(t *testing.T) {
	tg := New()
	swapped := []ir.IntCC{ir.IntSGT, ir.IntSLE, ir.IntUGT, ir.IntULE}
	for _, cc := range swapped {
		if !tg.IntCondSwapsOperands(cc) {
			t.Fatalf("IntCondSwapsOperands(%s) = false, want true", cc)
		}
	}
	native := []ir.IntCC{ir.IntEQ, ir.IntNE, ir.IntSLT, ir.IntSGE, ir.IntULT, ir.IntUGE}
	for _, cc := range native {
		if tg.IntCondSwapsOperands(cc) {
			t.Fatalf("IntCondSwapsOperands(%s) = true, want false", cc)
		}
	}
}

func TestIntCondCodeMapsToBranchFunct3(t *testing.T) {
	tg := New()
	if tg.IntCondCode(ir.IntEQ) != BEQ {
		t.Fatalf("IntCondCode(IntEQ) != BEQ")
	}
	if tg.IntCondCode(ir.IntSLT) != BLT {
		t.Fatalf("IntCondCode(IntSLT) != BLT")
	}
	if tg.IntCondCode(ir.IntSGT) != BLT {
		t.Fatalf("IntCondCode(IntSGT) != BLT (mirrored onto BLT after operand swap)")
	}
}

func TestFloatCondCodeNeExpandsButEqIsNative(t *testing.T) {
	tg := New()
	if _, strat := tg.FloatCondCode(ir.FloatEQ); strat != target.SelectNative {
		t.Fatalf("FloatCondCode(FloatEQ) strategy = %v, want SelectNative", strat)
	}
	if _, strat := tg.FloatCondCode(ir.FloatNE); strat != target.SelectExpand {
		t.Fatalf("FloatCondCode(FloatNE) strategy = %v, want SelectExpand", strat)
	}
	if _, strat := tg.FloatCondCode(ir.FloatUnordered); strat != target.SelectExpand {
		t.Fatalf("FloatCondCode(FloatUnordered) strategy = %v, want SelectExpand", strat)
	}
}

func TestLoadStoreOffsetRangeAndSplit(t *testing.T) {
	tg := New()
	if got := tg.LoadStoreOffset(2047, 8); got != target.OffsetValid {
		t.Fatalf("LoadStoreOffset(2047, 8) = %v, want OffsetValid", got)
	}
	if got := tg.LoadStoreOffset(-2048, 4); got != target.OffsetValid {
		t.Fatalf("LoadStoreOffset(-2048, 4) = %v, want OffsetValid", got)
	}
	if got := tg.LoadStoreOffset(2050, 8); got != target.OffsetSplit && got != target.OffsetMaterializeBase {
		t.Fatalf("LoadStoreOffset(2050, 8) = %v, want a split or materialize decision", got)
	}
}

func TestIndexedOffsetAlwaysFalse(t *testing.T) {
	tg := New()
	if tg.IndexedOffset(0) || tg.IndexedOffset(8) {
		t.Fatalf("IndexedOffset should always report false: RV64I has no indexed addressing mode")
	}
}

func TestCondSelectStrategyAlwaysExpands(t *testing.T) {
	tg := New()
	if strat := tg.CondSelectStrategy(false, false); strat != target.SelectExpand {
		t.Fatalf("CondSelectStrategy(int) = %v, want SelectExpand", strat)
	}
	if strat := tg.CondSelectStrategy(true, true); strat != target.SelectExpand {
		t.Fatalf("CondSelectStrategy(float, unordered) = %v, want SelectExpand", strat)
	}
}

func TestVectorElementSizeOKRejectsAllVectors(t *testing.T) {
	tg := New()
	pool := types.NewPool()
	vec := pool.Vector(types.I32, 4)
	if tg.VectorElementSizeOK(pool, vec) {
		t.Fatalf("VectorElementSizeOK(vector) = true, want false: no V extension assumed")
	}
	if !tg.VectorElementSizeOK(pool, types.I64) {
		t.Fatalf("VectorElementSizeOK(scalar i64) = false, want true")
	}
}

func TestRegisterCounts(t *testing.T) {
	tg := New()
	rc := tg.RegisterCounts()
	if rc.Int != 26 || rc.Float != 32 || rc.Vector != 0 {
		t.Fatalf("RegisterCounts = %+v, unexpected", rc)
	}
}
