package arm64

import (
	"testing"

	"github.com/joelreymont/hoist-sub004/internal/ir"
	"github.com/joelreymont/hoist-sub004/internal/target"
	"github.com/joelreymont/hoist-sub004/internal/types"
)

func TestArithImmValidForSmallAndShiftedConstants(t *testing.T) {
	tg := New()
	if got := tg.ArithImm(100); got != target.ArithImmValid {
		t.Fatalf("ArithImm(100) = %v, want ArithImmValid", got)
	}
	shifted := int64(0x123) << 12
	if got := tg.ArithImm(shifted); got != target.ArithImmValid {
		t.Fatalf("ArithImm(%#x) = %v, want ArithImmValid (shifted-12 form)", shifted, got)
	}
}

func TestArithImmSynthesizeMovOrLiteralPool(t *testing.T) {
	tg := New()
	// 0x123456789ABC needs more than two 16-bit chunks, so it cannot be
	// a direct/shifted immediate nor a 2-instruction MOVZ/MOVK sequence.
	got := tg.ArithImm(0x123456789ABC)
	if got != target.ArithImmSynthesizeMov && got != target.ArithImmLiteralPool {
		t.Fatalf("ArithImm(0x123456789ABC) = %v, want synthesize_mov or literal_pool", got)
	}
}

func TestIntCondCodeCoversAllTenCodes(t *testing.T) {
	tg := New()
	for cc := ir.IntEQ; cc <= ir.IntULE; cc++ {
		if tg.IntCondSwapsOperands(cc) {
			t.Fatalf("IntCondSwapsOperands(%s) = true, want false on aarch64", cc)
		}
	}
	if tg.IntCondCode(ir.IntSLT) != LT {
		t.Fatalf("IntCondCode(IntSLT) = %v, want LT", tg.IntCondCode(ir.IntSLT))
	}
	if tg.IntCondCode(ir.IntUGT) != HI {
		t.Fatalf("IntCondCode(IntUGT) = %v, want HI", tg.IntCondCode(ir.IntUGT))
	}
}

func TestFloatCondCodeUnorderedExpands(t *testing.T) {
	tg := New()
	if _, strat := tg.FloatCondCode(ir.FloatEQ); strat != target.SelectNative {
		t.Fatalf("FloatCondCode(FloatEQ) strategy = %v, want SelectNative", strat)
	}
	for cc := ir.FloatEQ; cc <= ir.FloatUGE; cc++ {
		if !cc.Unordered() {
			continue
		}
		if _, strat := tg.FloatCondCode(cc); strat != target.SelectExpand {
			t.Fatalf("FloatCondCode(%s) strategy = %v, want SelectExpand", cc, strat)
		}
	}
}

func TestLoadStoreOffsetValidScaledRange(t *testing.T) {
	tg := New()
	if got := tg.LoadStoreOffset(16, 8); got != target.OffsetValid {
		t.Fatalf("LoadStoreOffset(16, 8) = %v, want OffsetValid", got)
	}
	if got := tg.LoadStoreOffset(-8, 8); got != target.OffsetMaterializeBase {
		t.Fatalf("LoadStoreOffset(-8, 8) = %v, want OffsetMaterializeBase", got)
	}
}

func TestLoadStoreOffsetUnalignedSplits(t *testing.T) {
	tg := New()
	// 4095*8 is the largest validly-scaled base for size 8; adding 3
	// (< size) should split rather than require a materialized base.
	off := int64(4095*8) + 3
	if got := tg.LoadStoreOffset(off, 8); got != target.OffsetSplit {
		t.Fatalf("LoadStoreOffset(%d, 8) = %v, want OffsetSplit", off, got)
	}
}

func TestIndexedOffsetRange(t *testing.T) {
	tg := New()
	if !tg.IndexedOffset(-256) || !tg.IndexedOffset(255) {
		t.Fatalf("IndexedOffset should accept both range boundaries")
	}
	if tg.IndexedOffset(-257) || tg.IndexedOffset(256) {
		t.Fatalf("IndexedOffset should reject values just outside the range")
	}
}

func TestVectorElementSizeOK(t *testing.T) {
	tg := New()
	pool := types.NewPool()

	okVec := pool.Vector(types.I32, 4) // 32*4 = 128 bits, lane 32
	if !tg.VectorElementSizeOK(pool, okVec) {
		t.Fatalf("VectorElementSizeOK(i32x4) = false, want true")
	}

	badVec := pool.Vector(types.I16, 4) // 16*4 = 64 bits, not 128
	if tg.VectorElementSizeOK(pool, badVec) {
		t.Fatalf("VectorElementSizeOK(i16x4, 64-bit) = true, want false (not 128-bit)")
	}

	if !tg.VectorElementSizeOK(pool, types.I64) {
		t.Fatalf("VectorElementSizeOK(scalar i64) = false, want true (non-vector always ok)")
	}
}

func TestMovInstructionCount(t *testing.T) {
	tg := New()
	if got := tg.MovInstructionCount(0); got != 1 {
		t.Fatalf("MovInstructionCount(0) = %d, want 1", got)
	}
	if got := tg.MovInstructionCount(100); got != 1 {
		t.Fatalf("MovInstructionCount(100) = %d, want 1", got)
	}
	if got := tg.MovInstructionCount(0x123456789ABC); got != 3 {
		t.Fatalf("MovInstructionCount(0x123456789ABC) = %d, want 3 non-zero 16-bit chunks", got)
	}
}

func TestRegisterCounts(t *testing.T) {
	tg := New()
	rc := tg.RegisterCounts()
	if rc.Int != 29 || rc.Float != 32 || rc.Vector != 32 {
		t.Fatalf("RegisterCounts = %+v, unexpected", rc)
	}
}
