package arm64

import (
	"testing"

	"github.com/joelreymont/hoist-sub004/internal/coverage"
	"github.com/joelreymont/hoist-sub004/internal/ir"
	"github.com/joelreymont/hoist-sub004/internal/isle"
	"github.com/joelreymont/hoist-sub004/internal/target"
	arm64target "github.com/joelreymont/hoist-sub004/internal/target/arm64"
	"github.com/joelreymont/hoist-sub004/internal/types"
)

func lower(t *testing.T, f *ir.Function, pool *types.Pool) *isle.VCode {
	t.Helper()
	backend := Backend(arm64target.New())
	var tracker coverage.Tracker
	vcode, err := isle.LowerFunction(pool, f, backend, &tracker)
	if err != nil {
		t.Fatalf("LowerFunction: %v", err)
	}
	return vcode
}

// TestTlsValueSequence covers the TLS local-exec sequence: a zero offset emits just
// the thread-pointer read plus a return; a small offset adds one
// `add_imm`; a large offset synthesizes a move first.
func TestTlsValueSequence(t *testing.T) {
	pool := types.NewPool()
	ptrT := pool.Pointer(types.I8)

	mk := func(offset int64) *isle.VCode {
		sig := ir.Signature{CallConv: ir.AAPCS64, Returns: []types.ID{ptrT}}
		f := ir.NewFunction("tls", sig)
		b := ir.NewBuilder(f)
		entry := b.CreateBlock()
		b.SwitchToBlock(entry)
		v := b.TlsValue(ptrT, offset)
		b.Return([]ir.Value{v})
		return lower(t, f, pool)
	}

	zero := mk(0)
	insts := zero.Blocks[0].Insts
	if insts[0].Op != "mrs_tpidr" {
		t.Fatalf("expected first inst to read the thread pointer, got %s", insts[0].Op)
	}
	if insts[len(insts)-1].Op != "ret" {
		t.Fatalf("expected last inst to be ret, got %s", insts[len(insts)-1].Op)
	}
	if len(insts) != 2 {
		t.Fatalf("zero offset should elide the add, got %d insts: %+v", len(insts), insts)
	}

	small := mk(256)
	sinsts := small.Blocks[0].Insts
	if sinsts[1].Op != "add_imm" || sinsts[1].Imm != 256 {
		t.Fatalf("expected add_imm 256, got %+v", sinsts[1])
	}

	large := mk(0x10000)
	linsts := large.Blocks[0].Insts
	if linsts[1].Op != "movz_movk_seq" {
		t.Fatalf("expected a move-wide synthesis before the add for a large offset, got %+v", linsts[1])
	}
}

// TestIcmpSgtThenBrifFuses covers an icmp immediately consumed by a brif.
func TestIcmpSgtThenBrifFuses(t *testing.T) {
	pool := types.NewPool()
	sig := ir.Signature{CallConv: ir.AAPCS64, Params: []types.ID{types.I64}}
	f := ir.NewFunction("cmp_branch", sig)
	b := ir.NewBuilder(f)
	entry := b.CreateBlock()
	thenB := b.CreateBlock()
	elseB := b.CreateBlock()
	x := b.AppendBlockParam(entry, types.I64)
	b.SwitchToBlock(entry)
	zero := b.Iconst(types.I64, 0)
	cond := b.Icmp(ir.IntSGT, types.I64, x, zero)
	b.Brif(cond, thenB, nil, elseB, nil)
	b.SwitchToBlock(thenB)
	b.Return(nil)
	b.SwitchToBlock(elseB)
	b.Return(nil)

	vcode := lower(t, f, pool)
	entryInsts := vcode.Blocks[0].Insts
	last := entryInsts[len(entryInsts)-1]
	if last.Op != "b.cond" {
		t.Fatalf("expected a fused b.cond terminator, got %s", last.Op)
	}
	if last.Cond != arm64CondFor(ir.IntSGT) {
		t.Fatalf("expected GT condition code, got %v", last.Cond)
	}
	if entryInsts[len(entryInsts)-2].Op != "cmp" {
		t.Fatalf("expected cmp immediately before b.cond, got %s", entryInsts[len(entryInsts)-2].Op)
	}
}

func arm64CondFor(cc ir.IntCC) target.CondCode {
	return arm64target.New().IntCondCode(cc)
}

func TestIconcatIsplitRoundTrip(t *testing.T) {
	pool := types.NewPool()
	sig := ir.Signature{CallConv: ir.AAPCS64, Params: []types.ID{types.I64, types.I64}, Returns: []types.ID{types.I64, types.I64}}
	f := ir.NewFunction("wide", sig)
	b := ir.NewBuilder(f)
	entry := b.CreateBlock()
	lo := b.AppendBlockParam(entry, types.I64)
	hi := b.AppendBlockParam(entry, types.I64)
	b.SwitchToBlock(entry)
	wide := b.Iconcat(types.I128, lo, hi)
	lo2, hi2 := b.Isplit(types.I64, wide)
	b.Return([]ir.Value{lo2, hi2})

	vcode := lower(t, f, pool)
	// iconcat/isplit contribute no MInsts of their own (pure VReg
	// bookkeeping); only the return should have been emitted.
	insts := vcode.Blocks[0].Insts
	if len(insts) != 1 || insts[0].Op != "ret" {
		t.Fatalf("expected only a ret MInst, got %+v", insts)
	}
	if len(insts[0].Uses) != 2 {
		t.Fatalf("expected ret to use the split lo/hi VRegs, got %+v", insts[0].Uses)
	}
}

func TestUnsignedRemSynthesizesDivThenMsub(t *testing.T) {
	pool := types.NewPool()
	sig := ir.Signature{CallConv: ir.AAPCS64, Params: []types.ID{types.I64, types.I64}, Returns: []types.ID{types.I64}}
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
	if insts[0].Op != "udiv" || insts[1].Op != "msub" {
		t.Fatalf("expected udiv then msub, got %+v", insts[:2])
	}
}

func TestLoadUsesSplitOrMaterializeForOutOfRangeOffset(t *testing.T) {
	pool := types.NewPool()
	sig := ir.Signature{CallConv: ir.AAPCS64, Params: []types.ID{pool.Pointer(types.I8)}, Returns: []types.ID{types.I64}}
	f := ir.NewFunction("load_offset", sig)
	b := ir.NewBuilder(f)
	entry := b.CreateBlock()
	addr := b.AppendBlockParam(entry, sig.Params[0])
	b.SwitchToBlock(entry)
	v := b.Load(types.I64, addr, -8, ir.MemFlags{})
	b.Return([]ir.Value{v})

	vcode := lower(t, f, pool)
	if vcode.Blocks[0].Insts[0].Op != "ldr_materialize" {
		t.Fatalf("expected ldr_materialize for a negative offset, got %s", vcode.Blocks[0].Insts[0].Op)
	}
}
