package irtext

import (
	"strings"
	"testing"

	"github.com/joelreymont/hoist-sub004/internal/ir"
	"github.com/joelreymont/hoist-sub004/internal/types"
)

func buildAddFunction(pool *types.Pool) *ir.Function {
	f := ir.NewFunction("add", ir.Signature{Params: []types.ID{types.I32, types.I32}, Returns: []types.ID{types.I32}})
	b := ir.NewBuilder(f)
	block := b.CreateBlock()
	x := b.AppendBlockParam(block, types.I32)
	y := b.AppendBlockParam(block, types.I32)
	b.SwitchToBlock(block)
	sum := b.Binary(ir.OpIadd, types.I32, x, y)
	b.Return([]ir.Value{sum})
	return f
}

// TestRoundTripNameAndArity covers the printer/parser round-trip invariant:
// parse(print(F)).name == F.name and parameter/return counts match.
func TestRoundTripNameAndArity(t *testing.T) {
	pool := types.NewPool()
	f := buildAddFunction(pool)

	text, err := Print(f, pool)
	if err != nil {
		t.Fatalf("Print: %v", err)
	}
	got, err := Parse(pool, text)
	if err != nil {
		t.Fatalf("Parse: %v\ninput:\n%s", err, text)
	}
	if got.Name != f.Name {
		t.Fatalf("got name %q, want %q", got.Name, f.Name)
	}
	if len(got.Signature.Params) != len(f.Signature.Params) {
		t.Fatalf("got %d params, want %d", len(got.Signature.Params), len(f.Signature.Params))
	}
	if len(got.Signature.Returns) != len(f.Signature.Returns) {
		t.Fatalf("got %d returns, want %d", len(got.Signature.Returns), len(f.Signature.Returns))
	}
}

func TestPrintProducesTheDocumentedShape(t *testing.T) {
	pool := types.NewPool()
	f := buildAddFunction(pool)
	text, err := Print(f, pool)
	if err != nil {
		t.Fatalf("Print: %v", err)
	}
	if !strings.Contains(text, `function "add"(i32, i32) -> i32 {`) {
		t.Fatalf("unexpected header in:\n%s", text)
	}
	if !strings.Contains(text, "= iadd ") {
		t.Fatalf("expected an iadd line in:\n%s", text)
	}
}

func TestRoundTripMultiBlockBranching(t *testing.T) {
	pool := types.NewPool()
	f := ir.NewFunction("max", ir.Signature{Params: []types.ID{types.I32, types.I32}, Returns: []types.ID{types.I32}})
	b := ir.NewBuilder(f)

	entry := b.CreateBlock()
	thenBlk := b.CreateBlock()
	elseBlk := b.CreateBlock()
	join := b.CreateBlock()

	x := b.AppendBlockParam(entry, types.I32)
	y := b.AppendBlockParam(entry, types.I32)
	r := b.AppendBlockParam(join, types.I32)

	b.SwitchToBlock(entry)
	cond := b.Icmp(ir.IntSGT, types.I8, x, y)
	b.Brif(cond, thenBlk, nil, elseBlk, nil)

	b.SwitchToBlock(thenBlk)
	b.Jump(join, []ir.Value{x})

	b.SwitchToBlock(elseBlk)
	b.Jump(join, []ir.Value{y})

	b.SwitchToBlock(join)
	b.Return([]ir.Value{r})

	text, err := Print(f, pool)
	if err != nil {
		t.Fatalf("Print: %v", err)
	}
	got, err := Parse(pool, text)
	if err != nil {
		t.Fatalf("Parse: %v\ninput:\n%s", err, text)
	}
	if got.Name != "max" {
		t.Fatalf("got name %q", got.Name)
	}
	if got.DFG.NumBlocks() != 4 {
		t.Fatalf("got %d blocks, want 4", got.DFG.NumBlocks())
	}
	if len(got.Layout.Blocks()) != 4 {
		t.Fatalf("got %d laid-out blocks, want 4", len(got.Layout.Blocks()))
	}
}

func TestRoundTripCall(t *testing.T) {
	pool := types.NewPool()
	f := ir.NewFunction("caller", ir.Signature{Params: []types.ID{types.I32}, Returns: []types.ID{types.I32}})
	b := ir.NewBuilder(f)
	block := b.CreateBlock()
	x := b.AppendBlockParam(block, types.I32)
	b.SwitchToBlock(block)
	sig := b.F.DFG.DeclareSignature("helper", ir.Signature{Params: []types.ID{types.I32}, Returns: []types.ID{types.I32}})
	results := b.Call(sig, []ir.Value{x}, []types.ID{types.I32})
	b.Return(results)

	text, err := Print(f, pool)
	if err != nil {
		t.Fatalf("Print: %v", err)
	}
	if !strings.Contains(text, `call @helper(v1) -> (i32)`) {
		t.Fatalf("unexpected call line in:\n%s", text)
	}
	got, err := Parse(pool, text)
	if err != nil {
		t.Fatalf("Parse: %v\ninput:\n%s", err, text)
	}
	if got.Name != "caller" {
		t.Fatalf("got name %q", got.Name)
	}
}

func TestRoundTripIsplit(t *testing.T) {
	pool := types.NewPool()
	f := ir.NewFunction("splitter", ir.Signature{Params: []types.ID{types.I128}, Returns: []types.ID{types.I64, types.I64}})
	b := ir.NewBuilder(f)
	block := b.CreateBlock()
	v := b.AppendBlockParam(block, types.I128)
	b.SwitchToBlock(block)
	lo, hi := b.Isplit(types.I64, v)
	b.Return([]ir.Value{lo, hi})

	text, err := Print(f, pool)
	if err != nil {
		t.Fatalf("Print: %v", err)
	}
	got, err := Parse(pool, text)
	if err != nil {
		t.Fatalf("Parse: %v\ninput:\n%s", err, text)
	}
	if len(got.Signature.Returns) != 2 {
		t.Fatalf("got %d returns, want 2", len(got.Signature.Returns))
	}
}

func TestParseRejectsUnknownOpcode(t *testing.T) {
	pool := types.NewPool()
	src := `function "f"(i32) -> i32 {
block0(v1: i32):
  v2: i32 = frobnicate v1
  return v2
}
`
	if _, err := Parse(pool, src); err == nil {
		t.Fatalf("expected an error for an unknown opcode")
	}
}

func TestParseRejectsUnexpectedEof(t *testing.T) {
	pool := types.NewPool()
	src := `function "f"(i32) -> i32 {
block0(v1: i32):
  return v1`
	if _, err := Parse(pool, src); err == nil {
		t.Fatalf("expected an error for a truncated function")
	}
}

func TestParseRejectsUnknownType(t *testing.T) {
	pool := types.NewPool()
	src := `function "f"(i77) -> i32 {
block0(v1: i77):
  return v1
}
`
	if _, err := Parse(pool, src); err == nil {
		t.Fatalf("expected an error for an invalid type token")
	}
}
