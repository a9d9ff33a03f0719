package verify

import (
	"testing"

	"github.com/joelreymont/hoist-sub004/internal/ir"
	"github.com/joelreymont/hoist-sub004/internal/types"
)

func TestVerifyAcceptsWellTypedFunction(t *testing.T) {
	pool := types.NewPool()
	sig := ir.Signature{CallConv: ir.SystemV, Params: []types.ID{types.I64, types.I64}, Returns: []types.ID{types.I64}}
	f := ir.NewFunction("add", sig)
	b := ir.NewBuilder(f)

	entry := b.CreateBlock()
	x := b.AppendBlockParam(entry, types.I64)
	y := b.AppendBlockParam(entry, types.I64)
	b.SwitchToBlock(entry)
	sum := b.Binary(ir.OpIadd, types.I64, x, y)
	b.Return([]ir.Value{sum})

	if err := Verify(pool, f); err != nil {
		t.Fatalf("expected well-formed function to verify cleanly, got %v", err)
	}
}

func TestVerifyRejectsUndefinedValue(t *testing.T) {
	pool := types.NewPool()
	sig := ir.Signature{CallConv: ir.SystemV, Params: []types.ID{types.I64}, Returns: []types.ID{types.I64}}
	f := ir.NewFunction("bad", sig)
	b := ir.NewBuilder(f)

	entry := b.CreateBlock()
	b.AppendBlockParam(entry, types.I64)
	b.SwitchToBlock(entry)

	// A Value id past the arena's allocated range, i.e. truly undefined.
	ghost := ir.Value(f.DFG.NumValues() + 1000)
	b.Return([]ir.Value{ghost})

	err := Verify(pool, f)
	if err == nil {
		t.Fatal("expected an error for a return of an undefined value")
	}
	verr, ok := err.(*Error)
	if !ok {
		t.Fatalf("expected *Error, got %T", err)
	}
	if verr.Kind != UndefinedValue {
		t.Fatalf("expected undefined_value, got %s", verr.Kind)
	}
}

func TestVerifyRejectsBlockMissingTerminator(t *testing.T) {
	pool := types.NewPool()
	sig := ir.Signature{CallConv: ir.SystemV, Params: nil, Returns: nil}
	f := ir.NewFunction("untermed", sig)
	b := ir.NewBuilder(f)

	entry := b.CreateBlock()
	b.SwitchToBlock(entry)
	b.Iconst(types.I64, 0) // a non-terminator as the block's only instruction

	err := Verify(pool, f)
	if err == nil {
		t.Fatal("expected an error for a block whose last instruction is not a terminator")
	}
	verr, ok := err.(*Error)
	if !ok {
		t.Fatalf("expected *Error, got %T", err)
	}
	if verr.Kind != UnterminatedBlock {
		t.Fatalf("expected unterminated_block, got %s", verr.Kind)
	}
}

func TestVerifyRejectsArityMismatchOnJump(t *testing.T) {
	pool := types.NewPool()
	sig := ir.Signature{CallConv: ir.SystemV, Params: nil, Returns: nil}
	f := ir.NewFunction("jump_arity", sig)
	b := ir.NewBuilder(f)

	entry := b.CreateBlock()
	target := b.CreateBlock()
	b.AppendBlockParam(target, types.I64)

	b.SwitchToBlock(entry)
	b.Jump(target, nil) // target wants one arg, gets none

	b.SwitchToBlock(target)
	b.Return(nil)

	err := Verify(pool, f)
	if err == nil {
		t.Fatal("expected an error for a jump with mismatched arg count")
	}
	verr, ok := err.(*Error)
	if !ok {
		t.Fatalf("expected *Error, got %T", err)
	}
	if verr.Kind != ArityMismatch {
		t.Fatalf("expected arity_mismatch, got %s", verr.Kind)
	}
}
