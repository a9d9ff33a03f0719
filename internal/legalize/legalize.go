// Package legalize implements the target-agnostic op legalizer from
// : given a target profile, it rewrites illegal ops in
// place — strength-reducing power-of-two div/rem and replacing
// operations the target has no native instruction for with libcalls.
package legalize

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/joelreymont/hoist-sub004/internal/ir"
	"github.com/joelreymont/hoist-sub004/internal/types"
)

// Profile names the target-capability flags legalization runs
// against: has integer divide, has integer remainder, float libcall
// set, and so on.
type Profile struct {
	HasIntDiv   bool
	HasIntRem   bool
	HasFloatDiv bool
	Libcalls    LibcallTable
}

// Error is the typed error this package returns: the offending
// instruction plus a human-readable message.
type Error struct {
	Inst    ir.Inst
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("legalize: inst %d: %s", e.Inst, e.Message)
}

// Legalize walks f in layout order and rewrites every illegal
// div/rem/float op it finds, honoring profile. It mutates f's DFG in
// place.
func Legalize(pool *types.Pool, f *ir.Function, profile Profile) error {
	l := &legalizer{pool: pool, f: f, profile: profile}
	for _, b := range f.Layout.Blocks() {
		for _, inst := range f.Layout.Insts(b) {
			if err := l.legalizeInst(inst); err != nil {
				return err
			}
		}
	}
	return nil
}

type legalizer struct {
	pool    *types.Pool
	f       *ir.Function
	profile Profile
}

func (l *legalizer) legalizeInst(inst ir.Inst) error {
	data := l.f.DFG.Inst(inst)
	switch data.Opcode {
	case ir.OpUdiv, ir.OpUrem:
		return l.legalizeUnsignedDivRem(inst, data)
	case ir.OpSdiv, ir.OpSrem:
		return l.legalizeSignedDivRem(inst, data)
	case ir.OpFdiv:
		return l.legalizeFloatDiv(inst, data)
	}
	return nil
}

// legalizeUnsignedDivRem strength-reduces a power-of-two constant
// divisor to a shift/mask, and otherwise falls back to a libcall when
// the profile or the type (I128, never natively divisible) demands it.
func (l *legalizer) legalizeUnsignedDivRem(inst ir.Inst, data ir.InstData) error {
	typ := data.ResultTypes[0]
	if k, ok := l.constPow2Shift(data.Args[1]); ok {
		if data.Opcode == ir.OpUdiv {
			l.f.DFG.SetInst(inst, ir.InstData{
				Opcode: ir.OpUshrImm, Args: []ir.Value{data.Args[0]}, Imm: int64(k),
				ResultTypes: data.ResultTypes,
			})
			return nil
		}
		mask := (int64(1) << uint(k)) - 1
		l.f.DFG.SetInst(inst, ir.InstData{
			Opcode: ir.OpIandImm, Args: []ir.Value{data.Args[0]}, Imm: mask,
			ResultTypes: data.ResultTypes,
		})
		return nil
	}

	needsLibcall := l.pool.Get(typ).Width >= 128
	if data.Opcode == ir.OpUdiv {
		needsLibcall = needsLibcall || !l.profile.HasIntDiv
	} else {
		needsLibcall = needsLibcall || !l.profile.HasIntRem
	}
	if !needsLibcall {
		return nil
	}
	return l.toLibcall(inst, data)
}

// legalizeSignedDivRem only strength-reduces toward a libcall when the
// type or profile demands it; the pow-2 bias-and-shift sequence for
// signed division is deliberately left to target lowering, which can
// often fuse it more cheaply with a following multiply.
func (l *legalizer) legalizeSignedDivRem(inst ir.Inst, data ir.InstData) error {
	typ := data.ResultTypes[0]
	needsLibcall := l.pool.Get(typ).Width >= 128
	if data.Opcode == ir.OpSdiv {
		needsLibcall = needsLibcall || !l.profile.HasIntDiv
	} else {
		needsLibcall = needsLibcall || !l.profile.HasIntRem
	}
	if !needsLibcall {
		return nil
	}
	return l.toLibcall(inst, data)
}

func (l *legalizer) legalizeFloatDiv(inst ir.Inst, data ir.InstData) error {
	if l.profile.HasFloatDiv {
		return nil
	}
	return l.toLibcall(inst, data)
}

// constPow2Shift reports the shift amount k such that arg is a
// constant equal to 2^k, if arg is defined by an iconst.
func (l *legalizer) constPow2Shift(arg ir.Value) (int, bool) {
	inst, _, ok := l.f.DFG.ValueDef(arg)
	if !ok {
		return 0, false
	}
	data := l.f.DFG.Inst(inst)
	if data.Opcode != ir.OpIconst || data.Imm <= 0 {
		return 0, false
	}
	v := data.Imm
	k := 0
	for v > 1 {
		if v&1 != 0 {
			return 0, false
		}
		v >>= 1
		k++
	}
	return k, true
}

func (l *legalizer) toLibcall(inst ir.Inst, data ir.InstData) error {
	typ := data.ResultTypes[0]
	entry, ok := l.profile.Libcalls[LibcallKey{Op: data.Opcode, Type: typ}]
	if !ok {
		return errors.WithStack(&Error{Inst: inst, Message: fmt.Sprintf("no libcall registered for %s over %s", data.Opcode, l.pool.Get(typ))})
	}
	if len(data.Args) != entry.ArgCount {
		return errors.WithStack(&Error{Inst: inst, Message: fmt.Sprintf("libcall %s expects %d args, instruction has %d", entry.Symbol, entry.ArgCount, len(data.Args))})
	}

	params := make([]types.ID, entry.ArgCount)
	for i := range params {
		params[i] = typ
	}
	sig := l.f.DFG.DeclareSignature(entry.Symbol, ir.Signature{
		CallConv: ir.SystemV,
		Params:   params,
		Returns:  []types.ID{entry.ReturnType},
	})

	l.f.DFG.SetInst(inst, ir.InstData{
		Opcode:      ir.OpCall,
		Sig:         sig,
		Args:        data.Args,
		ResultTypes: data.ResultTypes,
	})
	return nil
}
