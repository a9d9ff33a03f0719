// Package arm64 is the AArch64 ISLE-style rule table:
// one Backend covering every required rule family over the
// target.Target from internal/target/arm64.
package arm64

import (
	"fmt"

	"github.com/joelreymont/hoist-sub004/internal/ir"
	"github.com/joelreymont/hoist-sub004/internal/isle"
	"github.com/joelreymont/hoist-sub004/internal/target"
)

// binSpec names one integer binary opcode's reg-reg mnemonic and,
// where AArch64 has an immediate form, its reg-imm mnemonic (empty if
// none — e.g. MUL/SDIV/UDIV have no immediate form).
type binSpec struct {
	op          ir.Opcode
	reg, imm    string
	allowImmArg bool
}

var intBinSpecs = []binSpec{
	{ir.OpIadd, "add", "add_imm", true},
	{ir.OpIsub, "sub", "sub_imm", true},
	{ir.OpIand, "and", "and_imm", true},
	{ir.OpIor, "orr", "orr_imm", true},
	{ir.OpIxor, "eor", "eor_imm", true},
	{ir.OpIshl, "lsl", "lsl_imm", true},
	{ir.OpUshr, "lsr", "lsr_imm", true},
	{ir.OpSshr, "asr", "asr_imm", true},
	{ir.OpImul, "mul", "", false},
	{ir.OpSdiv, "sdiv", "", false},
	{ir.OpUdiv, "udiv", "", false},
}

var floatBinSpecs = []binSpec{
	{ir.OpFadd, "fadd", "", false},
	{ir.OpFsub, "fsub", "", false},
	{ir.OpFmul, "fmul", "", false},
	{ir.OpFdiv, "fdiv", "", false},
}

// conversionSpecs pairs each unary conversion opcode with its AArch64
// mnemonic and the register class of its *result*.
var conversionSpecs = []struct {
	op    ir.Opcode
	mnem  string
	class isle.RegClass
}{
	{ir.OpSextend, "sxt", isle.ClassInt},
	{ir.OpUextend, "uxt", isle.ClassInt},
	{ir.OpIreduce, "mov_trunc", isle.ClassInt},
	{ir.OpFpromote, "fcvt_widen", isle.ClassFloat},
	{ir.OpFdemote, "fcvt_narrow", isle.ClassFloat},
	{ir.OpFcvtToSint, "fcvtzs", isle.ClassInt},
	{ir.OpFcvtToUint, "fcvtzu", isle.ClassInt},
	{ir.OpFcvtFromSint, "scvtf", isle.ClassFloat},
	{ir.OpFcvtFromUint, "ucvtf", isle.ClassFloat},
	{ir.OpBmask, "cmp_mask", isle.ClassInt},
	{ir.OpFneg, "fneg", isle.ClassFloat},
	{ir.OpFabs, "fabs", isle.ClassFloat},
}

// Backend returns the AArch64 lowering backend, grounded on tg's
// decision predicates for immediate legality and condition-code maps.
func Backend(tg target.Target) *isle.Backend {
	rules := isle.RuleTable{}
	id := 1

	for _, s := range intBinSpecs {
		if s.allowImmArg {
			rules[s.op] = append(rules[s.op], isle.BinaryImmRule(s.op, s.imm, isle.ClassInt, id, 10))
			id++
		}
		rules[s.op] = append(rules[s.op], isle.BinaryRegRule(s.op, s.reg, isle.ClassInt, id, 0))
		id++
	}
	for _, s := range floatBinSpecs {
		rules[s.op] = append(rules[s.op], isle.BinaryRegRule(s.op, s.reg, isle.ClassFloat, id, 0))
		id++
	}
	for _, s := range conversionSpecs {
		rules[s.op] = append(rules[s.op], isle.UnaryRule(s.op, s.mnem, s.class, id, 0))
		id++
	}

	rules[ir.OpSrem] = []isle.Rule{remRule(ir.OpSrem, "sdiv", id)}
	id++
	rules[ir.OpUrem] = []isle.Rule{remRule(ir.OpUrem, "udiv", id)}
	id++

	rules[ir.OpBitcast] = []isle.Rule{bitcastRule(id)}
	id++

	rules[ir.OpIcmp] = []isle.Rule{icmpRule(id)}
	id++
	rules[ir.OpFcmp] = []isle.Rule{fcmpRule(id)}
	id++
	rules[ir.OpSelect] = []isle.Rule{selectRule(id)}
	id++

	rules[ir.OpLoad] = []isle.Rule{loadRule(id)}
	id++
	rules[ir.OpStore] = []isle.Rule{storeRule(id)}
	id++
	rules[ir.OpStackAlloc] = []isle.Rule{stackAllocRule(id)}
	id++

	rules[ir.OpCall] = []isle.Rule{callRule(id)}
	id++

	rules[ir.OpIconcat] = []isle.Rule{iconcatRule(id)}
	id++
	rules[ir.OpIsplit] = []isle.Rule{isplitRule(id)}
	id++

	rules[ir.OpTlsValue] = []isle.Rule{tlsValueRule(id)}
	id++

	return &isle.Backend{
		Target:      tg,
		Rules:       rules,
		LowerBranch: lowerBranch,
	}
}

// remRule synthesizes remainder as `r = x - (x divop y) * y`, the
// MSUB sequence AArch64 uses in place of a native remainder
// instruction (documented in internal/target/arm64's Profile comment).
func remRule(op ir.Opcode, divMnem string, id int) isle.Rule {
	return isle.Rule{
		ID:       id,
		Priority: 0,
		Try: func(ctx *isle.LowerCtx, inst ir.Inst, data ir.InstData, results []ir.Value) (bool, error) {
			x, err := ctx.Use(data.Args[0])
			if err != nil {
				return false, err
			}
			y, err := ctx.Use(data.Args[1])
			if err != nil {
				return false, err
			}
			q := ctx.AllocVReg(isle.ClassInt)
			ctx.Emit(isle.MInst{Op: divMnem, Defs: []isle.VReg{q}, Uses: []isle.VReg{x, y}})
			def := ctx.DefineSingle(results[0], isle.ClassInt)
			// MSUB Rd,Rn,Rm,Ra computes Rd = Ra - Rn*Rm; Uses is
			// (Rn=q, Rm=y, Ra=x) so Rd = x - q*y.
			ctx.Emit(isle.MInst{Op: "msub", Defs: []isle.VReg{def}, Uses: []isle.VReg{q, y, x}})
			return true, nil
		},
	}
}

func bitcastRule(id int) isle.Rule {
	return isle.Rule{
		ID: id,
		Try: func(ctx *isle.LowerCtx, inst ir.Inst, data ir.InstData, results []ir.Value) (bool, error) {
			x, err := ctx.Use(data.Args[0])
			if err != nil {
				return false, err
			}
			class := isle.RegClassOf(ctx.Pool, ctx.TypeOf(results[0]))
			def := ctx.DefineSingle(results[0], class)
			ctx.Emit(isle.MInst{Op: "bitcast", Defs: []isle.VReg{def}, Uses: []isle.VReg{x}})
			return true, nil
		},
	}
}

// icmpRule lowers every icmp to `cmp` plus a `cset` materializing the
// boolean into a register, including an icmp whose result feeds a
// brif; the brif lowering then emits its own compare and branch.
func icmpRule(id int) isle.Rule {
	return isle.Rule{
		ID: id,
		Try: func(ctx *isle.LowerCtx, inst ir.Inst, data ir.InstData, results []ir.Value) (bool, error) {
			x, err := ctx.Use(data.Args[0])
			if err != nil {
				return false, err
			}
			y, err := ctx.Use(data.Args[1])
			if err != nil {
				return false, err
			}
			cc := ctx.Target().IntCondCode(data.IntCond)
			ctx.Emit(isle.MInst{Op: "cmp", Uses: []isle.VReg{x, y}})
			def := ctx.DefineSingle(results[0], isle.ClassInt)
			ctx.Emit(isle.MInst{Op: "cset", Defs: []isle.VReg{def}, Cond: cc})
			return true, nil
		},
	}
}

func fcmpRule(id int) isle.Rule {
	return isle.Rule{
		ID: id,
		Try: func(ctx *isle.LowerCtx, inst ir.Inst, data ir.InstData, results []ir.Value) (bool, error) {
			x, err := ctx.Use(data.Args[0])
			if err != nil {
				return false, err
			}
			y, err := ctx.Use(data.Args[1])
			if err != nil {
				return false, err
			}
			cc, strategy := ctx.Target().FloatCondCode(data.FloatCond)
			ctx.Emit(isle.MInst{Op: "fcmp", Uses: []isle.VReg{x, y}})
			def := ctx.DefineSingle(results[0], isle.ClassInt)
			op := "cset"
			if strategy == target.SelectExpand {
				op = "cset_expand"
			}
			ctx.Emit(isle.MInst{Op: op, Defs: []isle.VReg{def}, Cond: cc, IsFloatCond: true})
			return true, nil
		},
	}
}

// selectRule asks CondSelectStrategy with unordered=false for both
// integer and float results, so it emits a native `csel`; the
// condition is an already-materialized register and its float
// condition code is not inspected here.
func selectRule(id int) isle.Rule {
	return isle.Rule{
		ID: id,
		Try: func(ctx *isle.LowerCtx, inst ir.Inst, data ir.InstData, results []ir.Value) (bool, error) {
			cond, err := ctx.Use(data.Args[0])
			if err != nil {
				return false, err
			}
			ifTrue, err := ctx.Use(data.Args[1])
			if err != nil {
				return false, err
			}
			ifFalse, err := ctx.Use(data.Args[2])
			if err != nil {
				return false, err
			}
			class := isle.RegClassOf(ctx.Pool, ctx.TypeOf(results[0]))
			isFloat := class == isle.ClassFloat
			strategy := ctx.Target().CondSelectStrategy(isFloat, false)
			def := ctx.DefineSingle(results[0], class)
			op := "csel"
			if strategy == target.SelectExpand {
				op = "csel_expand"
			}
			ctx.Emit(isle.MInst{Op: op, Defs: []isle.VReg{def}, Uses: []isle.VReg{cond, ifTrue, ifFalse}})
			return true, nil
		},
	}
}

func loadRule(id int) isle.Rule {
	return isle.Rule{
		ID: id,
		Try: func(ctx *isle.LowerCtx, inst ir.Inst, data ir.InstData, results []ir.Value) (bool, error) {
			addr, err := ctx.Use(data.Args[0])
			if err != nil {
				return false, err
			}
			size := ctx.Pool.Get(ctx.TypeOf(results[0])).Bytes()
			class := isle.RegClassOf(ctx.Pool, ctx.TypeOf(results[0]))
			def := ctx.DefineSingle(results[0], class)
			op := "ldr"
			switch ctx.Target().LoadStoreOffset(int64(data.Offset), size) {
			case target.OffsetSplit:
				op = "ldr_split"
			case target.OffsetMaterializeBase:
				op = "ldr_materialize"
			}
			ctx.Emit(isle.MInst{Op: op, Defs: []isle.VReg{def}, Uses: []isle.VReg{addr}, Imm: int64(data.Offset)})
			return true, nil
		},
	}
}

func storeRule(id int) isle.Rule {
	return isle.Rule{
		ID: id,
		Try: func(ctx *isle.LowerCtx, inst ir.Inst, data ir.InstData, results []ir.Value) (bool, error) {
			addr, err := ctx.Use(data.Args[0])
			if err != nil {
				return false, err
			}
			val, err := ctx.Use(data.Args[1])
			if err != nil {
				return false, err
			}
			size := ctx.Pool.Get(ctx.TypeOf(data.Args[1])).Bytes()
			op := "str"
			switch ctx.Target().LoadStoreOffset(int64(data.Offset), size) {
			case target.OffsetSplit:
				op = "str_split"
			case target.OffsetMaterializeBase:
				op = "str_materialize"
			}
			ctx.Emit(isle.MInst{Op: op, Uses: []isle.VReg{addr, val}, Imm: int64(data.Offset)})
			return true, nil
		},
	}
}

func stackAllocRule(id int) isle.Rule {
	return isle.Rule{
		ID: id,
		Try: func(ctx *isle.LowerCtx, inst ir.Inst, data ir.InstData, results []ir.Value) (bool, error) {
			def := ctx.DefineSingle(results[0], isle.ClassInt)
			ctx.Emit(isle.MInst{Op: "add_fp_offset", Defs: []isle.VReg{def}, Imm: int64(data.Size)})
			return true, nil
		},
	}
}

// callRule:  "Calls/returns: call, return, including HFA
// handling" — argument/result register marshaling per calling
// convention is internal/abi's job; this rule emits the call itself
// plus moves binding each result to the VReg the context expects,
// leaving internal/abi to decide which physical registers those
// VRegs are later assigned to.
func callRule(id int) isle.Rule {
	return isle.Rule{
		ID: id,
		Try: func(ctx *isle.LowerCtx, inst ir.Inst, data ir.InstData, results []ir.Value) (bool, error) {
			uses := make([]isle.VReg, len(data.Args))
			for i, a := range data.Args {
				v, err := ctx.Use(a)
				if err != nil {
					return false, err
				}
				uses[i] = v
			}
			defs := make([]isle.VReg, len(results))
			for i, r := range results {
				class := isle.RegClassOf(ctx.Pool, ctx.TypeOf(r))
				defs[i] = ctx.DefineSingle(r, class)
			}
			sig := ctx.F.DFG.Signature(data.Sig)
			ctx.Emit(isle.MInst{Op: "bl", CallSymbol: sig.Name, Uses: uses, Defs: defs})
			return true, nil
		},
	}
}

func iconcatRule(id int) isle.Rule {
	return isle.Rule{
		ID: id,
		Try: func(ctx *isle.LowerCtx, inst ir.Inst, data ir.InstData, results []ir.Value) (bool, error) {
			lo, err := ctx.Use(data.Args[0])
			if err != nil {
				return false, err
			}
			hi, err := ctx.Use(data.Args[1])
			if err != nil {
				return false, err
			}
			ctx.DefineResult(results[0], isle.ValueRegs{lo, hi})
			return true, nil
		},
	}
}

func isplitRule(id int) isle.Rule {
	return isle.Rule{
		ID: id,
		Try: func(ctx *isle.LowerCtx, inst ir.Inst, data ir.InstData, results []ir.Value) (bool, error) {
			regs, ok := ctx.ValueRegs(data.Args[0])
			if !ok || len(regs) != 2 {
				return false, &isle.Error{Kind: "illegal_immediate", Inst: inst, Opcode: data.Opcode, Message: "isplit operand is not a two-register I128 value"}
			}
			ctx.DefineResult(results[0], isle.ValueRegs{regs[0]})
			ctx.DefineResult(results[1], isle.ValueRegs{regs[1]})
			return true, nil
		},
	}
}

// tlsValueRule: TLS local-exec sequence (first instruction reads the
// thread pointer; zero offset elides the ADD; large offsets
// synthesize a move first).
func tlsValueRule(id int) isle.Rule {
	return isle.Rule{
		ID: id,
		Try: func(ctx *isle.LowerCtx, inst ir.Inst, data ir.InstData, results []ir.Value) (bool, error) {
			def := ctx.DefineSingle(results[0], isle.ClassInt)
			ctx.Emit(isle.MInst{Op: "mrs_tpidr", Defs: []isle.VReg{def}})
			if data.Imm == 0 {
				return true, nil
			}
			if data.Imm > 0 && data.Imm <= 0xFFF {
				ctx.Emit(isle.MInst{Op: "add_imm", Defs: []isle.VReg{def}, Uses: []isle.VReg{def}, Imm: data.Imm})
			} else {
				tmp := ctx.AllocVReg(isle.ClassInt)
				ctx.Emit(isle.MInst{Op: "movz_movk_seq", Defs: []isle.VReg{tmp}, Imm: data.Imm})
				ctx.Emit(isle.MInst{Op: "add", Defs: []isle.VReg{def}, Uses: []isle.VReg{def, tmp}})
			}
			return true, nil
		},
	}
}

func lowerBranch(ctx *isle.LowerCtx, inst ir.Inst, data ir.InstData) error {
	switch data.Opcode {
	case ir.OpJump:
		if err := ctx.MoveArgsTo(data.Then, data.ThenArgs); err != nil {
			return err
		}
		ctx.Emit(isle.MInst{Op: "b", TargetBlocks: []int{ctx.BlockIndex(data.Then)}})
		return nil

	case ir.OpBrif:
		cond := data.Args[0]
		if condInst, _, ok := ctx.F.DFG.ValueDef(cond); ok {
			cdata := ctx.F.DFG.Inst(condInst)
			if cdata.Opcode == ir.OpIcmp {
				return emitFusedIntBranch(ctx, cdata, data)
			}
			if cdata.Opcode == ir.OpFcmp {
				return emitFusedFloatBranch(ctx, cdata, data)
			}
		}
		x, err := ctx.Use(cond)
		if err != nil {
			return err
		}
		if err := ctx.MoveArgsTo(data.Then, data.ThenArgs); err != nil {
			return err
		}
		if err := ctx.MoveArgsTo(data.Else, data.ElseArgs); err != nil {
			return err
		}
		ctx.Emit(isle.MInst{Op: "cbnz", Uses: []isle.VReg{x}, TargetBlocks: []int{ctx.BlockIndex(data.Then), ctx.BlockIndex(data.Else)}})
		return nil

	case ir.OpReturn:
		uses := make([]isle.VReg, 0, len(data.Args))
		for _, a := range data.Args {
			v, err := ctx.Use(a)
			if err != nil {
				return err
			}
			uses = append(uses, v)
		}
		ctx.Emit(isle.MInst{Op: "ret", Uses: uses})
		return nil

	default:
		return fmt.Errorf("arm64: lowerBranch: unexpected non-terminator opcode %s", data.Opcode)
	}
}

func emitFusedIntBranch(ctx *isle.LowerCtx, cdata, brdata ir.InstData) error {
	x, err := ctx.Use(cdata.Args[0])
	if err != nil {
		return err
	}
	y, err := ctx.Use(cdata.Args[1])
	if err != nil {
		return err
	}
	cc := ctx.Target().IntCondCode(cdata.IntCond)
	ctx.Emit(isle.MInst{Op: "cmp", Uses: []isle.VReg{x, y}})
	if err := ctx.MoveArgsTo(brdata.Then, brdata.ThenArgs); err != nil {
		return err
	}
	if err := ctx.MoveArgsTo(brdata.Else, brdata.ElseArgs); err != nil {
		return err
	}
	ctx.Emit(isle.MInst{Op: "b.cond", Cond: cc, TargetBlocks: []int{ctx.BlockIndex(brdata.Then), ctx.BlockIndex(brdata.Else)}})
	return nil
}

func emitFusedFloatBranch(ctx *isle.LowerCtx, cdata, brdata ir.InstData) error {
	x, err := ctx.Use(cdata.Args[0])
	if err != nil {
		return err
	}
	y, err := ctx.Use(cdata.Args[1])
	if err != nil {
		return err
	}
	cc, _ := ctx.Target().FloatCondCode(cdata.FloatCond)
	ctx.Emit(isle.MInst{Op: "fcmp", Uses: []isle.VReg{x, y}})
	if err := ctx.MoveArgsTo(brdata.Then, brdata.ThenArgs); err != nil {
		return err
	}
	if err := ctx.MoveArgsTo(brdata.Else, brdata.ElseArgs); err != nil {
		return err
	}
	ctx.Emit(isle.MInst{Op: "b.cond", Cond: cc, IsFloatCond: true, TargetBlocks: []int{ctx.BlockIndex(brdata.Then), ctx.BlockIndex(brdata.Else)}})
	return nil
}
