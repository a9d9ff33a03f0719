// Package riscv64 is the RISC-V64 ISLE-style rule table, mirroring
// internal/isle/arm64's structure over internal/target/riscv64's
// decision predicates.
package riscv64

import (
	"fmt"

	"github.com/joelreymont/hoist-sub004/internal/ir"
	"github.com/joelreymont/hoist-sub004/internal/isle"
	"github.com/joelreymont/hoist-sub004/internal/target"
)

type binSpec struct {
	op          ir.Opcode
	reg, imm    string
	allowImmArg bool
}

// RV64I/M has an immediate (I-type) form for most integer ops (ADDI,
// ANDI, ORI, XORI, the shift-immediates) but not for MUL/DIV/DIVU,
// which the M extension only provides in register form.
var intBinSpecs = []binSpec{
	{ir.OpIadd, "add", "addi", true},
	{ir.OpIsub, "sub", "", false}, // no subi: negate-and-addi is a lowering choice left to a future rule
	{ir.OpIand, "and", "andi", true},
	{ir.OpIor, "or", "ori", true},
	{ir.OpIxor, "xor", "xori", true},
	{ir.OpIshl, "sll", "slli", true},
	{ir.OpUshr, "srl", "srli", true},
	{ir.OpSshr, "sra", "srai", true},
	{ir.OpImul, "mul", "", false},
	{ir.OpSdiv, "div", "", false},
	{ir.OpUdiv, "divu", "", false},
	{ir.OpSrem, "rem", "", false},
	{ir.OpUrem, "remu", "", false},
}

var floatBinSpecs = []binSpec{
	{ir.OpFadd, "fadd.d", "", false},
	{ir.OpFsub, "fsub.d", "", false},
	{ir.OpFmul, "fmul.d", "", false},
	{ir.OpFdiv, "fdiv.d", "", false},
}

var conversionSpecs = []struct {
	op    ir.Opcode
	mnem  string
	class isle.RegClass
}{
	{ir.OpSextend, "sext", isle.ClassInt},
	{ir.OpUextend, "zext", isle.ClassInt},
	{ir.OpIreduce, "mov_trunc", isle.ClassInt},
	{ir.OpFpromote, "fcvt.d.s", isle.ClassFloat},
	{ir.OpFdemote, "fcvt.s.d", isle.ClassFloat},
	{ir.OpFcvtToSint, "fcvt.l.d", isle.ClassInt},
	{ir.OpFcvtToUint, "fcvt.lu.d", isle.ClassInt},
	{ir.OpFcvtFromSint, "fcvt.d.l", isle.ClassFloat},
	{ir.OpFcvtFromUint, "fcvt.d.lu", isle.ClassFloat},
	{ir.OpBmask, "cmp_mask", isle.ClassInt},
	{ir.OpFneg, "fneg.d", isle.ClassFloat},
	{ir.OpFabs, "fabs.d", isle.ClassFloat},
}

// Backend returns the RISC-V64 lowering backend, grounded on RV64I/M/D
// unlike AArch64: rem is a native instruction (RV64M's REM/REMU), not
// a synthesized div+msub sequence, so internal/isle/arm64's remRule
// has no counterpart here.
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

	return &isle.Backend{Target: tg, Rules: rules, LowerBranch: lowerBranch}
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

// icmpRule emits a standalone boolean materialization via SLT/SLTU
// (or their mirrored form) rather than a branch; RV64 has no flags
// register, so every comparison — fused with a branch or not — goes
// through one of these compare instructions.
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
			if ctx.Target().IntCondSwapsOperands(data.IntCond) {
				x, y = y, x
			}
			def := ctx.DefineSingle(results[0], isle.ClassInt)
			ctx.Emit(isle.MInst{Op: "slt", Defs: []isle.VReg{def}, Uses: []isle.VReg{x, y}, Cond: ctx.Target().IntCondCode(data.IntCond)})
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
			def := ctx.DefineSingle(results[0], isle.ClassInt)
			op := "fcompare"
			if strategy == target.SelectExpand {
				op = "fcompare_expand"
			}
			ctx.Emit(isle.MInst{Op: op, Defs: []isle.VReg{def}, Uses: []isle.VReg{x, y}, Cond: cc, IsFloatCond: true})
			return true, nil
		},
	}
}

// selectRule: base RV64I has no conditional-move instruction, so
// every select always expands into a branch (CondSelectStrategy
// always returns SelectExpand on this target).
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
			def := ctx.DefineSingle(results[0], class)
			ctx.Emit(isle.MInst{Op: "select_expand", Defs: []isle.VReg{def}, Uses: []isle.VReg{cond, ifTrue, ifFalse}})
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
			op := "ld"
			switch ctx.Target().LoadStoreOffset(int64(data.Offset), size) {
			case target.OffsetSplit:
				op = "ld_split"
			case target.OffsetMaterializeBase:
				op = "ld_materialize"
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
			op := "sd"
			switch ctx.Target().LoadStoreOffset(int64(data.Offset), size) {
			case target.OffsetSplit:
				op = "sd_split"
			case target.OffsetMaterializeBase:
				op = "sd_materialize"
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
			ctx.Emit(isle.MInst{Op: "jal", CallSymbol: sig.Name, Uses: uses, Defs: defs})
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

// tlsValueRule: RV64's local-exec TLS model adds the thread pointer
// (held in tp, x4) to a link-time-resolved offset; this back end
// models that the same way as AArch64's (read tp, then legalized add),
// since the ABI-level relocation choice is internal/abi's concern.
func tlsValueRule(id int) isle.Rule {
	return isle.Rule{
		ID: id,
		Try: func(ctx *isle.LowerCtx, inst ir.Inst, data ir.InstData, results []ir.Value) (bool, error) {
			def := ctx.DefineSingle(results[0], isle.ClassInt)
			ctx.Emit(isle.MInst{Op: "read_tp", Defs: []isle.VReg{def}})
			if data.Imm == 0 {
				return true, nil
			}
			switch ctx.Target().ArithImm(data.Imm) {
			case target.ArithImmValid:
				ctx.Emit(isle.MInst{Op: "addi", Defs: []isle.VReg{def}, Uses: []isle.VReg{def}, Imm: data.Imm})
			default:
				tmp := ctx.AllocVReg(isle.ClassInt)
				ctx.Emit(isle.MInst{Op: "li_seq", Defs: []isle.VReg{tmp}, Imm: data.Imm})
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
		ctx.Emit(isle.MInst{Op: "jal_zero", TargetBlocks: []int{ctx.BlockIndex(data.Then)}})
		return nil

	case ir.OpBrif:
		cond := data.Args[0]
		if condInst, _, ok := ctx.F.DFG.ValueDef(cond); ok {
			cdata := ctx.F.DFG.Inst(condInst)
			if cdata.Opcode == ir.OpIcmp {
				return emitFusedIntBranch(ctx, cdata, data)
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
		ctx.Emit(isle.MInst{Op: "bnez", Uses: []isle.VReg{x}, TargetBlocks: []int{ctx.BlockIndex(data.Then), ctx.BlockIndex(data.Else)}})
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
		return fmt.Errorf("riscv64: lowerBranch: unexpected non-terminator opcode %s", data.Opcode)
	}
}

// emitFusedIntBranch fuses an icmp feeding a brif directly into one of
// RV64I's six native branch instructions, swapping operands first when
// the condition is one of the four that has no direct encoding
// (IntCondSwapsOperands).
func emitFusedIntBranch(ctx *isle.LowerCtx, cdata, brdata ir.InstData) error {
	x, err := ctx.Use(cdata.Args[0])
	if err != nil {
		return err
	}
	y, err := ctx.Use(cdata.Args[1])
	if err != nil {
		return err
	}
	if ctx.Target().IntCondSwapsOperands(cdata.IntCond) {
		x, y = y, x
	}
	cc := ctx.Target().IntCondCode(cdata.IntCond)
	if err := ctx.MoveArgsTo(brdata.Then, brdata.ThenArgs); err != nil {
		return err
	}
	if err := ctx.MoveArgsTo(brdata.Else, brdata.ElseArgs); err != nil {
		return err
	}
	ctx.Emit(isle.MInst{Op: "branch", Cond: cc, Uses: []isle.VReg{x, y}, TargetBlocks: []int{ctx.BlockIndex(brdata.Then), ctx.BlockIndex(brdata.Else)}})
	return nil
}
