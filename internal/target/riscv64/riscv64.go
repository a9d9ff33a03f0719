// Package riscv64 is the second Target profile, providing decision
// tables analogous to internal/target/arm64's; it follows the base
// RV64I/M/F/D ISA (no vector extension assumed — see
// VectorElementSizeOK).
package riscv64

import (
	"github.com/joelreymont/hoist-sub004/internal/ir"
	"github.com/joelreymont/hoist-sub004/internal/legalize"
	"github.com/joelreymont/hoist-sub004/internal/target"
	"github.com/joelreymont/hoist-sub004/internal/types"
)

// Branch funct3 field values from the RV64I base ISA (used verbatim by
// internal/mach/riscv64 when encoding a conditional branch).
const (
	BEQ  target.CondCode = 0
	BNE  target.CondCode = 1
	BLT  target.CondCode = 4
	BGE  target.CondCode = 5
	BLTU target.CondCode = 6
	BGEU target.CondCode = 7
)

// Funct3 field values for the F/D-extension FLE.fmt/FLT.fmt/FEQ.fmt
// compares, which set an integer register rather than a flag.
const (
	FLE target.CondCode = 0
	FLT target.CondCode = 1
	FEQ target.CondCode = 2
)

type riscv64 struct{}

// New returns the RISC-V64 Target.
func New() target.Target { return riscv64{} }

func (riscv64) Name() string { return "riscv64" }

// Profile: this back end assumes the M extension (native DIV/DIVU/
// REM/REMU for 32- and 64-bit operands) and the D extension (native
// FDIV.D/FDIV.S) are present; I128 division has no hardware support
// and always legalizes to a libcall regardless of these flags.
func (riscv64) Profile() legalize.Profile {
	return legalize.Profile{
		HasIntDiv:   true,
		HasIntRem:   true,
		HasFloatDiv: true,
		Libcalls:    legalize.DefaultLibcalls(),
	}
}

// intCondTable gives the branch opcode to use once IntCondSwapsOperands
// has been honored: RV64I's six branch instructions (BEQ/BNE/BLT/BGE/
// BLTU/BGEU) cover half of the ten IntCC codes directly; the other
// four (sgt/sle/ugt/ule) are realized by swapping operands and
// branching on the mirrored condition (e.g. "x sgt y" becomes "y slt x").
var intCondTable = map[ir.IntCC]target.CondCode{
	ir.IntEQ:  BEQ,
	ir.IntNE:  BNE,
	ir.IntSLT: BLT, ir.IntSGT: BLT,
	ir.IntSGE: BGE, ir.IntSLE: BGE,
	ir.IntULT: BLTU, ir.IntUGT: BLTU,
	ir.IntUGE: BGEU, ir.IntULE: BGEU,
}

func (riscv64) IntCondCode(cc ir.IntCC) target.CondCode { return intCondTable[cc] }

var swappedIntConds = map[ir.IntCC]bool{
	ir.IntSGT: true,
	ir.IntSLE: true,
	ir.IntUGT: true,
	ir.IntULE: true,
}

func (riscv64) IntCondSwapsOperands(cc ir.IntCC) bool { return swappedIntConds[cc] }

// floatCondTable covers the ordered comparisons realizable with one
// FEQ/FLT/FLE plus a branch on the result register; ne/unordered/
// ordered have no single-instruction RV64 form and always expand.
var floatCondTable = map[ir.FloatCC]target.CondCode{
	ir.FloatEQ: FEQ,
	ir.FloatLT: FLT, ir.FloatGT: FLT,
	ir.FloatLE: FLE, ir.FloatGE: FLE,
}

func (riscv64) FloatCondCode(cc ir.FloatCC) (target.CondCode, target.SelectStrategy) {
	switch cc {
	case ir.FloatEQ, ir.FloatLT, ir.FloatGT, ir.FloatLE, ir.FloatGE:
		return floatCondTable[cc], target.SelectNative
	default:
		return 0, target.SelectExpand
	}
}

// rv12Min/rv12Max are the bounds of RV64I's 12-bit signed I-type
// immediate, used by both ArithImm (ADDI) and LoadStoreOffset (LD/SD
// et al., which are unscaled unlike AArch64's scaled form).
const (
	rv12Min = -2048
	rv12Max = 2047
)

// ArithImm: a value fits a single ADDI iff it is in [-2048,2047]; RV64
// has no shifted-immediate arithmetic form analogous to AArch64's
// shifted-12 ADD, so anything wider either synthesizes via the
// LUI/ADDI/SLLI "li" pseudo-instruction sequence (when short enough)
// or falls back to a literal pool.
func (r riscv64) ArithImm(v int64) target.ArithImmDecision {
	if v >= rv12Min && v <= rv12Max {
		return target.ArithImmValid
	}
	if r.MovInstructionCount(uint64(v)) <= 3 {
		return target.ArithImmSynthesizeMov
	}
	return target.ArithImmLiteralPool
}

// LoadStoreOffset: RV64 loads/stores take an unscaled 12-bit signed
// byte offset (unlike AArch64's size-scaled form) — size does not
// factor into legality, only into whether the access is naturally
// aligned, which this predicate does not require.
func (riscv64) LoadStoreOffset(off int64, size uint32) target.OffsetDecision {
	if off >= rv12Min && off <= rv12Max {
		return target.OffsetValid
	}
	if size == 0 {
		return target.OffsetMaterializeBase
	}
	base := off - (off % int64(size))
	for base > rv12Max {
		base -= int64(size)
	}
	for base < rv12Min {
		base += int64(size)
	}
	remainder := off - base
	if base >= rv12Min && base <= rv12Max && remainder != 0 {
		return target.OffsetSplit
	}
	return target.OffsetMaterializeBase
}

// IndexedOffset: base RV64I has no register+register indexed
// load/store addressing mode (only base+immediate); any such access
// always needs an explicit address add first.
func (riscv64) IndexedOffset(int64) bool { return false }

// CondSelectStrategy: base RV64I has no conditional-move/select
// instruction (the Zicond extension is optional and not assumed here),
// so every select expands into a branch regardless of operand kind.
func (riscv64) CondSelectStrategy(bool, bool) target.SelectStrategy {
	return target.SelectExpand
}

// VectorElementSizeOK: this back end does not assume the RISC-V
// Vector ("V") extension, whose variable-length-vector model has no
// direct analog to the fixed-128-bit lane model 
// describes for AArch64; every vector type is therefore unsupported on
// this target, and lowering must scalarize.
func (riscv64) VectorElementSizeOK(pool *types.Pool, id types.ID) bool {
	return pool.Get(id).Kind != types.VectorKind
}

// MovInstructionCount approximates the RV64 "li" pseudo-instruction
// expansion: one LUI+ADDI pair per nonzero 32-bit half (a bare ADDI if
// the low half alone suffices), plus an SLLI to shift the high half
// into place when both halves are used.
func (riscv64) MovInstructionCount(v uint64) int {
	lo := uint32(v)
	hi := uint32(v >> 32)
	count := 0
	if lo != 0 || hi == 0 {
		count++ // ADDI, or LUI+ADDI collapsed to one step in this approximation
		if lo&0xFFFFF000 != 0 && lo&0xFFF != 0 {
			count++ // separate LUI and ADDI needed
		}
	}
	if hi != 0 {
		count++ // SLLI to shift the high half into place
		count++ // ADDI/LUI to materialize the high half before the shift
	}
	if count == 0 {
		return 1
	}
	return count
}

func (riscv64) RegisterCounts() target.RegisterCounts {
	// x1(ra)/x2(sp)/x3(gp)/x4(tp)/x8(fp) reserved by the ABI layer,
	// x0 hardwired zero; f0-f31 fully usable; no vector registers
	// without the V extension.
	return target.RegisterCounts{Int: 26, Float: 32, Vector: 0}
}
