// Package arm64 is the AArch64 Target profile: the worked example
// the rest of the back end is built against first.
package arm64

import (
	"modernc.org/mathutil"

	"github.com/joelreymont/hoist-sub004/internal/ir"
	"github.com/joelreymont/hoist-sub004/internal/legalize"
	"github.com/joelreymont/hoist-sub004/internal/target"
	"github.com/joelreymont/hoist-sub004/internal/types"
)

// Condition field values from the AArch64 ISA (used verbatim by
// internal/mach/arm64 when encoding B.cond/CSEL).
const (
	EQ target.CondCode = 0
	NE target.CondCode = 1
	CS target.CondCode = 2 // HS
	CC target.CondCode = 3 // LO
	MI target.CondCode = 4
	PL target.CondCode = 5
	VS target.CondCode = 6
	VC target.CondCode = 7
	HI target.CondCode = 8
	LS target.CondCode = 9
	GE target.CondCode = 10
	LT target.CondCode = 11
	GT target.CondCode = 12
	LE target.CondCode = 13
	AL target.CondCode = 14
)

type arm64 struct{}

// New returns the AArch64 Target.
func New() target.Target { return arm64{} }

func (arm64) Name() string { return "aarch64" }

// Profile: AArch64 has native SDIV/UDIV for 32/64-bit operands but no
// remainder instruction (remainder is synthesized at lowering via
// MSUB, which this back end treats as "native" rather than routing
// through a libcall); I128 division has no hardware support on either
// target and always legalizes to a libcall (handled by Width>=128 in
// internal/legalize regardless of these flags).
func (arm64) Profile() legalize.Profile {
	return legalize.Profile{
		HasIntDiv:   true,
		HasIntRem:   true,
		HasFloatDiv: true,
		Libcalls:    legalize.DefaultLibcalls(),
	}
}

var intCondTable = map[ir.IntCC]target.CondCode{
	ir.IntEQ: EQ, ir.IntNE: NE,
	ir.IntSLT: LT, ir.IntSGE: GE, ir.IntSGT: GT, ir.IntSLE: LE,
	ir.IntULT: CC, ir.IntUGE: CS, ir.IntUGT: HI, ir.IntULE: LS,
}

func (arm64) IntCondCode(cc ir.IntCC) target.CondCode { return intCondTable[cc] }

// IntCondSwapsOperands: AArch64's condition field covers all ten IntCC
// codes directly, so no lowering rule ever needs to swap operands.
func (arm64) IntCondSwapsOperands(ir.IntCC) bool { return false }

var floatCondTable = map[ir.FloatCC]target.CondCode{
	ir.FloatEQ: EQ, ir.FloatNE: NE, ir.FloatLT: MI, ir.FloatGT: GT,
	ir.FloatUnordered: VS, ir.FloatOrdered: VC,
	ir.FloatGE: GE, ir.FloatLE: LE,
}

func (arm64) FloatCondCode(cc ir.FloatCC) (target.CondCode, target.SelectStrategy) {
	if cc.Unordered() {
		return 0, target.SelectExpand
	}
	return floatCondTable[cc], target.SelectNative
}

// ArithImm:  "true iff v fits in 12 bits, or v&0xFFF==0 &&
// (v>>12) fits in 12 bits (the shifted-12 form)".
func (a arm64) ArithImm(v int64) target.ArithImmDecision {
	if fitsU12(v) {
		return target.ArithImmValid
	}
	if v&0xFFF == 0 && fitsU12(v>>12) {
		return target.ArithImmValid
	}
	if a.MovInstructionCount(uint64(v)) <= 2 {
		return target.ArithImmSynthesizeMov
	}
	return target.ArithImmLiteralPool
}

const arithImm12Max = 0xFFF

func fitsU12(v int64) bool {
	return v >= 0 && v <= arithImm12Max
}

// LoadStoreOffset:  "non-negative, multiple of size, and
// off/size in [0,4095]".
func (arm64) LoadStoreOffset(off int64, size uint32) target.OffsetDecision {
	if off < 0 || size == 0 || off%int64(size) != 0 {
		return decideSplitOrMaterialize(off, size)
	}
	scaled := off / int64(size)
	if scaled >= 0 && scaled <= arithImm12Max {
		return target.OffsetValid
	}
	return decideSplitOrMaterialize(off, size)
}

// decideSplitOrMaterialize picks split_offset when off decomposes into
// a validly-scaled base plus a small remainder below size, and
// materialize_base otherwise. off is assumed to already
// fail LoadStoreOffset's direct check; mathutil.MaxInt64 is the sanity
// ceiling guarding against a caller-supplied offset too large to have
// come from any real address computation.
func decideSplitOrMaterialize(off int64, size uint32) target.OffsetDecision {
	if size == 0 || off < 0 || off >= mathutil.MaxInt64 {
		return target.OffsetMaterializeBase
	}
	maxScaledBase := int64(arithImm12Max) * int64(size)
	base := off
	if base > maxScaledBase {
		base = maxScaledBase
	}
	base -= base % int64(size)
	remainder := off - base
	if base >= 0 && base <= maxScaledBase && remainder > 0 && remainder < int64(size) {
		return target.OffsetSplit
	}
	return target.OffsetMaterializeBase
}

// IndexedOffset:  "off in [-256,255]".
func (arm64) IndexedOffset(off int64) bool {
	return off >= -256 && off <= 255
}

// CondSelectStrategy:  "always native for integer; for
// floats, ordered -> native, unordered -> expand".
func (arm64) CondSelectStrategy(isFloat bool, unordered bool) target.SelectStrategy {
	if !isFloat {
		return target.SelectNative
	}
	if unordered {
		return target.SelectExpand
	}
	return target.SelectNative
}

// VectorElementSizeOK:  "supported when scalar or fixed
// 128-bit vector with lane in {8,16,32,64}".
func (arm64) VectorElementSizeOK(pool *types.Pool, id types.ID) bool {
	t := pool.Get(id)
	if t.Kind != types.VectorKind {
		return true
	}
	if t.Bits() != 128 {
		return false
	}
	switch t.Width {
	case 8, 16, 32, 64:
		return true
	default:
		return false
	}
}

// MovInstructionCount:  "number of 16-bit chunks that are
// non-zero in the little-endian 64-bit representation (1 if v==0)".
func (arm64) MovInstructionCount(v uint64) int {
	count := 0
	for i := 0; i < 4; i++ {
		chunk := (v >> uint(16*i)) & 0xFFFF
		if chunk != 0 {
			count++
		}
	}
	if count == 0 {
		return 1
	}
	return count
}

func (arm64) RegisterCounts() target.RegisterCounts {
	// X0-X28 general purpose (X29/X30/SP reserved for FP/LR/SP),
	// V0-V31 shared between the float and vector classes' usable range
	// minus callee-saved reservations handled by the ABI layer.
	return target.RegisterCounts{Int: 29, Float: 32, Vector: 32}
}
