// Package target declares the retargeting seam: pure, side-effect-free
// predicates and decision functions used during lowering.
// internal/isle, internal/regalloc and internal/mach
// are written once against the Target interface; internal/target/arm64
// and internal/target/riscv64 are the two concrete profiles.
package target

import (
	"github.com/joelreymont/hoist-sub004/internal/ir"
	"github.com/joelreymont/hoist-sub004/internal/legalize"
	"github.com/joelreymont/hoist-sub004/internal/types"
)

// CondCode is a target-native condition-code value. Its numeric
// encoding is target-specific (for AArch64 it is the literal 4-bit
// condition field so internal/mach/arm64 can use it directly when
// encoding a conditional branch).
type CondCode uint8

// ArithImmDecision is legalizeArithImm's result.
type ArithImmDecision uint8

const (
	ArithImmValid ArithImmDecision = iota
	ArithImmSynthesizeMov
	ArithImmLiteralPool
)

// OffsetDecision is legalizeOffset's result.
type OffsetDecision uint8

const (
	OffsetValid OffsetDecision = iota
	OffsetSplit
	OffsetMaterializeBase
)

// SelectStrategy is condSelectStrategy's result.
type SelectStrategy uint8

const (
	SelectNative SelectStrategy = iota
	SelectExpand
)

// RegisterCounts gives the size of each physical-register class pool
// for internal/regalloc's init_regs.
type RegisterCounts struct {
	Int, Float, Vector int
}

// Target is the full per-architecture decision-table contract.
type Target interface {
	// Name identifies the target (e.g. "aarch64", "riscv64").
	Name() string

	// Profile is the op-legalizer's view of this target's capabilities
	//.
	Profile() legalize.Profile

	// IntCondCode maps a target-independent integer condition to this
	// target's native condition code.
	IntCondCode(cc ir.IntCC) CondCode

	// IntCondSwapsOperands reports whether realizing cc natively
	// requires the lowering rule to swap its two operands first (true
	// on targets, like RISC-V, whose branch instructions only cover
	// half of the ten IntCC codes directly).
	IntCondSwapsOperands(cc ir.IntCC) bool

	// FloatCondCode maps a target-independent float condition to a
	// native code plus whether it can be realized as a single native
	// compare+branch (SelectNative) or needs expansion into multiple
	// instructions (SelectExpand), per  "FloatCC ->
	// CondCode | expand".
	FloatCondCode(cc ir.FloatCC) (CondCode, SelectStrategy)

	// ArithImm is isValidArithImm/legalizeArithImm.
	ArithImm(v int64) ArithImmDecision

	// LoadStoreOffset is isValidLoadStoreOffset/legalizeOffset.
	LoadStoreOffset(off int64, size uint32) OffsetDecision

	// IndexedOffset is isValidIndexedOffset.
	IndexedOffset(off int64) bool

	// CondSelectStrategy is condSelectStrategy.
	CondSelectStrategy(isFloat bool, unordered bool) SelectStrategy

	// VectorElementSizeOK is checkVectorElementSize.
	VectorElementSizeOK(pool *types.Pool, t types.ID) bool

	// MovInstructionCount is countMovInstructions.
	MovInstructionCount(v uint64) int

	// RegisterCounts gives this target's physical register pool sizes.
	RegisterCounts() RegisterCounts
}
