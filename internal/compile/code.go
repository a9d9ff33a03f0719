package compile

import (
	"github.com/google/uuid"

	"github.com/joelreymont/hoist-sub004/internal/abi"
	"github.com/joelreymont/hoist-sub004/internal/mach"
)

// UnwindInfo is the optional per-function unwind metadata 
// names alongside a Code value. It records just enough to walk one
// stack frame: how many bytes the prologue reserved and which callee
// saved registers (by physical index, in save order) it spilled
// there. Compile sets only FrameSize and leaves SavedIntRegs empty.
type UnwindInfo struct {
	FrameSize    uint32
	SavedIntRegs []int
}

// Code is  "target code output": a relocatable byte
// buffer plus the metadata a loader needs to place and patch it.
type Code struct {
	// SessionID identifies the Compile call that produced this Code,
	// for correlating trace output and coverage draws across a
	// CompileAll batch.
	SessionID uuid.UUID

	// Bytes holds little-endian instruction words.
	Bytes []byte

	// StackSize is the frame size in bytes: the sum of every
	// stack_alloc in the function, rounded up to the target's
	// natural stack alignment (16 bytes on both AAPCS64 and the
	// RISC-V64 LP64D psABI).
	StackSize uint32

	// Relocs is the relocation list mach.Encode produced.
	Relocs []mach.Reloc

	// Unwind is present only when StackSize is non-zero; a function
	// with no stack_alloc carries a nil Unwind.
	Unwind *UnwindInfo

	// Disasm holds one mnemonic line per lowered instruction, present
	// only when the compile ran with WithDisassembly(true).
	Disasm []string

	// ParamLocs and ReturnLocs are the function signature's calling
	// convention marshaling, in parameter/return order.
	// A caller emitting a call site, or a loader binding a function's
	// entry arguments, reads these to know which PReg or stack offset
	// each value arrives in or is returned through.
	ParamLocs  []abi.Loc
	ReturnLocs []abi.Loc
}
