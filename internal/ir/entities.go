// Package ir implements the SSA data-flow graph and block layout:
// dense arenas of opaque-id entities, closed tagged-union
// instructions, and a separate ordered Layout.
package ir

import "github.com/joelreymont/hoist-sub004/internal/types"

// Value, Inst, Block and SigRef are opaque dense ids into a Function's
// DFG arenas. They are never pointers: the IR is an arena of ids, so
// SSA back-edges (loop phis via block params) never form a cycle in
// owning references (DESIGN NOTES, ).
type Value uint32
type Inst uint32
type Block uint32
type SigRef uint32

// NilValue/NilInst/NilBlock mark "no such entity"; 0 is never handed
// out as a real id (arenas reserve index 0 as a sentinel).
const (
	NilValue Value = 0
	NilInst  Inst  = 0
	NilBlock Block = 0
)

// CallConv names a calling convention tag.
type CallConv uint8

const (
	SystemV CallConv = iota
	AAPCS64
	Fast
)

func (c CallConv) String() string {
	switch c {
	case SystemV:
		return "system_v"
	case AAPCS64:
		return "aapcs64"
	case Fast:
		return "fast"
	default:
		return "unknown_call_conv"
	}
}

// Signature is a function's call-conv tag plus ordered parameter and
// return type lists. Ownership transfers to the owning Function at
// construction.
type Signature struct {
	CallConv CallConv
	Params   []types.ID
	Returns  []types.ID
}

// ExtSignature is the target of a SigRef: an externally declared
// signature used by `call` instructions.
type ExtSignature struct {
	Name string
	Sig  Signature
}
