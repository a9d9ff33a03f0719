// Package mach implements the MachBuffer: a byte vector plus a
// pending-fixup list for branches whose target block offset isn't
// known yet at emission time.
package mach

import (
	"encoding/binary"
	"fmt"
)

// FixupKind distinguishes the branch encodings resolve must patch;
// each ISA backend interprets Kind to know how many bits of
// displacement it owns and how to scale it.
type FixupKind int

const (
	// FixupBranch26 is an AArch64 unconditional B (26-bit word-scaled).
	FixupBranch26 FixupKind = iota
	// FixupBranch19 is an AArch64 B.cond/CBZ/CBNZ (19-bit word-scaled).
	FixupBranch19
	// FixupBranchRV32 is a RISC-V64 B-type branch (13-bit signed, byte-scaled).
	FixupBranchRV32
	// FixupJalRV20 is a RISC-V64 JAL (21-bit signed, byte-scaled).
	FixupJalRV20
)

// BlockID is an opaque identifier for a VCode block, used only as a
// map key between reserve_branch and resolve.
type BlockID int

// Fixup is the patch record returned by ReserveBranch.
type Fixup struct {
	Offset int // byte offset of the 4-byte instruction word to patch
	Target BlockID
	Kind   FixupKind
}

// Error is a typed encoding error.
type Error struct {
	Kind         string
	Fixup        Fixup
	Displacement int64
}

func (e *Error) Error() string {
	return fmt.Sprintf("mach: %s: fixup %+v displacement=%d", e.Kind, e.Fixup, e.Displacement)
}

// RelocKind distinguishes the two relocation forms carried in a Code
// value's relocation list.
type RelocKind int

const (
	RelocAbsolute RelocKind = iota
	RelocPCRelative
)

// Reloc is one entry of a Code value's relocation list (absolute or
// PC-relative, target symbol, byte offset), left for the caller to
// resolve against a symbol table (e.g. libcalls the legalizer
// inserted).
type Reloc struct {
	Kind   RelocKind
	Symbol string
	Offset int
}

// Buffer is the growable machine-code buffer.
type Buffer struct {
	bytes      []byte
	fixups     []Fixup
	blockStart map[BlockID]int
}

// NewBuffer returns an empty buffer.
func NewBuffer() *Buffer {
	return &Buffer{blockStart: make(map[BlockID]int)}
}

// EmitBytes appends raw bytes (emit_bytes).
func (b *Buffer) EmitBytes(bs []byte) {
	b.bytes = append(b.bytes, bs...)
}

// EmitU32LE appends one little-endian 32-bit word (emit_u32_le).
func (b *Buffer) EmitU32LE(word uint32) {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], word)
	b.bytes = append(b.bytes, tmp[:]...)
}

// MarkBlockStart records the current byte offset as target's entry
// point, for later fixup resolution. Callers must call this for every
// block in layout order before calling Resolve.
func (b *Buffer) MarkBlockStart(target BlockID) {
	b.blockStart[target] = len(b.bytes)
}

// ReserveBranch emits a zeroed 32-bit placeholder word for a branch to
// target and records a Fixup to patch later.
func (b *Buffer) ReserveBranch(target BlockID, kind FixupKind) Fixup {
	return b.EmitBranchPlaceholder(0, target, kind)
}

// EmitBranchPlaceholder emits base with its displacement bits left at
// zero (every field the ISA encoder already knows — opcode, condition
// code, operand register — should already be set in base) and records
// a Fixup so Resolve can merge in the displacement once target's
// offset is known. Use this instead of ReserveBranch when the branch
// carries payload beyond the displacement itself (e.g. AArch64
// B.cond's condition field, CBNZ's register operand).
func (b *Buffer) EmitBranchPlaceholder(base uint32, target BlockID, kind FixupKind) Fixup {
	f := Fixup{Offset: len(b.bytes), Target: target, Kind: kind}
	b.EmitU32LE(base)
	b.fixups = append(b.fixups, f)
	return f
}

// Patcher merges a displacement into the base word already emitted at
// a fixup's offset, returning the final instruction word. It is given
// kind so one Patcher can serve every FixupKind an ISA defines.
type Patcher func(word uint32, kind FixupKind, displacement int64) (uint32, error)

// Resolve patches every outstanding fixup using patch, which must know
// how to encode a Kind-specific signed word-or-byte displacement into
// the placeholder word currently at that offset. It fails if any
// fixup's target block was never marked, or if patch rejects the
// displacement as out of range.
func (b *Buffer) Resolve(patch Patcher) error {
	for _, f := range b.fixups {
		targetOffset, ok := b.blockStart[f.Target]
		if !ok {
			return &Error{Kind: "unresolved_block", Fixup: f}
		}
		displacement := int64(targetOffset - f.Offset)
		word := binary.LittleEndian.Uint32(b.bytes[f.Offset : f.Offset+4])
		patched, err := patch(word, f.Kind, displacement)
		if err != nil {
			return &Error{Kind: "branch_out_of_range", Fixup: f, Displacement: displacement}
		}
		binary.LittleEndian.PutUint32(b.bytes[f.Offset:f.Offset+4], patched)
	}
	return nil
}

// Bytes returns the final encoded bytes. Valid only after Resolve.
func (b *Buffer) Bytes() []byte { return b.bytes }

// Len reports the current byte length, the offset the next EmitXxx
// call will land at.
func (b *Buffer) Len() int { return len(b.bytes) }
