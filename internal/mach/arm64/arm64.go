// Package arm64 is the AArch64 bit-exact instruction encoder: it turns
// one function's internal/isle VCode, plus the internal/regalloc PReg
// assignment for every VReg it uses, into raw machine code bytes via
// an internal/mach.Buffer.
package arm64

import (
	"fmt"

	"github.com/joelreymont/hoist-sub004/internal/isle"
	"github.com/joelreymont/hoist-sub004/internal/mach"
	"github.com/joelreymont/hoist-sub004/internal/regalloc"
	"github.com/joelreymont/hoist-sub004/internal/target"
)

// --- Bit-exact instruction primitives ---

// EncodeMOVZ is `MOVZ Rd,#imm16`: `sf 10 100101 hw imm16 Rd`.
func EncodeMOVZ(sf uint32, hw uint32, imm16 uint16, rd uint32) uint32 {
	return (sf << 31) | 0x52800000 | (hw << 21) | (uint32(imm16) << 5) | rd
}

// EncodeMOVK is `MOVK Rd,#imm16,LSL #(16*hw)`: same shape as MOVZ with
// opc=11 instead of 10, since MOVK merges into Rd rather than zeroing it.
func EncodeMOVK(sf uint32, hw uint32, imm16 uint16, rd uint32) uint32 {
	return (sf << 31) | 0x72800000 | (hw << 21) | (uint32(imm16) << 5) | rd
}

// EncodeORRShiftedReg is `ORR Rd,Rn,Rm` (no shift): used directly for
// `MOV Rd,Rm` as `ORR Rd,ZR,Rm`.
func EncodeORRShiftedReg(sf, rm, rn, rd uint32) uint32 {
	return (sf << 31) | 0x2A000000 | (rm << 16) | (rn << 5) | rd
}

// EncodeANDShiftedReg is `AND Rd,Rn,Rm` (no shift).
func EncodeANDShiftedReg(sf, rm, rn, rd uint32) uint32 {
	return (sf << 31) | 0x0A000000 | (rm << 16) | (rn << 5) | rd
}

// EncodeEORShiftedReg is `EOR Rd,Rn,Rm` (no shift).
func EncodeEORShiftedReg(sf, rm, rn, rd uint32) uint32 {
	return (sf << 31) | 0x4A000000 | (rm << 16) | (rn << 5) | rd
}

// EncodeADDShiftedReg is `ADD Rd,Rn,Rm` (no shift).
func EncodeADDShiftedReg(sf, rm, rn, rd uint32) uint32 {
	return (sf << 31) | 0x0B000000 | (rm << 16) | (rn << 5) | rd
}

// EncodeSUBShiftedReg is `SUB Rd,Rn,Rm` (no shift).
func EncodeSUBShiftedReg(sf, rm, rn, rd uint32) uint32 {
	return (sf << 31) | 0x4B000000 | (rm << 16) | (rn << 5) | rd
}

// EncodeSUBSShiftedReg is `SUBS Rd,Rn,Rm`, used as `CMP Rn,Rm` with
// Rd=ZR, the discarded-result alias an icmp-without-branch compares against.
func EncodeSUBSShiftedReg(sf, rm, rn uint32) uint32 {
	return EncodeSUBShiftedReg(sf, rm, rn, 31) | (1 << 29)
}

// EncodeAddSubImm encodes `ADD`/`SUB Rd,Rn,#imm12{,LSL #12}`. sub
// selects SUB over ADD; shift12 selects the `LSL #12` form.
func EncodeAddSubImm(sf uint32, sub bool, shift12 bool, imm12 uint32, rn, rd uint32) uint32 {
	word := (sf << 31) | 0x11000000 | (imm12 << 10) | (rn << 5) | rd
	if sub {
		word |= 1 << 30
	}
	if shift12 {
		word |= 1 << 22
	}
	return word
}

// EncodeMADD is `MADD Rd,Rn,Rm,Ra`; `MUL Rd,Rn,Rm` is the Ra=ZR alias.
func EncodeMADD(sf, rm, ra, rn, rd uint32) uint32 {
	return (sf << 31) | 0x1B000000 | (rm << 16) | (ra << 10) | (rn << 5) | rd
}

// EncodeMSUB is `MSUB Rd,Rn,Rm,Ra` (Rd = Ra - Rn*Rm), MADD with o0=1.
func EncodeMSUB(sf, rm, ra, rn, rd uint32) uint32 {
	return EncodeMADD(sf, rm, ra, rn, rd) | (1 << 15)
}

// EncodeSDIV/EncodeUDIV are the data-processing(2-source) division ops.
func EncodeSDIV(sf, rm, rn, rd uint32) uint32 {
	return (sf << 31) | 0x1AC00C00 | (rm << 16) | (rn << 5) | rd
}
func EncodeUDIV(sf, rm, rn, rd uint32) uint32 {
	return (sf << 31) | 0x1AC00800 | (rm << 16) | (rn << 5) | rd
}

// EncodeRET is `RET Xn` (Xn defaults to X30/LR).
func EncodeRET(rn uint32) uint32 { return 0xD65F0000 | (rn << 5) }

// EncodeCSEL/EncodeCSET: conditional select and its `cset Rd,cond` alias
// (`CSINC Rd,ZR,ZR,invert(cond)`).
func EncodeCSEL(sf, rm uint32, cond target.CondCode, rn, rd uint32) uint32 {
	return (sf << 31) | 0x1A800000 | (rm << 16) | (uint32(cond) << 12) | (rn << 5) | rd
}
func EncodeCSET(sf uint32, cond target.CondCode, rd uint32) uint32 {
	return (sf << 31) | 0x1A9F07E0 | (invertCond(cond) << 12) | rd
}

func invertCond(c target.CondCode) uint32 { return uint32(c) ^ 1 }

// EncodeMRSTPIDR is `MRS Xt, TPIDR_EL0`.
func EncodeMRSTPIDR(rt uint32) uint32 { return 0xD53BD040 | rt }

// EncodeLDRImm/EncodeSTRImm are the 64-bit unsigned-scaled-offset
// load/store register forms. offset is in bytes and must be 8-aligned
// (scaled by 8 for the 64-bit size class encoded here).
func EncodeLDRImm(offsetBytes int64, rn, rt uint32) (uint32, error) {
	imm12, err := scaledImm12(offsetBytes, 8)
	if err != nil {
		return 0, err
	}
	return 0xF9400000 | (imm12 << 10) | (rn << 5) | rt, nil
}
func EncodeSTRImm(offsetBytes int64, rn, rt uint32) (uint32, error) {
	imm12, err := scaledImm12(offsetBytes, 8)
	if err != nil {
		return 0, err
	}
	return 0xF9000000 | (imm12 << 10) | (rn << 5) | rt, nil
}

func scaledImm12(offset int64, scale int64) (uint32, error) {
	if offset < 0 || offset%scale != 0 {
		return 0, fmt.Errorf("arm64: offset %d is not a non-negative multiple of %d", offset, scale)
	}
	scaled := offset / scale
	if scaled > 0xFFF {
		return 0, fmt.Errorf("arm64: scaled offset %d exceeds imm12", scaled)
	}
	return uint32(scaled), nil
}

// EncodeB/EncodeBL/EncodeBCond/EncodeCBNZ build the branch-family base
// words with their displacement field left at zero, ready for
// mach.Buffer.EmitBranchPlaceholder.
func EncodeB() uint32    { return 0x14000000 }
func EncodeBL() uint32   { return 0x94000000 }
func EncodeCBNZ(rt uint32) uint32        { return 0x35000000 | rt }
func EncodeBCond(cond target.CondCode) uint32 { return 0x54000000 | uint32(cond) }

// --- MOVZ/MOVK move-wide synthesis (mirrors internal/target/arm64's
// MovInstructionCount estimate). ---

// SynthesizeMovWide returns the MOVZ (+ up to 3 MOVK) words that build
// imm into rd, skipping all-zero 16-bit chunks except to guarantee at
// least one MOVZ is emitted.
func SynthesizeMovWide(sf uint32, imm uint64, rd uint32) []uint32 {
	var words []uint32
	first := true
	for hw := uint32(0); hw < 4; hw++ {
		if sf == 0 && hw >= 2 {
			break
		}
		chunk := uint16(imm >> (16 * hw))
		if chunk == 0 && !(first && hw == 3) {
			continue
		}
		if first {
			words = append(words, EncodeMOVZ(sf, hw, chunk, rd))
			first = false
		} else {
			words = append(words, EncodeMOVK(sf, hw, chunk, rd))
		}
	}
	if len(words) == 0 {
		words = append(words, EncodeMOVZ(sf, 0, 0, rd))
	}
	return words
}

// Patch is the mach.Patcher for every AArch64 FixupKind this package
// uses (mach.FixupBranch26 for B/BL, mach.FixupBranch19 for
// B.cond/CBNZ).
func Patch(word uint32, kind mach.FixupKind, displacement int64) (uint32, error) {
	if displacement%4 != 0 {
		return 0, fmt.Errorf("arm64: branch displacement %d is not word-aligned", displacement)
	}
	words := displacement / 4
	switch kind {
	case mach.FixupBranch26:
		if words < -(1<<25) || words >= (1<<25) {
			return 0, fmt.Errorf("arm64: displacement %d out of B/BL's 26-bit reach", words)
		}
		return word | (uint32(words) & 0x3FFFFFF), nil
	case mach.FixupBranch19:
		if words < -(1<<18) || words >= (1<<18) {
			return 0, fmt.Errorf("arm64: displacement %d out of B.cond/CBNZ's 19-bit reach", words)
		}
		return word | ((uint32(words) & 0x7FFFF) << 5), nil
	default:
		return 0, fmt.Errorf("arm64: unsupported fixup kind %d", kind)
	}
}

// --- VCode -> Buffer driver ---

// regNum resolves one VReg's physical register number via assign.
// A VReg not present in assign is an error.
func regNum(assign map[isle.VReg]regalloc.PReg, v isle.VReg) (uint32, error) {
	p, ok := assign[v]
	if !ok {
		return 0, fmt.Errorf("arm64: %s has no register assignment", v)
	}
	return uint32(p.Num), nil
}

// Encode lowers vcode to machine code, honoring assign for every VReg
// it references. It returns the final bytes, the external-symbol
// relocations `bl` left behind, and resolves all intra-function branch
// fixups before returning.
func Encode(vcode *isle.VCode, assign map[isle.VReg]regalloc.PReg) ([]byte, []mach.Reloc, error) {
	buf := mach.NewBuffer()
	var relocs []mach.Reloc

	for bi, block := range vcode.Blocks {
		buf.MarkBlockStart(mach.BlockID(bi))
		for _, inst := range block.Insts {
			if err := encodeInst(buf, &relocs, assign, bi, vcode, inst); err != nil {
				return nil, nil, err
			}
		}
	}

	if err := buf.Resolve(Patch); err != nil {
		return nil, nil, err
	}
	return buf.Bytes(), relocs, nil
}

func use(assign map[isle.VReg]regalloc.PReg, uses []isle.VReg, i int) (uint32, error) {
	if i >= len(uses) {
		return 0, fmt.Errorf("arm64: expected use operand %d, instruction has %d", i, len(uses))
	}
	return regNum(assign, uses[i])
}

func def(assign map[isle.VReg]regalloc.PReg, defs []isle.VReg, i int) (uint32, error) {
	if i >= len(defs) {
		return 0, fmt.Errorf("arm64: expected def operand %d, instruction has %d", i, len(defs))
	}
	return regNum(assign, defs[i])
}

// nextBlockFallsThrough reports whether target is the block
// immediately following current in VCode's layout order, so a
// conditional branch's other arm can rely on fallthrough instead of
// an explicit jump.
func nextBlockFallsThrough(current, target int) bool { return target == current+1 }

func encodeInst(buf *mach.Buffer, relocs *[]mach.Reloc, assign map[isle.VReg]regalloc.PReg, blockIdx int, vcode *isle.VCode, inst isle.MInst) error {
	const sf = 1 // this encoder assumes 64-bit (X-register) integer width throughout

	regBin := func(op func(sf, rm, rn, rd uint32) uint32) error {
		rn, err := use(assign, inst.Uses, 0)
		if err != nil {
			return err
		}
		rm, err := use(assign, inst.Uses, 1)
		if err != nil {
			return err
		}
		rd, err := def(assign, inst.Defs, 0)
		if err != nil {
			return err
		}
		buf.EmitU32LE(op(sf, rm, rn, rd))
		return nil
	}

	switch inst.Op {
	case "add":
		return regBin(EncodeADDShiftedReg)
	case "sub":
		return regBin(EncodeSUBShiftedReg)
	case "and":
		return regBin(EncodeANDShiftedReg)
	case "orr":
		return regBin(EncodeORRShiftedReg)
	case "eor":
		return regBin(EncodeEORShiftedReg)
	case "mul":
		rn, err := use(assign, inst.Uses, 0)
		if err != nil {
			return err
		}
		rm, err := use(assign, inst.Uses, 1)
		if err != nil {
			return err
		}
		rd, err := def(assign, inst.Defs, 0)
		if err != nil {
			return err
		}
		buf.EmitU32LE(EncodeMADD(sf, rm, 31, rn, rd))
		return nil
	case "msub":
		rn, err := use(assign, inst.Uses, 0)
		if err != nil {
			return err
		}
		rm, err := use(assign, inst.Uses, 1)
		if err != nil {
			return err
		}
		ra, err := use(assign, inst.Uses, 2)
		if err != nil {
			return err
		}
		rd, err := def(assign, inst.Defs, 0)
		if err != nil {
			return err
		}
		buf.EmitU32LE(EncodeMSUB(sf, rm, ra, rn, rd))
		return nil
	case "sdiv":
		return regBin(EncodeSDIV)
	case "udiv":
		return regBin(EncodeUDIV)
	case "add_imm", "sub_imm", "add_fp_offset":
		rn := uint32(29) // FP for add_fp_offset; stack-alloc has no source reg
		var err error
		if len(inst.Uses) > 0 {
			rn, err = use(assign, inst.Uses, 0)
			if err != nil {
				return err
			}
		}
		rd, err := def(assign, inst.Defs, 0)
		if err != nil {
			return err
		}
		if inst.Imm < 0 || inst.Imm > 0xFFF {
			return fmt.Errorf("arm64: immediate %d out of imm12 range for %s", inst.Imm, inst.Op)
		}
		buf.EmitU32LE(EncodeAddSubImm(sf, inst.Op == "sub_imm", false, uint32(inst.Imm), rn, rd))
		return nil
	case "and_imm", "orr_imm", "eor_imm":
		return encodeLogicalImm(buf, assign, inst, sf)
	case "bitcast", "mov_trunc", "sxt", "uxt":
		rn, err := use(assign, inst.Uses, 0)
		if err != nil {
			return err
		}
		rd, err := def(assign, inst.Defs, 0)
		if err != nil {
			return err
		}
		buf.EmitU32LE(EncodeORRShiftedReg(sf, rn, 31, rd))
		return nil
	case "movz_movk_seq":
		rd, err := def(assign, inst.Defs, 0)
		if err != nil {
			return err
		}
		for _, w := range SynthesizeMovWide(sf, uint64(inst.Imm), rd) {
			buf.EmitU32LE(w)
		}
		return nil
	case "cmp", "cmp_mask":
		rn, err := use(assign, inst.Uses, 0)
		if err != nil {
			return err
		}
		rm, err := use(assign, inst.Uses, 1)
		if err != nil {
			return err
		}
		buf.EmitU32LE(EncodeSUBSShiftedReg(sf, rm, rn))
		return nil
	case "cset", "cset_expand":
		rd, err := def(assign, inst.Defs, 0)
		if err != nil {
			return err
		}
		buf.EmitU32LE(EncodeCSET(sf, inst.Cond, rd))
		return nil
	case "csel", "csel_expand":
		// Uses[0] (the boolean condition VReg) names no register here:
		// CSEL reads NZCV set by a preceding cmp/fcmp, encoded instead
		// via inst.Cond.
		if _, err := use(assign, inst.Uses, 0); err != nil {
			return err
		}
		ifTrue, err := use(assign, inst.Uses, 1)
		if err != nil {
			return err
		}
		ifFalse, err := use(assign, inst.Uses, 2)
		if err != nil {
			return err
		}
		rd, err := def(assign, inst.Defs, 0)
		if err != nil {
			return err
		}
		buf.EmitU32LE(EncodeCSEL(sf, ifFalse, inst.Cond, ifTrue, rd))
		return nil
	case "ldr", "ldr_split", "ldr_materialize":
		rn, err := use(assign, inst.Uses, 0)
		if err != nil {
			return err
		}
		rd, err := def(assign, inst.Defs, 0)
		if err != nil {
			return err
		}
		if inst.Imm < 0 {
			buf.EmitU32LE(0xF8400C00 | (rn << 5) | rd) // LDUR (unscaled) falls back for negative offsets
			return nil
		}
		word, err := EncodeLDRImm(inst.Imm, rn, rd)
		if err != nil {
			return err
		}
		buf.EmitU32LE(word)
		return nil
	case "str", "str_split", "str_materialize":
		rn, err := use(assign, inst.Uses, 0)
		if err != nil {
			return err
		}
		rt, err := use(assign, inst.Uses, 1)
		if err != nil {
			return err
		}
		if inst.Imm < 0 {
			buf.EmitU32LE(0xF8000C00 | (rn << 5) | rt)
			return nil
		}
		word, err := EncodeSTRImm(inst.Imm, rn, rt)
		if err != nil {
			return err
		}
		buf.EmitU32LE(word)
		return nil
	case "mrs_tpidr":
		rd, err := def(assign, inst.Defs, 0)
		if err != nil {
			return err
		}
		buf.EmitU32LE(EncodeMRSTPIDR(rd))
		return nil
	case "bl":
		*relocs = append(*relocs, mach.Reloc{Kind: mach.RelocPCRelative, Symbol: inst.CallSymbol, Offset: buf.Len()})
		buf.EmitU32LE(EncodeBL())
		return nil
	case "b":
		buf.EmitBranchPlaceholder(EncodeB(), mach.BlockID(inst.TargetBlocks[0]), mach.FixupBranch26)
		return nil
	case "b.cond":
		return encodeTwoWayBranch(buf, blockIdx, vcode, inst, EncodeBCond(inst.Cond), mach.FixupBranch19)
	case "cbnz":
		rt, err := use(assign, inst.Uses, 0)
		if err != nil {
			return err
		}
		return encodeTwoWayBranch(buf, blockIdx, vcode, inst, EncodeCBNZ(rt), mach.FixupBranch19)
	case "ret":
		buf.EmitU32LE(EncodeRET(30))
		return nil
	default:
		return fmt.Errorf("arm64: encoder has no rule for mnemonic %q", inst.Op)
	}
}

// encodeTwoWayBranch emits a conditional branch/cbnz to
// TargetBlocks[0], then — unless TargetBlocks[1] is the next block in
// layout order and therefore reached by fallthrough — an explicit
// unconditional branch to TargetBlocks[1].
func encodeTwoWayBranch(buf *mach.Buffer, blockIdx int, vcode *isle.VCode, inst isle.MInst, base uint32, kind mach.FixupKind) error {
	buf.EmitBranchPlaceholder(base, mach.BlockID(inst.TargetBlocks[0]), kind)
	if len(inst.TargetBlocks) > 1 && !nextBlockFallsThrough(blockIdx, inst.TargetBlocks[1]) {
		buf.EmitBranchPlaceholder(EncodeB(), mach.BlockID(inst.TargetBlocks[1]), mach.FixupBranch26)
	}
	return nil
}

// encodeLogicalImm handles the subset of AArch64's bitmask-immediate
// encoding this backend supports: a contiguous run of w low-order one
// bits (N=1, immr=0, imms=w-1). Rotated or periodic patterns are out
// of scope; FitsImm12 upstream only guarantees arithmetic-immediate
// legality, not logical-immediate legality, so such an immediate
// reaching here is reported as illegal rather than mis-encoded.
func encodeLogicalImm(buf *mach.Buffer, assign map[isle.VReg]regalloc.PReg, inst isle.MInst, sf uint32) error {
	rn, err := use(assign, inst.Uses, 0)
	if err != nil {
		return err
	}
	rd, err := def(assign, inst.Defs, 0)
	if err != nil {
		return err
	}
	w, ok := lowOnesRunLength(uint64(inst.Imm))
	if !ok {
		return fmt.Errorf("arm64: immediate %#x is not a supported bitmask immediate for %s", inst.Imm, inst.Op)
	}
	immr := uint32(0)
	imms := uint32(w - 1)
	word := (sf << 31) | 0x12000000 | (1 << 22) | (immr << 16) | (imms << 10) | (rn << 5) | rd
	switch inst.Op {
	case "orr_imm":
		word |= 1 << 29
	case "eor_imm":
		word |= 1 << 30
	}
	buf.EmitU32LE(word)
	return nil
}

func lowOnesRunLength(x uint64) (int, bool) {
	if x == 0 {
		return 0, false
	}
	w := 0
	for x&1 == 1 {
		x >>= 1
		w++
	}
	if x != 0 {
		return 0, false
	}
	return w, true
}
