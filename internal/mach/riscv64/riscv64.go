// Package riscv64 is the RISC-V64 instruction encoder mirroring
// internal/mach/arm64's structure: it turns one function's
// internal/isle VCode, plus its internal/regalloc PReg assignment,
// into raw RV64IMD machine code via an internal/mach.Buffer.
package riscv64

import (
	"fmt"

	"github.com/joelreymont/hoist-sub004/internal/isle"
	"github.com/joelreymont/hoist-sub004/internal/mach"
	"github.com/joelreymont/hoist-sub004/internal/regalloc"
)

const (
	opOP     = 0x33
	opOPIMM  = 0x13
	opLOAD   = 0x03
	opSTORE  = 0x23
	opBRANCH = 0x63
	opJAL    = 0x6F
	opJALR   = 0x67
	opLUI    = 0x37
	opOPFP   = 0x53
)

// --- Instruction-format encoders ---

func rType(funct7, rs2, rs1, funct3, rd, opcode uint32) uint32 {
	return (funct7 << 25) | (rs2 << 20) | (rs1 << 15) | (funct3 << 12) | (rd << 7) | opcode
}

func iType(imm12 uint32, rs1, funct3, rd, opcode uint32) uint32 {
	return ((imm12 & 0xFFF) << 20) | (rs1 << 15) | (funct3 << 12) | (rd << 7) | opcode
}

func sType(imm12 uint32, rs2, rs1, funct3, opcode uint32) uint32 {
	imm11_5 := (imm12 >> 5) & 0x7F
	imm4_0 := imm12 & 0x1F
	return (imm11_5 << 25) | (rs2 << 20) | (rs1 << 15) | (funct3 << 12) | (imm4_0 << 7) | opcode
}

func bType(imm uint32, rs2, rs1, funct3, opcode uint32) uint32 {
	bit12 := (imm >> 12) & 1
	bits10_5 := (imm >> 5) & 0x3F
	bits4_1 := (imm >> 1) & 0xF
	bit11 := (imm >> 11) & 1
	return (bit12 << 31) | (bits10_5 << 25) | (rs2 << 20) | (rs1 << 15) | (funct3 << 12) | (bits4_1 << 8) | (bit11 << 7) | opcode
}

func uType(imm20, rd, opcode uint32) uint32 {
	return (imm20 << 12) | (rd << 7) | opcode
}

func jType(imm uint32, rd, opcode uint32) uint32 {
	bit20 := (imm >> 20) & 1
	bits10_1 := (imm >> 1) & 0x3FF
	bit11 := (imm >> 11) & 1
	bits19_12 := (imm >> 12) & 0xFF
	return (bit20 << 31) | (bits10_1 << 21) | (bit11 << 20) | (bits19_12 << 12) | (rd << 7) | opcode
}

// --- Named-instruction primitives ---

func EncodeADD(rs2, rs1, rd uint32) uint32 { return rType(0x00, rs2, rs1, 0x0, rd, opOP) }
func EncodeSUB(rs2, rs1, rd uint32) uint32 { return rType(0x20, rs2, rs1, 0x0, rd, opOP) }
func EncodeAND(rs2, rs1, rd uint32) uint32 { return rType(0x00, rs2, rs1, 0x7, rd, opOP) }
func EncodeOR(rs2, rs1, rd uint32) uint32  { return rType(0x00, rs2, rs1, 0x6, rd, opOP) }
func EncodeXOR(rs2, rs1, rd uint32) uint32 { return rType(0x00, rs2, rs1, 0x4, rd, opOP) }
func EncodeSLL(rs2, rs1, rd uint32) uint32 { return rType(0x00, rs2, rs1, 0x1, rd, opOP) }
func EncodeSRL(rs2, rs1, rd uint32) uint32 { return rType(0x00, rs2, rs1, 0x5, rd, opOP) }
func EncodeSRA(rs2, rs1, rd uint32) uint32 { return rType(0x20, rs2, rs1, 0x5, rd, opOP) }
func EncodeMUL(rs2, rs1, rd uint32) uint32  { return rType(0x01, rs2, rs1, 0x0, rd, opOP) }
func EncodeDIV(rs2, rs1, rd uint32) uint32  { return rType(0x01, rs2, rs1, 0x4, rd, opOP) }
func EncodeDIVU(rs2, rs1, rd uint32) uint32 { return rType(0x01, rs2, rs1, 0x5, rd, opOP) }
func EncodeREM(rs2, rs1, rd uint32) uint32  { return rType(0x01, rs2, rs1, 0x6, rd, opOP) }
func EncodeREMU(rs2, rs1, rd uint32) uint32 { return rType(0x01, rs2, rs1, 0x7, rd, opOP) }
func EncodeSLT(rs2, rs1, rd uint32) uint32  { return rType(0x00, rs2, rs1, 0x2, rd, opOP) }
func EncodeSLTU(rs2, rs1, rd uint32) uint32 { return rType(0x00, rs2, rs1, 0x3, rd, opOP) }

func EncodeADDI(imm12 uint32, rs1, rd uint32) uint32  { return iType(imm12, rs1, 0x0, rd, opOPIMM) }
func EncodeANDI(imm12 uint32, rs1, rd uint32) uint32  { return iType(imm12, rs1, 0x7, rd, opOPIMM) }
func EncodeORI(imm12 uint32, rs1, rd uint32) uint32   { return iType(imm12, rs1, 0x6, rd, opOPIMM) }
func EncodeXORI(imm12 uint32, rs1, rd uint32) uint32  { return iType(imm12, rs1, 0x4, rd, opOPIMM) }
func EncodeSLTIU(imm12 uint32, rs1, rd uint32) uint32 { return iType(imm12, rs1, 0x3, rd, opOPIMM) }
func EncodeSLLI(shamt uint32, rs1, rd uint32) uint32  { return iType(shamt&0x3F, rs1, 0x1, rd, opOPIMM) }
func EncodeSRLI(shamt uint32, rs1, rd uint32) uint32  { return iType(shamt&0x3F, rs1, 0x5, rd, opOPIMM) }
func EncodeSRAI(shamt uint32, rs1, rd uint32) uint32 {
	return iType((0x10<<6)|(shamt&0x3F), rs1, 0x5, rd, opOPIMM)
}

func EncodeLD(imm12 uint32, rs1, rd uint32) uint32     { return iType(imm12, rs1, 0x3, rd, opLOAD) }
func EncodeSD(imm12 uint32, rs2, rs1 uint32) uint32    { return sType(imm12, rs2, rs1, 0x3, opSTORE) }
func EncodeJALR(imm12, rs1, rd uint32) uint32          { return iType(imm12, rs1, 0x0, rd, opJALR) }
func EncodeLUI(imm20, rd uint32) uint32                { return uType(imm20, rd, opLUI) }

// EncodeRET is `JALR x0, 0(x1)`.
func EncodeRET() uint32 { return EncodeJALR(0, 1, 0) }

// EncodeJAL builds a JAL base word with its displacement left at
// zero, ready for mach.Buffer.EmitBranchPlaceholder.
func EncodeJAL(rd uint32) uint32 { return jType(0, rd, opJAL) }

// EncodeBranch builds a B-type base word (funct3 is the target's
// CondCode, which internal/target/riscv64 defines as the real branch
// funct3 value) with its displacement left at zero.
func EncodeBranch(funct3, rs2, rs1 uint32) uint32 {
	return bType(0, rs2, rs1, funct3, opBRANCH)
}

// EncodeFCompare is FEQ.D/FLT.D/FLE.D, selected by funct3:
// internal/target/riscv64's FloatCondCode returns exactly this
// rm-field encoding: FLE=0, FLT=1, FEQ=2.
func EncodeFCompare(funct3, rs2, rs1, rd uint32) uint32 {
	return rType(0x51, rs2, rs1, funct3, rd, opOPFP)
}

func EncodeFADD(rs2, rs1, rd uint32) uint32 { return rType(0x01, rs2, rs1, 0, rd, opOPFP) }
func EncodeFSUB(rs2, rs1, rd uint32) uint32 { return rType(0x05, rs2, rs1, 0, rd, opOPFP) }
func EncodeFMUL(rs2, rs1, rd uint32) uint32 { return rType(0x09, rs2, rs1, 0, rd, opOPFP) }
func EncodeFDIV(rs2, rs1, rd uint32) uint32 { return rType(0x0D, rs2, rs1, 0, rd, opOPFP) }

// EncodeFNEG/EncodeFABS are the FSGNJN.D/FSGNJX.D rd,rs,rs aliases.
func EncodeFNEG(rs, rd uint32) uint32 { return rType(0x11, rs, rs, 0x1, rd, opOPFP) }
func EncodeFABS(rs, rd uint32) uint32 { return rType(0x11, rs, rs, 0x2, rd, opOPFP) }

func EncodeFCVTLD(rs1, rd uint32) uint32  { return rType(0x61, 0x2, rs1, 0, rd, opOPFP) }
func EncodeFCVTLUD(rs1, rd uint32) uint32 { return rType(0x61, 0x3, rs1, 0, rd, opOPFP) }
func EncodeFCVTDL(rs1, rd uint32) uint32  { return rType(0x69, 0x2, rs1, 0, rd, opOPFP) }
func EncodeFCVTDLU(rs1, rd uint32) uint32 { return rType(0x69, 0x3, rs1, 0, rd, opOPFP) }
func EncodeFCVTSD(rs1, rd uint32) uint32  { return rType(0x20, 0x1, rs1, 0, rd, opOPFP) }
func EncodeFCVTDS(rs1, rd uint32) uint32  { return rType(0x21, 0x0, rs1, 0, rd, opOPFP) }

// --- li (load-immediate) synthesis, mirroring arm64's move-wide ---

// SynthesizeLI returns the LUI(+ADDI) words that build a 32-bit-range
// imm into rd. Larger constants need a longer (LUI/ADDI/SLLI/...)
// sequence this pass does not synthesize; callers get an error instead
// of a silently-wrong short sequence.
func SynthesizeLI(imm int64, rd uint32) ([]uint32, error) {
	if imm < -(1<<31) || imm >= (1<<31) {
		return nil, fmt.Errorf("riscv64: li immediate %d exceeds this encoder's 32-bit-range synthesis", imm)
	}
	low := int32(imm & 0xFFF)
	if low >= 0x800 {
		low -= 0x1000
	}
	upper := (int32(imm) - low) >> 12
	words := []uint32{EncodeLUI(uint32(upper)&0xFFFFF, rd)}
	if low != 0 || upper == 0 {
		words = append(words, EncodeADDI(uint32(low)&0xFFF, rd, rd))
	}
	return words, nil
}

// Patch is the mach.Patcher for mach.FixupJalRV20 (JAL, 21-bit signed
// byte displacement) and mach.FixupBranchRV32 (B-type, 13-bit signed).
func Patch(word uint32, kind mach.FixupKind, displacement int64) (uint32, error) {
	if displacement%2 != 0 {
		return 0, fmt.Errorf("riscv64: branch displacement %d is not 2-byte aligned", displacement)
	}
	switch kind {
	case mach.FixupJalRV20:
		if displacement < -(1<<20) || displacement >= (1<<20) {
			return 0, fmt.Errorf("riscv64: displacement %d out of JAL's 21-bit reach", displacement)
		}
		return word | jTypeImmBits(uint32(displacement)), nil
	case mach.FixupBranchRV32:
		if displacement < -(1<<12) || displacement >= (1<<12) {
			return 0, fmt.Errorf("riscv64: displacement %d out of branch's 13-bit reach", displacement)
		}
		return word | bTypeImmBits(uint32(displacement)), nil
	default:
		return 0, fmt.Errorf("riscv64: unsupported fixup kind %d", kind)
	}
}

func jTypeImmBits(imm uint32) uint32 {
	return (((imm >> 20) & 1) << 31) | (((imm >> 1) & 0x3FF) << 21) | (((imm >> 11) & 1) << 20) | (((imm >> 12) & 0xFF) << 12)
}

func bTypeImmBits(imm uint32) uint32 {
	return (((imm >> 12) & 1) << 31) | (((imm >> 5) & 0x3F) << 25) | (((imm >> 1) & 0xF) << 8) | (((imm >> 11) & 1) << 7)
}

// --- VCode -> Buffer driver ---

const (
	regTP = 4
	regFP = 8
	regRA = 1
)

// regNum maps a VReg's PReg to an architectural register number.
// Int-class PRegs occupy x5..x7 and x9..x31 (skipping
// zero/ra/sp/gp/tp and fp/x8); float-class PRegs map directly onto
// f0..f31.
func regNum(assign map[isle.VReg]regalloc.PReg, v isle.VReg) (uint32, error) {
	p, ok := assign[v]
	if !ok {
		return 0, fmt.Errorf("riscv64: %s has no register assignment", v)
	}
	if p.Class == isle.ClassInt {
		n := uint32(p.Num) + 5
		if n >= regFP {
			n++
		}
		return n, nil
	}
	return uint32(p.Num), nil
}

func Encode(vcode *isle.VCode, assign map[isle.VReg]regalloc.PReg) ([]byte, []mach.Reloc, error) {
	buf := mach.NewBuffer()
	var relocs []mach.Reloc

	for bi, block := range vcode.Blocks {
		buf.MarkBlockStart(mach.BlockID(bi))
		for _, inst := range block.Insts {
			if err := encodeInst(buf, &relocs, assign, bi, inst); err != nil {
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
		return 0, fmt.Errorf("riscv64: expected use operand %d, instruction has %d", i, len(uses))
	}
	return regNum(assign, uses[i])
}

func def(assign map[isle.VReg]regalloc.PReg, defs []isle.VReg, i int) (uint32, error) {
	if i >= len(defs) {
		return 0, fmt.Errorf("riscv64: expected def operand %d, instruction has %d", i, len(defs))
	}
	return regNum(assign, defs[i])
}

func nextBlockFallsThrough(current, target int) bool { return target == current+1 }

func encodeImm12(imm int64) (uint32, error) {
	if imm < -2048 || imm > 2047 {
		return 0, fmt.Errorf("riscv64: immediate %d exceeds a 12-bit signed field", imm)
	}
	return uint32(imm) & 0xFFF, nil
}

func encodeInst(buf *mach.Buffer, relocs *[]mach.Reloc, assign map[isle.VReg]regalloc.PReg, blockIdx int, inst isle.MInst) error {
	regReg := func(op func(rs2, rs1, rd uint32) uint32) error {
		rs1, err := use(assign, inst.Uses, 0)
		if err != nil {
			return err
		}
		rs2, err := use(assign, inst.Uses, 1)
		if err != nil {
			return err
		}
		rd, err := def(assign, inst.Defs, 0)
		if err != nil {
			return err
		}
		buf.EmitU32LE(op(rs2, rs1, rd))
		return nil
	}
	regImm := func(op func(imm12, rs1, rd uint32) uint32) error {
		rs1, err := use(assign, inst.Uses, 0)
		if err != nil {
			return err
		}
		rd, err := def(assign, inst.Defs, 0)
		if err != nil {
			return err
		}
		imm12, err := encodeImm12(inst.Imm)
		if err != nil {
			return err
		}
		buf.EmitU32LE(op(imm12, rs1, rd))
		return nil
	}
	shiftImm := func(op func(shamt, rs1, rd uint32) uint32) error {
		rs1, err := use(assign, inst.Uses, 0)
		if err != nil {
			return err
		}
		rd, err := def(assign, inst.Defs, 0)
		if err != nil {
			return err
		}
		buf.EmitU32LE(op(uint32(inst.Imm), rs1, rd))
		return nil
	}
	fpBin := func(op func(rs2, rs1, rd uint32) uint32) error {
		rs1, err := use(assign, inst.Uses, 0)
		if err != nil {
			return err
		}
		rs2, err := use(assign, inst.Uses, 1)
		if err != nil {
			return err
		}
		rd, err := def(assign, inst.Defs, 0)
		if err != nil {
			return err
		}
		buf.EmitU32LE(op(rs2, rs1, rd))
		return nil
	}
	fpUnary := func(op func(rs1, rd uint32) uint32) error {
		rs1, err := use(assign, inst.Uses, 0)
		if err != nil {
			return err
		}
		rd, err := def(assign, inst.Defs, 0)
		if err != nil {
			return err
		}
		buf.EmitU32LE(op(rs1, rd))
		return nil
	}

	switch inst.Op {
	case "add":
		return regReg(EncodeADD)
	case "sub":
		return regReg(EncodeSUB)
	case "and":
		return regReg(EncodeAND)
	case "or":
		return regReg(EncodeOR)
	case "xor":
		return regReg(EncodeXOR)
	case "sll":
		return regReg(EncodeSLL)
	case "srl":
		return regReg(EncodeSRL)
	case "sra":
		return regReg(EncodeSRA)
	case "mul":
		return regReg(EncodeMUL)
	case "div":
		return regReg(EncodeDIV)
	case "divu":
		return regReg(EncodeDIVU)
	case "rem":
		return regReg(EncodeREM)
	case "remu":
		return regReg(EncodeREMU)
	case "addi":
		return regImm(EncodeADDI)
	case "andi":
		return regImm(EncodeANDI)
	case "ori":
		return regImm(EncodeORI)
	case "xori":
		return regImm(EncodeXORI)
	case "slli":
		return shiftImm(EncodeSLLI)
	case "srli":
		return shiftImm(EncodeSRLI)
	case "srai":
		return shiftImm(EncodeSRAI)
	case "add_fp_offset":
		rd, err := def(assign, inst.Defs, 0)
		if err != nil {
			return err
		}
		imm12, err := encodeImm12(inst.Imm)
		if err != nil {
			return err
		}
		buf.EmitU32LE(EncodeADDI(imm12, regFP, rd))
		return nil
	case "slt":
		return encodeSlt(buf, assign, inst)
	case "fcompare", "fcompare_expand":
		return fpCompare(buf, assign, inst)
	case "fadd.d":
		return fpBin(EncodeFADD)
	case "fsub.d":
		return fpBin(EncodeFSUB)
	case "fmul.d":
		return fpBin(EncodeFMUL)
	case "fdiv.d":
		return fpBin(EncodeFDIV)
	case "fneg.d":
		return fpUnary(EncodeFNEG)
	case "fabs.d":
		return fpUnary(EncodeFABS)
	case "fcvt.l.d":
		return fpUnary(EncodeFCVTLD)
	case "fcvt.lu.d":
		return fpUnary(EncodeFCVTLUD)
	case "fcvt.d.l":
		return fpUnary(EncodeFCVTDL)
	case "fcvt.d.lu":
		return fpUnary(EncodeFCVTDLU)
	case "fcvt.s.d":
		return fpUnary(EncodeFCVTSD)
	case "fcvt.d.s":
		return fpUnary(EncodeFCVTDS)
	case "bitcast", "mov_trunc", "sext", "zext", "cmp_mask":
		rs1, err := use(assign, inst.Uses, 0)
		if err != nil {
			return err
		}
		rd, err := def(assign, inst.Defs, 0)
		if err != nil {
			return err
		}
		buf.EmitU32LE(EncodeADDI(0, rs1, rd))
		return nil
	case "select_expand":
		// Branch-free select expansion is out of scope for this pass
		// (it needs a mid-block label the VCode block model does not
		// expose); reported explicitly rather than mis-encoded.
		return fmt.Errorf("riscv64: select_expand has no direct encoding in this pass")
	case "read_tp":
		rd, err := def(assign, inst.Defs, 0)
		if err != nil {
			return err
		}
		buf.EmitU32LE(EncodeADDI(0, regTP, rd))
		return nil
	case "li_seq":
		rd, err := def(assign, inst.Defs, 0)
		if err != nil {
			return err
		}
		words, err := SynthesizeLI(inst.Imm, rd)
		if err != nil {
			return err
		}
		for _, w := range words {
			buf.EmitU32LE(w)
		}
		return nil
	case "ld", "ld_split", "ld_materialize":
		rs1, err := use(assign, inst.Uses, 0)
		if err != nil {
			return err
		}
		rd, err := def(assign, inst.Defs, 0)
		if err != nil {
			return err
		}
		imm12, err := encodeImm12(inst.Imm)
		if err != nil {
			return err
		}
		buf.EmitU32LE(EncodeLD(imm12, rs1, rd))
		return nil
	case "sd", "sd_split", "sd_materialize":
		rs1, err := use(assign, inst.Uses, 0)
		if err != nil {
			return err
		}
		rs2, err := use(assign, inst.Uses, 1)
		if err != nil {
			return err
		}
		imm12, err := encodeImm12(inst.Imm)
		if err != nil {
			return err
		}
		buf.EmitU32LE(EncodeSD(imm12, rs2, rs1))
		return nil
	case "jal":
		*relocs = append(*relocs, mach.Reloc{Kind: mach.RelocPCRelative, Symbol: inst.CallSymbol, Offset: buf.Len()})
		buf.EmitU32LE(EncodeJAL(regRA))
		return nil
	case "jal_zero":
		buf.EmitBranchPlaceholder(EncodeJAL(0), mach.BlockID(inst.TargetBlocks[0]), mach.FixupJalRV20)
		return nil
	case "bnez":
		rs1, err := use(assign, inst.Uses, 0)
		if err != nil {
			return err
		}
		return encodeTwoWayBranch(buf, blockIdx, inst, EncodeBranch(1, 0, rs1), mach.FixupBranchRV32)
	case "branch":
		rs1, err := use(assign, inst.Uses, 0)
		if err != nil {
			return err
		}
		rs2, err := use(assign, inst.Uses, 1)
		if err != nil {
			return err
		}
		return encodeTwoWayBranch(buf, blockIdx, inst, EncodeBranch(uint32(inst.Cond), rs2, rs1), mach.FixupBranchRV32)
	case "ret":
		buf.EmitU32LE(EncodeRET())
		return nil
	default:
		return fmt.Errorf("riscv64: encoder has no rule for mnemonic %q", inst.Op)
	}
}

// encodeSlt materializes icmp's boolean result. funct3 BLT/BGE/BLTU/BGEU
// map onto SLT/SLTU (negating for the GE forms); BEQ/BNE have no direct
// SLT-family instruction, so they're synthesized via SUB.
func encodeSlt(buf *mach.Buffer, assign map[isle.VReg]regalloc.PReg, inst isle.MInst) error {
	rs1, err := use(assign, inst.Uses, 0)
	if err != nil {
		return err
	}
	rs2, err := use(assign, inst.Uses, 1)
	if err != nil {
		return err
	}
	rd, err := def(assign, inst.Defs, 0)
	if err != nil {
		return err
	}
	switch inst.Cond {
	case 4: // BLT
		buf.EmitU32LE(EncodeSLT(rs2, rs1, rd))
	case 5: // BGE
		buf.EmitU32LE(EncodeSLT(rs2, rs1, rd))
		buf.EmitU32LE(EncodeXORI(1, rd, rd))
	case 6: // BLTU
		buf.EmitU32LE(EncodeSLTU(rs2, rs1, rd))
	case 7: // BGEU
		buf.EmitU32LE(EncodeSLTU(rs2, rs1, rd))
		buf.EmitU32LE(EncodeXORI(1, rd, rd))
	case 0: // BEQ
		buf.EmitU32LE(EncodeSUB(rs2, rs1, rd))
		buf.EmitU32LE(EncodeSLTIU(1, rd, rd))
	case 1: // BNE
		buf.EmitU32LE(EncodeSUB(rs2, rs1, rd))
		buf.EmitU32LE(EncodeSLTU(rd, 0, rd))
	default:
		return fmt.Errorf("riscv64: slt has no synthesis for condition code %d", inst.Cond)
	}
	return nil
}

func fpCompare(buf *mach.Buffer, assign map[isle.VReg]regalloc.PReg, inst isle.MInst) error {
	rs1, err := use(assign, inst.Uses, 0)
	if err != nil {
		return err
	}
	rs2, err := use(assign, inst.Uses, 1)
	if err != nil {
		return err
	}
	rd, err := def(assign, inst.Defs, 0)
	if err != nil {
		return err
	}
	buf.EmitU32LE(EncodeFCompare(uint32(inst.Cond), rs2, rs1, rd))
	return nil
}

func encodeTwoWayBranch(buf *mach.Buffer, blockIdx int, inst isle.MInst, base uint32, kind mach.FixupKind) error {
	buf.EmitBranchPlaceholder(base, mach.BlockID(inst.TargetBlocks[0]), kind)
	if len(inst.TargetBlocks) > 1 && !nextBlockFallsThrough(blockIdx, inst.TargetBlocks[1]) {
		buf.EmitBranchPlaceholder(EncodeJAL(0), mach.BlockID(inst.TargetBlocks[1]), mach.FixupJalRV20)
	}
	return nil
}
