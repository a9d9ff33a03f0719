package riscv64

import (
	"testing"

	"github.com/joelreymont/hoist-sub004/internal/mach"
)

func TestEncodeADDMatchesRV64IEncoding(t *testing.T) {
	// add x7, x5, x6 -> rs2=6,rs1=5,funct3=0,rd=7,opcode=0x33, funct7=0.
	got := EncodeADD(6, 5, 7)
	want := uint32(6<<20) | uint32(5<<15) | uint32(7<<7) | 0x33
	if got != want {
		t.Fatalf("got %#x, want %#x", got, want)
	}
}

func TestEncodeADDIMatchesRV64IEncoding(t *testing.T) {
	// addi x7, x5, -1 -> imm12=0xFFF, rs1=5, funct3=0, rd=7, opcode=0x13.
	got := EncodeADDI(0xFFF, 5, 7)
	want := uint32(0xFFF<<20) | uint32(5<<15) | uint32(7<<7) | 0x13
	if got != want {
		t.Fatalf("got %#x, want %#x", got, want)
	}
}

func TestEncodeRETIsJALRRaZero(t *testing.T) {
	// jalr x0, 0(x1) -> imm=0, rs1=1, funct3=0, rd=0, opcode=0x67.
	want := uint32(1<<15) | 0x67
	if EncodeRET() != want {
		t.Fatalf("got %#x, want %#x", EncodeRET(), want)
	}
}

func TestJTypeImmBitsRoundTripsSmallPositiveOffset(t *testing.T) {
	bits := jTypeImmBits(8) // offset of 8 bytes: bits10_1 = 4
	want := uint32(4) << 21
	if bits != want {
		t.Fatalf("got %#x, want %#x", bits, want)
	}
}

func TestBTypeImmBitsRoundTripsSmallPositiveOffset(t *testing.T) {
	bits := bTypeImmBits(4) // offset of 4 bytes: bits4_1 = 2
	want := uint32(2) << 8
	if bits != want {
		t.Fatalf("got %#x, want %#x", bits, want)
	}
}

func TestPatchRejectsOddDisplacement(t *testing.T) {
	if _, err := Patch(EncodeJAL(0), mach.FixupJalRV20, 3); err == nil {
		t.Fatalf("expected an error for an odd (non-2-byte-aligned) displacement")
	}
}

func TestSynthesizeLISmallPositiveIsAddiOnly(t *testing.T) {
	words, err := SynthesizeLI(42, 7)
	if err != nil {
		t.Fatalf("SynthesizeLI: %v", err)
	}
	if len(words) != 2 {
		t.Fatalf("expected an LUI (of zero) plus one ADDI, got %d words", len(words))
	}
	if words[1] != EncodeADDI(42, 7, 7) {
		t.Fatalf("expected the second word to be addi x7,x7,42, got %#x", words[1])
	}
}

func TestSynthesizeLIRejectsOutOfRange(t *testing.T) {
	if _, err := SynthesizeLI(1<<40, 7); err == nil {
		t.Fatalf("expected an error for a constant outside this pass's 32-bit-range synthesis")
	}
}
