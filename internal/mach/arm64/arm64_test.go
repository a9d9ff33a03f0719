package arm64

import (
	"encoding/binary"
	"testing"
)

func le(word uint32) []byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], word)
	return b[:]
}

func assertBytes(t *testing.T, got []byte, want []byte) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %x, want %x", got, want)
	}
	for i := range got {
		if got[i] != want[i] {
			t.Fatalf("got %x, want %x", got, want)
		}
	}
}

// TestMOVZEncodesToSpecTable covers a MOVZ immediate load.
func TestMOVZEncodesToSpecTable(t *testing.T) {
	word := EncodeMOVZ(0, 0, 42, 0)
	assertBytes(t, le(word), []byte{0x40, 0x05, 0x80, 0x52})
}

// TestMOVAsORREncodesToSpecTable covers MOV encoded as ORR with the zero register.
func TestMOVAsORREncodesToSpecTable(t *testing.T) {
	word := EncodeORRShiftedReg(1, 1, 31, 0)
	assertBytes(t, le(word), []byte{0xE0, 0x03, 0x01, 0xAA})
}

// TestMULAsMADDEncodesToSpecTable covers MUL encoded as MADD with Ra=ZR.
func TestMULAsMADDEncodesToSpecTable(t *testing.T) {
	word := EncodeMADD(0, 2, 31, 1, 0)
	assertBytes(t, le(word), []byte{0x20, 0x7C, 0x02, 0x1B})
}

func TestADDShiftedRegEncoding(t *testing.T) {
	word := EncodeADDShiftedReg(0, 2, 1, 0)
	assertBytes(t, le(word), []byte{0x20, 0x00, 0x02, 0x0B})
}

func TestRETEncodesDefaultLR(t *testing.T) {
	word := EncodeRET(30)
	assertBytes(t, le(word), []byte{0xC0, 0x03, 0x5F, 0xD6})
}

func TestPatchBranch26WithinRange(t *testing.T) {
	word, err := Patch(EncodeB(), 0, 16)
	if err != nil {
		t.Fatalf("Patch: %v", err)
	}
	if word != EncodeB()|4 {
		t.Fatalf("expected word-scaled displacement 4 folded into the base word, got %#x", word)
	}
}

func TestPatchRejectsUnalignedDisplacement(t *testing.T) {
	if _, err := Patch(EncodeB(), 0, 3); err == nil {
		t.Fatalf("expected an error for a non-word-aligned displacement")
	}
}

func TestSynthesizeMovWideSkipsZeroChunks(t *testing.T) {
	words := SynthesizeMovWide(1, 0x123456789ABC, 0)
	if len(words) == 0 {
		t.Fatalf("expected at least one instruction")
	}
	// First word must be a MOVZ (opc=10, bits30-29); later words MOVK (opc=11).
	if words[0]&(0x3<<29) != (0x2 << 29) {
		t.Fatalf("expected the first synthesized word to be a MOVZ, got %#x", words[0])
	}
	for _, w := range words[1:] {
		if w&(0x3<<29) != (0x3 << 29) {
			t.Fatalf("expected subsequent synthesized words to be MOVK, got %#x", w)
		}
	}
}

func TestLowOnesRunLengthAcceptsContiguousMasks(t *testing.T) {
	if w, ok := lowOnesRunLength(0xFF); !ok || w != 8 {
		t.Fatalf("expected 0xFF to decode as an 8-bit run, got %d ok=%v", w, ok)
	}
	if _, ok := lowOnesRunLength(0x0F0F); ok {
		t.Fatalf("expected a non-contiguous pattern to be rejected")
	}
}
