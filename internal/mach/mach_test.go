package mach

import "testing"

func TestEmitU32LEAppendsLittleEndianWord(t *testing.T) {
	b := NewBuffer()
	b.EmitU32LE(0x52800540)
	got := b.Bytes()
	want := []byte{0x40, 0x05, 0x80, 0x52}
	if len(got) != 4 || got[0] != want[0] || got[1] != want[1] || got[2] != want[2] || got[3] != want[3] {
		t.Fatalf("got %x, want %x", got, want)
	}
}

func TestReserveBranchThenResolvePatchesDisplacement(t *testing.T) {
	b := NewBuffer()
	b.MarkBlockStart(0)
	b.EmitU32LE(0xAAAAAAAA) // entry block body
	fixup := b.ReserveBranch(1, FixupBranch26)
	b.MarkBlockStart(1)
	b.EmitU32LE(0xBBBBBBBB)

	var gotWord uint32
	var gotDisp int64
	err := b.Resolve(func(word uint32, kind FixupKind, displacement int64) (uint32, error) {
		gotWord = word
		gotDisp = displacement
		return 0xCAFEBABE, nil
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if gotWord != 0 {
		t.Fatalf("expected the placeholder zero word to be passed to patch, got %#x", gotWord)
	}
	if gotDisp != int64(fixup.Offset+4-fixup.Offset) {
		t.Fatalf("expected displacement 4 (target is one word past the fixup), got %d", gotDisp)
	}
	patched := b.Bytes()[fixup.Offset : fixup.Offset+4]
	if patched[0] != 0xBE || patched[3] != 0xCA {
		t.Fatalf("expected the patched word to be written back, got %x", patched)
	}
}

func TestResolveFailsOnUnmarkedTarget(t *testing.T) {
	b := NewBuffer()
	b.ReserveBranch(99, FixupBranch26)
	err := b.Resolve(func(word uint32, kind FixupKind, displacement int64) (uint32, error) { return word, nil })
	if err == nil {
		t.Fatalf("expected an error resolving a branch to a never-marked block")
	}
}

func TestResolvePropagatesOutOfRangeError(t *testing.T) {
	b := NewBuffer()
	b.MarkBlockStart(0)
	b.ReserveBranch(0, FixupBranch19)
	err := b.Resolve(func(word uint32, kind FixupKind, displacement int64) (uint32, error) {
		return 0, &Error{Kind: "branch_out_of_range"}
	})
	if err == nil {
		t.Fatalf("expected Resolve to surface the patcher's out-of-range error")
	}
}
