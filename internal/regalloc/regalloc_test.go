package regalloc

import (
	"testing"

	"github.com/joelreymont/hoist-sub004/internal/isle"
	"github.com/joelreymont/hoist-sub004/internal/target"
)

// TestOutOfRegistersThenFreeReclaims covers: with 2 int
// PRegs, allocating 3 VRegs fails on the third with out_of_registers,
// and after freeing the first VReg the third allocate succeeds and
// reuses the just-freed PReg.
func TestOutOfRegistersThenFreeReclaims(t *testing.T) {
	a := NewAllocator(target.RegisterCounts{Int: 2, Float: 1, Vector: 1})

	v0 := isle.VReg{Class: isle.ClassInt, Num: 0}
	v1 := isle.VReg{Class: isle.ClassInt, Num: 1}
	v2 := isle.VReg{Class: isle.ClassInt, Num: 2}

	p0, err := a.Allocate(v0)
	if err != nil {
		t.Fatalf("Allocate(v0): %v", err)
	}
	if _, err := a.Allocate(v1); err != nil {
		t.Fatalf("Allocate(v1): %v", err)
	}

	if _, err := a.Allocate(v2); err == nil {
		t.Fatalf("expected out_of_registers allocating a 3rd int VReg")
	} else if oor, ok := err.(*OutOfRegistersError); !ok || oor.Class != isle.ClassInt {
		t.Fatalf("expected OutOfRegistersError{Int}, got %v", err)
	}

	a.Free(v0)
	p2, err := a.Allocate(v2)
	if err != nil {
		t.Fatalf("Allocate(v2) after free: %v", err)
	}
	if p2 != p0 {
		t.Fatalf("expected the just-freed PReg %v to be reused, got %v", p0, p2)
	}
}

func TestDisjointPoolsAcrossClasses(t *testing.T) {
	a := NewAllocator(target.RegisterCounts{Int: 1, Float: 1, Vector: 1})

	vi := isle.VReg{Class: isle.ClassInt}
	vf := isle.VReg{Class: isle.ClassFloat}
	vv := isle.VReg{Class: isle.ClassVector}

	pi, _ := a.Allocate(vi)
	pf, _ := a.Allocate(vf)
	pvec, _ := a.Allocate(vv)

	if pi.Class != isle.ClassInt || pf.Class != isle.ClassFloat || pvec.Class != isle.ClassVector {
		t.Fatalf("expected each allocation to stay within its own class pool, got %v %v %v", pi, pf, pvec)
	}
}

func TestSpillSlotsUniquePerVReg(t *testing.T) {
	a := NewAllocator(target.RegisterCounts{Int: 0, Float: 0, Vector: 0})

	v0 := isle.VReg{Class: isle.ClassInt, Num: 0}
	v1 := isle.VReg{Class: isle.ClassInt, Num: 1}

	s0 := a.Spill(v0)
	s1 := a.Spill(v1)
	if s0 == s1 {
		t.Fatalf("expected distinct spill slots, got %d and %d", s0, s1)
	}

	alloc, ok := a.GetAllocation(v0)
	if !ok || !alloc.IsSpill || alloc.Spill != s0 {
		t.Fatalf("expected v0's allocation to record its spill slot, got %+v", alloc)
	}
}

func TestFreeingSpilledVRegIsNoop(t *testing.T) {
	a := NewAllocator(target.RegisterCounts{Int: 1})
	v := isle.VReg{Class: isle.ClassInt}
	a.Spill(v)
	a.Free(v)
	alloc, ok := a.GetAllocation(v)
	if !ok || !alloc.IsSpill {
		t.Fatalf("expected Free on a spilled VReg to be a no-op, got %+v ok=%v", alloc, ok)
	}
}
