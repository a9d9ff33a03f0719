// Package regalloc implements a linear-scan register allocator:
// per-class free lists of physical registers, a per-class spill-slot
// counter, and the VReg -> (PReg | SpillSlot) allocation map.
package regalloc

import (
	"fmt"

	"github.com/joelreymont/hoist-sub004/internal/isle"
	"github.com/joelreymont/hoist-sub004/internal/target"
)

// PReg is a physical register: a class plus a dense index within it.
type PReg struct {
	Class isle.RegClass
	Num   int
}

func (p PReg) String() string { return fmt.Sprintf("p%d:%s", p.Num, p.Class) }

// SpillSlot is a unique-per-VReg memory location used when no PReg is
// available.
type SpillSlot uint32

// Allocation is the current binding for one VReg: either a PReg or a
// SpillSlot, never both.
type Allocation struct {
	IsSpill bool
	PReg    PReg
	Spill   SpillSlot
}

// OutOfRegistersError reports that a class's free pool was empty at
// Allocate time.
type OutOfRegistersError struct {
	Class isle.RegClass
}

func (e *OutOfRegistersError) Error() string {
	return fmt.Sprintf("regalloc: out_of_registers(%s)", e.Class)
}

// Allocator is the per-compile linear-scan state. It is
// not safe for concurrent use; one Allocator belongs to one compile's
// single logical task.
type Allocator struct {
	free         map[isle.RegClass][]PReg
	spillCounter map[isle.RegClass]uint32
	allocations  map[isle.VReg]Allocation
}

// NewAllocator runs init_regs: sets the free pools from counts, one
// disjoint pool per class.
func NewAllocator(counts target.RegisterCounts) *Allocator {
	a := &Allocator{
		free:         make(map[isle.RegClass][]PReg),
		spillCounter: make(map[isle.RegClass]uint32),
		allocations:  make(map[isle.VReg]Allocation),
	}
	a.free[isle.ClassInt] = freePoolOf(isle.ClassInt, counts.Int)
	a.free[isle.ClassFloat] = freePoolOf(isle.ClassFloat, counts.Float)
	a.free[isle.ClassVector] = freePoolOf(isle.ClassVector, counts.Vector)
	return a
}

func freePoolOf(class isle.RegClass, n int) []PReg {
	pool := make([]PReg, n)
	for i := 0; i < n; i++ {
		// Built in descending numeric order so popping from the tail
		// (LIFO) hands out P0 first, matching init_regs' natural order.
		pool[i] = PReg{Class: class, Num: n - 1 - i}
	}
	return pool
}

// Allocate returns a fresh PReg from v's class pool, binding it to v.
// Fails with OutOfRegistersError if the pool is empty.
func (a *Allocator) Allocate(v isle.VReg) (PReg, error) {
	pool := a.free[v.Class]
	if len(pool) == 0 {
		return PReg{}, &OutOfRegistersError{Class: v.Class}
	}
	p := pool[len(pool)-1]
	a.free[v.Class] = pool[:len(pool)-1]
	a.allocations[v] = Allocation{PReg: p}
	return p, nil
}

// Free returns v's PReg to its class's free pool, at the end of v's
// live range. Freeing a VReg that was spilled, not register-allocated,
// or never allocated is a no-op: its slot (if any) simply stays
// assigned.
func (a *Allocator) Free(v isle.VReg) {
	alloc, ok := a.allocations[v]
	if !ok || alloc.IsSpill {
		return
	}
	a.free[v.Class] = append(a.free[v.Class], alloc.PReg)
	delete(a.allocations, v)
}

// Spill assigns v a fresh spill slot, for use after a failed Allocate:
// a caller may invoke Spill to assign a fresh spill slot and emit
// load/store fixups around uses — the minimum contract; this
// allocator does not itself choose which VReg to spill, only hands
// out the slot once a caller has decided.
func (a *Allocator) Spill(v isle.VReg) SpillSlot {
	slot := SpillSlot(a.spillCounter[v.Class])
	a.spillCounter[v.Class]++
	a.allocations[v] = Allocation{IsSpill: true, Spill: slot}
	return slot
}

// GetAllocation returns v's current binding, or ok=false if v has
// neither been allocated nor spilled.
func (a *Allocator) GetAllocation(v isle.VReg) (Allocation, bool) {
	alloc, ok := a.allocations[v]
	return alloc, ok
}
