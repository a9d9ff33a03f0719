// Package abi implements calling-convention and
// return-marshaling rules — AAPCS64 as the canonical worked example,
// plus the RISC-V64 LP64D analog — classifying a Signature's params
// and returns into physical register or stack locations.
package abi

import (
	"fmt"

	"github.com/joelreymont/hoist-sub004/internal/isle"
	"github.com/joelreymont/hoist-sub004/internal/types"
)

// Loc is one value's marshaling location: either Reg-th register of
// Class, or a stack slot at StackOffset, optionally Indirect (the
// register or slot holds a pointer to the real aggregate rather than
// the aggregate itself — aggregates that exceed the register window
// are passed by hidden pointer).
type Loc struct {
	Class       isle.RegClass
	Reg         int
	Stack       bool
	StackOffset int64
	Indirect    bool
}

func (l Loc) String() string {
	if l.Stack {
		return fmt.Sprintf("stack+%d(indirect=%v)", l.StackOffset, l.Indirect)
	}
	return fmt.Sprintf("%s%d(indirect=%v)", l.Class, l.Reg, l.Indirect)
}

// Convention names the register budget a call or return is classified
// against. AAPCS64 and the RISC-V64 LP64D convention both give 8
// integer and 8 floating-point argument/return registers, differing
// only in which concrete registers those are — a distinction
// internal/mach's per-ISA register-number maps own, not this package.
type Convention struct {
	IntRegs   int
	FloatRegs int
}

// AAPCS64 is the canonical worked example: X0-X7 / V0-V7.
func AAPCS64() Convention { return Convention{IntRegs: 8, FloatRegs: 8} }

// RISCV64 is the LP64D convention: a0-a7 / fa0-fa7.
func RISCV64() Convention { return Convention{IntRegs: 8, FloatRegs: 8} }

// classifier threads the running register/stack counters across a
// whole params or returns list: classification tracks the next
// available X/V register per position across the entire list, not
// value-by-value in isolation.
type classifier struct {
	cc          Convention
	pool        *types.Pool
	nextInt     int
	nextFloat   int
	stackOffset int64
}

// ClassifyParams marshals one Signature's parameter types. Calls
// mirror returns for both argument and result marshaling.
func (cc Convention) ClassifyParams(pool *types.Pool, params []types.ID) ([]Loc, error) {
	c := &classifier{cc: cc, pool: pool}
	return c.classifyAll(params)
}

// ClassifyReturns marshals one Signature's return types.
func (cc Convention) ClassifyReturns(pool *types.Pool, returns []types.ID) ([]Loc, error) {
	c := &classifier{cc: cc, pool: pool}
	return c.classifyAll(returns)
}

func (c *classifier) classifyAll(ids []types.ID) ([]Loc, error) {
	var locs []Loc
	for _, id := range ids {
		vs, err := c.classifyOne(id)
		if err != nil {
			return nil, err
		}
		locs = append(locs, vs...)
	}
	return locs, nil
}

// IsHFA reports whether id is a homogeneous floating aggregate: a
// struct of 1-4 fields, all the same float type.
func IsHFA(pool *types.Pool, id types.ID) (elem types.ID, n int, ok bool) {
	t := pool.Get(id)
	if t.Kind != types.StructKind || len(t.Fields) == 0 || len(t.Fields) > 4 {
		return 0, 0, false
	}
	for i, f := range t.Fields {
		ft := pool.Get(f.Type)
		if ft.Kind != types.FloatKind {
			return 0, 0, false
		}
		if i == 0 {
			elem = f.Type
		} else if f.Type != elem {
			return 0, 0, false
		}
	}
	return elem, len(t.Fields), true
}

func (c *classifier) classifyOne(id types.ID) ([]Loc, error) {
	t := c.pool.Get(id)
	switch t.Kind {
	case types.PointerKind:
		return c.classifyInt(1)
	case types.IntKind:
		if t.Width == 128 {
			return c.classifyInt(2)
		}
		return c.classifyInt(1)
	case types.FloatKind:
		return c.classifyFloat(1)
	case types.VectorKind:
		return c.classifyFloat(1)
	case types.StructKind:
		if _, n, ok := IsHFA(c.pool, id); ok {
			if c.nextFloat+n <= c.cc.FloatRegs {
				return c.classifyFloat(n)
			}
			// HFA doesn't fit the remaining V registers: falls back to
			// the hidden-pointer convention, same as any oversized
			// aggregate.
			return c.classifyIndirect()
		}
		size := c.pool.SizeOf(id)
		if size > 16 {
			return c.classifyIndirect()
		}
		regsNeeded := int((size + 7) / 8)
		if regsNeeded == 0 {
			regsNeeded = 1
		}
		return c.classifyInt(regsNeeded)
	default:
		return nil, fmt.Errorf("abi: cannot classify type kind %s", t.Kind)
	}
}

func (c *classifier) classifyInt(n int) ([]Loc, error) {
	var locs []Loc
	for i := 0; i < n; i++ {
		if c.nextInt < c.cc.IntRegs {
			locs = append(locs, Loc{Class: isle.ClassInt, Reg: c.nextInt})
			c.nextInt++
		} else {
			locs = append(locs, Loc{Stack: true, StackOffset: c.stackOffset})
			c.stackOffset += 8
		}
	}
	return locs, nil
}

func (c *classifier) classifyFloat(n int) ([]Loc, error) {
	var locs []Loc
	for i := 0; i < n; i++ {
		if c.nextFloat < c.cc.FloatRegs {
			locs = append(locs, Loc{Class: isle.ClassFloat, Reg: c.nextFloat})
			c.nextFloat++
		} else {
			locs = append(locs, Loc{Stack: true, StackOffset: c.stackOffset})
			c.stackOffset += 8
		}
	}
	return locs, nil
}

// classifyIndirect marshals one oversized aggregate as a single
// caller-allocated-buffer pointer.
func (c *classifier) classifyIndirect() ([]Loc, error) {
	if c.nextInt < c.cc.IntRegs {
		loc := Loc{Class: isle.ClassInt, Reg: c.nextInt, Indirect: true}
		c.nextInt++
		return []Loc{loc}, nil
	}
	loc := Loc{Stack: true, StackOffset: c.stackOffset, Indirect: true}
	c.stackOffset += 8
	return []Loc{loc}, nil
}
