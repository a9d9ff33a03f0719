package abi

import (
	"testing"

	"github.com/joelreymont/hoist-sub004/internal/isle"
	"github.com/joelreymont/hoist-sub004/internal/types"
)

// TestHFAReturnMarshalsFieldsInOrder covers returning an
// HFA{f32, f32} marshals the two fields into V0 and V1 in that order.
func TestHFAReturnMarshalsFieldsInOrder(t *testing.T) {
	pool := types.NewPool()
	hfa, err := pool.Struct([]types.StructField{
		{Type: types.F32, Offset: 0},
		{Type: types.F32, Offset: 4},
	})
	if err != nil {
		t.Fatalf("Struct: %v", err)
	}
	locs, err := AAPCS64().ClassifyReturns(pool, []types.ID{hfa})
	if err != nil {
		t.Fatalf("ClassifyReturns: %v", err)
	}
	want := []Loc{
		{Class: isle.ClassFloat, Reg: 0},
		{Class: isle.ClassFloat, Reg: 1},
	}
	if len(locs) != len(want) {
		t.Fatalf("got %d locs, want %d", len(locs), len(want))
	}
	for i := range want {
		if locs[i] != want[i] {
			t.Fatalf("loc %d: got %+v, want %+v", i, locs[i], want[i])
		}
	}
}

func TestIsHFARejectsMixedFieldTypes(t *testing.T) {
	pool := types.NewPool()
	mixed, err := pool.Struct([]types.StructField{
		{Type: types.F32, Offset: 0},
		{Type: types.F64, Offset: 8},
	})
	if err != nil {
		t.Fatalf("Struct: %v", err)
	}
	if _, _, ok := IsHFA(pool, mixed); ok {
		t.Fatalf("expected a mixed-width struct to not classify as an HFA")
	}
}

func TestIsHFARejectsMoreThanFourFields(t *testing.T) {
	pool := types.NewPool()
	fields := make([]types.StructField, 5)
	for i := range fields {
		fields[i] = types.StructField{Type: types.F32, Offset: uint32(i * 4)}
	}
	big, err := pool.Struct(fields)
	if err != nil {
		t.Fatalf("Struct: %v", err)
	}
	if _, _, ok := IsHFA(pool, big); ok {
		t.Fatalf("expected a 5-field struct to not classify as an HFA")
	}
}

func TestIntegerReturnUsesX0(t *testing.T) {
	pool := types.NewPool()
	locs, err := AAPCS64().ClassifyReturns(pool, []types.ID{types.I64})
	if err != nil {
		t.Fatalf("ClassifyReturns: %v", err)
	}
	if len(locs) != 1 || locs[0] != (Loc{Class: isle.ClassInt, Reg: 0}) {
		t.Fatalf("got %+v, want a single X0 loc", locs)
	}
}

func TestI128ReturnSplitsAcrossX0AndX1(t *testing.T) {
	pool := types.NewPool()
	locs, err := AAPCS64().ClassifyReturns(pool, []types.ID{types.I128})
	if err != nil {
		t.Fatalf("ClassifyReturns: %v", err)
	}
	want := []Loc{
		{Class: isle.ClassInt, Reg: 0},
		{Class: isle.ClassInt, Reg: 1},
	}
	if len(locs) != 2 || locs[0] != want[0] || locs[1] != want[1] {
		t.Fatalf("got %+v, want %+v", locs, want)
	}
}

func TestMixedIntFloatReturnsClassifyPerPosition(t *testing.T) {
	pool := types.NewPool()
	locs, err := AAPCS64().ClassifyReturns(pool, []types.ID{types.I64, types.F64, types.I64})
	if err != nil {
		t.Fatalf("ClassifyReturns: %v", err)
	}
	want := []Loc{
		{Class: isle.ClassInt, Reg: 0},
		{Class: isle.ClassFloat, Reg: 0},
		{Class: isle.ClassInt, Reg: 1},
	}
	for i := range want {
		if locs[i] != want[i] {
			t.Fatalf("loc %d: got %+v, want %+v", i, locs[i], want[i])
		}
	}
}

// TestOversizedAggregateUsesHiddenPointer covers 
// "aggregates that exceed the register window are passed by hidden
// pointer": a non-HFA struct over 16 bytes collapses to one indirect
// integer-class location instead of spilling its fields directly.
func TestOversizedAggregateUsesHiddenPointer(t *testing.T) {
	pool := types.NewPool()
	big, err := pool.Struct([]types.StructField{
		{Type: types.I64, Offset: 0},
		{Type: types.I64, Offset: 8},
		{Type: types.I64, Offset: 16},
	})
	if err != nil {
		t.Fatalf("Struct: %v", err)
	}
	locs, err := AAPCS64().ClassifyReturns(pool, []types.ID{big})
	if err != nil {
		t.Fatalf("ClassifyReturns: %v", err)
	}
	if len(locs) != 1 || !locs[0].Indirect || locs[0].Class != isle.ClassInt {
		t.Fatalf("got %+v, want a single indirect integer-class loc", locs)
	}
}

func TestSmallAggregateFitsInTwoIntRegisters(t *testing.T) {
	pool := types.NewPool()
	small, err := pool.Struct([]types.StructField{
		{Type: types.I64, Offset: 0},
		{Type: types.I32, Offset: 8},
	})
	if err != nil {
		t.Fatalf("Struct: %v", err)
	}
	locs, err := AAPCS64().ClassifyReturns(pool, []types.ID{small})
	if err != nil {
		t.Fatalf("ClassifyReturns: %v", err)
	}
	if len(locs) != 2 {
		t.Fatalf("got %d locs, want 2", len(locs))
	}
	for _, l := range locs {
		if l.Class != isle.ClassInt || l.Indirect {
			t.Fatalf("got %+v, want direct int-class locs", locs)
		}
	}
}

func TestArgsOverflowToStack(t *testing.T) {
	pool := types.NewPool()
	var params []types.ID
	for i := 0; i < 10; i++ {
		params = append(params, types.I64)
	}
	locs, err := AAPCS64().ClassifyParams(pool, params)
	if err != nil {
		t.Fatalf("ClassifyParams: %v", err)
	}
	for i := 0; i < 8; i++ {
		if locs[i].Stack {
			t.Fatalf("arg %d: expected a register, got a stack loc", i)
		}
	}
	for i := 8; i < 10; i++ {
		if !locs[i].Stack {
			t.Fatalf("arg %d: expected a stack loc once registers are exhausted", i)
		}
	}
}
