package types

import (
	"fmt"

	"github.com/pkg/errors"
)

// Pool interns Types and hands back stable IDs. Primitive scalar types
// are pre-interned at fixed IDs so callers can refer to them as
// constants without a Pool handle; compound types (vector, pointer,
// struct) are hash-consed on first construction so structurally equal
// types always share one ID — the same hash-consing discipline the
// e-graph builds on top of (internal/egraph).
type Pool struct {
	types []Type
	index map[string]ID
}

// Fixed IDs for every primitive scalar and its enumerated widths.
// Index 0 is reserved for Invalid.
const (
	I8 ID = iota + 1
	I16
	I32
	I64
	I128
	F16
	F32
	F64
	F128
)

// NewPool returns a Pool with every primitive scalar pre-interned.
func NewPool() *Pool {
	p := &Pool{
		types: make([]Type, 1, 16), // index 0 = Invalid
		index: make(map[string]ID),
	}
	for _, w := range intWidths {
		p.types = append(p.types, Type{Kind: IntKind, Width: w})
	}
	for _, w := range floatWidths {
		p.types = append(p.types, Type{Kind: FloatKind, Width: w})
	}
	return p
}

// Get returns the Type for id. Panics on an out-of-range id, which
// indicates a caller bug (an ID from a different Pool, or a stale ID
// after... Pools never shrink, so this can only be a foreign ID).
func (p *Pool) Get(id ID) Type {
	if int(id) >= len(p.types) {
		panic(fmt.Sprintf("types: id %d out of range (pool has %d types)", id, len(p.types)))
	}
	return p.types[id]
}

func (p *Pool) intern(key string, t Type) ID {
	if id, ok := p.index[key]; ok {
		return id
	}
	id := ID(len(p.types))
	p.types = append(p.types, t)
	p.index[key] = id
	return id
}

// Vector interns a vector of laneCount lanes of type lane. Panics if
// lane is not itself a scalar int/float, or if the resulting bit width
// is not a power of two <= 256.
func (p *Pool) Vector(lane ID, laneCount uint16) ID {
	lt := p.Get(lane)
	if lt.Kind != IntKind && lt.Kind != FloatKind {
		panic("types: vector lane must be scalar int or float")
	}
	bits := uint32(lt.Width) * uint32(laneCount)
	if bits == 0 || bits&(bits-1) != 0 || bits > 256 {
		panic(fmt.Sprintf("types: vector bit width %d is not a power of two <= 256", bits))
	}
	key := fmt.Sprintf("vec(%d,%d)", lane, laneCount)
	return p.intern(key, Type{Kind: VectorKind, Width: lt.Width, LaneCount: laneCount, Elem: lane})
}

// Pointer interns a pointer to pointee.
func (p *Pool) Pointer(pointee ID) ID {
	key := fmt.Sprintf("ptr(%d)", pointee)
	return p.intern(key, Type{Kind: PointerKind, Elem: pointee})
}

// Struct interns an ordered-field struct type. Offsets are taken as
// given (the caller, typically a front end, computes layout); Pool
// only validates monotonic non-overlap.
func (p *Pool) Struct(fields []StructField) (ID, error) {
	prevEnd := uint32(0)
	for i, f := range fields {
		if f.Offset < prevEnd {
			return InvalidID, errors.Errorf("types: struct field %d overlaps previous field (offset %d < %d)", i, f.Offset, prevEnd)
		}
		prevEnd = f.Offset + p.Get(f.Type).Bytes()
	}
	key := "struct("
	for _, f := range fields {
		key += fmt.Sprintf("%d@%d,", f.Type, f.Offset)
	}
	key += ")"
	fieldsCopy := append([]StructField(nil), fields...)
	return p.intern(key, Type{Kind: StructKind, Fields: fieldsCopy}), nil
}

// SizeOf returns the byte size of t, computed properly for structs
// (last field's offset + its size) rather than Type.Bits's
// conservative estimate.
func (p *Pool) SizeOf(id ID) uint32 {
	t := p.Get(id)
	if t.Kind != StructKind {
		return t.Bytes()
	}
	if len(t.Fields) == 0 {
		return 0
	}
	last := t.Fields[len(t.Fields)-1]
	return last.Offset + p.Get(last.Type).Bytes()
}

// LaneKind returns the Kind of a vector's lane type (IntKind or
// FloatKind), used where Type alone can't distinguish an int vector
// from a float vector of the same shape.
func (p *Pool) LaneKind(id ID) Kind {
	t := p.Get(id)
	if t.Kind != VectorKind {
		return t.Kind
	}
	return p.Get(t.Elem).Kind
}

// Half returns the half-width sibling of id in its int/float family.
func (p *Pool) Half(id ID) (ID, error) {
	t := p.Get(id)
	w, ok := t.HalfWidth()
	if !ok {
		return InvalidID, ErrNoPeerWidth
	}
	return p.scalarOfWidth(t.Kind, w)
}

// Double returns the double-width sibling of id in its int/float family.
func (p *Pool) Double(id ID) (ID, error) {
	t := p.Get(id)
	w, ok := t.DoubleWidth()
	if !ok {
		return InvalidID, ErrNoPeerWidth
	}
	return p.scalarOfWidth(t.Kind, w)
}

func (p *Pool) scalarOfWidth(kind Kind, w uint16) (ID, error) {
	for id := ID(1); int(id) < len(p.types); id++ {
		t := p.types[id]
		if t.Kind == kind && t.Width == w && t.Kind != VectorKind {
			return id, nil
		}
	}
	return InvalidID, errors.Errorf("types: no scalar %s of width %d", kind, w)
}

// AsInt maps a float Type to the same-width integer type, pointwise
// over lanes for a vector.
func (p *Pool) AsInt(id ID) (ID, error) {
	t := p.Get(id)
	switch t.Kind {
	case IntKind:
		return id, nil
	case FloatKind:
		return p.scalarOfWidth(IntKind, t.Width)
	case VectorKind:
		lane, err := p.AsInt(t.Elem)
		if err != nil {
			return InvalidID, err
		}
		return p.Vector(lane, t.LaneCount), nil
	default:
		return InvalidID, errors.Errorf("types: as_int undefined for %s", t.Kind)
	}
}

// AsTruthy yields I8 for scalars and an int-lane vector of the same
// shape for vectors, the result type of comparisons.
func (p *Pool) AsTruthy(id ID) (ID, error) {
	t := p.Get(id)
	if t.Kind == VectorKind {
		return p.Vector(I8, t.LaneCount), nil
	}
	return I8, nil
}

// Equal reports whether a and b name the same interned type.
func Equal(a, b ID) bool { return a == b }
