// Package types implements the closed tagged-union Type model shared by
// every later stage: the IR, the e-graph, legalization and lowering all
// refer to values by Type ID rather than by a pointer graph.
package types

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind discriminates the tagged union. Dispatch on Kind is by switch,
// never by interface method — matching the "tagged variants, not
// inheritance" rule the rest of the back end follows.
type Kind uint8

const (
	Invalid Kind = iota
	IntKind
	FloatKind
	VectorKind
	PointerKind
	StructKind
)

func (k Kind) String() string {
	switch k {
	case IntKind:
		return "int"
	case FloatKind:
		return "float"
	case VectorKind:
		return "vector"
	case PointerKind:
		return "pointer"
	case StructKind:
		return "struct"
	default:
		return "invalid"
	}
}

// ID is an opaque handle into a Pool, dense and monotonically assigned.
type ID uint32

// InvalidID is the zero value; no Pool ever assigns it to a real type.
const InvalidID ID = 0

// StructField is one ordered, byte-offset-tagged member of a struct Type.
type StructField struct {
	Type   ID
	Offset uint32
}

// Type is the closed type union. Only the fields that
// apply to Kind are meaningful; the rest are zero.
type Type struct {
	Kind Kind

	// Int/Float: bit width. Vector: lane bit width (Width * LaneCount
	// must be a power of two <= 256, enforced by Pool.Vector).
	Width uint16

	// Vector only: number of lanes.
	LaneCount uint16

	// Vector: lane element Type ID. Pointer: pointee Type ID.
	Elem ID

	// Struct only: ordered fields with byte offsets.
	Fields []StructField
}

// Bits returns the total bit width of t.
func (t Type) Bits() uint32 {
	switch t.Kind {
	case IntKind, FloatKind:
		return uint32(t.Width)
	case VectorKind:
		return uint32(t.Width) * uint32(t.LaneCount)
	case PointerKind:
		return 64
	case StructKind:
		if len(t.Fields) == 0 {
			return 0
		}
		last := t.Fields[len(t.Fields)-1]
		return last.Offset*8 + 64 // conservative; real size resolved via Pool.SizeOf
	default:
		return 0
	}
}

// Bytes returns Bits()/8: bytes(T) = bits(T)/8.
func (t Type) Bytes() uint32 {
	return t.Bits() / 8
}

// IsInt reports whether t is a scalar integer.
func (t Type) IsInt() bool { return t.Kind == IntKind }

// IsFloat reports whether t is a scalar float.
func (t Type) IsFloat() bool { return t.Kind == FloatKind }

// IsVector reports whether t is a vector.
func (t Type) IsVector() bool { return t.Kind == VectorKind }

// IsIntOrIntVector reports whether t is an integer, or a vector whose
// lanes are integers (LaneKind distinguishes via Pool since Type alone
// does not carry the lane's Kind — see Pool.LaneKind).
func (t Type) IsIntOrIntVector(lane Kind) bool {
	if t.Kind == IntKind {
		return true
	}
	return t.Kind == VectorKind && lane == IntKind
}

// intWidths and floatWidths are the families half_width/double_width
// step through.
var intWidths = []uint16{8, 16, 32, 64, 128}
var floatWidths = []uint16{16, 32, 64, 128}

func neighbor(widths []uint16, w uint16, dir int) (uint16, bool) {
	for i, cur := range widths {
		if cur != w {
			continue
		}
		j := i + dir
		if j < 0 || j >= len(widths) {
			return 0, false
		}
		return widths[j], true
	}
	return 0, false
}

// HalfWidth returns the half-width neighbor in t's family, if any.
func (t Type) HalfWidth() (uint16, bool) {
	switch t.Kind {
	case IntKind:
		return neighbor(intWidths, t.Width, -1)
	case FloatKind:
		return neighbor(floatWidths, t.Width, -1)
	default:
		return 0, false
	}
}

// DoubleWidth returns the double-width neighbor in t's family, if any.
func (t Type) DoubleWidth() (uint16, bool) {
	switch t.Kind {
	case IntKind:
		return neighbor(intWidths, t.Width, 1)
	case FloatKind:
		return neighbor(floatWidths, t.Width, 1)
	default:
		return 0, false
	}
}

// ErrNoPeerWidth is returned by Pool.Half/Pool.Double when the family
// has no neighbor at the requested width (e.g. I128 has no double).
var ErrNoPeerWidth = errors.New("types: no neighbor width in family")

func (t Type) String() string {
	switch t.Kind {
	case IntKind:
		return fmt.Sprintf("i%d", t.Width)
	case FloatKind:
		return fmt.Sprintf("f%d", t.Width)
	case VectorKind:
		return fmt.Sprintf("%dx%d", t.LaneCount, t.Width)
	case PointerKind:
		return "ptr"
	case StructKind:
		return fmt.Sprintf("struct{%d fields}", len(t.Fields))
	default:
		return "invalid"
	}
}
