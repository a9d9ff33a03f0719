package irtext

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/joelreymont/hoist-sub004/internal/types"
)

// printType renders id the way irtext's grammar needs it to
// round-trip. types.Type.String() is good enough for scalars and
// pointers but loses a vector's lane kind ("4x32" could be int or
// float lanes), so irtext spells vectors as "4xi32"/"4xf32" instead —
// a deliberate divergence from the debug Stringer, not a bug in it.
func printType(pool *types.Pool, id types.ID) (string, error) {
	t := pool.Get(id)
	switch t.Kind {
	case types.IntKind:
		return fmt.Sprintf("i%d", t.Width), nil
	case types.FloatKind:
		return fmt.Sprintf("f%d", t.Width), nil
	case types.PointerKind:
		return "ptr", nil
	case types.VectorKind:
		laneKind := pool.LaneKind(id)
		tag := "i"
		if laneKind == types.FloatKind {
			tag = "f"
		}
		return fmt.Sprintf("%dx%s%d", t.LaneCount, tag, t.Width), nil
	default:
		return "", fmt.Errorf("irtext: struct/invalid types have no textual form (kind %s)", t.Kind)
	}
}

// parseType is printType's inverse.
func parseType(pool *types.Pool, text string) (types.ID, error) {
	switch text {
	case "ptr":
		return pool.Pointer(types.InvalidID), nil
	}
	if strings.Contains(text, "x") && !strings.HasPrefix(text, "x") {
		parts := strings.SplitN(text, "x", 2)
		count, err := strconv.Atoi(parts[0])
		if err == nil && len(parts) == 2 {
			lane, err := parseScalar(parts[1])
			if err == nil {
				return pool.Vector(lane, uint16(count)), nil
			}
		}
	}
	return parseScalar(text)
}

func parseScalar(text string) (types.ID, error) {
	if len(text) < 2 {
		return types.InvalidID, fmt.Errorf("irtext: %w: %q", ErrInvalidType, text)
	}
	width, err := strconv.Atoi(text[1:])
	if err != nil {
		return types.InvalidID, fmt.Errorf("irtext: %w: %q", ErrInvalidType, text)
	}
	switch text[0] {
	case 'i':
		switch width {
		case 8:
			return types.I8, nil
		case 16:
			return types.I16, nil
		case 32:
			return types.I32, nil
		case 64:
			return types.I64, nil
		case 128:
			return types.I128, nil
		}
	case 'f':
		switch width {
		case 16:
			return types.F16, nil
		case 32:
			return types.F32, nil
		case 64:
			return types.F64, nil
		case 128:
			return types.F128, nil
		}
	}
	return types.InvalidID, fmt.Errorf("irtext: %w: %q", ErrInvalidType, text)
}
