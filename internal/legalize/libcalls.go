package legalize

import (
	"github.com/joelreymont/hoist-sub004/internal/ir"
	"github.com/joelreymont/hoist-sub004/internal/types"
)

// LibcallKey is the closed table's lookup key: an opcode paired with
// its result type, mapping to {symbol_name, arg_count, return_type}.
type LibcallKey struct {
	Op   ir.Opcode
	Type types.ID
}

// LibcallEntry is one table row.
type LibcallEntry struct {
	Symbol     string
	ArgCount   int
	ReturnType types.ID
}

// LibcallTable is the closed op/type -> libcall mapping.
type LibcallTable map[LibcallKey]LibcallEntry

// DefaultLibcalls builds the standard table: float division symbols
// for a soft-float profile, and wide-integer (I128) division/
// remainder symbols, following the compiler-rt naming convention
// (`__divsf3` for float div, target-triple-appropriate names for
// integer).
func DefaultLibcalls() LibcallTable {
	t := LibcallTable{
		{Op: ir.OpFdiv, Type: types.F32}: {Symbol: "__divsf3", ArgCount: 2, ReturnType: types.F32},
		{Op: ir.OpFdiv, Type: types.F64}: {Symbol: "__divdf3", ArgCount: 2, ReturnType: types.F64},

		{Op: ir.OpSdiv, Type: types.I128}: {Symbol: "__divti3", ArgCount: 2, ReturnType: types.I128},
		{Op: ir.OpUdiv, Type: types.I128}: {Symbol: "__udivti3", ArgCount: 2, ReturnType: types.I128},
		{Op: ir.OpSrem, Type: types.I128}: {Symbol: "__modti3", ArgCount: 2, ReturnType: types.I128},
		{Op: ir.OpUrem, Type: types.I128}: {Symbol: "__umodti3", ArgCount: 2, ReturnType: types.I128},
	}
	return t
}
