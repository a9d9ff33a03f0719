package ir

// Opcode enumerates every IR instruction opcode.
// As with Type.Kind, dispatch is by switch on Opcode, never by
// interface method.
type Opcode uint16

const (
	OpInvalid Opcode = iota

	// Constants (nullary{opcode,imm}).
	OpIconst // Imm holds the integer value
	OpFconst // Imm holds the raw bit pattern of the float

	// Integer arithmetic (binary{opcode,args[2]}), and their
	// register+immediate variants (unary_imm{opcode,arg,imm}).
	OpIadd
	OpIsub
	OpImul
	OpSdiv
	OpUdiv
	OpSrem
	OpUrem
	OpIand
	OpIor
	OpIxor
	OpIshl
	OpUshr
	OpSshr
	OpIaddImm
	OpIandImm
	OpIorImm
	OpIxorImm
	OpIshlImm
	OpUshrImm
	OpSshrImm

	// Float arithmetic.
	OpFadd
	OpFsub
	OpFmul
	OpFdiv
	OpFneg
	OpFabs

	// Comparisons.
	OpIcmp // int_compare{cond,args[2]}
	OpFcmp // same shape, cond is a FloatCC

	// Conversions (unary{opcode,arg}).
	OpSextend
	OpUextend
	OpIreduce
	OpFpromote
	OpFdemote
	OpFcvtToSint
	OpFcvtToUint
	OpFcvtFromSint
	OpFcvtFromUint
	OpBitcast
	OpBmask

	// Control flow.
	OpSelect // select{cond,ifTrue,ifFalse}: binary-shaped plus cond arg
	OpBrif   // branch{cond,then_dest,else_dest}
	OpJump   // jump{dest,args}
	OpReturn // return{args}

	// Calls.
	OpCall

	// Memory.
	OpLoad
	OpStore
	OpStackAlloc

	// I128 pseudo-ops.
	OpIconcat
	OpIsplit

	// Thread-local storage.
	OpTlsValue

	// Block parameter pseudo-opcode: never appears in the layout as a
	// real instruction and is not referenced by any code; block
	// parameters are identified through DFG.ValueIsBlockParam instead.
	opBlockParamSentinel
)

var opcodeNames = map[Opcode]string{
	OpIconst: "iconst", OpFconst: "fconst",
	OpIadd: "iadd", OpIsub: "isub", OpImul: "imul",
	OpSdiv: "sdiv", OpUdiv: "udiv", OpSrem: "srem", OpUrem: "urem",
	OpIand: "iand", OpIor: "ior", OpIxor: "ixor",
	OpIshl: "ishl", OpUshr: "ushr", OpSshr: "sshr",
	OpIaddImm: "iadd_imm", OpIandImm: "iand_imm", OpIorImm: "ior_imm",
	OpIxorImm: "ixor_imm", OpIshlImm: "ishl_imm", OpUshrImm: "ushr_imm", OpSshrImm: "sshr_imm",
	OpFadd: "fadd", OpFsub: "fsub", OpFmul: "fmul", OpFdiv: "fdiv",
	OpFneg: "fneg", OpFabs: "fabs",
	OpIcmp: "icmp", OpFcmp: "fcmp",
	OpSextend: "sextend", OpUextend: "uextend", OpIreduce: "ireduce",
	OpFpromote: "fpromote", OpFdemote: "fdemote",
	OpFcvtToSint: "fcvt_to_sint", OpFcvtToUint: "fcvt_to_uint",
	OpFcvtFromSint: "fcvt_from_sint", OpFcvtFromUint: "fcvt_from_uint",
	OpBitcast: "bitcast", OpBmask: "bmask",
	OpSelect: "select", OpBrif: "brif", OpJump: "jump", OpReturn: "return",
	OpCall: "call", OpLoad: "load", OpStore: "store", OpStackAlloc: "stack_alloc",
	OpIconcat: "iconcat", OpIsplit: "isplit", OpTlsValue: "tls_value",
}

func (op Opcode) String() string {
	if name, ok := opcodeNames[op]; ok {
		return name
	}
	return "invalid"
}

// IsTerminator reports whether op ends a block.
func (op Opcode) IsTerminator() bool {
	switch op {
	case OpBrif, OpJump, OpReturn:
		return true
	default:
		return false
	}
}

// Commutative reports whether op's two arguments may be freely
// swapped, used by the e-graph's commutativity rules.
func (op Opcode) Commutative() bool {
	switch op {
	case OpIadd, OpImul, OpIand, OpIor, OpIxor, OpFadd, OpFmul:
		return true
	default:
		return false
	}
}

// IntCC is the target-independent integer condition code named on an
// `icmp`/`brif` pair.
type IntCC uint8

const (
	IntEQ IntCC = iota
	IntNE
	IntSLT
	IntSGE
	IntSGT
	IntSLE
	IntULT
	IntUGE
	IntUGT
	IntULE
)

var intCCNames = [...]string{"eq", "ne", "slt", "sge", "sgt", "sle", "ult", "uge", "ugt", "ule"}

func (c IntCC) String() string {
	if int(c) < len(intCCNames) {
		return intCCNames[c]
	}
	return "invalid_int_cc"
}

// Inverse returns the condition that holds exactly when c does not.
func (c IntCC) Inverse() IntCC {
	switch c {
	case IntEQ:
		return IntNE
	case IntNE:
		return IntEQ
	case IntSLT:
		return IntSGE
	case IntSGE:
		return IntSLT
	case IntSGT:
		return IntSLE
	case IntSLE:
		return IntSGT
	case IntULT:
		return IntUGE
	case IntUGE:
		return IntULT
	case IntUGT:
		return IntULE
	case IntULE:
		return IntUGT
	default:
		return c
	}
}

// FloatCC is the target-independent float condition code named on an
// `fcmp`.
type FloatCC uint8

const (
	FloatEQ FloatCC = iota
	FloatNE
	FloatLT
	FloatGT
	FloatLE
	FloatGE
	FloatOrdered
	FloatUnordered
	FloatUEQ
	FloatONE
	FloatULT
	FloatULE
	FloatUGT
	FloatUGE
)

var floatCCNames = [...]string{
	"eq", "ne", "lt", "gt", "le", "ge", "ord", "uno",
	"ueq", "one", "ult", "ule", "ugt", "uge",
}

func (c FloatCC) String() string {
	if int(c) < len(floatCCNames) {
		return floatCCNames[c]
	}
	return "invalid_float_cc"
}

// Unordered reports whether c is one of the unordered-variant codes
// that a target may need to expand rather than map to a single
// native condition.
func (c FloatCC) Unordered() bool {
	switch c {
	case FloatUEQ, FloatONE, FloatULT, FloatULE, FloatUGT, FloatUGE:
		return true
	default:
		return false
	}
}

// MemFlags carries alignment/aliasing hints for load/store, mirrored
// through lowering unchanged.
type MemFlags struct {
	Aligned bool
	Notrap  bool
}
