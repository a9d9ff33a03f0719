package ir

import "github.com/joelreymont/hoist-sub004/internal/types"

// InstData is the closed tagged union of instruction shapes. Only
// the fields relevant to Opcode are populated; Go has no sum type, so
// the union is modeled as one struct discriminated by Opcode,
// dispatched by switch rather than an interface hierarchy.
type InstData struct {
	Opcode Opcode

	// Operand values, in schema order. Meaning depends on Opcode:
	//   unary/unary_imm: Args[0]
	//   binary/int_compare/fcmp: Args[0], Args[1]
	//   select: Args[0]=cond, Args[1]=ifTrue, Args[2]=ifFalse
	//   call: Args = callee arguments
	//   load: Args[0] = address
	//   store: Args[0] = address, Args[1] = value
	//   return: Args = returned values
	//   iconcat: Args[0]=lo, Args[1]=hi
	//   isplit: Args[0] = I128 value
	Args []Value

	// Imm carries the literal for nullary/unary_imm instructions: the
	// integer value for iconst, the raw bit pattern for fconst, or the
	// shift/mask amount for an _imm arithmetic variant.
	Imm int64

	// IntCond / FloatCond: exactly one is meaningful, selected by
	// Opcode (Icmp/Brif use IntCond unless FloatCC is set via the
	// IsFloatCond flag; Fcmp always uses FloatCond).
	IntCond     IntCC
	FloatCond   FloatCC
	IsFloatCond bool

	// Branch/jump targets.
	Then     Block
	ThenArgs []Value
	Else     Block
	ElseArgs []Value

	// Call target.
	Sig SigRef

	// load/store.
	Offset int32
	Flags  MemFlags

	// stack_alloc.
	Size  uint32
	Align uint8

	// ResultTypes gives the type of each produced Value, in order.
	// Most opcodes produce exactly one result; isplit produces two
	// (lo, hi); jump/branch/store/return produce none.
	ResultTypes []types.ID
}

// valueDef records how a Value came to exist: either as the Nth
// parameter of a Block, or as the Nth result of an Inst.
type valueDef struct {
	isParam bool
	block   Block // isParam
	index   int   // isParam: param index; else: result index
	inst    Inst  // !isParam
	typ     types.ID
}

// DFG is the dense-arena data-flow graph for one Function: Values,
// Instructions and Blocks, plus external signatures referenced by
// call instructions. Entities live as long as the Function.
type DFG struct {
	insts      []InstData // index 0 unused (NilInst sentinel)
	values     []valueDef // index 0 unused (NilValue sentinel)
	blockParam [][]Value  // per-block ordered list of parameter Values
	blockCount int

	sigs []ExtSignature // index 0 unused (SigRef 0 sentinel)
}

// NewDFG returns an empty DFG with sentinel entries at index 0 for
// every arena, so the zero Value/Inst/Block/SigRef never aliases a
// real entity.
func NewDFG() *DFG {
	return &DFG{
		insts:      make([]InstData, 1),
		values:     make([]valueDef, 1),
		blockParam: make([][]Value, 1),
		sigs:       make([]ExtSignature, 1),
	}
}

// CreateBlock allocates a new, empty Block (no parameters yet, not
// yet placed in any Layout).
func (d *DFG) CreateBlock() Block {
	d.blockParam = append(d.blockParam, nil)
	id := Block(len(d.blockParam) - 1)
	d.blockCount++
	return id
}

// NumBlocks returns the number of blocks ever created (including ones
// not appended to a Layout).
func (d *DFG) NumBlocks() int { return d.blockCount }

// AppendBlockParam adds a new typed parameter to the end of block's
// parameter list and returns the fresh Value that names it.
func (d *DFG) AppendBlockParam(block Block, typ types.ID) Value {
	index := len(d.blockParam[block])
	d.values = append(d.values, valueDef{isParam: true, block: block, index: index, typ: typ})
	v := Value(len(d.values) - 1)
	d.blockParam[block] = append(d.blockParam[block], v)
	return v
}

// BlockParams returns block's ordered parameter Values.
func (d *DFG) BlockParams(block Block) []Value {
	return d.blockParam[block]
}

// CreateInst appends a new instruction with the given data and
// allocates one fresh Value per entry in data.ResultTypes. It returns
// the Inst id and the allocated result Values, in order.
func (d *DFG) CreateInst(data InstData) (Inst, []Value) {
	d.insts = append(d.insts, data)
	inst := Inst(len(d.insts) - 1)

	results := make([]Value, len(data.ResultTypes))
	for i, t := range data.ResultTypes {
		d.values = append(d.values, valueDef{isParam: false, inst: inst, index: i, typ: t})
		results[i] = Value(len(d.values) - 1)
	}
	return inst, results
}

// Inst returns the InstData for inst.
func (d *DFG) Inst(inst Inst) InstData { return d.insts[inst] }

// SetInst replaces the InstData for inst in place (used by the op
// legalizer and target legalizer to rewrite instructions).
func (d *DFG) SetInst(inst Inst, data InstData) { d.insts[inst] = data }

// InstResults returns every Value produced by inst, in result-index
// order, by a linear scan over the whole value arena; CreateInst's
// return value should be preferred by callers that already have it.
func (d *DFG) InstResults(inst Inst) []Value {
	var out []Value
	for v := Value(1); int(v) < len(d.values); v++ {
		vd := d.values[v]
		if !vd.isParam && vd.inst == inst {
			out = append(out, v)
		}
	}
	return out
}

// ValueType returns the type of a Value, whether it is a block
// parameter or an instruction result.
func (d *DFG) ValueType(v Value) types.ID { return d.values[v].typ }

// ValueIsBlockParam reports whether v is a block parameter, and if so
// returns its owning block and parameter index.
func (d *DFG) ValueIsBlockParam(v Value) (block Block, index int, ok bool) {
	vd := d.values[v]
	if !vd.isParam {
		return NilBlock, 0, false
	}
	return vd.block, vd.index, true
}

// ValueDef returns the instruction that defines v and its result
// index, or ok=false if v is a block parameter instead.
func (d *DFG) ValueDef(v Value) (inst Inst, index int, ok bool) {
	vd := d.values[v]
	if vd.isParam {
		return NilInst, 0, false
	}
	return vd.inst, vd.index, true
}

// NumValues returns the number of Values ever allocated (including the
// sentinel at index 0).
func (d *DFG) NumValues() int { return len(d.values) }

// DeclareSignature interns an external signature and returns its SigRef.
func (d *DFG) DeclareSignature(name string, sig Signature) SigRef {
	d.sigs = append(d.sigs, ExtSignature{Name: name, Sig: sig})
	return SigRef(len(d.sigs) - 1)
}

// Signature returns the ExtSignature named by ref.
func (d *DFG) Signature(ref SigRef) ExtSignature { return d.sigs[ref] }
