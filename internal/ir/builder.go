package ir

import "github.com/joelreymont/hoist-sub004/internal/types"

// Builder is a cursor-based convenience API for constructing a
// Function's DFG/Layout together, the way a front end (or a test)
// assembles IR one instruction at a time. It is not itself part of
// the Function's persistent state.
type Builder struct {
	F       *Function
	current Block
}

// NewBuilder returns a Builder over f with no current block.
func NewBuilder(f *Function) *Builder {
	return &Builder{F: f}
}

// CreateBlock allocates a new block (not yet placed in the layout).
func (b *Builder) CreateBlock() Block {
	return b.F.DFG.CreateBlock()
}

// AppendBlockParam adds a typed parameter to block.
func (b *Builder) AppendBlockParam(block Block, typ types.ID) Value {
	return b.F.DFG.AppendBlockParam(block, typ)
}

// SwitchToBlock appends block to the layout (if not already present)
// and makes it the current insertion point.
func (b *Builder) SwitchToBlock(block Block) {
	if b.F.Layout.BlockOrder(block) < 0 {
		b.F.Layout.AppendBlock(block)
	}
	b.current = block
}

// CurrentBlock returns the builder's current insertion-point block.
func (b *Builder) CurrentBlock() Block { return b.current }

func (b *Builder) emit(data InstData) (Inst, []Value) {
	inst, results := b.F.DFG.CreateInst(data)
	b.F.Layout.AppendInst(b.current, inst)
	return inst, results
}

// Iconst emits an `iconst` and returns its result Value.
func (b *Builder) Iconst(typ types.ID, imm int64) Value {
	_, r := b.emit(InstData{Opcode: OpIconst, Imm: imm, ResultTypes: []types.ID{typ}})
	return r[0]
}

// Fconst emits an `fconst` (imm is the raw bit pattern).
func (b *Builder) Fconst(typ types.ID, bits int64) Value {
	_, r := b.emit(InstData{Opcode: OpFconst, Imm: bits, ResultTypes: []types.ID{typ}})
	return r[0]
}

// Binary emits a binary arithmetic/logic op over two equally-typed
// operands, producing one result of typ.
func (b *Builder) Binary(op Opcode, typ types.ID, x, y Value) Value {
	_, r := b.emit(InstData{Opcode: op, Args: []Value{x, y}, ResultTypes: []types.ID{typ}})
	return r[0]
}

// BinaryImm emits a register+immediate arithmetic op.
func (b *Builder) BinaryImm(op Opcode, typ types.ID, x Value, imm int64) Value {
	_, r := b.emit(InstData{Opcode: op, Args: []Value{x}, Imm: imm, ResultTypes: []types.ID{typ}})
	return r[0]
}

// Unary emits a single-operand op (conversions, bitcast, bmask, fneg, fabs).
func (b *Builder) Unary(op Opcode, typ types.ID, x Value) Value {
	_, r := b.emit(InstData{Opcode: op, Args: []Value{x}, ResultTypes: []types.ID{typ}})
	return r[0]
}

// Icmp emits an `int_compare`.
func (b *Builder) Icmp(cond IntCC, truthy types.ID, x, y Value) Value {
	_, r := b.emit(InstData{Opcode: OpIcmp, IntCond: cond, Args: []Value{x, y}, ResultTypes: []types.ID{truthy}})
	return r[0]
}

// Fcmp emits a float compare.
func (b *Builder) Fcmp(cond FloatCC, truthy types.ID, x, y Value) Value {
	_, r := b.emit(InstData{Opcode: OpFcmp, FloatCond: cond, IsFloatCond: true, Args: []Value{x, y}, ResultTypes: []types.ID{truthy}})
	return r[0]
}

// Select emits a `select{cond,ifTrue,ifFalse}`.
func (b *Builder) Select(typ types.ID, cond, ifTrue, ifFalse Value) Value {
	_, r := b.emit(InstData{Opcode: OpSelect, Args: []Value{cond, ifTrue, ifFalse}, ResultTypes: []types.ID{typ}})
	return r[0]
}

// Load emits a `load{ty,addr,offset,flags}`.
func (b *Builder) Load(typ types.ID, addr Value, offset int32, flags MemFlags) Value {
	_, r := b.emit(InstData{Opcode: OpLoad, Args: []Value{addr}, Offset: offset, Flags: flags, ResultTypes: []types.ID{typ}})
	return r[0]
}

// Store emits a `store{addr,value,offset,flags}`.
func (b *Builder) Store(addr, value Value, offset int32, flags MemFlags) Inst {
	inst, _ := b.emit(InstData{Opcode: OpStore, Args: []Value{addr, value}, Offset: offset, Flags: flags})
	return inst
}

// StackAlloc emits a `stack_alloc{size,align}`, returning a pointer Value.
func (b *Builder) StackAlloc(ptrType types.ID, size uint32, align uint8) Value {
	_, r := b.emit(InstData{Opcode: OpStackAlloc, Size: size, Align: align, ResultTypes: []types.ID{ptrType}})
	return r[0]
}

// Call emits a `call{sig,args}`, returning the callee's result Values
// in order.
func (b *Builder) Call(sig SigRef, args []Value, resultTypes []types.ID) []Value {
	_, r := b.emit(InstData{Opcode: OpCall, Sig: sig, Args: args, ResultTypes: resultTypes})
	return r
}

// Jump emits a `jump{dest,args}` terminator.
func (b *Builder) Jump(dest Block, args []Value) Inst {
	inst, _ := b.emit(InstData{Opcode: OpJump, Then: dest, ThenArgs: args})
	return inst
}

// Brif emits a `branch{cond,then_dest,else_dest}` terminator.
func (b *Builder) Brif(cond Value, then Block, thenArgs []Value, els Block, elseArgs []Value) Inst {
	inst, _ := b.emit(InstData{Opcode: OpBrif, Args: []Value{cond}, Then: then, ThenArgs: thenArgs, Else: els, ElseArgs: elseArgs})
	return inst
}

// Return emits a `return{args}` terminator.
func (b *Builder) Return(args []Value) Inst {
	inst, _ := b.emit(InstData{Opcode: OpReturn, Args: args})
	return inst
}

// Iconcat emits `iconcat(lo, hi)`, mapping to a two-VReg ValueRegs
// downstream.
func (b *Builder) Iconcat(i128 types.ID, lo, hi Value) Value {
	_, r := b.emit(InstData{Opcode: OpIconcat, Args: []Value{lo, hi}, ResultTypes: []types.ID{i128}})
	return r[0]
}

// Isplit emits `isplit`, returning (lo, hi).
func (b *Builder) Isplit(half types.ID, v Value) (lo, hi Value) {
	_, r := b.emit(InstData{Opcode: OpIsplit, Args: []Value{v}, ResultTypes: []types.ID{half, half}})
	return r[0], r[1]
}

// TlsValue emits a `tls_value` access to a thread-local slot at the
// given (pre-legalization) byte offset from the thread pointer.
func (b *Builder) TlsValue(ptrType types.ID, offset int64) Value {
	_, r := b.emit(InstData{Opcode: OpTlsValue, Imm: offset, ResultTypes: []types.ID{ptrType}})
	return r[0]
}
