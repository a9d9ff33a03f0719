package ir

// Layout is the ordered placement of blocks, and of instructions
// within each block. It owns no entities itself —
// those live in the DFG — only their order.
type Layout struct {
	blockOrder []Block
	blockPos   map[Block]int // block -> index into blockOrder

	instsOf map[Block][]Inst
	instPos map[Inst]int // inst -> index into instsOf[owning block]
	instOwn map[Inst]Block
}

// NewLayout returns an empty Layout.
func NewLayout() *Layout {
	return &Layout{
		blockPos: make(map[Block]int),
		instsOf:  make(map[Block][]Inst),
		instPos:  make(map[Inst]int),
		instOwn:  make(map[Inst]Block),
	}
}

// AppendBlock places block at the end of the layout. The first block
// ever appended is the entry block.
func (l *Layout) AppendBlock(block Block) {
	l.blockPos[block] = len(l.blockOrder)
	l.blockOrder = append(l.blockOrder, block)
	if _, ok := l.instsOf[block]; !ok {
		l.instsOf[block] = nil
	}
}

// Blocks returns blocks in layout order.
func (l *Layout) Blocks() []Block { return l.blockOrder }

// EntryBlock returns the first block appended, or NilBlock if the
// layout is empty.
func (l *Layout) EntryBlock() Block {
	if len(l.blockOrder) == 0 {
		return NilBlock
	}
	return l.blockOrder[0]
}

// BlockOrder returns the position of block in the layout, or -1.
func (l *Layout) BlockOrder(block Block) int {
	if pos, ok := l.blockPos[block]; ok {
		return pos
	}
	return -1
}

// AppendInst places inst at the end of block's instruction list.
func (l *Layout) AppendInst(block Block, inst Inst) {
	l.instPos[inst] = len(l.instsOf[block])
	l.instsOf[block] = append(l.instsOf[block], inst)
	l.instOwn[inst] = block
}

// Insts returns block's instructions in order.
func (l *Layout) Insts(block Block) []Inst { return l.instsOf[block] }

// InstBlock returns the block that owns inst.
func (l *Layout) InstBlock(inst Inst) (Block, bool) {
	b, ok := l.instOwn[inst]
	return b, ok
}

// InstOrder returns inst's position within its owning block.
func (l *Layout) InstOrder(inst Inst) int {
	return l.instPos[inst]
}

// LastInst returns the final (terminator, once verified) instruction
// of block, or NilInst if the block has no instructions yet.
func (l *Layout) LastInst(block Block) Inst {
	insts := l.instsOf[block]
	if len(insts) == 0 {
		return NilInst
	}
	return insts[len(insts)-1]
}

// Dominates reports whether def (at block defBlock, position
// defPos within it) dominates use (at block useBlock, position
// usePos), under the simplifying total order the verifier uses:
// layout order between blocks, program order within a block. This is a syntactic approximation sufficient for a
// straight-line/structured layout where blocks appear in reverse
// postorder; it does not attempt general CFG dominance.
func (l *Layout) Dominates(defBlock Block, defPos int, useBlock Block, usePos int) bool {
	if defBlock == useBlock {
		return defPos <= usePos
	}
	return l.BlockOrder(defBlock) < l.BlockOrder(useBlock)
}
