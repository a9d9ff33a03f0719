// Package isle implements the ISLE-style pattern-based lowering
// framework: it walks an IR function in layout order and, instruction
// by instruction, invokes a target backend's ordered rule table to
// emit target instructions over virtual registers.
package isle

import (
	"fmt"
	"sort"

	"github.com/joelreymont/hoist-sub004/internal/coverage"
	"github.com/joelreymont/hoist-sub004/internal/ir"
	"github.com/joelreymont/hoist-sub004/internal/target"
	"github.com/joelreymont/hoist-sub004/internal/types"
)

// RegClass names a physical/virtual register's class.
type RegClass uint8

const (
	ClassInt RegClass = iota
	ClassFloat
	ClassVector
)

func (c RegClass) String() string {
	switch c {
	case ClassInt:
		return "int"
	case ClassFloat:
		return "float"
	case ClassVector:
		return "vector"
	default:
		return "invalid"
	}
}

// VReg is a virtual register: pre-allocation, dense, per-compile.
type VReg struct {
	Class RegClass
	Num   uint32
}

func (v VReg) String() string { return fmt.Sprintf("v%d:%s", v.Num, v.Class) }

// ValueRegs is the one-or-two-VReg mapping recorded for each IR
// result.
type ValueRegs []VReg

// MInst is one emitted target instruction: a generic, target-agnostic
// shape (mnemonic plus def/use VRegs, an immediate and a condition
// code) that every concrete encoder (internal/mach/arm64,
// internal/mach/riscv64) interprets according to its own opcode table.
type MInst struct {
	Op   string
	Defs []VReg
	Uses []VReg

	Imm         int64
	Cond        target.CondCode
	IsFloatCond bool

	// Call target (Op == "call"/"bl" et al.).
	CallSymbol string

	// Branch/jump targets, resolved to VCode block indices by the
	// pre-pass in LowerFunction.
	TargetBlocks []int
}

// VCodeBlock is one lowered block: its sequence of MInsts plus the
// VRegs bound to its IR block parameters.
type VCodeBlock struct {
	Params []VReg
	Insts  []MInst
}

// VCode is the lowering output for one function: one VCodeBlock per
// IR block, in the same order.
type VCode struct {
	Blocks  []VCodeBlock
	NumVReg uint32
}

// Error is the typed lowering error ("no_matching_rule",
// "illegal_immediate").
type Error struct {
	Kind    string
	Inst    ir.Inst
	Opcode  ir.Opcode
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("isle: %s at inst %d (%s): %s", e.Kind, e.Inst, e.Opcode, e.Message)
}

// Rule is one (pattern, constructor, priority, rule_id) entry. Try
// reports whether its pattern matched instA; if
// so it must have already emitted instructions and recorded result
// ValueRegs via ctx before returning true.
type Rule struct {
	ID       int
	Priority int
	Try      func(ctx *LowerCtx, inst ir.Inst, data ir.InstData, results []ir.Value) (bool, error)
}

// RuleTable maps each opcode to its rules, tried in descending
// priority with ties broken by declaration order.
type RuleTable map[ir.Opcode][]Rule

// Sort stabilizes every opcode's rule slice by descending priority,
// preserving declaration order among equal priorities (Go's sort.Stable).
func (rt RuleTable) Sort() {
	for op, rules := range rt {
		cp := append([]Rule(nil), rules...)
		sort.SliceStable(cp, func(i, j int) bool { return cp[i].Priority > cp[j].Priority })
		rt[op] = cp
	}
}

// Backend is a target's lowering contribution: its rule table plus the
// branch/terminator lowering function. lower_inst is RuleTable-driven
// generically by LowerFunction; only LowerBranch is target-supplied
// directly, since terminators don't need priority-ordered pattern
// matching the way arithmetic ops do.
type Backend struct {
	Target      target.Target
	Rules       RuleTable
	LowerBranch func(ctx *LowerCtx, inst ir.Inst, data ir.InstData) error
}

// LowerCtx is the per-function lowering state.
type LowerCtx struct {
	Pool *types.Pool
	F    *ir.Function

	backend  *Backend
	coverage *coverage.Tracker

	vcode        *VCode
	blockIndex   map[ir.Block]int
	currentBlock int
	nextVReg     uint32
	valueRegs    map[ir.Value]ValueRegs
}

// AllocVReg returns a fresh VReg of the given class.
func (c *LowerCtx) AllocVReg(class RegClass) VReg {
	v := VReg{Class: class, Num: c.nextVReg}
	c.nextVReg++
	c.vcode.NumVReg = c.nextVReg
	return v
}

// DefineResult records the ValueRegs produced for an IR result.
func (c *LowerCtx) DefineResult(v ir.Value, regs ValueRegs) {
	c.valueRegs[v] = regs
}

// ValueRegs returns the VRegs previously bound to v, or ok=false if v
// has not been lowered yet (a forward reference, which well-formed
// SSA in layout order never produces for non-block-param values).
func (c *LowerCtx) ValueRegs(v ir.Value) (ValueRegs, bool) {
	regs, ok := c.valueRegs[v]
	return regs, ok
}

// Emit appends inst to the current VCode block.
func (c *LowerCtx) Emit(inst MInst) {
	c.vcode.Blocks[c.currentBlock].Insts = append(c.vcode.Blocks[c.currentBlock].Insts, inst)
}

// BlockIndex returns the VCode block index for an IR block, resolved
// by LowerFunction's pre-pass.
func (c *LowerCtx) BlockIndex(b ir.Block) int { return c.blockIndex[b] }

// MoveArgsTo emits one "mov" per arg into dest's block-param VRegs, in
// order, ahead of the jump/branch instruction that targets it — the
// parallel-copy step SSA block-argument passing requires before a
// control transfer.
func (c *LowerCtx) MoveArgsTo(dest ir.Block, args []ir.Value) error {
	destIdx := c.BlockIndex(dest)
	params := c.vcode.Blocks[destIdx].Params
	for i, a := range args {
		src, err := c.Use(a)
		if err != nil {
			return err
		}
		c.Emit(MInst{Op: "mov", Defs: []VReg{params[i]}, Uses: []VReg{src}})
	}
	return nil
}

// Use returns the single VReg bound to v, for ops whose operands are
// always single-register values. Returns an error if v was never
// lowered (a forward reference) or is a wide (two-register) value.
func (c *LowerCtx) Use(v ir.Value) (VReg, error) {
	regs, ok := c.ValueRegs(v)
	if !ok || len(regs) != 1 {
		return VReg{}, &Error{Kind: "illegal_immediate", Message: fmt.Sprintf("value %d has no single-register binding", v)}
	}
	return regs[0], nil
}

// DefineSingle allocates one fresh VReg of class for v's single result
// and records it.
func (c *LowerCtx) DefineSingle(v ir.Value, class RegClass) VReg {
	reg := c.AllocVReg(class)
	c.DefineResult(v, ValueRegs{reg})
	return reg
}

// Target returns the backend's target profile, for rules that need
// target-specific decisions (ArithImm, condition codes, ...).
func (c *LowerCtx) Target() target.Target { return c.backend.Target }

// ConstantOf is the `constant_of(v)` extractor: if v is defined by an
// iconst/fconst, its raw immediate and true; else ok=false.
func (c *LowerCtx) ConstantOf(v ir.Value) (int64, bool) {
	inst, _, ok := c.F.DFG.ValueDef(v)
	if !ok {
		return 0, false
	}
	data := c.F.DFG.Inst(inst)
	if data.Opcode != ir.OpIconst && data.Opcode != ir.OpFconst {
		return 0, false
	}
	return data.Imm, true
}

// TypeOf is the `type_of(v)` extractor.
func (c *LowerCtx) TypeOf(v ir.Value) types.ID { return c.F.DFG.ValueType(v) }

// FitsImm12 is the `fits_imm12(v)` extractor generalized to "fits this
// target's arithmetic-immediate field": v must be a constant for which
// the target's ArithImm predicate says ArithImmValid.
func (c *LowerCtx) FitsImm12(v ir.Value) (int64, bool) {
	imm, ok := c.ConstantOf(v)
	if !ok {
		return 0, false
	}
	if c.Target().ArithImm(imm) != target.ArithImmValid {
		return 0, false
	}
	return imm, true
}

// IsPow2Const is the `is_pow2_const(v)` extractor: v is a positive
// power-of-two integer constant; returns its log2.
func (c *LowerCtx) IsPow2Const(v ir.Value) (int, bool) {
	imm, ok := c.ConstantOf(v)
	if !ok || imm <= 0 {
		return 0, false
	}
	shift := 0
	n := imm
	for n > 1 {
		if n&1 != 0 {
			return 0, false
		}
		n >>= 1
		shift++
	}
	return shift, true
}

// RegClassOf maps a Type to the register class a value of that type
// lives in.
func RegClassOf(pool *types.Pool, t types.ID) RegClass {
	ty := pool.Get(t)
	switch ty.Kind {
	case types.FloatKind:
		return ClassFloat
	case types.VectorKind:
		return ClassVector
	default:
		return ClassInt
	}
}

// LowerFunction runs the full lowering algorithm over f and returns
// the resulting VCode. tracker may be nil; coverage recording is
// optional.
func LowerFunction(pool *types.Pool, f *ir.Function, backend *Backend, tracker *coverage.Tracker) (*VCode, error) {
	backend.Rules.Sort()

	vcode := &VCode{Blocks: make([]VCodeBlock, len(f.Layout.Blocks()))}
	blockIndex := make(map[ir.Block]int, len(f.Layout.Blocks()))
	for i, b := range f.Layout.Blocks() {
		blockIndex[b] = i
	}

	ctx := &LowerCtx{
		Pool:       pool,
		F:          f,
		backend:    backend,
		coverage:   tracker,
		vcode:      vcode,
		blockIndex: blockIndex,
		valueRegs:  make(map[ir.Value]ValueRegs),
	}

	// Pre-pass: allocate every block's parameter VRegs before lowering
	// any instruction, so a jump/branch targeting a not-yet-visited
	// block (forward edge, or a loop back-edge) can still move its
	// arguments into the target's already-known param VRegs, the same
	// pre-pass that makes forward jump targets known also covers
	// block-param VRegs.
	for bi, b := range f.Layout.Blocks() {
		params := f.DFG.BlockParams(b)
		regs := make([]VReg, len(params))
		for i, p := range params {
			class := RegClassOf(pool, f.DFG.ValueType(p))
			v := ctx.AllocVReg(class)
			ctx.DefineResult(p, ValueRegs{v})
			regs[i] = v
		}
		vcode.Blocks[bi].Params = regs
	}

	for bi, b := range f.Layout.Blocks() {
		ctx.currentBlock = bi
		insts := f.Layout.Insts(b)
		for _, inst := range insts {
			data := f.DFG.Inst(inst)
			results := f.DFG.InstResults(inst)
			if data.Opcode.IsTerminator() {
				if err := backend.LowerBranch(ctx, inst, data); err != nil {
					return nil, err
				}
				continue
			}
			if err := ctx.lowerInst(inst, data, results); err != nil {
				return nil, err
			}
		}
	}

	return vcode, nil
}

// BinaryRegRule builds the register+register rule for a binary
// integer/float opcode: always matches, emitting mnemonic over the
// result's register class.
func BinaryRegRule(opcode ir.Opcode, mnemonic string, class RegClass, id, priority int) Rule {
	return Rule{
		ID:       id,
		Priority: priority,
		Try: func(ctx *LowerCtx, inst ir.Inst, data ir.InstData, results []ir.Value) (bool, error) {
			x, err := ctx.Use(data.Args[0])
			if err != nil {
				return false, err
			}
			y, err := ctx.Use(data.Args[1])
			if err != nil {
				return false, err
			}
			def := ctx.DefineSingle(results[0], class)
			ctx.Emit(MInst{Op: mnemonic, Defs: []VReg{def}, Uses: []VReg{x, y}})
			return true, nil
		},
	}
}

// BinaryImmRule builds the register+immediate rule for a binary
// opcode: matches only when the second operand is a constant the
// target's ArithImm predicate accepts, so it must be registered at
// higher priority than its BinaryRegRule fallback.
func BinaryImmRule(opcode ir.Opcode, mnemonic string, class RegClass, id, priority int) Rule {
	return Rule{
		ID:       id,
		Priority: priority,
		Try: func(ctx *LowerCtx, inst ir.Inst, data ir.InstData, results []ir.Value) (bool, error) {
			imm, ok := ctx.FitsImm12(data.Args[1])
			if !ok {
				return false, nil
			}
			x, err := ctx.Use(data.Args[0])
			if err != nil {
				return false, err
			}
			def := ctx.DefineSingle(results[0], class)
			ctx.Emit(MInst{Op: mnemonic, Defs: []VReg{def}, Uses: []VReg{x}, Imm: imm})
			return true, nil
		},
	}
}

// UnaryRule builds a single-operand, single-result rule.
func UnaryRule(opcode ir.Opcode, mnemonic string, class RegClass, id, priority int) Rule {
	return Rule{
		ID:       id,
		Priority: priority,
		Try: func(ctx *LowerCtx, inst ir.Inst, data ir.InstData, results []ir.Value) (bool, error) {
			x, err := ctx.Use(data.Args[0])
			if err != nil {
				return false, err
			}
			def := ctx.DefineSingle(results[0], class)
			ctx.Emit(MInst{Op: mnemonic, Defs: []VReg{def}, Uses: []VReg{x}})
			return true, nil
		},
	}
}

func (c *LowerCtx) lowerInst(inst ir.Inst, data ir.InstData, results []ir.Value) error {
	for _, rule := range c.backend.Rules[data.Opcode] {
		matched, err := rule.Try(c, inst, data, results)
		if err != nil {
			return err
		}
		if matched {
			if c.coverage != nil {
				c.coverage.Record(rule.ID)
			}
			return nil
		}
	}
	return &Error{Kind: "no_matching_rule", Inst: inst, Opcode: data.Opcode, Message: "no rule's extractors succeeded"}
}
