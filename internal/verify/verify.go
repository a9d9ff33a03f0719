package verify

import (
	"github.com/joelreymont/hoist-sub004/internal/ir"
	"github.com/joelreymont/hoist-sub004/internal/types"
)

// site records where a Value was defined, for dominance checks.
type site struct {
	block ir.Block
	pos   int // -1 for a block parameter (defined "before" position 0)
}

// Verify walks f once and checks every well-formedness invariant. It never
// mutates f. A nil return means f is well-formed.
func Verify(pool *types.Pool, f *ir.Function) error {
	v := &verifier{pool: pool, f: f, defSite: make(map[ir.Value]site)}
	return v.run()
}

type verifier struct {
	pool    *types.Pool
	f       *ir.Function
	defSite map[ir.Value]site
}

func (v *verifier) run() error {
	blocks := v.f.Layout.Blocks()
	if len(blocks) == 0 {
		// An empty function has nothing to verify; callers that
		// require a body reject this earlier.
		return nil
	}

	// Pass 1: record every definition site (block params, then
	// instruction results in layout order) and check for duplicates.
	for _, b := range blocks {
		for _, p := range v.f.DFG.BlockParams(b) {
			if err := v.recordDef(p, b, -1); err != nil {
				return err
			}
		}
	}
	for _, b := range blocks {
		for pos, inst := range v.f.Layout.Insts(b) {
			for _, r := range v.f.DFG.InstResults(inst) {
				if err := v.recordDef(r, b, pos); err != nil {
					return err
				}
			}
		}
	}

	// Pass 2: per-block terminator placement, per-instruction type
	// schema, and dominance of every use.
	for _, b := range blocks {
		insts := v.f.Layout.Insts(b)
		if len(insts) == 0 {
			return errf(UnterminatedBlock, b, ir.NilInst, ir.NilValue, "block has no instructions")
		}
		for pos, inst := range insts {
			data := v.f.DFG.Inst(inst)
			isLast := pos == len(insts)-1
			if data.Opcode.IsTerminator() && !isLast {
				return errf(BadTerminator, b, inst, ir.NilValue, "terminator %s is not the last instruction in its block", data.Opcode)
			}
			if !data.Opcode.IsTerminator() && isLast {
				return errf(UnterminatedBlock, b, inst, ir.NilValue, "block's last instruction %s is not a terminator", data.Opcode)
			}

			for _, arg := range data.Args {
				if err := v.checkUse(arg, b, pos); err != nil {
					return err
				}
			}
			for _, arg := range data.ThenArgs {
				if err := v.checkUse(arg, b, pos); err != nil {
					return err
				}
			}
			for _, arg := range data.ElseArgs {
				if err := v.checkUse(arg, b, pos); err != nil {
					return err
				}
			}

			if err := v.checkSchema(b, inst, data); err != nil {
				return err
			}
			if err := v.checkTerminatorTargets(b, inst, data); err != nil {
				return err
			}
		}
	}

	return nil
}

func (v *verifier) recordDef(val ir.Value, block ir.Block, pos int) error {
	if _, dup := v.defSite[val]; dup {
		return errf(DuplicateDefinition, block, ir.NilInst, val, "value is defined more than once")
	}
	v.defSite[val] = site{block: block, pos: pos}
	return nil
}

func (v *verifier) checkUse(val ir.Value, useBlock ir.Block, usePos int) error {
	if val == ir.NilValue || int(val) >= v.f.DFG.NumValues() {
		return errf(UndefinedValue, useBlock, ir.NilInst, val, "use of undefined value")
	}
	def, ok := v.defSite[val]
	if !ok {
		return errf(DanglingUse, useBlock, ir.NilInst, val, "value is never defined in this function's layout")
	}
	// A block-parameter use from within its own entry position is
	// always fine (def.pos == -1 sorts before every real instruction).
	if !v.f.Layout.Dominates(def.block, def.pos, useBlock, usePos) {
		return errf(DanglingUse, useBlock, ir.NilInst, val, "definition does not dominate this use")
	}
	return nil
}

func (v *verifier) checkTerminatorTargets(block ir.Block, inst ir.Inst, data ir.InstData) error {
	switch data.Opcode {
	case ir.OpJump:
		return v.checkDestArgs(block, inst, data.Then, data.ThenArgs)
	case ir.OpBrif:
		if err := v.checkDestArgs(block, inst, data.Then, data.ThenArgs); err != nil {
			return err
		}
		return v.checkDestArgs(block, inst, data.Else, data.ElseArgs)
	case ir.OpReturn:
		return v.checkReturn(block, inst, data)
	}
	return nil
}

func (v *verifier) checkDestArgs(block ir.Block, inst ir.Inst, dest ir.Block, args []ir.Value) error {
	params := v.f.DFG.BlockParams(dest)
	if len(params) != len(args) {
		return errf(ArityMismatch, block, inst, ir.NilValue, "jump/branch passes %d args but block%d expects %d params", len(args), dest, len(params))
	}
	for i, a := range args {
		at := v.f.DFG.ValueType(a)
		pt := v.f.DFG.ValueType(params[i])
		if at != pt {
			return errf(TypeMismatch, block, inst, a, "arg %d has type %s but destination param expects %s", i, v.pool.Get(at), v.pool.Get(pt))
		}
	}
	return nil
}

func (v *verifier) checkReturn(block ir.Block, inst ir.Inst, data ir.InstData) error {
	rets := v.f.Signature.Returns
	if len(data.Args) != len(rets) {
		return errf(BadReturn, block, inst, ir.NilValue, "return has %d values but signature declares %d", len(data.Args), len(rets))
	}
	for i, a := range data.Args {
		at := v.f.DFG.ValueType(a)
		if at != rets[i] {
			return errf(BadReturn, block, inst, a, "return value %d has type %s but signature declares %s", i, v.pool.Get(at), v.pool.Get(rets[i]))
		}
	}
	return nil
}

// checkSchema validates an instruction's argument/result types
// against its opcode's type schema.
func (v *verifier) checkSchema(block ir.Block, inst ir.Inst, data ir.InstData) error {
	p := v.pool
	typeOf := func(val ir.Value) types.ID { return v.f.DFG.ValueType(val) }
	mismatch := func(val ir.Value, format string, args ...any) error {
		return errf(TypeMismatch, block, inst, val, format, args...)
	}

	switch data.Opcode {
	case ir.OpIadd, ir.OpIsub, ir.OpImul, ir.OpSdiv, ir.OpUdiv, ir.OpSrem, ir.OpUrem,
		ir.OpIand, ir.OpIor, ir.OpIxor, ir.OpIshl, ir.OpUshr, ir.OpSshr:
		x, y := typeOf(data.Args[0]), typeOf(data.Args[1])
		if x != y {
			return mismatch(data.Args[1], "%s requires equal operand types, got %s and %s", data.Opcode, p.Get(x), p.Get(y))
		}
		if !isIntOrIntVector(p, x) {
			return mismatch(data.Args[0], "%s requires integer or int-vector operands, got %s", data.Opcode, p.Get(x))
		}
		if len(data.ResultTypes) != 1 || data.ResultTypes[0] != x {
			return mismatch(ir.NilValue, "%s result type must equal operand type", data.Opcode)
		}

	case ir.OpFadd, ir.OpFsub, ir.OpFmul, ir.OpFdiv:
		x, y := typeOf(data.Args[0]), typeOf(data.Args[1])
		if x != y {
			return mismatch(data.Args[1], "%s requires equal operand types", data.Opcode)
		}
		if !isFloatOrFloatVector(p, x) {
			return mismatch(data.Args[0], "%s requires float or float-vector operands", data.Opcode)
		}

	case ir.OpIcmp:
		x, y := typeOf(data.Args[0]), typeOf(data.Args[1])
		if x != y {
			return mismatch(data.Args[1], "icmp requires equal operand types")
		}
		if !isIntOrIntVector(p, x) {
			return mismatch(data.Args[0], "icmp requires integer operands")
		}
		want, _ := p.AsTruthy(x)
		if len(data.ResultTypes) != 1 || data.ResultTypes[0] != want {
			return mismatch(ir.NilValue, "icmp must return the truthy type of its operands")
		}

	case ir.OpFcmp:
		x, y := typeOf(data.Args[0]), typeOf(data.Args[1])
		if x != y {
			return mismatch(data.Args[1], "fcmp requires equal operand types")
		}
		want, _ := p.AsTruthy(x)
		if len(data.ResultTypes) != 1 || data.ResultTypes[0] != want {
			return mismatch(ir.NilValue, "fcmp must return the truthy type of its operands")
		}

	case ir.OpBitcast:
		src := typeOf(data.Args[0])
		dst := data.ResultTypes[0]
		if p.Get(src).Bits() != p.Get(dst).Bits() {
			return mismatch(data.Args[0], "bitcast requires bits(src)==bits(dst), got %d and %d", p.Get(src).Bits(), p.Get(dst).Bits())
		}

	case ir.OpFpromote:
		src := typeOf(data.Args[0])
		dst := data.ResultTypes[0]
		want, err := p.Double(src)
		if err != nil || want != dst {
			return mismatch(data.Args[0], "fpromote requires dst to be double_width of src")
		}

	case ir.OpFdemote:
		src := typeOf(data.Args[0])
		dst := data.ResultTypes[0]
		want, err := p.Half(src)
		if err != nil || want != dst {
			return mismatch(data.Args[0], "fdemote requires dst to be half_width of src")
		}

	case ir.OpSelect:
		cond, a, b := typeOf(data.Args[0]), typeOf(data.Args[1]), typeOf(data.Args[2])
		wantCond, _ := p.AsTruthy(a)
		if cond != wantCond {
			return mismatch(data.Args[0], "select condition must be the truthy type of its operands")
		}
		if a != b {
			return mismatch(data.Args[2], "select operands must have equal types")
		}

	case ir.OpBrif:
		cond := typeOf(data.Args[0])
		if cond != types.I8 {
			return mismatch(data.Args[0], "brif condition must be i8-truthy, got %s", p.Get(cond))
		}

	case ir.OpLoad:
		// address type is unchecked beyond existing (pointer-typed
		// front ends are expected; this back end does not itself
		// enforce pointer-ness of load/store addresses beyond use
		// dominance).
	case ir.OpStore:
	case ir.OpStackAlloc:
	case ir.OpIconst, ir.OpFconst, ir.OpCall, ir.OpJump, ir.OpReturn,
		ir.OpIconcat, ir.OpIsplit, ir.OpTlsValue,
		ir.OpSextend, ir.OpUextend, ir.OpIreduce, ir.OpFcvtToSint, ir.OpFcvtToUint,
		ir.OpFcvtFromSint, ir.OpFcvtFromUint, ir.OpBmask, ir.OpFneg, ir.OpFabs,
		ir.OpIaddImm, ir.OpIandImm, ir.OpIorImm, ir.OpIxorImm, ir.OpIshlImm, ir.OpUshrImm, ir.OpSshrImm:
		// Schema checked structurally elsewhere (arity by construction);
		// width relationships for sextend/uextend/ireduce are enforced
		// at the op legalizer / lowering boundary where the concrete
		// destination width is already known to be legal for the target.
	}
	return nil
}

func isIntOrIntVector(p *types.Pool, id types.ID) bool {
	t := p.Get(id)
	if t.Kind == types.IntKind {
		return true
	}
	return t.Kind == types.VectorKind && p.LaneKind(id) == types.IntKind
}

func isFloatOrFloatVector(p *types.Pool, id types.ID) bool {
	t := p.Get(id)
	if t.Kind == types.FloatKind {
		return true
	}
	return t.Kind == types.VectorKind && p.LaneKind(id) == types.FloatKind
}
