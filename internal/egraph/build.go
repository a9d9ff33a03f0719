package egraph

import (
	"fmt"

	"github.com/joelreymont/hoist-sub004/internal/ir"
)

// pureOps is the set of opcodes the builder treats as algebraic
// expressions eligible for equality saturation. Everything else
// (calls, loads, stores, stack_alloc, tls_value, terminators) is
// either not value-producing or has effects/aliasing concerns the
// e-graph does not reason about, so its results are inserted as
// opaque leaves instead (see ENode.Kind == KindOpaque).
var pureOps = map[ir.Opcode]bool{
	ir.OpIconst: true, ir.OpFconst: true,
	ir.OpIadd: true, ir.OpIsub: true, ir.OpImul: true,
	ir.OpSdiv: true, ir.OpUdiv: true, ir.OpSrem: true, ir.OpUrem: true,
	ir.OpIand: true, ir.OpIor: true, ir.OpIxor: true,
	ir.OpIshl: true, ir.OpUshr: true, ir.OpSshr: true,
	ir.OpIaddImm: true, ir.OpIandImm: true, ir.OpIorImm: true,
	ir.OpIxorImm: true, ir.OpIshlImm: true, ir.OpUshrImm: true, ir.OpSshrImm: true,
	ir.OpFadd: true, ir.OpFsub: true, ir.OpFmul: true, ir.OpFdiv: true,
	ir.OpFneg: true, ir.OpFabs: true,
	ir.OpIcmp: true, ir.OpFcmp: true,
	ir.OpBitcast: true, ir.OpBmask: true, ir.OpSelect: true,
	ir.OpSextend: true, ir.OpUextend: true, ir.OpIreduce: true,
	ir.OpFpromote: true, ir.OpFdemote: true,
	ir.OpIconcat: true,
}

// Build walks f in layout order and inserts one e-node per Value,
// remembering the e-class id for each.
// It returns the EGraph and the Value -> EClassID map ("getValue").
func Build(g *EGraph, f *ir.Function) map[ir.Value]EClassID {
	classOf := make(map[ir.Value]EClassID)

	for _, b := range f.Layout.Blocks() {
		for idx, p := range f.DFG.BlockParams(b) {
			classOf[p] = g.Add(ENode{
				Kind: KindParam,
				Attr: fmt.Sprintf("param(%d,%d,%d)", b, idx, f.DFG.ValueType(p)),
			})
		}
	}

	for _, b := range f.Layout.Blocks() {
		for _, inst := range f.Layout.Insts(b) {
			data := f.DFG.Inst(inst)
			results := f.DFG.InstResults(inst)
			if len(results) == 0 {
				continue
			}
			if !pureOps[data.Opcode] {
				for i, r := range results {
					classOf[r] = g.Add(ENode{
						Kind: KindOpaque,
						Attr: fmt.Sprintf("opaque(inst=%d,result=%d,type=%d)", inst, i, data.ResultTypes[i]),
					})
				}
				continue
			}

			switch data.Opcode {
			case ir.OpIconst:
				classOf[results[0]] = g.Add(ENode{
					Kind: KindConst,
					Attr: fmt.Sprintf("iconst(%d,%d)", data.ResultTypes[0], data.Imm),
				})
			case ir.OpFconst:
				classOf[results[0]] = g.Add(ENode{
					Kind: KindConst,
					Attr: fmt.Sprintf("fconst(%d,%d)", data.ResultTypes[0], data.Imm),
				})
			case ir.OpIsplit:
				arg := classOf[data.Args[0]]
				classOf[results[0]] = g.Add(ENode{Kind: KindOp, Op: data.Opcode, Children: []EClassID{arg}, Attr: "lo"})
				classOf[results[1]] = g.Add(ENode{Kind: KindOp, Op: data.Opcode, Children: []EClassID{arg}, Attr: "hi"})
			default:
				children := make([]EClassID, len(data.Args))
				for i, a := range data.Args {
					children[i] = classOf[a]
				}
				attr := attrFor(data)
				classOf[results[0]] = g.Add(ENode{Kind: KindOp, Op: data.Opcode, Children: children, Attr: attr})
			}
		}
	}
	return classOf
}

// attrFor folds the non-Value attributes of an instruction (result
// type, immediate, condition code) into the e-node's attribute key so
// that e.g. `icmp eq` and `icmp ne` over the same operands never
// unify by accident.
func attrFor(d ir.InstData) string {
	switch {
	case d.Opcode == ir.OpIcmp:
		return fmt.Sprintf("cond=%s,type=%d", d.IntCond, d.ResultTypes[0])
	case d.Opcode == ir.OpFcmp:
		return fmt.Sprintf("cond=%s,type=%d", d.FloatCond, d.ResultTypes[0])
	case d.Opcode == ir.OpIaddImm, d.Opcode == ir.OpIandImm, d.Opcode == ir.OpIorImm,
		d.Opcode == ir.OpIxorImm, d.Opcode == ir.OpIshlImm, d.Opcode == ir.OpUshrImm, d.Opcode == ir.OpSshrImm:
		return fmt.Sprintf("imm=%d,type=%d", d.Imm, d.ResultTypes[0])
	default:
		return fmt.Sprintf("type=%d", d.ResultTypes[0])
	}
}
