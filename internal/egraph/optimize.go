package egraph

import (
	"fmt"
	"strings"

	"github.com/joelreymont/hoist-sub004/internal/ir"
	"github.com/joelreymont/hoist-sub004/internal/types"
)

// Optimize runs the full pipeline from  (build, saturate,
// extract, rebuild) and returns a fresh, structurally-canonicalized
// Function with the same signature and block structure as f.
// Optimize(Optimize(f)) is structurally equivalent to Optimize(f)
//; rebuilding always reuses an existing Value
// for a winning extraction that is itself a pre-existing leaf (a
// param or an already-materialized expression), so a second pass
// over already-canonical IR performs no further rewriting.
func Optimize(pool *types.Pool, f *ir.Function) (*ir.Function, error) {
	g := New(pool)
	classOf := Build(g, f)

	Saturate(g, DefaultLimits)

	roots := make([]EClassID, 0, len(classOf))
	for _, c := range classOf {
		roots = append(roots, c)
	}
	extractions := Extract(g, roots)

	out := ir.NewFunction(f.Name, f.Signature)
	b := ir.NewBuilder(out)
	m := &materializer{
		g:           g,
		pool:        pool,
		builder:     b,
		extractions: extractions,
		cache:       make(map[EClassID]ir.Value),
	}

	blockMap := make(map[ir.Block]ir.Block)
	for _, ob := range f.Layout.Blocks() {
		nb := b.CreateBlock()
		blockMap[ob] = nb
		for _, op := range f.DFG.BlockParams(ob) {
			typ := f.DFG.ValueType(op)
			nv := b.AppendBlockParam(nb, typ)
			m.cache[g.Find(classOf[op])] = nv
		}
	}

	for _, ob := range f.Layout.Blocks() {
		b.SwitchToBlock(blockMap[ob])
		for _, inst := range f.Layout.Insts(ob) {
			data := f.DFG.Inst(inst)
			results := f.DFG.InstResults(inst)

			if len(results) > 0 && pureOps[data.Opcode] {
				for _, r := range results {
					if _, err := m.materialize(classOf[r]); err != nil {
						return nil, err
					}
				}
				continue
			}

			if err := rebuildOpaque(m, out, inst, data, results, classOf, blockMap); err != nil {
				return nil, err
			}
		}
	}

	return out, nil
}

// rebuildOpaque re-emits a non-pure or terminator instruction with its
// Value/Block operands remapped through the materializer/blockMap.
func rebuildOpaque(m *materializer, out *ir.Function, inst ir.Inst, data ir.InstData, results []ir.Value, classOf map[ir.Value]EClassID, blockMap map[ir.Block]ir.Block) error {
	mapArgs := func(args []ir.Value) ([]ir.Value, error) {
		mapped := make([]ir.Value, len(args))
		for i, a := range args {
			v, err := m.materialize(classOf[a])
			if err != nil {
				return nil, err
			}
			mapped[i] = v
		}
		return mapped, nil
	}

	newArgs, err := mapArgs(data.Args)
	if err != nil {
		return err
	}
	newThenArgs, err := mapArgs(data.ThenArgs)
	if err != nil {
		return err
	}
	newElseArgs, err := mapArgs(data.ElseArgs)
	if err != nil {
		return err
	}

	newData := data
	newData.Args = newArgs
	newData.ThenArgs = newThenArgs
	newData.ElseArgs = newElseArgs
	if data.Then != ir.NilBlock {
		newData.Then = blockMap[data.Then]
	}
	if data.Else != ir.NilBlock {
		newData.Else = blockMap[data.Else]
	}

	newInst, newResults := out.DFG.CreateInst(newData)
	out.Layout.AppendInst(m.builder.CurrentBlock(), newInst)
	for i, r := range results {
		m.cache[m.g.Find(classOf[r])] = newResults[i]
	}
	return nil
}

// materializer lazily builds new instructions for winning extractions,
// memoized per e-class so shared subexpressions are emitted once.
type materializer struct {
	g           *EGraph
	pool        *types.Pool
	builder     *ir.Builder
	extractions map[EClassID]*Extraction
	cache       map[EClassID]ir.Value
}

func (m *materializer) materialize(class EClassID) (ir.Value, error) {
	class = m.g.Find(class)
	if v, ok := m.cache[class]; ok {
		return v, nil
	}
	ex, ok := m.extractions[class]
	if !ok || ex == nil {
		return 0, fmt.Errorf("egraph: no extraction recorded for class %d", class)
	}

	switch ex.Node.Kind {
	case KindParam, KindOpaque:
		// Params are pre-populated when their block is created; an
		// opaque leaf is pre-populated when its defining instruction
		// is re-emitted. Reaching here means a class was referenced
		// before its definition was processed, which would indicate a
		// dominance violation already caught by the verifier.
		return 0, fmt.Errorf("egraph: class %d (%v) was never pre-populated", class, ex.Node.Kind)

	case KindConst:
		var t uint32
		var v int64
		kind := "iconst"
		if _, err := fmt.Sscanf(ex.Node.Attr, "iconst(%d,%d)", &t, &v); err != nil {
			kind = "fconst"
			fmt.Sscanf(ex.Node.Attr, "fconst(%d,%d)", &t, &v)
		}
		var nv ir.Value
		if kind == "iconst" {
			nv = m.builder.Iconst(types.ID(t), v)
		} else {
			nv = m.builder.Fconst(types.ID(t), v)
		}
		m.cache[class] = nv
		return nv, nil

	case KindOp:
		return m.materializeOp(class, ex)
	}
	return 0, fmt.Errorf("egraph: unknown e-node kind %v", ex.Node.Kind)
}

func (m *materializer) childValue(ex *Extraction, i int) (ir.Value, error) {
	return m.materialize(ex.Children[i].Class)
}

func (m *materializer) materializeOp(class EClassID, ex *Extraction) (ir.Value, error) {
	node := ex.Node
	typ := resultTypeFromAttr(node.Attr)

	unary := func(op ir.Opcode) (ir.Value, error) {
		x, err := m.childValue(ex, 0)
		if err != nil {
			return 0, err
		}
		return m.builder.Unary(op, typ, x), nil
	}
	binary := func(op ir.Opcode) (ir.Value, error) {
		x, err := m.childValue(ex, 0)
		if err != nil {
			return 0, err
		}
		y, err := m.childValue(ex, 1)
		if err != nil {
			return 0, err
		}
		return m.builder.Binary(op, typ, x, y), nil
	}

	var nv ir.Value
	var err error
	switch node.Op {
	case ir.OpIadd:
		nv, err = binary(ir.OpIadd)
	case ir.OpIsub:
		nv, err = binary(ir.OpIsub)
	case ir.OpImul:
		nv, err = binary(ir.OpImul)
	case ir.OpSdiv:
		nv, err = binary(ir.OpSdiv)
	case ir.OpUdiv:
		nv, err = binary(ir.OpUdiv)
	case ir.OpSrem:
		nv, err = binary(ir.OpSrem)
	case ir.OpUrem:
		nv, err = binary(ir.OpUrem)
	case ir.OpIand:
		nv, err = binary(ir.OpIand)
	case ir.OpIor:
		nv, err = binary(ir.OpIor)
	case ir.OpIxor:
		nv, err = binary(ir.OpIxor)
	case ir.OpIshl:
		nv, err = binary(ir.OpIshl)
	case ir.OpUshr:
		nv, err = binary(ir.OpUshr)
	case ir.OpSshr:
		nv, err = binary(ir.OpSshr)
	case ir.OpFadd:
		nv, err = binary(ir.OpFadd)
	case ir.OpFsub:
		nv, err = binary(ir.OpFsub)
	case ir.OpFmul:
		nv, err = binary(ir.OpFmul)
	case ir.OpFdiv:
		nv, err = binary(ir.OpFdiv)
	case ir.OpFneg:
		nv, err = unary(ir.OpFneg)
	case ir.OpFabs:
		nv, err = unary(ir.OpFabs)
	case ir.OpBitcast:
		nv, err = unary(ir.OpBitcast)
	case ir.OpBmask:
		nv, err = unary(ir.OpBmask)
	case ir.OpSextend:
		nv, err = unary(ir.OpSextend)
	case ir.OpUextend:
		nv, err = unary(ir.OpUextend)
	case ir.OpIreduce:
		nv, err = unary(ir.OpIreduce)
	case ir.OpFpromote:
		nv, err = unary(ir.OpFpromote)
	case ir.OpFdemote:
		nv, err = unary(ir.OpFdemote)
	case ir.OpIaddImm, ir.OpIandImm, ir.OpIorImm, ir.OpIxorImm, ir.OpIshlImm, ir.OpUshrImm, ir.OpSshrImm:
		x, e := m.childValue(ex, 0)
		if e != nil {
			return 0, e
		}
		imm, _ := parseImmType(node.Attr)
		nv = m.builder.BinaryImm(node.Op, typ, x, imm)
	case ir.OpIcmp:
		x, e := m.childValue(ex, 0)
		if e != nil {
			return 0, e
		}
		y, e := m.childValue(ex, 1)
		if e != nil {
			return 0, e
		}
		nv = m.builder.Icmp(condFromAttr(node.Attr), typ, x, y)
	case ir.OpFcmp:
		x, e := m.childValue(ex, 0)
		if e != nil {
			return 0, e
		}
		y, e := m.childValue(ex, 1)
		if e != nil {
			return 0, e
		}
		nv = m.builder.Fcmp(floatCondFromAttr(node.Attr), typ, x, y)
	case ir.OpSelect:
		c, e := m.childValue(ex, 0)
		if e != nil {
			return 0, e
		}
		x, e := m.childValue(ex, 1)
		if e != nil {
			return 0, e
		}
		y, e := m.childValue(ex, 2)
		if e != nil {
			return 0, e
		}
		nv = m.builder.Select(typ, c, x, y)
	case ir.OpIsplit:
		v, e := m.childValue(ex, 0)
		if e != nil {
			return 0, e
		}
		lo, hi := m.builder.Isplit(typ, v)
		if node.Attr == "lo" {
			nv = lo
		} else {
			nv = hi
		}
	case ir.OpIconcat:
		lo, e := m.childValue(ex, 0)
		if e != nil {
			return 0, e
		}
		hi, e := m.childValue(ex, 1)
		if e != nil {
			return 0, e
		}
		nv = m.builder.Iconcat(typ, lo, hi)
	default:
		return 0, fmt.Errorf("egraph: materialize: unsupported opcode %s", node.Op)
	}
	if err != nil {
		return 0, err
	}
	m.cache[class] = nv
	return nv, nil
}

func parseImmType(attr string) (int64, types.ID) {
	var imm int64
	var t uint32
	fmt.Sscanf(attr, "imm=%d,type=%d", &imm, &t)
	return imm, types.ID(t)
}

// condString pulls the value of the "cond=" field out of an attribute
// key built by attrFor, e.g. "cond=eq,type=3" -> "eq".
func condString(attr string) string {
	const prefix = "cond="
	idx := strings.Index(attr, prefix)
	if idx < 0 {
		return ""
	}
	rest := attr[idx+len(prefix):]
	if comma := strings.IndexByte(rest, ','); comma >= 0 {
		return rest[:comma]
	}
	return rest
}

func condFromAttr(attr string) ir.IntCC {
	cond := condString(attr)
	for i := ir.IntEQ; i <= ir.IntULE; i++ {
		if i.String() == cond {
			return i
		}
	}
	return ir.IntEQ
}

func floatCondFromAttr(attr string) ir.FloatCC {
	cond := condString(attr)
	for i := ir.FloatEQ; i <= ir.FloatUGE; i++ {
		if i.String() == cond {
			return i
		}
	}
	return ir.FloatEQ
}
