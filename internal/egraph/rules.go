package egraph

import (
	"fmt"
	"strings"

	"github.com/joelreymont/hoist-sub004/internal/ir"
	"github.com/joelreymont/hoist-sub004/internal/types"
)

// rule examines one (class, node) pair and, if it matches, returns the
// class its LHS should be unioned with plus true. It never mutates
// anything but the EGraph itself (via Add/Union).
type rule func(g *EGraph, class EClassID, node ENode) (EClassID, bool)

// Rules is the built-in rewrite set from  "at minimum".
var Rules = []rule{
	ruleAddZero,
	ruleSubSelf,
	ruleMulOne,
	ruleMulZero,
	ruleMulPow2ToShift,
	ruleOrZero,
	ruleAndAllOnes,
	ruleAssocConstFold,
	ruleIcmpEqSelf,
	ruleShiftShift,
	ruleConstFoldBinary,
}

// constOf reports the integer literal and type of an iconst e-node in
// class, if one of its alternatives is a constant.
func constOf(g *EGraph, class EClassID) (imm int64, typ types.ID, ok bool) {
	for _, n := range g.ClassNodes(g.Find(class)) {
		if n.Kind != KindConst {
			continue
		}
		var t uint32
		var v int64
		if _, err := fmt.Sscanf(n.Attr, "iconst(%d,%d)", &t, &v); err == nil {
			return v, types.ID(t), true
		}
	}
	return 0, 0, false
}

func addConst(g *EGraph, typ types.ID, imm int64) EClassID {
	return g.Add(ENode{Kind: KindConst, Attr: fmt.Sprintf("iconst(%d,%d)", typ, imm)})
}

func sameClass(g *EGraph, a, b EClassID) bool { return g.Find(a) == g.Find(b) }

func ruleAddZero(g *EGraph, class EClassID, node ENode) (EClassID, bool) {
	if node.Kind != KindOp || node.Op != ir.OpIadd {
		return 0, false
	}
	if imm, _, ok := constOf(g, node.Children[1]); ok && imm == 0 {
		return node.Children[0], true
	}
	if imm, _, ok := constOf(g, node.Children[0]); ok && imm == 0 {
		return node.Children[1], true
	}
	return 0, false
}

func ruleSubSelf(g *EGraph, class EClassID, node ENode) (EClassID, bool) {
	if node.Kind != KindOp || node.Op != ir.OpIsub {
		return 0, false
	}
	if sameClass(g, node.Children[0], node.Children[1]) {
		typ := resultTypeFromAttr(node.Attr)
		return addConst(g, typ, 0), true
	}
	return 0, false
}

func ruleMulOne(g *EGraph, class EClassID, node ENode) (EClassID, bool) {
	if node.Kind != KindOp || node.Op != ir.OpImul {
		return 0, false
	}
	if imm, _, ok := constOf(g, node.Children[1]); ok && imm == 1 {
		return node.Children[0], true
	}
	if imm, _, ok := constOf(g, node.Children[0]); ok && imm == 1 {
		return node.Children[1], true
	}
	return 0, false
}

func ruleMulZero(g *EGraph, class EClassID, node ENode) (EClassID, bool) {
	if node.Kind != KindOp || node.Op != ir.OpImul {
		return 0, false
	}
	typ := resultTypeFromAttr(node.Attr)
	if imm, _, ok := constOf(g, node.Children[1]); ok && imm == 0 {
		return addConst(g, typ, 0), true
	}
	if imm, _, ok := constOf(g, node.Children[0]); ok && imm == 0 {
		return addConst(g, typ, 0), true
	}
	return 0, false
}

func ruleMulPow2ToShift(g *EGraph, class EClassID, node ENode) (EClassID, bool) {
	if node.Kind != KindOp || node.Op != ir.OpImul {
		return 0, false
	}
	typ := resultTypeFromAttr(node.Attr)
	tryShift := func(x EClassID, imm int64) (EClassID, bool) {
		if imm <= 0 {
			return 0, false
		}
		k := 0
		v := imm
		for v > 1 {
			if v&1 != 0 {
				return 0, false
			}
			v >>= 1
			k++
		}
		shiftAmt := addConst(g, typ, int64(k))
		return g.Add(ENode{Kind: KindOp, Op: ir.OpIshl, Children: []EClassID{x, shiftAmt}, Attr: node.Attr}), true
	}
	if imm, _, ok := constOf(g, node.Children[1]); ok {
		if r, matched := tryShift(node.Children[0], imm); matched {
			return r, true
		}
	}
	if imm, _, ok := constOf(g, node.Children[0]); ok {
		if r, matched := tryShift(node.Children[1], imm); matched {
			return r, true
		}
	}
	return 0, false
}

func ruleOrZero(g *EGraph, class EClassID, node ENode) (EClassID, bool) {
	if node.Kind != KindOp || node.Op != ir.OpIor {
		return 0, false
	}
	if imm, _, ok := constOf(g, node.Children[1]); ok && imm == 0 {
		return node.Children[0], true
	}
	if imm, _, ok := constOf(g, node.Children[0]); ok && imm == 0 {
		return node.Children[1], true
	}
	return 0, false
}

func ruleAndAllOnes(g *EGraph, class EClassID, node ENode) (EClassID, bool) {
	if node.Kind != KindOp || node.Op != ir.OpIand {
		return 0, false
	}
	typ := resultTypeFromAttr(node.Attr)
	t := g.pool.Get(typ)
	if t.Kind != types.IntKind || t.Width > 63 {
		return 0, false // avoid int64 overflow synthesizing the all-ones mask for i64/i128
	}
	allOnes := int64(uint64(1)<<t.Width) - 1
	if imm, _, ok := constOf(g, node.Children[1]); ok && imm == allOnes {
		return node.Children[0], true
	}
	if imm, _, ok := constOf(g, node.Children[0]); ok && imm == allOnes {
		return node.Children[1], true
	}
	return 0, false
}

// ruleAssocConstFold implements "(x+c1)+c2 -> x+(c1+c2)", generalized
// to iand/ior per  "associativity... for iadd, iand, ior".
func ruleAssocConstFold(g *EGraph, class EClassID, node ENode) (EClassID, bool) {
	if node.Kind != KindOp {
		return 0, false
	}
	var fold func(a, b int64) int64
	switch node.Op {
	case ir.OpIadd:
		fold = func(a, b int64) int64 { return a + b }
	case ir.OpIand:
		fold = func(a, b int64) int64 { return a & b }
	case ir.OpIor:
		fold = func(a, b int64) int64 { return a | b }
	default:
		return 0, false
	}
	c2, typ, ok := constOf(g, node.Children[1])
	if !ok {
		return 0, false
	}
	inner := g.ClassNodes(g.Find(node.Children[0]))
	for _, in := range inner {
		if in.Kind != KindOp || in.Op != node.Op {
			continue
		}
		c1, _, ok := constOf(g, in.Children[1])
		if !ok {
			continue
		}
		folded := addConst(g, typ, fold(c1, c2))
		return g.Add(ENode{Kind: KindOp, Op: node.Op, Children: []EClassID{in.Children[0], folded}, Attr: node.Attr}), true
	}
	return 0, false
}

func ruleIcmpEqSelf(g *EGraph, class EClassID, node ENode) (EClassID, bool) {
	if node.Kind != KindOp || node.Op != ir.OpIcmp {
		return 0, false
	}
	if !attrHasCond(node.Attr, ir.IntEQ.String()) {
		return 0, false
	}
	if sameClass(g, node.Children[0], node.Children[1]) {
		typ := resultTypeFromAttr(node.Attr)
		return addConst(g, typ, 1), true
	}
	return 0, false
}

func ruleShiftShift(g *EGraph, class EClassID, node ENode) (EClassID, bool) {
	if node.Kind != KindOp || node.Op != ir.OpIshl {
		return 0, false
	}
	typ := resultTypeFromAttr(node.Attr)
	bOff, _, ok := constOf(g, node.Children[1])
	if !ok {
		return 0, false
	}
	inner := g.ClassNodes(g.Find(node.Children[0]))
	for _, in := range inner {
		if in.Kind != KindOp || in.Op != ir.OpIshl {
			continue
		}
		aOff, _, ok := constOf(g, in.Children[1])
		if !ok {
			continue
		}
		width := int64(g.pool.Get(typ).Width)
		total := aOff + bOff
		if total >= width {
			continue // width-guard:  "(x<<a)<<b -> x<<(a+b) (with width-guard)"
		}
		sum := addConst(g, typ, total)
		return g.Add(ENode{Kind: KindOp, Op: ir.OpIshl, Children: []EClassID{in.Children[0], sum}, Attr: node.Attr}), true
	}
	return 0, false
}

// ruleConstFoldBinary is a supplement beyond the rewrite rules above:
// plain constant folding for the other pure integer binary ops, the
// natural extension of the explicitly required `(x+c1)+c2` fold.
func ruleConstFoldBinary(g *EGraph, class EClassID, node ENode) (EClassID, bool) {
	if node.Kind != KindOp {
		return 0, false
	}
	var fold func(a, b int64) int64
	switch node.Op {
	case ir.OpIsub:
		fold = func(a, b int64) int64 { return a - b }
	case ir.OpImul:
		fold = func(a, b int64) int64 { return a * b }
	case ir.OpIxor:
		fold = func(a, b int64) int64 { return a ^ b }
	default:
		return 0, false
	}
	a, typ, ok1 := constOf(g, node.Children[0])
	b, _, ok2 := constOf(g, node.Children[1])
	if !ok1 || !ok2 {
		return 0, false
	}
	return addConst(g, typ, fold(a, b)), true
}

// resultTypeFromAttr extracts the trailing "type=%d" field every
// attrFor encoding carries, regardless of what precedes it
// (icmp/fcmp's "cond=...,type=%d", the imm variants' "imm=...,type=%d",
// or the plain "type=%d").
func resultTypeFromAttr(attr string) types.ID {
	idx := strings.LastIndex(attr, "type=")
	if idx < 0 {
		return 0
	}
	var t uint32
	fmt.Sscanf(attr[idx:], "type=%d", &t)
	return types.ID(t)
}

func attrHasCond(attr, cond string) bool {
	want := "cond=" + cond + ","
	return len(attr) >= len(want) && attr[:len(want)] == want
}
