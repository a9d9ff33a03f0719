package egraph

import "github.com/joelreymont/hoist-sub004/internal/ir"

// opCost gives the default per-opcode cost. Unlisted opcodes use
// the default cost below.
var opCost = map[ir.Opcode]int{
	ir.OpSdiv: 6, ir.OpUdiv: 6, ir.OpSrem: 6, ir.OpUrem: 6,
	ir.OpImul: 3, ir.OpFmul: 3, ir.OpFdiv: 6,
}

const defaultOpCost = 2
const leafCost = 1
const constCost = 0

// Extraction is the chosen e-node for one e-class, with its already-
// extracted children.
type Extraction struct {
	Class    EClassID
	Node     ENode
	Children []*Extraction
	Cost     int
}

// Extract picks the minimum-cost e-node for every class reachable from
// roots, memoized so shared subexpressions are computed once.
func Extract(g *EGraph, roots []EClassID) map[EClassID]*Extraction {
	memo := make(map[EClassID]*Extraction)
	for _, r := range roots {
		extractClass(g, r, memo, make(map[EClassID]bool))
	}
	return memo
}

func extractClass(g *EGraph, class EClassID, memo map[EClassID]*Extraction, inProgress map[EClassID]bool) *Extraction {
	class = g.Find(class)
	if e, ok := memo[class]; ok {
		return e
	}
	if inProgress[class] {
		// The builder never introduces a cycle (block params/consts are
		// leaves, everything else refers to earlier Values); guard
		// anyway so a malformed e-graph can't hang extraction.
		return nil
	}
	inProgress[class] = true
	defer delete(inProgress, class)

	var best *Extraction
	for _, node := range g.ClassNodes(class) {
		base := constCost
		switch node.Kind {
		case KindOp:
			if c, ok := opCost[node.Op]; ok {
				base = c
			} else {
				base = defaultOpCost
			}
		case KindParam, KindOpaque:
			base = leafCost
		case KindConst:
			base = constCost
		}

		children := make([]*Extraction, len(node.Children))
		total := base
		ok := true
		for i, c := range node.Children {
			ce := extractClass(g, c, memo, inProgress)
			if ce == nil {
				ok = false
				break
			}
			children[i] = ce
			total += ce.Cost
		}
		if !ok {
			continue
		}
		if best == nil || total < best.Cost {
			best = &Extraction{Class: class, Node: node, Children: children, Cost: total}
		}
	}
	memo[class] = best
	return best
}
