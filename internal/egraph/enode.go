// Package egraph implements the equality-saturation optimizer from
// : a hash-consed e-graph of e-nodes grouped into e-classes
// by a union-find, rewritten to a fixpoint by a fixed rule set, then
// extracted back into a Function by minimum cost.
package egraph

import (
	"fmt"

	"github.com/joelreymont/hoist-sub004/internal/ir"
)

// EClassID names an e-class. IDs are assigned densely starting at 0;
// Find(id) gives the current union-find representative.
type EClassID uint32

// Kind discriminates the four shapes of e-node this package builds:
// an IR operator application, an opaque leaf standing in for a block
// parameter, an opaque leaf standing in for a literal constant, and an
// opaque leaf standing in for an effectful instruction's result.
type Kind uint8

const (
	KindOp Kind = iota
	KindParam
	KindConst
	// KindOpaque wraps an effectful/unanalyzed instruction (call,
	// load, stack_alloc, tls_value): its Attr embeds the defining
	// instruction's identity so it never unifies with another opaque
	// node by accident.
	KindOpaque
)

// ENode is the tuple (opcode, children, attribute-key), generalized
// with a Kind tag for the three leaf shapes.
type ENode struct {
	Kind     Kind
	Op       ir.Opcode // meaningful when Kind == KindOp
	Children []EClassID
	Attr     string // constants, condition codes, immediate bit patterns, result type
}

// key is the canonical hash-cons key: children are always replaced by
// their current union-find root before hashing, and a commutative
// op's two children are ordered by id so `a op b` and `b op a` hash
// identically.
type key string

func makeKey(n ENode) key {
	children := n.Children
	if n.Kind == KindOp && n.Op.Commutative() && len(children) == 2 && children[0] > children[1] {
		children = []EClassID{children[1], children[0]}
	}
	return key(fmt.Sprintf("%d:%d:%v:%s", n.Kind, n.Op, children, n.Attr))
}
