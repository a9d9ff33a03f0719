package egraph

import "github.com/joelreymont/hoist-sub004/internal/types"

// storedNode remembers an e-node at the class id it was originally
// inserted into; after unions that id may no longer be the class
// root, which is exactly what Rebuild resolves.
type storedNode struct {
	node  ENode
	class EClassID
}

// EGraph is the hash-consed e-graph described in 
type EGraph struct {
	uf       *unionFind
	hashcons map[key]EClassID
	nodes    []storedNode
	pool     *types.Pool
}

// New returns an empty EGraph.
func New(pool *types.Pool) *EGraph {
	return &EGraph{
		uf:       newUnionFind(),
		hashcons: make(map[key]EClassID),
		pool:     pool,
	}
}

// Find returns id's current representative class.
func (g *EGraph) Find(id EClassID) EClassID { return g.uf.find(id) }

// Union merges the classes of a and b and returns whether they were
// previously distinct.
func (g *EGraph) Union(a, b EClassID) bool {
	_, merged := g.uf.union(a, b)
	return merged
}

// NumClasses returns the number of e-classes ever allocated (not all
// may still be roots).
func (g *EGraph) NumClasses() int { return g.uf.numClasses() }

// Add inserts (or finds, if hash-consing already holds an equal node)
// an e-node and returns its class id. Children are expected to already
// be current representatives; Add canonicalizes them again internally
// so callers never need to call Find first.
func (g *EGraph) Add(n ENode) EClassID {
	canon := make([]EClassID, len(n.Children))
	for i, c := range n.Children {
		canon[i] = g.uf.find(c)
	}
	n.Children = canon

	k := makeKey(n)
	if existing, ok := g.hashcons[k]; ok {
		return g.uf.find(existing)
	}
	class := g.uf.fresh()
	g.nodes = append(g.nodes, storedNode{node: n, class: class})
	g.hashcons[k] = class
	return class
}

// ClassNodes returns every e-node whose original insertion class
// currently canonicalizes to root (root must already be a
// representative, i.e. Find(root) == root).
func (g *EGraph) ClassNodes(root EClassID) []ENode {
	var out []ENode
	for _, sn := range g.nodes {
		if g.uf.find(sn.class) == root {
			out = append(out, sn.node)
		}
	}
	return out
}

// Roots returns the current set of distinct class representatives.
func (g *EGraph) Roots() []EClassID {
	seen := make(map[EClassID]bool)
	var out []EClassID
	for id := EClassID(0); int(id) < g.uf.numClasses(); id++ {
		r := g.uf.find(id)
		if !seen[r] {
			seen[r] = true
			out = append(out, r)
		}
	}
	return out
}

// Rebuild re-canonicalizes every stored node's children against the
// current union-find state and merges any hash-cons collisions this
// reveals, repeating until no more merges occur. It returns whether any merge happened.
func (g *EGraph) Rebuild() bool {
	anyMerge := false
	for {
		fresh := make(map[key]EClassID, len(g.hashcons))
		mergedThisPass := false
		for _, sn := range g.nodes {
			n := sn.node
			canon := make([]EClassID, len(n.Children))
			for i, c := range n.Children {
				canon[i] = g.uf.find(c)
			}
			n.Children = canon
			root := g.uf.find(sn.class)

			k := makeKey(n)
			if existing, ok := fresh[k]; ok {
				if g.uf.find(existing) != root {
					g.uf.union(existing, root)
					mergedThisPass = true
				}
			} else {
				fresh[k] = root
			}
		}
		g.hashcons = fresh
		if !mergedThisPass {
			break
		}
		anyMerge = true
	}
	return anyMerge
}
