package planner

import "github.com/wbrown/janus-rdf/rdf/algebra"

// LimitPreconditionsAllowed is the conservative whole-tree check for
// moving a LIMIT. It refuses any tree with an Order, Group, LeftJoin or
// Union reachable without crossing a Filter or Join; subtrees under a
// Filter or Join are not inspected.
//
// The per-pass boundary sets already keep every target above these
// operators, so the check is off unless Options.EnableGlobalPreconditions
// is set.
func LimitPreconditionsAllowed(tree *algebra.Tree) bool {
	allowed := true
	tree.Walk(func(ref algebra.NodeRef, _ int) bool {
		switch tree.Kind(ref) {
		case algebra.KindOrder, algebra.KindGroup, algebra.KindLeftJoin, algebra.KindUnion:
			allowed = false
			return false
		case algebra.KindFilter, algebra.KindJoin:
			return false
		}
		return allowed
	})
	return allowed
}
