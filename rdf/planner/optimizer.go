// Package planner rewrites algebra trees so that LIMIT, DISTINCT and
// REDUCED run as close to the data as they safely can.
//
// File organization:
//   - types.go: Options, Stats and the pass boundary sets
//   - optimizer.go: Optimizer and the rotation passes
//   - preconditions.go: the global LIMIT precondition check
//   - cache.go: PlanCache for repeated trees
//
// The optimizer never touches storage and never fails. A subtree it
// cannot safely relocate is left as it is.
package planner

import (
	"time"

	"github.com/wbrown/janus-rdf/rdf/algebra"
	"github.com/wbrown/janus-rdf/rdf/annotations"
)

// Optimizer runs the Slice, Distinct and Reduced passes to a fixed point
type Optimizer struct {
	options   Options
	collector *annotations.Collector
}

// NewOptimizer creates an optimizer
func NewOptimizer(options Options) *Optimizer {
	if options.MaxRounds <= 0 {
		options.MaxRounds = DefaultMaxRounds
	}
	return &Optimizer{
		options:   options,
		collector: annotations.NewCollector(options.Handler),
	}
}

// Options returns the optimizer options
func (o *Optimizer) Options() Options {
	return o.options
}

// Collector returns the event collector, enabled only with a handler
func (o *Optimizer) Collector() *annotations.Collector {
	return o.collector
}

// Optimize rewrites tree in place
func (o *Optimizer) Optimize(tree *algebra.Tree) {
	o.OptimizeWithStats(tree)
}

// OptimizeWithStats rewrites tree in place and reports what it did
func (o *Optimizer) OptimizeWithStats(tree *algebra.Tree) Stats {
	stats := Stats{Rotations: make(map[algebra.Kind]int)}
	if tree == nil || tree.Root() == algebra.NilRef {
		return stats
	}

	if o.options.EnableGlobalPreconditions && !LimitPreconditionsAllowed(tree) {
		stats.SkippedByPreconditions = true
		return stats
	}

	var key string
	if cache := o.options.Cache; cache != nil {
		key = PlanKey(tree, o.options)
		if cached, cachedStats, ok := cache.Get(key); ok {
			tree.CopyFrom(cached)
			stats = cachedStats.clone()
			stats.CacheHit = true
			return stats
		}
	}

	for stats.Rounds < o.options.MaxRounds {
		stats.Rounds++
		rotated := 0
		for _, p := range passes {
			n := o.runPass(tree, p)
			stats.Rotations[p.target] += n
			rotated += n
		}
		if rotated == 0 {
			break
		}
	}

	if cache := o.options.Cache; cache != nil {
		cache.Set(key, tree.Clone(), stats.clone())
	}
	return stats
}

// runPass visits the whole tree once and returns the rotation count
func (o *Optimizer) runPass(tree *algebra.Tree, p pass) int {
	start := time.Now()
	n := o.visit(tree, tree.Root(), p)

	o.collector.AddTiming(annotations.OptimizerPass, start, map[string]interface{}{
		"pass":      p.target.String(),
		"rotations": n,
	})
	return n
}

// visit sinks ref if it is the pass target, then descends pre-order.
// Descending continues below nodes that did not rotate.
func (o *Optimizer) visit(tree *algebra.Tree, ref algebra.NodeRef, p pass) int {
	n := 0
	if tree.Kind(ref) == p.target {
		for canRotate(tree, ref, p) {
			start := time.Now()
			over := tree.RotateDown(ref)
			n++
			o.collector.AddTiming(annotations.OptimizerRotation, start, map[string]interface{}{
				"target": p.target.String(),
				"over":   tree.Kind(over).String(),
			})
		}
	}

	// Children may be relinked by rotations below, so index each time
	for i := 0; i < len(tree.Children(ref)); i++ {
		n += o.visit(tree, tree.Children(ref)[i], p)
	}
	return n
}

// canRotate reports whether ref may swap with its child: the child must
// have exactly one child and a kind outside the boundary. A target never
// sinks below its own kind.
func canRotate(tree *algebra.Tree, ref algebra.NodeRef, p pass) bool {
	child := tree.Child(ref)
	if child == algebra.NilRef || !tree.IsUnary(child) {
		return false
	}
	kind := tree.Kind(child)
	return kind != p.target && !p.boundary.Has(kind)
}
