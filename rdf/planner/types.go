package planner

import (
	"github.com/wbrown/janus-rdf/rdf/algebra"
	"github.com/wbrown/janus-rdf/rdf/annotations"
)

// DefaultMaxRounds bounds how often the three passes are repeated
const DefaultMaxRounds = 8

// Options controls the optimizer
type Options struct {
	EnableGlobalPreconditions bool                // Refuse trees that fail LimitPreconditionsAllowed (default: false, pending review)
	MaxRounds                 int                 // Upper bound on pass rounds (0 = DefaultMaxRounds)
	Handler                   annotations.Handler // Receives optimizer/pass and optimizer/rotation events (optional)
	Cache                     *PlanCache          // Shared cache of optimized trees (optional)
}

// DefaultOptions returns the options used when none are given
func DefaultOptions() Options {
	return Options{
		MaxRounds: DefaultMaxRounds,
	}
}

// Stats describes one Optimize run
type Stats struct {
	Rounds                 int                  // Rounds executed, including the final quiet one
	Rotations              map[algebra.Kind]int // Rotations per pass target
	SkippedByPreconditions bool                 // The global precondition check refused the tree
	CacheHit               bool                 // The result was replayed from the plan cache
}

// Total returns the number of rotations over all passes
func (s Stats) Total() int {
	n := 0
	for _, r := range s.Rotations {
		n += r
	}
	return n
}

func (s Stats) clone() Stats {
	out := s
	out.Rotations = make(map[algebra.Kind]int, len(s.Rotations))
	for k, v := range s.Rotations {
		out.Rotations[k] = v
	}
	return out
}

// pass sinks every target node until its child is in boundary
type pass struct {
	target   algebra.Kind
	boundary algebra.KindSet
}

// Operators no cardinality modifier may cross
var barriers = algebra.NewKindSet(
	algebra.KindJoin,
	algebra.KindLeftJoin,
	algebra.KindFilter,
	algebra.KindStatementPattern,
	algebra.KindUnion,
	algebra.KindOrder,
	algebra.KindGroup,
)

// passes run in this order every round. Each later pass treats the
// earlier targets as boundaries, so Slice may sink below Distinct and
// Reduced but never the reverse, and rounds always reach a fixed point.
var passes = []pass{
	{target: algebra.KindSlice, boundary: barriers},
	{target: algebra.KindDistinct, boundary: barriers.With(algebra.KindSlice)},
	{target: algebra.KindReduced, boundary: barriers.With(algebra.KindSlice).With(algebra.KindDistinct)},
}

// Boundary returns the kinds a pass target stops above. ok is false
// when target has no pass.
func Boundary(target algebra.Kind) (set algebra.KindSet, ok bool) {
	for _, p := range passes {
		if p.target == target {
			return p.boundary, true
		}
	}
	return 0, false
}
