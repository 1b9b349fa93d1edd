// Package algebra holds query-algebra trees in an index-addressed arena,
// so rewrites relink nodes instead of copying subtrees.
package algebra

import (
	"fmt"
	"strings"
)

// Kind is the operator of an algebra node
type Kind uint8

const (
	KindJoin Kind = iota + 1
	KindLeftJoin
	KindFilter
	KindUnion
	KindStatementPattern // Leaf
	KindOrder
	KindGroup
	KindSlice
	KindDistinct
	KindReduced
	KindProjection
	KindExtension
	KindUnary // Any other single-child operator
)

var kindNames = map[Kind]string{
	KindJoin:             "Join",
	KindLeftJoin:         "LeftJoin",
	KindFilter:           "Filter",
	KindUnion:            "Union",
	KindStatementPattern: "StatementPattern",
	KindOrder:            "Order",
	KindGroup:            "Group",
	KindSlice:            "Slice",
	KindDistinct:         "Distinct",
	KindReduced:          "Reduced",
	KindProjection:       "Projection",
	KindExtension:        "Extension",
	KindUnary:            "Unary",
}

// symbols are the operator names used in the textual form
var symbols = map[Kind]string{
	KindJoin:             "join",
	KindLeftJoin:         "left-join",
	KindFilter:           "filter",
	KindUnion:            "union",
	KindStatementPattern: "pattern",
	KindOrder:            "order",
	KindGroup:            "group",
	KindSlice:            "slice",
	KindDistinct:         "distinct",
	KindReduced:          "reduced",
	KindProjection:       "projection",
	KindExtension:        "extension",
	KindUnary:            "unary",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Symbol returns the operator name of the textual form
func (k Kind) Symbol() string {
	if s, ok := symbols[k]; ok {
		return s
	}
	return strings.ToLower(k.String())
}

// arity returns the number of children the operator takes
func (k Kind) arity() int {
	switch k {
	case KindStatementPattern:
		return 0
	case KindJoin, KindLeftJoin, KindUnion:
		return 2
	default:
		return 1
	}
}

// ParseKind accepts either the operator symbol ("left-join") or the kind
// name ("LeftJoin")
func ParseKind(s string) (Kind, error) {
	for k, sym := range symbols {
		if s == sym || s == kindNames[k] {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown operator %q", s)
}

// KindSet is a set of operator kinds
type KindSet uint32

// NewKindSet creates a set holding kinds
func NewKindSet(kinds ...Kind) KindSet {
	var s KindSet
	for _, k := range kinds {
		s = s.With(k)
	}
	return s
}

// With returns the set plus k
func (s KindSet) With(k Kind) KindSet {
	return s | 1<<k
}

// Has reports whether k is in the set
func (s KindSet) Has(k Kind) bool {
	return s&(1<<k) != 0
}

// Kinds lists the members in declaration order
func (s KindSet) Kinds() []Kind {
	var out []Kind
	for k := KindJoin; k <= KindUnary; k++ {
		if s.Has(k) {
			out = append(out, k)
		}
	}
	return out
}

func (s KindSet) String() string {
	kinds := s.Kinds()
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = k.String()
	}
	return "{" + strings.Join(names, ", ") + "}"
}
