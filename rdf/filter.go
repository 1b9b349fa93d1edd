package rdf

import "strings"

// ResourceFilter decides whether a resource should be kept
type ResourceFilter interface {
	Accept(n Node) bool
}

// PrefixFilter accepts IRIs starting with any of its prefixes.
// Blank nodes and literals are always rejected.
type PrefixFilter struct {
	prefixes []string
}

// NewPrefixFilter creates a filter over the given IRI prefixes
func NewPrefixFilter(prefixes ...string) *PrefixFilter {
	return &PrefixFilter{prefixes: append([]string(nil), prefixes...)}
}

// Prefixes returns the configured prefixes
func (f *PrefixFilter) Prefixes() []string {
	return append([]string(nil), f.prefixes...)
}

// Accept implements ResourceFilter
func (f *PrefixFilter) Accept(n Node) bool {
	iri, ok := n.(IRI)
	if !ok {
		return false
	}
	for _, prefix := range f.prefixes {
		if strings.HasPrefix(iri.value, prefix) {
			return true
		}
	}
	return false
}
