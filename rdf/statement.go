package rdf

import (
	"fmt"
	"strings"
)

// Statement is a subject-predicate-object fact scoped to a context.
// A nil Context places the statement in the default graph.
type Statement struct {
	Subject   Node
	Predicate Node
	Object    Node
	Context   Node
	Inferred  bool
}

// NewStatement creates an explicit statement in the default graph
func NewStatement(s, p, o Node) Statement {
	return Statement{Subject: s, Predicate: p, Object: o}
}

// NewQuad creates an explicit statement in a named graph
func NewQuad(s, p, o, c Node) Statement {
	return Statement{Subject: s, Predicate: p, Object: o, Context: c}
}

// Validate checks the positional constraints of RDF: subjects are IRIs or
// blank nodes, predicates are IRIs, contexts are IRIs or blank nodes.
func (s Statement) Validate() error {
	if s.Subject == nil || s.Predicate == nil || s.Object == nil {
		return fmt.Errorf("%w: statement has a nil component", ErrMalformedNode)
	}
	for _, n := range []Node{s.Subject, s.Predicate, s.Object, s.Context} {
		if n == nil {
			continue
		}
		if err := ValidateNode(n); err != nil {
			return err
		}
	}
	if s.Subject.Kind() == KindLiteral {
		return fmt.Errorf("%w: literal subject %s", ErrMalformedNode, s.Subject)
	}
	if s.Predicate.Kind() != KindIRI {
		return fmt.Errorf("%w: predicate %s is not an IRI", ErrMalformedNode, s.Predicate)
	}
	if s.Context != nil && s.Context.Kind() == KindLiteral {
		return fmt.Errorf("%w: literal context %s", ErrMalformedNode, s.Context)
	}
	return nil
}

// Equal compares statements by their four terms and inferred flag
func (s Statement) Equal(other Statement) bool {
	return Equal(s.Subject, other.Subject) &&
		Equal(s.Predicate, other.Predicate) &&
		Equal(s.Object, other.Object) &&
		Equal(s.Context, other.Context) &&
		s.Inferred == other.Inferred
}

// String renders the statement in N-Quads form
func (s Statement) String() string {
	var b strings.Builder
	b.WriteString(termString(s.Subject))
	b.WriteByte(' ')
	b.WriteString(termString(s.Predicate))
	b.WriteByte(' ')
	b.WriteString(termString(s.Object))
	if s.Context != nil {
		b.WriteByte(' ')
		b.WriteString(s.Context.String())
	}
	b.WriteString(" .")
	return b.String()
}

func termString(n Node) string {
	if n == nil {
		return "?"
	}
	return n.String()
}

// Pattern selects statements. A nil component is a wildcard. A nil
// Context matches every graph unless DefaultGraph is set, in which case
// only default graph statements match.
type Pattern struct {
	Subject      Node
	Predicate    Node
	Object       Node
	Context      Node
	DefaultGraph bool
}

// Any matches every statement
var Any = Pattern{}

// PatternOf builds a pattern that matches exactly the given statement
func PatternOf(s Statement) Pattern {
	return Pattern{
		Subject:      s.Subject,
		Predicate:    s.Predicate,
		Object:       s.Object,
		Context:      s.Context,
		DefaultGraph: s.Context == nil,
	}
}

// Matches reports whether the statement satisfies the pattern
func (p Pattern) Matches(s Statement) bool {
	if p.Subject != nil && !Equal(p.Subject, s.Subject) {
		return false
	}
	if p.Predicate != nil && !Equal(p.Predicate, s.Predicate) {
		return false
	}
	if p.Object != nil && !Equal(p.Object, s.Object) {
		return false
	}
	if p.Context != nil {
		return Equal(p.Context, s.Context)
	}
	if p.DefaultGraph {
		return s.Context == nil
	}
	return true
}

// String renders the pattern with ? for wildcards
func (p Pattern) String() string {
	ctx := ""
	switch {
	case p.Context != nil:
		ctx = " " + p.Context.String()
	case !p.DefaultGraph:
		ctx = " ?"
	}
	return fmt.Sprintf("%s %s %s%s", termString(p.Subject), termString(p.Predicate), termString(p.Object), ctx)
}
