package rdf

import (
	"fmt"
	"strconv"
	"strings"
)

// NamespaceResolver maps a prefix such as "foaf" to its IRI
type NamespaceResolver func(prefix string) (string, bool)

// ParseTerm parses a single term in N-Triples-like syntax:
//
//	<http://example.org/a>     IRI
//	_:b0                       blank node
//	"text"  "text"@en          plain and language-tagged literals
//	"42"^^<xsd-iri>            typed literal, datatype may be prefixed
//	42  true                   integer and boolean shorthands
//	foaf:name                  prefixed name, expanded through resolve
//
// A prefixed name whose prefix is unknown is taken as an absolute IRI.
func ParseTerm(s string, resolve NamespaceResolver) (Node, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("%w: empty term", ErrMalformedNode)
	}

	switch {
	case s[0] == '<':
		if !strings.HasSuffix(s, ">") {
			return nil, fmt.Errorf("%w: unterminated IRI %s", ErrMalformedNode, s)
		}
		return NewIRI(s[1 : len(s)-1])

	case strings.HasPrefix(s, "_:"):
		return NewBlankNode(s[2:])

	case s[0] == '"':
		return parseLiteral(s, resolve)

	case s == "true" || s == "false":
		return NewTypedLiteral(s, MustIRI(XSDBoolean)), nil
	}

	if _, err := strconv.ParseInt(s, 10, 64); err == nil {
		return NewTypedLiteral(s, MustIRI(XSDInteger)), nil
	}

	return expandName(s, resolve)
}

func expandName(s string, resolve NamespaceResolver) (IRI, error) {
	if idx := strings.IndexByte(s, ':'); idx >= 0 && resolve != nil {
		if ns, ok := resolve(s[:idx]); ok {
			return NewIRI(ns + s[idx+1:])
		}
	}
	return NewIRI(s)
}

func parseLiteral(s string, resolve NamespaceResolver) (Node, error) {
	var value strings.Builder
	i := 1
	closed := false
	for i < len(s) {
		c := s[i]
		if c == '"' {
			closed = true
			i++
			break
		}
		if c == '\\' && i+1 < len(s) {
			i++
			switch s[i] {
			case 'n':
				value.WriteByte('\n')
			case 'r':
				value.WriteByte('\r')
			case 't':
				value.WriteByte('\t')
			default:
				value.WriteByte(s[i])
			}
			i++
			continue
		}
		value.WriteByte(c)
		i++
	}
	if !closed {
		return nil, fmt.Errorf("%w: unterminated literal %s", ErrMalformedNode, s)
	}

	rest := s[i:]
	switch {
	case rest == "":
		return NewLiteral(value.String()), nil
	case strings.HasPrefix(rest, "@"):
		return NewLangLiteral(value.String(), rest[1:])
	case strings.HasPrefix(rest, "^^"):
		dt := rest[2:]
		var iri IRI
		var err error
		if strings.HasPrefix(dt, "<") && strings.HasSuffix(dt, ">") {
			iri, err = NewIRI(dt[1 : len(dt)-1])
		} else {
			iri, err = expandName(dt, resolve)
		}
		if err != nil {
			return nil, err
		}
		return NewTypedLiteral(value.String(), iri), nil
	}
	return nil, fmt.Errorf("%w: trailing characters after literal: %s", ErrMalformedNode, rest)
}
