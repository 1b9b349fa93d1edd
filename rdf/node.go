package rdf

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Well-known vocabulary IRIs
const (
	XSDString     = "http://www.w3.org/2001/XMLSchema#string"
	XSDInteger    = "http://www.w3.org/2001/XMLSchema#integer"
	XSDBoolean    = "http://www.w3.org/2001/XMLSchema#boolean"
	XSDDateTime   = "http://www.w3.org/2001/XMLSchema#dateTime"
	XSDDate       = "http://www.w3.org/2001/XMLSchema#date"
	RDFLangString = "http://www.w3.org/1999/02/22-rdf-syntax-ns#langString"
	RDFType       = "http://www.w3.org/1999/02/22-rdf-syntax-ns#type"
)

// NodeKind discriminates the three RDF term variants
type NodeKind uint8

const (
	KindIRI NodeKind = iota + 1
	KindBlank
	KindLiteral
)

// String returns the kind name
func (k NodeKind) String() string {
	switch k {
	case KindIRI:
		return "iri"
	case KindBlank:
		return "bnode"
	case KindLiteral:
		return "literal"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// ParseNodeKind is the inverse of NodeKind.String
func ParseNodeKind(s string) (NodeKind, error) {
	switch s {
	case "iri":
		return KindIRI, nil
	case "bnode":
		return KindBlank, nil
	case "literal":
		return KindLiteral, nil
	}
	return 0, fmt.Errorf("%w: unknown node kind %q", ErrMalformedNode, s)
}

// NodeID identifies a registered node. IDs are assigned once per distinct
// node value and never reused. Zero is reserved for the default graph.
type NodeID uint64

// DefaultGraphID is the context ID of statements without a named graph
const DefaultGraphID NodeID = 0

// Node is an immutable RDF term: an IRI, a blank node or a literal.
type Node interface {
	Kind() NodeKind
	// Lexical returns the IRI string, blank node id or literal value
	Lexical() string
	// Key returns the semantic identity of the node
	Key() NodeKey
	String() string
}

// NodeKey is the structural identity of a node. Two nodes are equal iff
// their keys are equal, so NodeKey is usable as a map key.
type NodeKey struct {
	Kind     NodeKind
	Value    string
	Datatype string
	Language string
}

// Node rebuilds the term described by the key
func (k NodeKey) Node() (Node, error) {
	switch k.Kind {
	case KindIRI:
		return NewIRI(k.Value)
	case KindBlank:
		return NewBlankNode(k.Value)
	case KindLiteral:
		if k.Language != "" {
			return NewLangLiteral(k.Value, k.Language)
		}
		return Literal{value: k.Value, datatype: k.Datatype}, nil
	}
	return nil, fmt.Errorf("%w: unknown node kind %d", ErrMalformedNode, k.Kind)
}

// Equal reports whether two nodes are semantically equal.
// A nil node only equals another nil node.
func Equal(a, b Node) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Key() == b.Key()
}

// ValidateNode rejects nodes that bypassed their constructors, such as
// the zero IRI or blank node
func ValidateNode(n Node) error {
	switch v := n.(type) {
	case nil:
		return fmt.Errorf("%w: nil node", ErrMalformedNode)
	case IRI:
		_, err := NewIRI(v.value)
		return err
	case BlankNode:
		_, err := NewBlankNode(v.id)
		return err
	}
	return nil
}

// IRI is a globally unique resource identifier
type IRI struct {
	value string
}

// NewIRI creates an IRI. The string must carry a scheme separator.
func NewIRI(s string) (IRI, error) {
	if strings.IndexByte(s, ':') < 1 {
		return IRI{}, fmt.Errorf("%w: IRI %q has no scheme", ErrMalformedNode, s)
	}
	return IRI{value: s}, nil
}

// MustIRI is NewIRI that panics on malformed input. Intended for constants.
func MustIRI(s string) IRI {
	iri, err := NewIRI(s)
	if err != nil {
		panic(err)
	}
	return iri
}

func (i IRI) Kind() NodeKind  { return KindIRI }
func (i IRI) Lexical() string { return i.value }
func (i IRI) Key() NodeKey    { return NodeKey{Kind: KindIRI, Value: i.value} }
func (i IRI) String() string  { return "<" + i.value + ">" }

// LocalName returns the part after the last '#', '/' or ':'
func (i IRI) LocalName() string {
	idx := strings.LastIndexAny(i.value, "#/:")
	return i.value[idx+1:]
}

// BlankNode is an anonymous node local to the store
type BlankNode struct {
	id string
}

// NewBlankNode creates a blank node with the given local id
func NewBlankNode(id string) (BlankNode, error) {
	if id == "" {
		return BlankNode{}, fmt.Errorf("%w: empty blank node id", ErrMalformedNode)
	}
	return BlankNode{id: id}, nil
}

// FreshBlankNode mints a blank node with a random id
func FreshBlankNode() BlankNode {
	return BlankNode{id: "b" + strings.ReplaceAll(uuid.NewString(), "-", "")}
}

func (b BlankNode) Kind() NodeKind  { return KindBlank }
func (b BlankNode) Lexical() string { return b.id }
func (b BlankNode) Key() NodeKey    { return NodeKey{Kind: KindBlank, Value: b.id} }
func (b BlankNode) String() string  { return "_:" + b.id }

// Literal is a lexical value with a datatype and optional language tag
type Literal struct {
	value    string
	datatype string
	language string
}

// NewLiteral creates an xsd:string literal
func NewLiteral(value string) Literal {
	return Literal{value: value, datatype: XSDString}
}

// NewTypedLiteral creates a literal with an explicit datatype
func NewTypedLiteral(value string, datatype IRI) Literal {
	dt := datatype.value
	if dt == "" {
		dt = XSDString
	}
	return Literal{value: value, datatype: dt}
}

// NewLangLiteral creates a language-tagged string. Tags compare
// case-insensitively, so they are stored lower-cased.
func NewLangLiteral(value, lang string) (Literal, error) {
	if lang == "" {
		return Literal{}, fmt.Errorf("%w: empty language tag", ErrMalformedNode)
	}
	for _, r := range lang {
		if !(r == '-' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')) {
			return Literal{}, fmt.Errorf("%w: invalid language tag %q", ErrMalformedNode, lang)
		}
	}
	return Literal{value: value, datatype: RDFLangString, language: strings.ToLower(lang)}, nil
}

func (l Literal) Kind() NodeKind  { return KindLiteral }
func (l Literal) Lexical() string { return l.value }

// Datatype returns the datatype IRI string. The zero Literal is an
// empty xsd:string.
func (l Literal) Datatype() string {
	if l.datatype == "" {
		return XSDString
	}
	return l.datatype
}

// Language returns the language tag, or "" for typed literals
func (l Literal) Language() string { return l.language }

func (l Literal) Key() NodeKey {
	return NodeKey{Kind: KindLiteral, Value: l.value, Datatype: l.Datatype(), Language: l.language}
}

func (l Literal) String() string {
	quoted := quoteLiteral(l.value)
	switch {
	case l.language != "":
		return quoted + "@" + l.language
	case l.datatype == XSDString || l.datatype == "":
		return quoted
	default:
		return quoted + "^^<" + l.datatype + ">"
	}
}

var literalEscaper = strings.NewReplacer(
	`\`, `\\`,
	`"`, `\"`,
	"\n", `\n`,
	"\r", `\r`,
	"\t", `\t`,
)

func quoteLiteral(s string) string {
	return `"` + literalEscaper.Replace(s) + `"`
}
