package algebra

import (
	"fmt"
	"strconv"
	"unicode"
)

type tokenType int

const (
	tokenEOF tokenType = iota
	tokenLeftParen
	tokenRightParen
	tokenAtom
	tokenString
)

type token struct {
	typ   tokenType
	value string
	line  int
	col   int
}

func (t token) String() string {
	switch t.typ {
	case tokenEOF:
		return "end of input"
	case tokenLeftParen:
		return "'('"
	case tokenRightParen:
		return "')'"
	default:
		return fmt.Sprintf("%q", t.value)
	}
}

// lex splits the textual form into tokens. Commas count as whitespace
// and ';' starts a comment that runs to the end of the line.
func lex(input string) ([]token, error) {
	var tokens []token
	line, col := 1, 1
	pos := 0

	advance := func(n int) {
		for i := 0; i < n; i++ {
			if input[pos] == '\n' {
				line++
				col = 1
			} else {
				col++
			}
			pos++
		}
	}

	for pos < len(input) {
		ch := input[pos]
		switch {
		case unicode.IsSpace(rune(ch)) || ch == ',':
			advance(1)

		case ch == ';':
			for pos < len(input) && input[pos] != '\n' {
				advance(1)
			}

		case ch == '(':
			tokens = append(tokens, token{typ: tokenLeftParen, line: line, col: col})
			advance(1)

		case ch == ')':
			tokens = append(tokens, token{typ: tokenRightParen, line: line, col: col})
			advance(1)

		case ch == '"':
			quoted, err := strconv.QuotedPrefix(input[pos:])
			if err != nil {
				return nil, fmt.Errorf("unterminated string at %d:%d", line, col)
			}
			value, err := strconv.Unquote(quoted)
			if err != nil {
				return nil, fmt.Errorf("invalid string at %d:%d: %w", line, col, err)
			}
			tokens = append(tokens, token{typ: tokenString, value: value, line: line, col: col})
			advance(len(quoted))

		default:
			start, startLine, startCol := pos, line, col
			for pos < len(input) && !isDelimiter(input[pos]) {
				advance(1)
			}
			tokens = append(tokens, token{typ: tokenAtom, value: input[start:pos], line: startLine, col: startCol})
		}
	}

	return append(tokens, token{typ: tokenEOF, line: line, col: col}), nil
}

func isDelimiter(ch byte) bool {
	return ch == '(' || ch == ')' || ch == '"' || ch == ';' || ch == ',' || unicode.IsSpace(rune(ch))
}

type parser struct {
	tokens []token
	pos    int
	tree   *Tree
}

// Parse reads the textual form produced by Tree.String, e.g.
//
//	(slice :limit 10
//	  (projection ?s
//	    (join
//	      (pattern ?s foaf:knows ?o)
//	      (pattern ?o foaf:name "Bob"))))
func Parse(input string) (*Tree, error) {
	tokens, err := lex(input)
	if err != nil {
		return nil, err
	}

	p := &parser{tokens: tokens, tree: NewTree()}
	root, err := p.expr()
	if err != nil {
		return nil, err
	}
	if tok := p.peek(); tok.typ != tokenEOF {
		return nil, fmt.Errorf("unexpected %v after expression at %d:%d", tok, tok.line, tok.col)
	}

	p.tree.SetRoot(root)
	return p.tree, nil
}

// MustParse is Parse for trees known to be valid
func MustParse(input string) *Tree {
	t, err := Parse(input)
	if err != nil {
		panic(err)
	}
	return t
}

func (p *parser) peek() token {
	return p.tokens[p.pos]
}

func (p *parser) next() token {
	tok := p.tokens[p.pos]
	if tok.typ != tokenEOF {
		p.pos++
	}
	return tok
}

func (p *parser) expr() (NodeRef, error) {
	open := p.next()
	if open.typ != tokenLeftParen {
		return NilRef, fmt.Errorf("expected '(' at %d:%d, got %v", open.line, open.col, open)
	}

	head := p.next()
	if head.typ != tokenAtom {
		return NilRef, fmt.Errorf("expected operator at %d:%d, got %v", head.line, head.col, head)
	}
	kind, err := ParseKind(head.value)
	if err != nil {
		return NilRef, fmt.Errorf("%w at %d:%d", err, head.line, head.col)
	}

	var args []string
	offset, limit := int64(0), NoLimit
	var children []NodeRef

	for {
		tok := p.peek()
		switch tok.typ {
		case tokenEOF:
			return NilRef, fmt.Errorf("unterminated %s starting at %d:%d", head.value, open.line, open.col)

		case tokenRightParen:
			p.next()
			if want := kind.arity(); len(children) != want {
				return NilRef, fmt.Errorf("%s at %d:%d takes %d children, got %d",
					head.value, open.line, open.col, want, len(children))
			}
			ref := p.tree.Add(kind, args, children...)
			if kind == KindSlice {
				p.tree.nodes[ref].offset = offset
				p.tree.nodes[ref].limit = limit
			}
			return ref, nil

		case tokenLeftParen:
			child, err := p.expr()
			if err != nil {
				return NilRef, err
			}
			children = append(children, child)

		default:
			p.next()
			if len(children) > 0 {
				return NilRef, fmt.Errorf("argument %v after child expression at %d:%d", tok, tok.line, tok.col)
			}
			if kind == KindSlice && tok.typ == tokenAtom && (tok.value == ":limit" || tok.value == ":offset") {
				n, err := p.integer()
				if err != nil {
					return NilRef, err
				}
				if tok.value == ":limit" {
					limit = n
				} else {
					offset = n
				}
				continue
			}
			args = append(args, tok.value)
		}
	}
}

func (p *parser) integer() (int64, error) {
	tok := p.next()
	if tok.typ != tokenAtom {
		return 0, fmt.Errorf("expected integer at %d:%d, got %v", tok.line, tok.col, tok)
	}
	n, err := strconv.ParseInt(tok.value, 10, 64)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("expected non-negative integer at %d:%d, got %v", tok.line, tok.col, tok)
	}
	return n, nil
}
