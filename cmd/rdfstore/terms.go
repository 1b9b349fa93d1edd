package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"unicode"

	"github.com/wbrown/janus-rdf/rdf"
)

// isWildcard reports whether a pattern argument matches anything
func isWildcard(s string) bool {
	return s == "*" || strings.HasPrefix(s, "?")
}

// parsePattern builds a pattern from up to four positional terms
func parsePattern(args []string, resolve rdf.NamespaceResolver) (rdf.Pattern, error) {
	var nodes [4]rdf.Node
	for i, arg := range args {
		if isWildcard(arg) {
			continue
		}
		n, err := rdf.ParseTerm(arg, resolve)
		if err != nil {
			return rdf.Pattern{}, fmt.Errorf("argument %d: %w", i+1, err)
		}
		nodes[i] = n
	}
	return rdf.Pattern{Subject: nodes[0], Predicate: nodes[1], Object: nodes[2], Context: nodes[3]}, nil
}

// parseStatement builds a statement from three or four terms
func parseStatement(terms []string, resolve rdf.NamespaceResolver) (rdf.Statement, error) {
	if len(terms) < 3 || len(terms) > 4 {
		return rdf.Statement{}, fmt.Errorf("expected subject, predicate, object and optional graph, got %d terms", len(terms))
	}

	var nodes [4]rdf.Node
	for i, term := range terms {
		n, err := rdf.ParseTerm(term, resolve)
		if err != nil {
			return rdf.Statement{}, err
		}
		nodes[i] = n
	}
	st := rdf.NewQuad(nodes[0], nodes[1], nodes[2], nodes[3])
	return st, st.Validate()
}

// readStatements parses one statement per line. Blank lines and lines
// starting with '#' are skipped; a trailing " ." is optional.
func readStatements(r io.Reader, resolve rdf.NamespaceResolver) ([]rdf.Statement, error) {
	var statements []rdf.Statement
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		terms, err := splitTerms(text)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if n := len(terms); n > 0 && terms[n-1] == "." {
			terms = terms[:n-1]
		}
		st, err := parseStatement(terms, resolve)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		statements = append(statements, st)
	}
	return statements, scanner.Err()
}

// splitTerms splits a line on whitespace outside quoted literals and
// angle-bracketed IRIs
func splitTerms(line string) ([]string, error) {
	var terms []string
	var cur strings.Builder
	inQuote, inIRI, escaped := false, false, false

	flush := func() {
		if cur.Len() > 0 {
			terms = append(terms, cur.String())
			cur.Reset()
		}
	}

	for _, r := range line {
		switch {
		case escaped:
			escaped = false
		case inQuote && r == '\\':
			escaped = true
		case r == '"' && !inIRI:
			inQuote = !inQuote
		case r == '<' && !inQuote:
			inIRI = true
		case r == '>' && inIRI:
			inIRI = false
		case unicode.IsSpace(r) && !inQuote && !inIRI:
			flush()
			continue
		}
		cur.WriteRune(r)
	}

	if inQuote || inIRI {
		return nil, fmt.Errorf("%w: unterminated term in %q", rdf.ErrMalformedNode, line)
	}
	flush()
	return terms, nil
}
