package export

import (
	"context"
	"io"
	"time"

	"github.com/pkg/errors"

	"github.com/wbrown/janus-rdf/rdf"
	"github.com/wbrown/janus-rdf/rdf/storage"
)

// MarkdownExporter renders live statements as a markdown table
type MarkdownExporter struct {
	w         io.Writer
	formatter *rdf.TableFormatter
}

// NewMarkdownExporter writes to w
func NewMarkdownExporter(w io.Writer) *MarkdownExporter {
	return &MarkdownExporter{w: w, formatter: rdf.NewTableFormatter()}
}

// Export writes one table of every live statement in SPOC order
func (e *MarkdownExporter) Export(ctx context.Context, src Source) (Result, error) {
	var res Result
	nodes := make(map[rdf.NodeID]rdf.Node)
	err := src.ForEachNode(func(id rdf.NodeID, node rdf.Node, _ time.Time) error {
		nodes[id] = node
		res.Nodes++
		return ctx.Err()
	})
	if err != nil {
		return res, errors.Wrap(err, "reading nodes")
	}

	var statements []rdf.Statement
	err = src.ForEachStatement(func(q storage.Quad, row storage.Row) error {
		if !row.Live() {
			res.Tombstones++
			return nil
		}
		st, err := statementOf(nodes, q, row)
		if err != nil {
			return err
		}
		statements = append(statements, st)
		res.Statements++
		return ctx.Err()
	})
	if err != nil {
		return res, errors.Wrap(err, "reading statements")
	}

	if _, err := io.WriteString(e.w, e.formatter.FormatStatements(statements)); err != nil {
		return res, errors.Wrap(err, "writing table")
	}
	return res, nil
}

// Close is a no-op; the writer belongs to the caller
func (e *MarkdownExporter) Close() error {
	return nil
}

func statementOf(nodes map[rdf.NodeID]rdf.Node, q storage.Quad, row storage.Row) (rdf.Statement, error) {
	lookup := func(id rdf.NodeID) (rdf.Node, error) {
		n, ok := nodes[id]
		if !ok {
			return nil, errors.Wrapf(rdf.ErrUnknownNodeID, "statement %v refers to node %d", q, id)
		}
		return n, nil
	}

	st := rdf.Statement{Inferred: row.Inferred}
	var err error
	if st.Subject, err = lookup(q.S); err != nil {
		return st, err
	}
	if st.Predicate, err = lookup(q.P); err != nil {
		return st, err
	}
	if st.Object, err = lookup(q.O); err != nil {
		return st, err
	}
	if q.C != rdf.DefaultGraphID {
		if st.Context, err = lookup(q.C); err != nil {
			return st, err
		}
	}
	return st, nil
}
