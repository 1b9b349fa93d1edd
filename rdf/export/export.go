// Package export copies a database out of badger, either into the
// relational nodes/triples layout or as a markdown table.
package export

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/wbrown/janus-rdf/rdf"
	"github.com/wbrown/janus-rdf/rdf/storage"
)

// Source is what an exporter reads. *storage.Database implements it.
type Source interface {
	ForEachNode(fn func(id rdf.NodeID, node rdf.Node, createdAt time.Time) error) error
	ForEachStatement(fn func(storage.Quad, storage.Row) error) error
}

var _ Source = (*storage.Database)(nil)

// Exporter writes a Source somewhere
type Exporter interface {
	Export(ctx context.Context, src Source) (Result, error)
	Close() error
}

// Result counts what an export wrote
type Result struct {
	Nodes      int
	Statements int // Live rows
	Tombstones int // Deleted rows, exported with their deleted version
}

// Format names an export target
type Format string

const (
	FormatMarkdown Format = "markdown"
	FormatSQLite   Format = "sqlite3"
	FormatPostgres Format = "postgres"
	FormatMySQL    Format = "mysql"
)

// Formats lists the supported formats
var Formats = []Format{FormatMarkdown, FormatSQLite, FormatPostgres, FormatMySQL}

// UnsupportedFormatError is returned for unknown format names
type UnsupportedFormatError struct {
	Format string
}

func (e *UnsupportedFormatError) Error() string {
	names := make([]string, len(Formats))
	for i, f := range Formats {
		names[i] = string(f)
	}
	return fmt.Sprintf("unsupported export format %q (supported: %s)", e.Format, strings.Join(names, ", "))
}

// Lookup resolves a format name. "sqlite" and "postgresql" are accepted
// as aliases.
func Lookup(name string) (Format, error) {
	switch strings.ToLower(name) {
	case "markdown", "md":
		return FormatMarkdown, nil
	case "sqlite3", "sqlite":
		return FormatSQLite, nil
	case "postgres", "postgresql":
		return FormatPostgres, nil
	case "mysql":
		return FormatMySQL, nil
	}
	return "", &UnsupportedFormatError{Format: name}
}

// Open builds an exporter. SQL formats connect to dsn; markdown writes
// to w.
func Open(format Format, dsn string, w io.Writer) (Exporter, error) {
	if format == FormatMarkdown {
		if w == nil {
			return nil, errors.New("markdown export needs a writer")
		}
		return NewMarkdownExporter(w), nil
	}

	if _, ok := dialects[format]; !ok {
		return nil, &UnsupportedFormatError{Format: string(format)}
	}
	if dsn == "" {
		return nil, errors.Errorf("%s export needs a DSN", format)
	}
	e, err := OpenSQL(format, dsn, DefaultSQLOptions())
	if err != nil {
		return nil, err
	}
	return e, nil
}
