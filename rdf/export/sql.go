package export

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	"github.com/wbrown/janus-rdf/rdf"
	"github.com/wbrown/janus-rdf/rdf/storage"
)

// dialect holds the statements that differ between backends
type dialect struct {
	driver       string
	schema       []string
	insertNode   string
	insertTriple string
}

const (
	nodeColumns   = "id, kind, lexical_value, datatype, language, created_at"
	tripleColumns = "subject_id, predicate_id, object_id, context_id, created_version, deleted_version, inferred"
)

func placeholders(n int, numbered bool) string {
	ps := make([]string, n)
	for i := range ps {
		if numbered {
			ps[i] = fmt.Sprintf("$%d", i+1)
		} else {
			ps[i] = "?"
		}
	}
	return strings.Join(ps, ", ")
}

var dialects = map[Format]dialect{
	FormatSQLite: {
		driver: "sqlite3",
		schema: []string{
			`CREATE TABLE IF NOT EXISTS nodes (
	id BIGINT PRIMARY KEY,
	kind VARCHAR(16) NOT NULL,
	lexical_value TEXT NOT NULL,
	datatype TEXT NOT NULL DEFAULT '',
	language VARCHAR(64) NOT NULL DEFAULT '',
	created_at TIMESTAMP NOT NULL,
	UNIQUE (kind, lexical_value, datatype, language)
)`,
			`CREATE TABLE IF NOT EXISTS triples (
	subject_id BIGINT NOT NULL,
	predicate_id BIGINT NOT NULL,
	object_id BIGINT NOT NULL,
	context_id BIGINT NOT NULL,
	created_version BIGINT NOT NULL,
	deleted_version BIGINT NULL,
	inferred BOOLEAN NOT NULL DEFAULT FALSE,
	UNIQUE (subject_id, predicate_id, object_id, context_id)
)`,
		},
		insertNode:   "INSERT INTO nodes (" + nodeColumns + ") VALUES (" + placeholders(6, false) + ") ON CONFLICT DO NOTHING",
		insertTriple: "INSERT INTO triples (" + tripleColumns + ") VALUES (" + placeholders(7, false) + ") ON CONFLICT DO NOTHING",
	},
	FormatPostgres: {
		driver: "postgres",
		schema: []string{
			`CREATE TABLE IF NOT EXISTS nodes (
	id BIGINT PRIMARY KEY,
	kind VARCHAR(16) NOT NULL,
	lexical_value TEXT NOT NULL,
	datatype TEXT NOT NULL DEFAULT '',
	language VARCHAR(64) NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	UNIQUE (kind, lexical_value, datatype, language)
)`,
			`CREATE TABLE IF NOT EXISTS triples (
	subject_id BIGINT NOT NULL,
	predicate_id BIGINT NOT NULL,
	object_id BIGINT NOT NULL,
	context_id BIGINT NOT NULL,
	created_version BIGINT NOT NULL,
	deleted_version BIGINT NULL,
	inferred BOOLEAN NOT NULL DEFAULT FALSE,
	UNIQUE (subject_id, predicate_id, object_id, context_id)
)`,
		},
		insertNode:   "INSERT INTO nodes (" + nodeColumns + ") VALUES (" + placeholders(6, true) + ") ON CONFLICT DO NOTHING",
		insertTriple: "INSERT INTO triples (" + tripleColumns + ") VALUES (" + placeholders(7, true) + ") ON CONFLICT DO NOTHING",
	},
	// MySQL cannot index whole TEXT columns, so uniqueness on nodes is
	// enforced over value prefixes. IDs stay the primary key.
	FormatMySQL: {
		driver: "mysql",
		schema: []string{
			`CREATE TABLE IF NOT EXISTS nodes (
	id BIGINT PRIMARY KEY,
	kind VARCHAR(16) NOT NULL,
	lexical_value TEXT NOT NULL,
	datatype VARCHAR(512) NOT NULL DEFAULT '',
	language VARCHAR(64) NOT NULL DEFAULT '',
	created_at DATETIME(6) NOT NULL,
	UNIQUE KEY node_value (kind, lexical_value(255), datatype(255), language)
)`,
			`CREATE TABLE IF NOT EXISTS triples (
	subject_id BIGINT NOT NULL,
	predicate_id BIGINT NOT NULL,
	object_id BIGINT NOT NULL,
	context_id BIGINT NOT NULL,
	created_version BIGINT NOT NULL,
	deleted_version BIGINT NULL,
	inferred BOOLEAN NOT NULL DEFAULT FALSE,
	UNIQUE KEY triple_ids (subject_id, predicate_id, object_id, context_id)
)`,
		},
		insertNode:   "INSERT IGNORE INTO nodes (" + nodeColumns + ") VALUES (" + placeholders(6, false) + ")",
		insertTriple: "INSERT IGNORE INTO triples (" + tripleColumns + ") VALUES (" + placeholders(7, false) + ")",
	},
}

// SQLOptions controls a relational export
type SQLOptions struct {
	BatchSize      int  // Rows per SQL transaction
	IncludeDeleted bool // Export tombstones with their deleted version
}

// DefaultSQLOptions exports everything in batches of 1000 rows
func DefaultSQLOptions() SQLOptions {
	return SQLOptions{
		BatchSize:      1000,
		IncludeDeleted: true,
	}
}

// SQLExporter writes the nodes and triples tables. Re-running an export
// into the same tables skips rows that are already present.
type SQLExporter struct {
	db      *sql.DB
	dialect dialect
	opts    SQLOptions
	owned   bool
}

// NewSQLExporter exports into an existing connection pool, which the
// caller keeps ownership of
func NewSQLExporter(db *sql.DB, format Format, opts SQLOptions) (*SQLExporter, error) {
	d, ok := dialects[format]
	if !ok {
		return nil, &UnsupportedFormatError{Format: string(format)}
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultSQLOptions().BatchSize
	}
	return &SQLExporter{db: db, dialect: d, opts: opts}, nil
}

// OpenSQL connects to dsn with the driver for format
func OpenSQL(format Format, dsn string, opts SQLOptions) (*SQLExporter, error) {
	d, ok := dialects[format]
	if !ok {
		return nil, &UnsupportedFormatError{Format: string(format)}
	}
	db, err := sql.Open(d.driver, dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", format)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errors.Wrapf(err, "connecting to %s", format)
	}

	e, err := NewSQLExporter(db, format, opts)
	if err != nil {
		db.Close()
		return nil, err
	}
	e.owned = true
	return e, nil
}

// Export creates the tables if needed and copies nodes, then statements
func (e *SQLExporter) Export(ctx context.Context, src Source) (Result, error) {
	var res Result
	for _, ddl := range e.dialect.schema {
		if _, err := e.db.ExecContext(ctx, ddl); err != nil {
			return res, errors.Wrap(err, "creating schema")
		}
	}

	nodes := e.newBatchWriter(ctx, e.dialect.insertNode)
	err := src.ForEachNode(func(id rdf.NodeID, node rdf.Node, createdAt time.Time) error {
		k := node.Key()
		if err := nodes.exec(int64(id), k.Kind.String(), k.Value, k.Datatype, k.Language, createdAt.UTC()); err != nil {
			return errors.Wrapf(err, "node %d", id)
		}
		res.Nodes++
		return nil
	})
	if err == nil {
		err = nodes.close()
	}
	if err != nil {
		nodes.rollback()
		return res, errors.Wrap(err, "exporting nodes")
	}

	triples := e.newBatchWriter(ctx, e.dialect.insertTriple)
	err = src.ForEachStatement(func(q storage.Quad, row storage.Row) error {
		var deleted sql.NullInt64
		if !row.Live() {
			if !e.opts.IncludeDeleted {
				return nil
			}
			deleted = sql.NullInt64{Int64: int64(row.Deleted), Valid: true}
		}
		if err := triples.exec(int64(q.S), int64(q.P), int64(q.O), int64(q.C),
			int64(row.Created), deleted, row.Inferred); err != nil {
			return errors.Wrapf(err, "statement %v", q)
		}
		if row.Live() {
			res.Statements++
		} else {
			res.Tombstones++
		}
		return nil
	})
	if err == nil {
		err = triples.close()
	}
	if err != nil {
		triples.rollback()
		return res, errors.Wrap(err, "exporting statements")
	}
	return res, nil
}

// Close releases the connection pool if OpenSQL created it
func (e *SQLExporter) Close() error {
	if e.owned {
		return e.db.Close()
	}
	return nil
}

// batchWriter runs one prepared insert, committing every batch rows
type batchWriter struct {
	ctx     context.Context
	db      *sql.DB
	query   string
	batch   int
	tx      *sql.Tx
	stmt    *sql.Stmt
	pending int
}

func (e *SQLExporter) newBatchWriter(ctx context.Context, query string) *batchWriter {
	return &batchWriter{ctx: ctx, db: e.db, query: query, batch: e.opts.BatchSize}
}

func (w *batchWriter) exec(args ...interface{}) error {
	if err := w.ctx.Err(); err != nil {
		return err
	}
	if w.tx == nil {
		tx, err := w.db.BeginTx(w.ctx, nil)
		if err != nil {
			return errors.Wrap(err, "beginning transaction")
		}
		stmt, err := tx.PrepareContext(w.ctx, w.query)
		if err != nil {
			tx.Rollback()
			return errors.Wrap(err, "preparing insert")
		}
		w.tx, w.stmt = tx, stmt
	}

	if _, err := w.stmt.ExecContext(w.ctx, args...); err != nil {
		return err
	}
	w.pending++
	if w.pending >= w.batch {
		return w.close()
	}
	return nil
}

// close commits the open batch, if any
func (w *batchWriter) close() error {
	if w.tx == nil {
		return nil
	}
	w.stmt.Close()
	err := w.tx.Commit()
	w.tx, w.stmt, w.pending = nil, nil, 0
	return errors.Wrap(err, "committing batch")
}

func (w *batchWriter) rollback() {
	if w.tx != nil {
		w.stmt.Close()
		w.tx.Rollback()
		w.tx, w.stmt, w.pending = nil, nil, 0
	}
}
