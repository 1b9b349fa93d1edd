package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/wbrown/janus-rdf/rdf"
)

// FOAF vocabulary used by the synthetic dataset
const (
	FOAFNamespace = "http://xmlns.com/foaf/0.1/"
	ExampleBase   = "http://example.org/"
)

// TestDataConfig specifies what kind of test database to build
type TestDataConfig struct {
	NumPeople      int       // Number of foaf:Person resources
	KnowsPerPerson int       // Outgoing foaf:knows edges per person
	NumGraphs      int       // Named graphs the people are spread over (0 = default graph)
	OutputPath     string    // Where to store the database, "" for in-memory
	BatchSize      int       // Statements per transaction
	StartDate      time.Time // Base for generated birthdays
	Progress       io.Writer // Progress output, nil for silence
}

// DefaultFOAFConfig returns a small social graph for profiling
// Size: 1,000 people × (5 properties + 10 knows) = 15,000 statements
func DefaultFOAFConfig() TestDataConfig {
	return TestDataConfig{
		NumPeople:      1000,
		KnowsPerPerson: 10,
		NumGraphs:      4,
		OutputPath:     "testdata/foaf_benchmark.db",
		BatchSize:      5000,
		StartDate:      time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// MediumFOAFConfig returns a medium-sized social graph
func MediumFOAFConfig() TestDataConfig {
	cfg := DefaultFOAFConfig()
	cfg.NumPeople = 20000
	cfg.KnowsPerPerson = 20
	cfg.NumGraphs = 16
	cfg.OutputPath = "testdata/foaf_medium.db"
	return cfg
}

// LargeFOAFConfig returns a large social graph for stress testing
func LargeFOAFConfig() TestDataConfig {
	cfg := DefaultFOAFConfig()
	cfg.NumPeople = 250000
	cfg.KnowsPerPerson = 40
	cfg.NumGraphs = 64
	cfg.OutputPath = "testdata/foaf_large.db"
	cfg.BatchSize = 20000
	return cfg
}

// BuildTestDatabase creates a pre-populated database for benchmarking
func BuildTestDatabase(config TestDataConfig) (*Database, error) {
	opts := InMemoryOptions()
	if config.OutputPath != "" {
		if err := os.RemoveAll(config.OutputPath); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to remove existing db: %w", err)
		}
		if err := os.MkdirAll(filepath.Dir(config.OutputPath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
		opts = DefaultOptions(config.OutputPath)
	}

	db, err := OpenDatabase(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create database: %w", err)
	}

	statements := GenerateFOAF(config)
	progress(config.Progress, "Writing %d statements to %s in batches of %d...\n",
		len(statements), describePath(config.OutputPath), config.BatchSize)

	if err := LoadStatements(db, statements, config.BatchSize, func(done int) {
		progress(config.Progress, "  Written %d/%d statements (%.1f%%)\n", done, len(statements),
			float64(done)/float64(len(statements))*100)
	}); err != nil {
		db.Close()
		return nil, err
	}

	progress(config.Progress, "Database created: %s\n", describePath(config.OutputPath))
	progress(config.Progress, "   People: %d, knows/person: %d, graphs: %d\n",
		config.NumPeople, config.KnowsPerPerson, config.NumGraphs)
	return db, nil
}

// LoadStatements adds statements in transactions of batchSize, calling
// done after each commit with the running total
func LoadStatements(db *Database, statements []rdf.Statement, batchSize int, done func(int)) error {
	if batchSize <= 0 {
		batchSize = len(statements)
	}

	for start := 0; start < len(statements); start += batchSize {
		end := start + batchSize
		if end > len(statements) {
			end = len(statements)
		}

		tx, err := db.Begin()
		if err != nil {
			return err
		}
		for i := start; i < end; i++ {
			if err := tx.AddStatement(statements[i]); err != nil {
				tx.Rollback()
				return fmt.Errorf("failed to add statement %d: %w", i, err)
			}
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit batch %d-%d: %w", start, end, err)
		}
		if done != nil {
			done(end)
		}
	}
	return nil
}

// GenerateFOAF creates a deterministic social graph. Person i knows the
// next KnowsPerPerson people modulo NumPeople.
func GenerateFOAF(config TestDataConfig) []rdf.Statement {
	perPerson := 5 + config.KnowsPerPerson
	statements := make([]rdf.Statement, 0, config.NumPeople*perPerson)

	typ := rdf.MustIRI(rdf.RDFType)
	person := rdf.MustIRI(FOAFNamespace + "Person")
	name := rdf.MustIRI(FOAFNamespace + "name")
	mbox := rdf.MustIRI(FOAFNamespace + "mbox")
	age := rdf.MustIRI(FOAFNamespace + "age")
	birthday := rdf.MustIRI(FOAFNamespace + "birthday")
	knows := rdf.MustIRI(FOAFNamespace + "knows")

	for i := 0; i < config.NumPeople; i++ {
		subject := personIRI(i)

		var graph rdf.Node
		if config.NumGraphs > 0 {
			graph = rdf.MustIRI(fmt.Sprintf("%sgraph/%d", ExampleBase, i%config.NumGraphs))
		}

		born := config.StartDate.AddDate(0, 0, i*37%18250)
		props := []rdf.Statement{
			rdf.NewQuad(subject, typ, person, graph),
			rdf.NewQuad(subject, name, rdf.NewLiteral(fmt.Sprintf("Person %d", i)), graph),
			rdf.NewQuad(subject, mbox, rdf.MustIRI(fmt.Sprintf("mailto:person%d@example.org", i)), graph),
			rdf.NewQuad(subject, age, rdf.NewTypedLiteral(fmt.Sprint(18+i%60), rdf.MustIRI(rdf.XSDInteger)), graph),
			rdf.NewQuad(subject, birthday, rdf.NewTypedLiteral(born.Format("2006-01-02"), rdf.MustIRI(rdf.XSDDate)), graph),
		}
		statements = append(statements, props...)

		for k := 1; k <= config.KnowsPerPerson && k < config.NumPeople; k++ {
			friend := personIRI((i + k) % config.NumPeople)
			statements = append(statements, rdf.NewQuad(subject, knows, friend, graph))
		}
	}
	return statements
}

func personIRI(i int) rdf.IRI {
	return rdf.MustIRI(fmt.Sprintf("%sperson/%d", ExampleBase, i))
}

// OpenTestDatabase opens a pre-built test database
func OpenTestDatabase(path string) (*Database, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("test database not found: %s (run BuildTestDatabase first)", path)
	}

	db, err := NewDatabase(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open test database: %w", err)
	}
	return db, nil
}

func progress(w io.Writer, format string, args ...interface{}) {
	if w != nil {
		fmt.Fprintf(w, format, args...)
	}
}

func describePath(path string) string {
	if path == "" {
		return "memory"
	}
	return path
}
