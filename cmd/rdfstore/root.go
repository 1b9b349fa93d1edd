package main

import (
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/wbrown/janus-rdf/rdf"
	"github.com/wbrown/janus-rdf/rdf/annotations"
	"github.com/wbrown/janus-rdf/rdf/config"
	"github.com/wbrown/janus-rdf/rdf/storage"
)

// RootOptions holds global flags for all commands
type RootOptions struct {
	DBPath     string
	ConfigPath string
	InMemory   bool
	Verbose    bool
}

// maxCommitAttempts bounds retries of conflicting or unavailable commits
const maxCommitAttempts = 3

// NewRootCommand creates the root command for the rdfstore CLI
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "rdfstore",
		Short: "RDF statement store",
		Long: `A transactional RDF quad store on BadgerDB, with a LIMIT/DISTINCT/REDUCED
algebra optimizer.

Terms use N-Triples syntax (<iri>, _:b0, "text"@en, "1"^^<iri>) or prefixed
names expanded through the stored namespaces (foaf:name).`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.DBPath, "db", "", "database directory (overrides storage.path)")
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "YAML configuration file")
	cmd.PersistentFlags().BoolVar(&opts.InMemory, "in-memory", false, "use a throwaway in-memory database")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "print store and optimizer events to stderr")

	cmd.AddCommand(newAddCommand(opts))
	cmd.AddCommand(newRemoveCommand(opts))
	cmd.AddCommand(newListCommand(opts))
	cmd.AddCommand(newSizeCommand(opts))
	cmd.AddCommand(newResolveCommand(opts))
	cmd.AddCommand(newNodeCommand(opts))
	cmd.AddCommand(newNamespaceCommand(opts))
	cmd.AddCommand(newOptimizeCommand(opts))
	cmd.AddCommand(newExportCommand(opts))
	cmd.AddCommand(newPurgeCommand(opts))
	cmd.AddCommand(newStatsCommand(opts))

	return cmd
}

// loadConfig reads --config, or the defaults, and applies flag overrides
func loadConfig(opts *RootOptions) (config.Config, error) {
	cfg := config.Default()
	if opts.ConfigPath != "" {
		var err error
		if cfg, err = config.Load(opts.ConfigPath); err != nil {
			return cfg, err
		}
	}

	if opts.DBPath != "" {
		cfg.Storage.Path = opts.DBPath
	}
	if opts.InMemory {
		cfg.Storage.InMemory = true
	}
	if opts.Verbose {
		cfg.Output.Verbose = true
	}

	switch cfg.Output.Color {
	case config.ColorAlways:
		color.NoColor = false
	case config.ColorNever:
		color.NoColor = true
	}
	return cfg, cfg.Validate()
}

// eventHandler prints events to the command's stderr when verbose
func eventHandler(cmd *cobra.Command, cfg config.Config) annotations.Handler {
	if !cfg.Output.Verbose {
		return nil
	}
	return annotations.NewOutputFormatter(cmd.ErrOrStderr()).Handle
}

func openDatabase(cmd *cobra.Command, opts *RootOptions) (*storage.Database, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}

	dbOpts := cfg.StorageOptions()
	dbOpts.Handler = eventHandler(cmd, cfg)
	db, err := storage.OpenDatabase(dbOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

// update runs fn in a transaction and commits it, starting over on
// retryable commit failures
func update(db *storage.Database, fn func(tx *storage.Transaction) error) error {
	for attempt := 1; ; attempt++ {
		tx, err := db.Begin()
		if err != nil {
			return err
		}
		if err := fn(tx); err != nil {
			tx.Rollback()
			return err
		}

		err = tx.Commit()
		var commitErr *rdf.CommitError
		if err == nil || !errors.As(err, &commitErr) || !commitErr.Retryable() || attempt == maxCommitAttempts {
			return err
		}
	}
}

// view runs fn in a transaction that is always rolled back
func view(db *storage.Database, fn func(tx *storage.Transaction) error) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	return fn(tx)
}
