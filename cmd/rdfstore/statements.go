package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/wbrown/janus-rdf/rdf"
	"github.com/wbrown/janus-rdf/rdf/storage"
)

func newAddCommand(opts *RootOptions) *cobra.Command {
	var inferred bool
	var file string

	cmd := &cobra.Command{
		Use:   "add [subject predicate object [graph]]",
		Short: "Add statements in one transaction",
		Long: `Add a statement given as arguments, or one statement per line from --file
("-" reads stdin). Adding a statement that is already present is a no-op.

Examples:
  rdfstore add '<http://example.org/alice>' foaf:name '"Alice"@en'
  rdfstore add --file people.nq`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if (file == "") == (len(args) == 0) {
				return errors.New("give either a statement or --file")
			}

			db, err := openDatabase(cmd, opts)
			if err != nil {
				return err
			}
			defer db.Close()

			added := 0
			err = update(db, func(tx *storage.Transaction) error {
				statements, err := statementsFrom(cmd, file, args, tx.Resolver())
				if err != nil {
					return err
				}
				for _, st := range statements {
					if inferred {
						err = tx.AddInferredStatement(st)
					} else {
						err = tx.AddStatement(st)
					}
					if err != nil {
						return fmt.Errorf("adding %s: %w", st, err)
					}
				}
				added = len(statements)
				return nil
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Added %d statement(s)\n", added)
			return nil
		},
	}

	cmd.Flags().BoolVar(&inferred, "inferred", false, "mark the statements as inferred")
	cmd.Flags().StringVarP(&file, "file", "f", "", "read statements from a file, - for stdin")
	return cmd
}

func statementsFrom(cmd *cobra.Command, file string, args []string, resolve rdf.NamespaceResolver) ([]rdf.Statement, error) {
	if file == "" {
		st, err := parseStatement(args, resolve)
		if err != nil {
			return nil, err
		}
		return []rdf.Statement{st}, nil
	}

	var r io.Reader = cmd.InOrStdin()
	if file != "-" {
		f, err := os.Open(file)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}
	return readStatements(r, resolve)
}

func newRemoveCommand(opts *RootOptions) *cobra.Command {
	var all, defaultGraph bool

	cmd := &cobra.Command{
		Use:   "remove [subject [predicate [object [graph]]]]",
		Short: "Remove statements matching a pattern",
		Long: `Remove every statement matching the pattern. "*" or any ?variable is a
wildcard. An empty pattern removes nothing unless --all is given.`,
		Args: cobra.MaximumNArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDatabase(cmd, opts)
			if err != nil {
				return err
			}
			defer db.Close()

			removed := 0
			err = update(db, func(tx *storage.Transaction) error {
				p, err := parsePattern(args, tx.Resolver())
				if err != nil {
					return err
				}
				p.DefaultGraph = defaultGraph
				if isUnbound(p) && !all {
					return errors.New("refusing to remove every statement without --all")
				}
				removed, err = tx.RemoveStatements(p)
				return err
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d statement(s)\n", removed)
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "allow an empty pattern")
	cmd.Flags().BoolVar(&defaultGraph, "default-graph", false, "match only the default graph")
	return cmd
}

func newListCommand(opts *RootOptions) *cobra.Command {
	var explicitOnly, defaultGraph, markdown bool
	var prefixes []string

	cmd := &cobra.Command{
		Use:   "list [subject [predicate [object [graph]]]]",
		Short: "List statements matching a pattern",
		Args:  cobra.MaximumNArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDatabase(cmd, opts)
			if err != nil {
				return err
			}
			defer db.Close()

			var statements []rdf.Statement
			err = view(db, func(tx *storage.Transaction) error {
				p, err := parsePattern(args, tx.Resolver())
				if err != nil {
					return err
				}
				p.DefaultGraph = defaultGraph
				if len(prefixes) > 0 {
					statements, err = tx.ListFiltered(p, !explicitOnly, rdf.NewPrefixFilter(prefixes...))
				} else {
					statements, err = tx.ListStatements(p, !explicitOnly)
				}
				return err
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if markdown {
				fmt.Fprint(out, rdf.NewTableFormatter().FormatStatements(statements))
				return nil
			}
			for _, st := range statements {
				fmt.Fprintln(out, st)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&explicitOnly, "explicit", false, "leave out inferred statements")
	cmd.Flags().BoolVar(&defaultGraph, "default-graph", false, "match only the default graph")
	cmd.Flags().BoolVar(&markdown, "markdown", false, "print a markdown table instead of N-Quads")
	cmd.Flags().StringSliceVar(&prefixes, "prefix", nil, "keep only subjects under these IRI prefixes")
	return cmd
}

func newSizeCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "size",
		Short: "Print the number of live statements",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDatabase(cmd, opts)
			if err != nil {
				return err
			}
			defer db.Close()

			var n int64
			err = view(db, func(tx *storage.Transaction) error {
				n, err = tx.Size()
				return err
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), n)
			return nil
		},
	}
}

func isUnbound(p rdf.Pattern) bool {
	return p.Subject == nil && p.Predicate == nil && p.Object == nil && p.Context == nil && !p.DefaultGraph
}
