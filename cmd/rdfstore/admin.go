package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wbrown/janus-rdf/rdf"
	"github.com/wbrown/janus-rdf/rdf/export"
	"github.com/wbrown/janus-rdf/rdf/storage"
)

func newExportCommand(opts *RootOptions) *cobra.Command {
	var format, dsn string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Copy the store into SQL tables or a markdown table",
		Long: `Export nodes and statements.

Formats:
  markdown   live statements as a table on stdout
  sqlite3    nodes/triples tables in the SQLite file named by --dsn
  postgres   nodes/triples tables over a lib/pq DSN
  mysql      nodes/triples tables over a go-sql-driver DSN`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := export.Lookup(format)
			if err != nil {
				return err
			}
			exp, err := export.Open(f, dsn, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			defer exp.Close()

			return withDatabase(cmd, opts, func(db *storage.Database) error {
				res, err := exp.Export(cmd.Context(), db)
				if err != nil {
					return err
				}
				if f != export.FormatMarkdown {
					fmt.Fprintf(cmd.OutOrStdout(), "Exported %d nodes, %d statements, %d tombstones\n",
						res.Nodes, res.Statements, res.Tombstones)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&format, "format", string(export.FormatMarkdown), "markdown, sqlite3, postgres or mysql")
	cmd.Flags().StringVar(&dsn, "dsn", "", "target database for SQL formats")
	return cmd
}

func newPurgeCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "purge",
		Short: "Delete tombstoned statement rows",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDatabase(cmd, opts, func(db *storage.Database) error {
				n, err := db.PurgeDeleted()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Purged %d tombstone(s)\n", n)
				return nil
			})
		},
	}
}

func newStatsCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print row counts and sequence marks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDatabase(cmd, opts, func(db *storage.Database) error {
				s, err := db.Stats()
				if err != nil {
					return err
				}
				rows := [][]string{
					{"statements", fmt.Sprint(s.Statements)},
					{"tombstones", fmt.Sprint(s.Tombstones)},
					{"node high-water", fmt.Sprint(s.NodeHighWater)},
					{"visible version", fmt.Sprint(s.VisibleVersion)},
				}
				fmt.Fprint(cmd.OutOrStdout(), rdf.NewTableFormatter().FormatTable([]string{"metric", "value"}, rows))
				return nil
			})
		},
	}
}
