package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wbrown/janus-rdf/rdf/algebra"
	"github.com/wbrown/janus-rdf/rdf/planner"
)

func newOptimizeCommand(opts *RootOptions) *cobra.Command {
	var file string
	var showStats bool

	cmd := &cobra.Command{
		Use:   "optimize [expression]",
		Short: "Sink LIMIT, DISTINCT and REDUCED in an algebra tree",
		Long: `Read an algebra tree, optimize it and print the result.

Example:
  rdfstore optimize '(slice :limit 10 (projection ?s (join (pattern ?s ?p ?o) (pattern ?o ?q ?r))))'`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input, err := optimizerInput(cmd, file, args)
			if err != nil {
				return err
			}

			tree, err := algebra.Parse(input)
			if err != nil {
				return err
			}

			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			popts := cfg.OptimizerOptions()
			popts.Handler = eventHandler(cmd, cfg)

			stats := planner.NewOptimizer(popts).OptimizeWithStats(tree)

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, tree)
			if showStats {
				fmt.Fprintln(out, formatStats(stats))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "read the tree from a file, - for stdin")
	cmd.Flags().BoolVar(&showStats, "stats", false, "print rotation counts")
	return cmd
}

func optimizerInput(cmd *cobra.Command, file string, args []string) (string, error) {
	switch {
	case len(args) == 1 && file != "":
		return "", errors.New("give either an expression or --file")
	case len(args) == 1:
		return args[0], nil
	case file == "" || file == "-":
		data, err := io.ReadAll(cmd.InOrStdin())
		return string(data), err
	default:
		data, err := os.ReadFile(file)
		return string(data), err
	}
}

func formatStats(s planner.Stats) string {
	if s.SkippedByPreconditions {
		return "; skipped: global preconditions not met"
	}
	var parts []string
	for _, k := range []algebra.Kind{algebra.KindSlice, algebra.KindDistinct, algebra.KindReduced} {
		parts = append(parts, fmt.Sprintf("%s=%d", k, s.Rotations[k]))
	}
	return fmt.Sprintf("; rounds=%d rotations: %s", s.Rounds, strings.Join(parts, " "))
}
