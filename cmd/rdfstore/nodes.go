package main

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/wbrown/janus-rdf/rdf"
	"github.com/wbrown/janus-rdf/rdf/storage"
)

func newResolveCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <term>",
		Short: "Print the node ID of a term, registering it if new",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDatabase(cmd, opts)
			if err != nil {
				return err
			}
			defer db.Close()

			var node rdf.Node
			err = view(db, func(tx *storage.Transaction) error {
				node, err = rdf.ParseTerm(args[0], tx.Resolver())
				return err
			})
			if err != nil {
				return err
			}

			id, err := db.Resolve(node)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\n", id, node)
			return nil
		},
	}
}

func newNodeCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "node <id>",
		Short: "Print the term registered under a node ID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid node id %q: %w", args[0], err)
			}

			db, err := openDatabase(cmd, opts)
			if err != nil {
				return err
			}
			defer db.Close()

			node, err := db.Get(rdf.NodeID(id))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), node)
			return nil
		},
	}
}

func newNamespaceCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "namespace",
		Short: "Manage prefix to namespace mappings",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "set <prefix> <namespace>",
		Short: "Map a prefix to a namespace IRI",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDatabase(cmd, opts, func(db *storage.Database) error {
				return update(db, func(tx *storage.Transaction) error {
					return tx.SetNamespace(args[0], args[1])
				})
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "get <prefix>",
		Short: "Print the namespace of a prefix",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDatabase(cmd, opts, func(db *storage.Database) error {
				return view(db, func(tx *storage.Transaction) error {
					ns, ok, err := tx.GetNamespace(args[0])
					if err != nil {
						return err
					}
					if !ok {
						return fmt.Errorf("no namespace for prefix %q", args[0])
					}
					fmt.Fprintln(cmd.OutOrStdout(), ns)
					return nil
				})
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List every mapping",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDatabase(cmd, opts, func(db *storage.Database) error {
				return view(db, func(tx *storage.Transaction) error {
					namespaces, err := tx.Namespaces()
					if err != nil {
						return err
					}
					prefixes := make([]string, 0, len(namespaces))
					for prefix := range namespaces {
						prefixes = append(prefixes, prefix)
					}
					sort.Strings(prefixes)
					for _, prefix := range prefixes {
						fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", prefix, namespaces[prefix])
					}
					return nil
				})
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "remove <prefix>",
		Short: "Remove a mapping",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDatabase(cmd, opts, func(db *storage.Database) error {
				return update(db, func(tx *storage.Transaction) error {
					return tx.RemoveNamespace(args[0])
				})
			})
		},
	})

	return cmd
}

func withDatabase(cmd *cobra.Command, opts *RootOptions, fn func(db *storage.Database) error) error {
	db, err := openDatabase(cmd, opts)
	if err != nil {
		return err
	}
	defer db.Close()
	return fn(db)
}
