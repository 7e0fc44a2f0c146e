package main

import (
	"os"

	"github.com/dhamidi/gce/format"
	"github.com/spf13/cobra"
)

func newCatalogCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Inspect the type catalog completion runs against",
	}
	cmd.AddCommand(newCatalogDumpCmd(g))
	return cmd
}

func newCatalogDumpCmd(g *globals) *cobra.Command {
	var prefix string
	var members bool

	cmd := &cobra.Command{
		Use:   "dump",
		Short: "List the catalog types, one per line",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := g.open(ctx)
			if err != nil {
				return err
			}
			defer s.close(ctx)

			types := s.engine.Catalog().AllTypes(prefix)
			return format.NewCatalogLineEncoder(os.Stdout, members).Encode(types)
		},
	}

	cmd.Flags().StringVarP(&prefix, "prefix", "p", "", "only types whose qualified name starts with this prefix")
	cmd.Flags().BoolVarP(&members, "members", "m", false, "list constructors, methods and fields under each type")

	return cmd
}
