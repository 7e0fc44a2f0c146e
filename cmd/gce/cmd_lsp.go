package main

import (
	"github.com/dhamidi/gce/complete"
	"github.com/dhamidi/gce/workspace"
	"github.com/spf13/cobra"
)

func newLSPCmd(g *globals) *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:   "lsp",
		Short: "Start the Language Server Protocol server on stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := g.open(ctx)
			if err != nil {
				return err
			}
			defer s.close(ctx)

			ws := workspace.New(workspace.NewHandle(s.engine))
			server := workspace.NewLSPServer(version, ws,
				workspace.WithWatch(watch),
				workspace.WithEngineOptions(complete.WithRecorder(s.telemetry.Hints())),
			)
			return server.RunStdio()
		},
	}

	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "reload the catalog when gce.toml or catalog files change")

	return cmd
}
