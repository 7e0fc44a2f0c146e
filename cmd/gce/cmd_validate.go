package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dhamidi/gce/format"
	"github.com/spf13/cobra"
)

func newValidateCmd(g *globals) *cobra.Command {
	var outputFormat string

	cmd := &cobra.Command{
		Use:   "validate <file>",
		Short: "Report the syntax and semantic errors of a script",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := format.ParseFormat(outputFormat, format.JSON, format.Line)
			if err != nil {
				return err
			}
			text, err := readScript(args[0])
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			s, err := g.open(ctx)
			if err != nil {
				return err
			}
			defer s.close(ctx)

			name := filepath.Base(args[0])
			unit, err := s.engine.Analyze(name, text)
			if err != nil {
				return fmt.Errorf("analyze: %w", err)
			}

			switch f {
			case format.JSON:
				err = format.NewJSONEncoder(os.Stdout).Encode(format.Errors(unit.Errors))
			default:
				err = format.NewErrorLineEncoder(os.Stdout, args[0]).Encode(unit.Errors)
			}
			if err != nil {
				return err
			}
			if n := len(unit.Errors); n > 0 {
				return fmt.Errorf("%s: %d errors", name, n)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputFormat, "format", "f", "line", "output format (json, line)")

	return cmd
}
