package main

import (
	"fmt"
	"os"

	"github.com/dhamidi/gce/format"
	"github.com/dhamidi/gce/groovy/parser"
	"github.com/spf13/cobra"
)

func newParseCmd() *cobra.Command {
	var outputFormat string

	cmd := &cobra.Command{
		Use:   "parse <file>",
		Short: "Parse a Groovy script and dump the syntax tree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := format.ParseFormat(outputFormat, format.JSON, format.Tree)
			if err != nil {
				return err
			}
			text, err := readScript(args[0])
			if err != nil {
				return err
			}

			node, syntaxErrors := parser.ParseScript([]byte(text), parser.WithFile(args[0]))
			switch f {
			case format.JSON:
				err = format.NewASTJSONEncoder(os.Stdout).Encode(node, syntaxErrors)
			default:
				err = format.NewTreeEncoder(os.Stdout).Encode(node)
			}
			if err != nil {
				return fmt.Errorf("encode: %w", err)
			}
			if f == format.Tree {
				for _, e := range syntaxErrors {
					fmt.Fprintln(os.Stderr, e)
				}
			}
			if len(syntaxErrors) > 0 {
				return fmt.Errorf("%d syntax errors", len(syntaxErrors))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputFormat, "format", "f", "tree", "output format (json, tree)")

	return cmd
}
