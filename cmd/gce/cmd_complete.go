package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dhamidi/gce/complete"
	"github.com/dhamidi/gce/format"
	"github.com/spf13/cobra"
)

func newCompleteCmd(g *globals) *cobra.Command {
	var line, ch int
	var sticky string
	var outputFormat string

	cmd := &cobra.Command{
		Use:   "complete <file>",
		Short: "Print the completion candidates at a cursor position",
		Long: `Print the completion candidates at a cursor position.

The line is 0-based; the column counts the characters before the cursor.
Use - as the file to read the script from stdin.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := format.ParseFormat(outputFormat, format.JSON, format.Line)
			if err != nil {
				return err
			}
			st, err := complete.ParseSticky(sticky)
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

			cands, err := s.engine.Complete(ctx, complete.Request{
				Name:   filepath.Base(args[0]),
				Text:   text,
				Line:   line,
				Ch:     ch,
				Sticky: st,
			})
			if err != nil {
				return fmt.Errorf("complete: %w", err)
			}

			switch f {
			case format.JSON:
				return format.NewJSONEncoder(os.Stdout).Encode(format.Hints(cands))
			default:
				return format.NewCandidateLineEncoder(os.Stdout).Encode(cands)
			}
		},
	}

	cmd.Flags().IntVarP(&line, "line", "l", 0, "0-based cursor line")
	cmd.Flags().IntVarP(&ch, "ch", "c", 0, "cursor column")
	cmd.Flags().StringVar(&sticky, "sticky", "before", "side to bind to when the cursor ends a node (before, after)")
	cmd.Flags().StringVarP(&outputFormat, "format", "f", "line", "output format (json, line)")

	return cmd
}
