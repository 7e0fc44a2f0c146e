package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/dhamidi/gce/complete"
	"github.com/dhamidi/gce/project"
	"github.com/dhamidi/gce/telemetry"
	"github.com/spf13/cobra"
	"github.com/tliron/commonlog"

	_ "github.com/tliron/commonlog/simple"
)

const version = "0.1.0"

// globals holds the persistent flags shared by every subcommand.
type globals struct {
	dir       string
	verbosity int
	logFile   string
}

func main() {
	g := &globals{}
	rootCmd := &cobra.Command{
		Use:           "gce",
		Short:         "Cursor-context completion for Groovy scripts",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			var path *string
			if g.logFile != "" {
				path = &g.logFile
			}
			commonlog.Configure(g.verbosity, path)
		},
	}
	rootCmd.PersistentFlags().StringVarP(&g.dir, "dir", "C", ".", "project directory holding gce.toml")
	rootCmd.PersistentFlags().CountVarP(&g.verbosity, "verbose", "v", "log verbosity (repeat for more)")
	rootCmd.PersistentFlags().StringVar(&g.logFile, "log-file", "", "write logs to this file instead of stderr")

	rootCmd.AddCommand(newCompleteCmd(g))
	rootCmd.AddCommand(newValidateCmd(g))
	rootCmd.AddCommand(newParseCmd())
	rootCmd.AddCommand(newCatalogCmd(g))
	rootCmd.AddCommand(newServeCmd(g))
	rootCmd.AddCommand(newLSPCmd(g))

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// session is a loaded project with its engine and metrics.
type session struct {
	project   *project.Project
	engine    *complete.Engine
	telemetry *telemetry.Provider
}

func (g *globals) open(ctx context.Context) (*session, error) {
	p, err := project.LoadFrom(g.dir)
	if err != nil {
		return nil, fmt.Errorf("load project: %w", err)
	}
	tp, err := telemetry.Setup(ctx, telemetry.Config{EnableMetrics: p.Config.Telemetry.Metrics})
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}
	e, err := p.NewEngine(complete.WithRecorder(tp.Hints()))
	if err != nil {
		return nil, fmt.Errorf("build engine: %w", err)
	}
	return &session{project: p, engine: e, telemetry: tp}, nil
}

// build returns a function that reloads the project from disk, for the
// catalog watcher.
func (s *session) build() func() (*complete.Engine, error) {
	return func() (*complete.Engine, error) {
		p, err := project.LoadFrom(s.project.RootDir)
		if err != nil {
			return nil, err
		}
		return p.NewEngine(complete.WithRecorder(s.telemetry.Hints()))
	}
}

func (s *session) close(ctx context.Context) {
	if err := s.telemetry.Shutdown(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "telemetry shutdown: %s\n", err)
	}
}

// readScript reads a script file, or stdin when the name is "-".
func readScript(name string) (string, error) {
	var data []byte
	var err error
	if name == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(name)
	}
	if err != nil {
		return "", fmt.Errorf("read script: %w", err)
	}
	return string(data), nil
}
