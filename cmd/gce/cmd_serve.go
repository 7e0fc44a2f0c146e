package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dhamidi/gce/api"
	"github.com/dhamidi/gce/workspace"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("gce")

func newServeCmd(g *globals) *cobra.Command {
	var addr string
	var watch bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve completion and validation over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			s, err := g.open(ctx)
			if err != nil {
				return err
			}
			defer s.close(context.Background())

			if !cmd.Flags().Changed("addr") {
				addr = s.project.Config.Server.Addr
			}

			handle := workspace.NewHandle(s.engine)
			if watch {
				w, err := workspace.NewWatcher(handle, s.build(), s.project.WatchPaths()...)
				if err != nil {
					return fmt.Errorf("watch: %w", err)
				}
				go func() {
					if err := w.Run(ctx); err != nil {
						log.Errorf("watcher: %s", err)
					}
				}()
			}

			srv := &http.Server{
				Addr:              addr,
				Handler:           api.NewServer(handle.Engine),
				ReadHeaderTimeout: 10 * time.Second,
			}
			errc := make(chan error, 1)
			go func() {
				log.Infof("listening on %s", addr)
				errc <- srv.ListenAndServe()
			}()

			select {
			case err := <-errc:
				if !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("serve: %w", err)
				}
				return nil
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "", "listen address (default from gce.toml, else :8080)")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "reload the catalog when gce.toml or catalog files change")

	return cmd
}
