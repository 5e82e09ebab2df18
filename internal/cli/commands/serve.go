package commands

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/semabridge/internal/server"
)

// NewServeCommand creates the serve command.
func NewServeCommand() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP trigger server",
		Long: `Start a thin HTTP server for triggering translation runs and
inspecting published artifacts.

Endpoints:
  POST /api/runs             trigger a run
  GET  /api/runs/{id}        run status
  GET  /api/models           published models
  GET  /api/models/{name}    one published artifact
  GET  /api/metrics/deferred deferred cross-model metrics`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			if addr == "" {
				addr = cc.Cfg.Server.Addr
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			srv := server.New(cc.Engine, addr, cc.Logger)
			return srv.ListenAndServe(ctx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from config)")

	return cmd
}
