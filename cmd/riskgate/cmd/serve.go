package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/orionhq/riskgate/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the riskgate HTTP service",
	Long: `Serve the order preview/approval surface, session-budget
operations, preset management and prometheus metrics over HTTP.

Example:
  riskgate serve -f riskgate.yaml`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := buildApp(nil, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := server.New(a.cfg.Server.Addr, a.cfg.Server.TickInterval.Std(),
		a.previewer, a.gatekeeper, a.ledger, a.presets, a.store)
	return srv.Run(ctx)
}
