package cmd

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "riskgate",
	Short: "Risk-gated order pipeline and session-budget engine",
	Long: `Riskgate is the trading-desk risk backend: it decides whether a
proposed order may proceed, tracks a rolling session budget across
reservations, and keeps throttle, cooloff and circuit-breaker state
across restarts.

It never submits orders to a broker itself; brokers, market data and
PnL are external collaborators behind narrow interfaces.`,
}

var cfgPath string

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(func() {
		// Optional .env for local development; real deployments set
		// the environment directly.
		_ = godotenv.Load()
	})

	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "f", "", "path to config file (YAML or JSON)")
}
