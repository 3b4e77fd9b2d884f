package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/orionhq/riskgate/orders"
)

var previewCmd = &cobra.Command{
	Use:   "preview <symbol>",
	Short: "Dry-run an order through the risk gates",
	Long: `Evaluate an order intent against every risk gate and print the
structured verdict. Writes an audit record; never submits anything.

Examples:
  riskgate preview AAPL --side buy --qty 10 --estimate 182.50
  riskgate preview SPY --side buy --qty 1 --type limit --limit-price 500`,
	Args: cobra.ExactArgs(1),
	RunE: runPreview,
}

var (
	previewSide       string
	previewQty        int64
	previewType       string
	previewLimitPrice float64
	previewEstimate   float64
	previewNotional   float64
)

func init() {
	rootCmd.AddCommand(previewCmd)

	previewCmd.Flags().StringVar(&previewSide, "side", "buy", "buy or sell")
	previewCmd.Flags().Int64Var(&previewQty, "qty", 0, "whole-share quantity")
	previewCmd.Flags().StringVar(&previewType, "type", "market", "market or limit")
	previewCmd.Flags().Float64Var(&previewLimitPrice, "limit-price", 0, "limit price (limit orders)")
	previewCmd.Flags().Float64Var(&previewEstimate, "estimate", 0, "price estimate for market notional")
	previewCmd.Flags().Float64Var(&previewNotional, "notional", 0, "dollar amount instead of qty")
}

func runPreview(cmd *cobra.Command, args []string) error {
	a, err := buildApp(nil, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	req := orders.Request{
		Symbol:    args[0],
		Side:      previewSide,
		Qty:       previewQty,
		OrderType: previewType,
	}
	if previewLimitPrice > 0 {
		req.LimitPrice = &previewLimitPrice
	}
	if previewEstimate > 0 {
		req.PriceEstimate = &previewEstimate
	}
	if previewNotional > 0 {
		req.Notional = &previewNotional
	}

	res, err := a.previewer.Preview(cmd.Context(), req)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	return nil
}
