package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/orionhq/riskgate/risk"
)

var cooloffCmd = &cobra.Command{
	Use:   "cooloff <on|off>",
	Short: "Set or clear the cooloff block",
	Long: `The cooloff flag blocks all orders until cleared. It latches
automatically after a daily-loss breach when COOLOFF_AFTER_DRAWDOWN is
enabled; clearing it is always an explicit operator action.`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"on", "off"},
	RunE:      runCooloff,
}

var breakerCmd = &cobra.Command{
	Use:   "breaker clear",
	Short: "Clear the daily-loss circuit breaker",
	Args:  cobra.ExactArgs(1),
	RunE:  runBreaker,
}

func init() {
	rootCmd.AddCommand(cooloffCmd)
	rootCmd.AddCommand(breakerCmd)
}

func runCooloff(cmd *cobra.Command, args []string) error {
	var active bool
	switch args[0] {
	case "on":
		active = true
	case "off":
		active = false
	default:
		return fmt.Errorf("expected 'on' or 'off', got %q", args[0])
	}

	a, err := buildApp(nil, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := risk.SetCooloff(a.store, active); err != nil {
		return err
	}
	fmt.Printf("cooloff %s\n", args[0])
	return nil
}

func runBreaker(cmd *cobra.Command, args []string) error {
	if args[0] != "clear" {
		return fmt.Errorf("expected 'clear', got %q", args[0])
	}

	a, err := buildApp(nil, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := risk.ClearCircuitBreaker(a.store); err != nil {
		return err
	}
	fmt.Println("circuit breaker cleared")
	return nil
}
