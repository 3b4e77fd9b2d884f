package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage the trading session budget",
	Long: `Start, stop and inspect the bounded trading session the budget
ledger accounts against.

Examples:
  riskgate session start --budget 1000 --duration 390
  riskgate session status
  riskgate session stop`,
}

var sessionStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start a session (stops any active one)",
	Args:  cobra.NoArgs,
	RunE:  runSessionStart,
}

var sessionStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the active session",
	Args:  cobra.NoArgs,
	RunE:  runSessionStop,
}

var sessionStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the active session summary",
	Args:  cobra.NoArgs,
	RunE:  runSessionStatus,
}

var (
	sessionBudget   float64
	sessionDuration int64
	sessionNote     string
)

func init() {
	rootCmd.AddCommand(sessionCmd)
	sessionCmd.AddCommand(sessionStartCmd)
	sessionCmd.AddCommand(sessionStopCmd)
	sessionCmd.AddCommand(sessionStatusCmd)

	sessionStartCmd.Flags().Float64Var(&sessionBudget, "budget", 0, "total session budget in dollars (required)")
	sessionStartCmd.Flags().Int64Var(&sessionDuration, "duration", 0, "session length in minutes (0 = unbounded)")
	sessionStartCmd.Flags().StringVar(&sessionNote, "note", "", "free-form note")
	sessionStartCmd.MarkFlagRequired("budget")
}

func runSessionStart(cmd *cobra.Command, args []string) error {
	a, err := buildApp(nil, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	var duration *int64
	if sessionDuration > 0 {
		duration = &sessionDuration
	}
	id, err := a.ledger.Start(sessionBudget, duration, sessionNote)
	if err != nil {
		return err
	}
	fmt.Printf("session %d started (budget $%.2f)\n", id, sessionBudget)
	return nil
}

func runSessionStop(cmd *cobra.Command, args []string) error {
	a, err := buildApp(nil, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	id, stopped, err := a.ledger.Stop()
	if err != nil {
		return err
	}
	if !stopped {
		fmt.Println("no active session")
		return nil
	}
	fmt.Printf("session %d stopped\n", id)
	return nil
}

func runSessionStatus(cmd *cobra.Command, args []string) error {
	a, err := buildApp(nil, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	sum, err := a.ledger.Summary()
	if err != nil {
		return err
	}
	if sum == nil {
		fmt.Println("no session")
		return nil
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(sum)
}
