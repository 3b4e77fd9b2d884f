package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var presetCmd = &cobra.Command{
	Use:   "preset",
	Short: "Inspect and patch the risk preset",
	Long: `Show the effective risk preset or patch individual fields.

Examples:
  riskgate preset show
  riskgate preset set MAX_POSITION_RISK=2500 ORDER_THROTTLE_SECONDS=5`,
}

var presetShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective preset",
	Args:  cobra.NoArgs,
	RunE:  runPresetShow,
}

var presetSetCmd = &cobra.Command{
	Use:   "set KEY=VALUE [KEY=VALUE...]",
	Short: "Patch preset fields",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runPresetSet,
}

func init() {
	rootCmd.AddCommand(presetCmd)
	presetCmd.AddCommand(presetShowCmd)
	presetCmd.AddCommand(presetSetCmd)
}

func runPresetShow(cmd *cobra.Command, args []string) error {
	a, err := buildApp(nil, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	p, err := a.presets.Current()
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(p)
}

func runPresetSet(cmd *cobra.Command, args []string) error {
	fields := make(map[string]any, len(args))
	for _, arg := range args {
		key, val, ok := strings.Cut(arg, "=")
		if !ok {
			return fmt.Errorf("expected KEY=VALUE, got %q", arg)
		}
		// Let JSON typing sort out numbers and booleans; anything that
		// fails to parse stays a string.
		var v any
		if err := json.Unmarshal([]byte(val), &v); err != nil {
			v = val
		}
		fields[key] = v
	}

	a, err := buildApp(nil, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	p, err := a.presets.Patch(fields)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(p)
}
