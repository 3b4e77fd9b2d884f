// Package pnl sources the day profit-and-loss figure the daily-loss
// gate reads. No network call is made here: the value comes from an
// env override or a small persisted snapshot, keeping the gate path
// free of broker coupling.
package pnl

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Source reports the current day PnL. ok=false means unknown; the
// daily-loss gate treats unknown as not breached unless configured to
// fail closed.
type Source interface {
	DayPnL() (float64, bool)
}

const snapshotName = "pnl.json"

type snapshot struct {
	DayPnL float64 `json:"day_pnl"`
}

// FileSource reads PNL_OVERRIDE from the environment first, then a
// JSON snapshot under dir.
type FileSource struct {
	Dir string
}

func (s FileSource) DayPnL() (float64, bool) {
	if raw := strings.TrimSpace(os.Getenv("PNL_OVERRIDE")); raw != "" {
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			return v, true
		}
	}

	data, err := os.ReadFile(filepath.Join(s.Dir, snapshotName))
	if err != nil {
		return 0, false
	}
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return 0, false
	}
	return snap.DayPnL, true
}

// Set persists the day PnL snapshot. Used by dev tooling and the
// equity sweep; tests rely on it for deterministic gate input.
func (s FileSource) Set(value float64) error {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return fmt.Errorf("pnl dir: %w", err)
	}
	data, err := json.Marshal(snapshot{DayPnL: value})
	if err != nil {
		return fmt.Errorf("marshal pnl snapshot: %w", err)
	}
	if err := os.WriteFile(filepath.Join(s.Dir, snapshotName), data, 0o644); err != nil {
		return fmt.Errorf("write pnl snapshot: %w", err)
	}
	return nil
}

// Static is a fixed-value source for tests and wiring defaults.
type Static struct {
	Value float64
	Known bool
}

func (s Static) DayPnL() (float64, bool) { return s.Value, s.Known }
