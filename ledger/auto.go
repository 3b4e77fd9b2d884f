package ledger

import (
	"database/sql"
	"fmt"
)

// AutoConfig drives the daily auto-start: when enabled, the first tick
// on or after start_hour:start_min opens a session with the configured
// budget, at most once per calendar day.
type AutoConfig struct {
	Enabled         bool     `db:"enabled" json:"enabled"`
	BudgetTotal     *float64 `db:"budget_total" json:"budget_total"`
	DurationMin     *int64   `db:"duration_min" json:"duration_min"`
	StartHour       *int64   `db:"start_hour" json:"start_hour"`
	StartMin        *int64   `db:"start_min" json:"start_min"`
	LastStartedDate *string  `db:"last_started_date" json:"last_started_date"`
}

func (l *Ledger) AutoConfig() (AutoConfig, error) {
	var row struct {
		Enabled         int64    `db:"enabled"`
		BudgetTotal     *float64 `db:"budget_total"`
		DurationMin     *int64   `db:"duration_min"`
		StartHour       *int64   `db:"start_hour"`
		StartMin        *int64   `db:"start_min"`
		LastStartedDate *string  `db:"last_started_date"`
	}
	err := l.db.Get(&row, `SELECT enabled, budget_total, duration_min, start_hour, start_min, last_started_date
		FROM auto_session WHERE id = 1`)
	if err == sql.ErrNoRows {
		return AutoConfig{}, nil
	}
	if err != nil {
		return AutoConfig{}, fmt.Errorf("auto config: %w", err)
	}
	return AutoConfig{
		Enabled:         row.Enabled != 0,
		BudgetTotal:     row.BudgetTotal,
		DurationMin:     row.DurationMin,
		StartHour:       row.StartHour,
		StartMin:        row.StartMin,
		LastStartedDate: row.LastStartedDate,
	}, nil
}

// SetAutoConfig replaces the scheduler configuration. The
// last-started stamp is preserved.
func (l *Ledger) SetAutoConfig(cfg AutoConfig) error {
	enabled := 0
	if cfg.Enabled {
		enabled = 1
	}
	if _, err := l.db.Exec(l.db.Rebind(`
		UPDATE auto_session SET enabled = ?, budget_total = ?, duration_min = ?,
			start_hour = ?, start_min = ? WHERE id = 1`),
		enabled, cfg.BudgetTotal, cfg.DurationMin, cfg.StartHour, cfg.StartMin); err != nil {
		return fmt.Errorf("set auto config: %w", err)
	}
	return nil
}

// Tick runs one scheduler pass. Returns whether a session was started
// and a short reason when it was not. Safe to call as often as the
// caller likes: the last-started date guarantees one start per day.
func (l *Ledger) Tick() (bool, string, error) {
	cfg, err := l.AutoConfig()
	if err != nil {
		return false, "", err
	}
	if !cfg.Enabled {
		return false, "disabled", nil
	}
	if cfg.StartHour == nil || cfg.StartMin == nil || cfg.BudgetTotal == nil || *cfg.BudgetTotal <= 0 {
		return false, "incomplete config", nil
	}

	now := l.now()
	today := now.Format("2006-01-02")
	if cfg.LastStartedDate != nil && *cfg.LastStartedDate == today {
		return false, "already started today", nil
	}
	if int64(now.Hour()) < *cfg.StartHour ||
		(int64(now.Hour()) == *cfg.StartHour && int64(now.Minute()) < *cfg.StartMin) {
		return false, "before start time", nil
	}

	if _, ok, err := l.Active(); err != nil {
		return false, "", err
	} else if ok {
		return false, "session already active", nil
	}

	if _, err := l.Start(*cfg.BudgetTotal, cfg.DurationMin, "auto-session"); err != nil {
		return false, "", err
	}
	if _, err := l.db.Exec(l.db.Rebind(
		"UPDATE auto_session SET last_started_date = ? WHERE id = 1"), today); err != nil {
		return true, "", fmt.Errorf("stamp auto start: %w", err)
	}
	return true, "", nil
}
