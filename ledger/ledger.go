// Package ledger is the session-budget accounting engine: one active
// trading session at a time, reservations held against its budget per
// order, and per-symbol sub-caps. Amounts count toward the used budget
// while a reservation is open or spent; released reservations are
// excluded.
package ledger

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/orionhq/riskgate/metrics"
	"github.com/orionhq/riskgate/store"
)

var ErrNoActiveSession = errors.New("no active session")

// Reservation statuses.
const (
	StatusOpen     = "open"
	StatusSpent    = "spent"
	StatusReleased = "released"
)

// Session statuses.
const (
	SessionActive  = "active"
	SessionStopped = "stopped"
	SessionExpired = "expired"
)

type Session struct {
	ID          int64   `db:"id" json:"id"`
	StartTS     string  `db:"start_ts" json:"start_ts"`
	EndTS       *string `db:"end_ts" json:"end_ts"`
	Status      string  `db:"status" json:"status"`
	BudgetTotal float64 `db:"budget_total" json:"budget_total"`
	DurationMin *int64  `db:"duration_min" json:"duration_min"`
	Note        *string `db:"note" json:"note"`
}

type Reservation struct {
	ID           int64    `db:"id" json:"id"`
	SessionID    int64    `db:"session_id" json:"session_id"`
	TS           string   `db:"ts" json:"ts"`
	OrderID      *string  `db:"order_id" json:"order_id"`
	Symbol       *string  `db:"symbol" json:"symbol"`
	Side         *string  `db:"side" json:"side"`
	EstPrice     *float64 `db:"est_price" json:"est_price"`
	Qty          *float64 `db:"qty" json:"qty"`
	Amount       *float64 `db:"amount" json:"amount"`
	FilledQty    *float64 `db:"filled_qty" json:"filled_qty"`
	AvgFillPrice *float64 `db:"avg_fill_price" json:"avg_fill_price"`
	Status       string   `db:"status" json:"status"`
}

type SymbolLimit struct {
	Symbol     string   `db:"symbol" json:"symbol"`
	MaxDollars *float64 `db:"max_dollars" json:"max_dollars"`
	MaxShares  *float64 `db:"max_shares" json:"max_shares"`
}

// Summary is the session snapshot: remaining is clamped at zero,
// elapsed/left are present only for bounded sessions.
type Summary struct {
	ID          int64   `json:"id"`
	Status      string  `json:"status"`
	StartTS     string  `json:"start_ts"`
	EndTS       *string `json:"end_ts"`
	BudgetTotal float64 `json:"budget_total"`
	Open        float64 `json:"open"`
	Spent       float64 `json:"spent"`
	Remaining   float64 `json:"remaining"`
	DurationMin *int64  `json:"duration_min"`
	ElapsedSec  *int64  `json:"elapsed_sec"`
	LeftSec     *int64  `json:"left_sec"`
	Note        *string `json:"note"`
}

type Ledger struct {
	db  *sqlx.DB
	now func() time.Time
}

func New(st *store.Store) *Ledger {
	return &Ledger{db: st.DB(), now: time.Now}
}

// SetClock replaces the ledger's clock. Test hook.
func (l *Ledger) SetClock(now func() time.Time) { l.now = now }

func (l *Ledger) ts(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// Active returns the active session, lazily expiring it first when its
// duration has elapsed. ok=false when no session is active.
func (l *Ledger) Active() (Session, bool, error) {
	var s Session
	err := l.db.Get(&s, l.db.Rebind(`
		SELECT id, start_ts, end_ts, status, budget_total, duration_min, note
		FROM sessions WHERE status = ? ORDER BY id DESC LIMIT 1`), SessionActive)
	if err == sql.ErrNoRows {
		return Session{}, false, nil
	}
	if err != nil {
		return Session{}, false, fmt.Errorf("active session: %w", err)
	}

	if s.DurationMin != nil {
		start, perr := time.Parse(time.RFC3339, s.StartTS)
		if perr == nil {
			deadline := start.Add(time.Duration(*s.DurationMin) * time.Minute)
			if l.now().After(deadline) {
				end := l.ts(l.now())
				if _, err := l.db.Exec(l.db.Rebind(
					"UPDATE sessions SET status = ?, end_ts = ? WHERE id = ?"),
					SessionExpired, end, s.ID); err != nil {
					return Session{}, false, fmt.Errorf("expire session: %w", err)
				}
				s.Status = SessionExpired
				s.EndTS = &end
				return s, false, nil
			}
		}
	}
	return s, true, nil
}

// Start opens a new active session, stopping any currently active one
// first so at most one session is ever active.
func (l *Ledger) Start(budget float64, durationMin *int64, note string) (int64, error) {
	if budget <= 0 {
		return 0, fmt.Errorf("budget must be > 0")
	}

	now := l.ts(l.now())
	if s, ok, err := l.Active(); err != nil {
		return 0, err
	} else if ok {
		if _, err := l.db.Exec(l.db.Rebind(
			"UPDATE sessions SET status = ?, end_ts = ? WHERE id = ?"),
			SessionStopped, now, s.ID); err != nil {
			return 0, fmt.Errorf("stop previous session: %w", err)
		}
	}

	var notePtr *string
	if note != "" {
		notePtr = &note
	}
	if _, err := l.db.Exec(l.db.Rebind(`
		INSERT INTO sessions (start_ts, status, budget_total, duration_min, note)
		VALUES (?, ?, ?, ?, ?)`), now, SessionActive, budget, durationMin, notePtr); err != nil {
		return 0, fmt.Errorf("insert session: %w", err)
	}

	var id int64
	if err := l.db.Get(&id, l.db.Rebind(
		"SELECT id FROM sessions WHERE status = ? ORDER BY id DESC LIMIT 1"), SessionActive); err != nil {
		return 0, fmt.Errorf("new session id: %w", err)
	}
	return id, nil
}

// Stop marks the active session stopped. ok=false when none was
// active (a no-op, not an error).
func (l *Ledger) Stop() (int64, bool, error) {
	s, ok, err := l.Active()
	if err != nil || !ok {
		return 0, false, err
	}
	if _, err := l.db.Exec(l.db.Rebind(
		"UPDATE sessions SET status = ?, end_ts = ? WHERE id = ?"),
		SessionStopped, l.ts(l.now()), s.ID); err != nil {
		return 0, false, fmt.Errorf("stop session: %w", err)
	}
	return s.ID, true, nil
}

// SumBy aggregates reservation amounts or quantities for a session,
// optionally narrowed to a symbol.
func (l *Ledger) SumBy(sessionID int64, symbol string, statuses []string, field string) (float64, error) {
	switch field {
	case "amount", "qty":
	default:
		return 0, fmt.Errorf("sum field %q not allowed", field)
	}

	query := "SELECT COALESCE(SUM(" + field + "), 0) FROM session_reservations WHERE session_id = ? AND status IN (?)"
	args := []any{sessionID, statuses}
	if symbol != "" {
		query += " AND symbol = ?"
		args = append(args, symbol)
	}
	q, qargs, err := sqlx.In(query, args...)
	if err != nil {
		return 0, fmt.Errorf("sum query: %w", err)
	}

	var total float64
	if err := l.db.Get(&total, l.db.Rebind(q), qargs...); err != nil {
		return 0, fmt.Errorf("sum reservations: %w", err)
	}
	return total, nil
}

// Summary returns the active session snapshot, or nil when no session
// is active (the just-expired session is returned with its terminal
// status so callers can report the transition).
func (l *Ledger) Summary() (*Summary, error) {
	s, ok, err := l.Active()
	if err != nil {
		return nil, err
	}
	if !ok && s.ID == 0 {
		return nil, nil
	}

	open, err := l.SumBy(s.ID, "", []string{StatusOpen}, "amount")
	if err != nil {
		return nil, err
	}
	spent, err := l.SumBy(s.ID, "", []string{StatusSpent}, "amount")
	if err != nil {
		return nil, err
	}

	remaining := s.BudgetTotal - open - spent
	if remaining < 0 {
		remaining = 0
	}
	sum := &Summary{
		ID:          s.ID,
		Status:      s.Status,
		StartTS:     s.StartTS,
		EndTS:       s.EndTS,
		BudgetTotal: s.BudgetTotal,
		Open:        open,
		Spent:       spent,
		Remaining:   remaining,
		DurationMin: s.DurationMin,
		Note:        s.Note,
	}
	if s.DurationMin != nil {
		if start, perr := time.Parse(time.RFC3339, s.StartTS); perr == nil {
			now := l.now()
			elapsed := int64(now.Sub(start).Seconds())
			left := int64(start.Add(time.Duration(*s.DurationMin) * time.Minute).Sub(now).Seconds())
			if elapsed < 0 {
				elapsed = 0
			}
			if left < 0 {
				left = 0
			}
			sum.ElapsedSec = &elapsed
			sum.LeftSec = &left
		}
	}
	if s.Status == SessionActive {
		metrics.SessionRemaining.Set(remaining)
	}
	return sum, nil
}

// Reserve inserts an open reservation against the active session.
// Budget enforcement happens in the approval flow before this call;
// Reserve itself is unconditional.
func (l *Ledger) Reserve(orderID, symbol, side string, estPrice, qty, amount float64) error {
	s, ok, err := l.Active()
	if err != nil {
		return err
	}
	if !ok {
		return ErrNoActiveSession
	}
	if _, err := l.db.Exec(l.db.Rebind(`
		INSERT INTO session_reservations
			(session_id, ts, order_id, symbol, side, est_price, qty, amount, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		s.ID, l.ts(l.now()), orderID, symbol, side, estPrice, qty, amount, StatusOpen); err != nil {
		return fmt.Errorf("insert reservation: %w", err)
	}
	metrics.Reservations.WithLabelValues(StatusOpen).Inc()
	return nil
}

// ReleaseByOrder moves the order's open reservation to released.
// Idempotent: terminal reservations are untouched, so a release racing
// a fill (or a double cancel) is a no-op.
func (l *Ledger) ReleaseByOrder(orderID string) error {
	res, err := l.db.Exec(l.db.Rebind(`
		UPDATE session_reservations SET status = ?
		WHERE order_id = ? AND status = ?`), StatusReleased, orderID, StatusOpen)
	if err != nil {
		return fmt.Errorf("release reservation: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		metrics.Reservations.WithLabelValues(StatusReleased).Inc()
	}
	return nil
}

// SpendByOrder moves the order's open reservation to spent. When both
// fill figures are known the amount is recomputed from the actual
// fill; otherwise the estimate stands.
func (l *Ledger) SpendByOrder(orderID string, filledQty, avgFillPrice *float64) error {
	var (
		res sql.Result
		err error
	)
	if filledQty != nil && avgFillPrice != nil && *filledQty > 0 && *avgFillPrice > 0 {
		amount := *filledQty * *avgFillPrice
		res, err = l.db.Exec(l.db.Rebind(`
			UPDATE session_reservations
			SET status = ?, filled_qty = ?, avg_fill_price = ?, amount = ?
			WHERE order_id = ? AND status = ?`),
			StatusSpent, *filledQty, *avgFillPrice, amount, orderID, StatusOpen)
	} else {
		res, err = l.db.Exec(l.db.Rebind(`
			UPDATE session_reservations SET status = ?
			WHERE order_id = ? AND status = ?`), StatusSpent, orderID, StatusOpen)
	}
	if err != nil {
		return fmt.Errorf("spend reservation: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		metrics.Reservations.WithLabelValues(StatusSpent).Inc()
	}
	return nil
}

// ReleaseAllOpen releases every open reservation. Used by the
// cancel-all flow.
func (l *Ledger) ReleaseAllOpen() (int64, error) {
	res, err := l.db.Exec(l.db.Rebind(
		"UPDATE session_reservations SET status = ? WHERE status = ?"),
		StatusReleased, StatusOpen)
	if err != nil {
		return 0, fmt.Errorf("release all: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// Reservations lists the session's reservations newest first.
func (l *Ledger) Reservations(sessionID int64, limit int) ([]Reservation, error) {
	if limit <= 0 {
		limit = 500
	}
	var out []Reservation
	err := l.db.Select(&out, l.db.Rebind(`
		SELECT id, session_id, ts, order_id, symbol, side, est_price, qty, amount,
		       filled_qty, avg_fill_price, status
		FROM session_reservations
		WHERE session_id = ?
		ORDER BY id DESC LIMIT ?`), sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}
	return out, nil
}

// SetSymbolLimit upserts a per-symbol cap on the active session.
func (l *Ledger) SetSymbolLimit(symbol string, maxDollars, maxShares *float64) error {
	s, ok, err := l.Active()
	if err != nil {
		return err
	}
	if !ok {
		return ErrNoActiveSession
	}
	if _, err := l.db.Exec(l.db.Rebind(`
		INSERT INTO session_symbol_limits (session_id, symbol, max_dollars, max_shares)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (session_id, symbol) DO UPDATE SET
			max_dollars = excluded.max_dollars,
			max_shares = excluded.max_shares`),
		s.ID, symbol, maxDollars, maxShares); err != nil {
		return fmt.Errorf("set symbol limit: %w", err)
	}
	return nil
}

// SymbolLimit fetches the cap for one symbol on the given session.
func (l *Ledger) SymbolLimit(sessionID int64, symbol string) (SymbolLimit, bool, error) {
	var lim SymbolLimit
	err := l.db.Get(&lim, l.db.Rebind(`
		SELECT symbol, max_dollars, max_shares FROM session_symbol_limits
		WHERE session_id = ? AND symbol = ?`), sessionID, symbol)
	if err == sql.ErrNoRows {
		return SymbolLimit{}, false, nil
	}
	if err != nil {
		return SymbolLimit{}, false, fmt.Errorf("symbol limit: %w", err)
	}
	return lim, true, nil
}

// SymbolLimits lists the active session's caps.
func (l *Ledger) SymbolLimits() ([]SymbolLimit, error) {
	s, ok, err := l.Active()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNoActiveSession
	}
	var out []SymbolLimit
	if err := l.db.Select(&out, l.db.Rebind(`
		SELECT symbol, max_dollars, max_shares FROM session_symbol_limits
		WHERE session_id = ? ORDER BY symbol`), s.ID); err != nil {
		return nil, fmt.Errorf("list symbol limits: %w", err)
	}
	return out, nil
}

// DeleteSymbolLimit removes a cap from the active session.
func (l *Ledger) DeleteSymbolLimit(symbol string) error {
	s, ok, err := l.Active()
	if err != nil {
		return err
	}
	if !ok {
		return ErrNoActiveSession
	}
	if _, err := l.db.Exec(l.db.Rebind(
		"DELETE FROM session_symbol_limits WHERE session_id = ? AND symbol = ?"),
		s.ID, symbol); err != nil {
		return fmt.Errorf("delete symbol limit: %w", err)
	}
	return nil
}
