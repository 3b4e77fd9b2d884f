// Package risk implements the order risk gates: a pure-ish decision
// function over the preset, the throttle watermark, the per-minute
// counter, the day PnL and the cooloff/circuit-breaker flags. Every
// evaluation runs all gates so the verdict always carries a complete
// reasons map, and every evaluation appends one audit record.
package risk

import (
	"fmt"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/orionhq/riskgate/audit"
	"github.com/orionhq/riskgate/metrics"
	"github.com/orionhq/riskgate/pnl"
	"github.com/orionhq/riskgate/store"
)

// Gate names. A verdict's Reasons map contains every one of these keys
// regardless of which gates failed.
const (
	GateSession  = "session"
	GateThrottle = "throttle"
	GateRate     = "orders_per_min"
	GateNotional = "max_position_risk"
	GateDaily    = "daily_loss_limit"
	GateCooloff  = "cooloff"
)

var gateNames = []string{GateSession, GateThrottle, GateRate, GateNotional, GateDaily, GateCooloff}

// Override keys honored beyond the preset fields.
const (
	overrideForceThrottle = "FORCE_THROTTLE_BLOCK"
	overrideForceCooloff  = "FORCE_COOLOFF_BLOCK"
)

// Intent is one proposed order as the gates see it.
type Intent struct {
	Symbol    string
	Side      string
	Qty       float64
	OrderType string
	Price     *float64 // nil means no estimate; notional check degrades to a warning

	// Overrides patch the preset for this evaluation only. Ignored
	// unless the evaluator allows them.
	Overrides map[string]any
}

// Verdict is the combined result of all gates.
type Verdict struct {
	OK         bool              `json:"ok"`
	Gates      map[string]bool   `json:"gates"`
	Reasons    map[string]string `json:"reasons"`
	Notional   float64           `json:"notional"`
	PriceKnown bool              `json:"price_known"`
	Preset     Preset            `json:"preset"`
	AuditID    string            `json:"audit_id"`
}

// Blocked lists the names of failed gates.
func (v Verdict) Blocked() []string {
	var out []string
	for _, g := range gateNames {
		if !v.Gates[g] {
			out = append(out, g)
		}
	}
	return out
}

// Evaluator owns the gate state that is not per-request: the throttle
// watermark and flags live in the store, the rate counter is injected.
// Evaluate serializes its read-decide-write sequence so concurrent
// requests cannot both pass the throttle or rate gates off stale
// state.
type Evaluator struct {
	mu             sync.Mutex
	presets        *PresetStore
	store          *store.Store
	counter        RateCounter
	pnl            pnl.Source
	journal        audit.Journal
	calendar       *Calendar
	allowOverrides bool
	now            func() time.Time
}

func NewEvaluator(presets *PresetStore, st *store.Store, counter RateCounter,
	src pnl.Source, journal audit.Journal, calendar *Calendar, allowOverrides bool) *Evaluator {
	return &Evaluator{
		presets:        presets,
		store:          st,
		counter:        counter,
		pnl:            src,
		journal:        journal,
		calendar:       calendar,
		allowOverrides: allowOverrides,
		now:            time.Now,
	}
}

// SetClock replaces the evaluator's clock. Test hook.
func (e *Evaluator) SetClock(now func() time.Time) { e.now = now }

// Evaluate runs every gate and appends the audit record. The returned
// error is reserved for persistence failures; a blocked order is a
// normal verdict, not an error.
func (e *Evaluator) Evaluate(in Intent) (Verdict, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	preset, err := e.presets.Current()
	if err != nil {
		return Verdict{}, fmt.Errorf("read preset: %w", err)
	}

	forceThrottle, forceCooloff := false, false
	if e.allowOverrides && in.Overrides != nil {
		preset, forceThrottle, forceCooloff = applyOverrides(preset, in.Overrides)
	}

	now := e.now()
	v := Verdict{
		Gates:   make(map[string]bool, len(gateNames)),
		Reasons: make(map[string]string, len(gateNames)),
		Preset:  preset,
	}
	pass := func(gate string) { v.Gates[gate] = true; v.Reasons[gate] = "ok" }
	fail := func(gate, reason string) { v.Gates[gate] = false; v.Reasons[gate] = reason }

	// 1) Session / market hours.
	local := now.In(location(preset.Timezone))
	switch {
	case !preset.SessionEnabled:
		pass(GateSession)
	case e.calendar.IsHoliday(local):
		fail(GateSession, "holiday")
	case !withinRTH(local, preset) && !preset.AllowPremarket && !preset.AllowAfterhours:
		fail(GateSession, "closed")
	default:
		pass(GateSession)
	}

	// 2) Throttle. The watermark moves only on ALLOW, so a burst of
	// blocked orders never extends the window.
	lastTS := e.readWatermark()
	switch {
	case forceThrottle:
		fail(GateThrottle, "throttled")
	case preset.ThrottleSeconds > 0 && lastTS > 0 &&
		now.Sub(time.Unix(0, int64(lastTS*1e9))) < time.Duration(preset.ThrottleSeconds)*time.Second:
		fail(GateThrottle, "throttled")
	default:
		pass(GateThrottle)
	}

	// 3) Orders per minute.
	count, cerr := e.counter.Count(now)
	if cerr != nil {
		// A dead counter backend must not block trading by itself.
		count = 0
	}
	if count >= preset.OrdersPerMinLimit {
		fail(GateRate, fmt.Sprintf("%d/%d", count, preset.OrdersPerMinLimit))
	} else {
		pass(GateRate)
	}

	// 4) Per-order notional. No estimate means pass-with-warning: a
	// market order without a quote is deliberately let through here
	// and flagged by the preview layer.
	if in.Price != nil {
		v.PriceKnown = true
		v.Notional = math.Abs(in.Qty) * *in.Price
	}
	if v.PriceKnown && preset.MaxPositionRisk > 0 && v.Notional > preset.MaxPositionRisk {
		fail(GateNotional, fmt.Sprintf("%.2f>%.2f", v.Notional, preset.MaxPositionRisk))
	} else {
		pass(GateNotional)
	}

	// 5) Daily loss limit plus the circuit-breaker marker.
	dailyReason := ""
	if preset.DailyLossLimit > 0 {
		if val, known := e.pnl.DayPnL(); known {
			if val < -math.Abs(preset.DailyLossLimit) {
				dailyReason = fmt.Sprintf("breach %.2f < %.2f", val, -math.Abs(preset.DailyLossLimit))
			}
		} else if preset.BlockOnUnknownPnL {
			dailyReason = "pnl unknown"
		}
	}
	if breaker, _ := e.store.FlagSet(store.KeyCircuitBreaker); breaker {
		dailyReason = "circuit_breaker"
	}
	if dailyReason != "" {
		fail(GateDaily, dailyReason)
	} else {
		pass(GateDaily)
	}

	// 6) Cooloff.
	cooloff, _ := e.store.FlagSet(store.KeyCooloff)
	if forceCooloff || cooloff {
		fail(GateCooloff, "cooloff_active")
	} else {
		pass(GateCooloff)
	}

	v.OK = true
	for _, g := range gateNames {
		if !v.Gates[g] {
			v.OK = false
			metrics.GateFailures.WithLabelValues(g).Inc()
		}
	}

	if v.OK {
		if err := e.store.SetSetting(store.KeyLastOrderTS,
			strconv.FormatFloat(float64(now.UnixNano())/1e9, 'f', 3, 64)); err != nil {
			return v, fmt.Errorf("update throttle watermark: %w", err)
		}
		// A failed bump undercounts one order; same degradation as a
		// dead counter backend on the read side.
		_ = e.counter.Bump(now)
		metrics.Evaluations.WithLabelValues("allow").Inc()
	} else {
		if !v.Gates[GateDaily] {
			// A daily-loss failure latches the breaker, and the
			// cooloff too when the preset escalates drawdowns.
			if err := e.store.SetFlag(store.KeyCircuitBreaker, true, "daily_breach"); err != nil {
				return v, fmt.Errorf("set circuit breaker: %w", err)
			}
			if preset.CooloffAfterDrawdown {
				if err := e.store.SetFlag(store.KeyCooloff, true, "drawdown"); err != nil {
					return v, fmt.Errorf("set cooloff: %w", err)
				}
			}
		}
		metrics.Evaluations.WithLabelValues("block").Inc()
	}

	result := "BLOCK"
	if v.OK {
		result = "ALLOW"
	}
	auditID, err := e.journal.Append(audit.Entry{
		TS:       now.UTC().Format(time.RFC3339),
		Kind:     "orders.evaluate",
		Symbol:   in.Symbol,
		Side:     in.Side,
		Qty:      in.Qty,
		Type:     in.OrderType,
		Price:    in.Price,
		Notional: v.Notional,
		Reasons:  v.Reasons,
		Result:   result,
		Preset:   preset,
	})
	if err != nil {
		// The audit trail is a compliance invariant; never swallow.
		return v, fmt.Errorf("audit append: %w", err)
	}
	v.AuditID = auditID
	return v, nil
}

func (e *Evaluator) readWatermark() float64 {
	raw, ok, err := e.store.GetSetting(store.KeyLastOrderTS)
	if err != nil || !ok {
		return 0
	}
	ts, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0
	}
	return ts
}

// SetCooloff raises or clears the cooloff flag.
func SetCooloff(s *store.Store, active bool) error {
	return s.SetFlag(store.KeyCooloff, active, "manual")
}

// CooloffActive reports the cooloff flag.
func CooloffActive(s *store.Store) (bool, error) {
	return s.FlagSet(store.KeyCooloff)
}

// ClearCircuitBreaker removes the hard-block marker set by a
// daily-loss breach.
func ClearCircuitBreaker(s *store.Store) error {
	return s.SetFlag(store.KeyCircuitBreaker, false, "")
}

// CircuitBreakerActive reports the breaker marker.
func CircuitBreakerActive(s *store.Store) (bool, error) {
	return s.FlagSet(store.KeyCircuitBreaker)
}

func location(name string) *time.Location {
	if loc, err := time.LoadLocation(name); err == nil {
		return loc
	}
	// Matches the reference deployment's fixed eastern-time offset.
	return time.FixedZone("ET", -4*3600)
}

func withinRTH(local time.Time, p Preset) bool {
	hhmm := local.Format("15:04")
	return p.RTHStart <= hhmm && hhmm <= p.RTHEnd
}

func applyOverrides(p Preset, ov map[string]any) (Preset, bool, bool) {
	forceThrottle, forceCooloff := false, false
	for k, raw := range ov {
		switch k {
		case "ORDER_THROTTLE_SECONDS":
			if n, ok := toInt(raw); ok {
				p.ThrottleSeconds = n
			}
		case "ORDERS_PER_MIN_LIMIT":
			if n, ok := toInt(raw); ok {
				p.OrdersPerMinLimit = n
			}
		case "MAX_POSITION_RISK":
			if f, ok := toFloat(raw); ok {
				p.MaxPositionRisk = f
			}
		case "DAILY_LOSS_LIMIT":
			if f, ok := toFloat(raw); ok {
				p.DailyLossLimit = f
			}
		case "SESSION_ENABLED":
			if b, ok := toBool(raw); ok {
				p.SessionEnabled = b
			}
		case "ALLOW_PREMARKET":
			if b, ok := toBool(raw); ok {
				p.AllowPremarket = b
			}
		case "ALLOW_AFTERHOURS":
			if b, ok := toBool(raw); ok {
				p.AllowAfterhours = b
			}
		case "COOLOFF_AFTER_DRAWDOWN":
			if b, ok := toBool(raw); ok {
				p.CooloffAfterDrawdown = b
			}
		case "BLOCK_ON_UNKNOWN_PNL":
			if b, ok := toBool(raw); ok {
				p.BlockOnUnknownPnL = b
			}
		case "RTH_START":
			if s, ok := raw.(string); ok {
				p.RTHStart = s
			}
		case "RTH_END":
			if s, ok := raw.(string); ok {
				p.RTHEnd = s
			}
		case "TIMEZONE":
			if s, ok := raw.(string); ok {
				p.Timezone = s
			}
		case overrideForceThrottle:
			if b, ok := toBool(raw); ok {
				forceThrottle = b
			}
		case overrideForceCooloff:
			if b, ok := toBool(raw); ok {
				forceCooloff = b
			}
			// Unknown keys are ignored for dev ergonomics.
		}
	}
	return p, forceThrottle, forceCooloff
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case string:
		f, err := strconv.ParseFloat(x, 64)
		return f, err == nil
	}
	return 0, false
}

func toInt(v any) (int, bool) {
	f, ok := toFloat(v)
	return int(f), ok
}

func toBool(v any) (bool, bool) {
	switch x := v.(type) {
	case bool:
		return x, true
	case string:
		switch x {
		case "1", "true", "yes":
			return true, true
		case "0", "false", "no":
			return false, true
		}
		return false, false
	default:
		if f, ok := toFloat(v); ok {
			return f != 0, true
		}
	}
	return false, false
}
