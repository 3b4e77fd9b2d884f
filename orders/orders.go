// Package orders is the external-facing order contract: a dry-run
// preview that only evaluates gates, and a gatekeeper that additionally
// enforces the session budget and records the reservation. Neither
// talks to a real broker for submission.
package orders

import (
	"errors"
	"fmt"
	"strings"
)

// Verdict statuses.
const (
	StatusPassed     = "PASSED"
	StatusPassedWarn = "PASSED_WITH_WARNINGS"
	StatusBlocked    = "BLOCKED"
)

// ErrValidation marks a malformed order intent. Validation failures
// are rejected before any gate runs and write no audit record.
var ErrValidation = errors.New("invalid order intent")

// Request is an order intent. Exactly one of Qty (whole shares) or
// Notional (dollar amount) sizes the order.
type Request struct {
	Symbol        string   `json:"symbol"`
	Side          string   `json:"side"`       // buy | sell
	Qty           int64    `json:"qty"`        // >= 1 when used
	OrderType     string   `json:"order_type"` // market | limit
	LimitPrice    *float64 `json:"limit_price,omitempty"`
	PriceEstimate *float64 `json:"price_estimate,omitempty"` // market-order notional hint
	Notional      *float64 `json:"notional,omitempty"`
	MaxRiskPct    *float64 `json:"max_risk_pct,omitempty"` // 0.01 = 1% of equity

	// Meta.Overrides patches the preset for this request. Honored only
	// when the deployment allows overrides; meant for tests and dev.
	Meta *Meta `json:"meta,omitempty"`
}

type Meta struct {
	Overrides map[string]any `json:"overrides,omitempty"`
}

func (r *Request) overrides() map[string]any {
	if r.Meta == nil {
		return nil
	}
	return r.Meta.Overrides
}

func (r *Request) validate() error {
	r.Symbol = strings.ToUpper(strings.TrimSpace(r.Symbol))
	if r.Symbol == "" {
		return fmt.Errorf("%w: symbol required", ErrValidation)
	}
	switch r.Side {
	case "buy", "sell":
	default:
		return fmt.Errorf("%w: side must be buy or sell", ErrValidation)
	}
	switch r.OrderType {
	case "":
		r.OrderType = "market"
	case "market", "limit":
	default:
		return fmt.Errorf("%w: order_type must be market or limit", ErrValidation)
	}

	hasQty := r.Qty >= 1
	hasNotional := r.Notional != nil && *r.Notional > 0
	if hasQty == hasNotional {
		return fmt.Errorf("%w: exactly one of qty (>= 1) or notional (> 0) required", ErrValidation)
	}
	if r.Qty < 0 {
		return fmt.Errorf("%w: qty must be >= 1", ErrValidation)
	}
	if r.OrderType == "limit" && (r.LimitPrice == nil || *r.LimitPrice <= 0) {
		return fmt.Errorf("%w: limit_price is required for limit orders", ErrValidation)
	}
	return nil
}

// Check is one named gate or budget verdict for the response body.
type Check struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail,omitempty"`
}

// Result is the structured verdict for preview and approval.
type Result struct {
	OK               bool     `json:"ok"`
	Status           string   `json:"status"`
	Symbol           string   `json:"symbol"`
	Side             string   `json:"side"`
	Qty              int64    `json:"qty"`
	OrderType        string   `json:"order_type"`
	NotionalEstimate *float64 `json:"notional_estimate"`
	Checks           []Check  `json:"checks"`
	AuditID          string   `json:"audit_id,omitempty"`
	TimestampUTC     string   `json:"timestamp_utc"`

	// Budget-rejection hints: what the session still affords.
	AllowedDollars *float64 `json:"allowed_dollars,omitempty"`
	AllowedQty     *int64   `json:"allowed_qty,omitempty"`

	// OrderID is the reservation key on an approved order.
	OrderID string `json:"order_id,omitempty"`
}
