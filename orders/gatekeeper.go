package orders

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/orionhq/riskgate/broker"
	"github.com/orionhq/riskgate/ledger"
	"github.com/orionhq/riskgate/pkg/id"
	"github.com/orionhq/riskgate/risk"
)

// Gatekeeper runs the full approval path: budget and cap enforcement,
// gate evaluation, and the reservation insert. The whole sequence
// holds one mutex so a check against the remaining budget and the
// reservation it authorizes cannot interleave with another request.
type Gatekeeper struct {
	mu      sync.Mutex
	preview *Previewer
	ledger  *ledger.Ledger
	broker  broker.Broker // optional; enables the equity risk cap
}

func NewGatekeeper(p *Previewer, l *ledger.Ledger, b broker.Broker) *Gatekeeper {
	return &Gatekeeper{preview: p, ledger: l, broker: b}
}

// Approve evaluates an intent for real submission. On success the
// estimated cost is reserved against the active session under the
// given order ID (one is generated when empty). Blocked outcomes are
// normal results carrying itemized checks and affordability hints.
func (g *Gatekeeper) Approve(ctx context.Context, req Request, orderID string) (Result, error) {
	if err := req.validate(); err != nil {
		return Result{}, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	price, qty := g.preview.estimate(ctx, &req)

	// Session budget and caps come first: a budget rejection must not
	// move the throttle watermark or the minute counter.
	if req.Side == "buy" {
		if blocked, res, err := g.checkBudget(req, price, qty); err != nil {
			return Result{}, err
		} else if blocked {
			return res, nil
		}
		if blocked, res, err := g.checkEquityCap(ctx, req, price, qty); err != nil {
			return Result{}, err
		} else if blocked {
			return res, nil
		}
	}

	verdict, err := g.preview.eval.Evaluate(risk.Intent{
		Symbol:    req.Symbol,
		Side:      req.Side,
		Qty:       qty,
		OrderType: req.OrderType,
		Price:     price,
		Overrides: req.overrides(),
	})
	if err != nil {
		return Result{}, err
	}
	res := buildResult(req, verdict)
	if !verdict.OK {
		return res, nil
	}

	if req.Side == "buy" {
		if _, ok, aerr := g.ledger.Active(); aerr != nil {
			return Result{}, aerr
		} else if ok {
			if orderID == "" {
				orderID = id.New()
			}
			estPrice, amount := 0.0, 0.0
			if price != nil {
				estPrice = *price
				amount = estPrice * qty
			}
			if err := g.ledger.Reserve(orderID, req.Symbol, req.Side, estPrice, qty, amount); err != nil {
				return Result{}, fmt.Errorf("reserve budget: %w", err)
			}
			res.OrderID = orderID
		}
	}
	return res, nil
}

// Cancel releases the order's reservation. Safe to call after a fill:
// spent reservations are terminal and the release is a no-op.
func (g *Gatekeeper) Cancel(orderID string) error {
	return g.ledger.ReleaseByOrder(orderID)
}

// Sync runs the broker reconciliation sweep.
func (g *Gatekeeper) Sync(ctx context.Context) (int, error) {
	if g.broker == nil {
		return 0, nil
	}
	return g.ledger.Sync(ctx, g.broker)
}

func (g *Gatekeeper) checkBudget(req Request, price *float64, qty float64) (bool, Result, error) {
	sum, err := g.ledger.Summary()
	if err != nil {
		return false, Result{}, err
	}
	if sum == nil || sum.Status != ledger.SessionActive {
		// No session means no budget to enforce.
		return false, Result{}, nil
	}

	var estCost float64
	switch {
	case req.Notional != nil && *req.Notional > 0:
		estCost = *req.Notional
	case price != nil && *price > 0:
		estCost = *price * qty
	default:
		res := blockedResult(req, "session_budget", "no price estimate for budget check")
		return true, res, nil
	}

	if estCost > sum.Remaining {
		res := blockedResult(req, "session_budget",
			fmt.Sprintf("cost %.2f exceeds remaining %.2f", estCost, sum.Remaining))
		remaining := sum.Remaining
		res.AllowedDollars = &remaining
		if price != nil && *price > 0 && req.Notional == nil {
			aq := floorQty(sum.Remaining, *price)
			res.AllowedQty = &aq
		}
		return true, res, nil
	}

	lim, ok, err := g.ledger.SymbolLimit(sum.ID, req.Symbol)
	if err != nil {
		return false, Result{}, err
	}
	if !ok {
		return false, Result{}, nil
	}

	held := []string{ledger.StatusOpen, ledger.StatusSpent}
	if lim.MaxDollars != nil {
		used, err := g.ledger.SumBy(sum.ID, req.Symbol, held, "amount")
		if err != nil {
			return false, Result{}, err
		}
		if used+estCost > *lim.MaxDollars {
			res := blockedResult(req, "symbol_limit_dollars",
				fmt.Sprintf("%s used %.2f + %.2f exceeds cap %.2f", req.Symbol, used, estCost, *lim.MaxDollars))
			return true, res, nil
		}
	}
	if lim.MaxShares != nil && qty > 0 && req.Notional == nil {
		used, err := g.ledger.SumBy(sum.ID, req.Symbol, held, "qty")
		if err != nil {
			return false, Result{}, err
		}
		if used+qty > *lim.MaxShares {
			res := blockedResult(req, "symbol_limit_shares",
				fmt.Sprintf("%s used %.0f + %.0f exceeds cap %.0f", req.Symbol, used, qty, *lim.MaxShares))
			return true, res, nil
		}
	}
	return false, Result{}, nil
}

// checkEquityCap enforces max_risk_pct of account equity when a broker
// collaborator is wired. An unreachable broker skips the cap rather
// than blocking the desk.
func (g *Gatekeeper) checkEquityCap(ctx context.Context, req Request, price *float64, qty float64) (bool, Result, error) {
	if req.MaxRiskPct == nil || *req.MaxRiskPct <= 0 || g.broker == nil {
		return false, Result{}, nil
	}

	actx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	acct, err := g.broker.GetAccount(actx)
	if err != nil || acct.Equity <= 0 {
		return false, Result{}, nil
	}

	allowed := acct.Equity * *req.MaxRiskPct
	var estCost float64
	switch {
	case req.Notional != nil && *req.Notional > 0:
		estCost = *req.Notional
	case price != nil:
		estCost = *price * qty
	default:
		return false, Result{}, nil
	}

	if estCost > allowed {
		res := blockedResult(req, "risk_limit",
			fmt.Sprintf("cost %.2f exceeds %.2f%% of equity %.2f", estCost, *req.MaxRiskPct*100, acct.Equity))
		res.AllowedDollars = &allowed
		if price != nil && *price > 0 && req.Notional == nil {
			aq := floorQty(allowed, *price)
			res.AllowedQty = &aq
		}
		return true, res, nil
	}
	return false, Result{}, nil
}

func blockedResult(req Request, check, detail string) Result {
	return Result{
		OK:           false,
		Status:       StatusBlocked,
		Symbol:       req.Symbol,
		Side:         req.Side,
		Qty:          req.Qty,
		OrderType:    req.OrderType,
		Checks:       []Check{{Name: check, Passed: false, Detail: detail}},
		TimestampUTC: time.Now().UTC().Format(time.RFC3339),
	}
}
