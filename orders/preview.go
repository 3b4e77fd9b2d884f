package orders

import (
	"context"
	"math"
	"time"

	"github.com/orionhq/riskgate/broker"
	"github.com/orionhq/riskgate/risk"
)

// Previewer evaluates order intents against the risk gates without
// touching the session budget. MarketData is optional; without it a
// market order with no client estimate degrades to the warning path.
type Previewer struct {
	eval   *risk.Evaluator
	market broker.MarketData
}

func NewPreviewer(eval *risk.Evaluator, market broker.MarketData) *Previewer {
	return &Previewer{eval: eval, market: market}
}

// Preview validates the intent, estimates notional and runs all gates.
// A blocked verdict is a normal result; the error return is for
// validation and persistence failures only.
func (p *Previewer) Preview(ctx context.Context, req Request) (Result, error) {
	if err := req.validate(); err != nil {
		return Result{}, err
	}

	price, qty := p.estimate(ctx, &req)
	verdict, err := p.eval.Evaluate(risk.Intent{
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
	return buildResult(req, verdict), nil
}

// estimate resolves the price basis and effective quantity for the
// notional check. Order of preference: limit price, client estimate,
// market data. Notional-sized orders evaluate as one unit at the
// notional amount, which yields the same dollar exposure.
func (p *Previewer) estimate(ctx context.Context, req *Request) (*float64, float64) {
	if req.Notional != nil && *req.Notional > 0 {
		return req.Notional, 1
	}

	qty := float64(req.Qty)
	if req.OrderType == "limit" && req.LimitPrice != nil {
		return req.LimitPrice, qty
	}
	if req.PriceEstimate != nil && *req.PriceEstimate > 0 {
		return req.PriceEstimate, qty
	}
	if p.market != nil {
		qctx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		if px, err := p.market.LatestPrice(qctx, req.Symbol); err == nil && px > 0 {
			return &px, qty
		}
	}
	return nil, qty
}

func buildResult(req Request, v risk.Verdict) Result {
	res := Result{
		OK:           v.OK,
		Symbol:       req.Symbol,
		Side:         req.Side,
		Qty:          req.Qty,
		OrderType:    req.OrderType,
		AuditID:      v.AuditID,
		TimestampUTC: time.Now().UTC().Format(time.RFC3339),
	}
	if v.PriceKnown {
		n := v.Notional
		res.NotionalEstimate = &n
	}

	for _, gate := range []string{
		risk.GateSession, risk.GateThrottle, risk.GateRate,
		risk.GateNotional, risk.GateDaily, risk.GateCooloff,
	} {
		detail := v.Reasons[gate]
		if gate == risk.GateNotional && v.Gates[gate] && !v.PriceKnown {
			detail = "notional unknown; strict risk check skipped"
		}
		res.Checks = append(res.Checks, Check{Name: gate, Passed: v.Gates[gate], Detail: detail})
	}

	switch {
	case !v.OK:
		res.Status = StatusBlocked
	case !v.PriceKnown:
		res.Status = StatusPassedWarn
	default:
		res.Status = StatusPassed
	}
	return res
}

func floorQty(dollars, price float64) int64 {
	if price <= 0 {
		return 0
	}
	q := int64(math.Floor(dollars / price))
	if q < 0 {
		return 0
	}
	return q
}
