// Package broker declares the collaborator contracts the risk core
// consumes. Real implementations live outside this module; the gates
// only ever see these narrow interfaces.
package broker

import "context"

// MarketData supplies the latest price for notional estimation. An
// error means "unavailable" and must degrade to the unknown-notional
// warning path, never fail an evaluation.
type MarketData interface {
	LatestPrice(ctx context.Context, symbol string) (float64, error)
}

// Broker exposes the account snapshot and order listing used for the
// equity risk cap and the reservation reconciliation sweep. The risk
// gates themselves never call it.
type Broker interface {
	GetAccount(ctx context.Context) (Account, error)
	ListOrders(ctx context.Context, status string) ([]Order, error)
}

type Account struct {
	Equity float64
	Cash   float64
}

// Order is the minimal broker-side order view reconciliation needs.
type Order struct {
	ID             string
	Status         string // new | filled | partially_filled | canceled | expired | rejected | ...
	FilledQty      float64
	FilledAvgPrice float64
}
