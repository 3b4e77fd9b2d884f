// Package sim is an in-memory broker and market-data fake for tests
// and local development. Prices and order states are set by hand so
// flows stay deterministic.
package sim

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/orionhq/riskgate/broker"
)

var ErrNoPrice = errors.New("no price for symbol")

type Engine struct {
	mu     sync.Mutex
	acct   broker.Account
	prices map[string]float64
	orders map[string]broker.Order
}

func New(acct broker.Account) *Engine {
	return &Engine{
		acct:   acct,
		prices: make(map[string]float64),
		orders: make(map[string]broker.Order),
	}
}

func (e *Engine) SetPrice(symbol string, price float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.prices[symbol] = price
}

func (e *Engine) LatestPrice(ctx context.Context, symbol string) (float64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, ok := e.prices[symbol]
	if !ok {
		return 0, ErrNoPrice
	}
	return p, nil
}

func (e *Engine) GetAccount(ctx context.Context) (broker.Account, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.acct, nil
}

func (e *Engine) SetAccount(acct broker.Account) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.acct = acct
}

// AddOrder registers an order and returns its ID, generating one when
// empty.
func (e *Engine) AddOrder(o broker.Order) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	e.orders[o.ID] = o
	return o.ID
}

// SetOrderStatus scripts a state transition for reconciliation tests.
func (e *Engine) SetOrderStatus(orderID, status string, filledQty, avgPrice float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	o := e.orders[orderID]
	o.ID = orderID
	o.Status = status
	o.FilledQty = filledQty
	o.FilledAvgPrice = avgPrice
	e.orders[orderID] = o
}

// ListOrders returns all orders regardless of the status filter; the
// reconciliation sweep indexes them by ID anyway.
func (e *Engine) ListOrders(ctx context.Context, status string) ([]broker.Order, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]broker.Order, 0, len(e.orders))
	for _, o := range e.orders {
		out = append(out, o)
	}
	return out, nil
}
