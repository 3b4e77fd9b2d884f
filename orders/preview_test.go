package orders

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orionhq/riskgate/audit"
	"github.com/orionhq/riskgate/broker"
	"github.com/orionhq/riskgate/broker/sim"
	"github.com/orionhq/riskgate/ledger"
	"github.com/orionhq/riskgate/pnl"
	"github.com/orionhq/riskgate/risk"
	"github.com/orionhq/riskgate/store"
)

type stack struct {
	previewer *Previewer
	keeper    *Gatekeeper
	ledger    *ledger.Ledger
	engine    *sim.Engine
}

// newStack wires the full approval path over sqlite and the sim broker.
// Market-hours and throttle gates are disabled so tests exercise only
// what they mean to.
func newStack(t *testing.T) *stack {
	t.Helper()

	dir := t.TempDir()
	st, err := store.Open("sqlite3", filepath.Join(dir, "riskgate.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	journal, err := audit.NewJSONL(filepath.Join(dir, "audit.jsonl"))
	require.NoError(t, err)
	t.Cleanup(func() { journal.Close() })

	presets := risk.NewPresetStore(st)
	_, err = presets.Patch(map[string]any{
		"SESSION_ENABLED":        false,
		"ORDER_THROTTLE_SECONDS": 0,
		"ORDERS_PER_MIN_LIMIT":   1000,
		"MAX_POSITION_RISK":      2500.0,
	})
	require.NoError(t, err)

	eval := risk.NewEvaluator(presets, st, risk.NewMemoryCounter(),
		pnl.Static{Known: true}, journal, risk.LoadCalendar(""), true)

	engine := sim.New(broker.Account{Equity: 10000, Cash: 10000})
	led := ledger.New(st)
	prev := NewPreviewer(eval, engine)
	return &stack{
		previewer: prev,
		keeper:    NewGatekeeper(prev, led, engine),
		ledger:    led,
		engine:    engine,
	}
}

func fp(v float64) *float64 { return &v }

func TestPreviewValidation(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()

	tests := []struct {
		name string
		req  Request
	}{
		{"missing symbol", Request{Side: "buy", Qty: 1}},
		{"bad side", Request{Symbol: "AAPL", Side: "hold", Qty: 1}},
		{"bad order type", Request{Symbol: "AAPL", Side: "buy", Qty: 1, OrderType: "stop"}},
		{"no sizing", Request{Symbol: "AAPL", Side: "buy"}},
		{"both sizings", Request{Symbol: "AAPL", Side: "buy", Qty: 1, Notional: fp(100)}},
		{"limit without price", Request{Symbol: "AAPL", Side: "buy", Qty: 1, OrderType: "limit"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.previewer.Preview(ctx, tt.req)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestPreviewPassed(t *testing.T) {
	s := newStack(t)

	res, err := s.previewer.Preview(context.Background(), Request{
		Symbol: "aapl ", Side: "buy", Qty: 2, OrderType: "limit", LimitPrice: fp(100),
	})
	require.NoError(t, err)

	assert.Equal(t, StatusPassed, res.Status)
	assert.True(t, res.OK)
	assert.Equal(t, "AAPL", res.Symbol, "symbol is normalized")
	require.NotNil(t, res.NotionalEstimate)
	assert.Equal(t, 200.0, *res.NotionalEstimate)
	assert.Len(t, res.Checks, 6)
	assert.NotEmpty(t, res.AuditID)
}

func TestPreviewBlockedByNotionalOverride(t *testing.T) {
	s := newStack(t)

	res, err := s.previewer.Preview(context.Background(), Request{
		Symbol: "AAPL", Side: "buy", Qty: 1, OrderType: "limit", LimitPrice: fp(35),
		Meta: &Meta{Overrides: map[string]any{"MAX_POSITION_RISK": 10.0}},
	})
	require.NoError(t, err)

	assert.Equal(t, StatusBlocked, res.Status)
	require.NotNil(t, res.NotionalEstimate)
	assert.Equal(t, 35.0, *res.NotionalEstimate)

	var notional *Check
	for i := range res.Checks {
		if res.Checks[i].Name == "max_position_risk" {
			notional = &res.Checks[i]
		}
	}
	require.NotNil(t, notional)
	assert.False(t, notional.Passed)
	assert.Equal(t, "35.00>10.00", notional.Detail)
}

func TestPreviewWarnsWithoutPrice(t *testing.T) {
	s := newStack(t)

	// No limit price, no client estimate, no sim quote for the symbol.
	res, err := s.previewer.Preview(context.Background(), Request{
		Symbol: "ZZZZ", Side: "buy", Qty: 5,
	})
	require.NoError(t, err)

	assert.Equal(t, StatusPassedWarn, res.Status)
	assert.True(t, res.OK)
	assert.Nil(t, res.NotionalEstimate)

	for _, c := range res.Checks {
		if c.Name == "max_position_risk" {
			assert.True(t, c.Passed)
			assert.Equal(t, "notional unknown; strict risk check skipped", c.Detail)
		}
	}
}

func TestPreviewUsesMarketQuote(t *testing.T) {
	s := newStack(t)
	s.engine.SetPrice("SPY", 450)

	res, err := s.previewer.Preview(context.Background(), Request{
		Symbol: "SPY", Side: "buy", Qty: 2,
	})
	require.NoError(t, err)

	assert.Equal(t, StatusPassed, res.Status)
	require.NotNil(t, res.NotionalEstimate)
	assert.Equal(t, 900.0, *res.NotionalEstimate)
}

func TestPreviewNotionalSizing(t *testing.T) {
	s := newStack(t)

	res, err := s.previewer.Preview(context.Background(), Request{
		Symbol: "AAPL", Side: "buy", Notional: fp(1500),
	})
	require.NoError(t, err)

	assert.Equal(t, StatusPassed, res.Status)
	require.NotNil(t, res.NotionalEstimate)
	assert.Equal(t, 1500.0, *res.NotionalEstimate)
}

func TestPreviewForceOverridesBlock(t *testing.T) {
	s := newStack(t)

	res, err := s.previewer.Preview(context.Background(), Request{
		Symbol: "AAPL", Side: "buy", Qty: 1, PriceEstimate: fp(10),
		Meta: &Meta{Overrides: map[string]any{
			"FORCE_THROTTLE_BLOCK": 1,
			"FORCE_COOLOFF_BLOCK":  1,
		}},
	})
	require.NoError(t, err)

	assert.Equal(t, StatusBlocked, res.Status)
	failed := map[string]bool{}
	for _, c := range res.Checks {
		if !c.Passed {
			failed[c.Name] = true
		}
	}
	assert.True(t, failed["throttle"])
	assert.True(t, failed["cooloff"])
	assert.Len(t, failed, 2)
}
