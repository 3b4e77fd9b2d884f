package ledger

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orionhq/riskgate/store"
)

func newLedger(t *testing.T) (*Ledger, *time.Time) {
	t.Helper()
	st, err := store.Open("sqlite3", filepath.Join(t.TempDir(), "riskgate.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	now := time.Date(2026, 3, 4, 14, 0, 0, 0, time.UTC)
	l := New(st)
	l.SetClock(func() time.Time { return now })
	return l, &now
}

func fp(v float64) *float64 { return &v }
func ip(v int64) *int64     { return &v }

func TestSessionLifecycle(t *testing.T) {
	l, _ := newLedger(t)

	_, ok, err := l.Active()
	require.NoError(t, err)
	assert.False(t, ok)

	id1, err := l.Start(1000, nil, "morning")
	require.NoError(t, err)

	s, ok, err := l.Active()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, id1, s.ID)
	assert.Equal(t, 1000.0, s.BudgetTotal)

	// Starting again stops the previous session; at most one active.
	id2, err := l.Start(500, nil, "")
	require.NoError(t, err)
	assert.NotEqual(t, id1, id2)

	s, ok, err = l.Active()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, id2, s.ID)

	var count int
	require.NoError(t, l.db.Get(&count,
		l.db.Rebind("SELECT COUNT(*) FROM sessions WHERE status = ?"), SessionActive))
	assert.Equal(t, 1, count)

	stoppedID, stopped, err := l.Stop()
	require.NoError(t, err)
	assert.True(t, stopped)
	assert.Equal(t, id2, stoppedID)

	// Stop with nothing active is a no-op.
	_, stopped, err = l.Stop()
	require.NoError(t, err)
	assert.False(t, stopped)
}

func TestStartRejectsNonPositiveBudget(t *testing.T) {
	l, _ := newLedger(t)

	_, err := l.Start(0, nil, "")
	assert.Error(t, err)
	_, err = l.Start(-10, nil, "")
	assert.Error(t, err)
}

func TestSummaryRemainingMath(t *testing.T) {
	l, _ := newLedger(t)

	_, err := l.Start(100, nil, "")
	require.NoError(t, err)

	require.NoError(t, l.Reserve("o-1", "AAPL", "buy", 30, 2, 60))
	require.NoError(t, l.Reserve("o-2", "MSFT", "buy", 20, 1, 20))
	require.NoError(t, l.SpendByOrder("o-2", nil, nil))

	sum, err := l.Summary()
	require.NoError(t, err)
	require.NotNil(t, sum)
	assert.Equal(t, 60.0, sum.Open)
	assert.Equal(t, 20.0, sum.Spent)
	assert.Equal(t, 20.0, sum.Remaining)

	// Released holds give budget back.
	require.NoError(t, l.ReleaseByOrder("o-1"))
	sum, err = l.Summary()
	require.NoError(t, err)
	assert.Equal(t, 0.0, sum.Open)
	assert.Equal(t, 80.0, sum.Remaining)
}

func TestSummaryRemainingClampedAtZero(t *testing.T) {
	l, _ := newLedger(t)

	_, err := l.Start(50, nil, "")
	require.NoError(t, err)
	require.NoError(t, l.Reserve("o-1", "AAPL", "buy", 60, 1, 60))

	sum, err := l.Summary()
	require.NoError(t, err)
	assert.Equal(t, 0.0, sum.Remaining)
}

func TestSummaryNilWithoutSession(t *testing.T) {
	l, _ := newLedger(t)

	sum, err := l.Summary()
	require.NoError(t, err)
	assert.Nil(t, sum)
}

func TestReleaseIsIdempotent(t *testing.T) {
	l, _ := newLedger(t)

	_, err := l.Start(100, nil, "")
	require.NoError(t, err)
	require.NoError(t, l.Reserve("o-1", "AAPL", "buy", 10, 1, 10))

	require.NoError(t, l.ReleaseByOrder("o-1"))
	require.NoError(t, l.ReleaseByOrder("o-1"))

	// A spend after release must not resurrect the hold.
	require.NoError(t, l.SpendByOrder("o-1", fp(1), fp(12)))

	open, err := l.SumBy(1, "", []string{StatusOpen, StatusSpent}, "amount")
	require.NoError(t, err)
	assert.Equal(t, 0.0, open)
}

func TestSpendRecomputesFromFill(t *testing.T) {
	l, _ := newLedger(t)

	_, err := l.Start(1000, nil, "")
	require.NoError(t, err)
	require.NoError(t, l.Reserve("o-1", "AAPL", "buy", 100, 3, 300))

	// Filled at a better price: the spent amount reflects the fill.
	require.NoError(t, l.SpendByOrder("o-1", fp(3), fp(95)))

	spent, err := l.SumBy(1, "", []string{StatusSpent}, "amount")
	require.NoError(t, err)
	assert.Equal(t, 285.0, spent)

	res, err := l.Reservations(1, 10)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, StatusSpent, res[0].Status)
	require.NotNil(t, res[0].AvgFillPrice)
	assert.Equal(t, 95.0, *res[0].AvgFillPrice)
}

func TestSpendKeepsEstimateWithoutFillFigures(t *testing.T) {
	l, _ := newLedger(t)

	_, err := l.Start(1000, nil, "")
	require.NoError(t, err)
	require.NoError(t, l.Reserve("o-1", "AAPL", "buy", 100, 3, 300))
	require.NoError(t, l.SpendByOrder("o-1", nil, nil))

	spent, err := l.SumBy(1, "", []string{StatusSpent}, "amount")
	require.NoError(t, err)
	assert.Equal(t, 300.0, spent)
}

func TestSessionLazyExpiry(t *testing.T) {
	l, now := newLedger(t)

	_, err := l.Start(100, ip(30), "")
	require.NoError(t, err)

	*now = now.Add(29 * time.Minute)
	_, ok, err := l.Active()
	require.NoError(t, err)
	assert.True(t, ok)

	// The first read past the deadline expires the session and reports
	// the terminal status.
	*now = now.Add(2 * time.Minute)
	sum, err := l.Summary()
	require.NoError(t, err)
	require.NotNil(t, sum)
	assert.Equal(t, SessionExpired, sum.Status)
	require.NotNil(t, sum.EndTS)

	// Reservations against an expired session are refused.
	err = l.Reserve("o-1", "AAPL", "buy", 10, 1, 10)
	assert.ErrorIs(t, err, ErrNoActiveSession)

	// Subsequent reads see no session at all.
	sum, err = l.Summary()
	require.NoError(t, err)
	assert.Nil(t, sum)
}

func TestSummaryCountdown(t *testing.T) {
	l, now := newLedger(t)

	_, err := l.Start(100, ip(30), "")
	require.NoError(t, err)

	*now = now.Add(10 * time.Minute)
	sum, err := l.Summary()
	require.NoError(t, err)
	require.NotNil(t, sum.ElapsedSec)
	require.NotNil(t, sum.LeftSec)
	assert.Equal(t, int64(600), *sum.ElapsedSec)
	assert.Equal(t, int64(1200), *sum.LeftSec)
}

func TestReleaseAllOpen(t *testing.T) {
	l, _ := newLedger(t)

	_, err := l.Start(1000, nil, "")
	require.NoError(t, err)
	require.NoError(t, l.Reserve("o-1", "AAPL", "buy", 10, 1, 10))
	require.NoError(t, l.Reserve("o-2", "MSFT", "buy", 10, 1, 10))
	require.NoError(t, l.SpendByOrder("o-2", nil, nil))

	n, err := l.ReleaseAllOpen()
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestSymbolLimits(t *testing.T) {
	l, _ := newLedger(t)

	err := l.SetSymbolLimit("AAPL", fp(500), nil)
	assert.ErrorIs(t, err, ErrNoActiveSession)

	id, err := l.Start(1000, nil, "")
	require.NoError(t, err)

	require.NoError(t, l.SetSymbolLimit("AAPL", fp(500), fp(10)))
	require.NoError(t, l.SetSymbolLimit("AAPL", fp(250), nil)) // upsert

	lim, ok, err := l.SymbolLimit(id, "AAPL")
	require.NoError(t, err)
	require.True(t, ok)
	require.NotNil(t, lim.MaxDollars)
	assert.Equal(t, 250.0, *lim.MaxDollars)
	assert.Nil(t, lim.MaxShares)

	lims, err := l.SymbolLimits()
	require.NoError(t, err)
	assert.Len(t, lims, 1)

	require.NoError(t, l.DeleteSymbolLimit("AAPL"))
	_, ok, err = l.SymbolLimit(id, "AAPL")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSumByRejectsUnknownField(t *testing.T) {
	l, _ := newLedger(t)

	_, err := l.SumBy(1, "", []string{StatusOpen}, "status; DROP TABLE sessions")
	assert.Error(t, err)
}
