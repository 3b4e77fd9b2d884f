package risk

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orionhq/riskgate/store"
)

func newPresetStore(t *testing.T) (*PresetStore, *store.Store) {
	t.Helper()
	st, err := store.Open("sqlite3", filepath.Join(t.TempDir(), "riskgate.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return NewPresetStore(st), st
}

func TestPresetDefaults(t *testing.T) {
	ps, _ := newPresetStore(t)

	p, err := ps.Current()
	require.NoError(t, err)
	assert.Equal(t, 3, p.ThrottleSeconds)
	assert.Equal(t, 15, p.OrdersPerMinLimit)
	assert.Equal(t, 2500.0, p.MaxPositionRisk)
	assert.Equal(t, 500.0, p.DailyLossLimit)
	assert.True(t, p.SessionEnabled)
	assert.Equal(t, "09:30", p.RTHStart)
	assert.Equal(t, "16:00", p.RTHEnd)
}

func TestPresetPatchMergesAndPersists(t *testing.T) {
	ps, st := newPresetStore(t)

	p, err := ps.Patch(map[string]any{"MAX_POSITION_RISK": 100.0, "UNKNOWN_FIELD": 1})
	require.NoError(t, err)
	assert.Equal(t, 100.0, p.MaxPositionRisk)
	assert.Equal(t, 3, p.ThrottleSeconds, "unpatched fields keep their value")

	// A fresh store over the same database sees the patched document.
	again := NewPresetStore(st)
	p, err = again.Current()
	require.NoError(t, err)
	assert.Equal(t, 100.0, p.MaxPositionRisk)
}

func TestPresetPatchRejectsInvalid(t *testing.T) {
	ps, _ := newPresetStore(t)

	tests := []struct {
		name   string
		fields map[string]any
	}{
		{"zero max position", map[string]any{"MAX_POSITION_RISK": 0}},
		{"negative throttle", map[string]any{"ORDER_THROTTLE_SECONDS": -1}},
		{"zero rate limit", map[string]any{"ORDERS_PER_MIN_LIMIT": 0}},
		{"negative loss limit", map[string]any{"DAILY_LOSS_LIMIT": -5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ps.Patch(tt.fields)
			assert.Error(t, err)
		})
	}

	// A rejected patch leaves the stored preset untouched.
	p, err := ps.Current()
	require.NoError(t, err)
	assert.Equal(t, 2500.0, p.MaxPositionRisk)
}
