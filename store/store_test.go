package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "riskgate.sqlite")
	st, err := Open("sqlite3", path)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st, path
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	t.Parallel()

	_, err := Open("mysql", "dsn")
	assert.Error(t, err)
}

func TestMigrationIsIdempotent(t *testing.T) {
	t.Parallel()

	st, path := newStore(t)
	require.NoError(t, st.SetSetting("k", "v"))
	require.NoError(t, st.Close())

	// Reopening the same database must not error or lose data.
	st2, err := Open("sqlite3", path)
	require.NoError(t, err)
	defer st2.Close()

	v, ok, err := st2.GetSetting("k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", v)
}

func TestSettings(t *testing.T) {
	t.Parallel()

	st, _ := newStore(t)

	_, ok, err := st.GetSetting("missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, st.SetSetting("k", "v1"))
	require.NoError(t, st.SetSetting("k", "v2")) // upsert

	v, ok, err := st.GetSetting("k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v2", v)

	require.NoError(t, st.DeleteSetting("k"))
	require.NoError(t, st.DeleteSetting("k")) // absent key is a no-op

	_, ok, err = st.GetSetting("k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFlags(t *testing.T) {
	t.Parallel()

	st, _ := newStore(t)

	on, err := st.FlagSet(KeyCooloff)
	require.NoError(t, err)
	assert.False(t, on)

	require.NoError(t, st.SetFlag(KeyCooloff, true, "drawdown"))
	on, err = st.FlagSet(KeyCooloff)
	require.NoError(t, err)
	assert.True(t, on)

	// The reason lands in the value for operators.
	v, _, err := st.GetSetting(KeyCooloff)
	require.NoError(t, err)
	assert.Equal(t, "drawdown", v)

	require.NoError(t, st.SetFlag(KeyCooloff, false, ""))
	on, err = st.FlagSet(KeyCooloff)
	require.NoError(t, err)
	assert.False(t, on)
}

func TestAutoSessionSeeded(t *testing.T) {
	t.Parallel()

	st, _ := newStore(t)

	var enabled int
	require.NoError(t, st.DB().Get(&enabled, "SELECT enabled FROM auto_session WHERE id = 1"))
	assert.Equal(t, 0, enabled)
}
