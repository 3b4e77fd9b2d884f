package risk

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalendarBuiltin(t *testing.T) {
	t.Parallel()

	c := LoadCalendar("")
	assert.True(t, c.IsHoliday(time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)))
	assert.True(t, c.IsHoliday(time.Date(2026, 7, 4, 10, 0, 0, 0, time.UTC)))
	assert.True(t, c.IsHoliday(time.Date(2026, 12, 25, 10, 0, 0, 0, time.UTC)))
	assert.False(t, c.IsHoliday(time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)))
}

func TestCalendarFromFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "holidays.json")
	require.NoError(t, os.WriteFile(path, []byte(`["2026-11-26"]`), 0o644))

	c := LoadCalendar(path)
	assert.True(t, c.IsHoliday(time.Date(2026, 11, 26, 10, 0, 0, 0, time.UTC)))
	// A file replaces the built-in set entirely.
	assert.False(t, c.IsHoliday(time.Date(2026, 7, 4, 10, 0, 0, 0, time.UTC)))
}

func TestCalendarBadFileFallsBack(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "holidays.json")
	require.NoError(t, os.WriteFile(path, []byte(`not json`), 0o644))

	c := LoadCalendar(path)
	assert.True(t, c.IsHoliday(time.Date(2026, 7, 4, 10, 0, 0, 0, time.UTC)))
}
