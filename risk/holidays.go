package risk

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Calendar answers "is this date a market holiday". Dates come from an
// optional JSON file ( ["2026-01-01", ...] ); without one a minimal
// built-in set applies.
type Calendar struct {
	days map[string]bool
}

// LoadCalendar reads the holiday file when path is non-empty. A
// missing or unreadable file falls back to the built-in set.
func LoadCalendar(path string) *Calendar {
	c := &Calendar{}
	if path == "" {
		return c
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return c
	}
	var days []string
	if err := json.Unmarshal(data, &days); err != nil {
		return c
	}
	c.days = make(map[string]bool, len(days))
	for _, d := range days {
		c.days[d] = true
	}
	return c
}

func (c *Calendar) IsHoliday(t time.Time) bool {
	key := t.Format("2006-01-02")
	if c.days != nil {
		return c.days[key]
	}
	y := t.Year()
	switch key {
	case fmt.Sprintf("%d-01-01", y), fmt.Sprintf("%d-07-04", y), fmt.Sprintf("%d-12-25", y):
		return true
	}
	return false
}
