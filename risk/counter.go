package risk

import (
	"sync"
	"time"
)

// RateCounter backs the orders-per-minute gate. Count covers the
// current minute bucket; Bump is called only after an ALLOW verdict.
type RateCounter interface {
	Count(now time.Time) (int, error)
	Bump(now time.Time) error
}

// MemoryCounter is the process-local default. It keeps only the
// current and previous minute buckets; a restart resets the window,
// which is an accepted approximation for single-process deployments.
type MemoryCounter struct {
	mu      sync.Mutex
	buckets map[int64]int
}

func NewMemoryCounter() *MemoryCounter {
	return &MemoryCounter{buckets: make(map[int64]int)}
}

func (c *MemoryCounter) Count(now time.Time) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	minute := now.Unix() / 60
	for k := range c.buckets {
		if k < minute-1 {
			delete(c.buckets, k)
		}
	}
	return c.buckets[minute], nil
}

func (c *MemoryCounter) Bump(now time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.buckets[now.Unix()/60]++
	return nil
}
