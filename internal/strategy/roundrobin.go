package strategy

import (
	"sync/atomic"
)

// Cursor is the rotation counter behind round robin. It only moves forward
// and wraps at 2^64.
type Cursor struct {
	n atomic.Uint64
}

// NewCursor returns a cursor whose first Next call yields start.
func NewCursor(start uint64) *Cursor {
	c := &Cursor{}
	c.n.Store(start)
	return c
}

// Next returns the current value and advances the cursor by one. Concurrent
// callers never observe the same value.
func (c *Cursor) Next() uint64 {
	return c.n.Add(1) - 1
}

// Load returns the value the next call to Next will yield.
func (c *Cursor) Load() uint64 {
	return c.n.Load()
}

func roundRobinIndex(c *Cursor, n int) int {
	return int(c.Next() % uint64(n))
}
