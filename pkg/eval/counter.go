package eval

import "sync/atomic"

// Counter is the global evaluation counter. It is incremented exactly once
// per genome evaluated; the count participates in run-termination decisions,
// so a lost update would be a correctness bug, not an approximation. All
// access goes through atomic operations.
type Counter struct {
	n atomic.Uint64
}

// NewCounter returns a counter starting at zero.
func NewCounter() *Counter { return &Counter{} }

// Increment records one completed evaluation and returns the new total.
func (c *Counter) Increment() uint64 { return c.n.Add(1) }

// Value returns the current total.
func (c *Counter) Value() uint64 { return c.n.Load() }

// Reset zeroes the counter. Only the bootstrap initializer uses this, and
// only between discarded attempts.
func (c *Counter) Reset() { c.n.Store(0) }
