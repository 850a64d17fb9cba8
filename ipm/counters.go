package ipm

import "sync/atomic"

// Counters accumulates bytes and messages transferred by a Receiver.
// Both fields are atomic scalars: written by the receiving goroutine,
// swapped to zero by whoever scrapes a snapshot (spec §5).
type Counters struct {
	bytes    atomic.Uint64
	messages atomic.Uint64
}

// Add records one successful receive of n bytes.
func (c *Counters) Add(n int) {
	c.bytes.Add(uint64(n))
	c.messages.Add(1)
}

// Snapshot atomically swaps both counters to zero and returns their prior
// values.
func (c *Counters) Snapshot() (bytes, messages uint64) {
	return c.bytes.Swap(0), c.messages.Swap(0)
}
