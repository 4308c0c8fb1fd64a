// Package tolerance implements the per-DNSBL/RHSBL error-tolerance
// counters: a best-effort health signal that suppresses queries to a list
// that has been timing out, intentionally racy per the deliberately
// downgraded consistency requirement for this shared resource.
package tolerance

import "sync/atomic"

// Counter is a relaxed atomic gauge, ceiling-clamped, grounded on
// internal/circuitbreaker.Counts' small mutable-counters style but
// simplified to one field since precise decrement is not required here.
type Counter struct {
	v       atomic.Int32
	ceiling int32
}

// NewCounter starts the counter at ceiling, its healthy state.
func NewCounter(ceiling int32) *Counter {
	c := &Counter{ceiling: ceiling}
	c.v.Store(ceiling)
	return c
}

// Positive reports whether the list currently has tolerance budget to be
// queried at all.
func (c *Counter) Positive() bool {
	return c.v.Load() > 0
}

// Charge decrements the counter on a timeout, never going below zero.
func (c *Counter) Charge() {
	for {
		cur := c.v.Load()
		if cur <= 0 {
			return
		}
		if c.v.CompareAndSwap(cur, cur-1) {
			return
		}
	}
}

// Replenish increments the counter up to its ceiling, called by the
// maintenance loop so transient outages self-heal.
func (c *Counter) Replenish() {
	for {
		cur := c.v.Load()
		if cur >= c.ceiling {
			return
		}
		if c.v.CompareAndSwap(cur, cur+1) {
			return
		}
	}
}

// Value reports the current count, for metrics and status reporting.
func (c *Counter) Value() int32 {
	return c.v.Load()
}
