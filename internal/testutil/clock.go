// Package testutil provides deterministic stand-ins for the engine's
// time and identifier sources, so scenario runs and golden snapshots
// stay byte-identical across executions.
package testutil

import (
	"sync"
	"time"
)

// FixedClock hands out timestamps from a fixed start, advancing by a
// fixed step on every call.
//
// Distinct, strictly ordered timestamps matter: span recency queries
// order by started_at, so two spans created in the same test must not
// share an instant.
//
// Thread-safety: all methods are safe for concurrent use via internal mutex.
type FixedClock struct {
	mu   sync.Mutex
	next time.Time
	step time.Duration
}

// NewFixedClock creates a clock whose first Now call returns start and
// whose every later call advances by step.
//
// A zero step freezes the clock at start.
func NewFixedClock(start time.Time, step time.Duration) *FixedClock {
	return &FixedClock{next: start, step: step}
}

// NewSecondClock creates the conventional scenario clock: it starts at
// 2024-01-01T00:00:00Z and ticks one second per call.
func NewSecondClock() *FixedClock {
	return NewFixedClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), time.Second)
}

// Now returns the current instant and advances the clock one step.
//
// Implements engine.Clock.
func (c *FixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.next
	c.next = c.next.Add(c.step)
	return now
}
