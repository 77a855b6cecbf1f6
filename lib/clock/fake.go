// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"sync"
	"time"
)

// fakeMonotonicBase is where a FakeClock's monotonic reading starts.
// Non-zero so that a freshly created record (LastUpdate == 0) always
// compares as older than any reading taken from the clock.
const fakeMonotonicBase = 1_000_000

// Fake returns a FakeClock initialized to the given wall time. Time
// stands still until Advance is called.
//
// FakeClock is safe for concurrent use by multiple goroutines.
func Fake(initial time.Time) *FakeClock {
	return &FakeClock{
		current:   initial,
		monotonic: fakeMonotonicBase,
	}
}

// FakeClock is a deterministic Clock for testing. Wall and monotonic
// readings advance together, and only when Advance is called.
type FakeClock struct {
	mu        sync.Mutex
	current   time.Time
	monotonic uint64
}

// Now returns the current fake wall time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Monotonic returns the current fake monotonic reading in microseconds.
func (c *FakeClock) Monotonic() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.monotonic
}

// Advance moves both readings forward by d. Negative durations are
// ignored: the monotonic reading must never go backwards.
func (c *FakeClock) Advance(d time.Duration) {
	if d <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = c.current.Add(d)
	c.monotonic += uint64(d.Microseconds())
}

// SetWall replaces the wall time without touching the monotonic
// reading, simulating an administrator changing the system clock.
func (c *FakeClock) SetWall(wall time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = wall
}
