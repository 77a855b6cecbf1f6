// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time source with both a wall
// clock and a monotonic reading.
//
// The registry stamps every record it touches with a monotonic
// timestamp (microseconds on CLOCK_MONOTONIC) so that pruning compares
// values that never jump backwards when the wall clock is adjusted.
// Formatting code (status blocks, journal lines) uses the wall clock.
//
// Production code accepts a [Clock] instead of calling time.Now or
// reading CLOCK_MONOTONIC directly:
//
//	engine := engine.New(engine.Config{Clock: clock.Real()})
//
// Tests inject [Fake] and move time explicitly:
//
//	c := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	c.Advance(5 * time.Second)
package clock
