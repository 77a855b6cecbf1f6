// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"time"

	"golang.org/x/sys/unix"
)

// Real returns a Clock backed by the time package for wall time and
// CLOCK_MONOTONIC for monotonic readings.
func Real() Clock { return realClock{} }

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) Monotonic() uint64 {
	var spec unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_MONOTONIC, &spec); err != nil {
		// CLOCK_MONOTONIC is always present on Linux. Fall back to the
		// runtime's monotonic reading so callers still get ordering.
		return uint64(time.Since(processStart).Microseconds())
	}
	return uint64(spec.Sec)*1_000_000 + uint64(spec.Nsec)/1_000
}

// processStart anchors the fallback monotonic reading. time.Since uses
// the runtime's monotonic clock when both operands carry one.
var processStart = time.Now()
