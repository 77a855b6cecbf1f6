// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import "time"

// Clock abstracts time reads for testability. Production code injects
// Real(); tests inject Fake() with deterministic time control.
type Clock interface {
	// Now returns the current wall-clock time.
	Now() time.Time

	// Monotonic returns microseconds on a clock that only moves
	// forward. The zero point is arbitrary; only differences and
	// ordering are meaningful.
	Monotonic() uint64
}
