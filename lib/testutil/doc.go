// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for channel waits.
//
// [RequireReceive] and [RequireClosed] wrap the select-with-timeout
// pattern so tests that watch goroutine output (the bus signal
// forwarder, for example) never hang when the value does not come.
// They are the only place in the test suite that waits on the real
// wall clock; everything else runs on [clock.FakeClock].
//
// Helpers call t.Fatalf on failure rather than returning errors.
package testutil
