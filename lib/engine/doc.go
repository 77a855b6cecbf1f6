// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package engine keeps each scope's [unit.Registry] in step with the
// systemd manager.
//
// An [Engine] owns one registry and one [systemd.Conn] per attached
// scope. It does three things:
//
//   - Bulk sync: one ListUnits call merged into the registry, new
//     units subscribed before they are inserted, then a prune of every
//     record the list did not mention.
//   - Push updates: PropertiesChanged signals on the Unit interface
//     apply ActiveState and SubState to the owning record.
//   - Reloads: the finished edge of the manager's Reloading signal
//     triggers a bulk sync of that scope.
//
// Inbound signals arrive as [Event] values and are consumed by [Step],
// the single place where signals mutate state. Every method must be
// called from one goroutine (the UI event loop); the engine starts no
// goroutines of its own and never retries. Bus calls block that
// goroutine until the daemon answers or the call timeout expires.
//
// A scope whose ListUnits or signal registration fails goes stale: it
// keeps its last registry contents for display but applies no further
// signals until the process restarts.
package engine
