// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package status renders the detail block shown when the operator opens
// a unit: a systemctl-status-like summary built from the unit's record
// plus its most recent journal lines.
//
// [Format] is pure and works from whatever the record holds. [Builder]
// first refreshes the record's on-demand properties over the bus, then
// formats it and appends log lines from a [Journal]. Journal lines are
// correlated by invocation ID; a unit with the zero invocation ID gets
// no log lines and no journal lookup at all.
package status
