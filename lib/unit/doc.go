// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package unit holds the in-memory model of systemd units: one [Record]
// per unit and one [Registry] per bus scope.
//
// A Registry is an ordered slice of records sorted by D-Bus object
// path, with name and path indexes on the side. Screen positions are
// not stored anywhere except on the records themselves: the renderer
// calls [Registry.InvalidateScreenRows], walks [Registry.NthVisible]
// assigning rows, and input handling resolves the selection with
// [Registry.FindByScreenRow]. Rows are only valid between those two
// points.
//
// Records own their bus subscription. A record enters a registry only
// after its subscription is live ([Registry.InsertSorted] rejects it
// otherwise) and the subscription is released exactly once, when the
// record is pruned or the registry is closed.
//
// Nothing here is safe for concurrent use. All mutation happens on the
// event loop goroutine.
package unit
