// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package unitui is the interactive unit browser. Its bubbletea Model
// is the program's single event loop: bus signals arrive as messages
// tagged with their scope, are applied through [engine.Engine.Step],
// and the resulting dirty set drives both the change glow and the
// redraw. Keyboard input browses the displayed registry, switches the
// type filter and scope, opens a status overlay for the selected unit,
// and dispatches lifecycle and unit-file operations through
// [dispatch.Dispatcher].
//
// Screen rows are assigned during a layout pass at the end of every
// Update. The selection is resolved through
// [unit.Registry.FindByScreenRow] rather than held as a record
// pointer, so a record pruned by a sync can never be dereferenced by
// the renderer.
package unitui
