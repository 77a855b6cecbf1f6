// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package tui provides the terminal building blocks servicemaster's
// viewer is assembled from: the color theme, the change-glow
// animation, ANSI-aware overlay splicing, a scrollbar, and fzf-backed
// fuzzy matching for the unit filter.
//
// Nothing here knows about units or D-Bus. The viewer in unitui owns
// layout and data; this package only draws.
package tui
