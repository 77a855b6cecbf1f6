// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// RenderScrollbar produces a single-column scrollbar of the given
// height for a list of totalItems showing visibleItems from
// scrollOffset. When everything fits the thumb spans the full height.
func RenderScrollbar(theme Theme, height, totalItems, visibleItems, scrollOffset int) string {
	if height <= 0 {
		return ""
	}
	trackStyle := lipgloss.NewStyle().Foreground(theme.BorderColor)
	thumbStyle := lipgloss.NewStyle().Foreground(theme.FaintText)

	thumbOffset, thumbSize := scrollThumb(height, totalItems, visibleItems, scrollOffset)
	lines := make([]string, height)
	for index := range lines {
		if index >= thumbOffset && index < thumbOffset+thumbSize {
			lines[index] = thumbStyle.Render("┃")
		} else {
			lines[index] = trackStyle.Render("│")
		}
	}
	return strings.Join(lines, "\n")
}

// scrollThumb returns the thumb's first row and length.
func scrollThumb(height, totalItems, visibleItems, scrollOffset int) (offset, size int) {
	if totalItems <= visibleItems || totalItems <= 0 {
		return 0, height
	}
	size = max(1, height*visibleItems/totalItems)

	scrollableRange := totalItems - visibleItems
	trackRange := height - size
	if scrollableRange > 0 && trackRange > 0 {
		offset = scrollOffset * trackRange / scrollableRange
	}
	offset = max(0, min(offset, height-size))
	return offset, size
}
