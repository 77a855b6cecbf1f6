// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
)

// SpliceOverlay replaces a rectangular region of a rendered view with
// overlay lines placed at (anchorX, anchorY). ANSI-aware truncation
// keeps the escape sequences on both sides of the overlay intact.
func SpliceOverlay(view string, overlayLines []string, anchorX, anchorY int) string {
	if len(overlayLines) == 0 {
		return view
	}

	viewLines := strings.Split(view, "\n")
	overlayWidth := 0
	for _, line := range overlayLines {
		overlayWidth = max(overlayWidth, ansi.StringWidth(line))
	}

	for index, overlayLine := range overlayLines {
		row := anchorY + index
		if row < 0 || row >= len(viewLines) {
			continue
		}
		viewLine := viewLines[row]
		viewLineWidth := ansi.StringWidth(viewLine)

		var result strings.Builder
		if anchorX > 0 {
			prefix := ansi.Truncate(viewLine, anchorX, "")
			result.WriteString(prefix)
			// Short lines need padding up to the anchor.
			if gap := anchorX - ansi.StringWidth(prefix); gap > 0 {
				result.WriteString(strings.Repeat(" ", gap))
			}
		}
		result.WriteString("\x1b[0m")
		result.WriteString(overlayLine)
		result.WriteString("\x1b[0m")

		if suffixStart := anchorX + overlayWidth; suffixStart < viewLineWidth {
			result.WriteString(ansi.TruncateLeft(viewLine, suffixStart, ""))
		}
		viewLines[row] = result.String()
	}
	return strings.Join(viewLines, "\n")
}

// CenterOverlay splices overlayLines into the middle of a view of the
// given size.
func CenterOverlay(view string, overlayLines []string, width, height int) string {
	overlayWidth := 0
	for _, line := range overlayLines {
		overlayWidth = max(overlayWidth, ansi.StringWidth(line))
	}
	anchorX := max(0, (width-overlayWidth)/2)
	anchorY := max(0, (height-len(overlayLines))/2)
	return SpliceOverlay(view, overlayLines, anchorX, anchorY)
}

// RenderBox draws body inside a bordered box with title, wrapping or
// truncating to fit maxWidth × maxHeight (border included). Lines past
// the height are replaced by a "…" marker. Returns one string per
// screen row so the result can be passed to SpliceOverlay.
func RenderBox(theme Theme, title, body string, maxWidth, maxHeight int, accent lipgloss.Color) []string {
	innerWidth := max(1, maxWidth-4)
	innerHeight := max(1, maxHeight-2)

	var content []string
	for _, line := range strings.Split(strings.TrimRight(body, "\n"), "\n") {
		if ansi.StringWidth(line) > innerWidth {
			line = ansi.Truncate(line, innerWidth-1, "…")
		}
		content = append(content, line)
	}
	if len(content) > innerHeight {
		content = append(content[:innerHeight-1], "…")
	}

	width := 0
	for _, line := range content {
		width = max(width, ansi.StringWidth(line))
	}
	width = max(width, ansi.StringWidth(title)+2)
	width = min(width, innerWidth)

	border := lipgloss.RoundedBorder()
	boxStyle := lipgloss.NewStyle().
		Border(border).
		BorderForeground(accent).
		BorderBackground(theme.OverlayBackground).
		Background(theme.OverlayBackground).
		Foreground(theme.OverlayForeground).
		Padding(0, 1).
		Width(width + 2)

	rendered := boxStyle.Render(strings.Join(content, "\n"))
	lines := strings.Split(rendered, "\n")
	if title != "" && len(lines) > 0 {
		lines[0] = spliceTitle(lines[0], title, accent, theme.OverlayBackground)
	}
	return lines
}

// spliceTitle writes " title " into a rendered top border, two columns
// from the left corner.
func spliceTitle(borderLine, title string, accent, background lipgloss.Color) string {
	label := lipgloss.NewStyle().
		Bold(true).
		Foreground(accent).
		Background(background).
		Render(" " + title + " ")
	if ansi.StringWidth(label)+3 > ansi.StringWidth(borderLine) {
		return borderLine
	}
	return SpliceOverlay(borderLine, []string{label}, 2, 0)
}
