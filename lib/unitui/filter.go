// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package unitui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/junegunn/fzf/src/util"

	"github.com/bureau-foundation/servicemaster/lib/tui"
)

// FilterModel narrows the displayed list to unit names fuzzy-matching
// the query. The filter composes with the type mode: the mode picks
// the base set and the filter narrows it.
type FilterModel struct {
	// Input is the current query text.
	Input string

	// Active is true while the filter input has keyboard focus.
	Active bool

	slab *util.Slab
}

// Match scores name against the query. An empty query matches
// everything with no highlighted positions.
func (filter *FilterModel) Match(name string) (bool, []int) {
	if filter.Input == "" {
		return true, nil
	}
	if filter.slab == nil {
		filter.slab = tui.NewSlab()
	}
	result := tui.FuzzyMatch(name, []rune(filter.Input), filter.slab)
	return result.Score > 0, result.Positions
}

// HandleRune appends a typed character to the query.
func (filter *FilterModel) HandleRune(character rune) {
	filter.Input += string(character)
}

// HandleBackspace removes the last character. Returns false when the
// query was already empty.
func (filter *FilterModel) HandleBackspace() bool {
	if filter.Input == "" {
		return false
	}
	runes := []rune(filter.Input)
	filter.Input = string(runes[:len(runes)-1])
	return true
}

// Clear resets the query and drops focus.
func (filter *FilterModel) Clear() {
	filter.Input = ""
	filter.Active = false
}

// View renders the filter bar: the query with a cursor while focused,
// a dim reminder while a query is applied, nothing otherwise.
func (filter *FilterModel) View(theme tui.Theme, width int) string {
	if !filter.Active && filter.Input == "" {
		return ""
	}
	if filter.Active {
		cursor := lipgloss.NewStyle().
			Foreground(theme.HeaderForeground).
			Bold(true).
			Render("▎")
		return lipgloss.NewStyle().
			Foreground(theme.NormalText).
			Width(width).
			Render(" / " + filter.Input + cursor)
	}
	return lipgloss.NewStyle().
		Foreground(theme.FaintText).
		Width(width).
		Render(" filter: " + filter.Input)
}
