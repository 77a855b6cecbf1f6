// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tui

import (
	"fmt"
	"sort"

	"github.com/charmbracelet/lipgloss"
)

// Theme defines the color palette for the unit viewer. All colors use
// lipgloss ANSI 256-color codes for broad terminal compatibility.
type Theme struct {
	NormalText lipgloss.Color
	FaintText  lipgloss.Color

	SelectedBackground lipgloss.Color
	SelectedForeground lipgloss.Color

	// Active-state colors for the ACTIVE and SUB columns.
	StateActive       lipgloss.Color
	StateInactive     lipgloss.Color
	StateFailed       lipgloss.Color
	StateTransitional lipgloss.Color // activating, deactivating, reloading

	// Unit-file state colors for the STATE column.
	FileEnabled  lipgloss.Color
	FileDisabled lipgloss.Color
	FileMasked   lipgloss.Color

	HeaderForeground lipgloss.Color
	HeaderBackground lipgloss.Color
	BorderColor      lipgloss.Color
	HelpText         lipgloss.Color
	StaleText        lipgloss.Color

	// Change glow: HotAccentChange tints rows whose state changed,
	// HotAccentRemove rows that are about to disappear.
	HotAccentChange lipgloss.Color
	HotAccentRemove lipgloss.Color

	// FilterMatchForeground marks characters matched by the filter.
	FilterMatchForeground lipgloss.Color

	// Status overlay box.
	OverlayForeground lipgloss.Color
	OverlayBackground lipgloss.Color
	OverlayError      lipgloss.Color
}

// ActiveStateColor returns the color for a unit's ActiveState. Unknown
// states use FaintText.
func (theme Theme) ActiveStateColor(state string) lipgloss.Color {
	switch state {
	case "active":
		return theme.StateActive
	case "inactive":
		return theme.StateInactive
	case "failed":
		return theme.StateFailed
	case "activating", "deactivating", "reloading", "refreshing", "maintenance":
		return theme.StateTransitional
	default:
		return theme.FaintText
	}
}

// FileStateColor returns the color for the STATE column value.
func (theme Theme) FileStateColor(state string) lipgloss.Color {
	switch state {
	case "enabled", "enabled-runtime", "static", "alias", "generated", "loaded":
		return theme.FileEnabled
	case "disabled", "indirect", "linked", "linked-runtime", "transient":
		return theme.FileDisabled
	case "masked", "masked-runtime", "bad", "error", "not-found":
		return theme.FileMasked
	default:
		return theme.NormalText
	}
}

// DefaultTheme is the built-in dark-terminal color scheme.
var DefaultTheme = Theme{
	NormalText: lipgloss.Color("252"),
	FaintText:  lipgloss.Color("245"),

	SelectedBackground: lipgloss.Color("24"),
	SelectedForeground: lipgloss.Color("255"),

	StateActive:       lipgloss.Color("114"), // green
	StateInactive:     lipgloss.Color("245"), // gray
	StateFailed:       lipgloss.Color("196"), // red
	StateTransitional: lipgloss.Color("220"), // amber

	FileEnabled:  lipgloss.Color("114"),
	FileDisabled: lipgloss.Color("250"),
	FileMasked:   lipgloss.Color("203"),

	HeaderForeground: lipgloss.Color("255"),
	HeaderBackground: lipgloss.Color("25"),
	BorderColor:      lipgloss.Color("240"),
	HelpText:         lipgloss.Color("241"),
	StaleText:        lipgloss.Color("203"),

	HotAccentChange: lipgloss.Color("58"), // dark amber background tint
	HotAccentRemove: lipgloss.Color("52"), // dark red background tint

	FilterMatchForeground: lipgloss.Color("220"),

	OverlayForeground: lipgloss.Color("252"),
	OverlayBackground: lipgloss.Color("237"),
	OverlayError:      lipgloss.Color("203"),
}

// LightTheme suits terminals with a light background.
var LightTheme = Theme{
	NormalText: lipgloss.Color("235"),
	FaintText:  lipgloss.Color("243"),

	SelectedBackground: lipgloss.Color("153"),
	SelectedForeground: lipgloss.Color("232"),

	StateActive:       lipgloss.Color("28"),
	StateInactive:     lipgloss.Color("243"),
	StateFailed:       lipgloss.Color("160"),
	StateTransitional: lipgloss.Color("130"),

	FileEnabled:  lipgloss.Color("28"),
	FileDisabled: lipgloss.Color("240"),
	FileMasked:   lipgloss.Color("160"),

	HeaderForeground: lipgloss.Color("255"),
	HeaderBackground: lipgloss.Color("25"),
	BorderColor:      lipgloss.Color("248"),
	HelpText:         lipgloss.Color("244"),
	StaleText:        lipgloss.Color("160"),

	HotAccentChange: lipgloss.Color("229"),
	HotAccentRemove: lipgloss.Color("224"),

	FilterMatchForeground: lipgloss.Color("130"),

	OverlayForeground: lipgloss.Color("235"),
	OverlayBackground: lipgloss.Color("255"),
	OverlayError:      lipgloss.Color("160"),
}

var themes = map[string]Theme{
	"dark":  DefaultTheme,
	"light": LightTheme,
}

// ThemeNames lists the names ThemeByName accepts, sorted.
func ThemeNames() []string {
	names := make([]string, 0, len(themes))
	for name := range themes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ThemeByName returns a built-in theme. The empty name selects
// DefaultTheme.
func ThemeByName(name string) (Theme, error) {
	if name == "" {
		return DefaultTheme, nil
	}
	theme, ok := themes[name]
	if !ok {
		return Theme{}, fmt.Errorf("unknown theme %q (available: %v)", name, ThemeNames())
	}
	return theme, nil
}
