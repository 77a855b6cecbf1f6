// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package unitui

import (
	"github.com/charmbracelet/bubbles/key"

	"github.com/bureau-foundation/servicemaster/lib/dispatch"
)

// KeyMap defines all keybindings for the unit browser. Mode letters
// are not listed here: every [unit.Type] carries its own key.
type KeyMap struct {
	Up       key.Binding
	Down     key.Binding
	PageUp   key.Binding
	PageDown key.Binding
	Home     key.Binding
	End      key.Binding

	PreviousMode key.Binding
	NextMode     key.Binding
	ToggleScope  key.Binding

	Status key.Binding

	Start   key.Binding
	Stop    key.Binding
	Restart key.Binding
	Enable  key.Binding
	Disable key.Binding
	Mask    key.Binding
	Unmask  key.Binding
	Reload  key.Binding

	FilterActivate key.Binding
	Escape         key.Binding
	Quit           key.Binding
}

// DefaultKeyMap follows the function-key layout of classic system
// managers: F1 through F8 act on the selected unit.
var DefaultKeyMap = KeyMap{
	Up: key.NewBinding(
		key.WithKeys("up", "k"),
		key.WithHelp("↑", "up"),
	),
	Down: key.NewBinding(
		key.WithKeys("down", "j"),
		key.WithHelp("↓", "down"),
	),
	PageUp: key.NewBinding(
		key.WithKeys("pgup", "ctrl+u"),
		key.WithHelp("PgUp", "page up"),
	),
	PageDown: key.NewBinding(
		key.WithKeys("pgdown", "ctrl+d"),
		key.WithHelp("PgDn", "page down"),
	),
	Home: key.NewBinding(
		key.WithKeys("home"),
		key.WithHelp("Home", "top"),
	),
	End: key.NewBinding(
		key.WithKeys("end"),
		key.WithHelp("End", "bottom"),
	),
	PreviousMode: key.NewBinding(
		key.WithKeys("left"),
		key.WithHelp("←", "prev type"),
	),
	NextMode: key.NewBinding(
		key.WithKeys("right"),
		key.WithHelp("→", "next type"),
	),
	ToggleScope: key.NewBinding(
		key.WithKeys(" "),
		key.WithHelp("Space", "system/user"),
	),
	Status: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("Enter", "status"),
	),
	Start: key.NewBinding(
		key.WithKeys("f1"),
		key.WithHelp("F1", "start"),
	),
	Stop: key.NewBinding(
		key.WithKeys("f2"),
		key.WithHelp("F2", "stop"),
	),
	Restart: key.NewBinding(
		key.WithKeys("f3"),
		key.WithHelp("F3", "restart"),
	),
	Enable: key.NewBinding(
		key.WithKeys("f4"),
		key.WithHelp("F4", "enable"),
	),
	Disable: key.NewBinding(
		key.WithKeys("f5"),
		key.WithHelp("F5", "disable"),
	),
	Mask: key.NewBinding(
		key.WithKeys("f6"),
		key.WithHelp("F6", "mask"),
	),
	Unmask: key.NewBinding(
		key.WithKeys("f7"),
		key.WithHelp("F7", "unmask"),
	),
	Reload: key.NewBinding(
		key.WithKeys("f8"),
		key.WithHelp("F8", "reload"),
	),
	FilterActivate: key.NewBinding(
		key.WithKeys("/"),
		key.WithHelp("/", "filter"),
	),
	Escape: key.NewBinding(
		key.WithKeys("esc"),
		key.WithHelp("Esc", "close/quit"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

// operationBindings pairs each dispatchable operation with its key.
func (keys KeyMap) operationBindings() []operationBinding {
	return []operationBinding{
		{keys.Start, dispatch.Start},
		{keys.Stop, dispatch.Stop},
		{keys.Restart, dispatch.Restart},
		{keys.Enable, dispatch.Enable},
		{keys.Disable, dispatch.Disable},
		{keys.Mask, dispatch.Mask},
		{keys.Unmask, dispatch.Unmask},
		{keys.Reload, dispatch.Reload},
	}
}

type operationBinding struct {
	binding   key.Binding
	operation dispatch.Operation
}

// helpBindings is the order bindings appear in the status bar.
func (keys KeyMap) helpBindings() []key.Binding {
	return []key.Binding{
		keys.Start, keys.Stop, keys.Restart, keys.Enable, keys.Disable,
		keys.Mask, keys.Unmask, keys.Reload,
		keys.ToggleScope, keys.Status, keys.FilterActivate, keys.Quit,
	}
}
