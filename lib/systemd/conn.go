// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package systemd

import (
	"context"

	"github.com/bureau-foundation/servicemaster/lib/unit"
)

// Well-known names on the systemd manager's bus.
const (
	Destination     = "org.freedesktop.systemd1"
	ManagerPath     = "/org/freedesktop/systemd1"
	ManagerIface    = "org.freedesktop.systemd1.Manager"
	UnitIface       = "org.freedesktop.systemd1.Unit"
	ServiceIface    = "org.freedesktop.systemd1.Service"
	DeviceIface     = "org.freedesktop.systemd1.Device"
	MountIface      = "org.freedesktop.systemd1.Mount"
	TimerIface      = "org.freedesktop.systemd1.Timer"
	SocketIface     = "org.freedesktop.systemd1.Socket"
	PropertiesIface = "org.freedesktop.DBus.Properties"

	propertiesChangedMember = "PropertiesChanged"
	reloadingMember         = "Reloading"
)

// ModeReplace is the job mode used for every lifecycle call.
const ModeReplace = "replace"

// UnitStatus is one entry of the manager's ListUnits reply.
type UnitStatus struct {
	Name        string
	Description string
	LoadState   string
	ActiveState string
	SubState    string
	ObjectPath  string
}

// SignalKind tags a [Signal].
type SignalKind int

const (
	// SignalPropertiesChanged is a per-unit
	// org.freedesktop.DBus.Properties.PropertiesChanged signal.
	SignalPropertiesChanged SignalKind = iota + 1

	// SignalReloading is the manager's Reloading signal, emitted once
	// when a daemon reload starts and once when it finishes.
	SignalReloading
)

func (k SignalKind) String() string {
	switch k {
	case SignalPropertiesChanged:
		return "properties-changed"
	case SignalReloading:
		return "reloading"
	default:
		return "unknown"
	}
}

// Property is one changed key from a PropertiesChanged signal. Value
// is the unwrapped variant value.
type Property struct {
	Name  string
	Value any
}

// Signal is an inbound notification from the manager.
type Signal struct {
	Kind SignalKind

	// Path and Interface identify the emitting object for
	// SignalPropertiesChanged. Changed holds the changed keys sorted
	// by name; invalidated keys are not carried.
	Path      string
	Interface string
	Changed   []Property

	// Starting is set for SignalReloading: true when a reload begins,
	// false when it has finished.
	Starting bool
}

// PropertyGetter reads one property of one object. The codec helpers
// accept this narrow interface so they can be tested without a bus.
type PropertyGetter interface {
	GetProperty(ctx context.Context, path, iface, name string) (any, error)
}

// Conn is everything servicemaster needs from one scope's manager.
// Every method except Signals blocks until the daemon replies or ctx
// expires.
type Conn interface {
	PropertyGetter

	// ListUnits returns every unit the manager has loaded.
	ListUnits(ctx context.Context) ([]UnitStatus, error)

	// GetUnitFileState asks the manager for a unit's enablement state
	// by name. Failures caused by a missing or dangling unit file
	// match [ErrNoSuchFile].
	GetUnitFileState(ctx context.Context, unitName string) (string, error)

	// Subscribe and Unsubscribe toggle the manager's emission of
	// unit change signals for this client.
	Subscribe(ctx context.Context) error
	Unsubscribe(ctx context.Context) error

	// WatchReloading registers for the manager's Reloading signal.
	WatchReloading(ctx context.Context) error

	// WatchUnit registers for PropertiesChanged on one unit object.
	// The returned subscription removes the registration on Release.
	WatchUnit(ctx context.Context, path string) (unit.Subscription, error)

	StartUnit(ctx context.Context, unitName, mode string) error
	StopUnit(ctx context.Context, unitName, mode string) error
	RestartUnit(ctx context.Context, unitName, mode string) error
	ReloadUnit(ctx context.Context, unitName, mode string) error

	EnableUnitFiles(ctx context.Context, files []string, runtime, force bool) error
	MaskUnitFiles(ctx context.Context, files []string, runtime, force bool) error
	DisableUnitFiles(ctx context.Context, files []string, runtime bool) error
	UnmaskUnitFiles(ctx context.Context, files []string, runtime bool) error

	// Signals delivers decoded signals in the order the bus delivered
	// them. The channel is closed by Close.
	Signals() <-chan Signal

	Close() error
}
