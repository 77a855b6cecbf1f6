// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package systemdtest provides an in-memory [systemd.Conn] for tests.
//
// The fake holds a unit list, a property table and per-method error
// injections. Every call is recorded so tests can assert exactly which
// bus traffic an operation produced (including none at all). Signals
// are injected with Emit and read back through Signals like the real
// connection.
package systemdtest

import (
	"context"
	"fmt"
	"slices"
	"sync"

	godbus "github.com/godbus/dbus/v5"

	"github.com/bureau-foundation/servicemaster/lib/systemd"
	"github.com/bureau-foundation/servicemaster/lib/unit"
)

// Call is one recorded method invocation.
type Call struct {
	Method string
	Args   []any
}

// Conn is a scripted fake. The zero value is not usable; call New.
type Conn struct {
	mu sync.Mutex

	units      []systemd.UnitStatus
	properties map[string]map[string]any
	fileStates map[string]string
	failures   map[string]error
	calls      []Call

	watches  map[string]int
	releases map[string]int

	signals chan systemd.Signal
	closed  bool
}

var _ systemd.Conn = (*Conn)(nil)

// New returns an empty fake with room for buffered signals.
func New() *Conn {
	return &Conn{
		properties: make(map[string]map[string]any),
		fileStates: make(map[string]string),
		failures:   make(map[string]error),
		watches:    make(map[string]int),
		releases:   make(map[string]int),
		signals:    make(chan systemd.Signal, 64),
	}
}

// SetUnits replaces the ListUnits reply.
func (c *Conn) SetUnits(units ...systemd.UnitStatus) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.units = slices.Clone(units)
}

// Units returns the current ListUnits reply.
func (c *Conn) Units() []systemd.UnitStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.units)
}

// SetProperty sets the value GetProperty returns for path/iface/name.
func (c *Conn) SetProperty(path, iface, name string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	object := c.properties[path]
	if object == nil {
		object = make(map[string]any)
		c.properties[path] = object
	}
	object[iface+"."+name] = value
}

// SetUnitFileState sets the value GetUnitFileState returns for a unit.
func (c *Conn) SetUnitFileState(unitName, state string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fileStates[unitName] = state
}

// Fail makes every later call to method return err. A nil err clears
// the injection.
func (c *Conn) Fail(method string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err == nil {
		delete(c.failures, method)
		return
	}
	c.failures[method] = err
}

// Calls returns every recorded call in order.
func (c *Conn) Calls() []Call {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.calls)
}

// CallCount returns how many times method was called. An empty method
// counts every call.
func (c *Conn) CallCount(method string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	count := 0
	for _, call := range c.calls {
		if method == "" || call.Method == method {
			count++
		}
	}
	return count
}

// ResetCalls forgets recorded calls.
func (c *Conn) ResetCalls() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = nil
}

// ActiveWatches returns the number of unreleased WatchUnit
// subscriptions for path.
func (c *Conn) ActiveWatches(path string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.watches[path] - c.releases[path]
}

// Releases returns how many WatchUnit subscriptions for path were
// released.
func (c *Conn) Releases(path string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.releases[path]
}

// Emit queues a signal for Signals.
func (c *Conn) Emit(signal systemd.Signal) {
	c.signals <- signal
}

// EmitPropertiesChanged queues a Unit-interface PropertiesChanged
// signal for path with the given string-valued keys.
func (c *Conn) EmitPropertiesChanged(path string, changed map[string]any) {
	body := make(map[string]godbus.Variant, len(changed))
	for name, value := range changed {
		body[name] = godbus.MakeVariant(value)
	}
	iface, properties, err := systemd.DecodePropertiesChanged([]any{systemd.UnitIface, body, []string{}})
	if err != nil {
		panic(fmt.Sprintf("systemdtest: building PropertiesChanged: %v", err))
	}
	c.Emit(systemd.Signal{
		Kind:      systemd.SignalPropertiesChanged,
		Path:      path,
		Interface: iface,
		Changed:   properties,
	})
}

// EmitReloading queues a Reloading signal.
func (c *Conn) EmitReloading(starting bool) {
	c.Emit(systemd.Signal{Kind: systemd.SignalReloading, Path: systemd.ManagerPath, Starting: starting})
}

// record logs a call and returns the injected failure for it, if any.
func (c *Conn) record(method string, args ...any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, Call{Method: method, Args: args})
	return c.failures[method]
}

func (c *Conn) GetProperty(_ context.Context, path, iface, name string) (any, error) {
	if err := c.record("GetProperty", path, iface, name); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	value, ok := c.properties[path][iface+"."+name]
	if !ok {
		return nil, godbus.Error{
			Name: "org.freedesktop.DBus.Error.UnknownProperty",
			Body: []any{fmt.Sprintf("Unknown property %s.%s", iface, name)},
		}
	}
	return value, nil
}

func (c *Conn) ListUnits(context.Context) ([]systemd.UnitStatus, error) {
	if err := c.record("ListUnits"); err != nil {
		return nil, err
	}
	return c.Units(), nil
}

func (c *Conn) GetUnitFileState(_ context.Context, unitName string) (string, error) {
	if err := c.record("GetUnitFileState", unitName); err != nil {
		return "", err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fileStates[unitName], nil
}

func (c *Conn) Subscribe(context.Context) error   { return c.record("Subscribe") }
func (c *Conn) Unsubscribe(context.Context) error { return c.record("Unsubscribe") }

func (c *Conn) WatchReloading(context.Context) error { return c.record("WatchReloading") }

func (c *Conn) WatchUnit(_ context.Context, path string) (unit.Subscription, error) {
	if err := c.record("WatchUnit", path); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.watches[path]++
	return &subscription{conn: c, path: path}, nil
}

func (c *Conn) StartUnit(_ context.Context, unitName, mode string) error {
	return c.record("StartUnit", unitName, mode)
}

func (c *Conn) StopUnit(_ context.Context, unitName, mode string) error {
	return c.record("StopUnit", unitName, mode)
}

func (c *Conn) RestartUnit(_ context.Context, unitName, mode string) error {
	return c.record("RestartUnit", unitName, mode)
}

func (c *Conn) ReloadUnit(_ context.Context, unitName, mode string) error {
	return c.record("ReloadUnit", unitName, mode)
}

func (c *Conn) EnableUnitFiles(_ context.Context, files []string, runtime, force bool) error {
	return c.record("EnableUnitFiles", slices.Clone(files), runtime, force)
}

func (c *Conn) MaskUnitFiles(_ context.Context, files []string, runtime, force bool) error {
	return c.record("MaskUnitFiles", slices.Clone(files), runtime, force)
}

func (c *Conn) DisableUnitFiles(_ context.Context, files []string, runtime bool) error {
	return c.record("DisableUnitFiles", slices.Clone(files), runtime)
}

func (c *Conn) UnmaskUnitFiles(_ context.Context, files []string, runtime bool) error {
	return c.record("UnmaskUnitFiles", slices.Clone(files), runtime)
}

func (c *Conn) Signals() <-chan systemd.Signal { return c.signals }

// Close closes the signal channel. Later calls are no-ops.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.signals)
	}
	return nil
}

type subscription struct {
	conn *Conn
	path string
}

func (s *subscription) Release() {
	s.conn.mu.Lock()
	defer s.conn.mu.Unlock()
	s.conn.releases[s.path]++
}

// Unit returns a loaded, active, running ListUnits entry. Tests adjust
// the fields they care about.
func Unit(name, path string) systemd.UnitStatus {
	return systemd.UnitStatus{
		Name:        name,
		Description: name,
		LoadState:   "loaded",
		ActiveState: "active",
		SubState:    "running",
		ObjectPath:  path,
	}
}
