// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package systemd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	sdbus "github.com/coreos/go-systemd/v22/dbus"
	godbus "github.com/godbus/dbus/v5"

	"github.com/bureau-foundation/servicemaster/lib/unit"
)

// signalBuffer bounds how far the forwarder may run ahead of the event
// loop before it blocks. The sequential handler queues behind it.
const signalBuffer = 256

// newSignalHandler returns the godbus signal handler for the signal
// connection. The default handler delivers from a fresh goroutine
// once the channel is full, which reorders signals; the sequential
// handler queues them in arrival order instead.
func newSignalHandler() godbus.SignalHandler {
	return godbus.NewSequentialSignalHandler()
}

// BusConn is the D-Bus implementation of [Conn] for one scope.
type BusConn struct {
	scope   unit.Scope
	logger  *slog.Logger
	manager *sdbus.Conn
	bus     *godbus.Conn

	raw     chan *godbus.Signal
	signals chan Signal
	done    chan struct{}
	stopped chan struct{}

	closeOnce sync.Once
	closeErr  error
}

var _ Conn = (*BusConn)(nil)

// Dial connects to the manager of scope: the system bus for
// [unit.ScopeSystem], the session bus for [unit.ScopeUser]. The user
// scope fails when no session bus is reachable; callers fall back to
// system-only mode.
func Dial(ctx context.Context, scope unit.Scope, logger *slog.Logger) (*BusConn, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	logger = logger.With("scope", scope.String())

	var (
		manager *sdbus.Conn
		bus     *godbus.Conn
		err     error
	)
	switch scope {
	case unit.ScopeSystem:
		manager, err = sdbus.NewSystemConnectionContext(ctx)
	case unit.ScopeUser:
		manager, err = sdbus.NewUserConnectionContext(ctx)
	default:
		return nil, fmt.Errorf("dialing %s: unsupported scope", scope)
	}
	if err != nil {
		return nil, fmt.Errorf("connecting to %s manager: %w", scope, err)
	}

	options := []godbus.ConnOption{
		godbus.WithContext(ctx),
		godbus.WithSignalHandler(newSignalHandler()),
	}
	switch scope {
	case unit.ScopeSystem:
		bus, err = godbus.ConnectSystemBus(options...)
	default:
		bus, err = godbus.ConnectSessionBus(options...)
	}
	if err != nil {
		manager.Close()
		return nil, fmt.Errorf("connecting to %s bus for signals: %w", scope, err)
	}

	conn := &BusConn{
		scope:   scope,
		logger:  logger,
		manager: manager,
		bus:     bus,
		raw:     make(chan *godbus.Signal, signalBuffer),
		signals: make(chan Signal, signalBuffer),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	bus.Signal(conn.raw)
	go conn.forward()
	return conn, nil
}

// Scope returns the scope this connection serves.
func (c *BusConn) Scope() unit.Scope { return c.scope }

// forward decodes raw bus signals into Signals, preserving order.
func (c *BusConn) forward() {
	defer close(c.stopped)
	defer close(c.signals)
	for {
		var raw *godbus.Signal
		select {
		case <-c.done:
			return
		case raw = <-c.raw:
		}
		if raw == nil {
			continue
		}
		signal, ok := c.translate(raw)
		if !ok {
			continue
		}
		select {
		case c.signals <- signal:
		case <-c.done:
			return
		}
	}
}

// translate converts one raw signal. Signals this program did not ask
// for, and malformed bodies, are dropped with a debug log.
func (c *BusConn) translate(raw *godbus.Signal) (Signal, bool) {
	switch raw.Name {
	case PropertiesIface + "." + propertiesChangedMember:
		iface, changed, err := DecodePropertiesChanged(raw.Body)
		if err != nil {
			c.logger.Debug("dropping malformed signal", "path", raw.Path, "error", err)
			return Signal{}, false
		}
		return Signal{
			Kind:      SignalPropertiesChanged,
			Path:      string(raw.Path),
			Interface: iface,
			Changed:   changed,
		}, true
	case ManagerIface + "." + reloadingMember:
		starting, err := DecodeReloading(raw.Body)
		if err != nil {
			c.logger.Debug("dropping malformed signal", "path", raw.Path, "error", err)
			return Signal{}, false
		}
		return Signal{Kind: SignalReloading, Path: string(raw.Path), Starting: starting}, true
	default:
		return Signal{}, false
	}
}

// Signals implements [Conn].
func (c *BusConn) Signals() <-chan Signal { return c.signals }

// GetProperty implements [PropertyGetter] with a raw
// org.freedesktop.DBus.Properties.Get call.
func (c *BusConn) GetProperty(ctx context.Context, path, iface, name string) (any, error) {
	var value godbus.Variant
	err := c.bus.Object(Destination, godbus.ObjectPath(path)).
		CallWithContext(ctx, PropertiesIface+".Get", 0, iface, name).
		Store(&value)
	if err != nil {
		return nil, callError("Get", fmt.Errorf("%s.%s on %s: %w", iface, name, path, err))
	}
	return value.Value(), nil
}

// ListUnits implements [Conn].
func (c *BusConn) ListUnits(ctx context.Context) ([]UnitStatus, error) {
	listed, err := c.manager.ListUnitsContext(ctx)
	if err != nil {
		return nil, callError("ListUnits", err)
	}
	units := make([]UnitStatus, len(listed))
	for index, status := range listed {
		units[index] = UnitStatus{
			Name:        status.Name,
			Description: status.Description,
			LoadState:   status.LoadState,
			ActiveState: status.ActiveState,
			SubState:    status.SubState,
			ObjectPath:  string(status.Path),
		}
	}
	return units, nil
}

// GetUnitFileState implements [Conn].
func (c *BusConn) GetUnitFileState(ctx context.Context, unitName string) (string, error) {
	var state string
	err := c.managerObject().
		CallWithContext(ctx, ManagerIface+".GetUnitFileState", 0, unitName).
		Store(&state)
	if err != nil {
		return "", callError("GetUnitFileState", err)
	}
	return state, nil
}

// Subscribe implements [Conn].
func (c *BusConn) Subscribe(ctx context.Context) error {
	return callError("Subscribe", c.managerObject().CallWithContext(ctx, ManagerIface+".Subscribe", 0).Err)
}

// Unsubscribe implements [Conn].
func (c *BusConn) Unsubscribe(ctx context.Context) error {
	return callError("Unsubscribe", c.managerObject().CallWithContext(ctx, ManagerIface+".Unsubscribe", 0).Err)
}

// WatchReloading implements [Conn].
func (c *BusConn) WatchReloading(ctx context.Context) error {
	err := c.bus.AddMatchSignalContext(ctx,
		godbus.WithMatchObjectPath(ManagerPath),
		godbus.WithMatchInterface(ManagerIface),
		godbus.WithMatchMember(reloadingMember),
	)
	return callError("AddMatch", err)
}

// WatchUnit implements [Conn].
func (c *BusConn) WatchUnit(ctx context.Context, path string) (unit.Subscription, error) {
	options := []godbus.MatchOption{
		godbus.WithMatchObjectPath(godbus.ObjectPath(path)),
		godbus.WithMatchInterface(PropertiesIface),
		godbus.WithMatchMember(propertiesChangedMember),
	}
	if err := c.bus.AddMatchSignalContext(ctx, options...); err != nil {
		return nil, callError("AddMatch", fmt.Errorf("watching %s: %w", path, err))
	}
	return &matchSubscription{bus: c.bus, path: path, options: options, logger: c.logger}, nil
}

// StartUnit implements [Conn].
func (c *BusConn) StartUnit(ctx context.Context, unitName, mode string) error {
	_, err := c.manager.StartUnitContext(ctx, unitName, mode, nil)
	return callError("StartUnit", err)
}

// StopUnit implements [Conn].
func (c *BusConn) StopUnit(ctx context.Context, unitName, mode string) error {
	_, err := c.manager.StopUnitContext(ctx, unitName, mode, nil)
	return callError("StopUnit", err)
}

// RestartUnit implements [Conn].
func (c *BusConn) RestartUnit(ctx context.Context, unitName, mode string) error {
	_, err := c.manager.RestartUnitContext(ctx, unitName, mode, nil)
	return callError("RestartUnit", err)
}

// ReloadUnit implements [Conn].
func (c *BusConn) ReloadUnit(ctx context.Context, unitName, mode string) error {
	_, err := c.manager.ReloadUnitContext(ctx, unitName, mode, nil)
	return callError("ReloadUnit", err)
}

// EnableUnitFiles implements [Conn].
func (c *BusConn) EnableUnitFiles(ctx context.Context, files []string, runtime, force bool) error {
	_, changes, err := c.manager.EnableUnitFilesContext(ctx, files, runtime, force)
	if err == nil {
		c.logger.Debug("enabled unit files", "files", files, "changes", len(changes))
	}
	return callError("EnableUnitFiles", err)
}

// MaskUnitFiles implements [Conn].
func (c *BusConn) MaskUnitFiles(ctx context.Context, files []string, runtime, force bool) error {
	changes, err := c.manager.MaskUnitFilesContext(ctx, files, runtime, force)
	if err == nil {
		c.logger.Debug("masked unit files", "files", files, "changes", len(changes))
	}
	return callError("MaskUnitFiles", err)
}

// DisableUnitFiles implements [Conn].
func (c *BusConn) DisableUnitFiles(ctx context.Context, files []string, runtime bool) error {
	changes, err := c.manager.DisableUnitFilesContext(ctx, files, runtime)
	if err == nil {
		c.logger.Debug("disabled unit files", "files", files, "changes", len(changes))
	}
	return callError("DisableUnitFiles", err)
}

// UnmaskUnitFiles implements [Conn].
func (c *BusConn) UnmaskUnitFiles(ctx context.Context, files []string, runtime bool) error {
	changes, err := c.manager.UnmaskUnitFilesContext(ctx, files, runtime)
	if err == nil {
		c.logger.Debug("unmasked unit files", "files", files, "changes", len(changes))
	}
	return callError("UnmaskUnitFiles", err)
}

// Close stops the forwarder and closes both bus connections. Safe to
// call more than once.
func (c *BusConn) Close() error {
	c.closeOnce.Do(func() {
		c.bus.RemoveSignal(c.raw)
		close(c.done)
		<-c.stopped
		c.manager.Close()
		c.closeErr = c.bus.Close()
	})
	return c.closeErr
}

func (c *BusConn) managerObject() godbus.BusObject {
	return c.bus.Object(Destination, ManagerPath)
}

// matchSubscription is one PropertiesChanged match rule.
type matchSubscription struct {
	bus     *godbus.Conn
	path    string
	options []godbus.MatchOption
	logger  *slog.Logger
}

// Release removes the match rule. A failure leaves at worst a stray
// rule whose signals no record will claim, so it is only logged.
func (s *matchSubscription) Release() {
	if err := s.bus.RemoveMatchSignal(s.options...); err != nil {
		s.logger.Debug("removing signal match", "path", s.path, "error", err)
	}
}
