// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/bureau-foundation/servicemaster/lib/clock"
	"github.com/bureau-foundation/servicemaster/lib/systemd"
	"github.com/bureau-foundation/servicemaster/lib/unit"
)

// ErrAlreadyAttached is returned by Attach for a scope that already
// has a connection.
var ErrAlreadyAttached = errors.New("scope already attached")

// ErrNotAttached is returned for operations on a scope with no
// connection.
var ErrNotAttached = errors.New("scope not attached")

// State is a scope's synchronization state.
type State int

const (
	StateIdle State = iota
	StateBulkSyncing
	StateReloading
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateBulkSyncing:
		return "bulk-syncing"
	case StateReloading:
		return "reloading"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Event is one inbound signal tagged with the scope whose connection
// delivered it.
type Event struct {
	Scope  unit.Scope
	Signal systemd.Signal
}

// Result tells the renderer what an engine operation changed.
type Result struct {
	Scope unit.Scope

	// Dirty lists units whose interesting fields changed and which
	// should be redrawn highlighted.
	Dirty []string

	// Removed lists units pruned from the registry.
	Removed []string

	// Erase is set when a pruned unit was on screen, so the display
	// must be cleared before repainting.
	Erase bool

	// Repaint is set when the whole displayed list must be redrawn.
	Repaint bool

	// Stale reports that the scope is no longer updating.
	Stale bool

	Err error
}

// Changed reports whether the renderer has anything to do.
func (r Result) Changed() bool {
	return len(r.Dirty) > 0 || len(r.Removed) > 0 || r.Erase || r.Repaint || r.Stale
}

// Config holds the engine's collaborators.
type Config struct {
	// Clock stamps records. Defaults to clock.Real().
	Clock clock.Clock

	// Logger receives sync diagnostics. Defaults to a discard logger.
	Logger *slog.Logger

	// CallTimeout bounds each bus call. Zero means no per-call bound
	// beyond the caller's context.
	CallTimeout time.Duration
}

// Engine synchronizes registries for the attached scopes.
type Engine struct {
	clock       clock.Clock
	logger      *slog.Logger
	callTimeout time.Duration

	scopes    map[unit.Scope]*scopeState
	displayed unit.Scope
}

type scopeState struct {
	scope    unit.Scope
	conn     systemd.Conn
	registry *unit.Registry
	state    State
	stale    bool

	// lastStamp is the newest timestamp handed to any record in this
	// scope. Each bulk sync starts strictly after it so that a prune
	// never spares a record the sync did not touch.
	lastStamp uint64
}

// New returns an engine with no scopes attached. The displayed scope
// starts as system.
func New(config Config) *Engine {
	if config.Clock == nil {
		config.Clock = clock.Real()
	}
	if config.Logger == nil {
		config.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Engine{
		clock:       config.Clock,
		logger:      config.Logger,
		callTimeout: config.CallTimeout,
		scopes:      make(map[unit.Scope]*scopeState),
		displayed:   unit.ScopeSystem,
	}
}

// Attach takes ownership of conn for scope, subscribes to unit and
// reload signals, and runs the initial bulk sync. On failure the scope
// is left attached but stale, and the error is returned; other scopes
// are unaffected.
func (e *Engine) Attach(ctx context.Context, scope unit.Scope, conn systemd.Conn) (Result, error) {
	if _, exists := e.scopes[scope]; exists {
		return Result{Scope: scope}, fmt.Errorf("attaching %s: %w", scope, ErrAlreadyAttached)
	}
	state := &scopeState{
		scope:    scope,
		conn:     conn,
		registry: unit.NewRegistry(scope),
	}
	e.scopes[scope] = state

	callCtx, cancel := e.callContext(ctx)
	err := conn.Subscribe(callCtx)
	cancel()
	if err != nil {
		return e.degrade(state, fmt.Errorf("subscribing to %s manager: %w", scope, err))
	}

	callCtx, cancel = e.callContext(ctx)
	err = conn.WatchReloading(callCtx)
	cancel()
	if err != nil {
		return e.degrade(state, fmt.Errorf("watching %s reloads: %w", scope, err))
	}

	return e.sync(ctx, state)
}

// Sync runs a bulk sync of scope. It is a no-op error for unattached
// scopes and for stale ones.
func (e *Engine) Sync(ctx context.Context, scope unit.Scope) (Result, error) {
	state, ok := e.scopes[scope]
	if !ok {
		return Result{Scope: scope}, fmt.Errorf("syncing %s: %w", scope, ErrNotAttached)
	}
	if state.stale {
		return Result{Scope: scope, Stale: true}, nil
	}
	return e.sync(ctx, state)
}

// sync merges one ListUnits reply into the scope's registry.
func (e *Engine) sync(ctx context.Context, state *scopeState) (Result, error) {
	state.state = StateBulkSyncing
	defer func() { state.state = StateIdle }()

	start := e.clock.Monotonic()
	if start <= state.lastStamp {
		start = state.lastStamp + 1
	}
	state.lastStamp = start

	callCtx, cancel := e.callContext(ctx)
	units, err := state.conn.ListUnits(callCtx)
	cancel()
	if err != nil {
		return e.degrade(state, fmt.Errorf("listing %s units: %w", state.scope, err))
	}

	registry := state.registry
	for _, status := range units {
		record := registry.FindByName(status.Name)
		isNew := record == nil
		if isNew {
			record = unit.NewRecord(status.Name)
		}

		changes := 0
		if record.LoadState != status.LoadState {
			changes++
		}
		if record.ActiveState != status.ActiveState {
			changes++
		}
		if record.SubState != status.SubState {
			changes++
		}

		callCtx, cancel := e.callContext(ctx)
		fileState, err := systemd.FetchUnitFileState(callCtx, state.conn, status.ObjectPath)
		cancel()
		if err != nil {
			e.logger.Debug("unit file state unavailable",
				"scope", state.scope.String(), "unit", status.Name, "error", err)
		} else {
			if record.UnitFileState != fileState {
				changes++
			}
			record.UnitFileState = fileState
		}

		record.LoadState = status.LoadState
		record.ActiveState = status.ActiveState
		record.SubState = status.SubState
		record.Description = status.Description
		record.ChangedCount += changes
		record.LastUpdate = start

		if !isNew && record.ObjectPath == status.ObjectPath {
			continue
		}

		// New records and records whose object path moved both need a
		// watch on the path the daemon now reports.
		callCtx, cancel = e.callContext(ctx)
		subscription, err := state.conn.WatchUnit(callCtx, status.ObjectPath)
		cancel()
		if err != nil {
			return e.degrade(state, fmt.Errorf("watching %s unit %s: %w", state.scope, status.Name, err))
		}
		if !isNew {
			registry.Relocate(record, status.ObjectPath, subscription)
			continue
		}
		record.ObjectPath = status.ObjectPath
		record.Attach(subscription)
		if err := registry.InsertSorted(record); err != nil {
			// Only reachable if the daemon lists one name twice.
			e.logger.Warn("skipping unit", "scope", state.scope.String(), "unit", status.Name, "error", err)
			record.Release()
		}
	}

	removed, erase := registry.Prune(start)
	dirty := registry.Dirty()
	for _, name := range dirty {
		registry.Acknowledge(name)
	}

	e.logger.Debug("bulk sync complete",
		"scope", state.scope.String(),
		"units", registry.Len(),
		"dirty", len(dirty),
		"removed", len(removed),
	)
	return Result{
		Scope:   state.scope,
		Dirty:   dirty,
		Removed: removed,
		Erase:   erase,
	}, nil
}

// degrade marks a scope stale and reports err.
func (e *Engine) degrade(state *scopeState, err error) (Result, error) {
	state.stale = true
	state.state = StateIdle
	e.logger.Error("scope no longer updating", "scope", state.scope.String(), "error", err)
	return Result{Scope: state.scope, Stale: true, Erase: true, Repaint: true, Err: err}, err
}

// Step applies one inbound signal. This is the only path by which
// signals mutate registries.
func (e *Engine) Step(ctx context.Context, event Event) Result {
	state, ok := e.scopes[event.Scope]
	if !ok {
		e.logger.Debug("signal for unattached scope", "scope", event.Scope.String())
		return Result{Scope: event.Scope}
	}
	if state.stale {
		return Result{Scope: event.Scope, Stale: true}
	}

	switch event.Signal.Kind {
	case systemd.SignalPropertiesChanged:
		return e.applyProperties(state, event.Signal)
	case systemd.SignalReloading:
		return e.applyReloading(ctx, state, event.Signal.Starting)
	default:
		return Result{Scope: event.Scope}
	}
}

// applyProperties merges ActiveState and SubState from a
// PropertiesChanged signal. Every other key is skipped.
func (e *Engine) applyProperties(state *scopeState, signal systemd.Signal) Result {
	result := Result{Scope: state.scope}
	if signal.Interface != systemd.UnitIface {
		return result
	}
	record := state.registry.FindByPath(signal.Path)
	if record == nil {
		return result
	}

	applied := false
	for _, property := range signal.Changed {
		var field *string
		switch property.Name {
		case "ActiveState":
			field = &record.ActiveState
		case "SubState":
			field = &record.SubState
		default:
			continue
		}
		value, err := systemd.DecodeString(signal.Interface, property.Name, property.Value)
		if err != nil {
			e.logger.Warn("skipping property", "scope", state.scope.String(), "unit", record.Unit, "error", err)
			continue
		}
		*field = value
		record.ChangedCount++
		record.LastUpdate = e.stamp(state)
		applied = true
	}
	if applied {
		result.Dirty = []string{record.Unit}
	}
	return result
}

// applyReloading handles both edges of the manager's Reloading signal.
// A starting edge while already reloading changes nothing. A finished
// edge always syncs, whether or not its starting edge was seen.
func (e *Engine) applyReloading(ctx context.Context, state *scopeState, starting bool) Result {
	if starting {
		state.state = StateReloading
		return Result{Scope: state.scope}
	}
	result, err := e.sync(ctx, state)
	if err != nil {
		return result
	}
	result.Repaint = state.scope == e.displayed
	return result
}

// stamp returns a timestamp for a push update, never behind one
// already handed out in this scope.
func (e *Engine) stamp(state *scopeState) uint64 {
	now := e.clock.Monotonic()
	if now < state.lastStamp {
		now = state.lastStamp
	}
	state.lastStamp = now
	return now
}

func (e *Engine) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.callTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, e.callTimeout)
}

// SetDisplayed records which scope the UI is showing. Reload repaints
// are only requested for that scope.
func (e *Engine) SetDisplayed(scope unit.Scope) { e.displayed = scope }

// Displayed returns the scope the UI is showing.
func (e *Engine) Displayed() unit.Scope { return e.displayed }

// Registry returns scope's registry, or nil if it is not attached.
func (e *Engine) Registry(scope unit.Scope) *unit.Registry {
	if state, ok := e.scopes[scope]; ok {
		return state.registry
	}
	return nil
}

// Conn returns scope's connection, or nil if it is not attached.
func (e *Engine) Conn(scope unit.Scope) systemd.Conn {
	if state, ok := e.scopes[scope]; ok {
		return state.conn
	}
	return nil
}

// State returns scope's synchronization state.
func (e *Engine) State(scope unit.Scope) State {
	if state, ok := e.scopes[scope]; ok {
		return state.state
	}
	return StateIdle
}

// Stale reports whether scope has stopped updating.
func (e *Engine) Stale(scope unit.Scope) bool {
	if state, ok := e.scopes[scope]; ok {
		return state.stale
	}
	return false
}

// Scopes returns the attached scopes in display order.
func (e *Engine) Scopes() []unit.Scope {
	var scopes []unit.Scope
	for _, scope := range unit.Scopes {
		if _, ok := e.scopes[scope]; ok {
			scopes = append(scopes, scope)
		}
	}
	return scopes
}

// Close releases every subscription, unsubscribes from the manager and
// closes every connection. Errors are joined.
func (e *Engine) Close(ctx context.Context) error {
	var errs []error
	for _, scope := range e.Scopes() {
		state := e.scopes[scope]
		state.registry.Close()
		if !state.stale {
			callCtx, cancel := e.callContext(ctx)
			if err := state.conn.Unsubscribe(callCtx); err != nil {
				e.logger.Debug("unsubscribing", "scope", scope.String(), "error", err)
			}
			cancel()
		}
		if err := state.conn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing %s connection: %w", scope, err))
		}
		delete(e.scopes, scope)
	}
	return errors.Join(errs...)
}
