// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package dispatch turns an operator action on a unit into the matching
// systemd manager call.
//
// Lifecycle operations (start, stop, restart, reload) take the unit
// name and the "replace" job mode. Unit-file operations (enable,
// disable, mask, unmask) take a one-element file list with runtime
// false, plus force true for enable and mask. None of these are
// operator-tunable.
//
// System-scope operations by an unprivileged user are refused before
// any bus traffic. After a successful unit-file operation the unit's
// file state is refreshed so the registry shows the change without
// waiting for the next bulk sync.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"golang.org/x/sys/unix"

	"github.com/bureau-foundation/servicemaster/lib/clock"
	"github.com/bureau-foundation/servicemaster/lib/systemd"
	"github.com/bureau-foundation/servicemaster/lib/unit"
)

var (
	// ErrPrivilegeRequired is returned for system-scope operations
	// attempted without root.
	ErrPrivilegeRequired = errors.New("privilege required")

	// ErrUnknownUnit is returned when the target is not registered.
	ErrUnknownUnit = errors.New("unknown unit")

	// ErrInvalidOperation is returned for out-of-range operations.
	ErrInvalidOperation = errors.New("invalid operation")
)

// Operator-facing messages.
const (
	PrivilegeMessage = "You must be root for this operation on system units. Press space to toggle: System/User."
	FailureMessage   = "Command could not be executed on this unit."
)

// CommandError is a daemon rejection of a dispatched operation. Error
// returns the daemon's message unchanged.
type CommandError struct {
	Operation Operation
	Unit      string
	Err       error
}

func (e *CommandError) Error() string { return e.Err.Error() }

func (e *CommandError) Unwrap() error { return e.Err }

// OutcomeKind classifies a dispatch result.
type OutcomeKind int

const (
	OutcomeSucceeded OutcomeKind = iota
	OutcomePrivilegeRequired
	OutcomeFailed
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSucceeded:
		return "succeeded"
	case OutcomePrivilegeRequired:
		return "privilege-required"
	case OutcomeFailed:
		return "failed"
	default:
		return fmt.Sprintf("outcome(%d)", int(k))
	}
}

// Outcome is the result of one Dispatch.
type Outcome struct {
	Kind      OutcomeKind
	Operation Operation
	Scope     unit.Scope
	Unit      string

	// Dirty lists units whose displayed state changed as a direct
	// result of the operation (the unit-file state refresh).
	Dirty []string

	Err error
}

// Message returns the text shown to the operator.
func (o Outcome) Message() string {
	switch o.Kind {
	case OutcomeSucceeded:
		return fmt.Sprintf("%s %s.", o.Operation.Verb(), o.Unit)
	case OutcomePrivilegeRequired:
		return PrivilegeMessage
	default:
		var commandError *CommandError
		if errors.As(o.Err, &commandError) {
			return FailureMessage + "\n" + commandError.Error()
		}
		return FailureMessage
	}
}

// Dispatcher issues operator commands.
type Dispatcher struct {
	// Privileged reports whether the caller may operate on system
	// units. Defaults to an effective-UID-is-zero check.
	Privileged func() bool

	// Logger receives refresh diagnostics. Defaults to discard.
	Logger *slog.Logger

	// CallTimeout bounds each bus call. Zero means no extra bound.
	CallTimeout time.Duration

	// Clock stamps records touched by a file state refresh. Share the
	// engine's clock so stamps stay comparable. Defaults to
	// clock.Real().
	Clock clock.Clock
}

// IsRoot reports whether the process runs with effective UID 0.
func IsRoot() bool { return unix.Geteuid() == 0 }

// Dispatch performs op on the named unit in scope's registry.
func (d *Dispatcher) Dispatch(ctx context.Context, scope unit.Scope, conn systemd.Conn, registry *unit.Registry, unitName string, op Operation) Outcome {
	outcome := Outcome{Kind: OutcomeFailed, Operation: op, Scope: scope, Unit: unitName}

	if !op.Valid() {
		outcome.Err = fmt.Errorf("%s: %w", op, ErrInvalidOperation)
		return outcome
	}
	if scope == unit.ScopeSystem && !d.privileged() {
		outcome.Kind = OutcomePrivilegeRequired
		outcome.Err = fmt.Errorf("%s %s: %w", op, unitName, ErrPrivilegeRequired)
		return outcome
	}
	record := registry.FindByName(unitName)
	if record == nil {
		outcome.Err = fmt.Errorf("%s %s: %w", op, unitName, ErrUnknownUnit)
		return outcome
	}

	if err := d.call(ctx, conn, op, record.Unit); err != nil {
		outcome.Err = &CommandError{Operation: op, Unit: record.Unit, Err: err}
		d.logger().Info("command rejected",
			"scope", scope.String(), "unit", record.Unit, "operation", op.String(), "error", err)
		return outcome
	}
	outcome.Kind = OutcomeSucceeded

	if op.FileOperation() {
		if d.refreshFileState(ctx, scope, conn, record) {
			outcome.Dirty = []string{record.Unit}
		}
	}
	return outcome
}

// call issues the bus call for op.
func (d *Dispatcher) call(ctx context.Context, conn systemd.Conn, op Operation, name string) error {
	ctx, cancel := d.callContext(ctx)
	defer cancel()

	files := []string{name}
	switch op {
	case Start:
		return conn.StartUnit(ctx, name, systemd.ModeReplace)
	case Stop:
		return conn.StopUnit(ctx, name, systemd.ModeReplace)
	case Restart:
		return conn.RestartUnit(ctx, name, systemd.ModeReplace)
	case Reload:
		return conn.ReloadUnit(ctx, name, systemd.ModeReplace)
	case Enable:
		return conn.EnableUnitFiles(ctx, files, false, true)
	case Mask:
		return conn.MaskUnitFiles(ctx, files, false, true)
	case Disable:
		return conn.DisableUnitFiles(ctx, files, false)
	case Unmask:
		return conn.UnmaskUnitFiles(ctx, files, false)
	default:
		return fmt.Errorf("%s: %w", op, ErrInvalidOperation)
	}
}

// refreshFileState re-reads the unit's file state after a unit-file
// operation and reports whether it changed. A successful read stamps
// the record like a sync touch. Failures are logged; the operation
// itself already succeeded.
func (d *Dispatcher) refreshFileState(ctx context.Context, scope unit.Scope, conn systemd.Conn, record *unit.Record) bool {
	ctx, cancel := d.callContext(ctx)
	defer cancel()

	state, err := conn.GetUnitFileState(ctx, record.Unit)
	if err != nil {
		level := slog.LevelWarn
		if errors.Is(err, systemd.ErrNoSuchFile) {
			level = slog.LevelDebug
		}
		d.logger().Log(ctx, level, "refreshing unit file state",
			"scope", scope.String(), "unit", record.Unit, "error", err)
		return false
	}
	record.LastUpdate = d.clock().Monotonic()
	if state == record.UnitFileState {
		return false
	}
	record.UnitFileState = state
	record.ChangedCount++
	return true
}

func (d *Dispatcher) privileged() bool {
	if d.Privileged == nil {
		return IsRoot()
	}
	return d.Privileged()
}

func (d *Dispatcher) clock() clock.Clock {
	if d.Clock == nil {
		return clock.Real()
	}
	return d.Clock
}

func (d *Dispatcher) logger() *slog.Logger {
	if d.Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return d.Logger
}

func (d *Dispatcher) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if d.CallTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d.CallTimeout)
}
