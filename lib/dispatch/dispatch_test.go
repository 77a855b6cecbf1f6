// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package dispatch

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"
	"time"

	godbus "github.com/godbus/dbus/v5"

	"github.com/bureau-foundation/servicemaster/lib/clock"
	"github.com/bureau-foundation/servicemaster/lib/systemd"
	"github.com/bureau-foundation/servicemaster/lib/systemd/systemdtest"
	"github.com/bureau-foundation/servicemaster/lib/unit"
)

type stubSubscription struct{}

func (stubSubscription) Release() {}

func registryWith(t *testing.T, scope unit.Scope, names ...string) *unit.Registry {
	t.Helper()
	registry := unit.NewRegistry(scope)
	for index, name := range names {
		record := unit.NewRecord(name)
		record.ObjectPath = fmt.Sprintf("/o/%d", index)
		record.Attach(stubSubscription{})
		if err := registry.InsertSorted(record); err != nil {
			t.Fatalf("InsertSorted: %v", err)
		}
	}
	return registry
}

func privileged(value bool) func() bool { return func() bool { return value } }

func TestEnableOnSystemUnitUnprivilegedIssuesNoCalls(t *testing.T) {
	conn := systemdtest.New()
	registry := registryWith(t, unit.ScopeSystem, "foo.service")
	dispatcher := &Dispatcher{Privileged: privileged(false)}

	outcome := dispatcher.Dispatch(context.Background(), unit.ScopeSystem, conn, registry, "foo.service", Enable)
	if outcome.Kind != OutcomePrivilegeRequired {
		t.Fatalf("Kind = %v, want privilege-required", outcome.Kind)
	}
	if !errors.Is(outcome.Err, ErrPrivilegeRequired) {
		t.Fatalf("Err = %v", outcome.Err)
	}
	if got := conn.CallCount(""); got != 0 {
		t.Fatalf("bus calls = %d, want 0", got)
	}
	if outcome.Message() != PrivilegeMessage {
		t.Fatalf("Message = %q", outcome.Message())
	}
}

func TestUserScopeNeedsNoPrivilege(t *testing.T) {
	conn := systemdtest.New()
	registry := registryWith(t, unit.ScopeUser, "foo.service")
	dispatcher := &Dispatcher{Privileged: privileged(false)}

	outcome := dispatcher.Dispatch(context.Background(), unit.ScopeUser, conn, registry, "foo.service", Start)
	if outcome.Kind != OutcomeSucceeded {
		t.Fatalf("outcome = %+v", outcome)
	}
}

func TestCallShapes(t *testing.T) {
	tests := []struct {
		op   Operation
		want systemdtest.Call
	}{
		{Start, systemdtest.Call{Method: "StartUnit", Args: []any{"foo.service", "replace"}}},
		{Stop, systemdtest.Call{Method: "StopUnit", Args: []any{"foo.service", "replace"}}},
		{Restart, systemdtest.Call{Method: "RestartUnit", Args: []any{"foo.service", "replace"}}},
		{Reload, systemdtest.Call{Method: "ReloadUnit", Args: []any{"foo.service", "replace"}}},
		{Enable, systemdtest.Call{Method: "EnableUnitFiles", Args: []any{[]string{"foo.service"}, false, true}}},
		{Mask, systemdtest.Call{Method: "MaskUnitFiles", Args: []any{[]string{"foo.service"}, false, true}}},
		{Disable, systemdtest.Call{Method: "DisableUnitFiles", Args: []any{[]string{"foo.service"}, false}}},
		{Unmask, systemdtest.Call{Method: "UnmaskUnitFiles", Args: []any{[]string{"foo.service"}, false}}},
	}
	for _, test := range tests {
		t.Run(test.op.String(), func(t *testing.T) {
			conn := systemdtest.New()
			registry := registryWith(t, unit.ScopeSystem, "foo.service")
			dispatcher := &Dispatcher{Privileged: privileged(true)}

			outcome := dispatcher.Dispatch(context.Background(), unit.ScopeSystem, conn, registry, "foo.service", test.op)
			if outcome.Kind != OutcomeSucceeded {
				t.Fatalf("outcome = %+v", outcome)
			}
			calls := conn.Calls()
			if len(calls) == 0 || !reflect.DeepEqual(calls[0], test.want) {
				t.Fatalf("first call = %+v, want %+v", calls, test.want)
			}
			if test.op.Method() != test.want.Method {
				t.Fatalf("Method() = %q", test.op.Method())
			}

			refreshed := conn.CallCount("GetUnitFileState") == 1
			if refreshed != test.op.FileOperation() {
				t.Fatalf("GetUnitFileState refresh = %v for %s", refreshed, test.op)
			}
		})
	}
}

func TestFileOperationRefreshMarksDirty(t *testing.T) {
	conn := systemdtest.New()
	conn.SetUnitFileState("foo.service", "enabled")
	registry := registryWith(t, unit.ScopeSystem, "foo.service")
	record := registry.FindByName("foo.service")
	record.UnitFileState = "disabled"
	fake := clock.Fake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	fake.Advance(time.Second)
	dispatcher := &Dispatcher{Privileged: privileged(true), Clock: fake}

	outcome := dispatcher.Dispatch(context.Background(), unit.ScopeSystem, conn, registry, "foo.service", Enable)
	if outcome.Kind != OutcomeSucceeded {
		t.Fatalf("outcome = %+v", outcome)
	}
	if record.UnitFileState != "enabled" || record.ChangedCount != 1 {
		t.Fatalf("record = %q/%d", record.UnitFileState, record.ChangedCount)
	}
	if record.LastUpdate != fake.Monotonic() || record.LastUpdate == 0 {
		t.Fatalf("LastUpdate = %d, want %d", record.LastUpdate, fake.Monotonic())
	}
	if !reflect.DeepEqual(outcome.Dirty, []string{"foo.service"}) {
		t.Fatalf("Dirty = %v", outcome.Dirty)
	}

	// Same state again: no change reported.
	outcome = dispatcher.Dispatch(context.Background(), unit.ScopeSystem, conn, registry, "foo.service", Enable)
	if len(outcome.Dirty) != 0 || record.ChangedCount != 1 {
		t.Fatalf("unchanged refresh reported dirty: %+v", outcome)
	}
}

func TestRefreshFailureKeepsSuccess(t *testing.T) {
	conn := systemdtest.New()
	conn.Fail("GetUnitFileState", &systemd.CallError{
		Method: "GetUnitFileState",
		Name:   "System.Error.ENOLINK",
		Err:    errors.New("Link has been severed"),
	})
	registry := registryWith(t, unit.ScopeUser, "foo.service")
	record := registry.FindByName("foo.service")
	record.UnitFileState = "linked"
	dispatcher := &Dispatcher{}

	outcome := dispatcher.Dispatch(context.Background(), unit.ScopeUser, conn, registry, "foo.service", Disable)
	if outcome.Kind != OutcomeSucceeded || outcome.Err != nil {
		t.Fatalf("outcome = %+v", outcome)
	}
	if record.UnitFileState != "linked" {
		t.Fatalf("UnitFileState = %q, want previous", record.UnitFileState)
	}
}

func TestDaemonErrorSurfacedVerbatim(t *testing.T) {
	conn := systemdtest.New()
	daemonMessage := "Unit foo.service has a bad unit file setting."
	conn.Fail("StartUnit", godbus.Error{
		Name: "org.freedesktop.systemd1.BadUnitSetting",
		Body: []any{daemonMessage},
	})
	registry := registryWith(t, unit.ScopeUser, "foo.service")
	dispatcher := &Dispatcher{}

	outcome := dispatcher.Dispatch(context.Background(), unit.ScopeUser, conn, registry, "foo.service", Start)
	if outcome.Kind != OutcomeFailed {
		t.Fatalf("Kind = %v", outcome.Kind)
	}
	var commandError *CommandError
	if !errors.As(outcome.Err, &commandError) {
		t.Fatalf("Err = %#v, want CommandError", outcome.Err)
	}
	if commandError.Error() != daemonMessage {
		t.Fatalf("Error() = %q, want %q", commandError.Error(), daemonMessage)
	}
	if !strings.HasPrefix(outcome.Message(), FailureMessage) || !strings.Contains(outcome.Message(), daemonMessage) {
		t.Fatalf("Message = %q", outcome.Message())
	}
}

func TestUnknownUnitAndInvalidOperation(t *testing.T) {
	conn := systemdtest.New()
	registry := registryWith(t, unit.ScopeUser, "foo.service")
	dispatcher := &Dispatcher{}

	outcome := dispatcher.Dispatch(context.Background(), unit.ScopeUser, conn, registry, "missing.service", Stop)
	if !errors.Is(outcome.Err, ErrUnknownUnit) || outcome.Kind != OutcomeFailed {
		t.Fatalf("outcome = %+v", outcome)
	}
	outcome = dispatcher.Dispatch(context.Background(), unit.ScopeUser, conn, registry, "foo.service", Operation(42))
	if !errors.Is(outcome.Err, ErrInvalidOperation) {
		t.Fatalf("outcome = %+v", outcome)
	}
	if conn.CallCount("") != 0 {
		t.Fatalf("bus calls = %d", conn.CallCount(""))
	}
}

func TestOperationNames(t *testing.T) {
	for _, op := range Operations() {
		parsed, err := ParseOperation(op.String())
		if err != nil || parsed != op {
			t.Errorf("ParseOperation(%q) = %v, %v", op.String(), parsed, err)
		}
		if op.Verb() == "" || op.Method() == "" {
			t.Errorf("%s lacks verb or method", op)
		}
	}
	if _, err := ParseOperation("explode"); err == nil {
		t.Error("ParseOperation(explode) succeeded")
	}
	if Operation(-1).Valid() {
		t.Error("Operation(-1) valid")
	}
	outcome := Outcome{Kind: OutcomeSucceeded, Operation: Restart, Unit: "foo.service"}
	if outcome.Message() != "Restarted foo.service." {
		t.Errorf("Message = %q", outcome.Message())
	}
}
