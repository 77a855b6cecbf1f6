// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"testing"
	"time"

	"github.com/bureau-foundation/servicemaster/lib/clock"
	"github.com/bureau-foundation/servicemaster/lib/systemd"
	"github.com/bureau-foundation/servicemaster/lib/systemd/systemdtest"
	"github.com/bureau-foundation/servicemaster/lib/unit"
)

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestEngine(t *testing.T) (*Engine, *clock.FakeClock) {
	t.Helper()
	fake := clock.Fake(epoch)
	return New(Config{Clock: fake}), fake
}

func attach(t *testing.T, engine *Engine, scope unit.Scope, conn *systemdtest.Conn) Result {
	t.Helper()
	result, err := engine.Attach(context.Background(), scope, conn)
	if err != nil {
		t.Fatalf("Attach(%s): %v", scope, err)
	}
	return result
}

func names(registry *unit.Registry) []string {
	var out []string
	registry.Each(func(record *unit.Record) bool {
		out = append(out, record.Unit)
		return true
	})
	return out
}

func propertiesChanged(scope unit.Scope, path, iface string, changed ...systemd.Property) Event {
	return Event{Scope: scope, Signal: systemd.Signal{
		Kind:      systemd.SignalPropertiesChanged,
		Path:      path,
		Interface: iface,
		Changed:   changed,
	}}
}

func reloading(scope unit.Scope, starting bool) Event {
	return Event{Scope: scope, Signal: systemd.Signal{Kind: systemd.SignalReloading, Starting: starting}}
}

func TestAttachSubscribesBeforeSync(t *testing.T) {
	engine, _ := newTestEngine(t)
	conn := systemdtest.New()
	conn.SetUnits(systemdtest.Unit("foo.service", "/o/1"))

	attach(t, engine, unit.ScopeSystem, conn)

	var methods []string
	for _, call := range conn.Calls() {
		if call.Method == "GetProperty" {
			continue
		}
		methods = append(methods, call.Method)
	}
	want := []string{"Subscribe", "WatchReloading", "ListUnits", "WatchUnit"}
	if !slices.Equal(methods, want) {
		t.Fatalf("calls = %v, want %v", methods, want)
	}
	if engine.State(unit.ScopeSystem) != StateIdle {
		t.Fatalf("State = %v after attach", engine.State(unit.ScopeSystem))
	}
}

func TestAttachTwiceFails(t *testing.T) {
	engine, _ := newTestEngine(t)
	attach(t, engine, unit.ScopeUser, systemdtest.New())
	_, err := engine.Attach(context.Background(), unit.ScopeUser, systemdtest.New())
	if !errors.Is(err, ErrAlreadyAttached) {
		t.Fatalf("err = %v, want ErrAlreadyAttached", err)
	}
}

func TestBulkSyncStampsEveryRecordWithStart(t *testing.T) {
	engine, fake := newTestEngine(t)
	conn := systemdtest.New()
	conn.SetUnits(
		systemdtest.Unit("a.service", "/o/a"),
		systemdtest.Unit("b.timer", "/o/b"),
		systemdtest.Unit("c.socket", "/o/c"),
	)
	attach(t, engine, unit.ScopeSystem, conn)

	fake.Advance(time.Second)
	start := fake.Monotonic()
	if _, err := engine.Sync(context.Background(), unit.ScopeSystem); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	engine.Registry(unit.ScopeSystem).Each(func(record *unit.Record) bool {
		if record.LastUpdate != start {
			t.Errorf("%s LastUpdate = %d, want %d", record.Unit, record.LastUpdate, start)
		}
		return true
	})
}

func TestBulkSyncIdempotent(t *testing.T) {
	engine, _ := newTestEngine(t)
	conn := systemdtest.New()
	conn.SetUnits(
		systemdtest.Unit("a.service", "/o/a"),
		systemdtest.Unit("b.service", "/o/b"),
	)
	conn.SetProperty("/o/a", systemd.UnitIface, "UnitFileState", "enabled")

	first := attach(t, engine, unit.ScopeSystem, conn)
	if len(first.Dirty) != 2 {
		t.Fatalf("first sync dirty = %v, want both units", first.Dirty)
	}

	second, err := engine.Sync(context.Background(), unit.ScopeSystem)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if len(second.Dirty) != 0 {
		t.Fatalf("second sync dirty = %v, want none", second.Dirty)
	}
	engine.Registry(unit.ScopeSystem).Each(func(record *unit.Record) bool {
		if record.ChangedCount != 0 {
			t.Errorf("%s ChangedCount = %d", record.Unit, record.ChangedCount)
		}
		return true
	})
}

func TestBulkSyncCountsInterestingChangesOnly(t *testing.T) {
	engine, _ := newTestEngine(t)
	conn := systemdtest.New()
	status := systemdtest.Unit("a.service", "/o/a")
	conn.SetUnits(status)
	attach(t, engine, unit.ScopeSystem, conn)

	status.Description = "a new description"
	conn.SetUnits(status)
	result, err := engine.Sync(context.Background(), unit.ScopeSystem)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if len(result.Dirty) != 0 {
		t.Fatalf("description change marked dirty: %v", result.Dirty)
	}
	record := engine.Registry(unit.ScopeSystem).FindByName("a.service")
	if record.Description != "a new description" {
		t.Fatalf("Description not copied: %q", record.Description)
	}

	status.ActiveState = "failed"
	status.SubState = "failed"
	conn.SetUnits(status)
	conn.SetProperty("/o/a", systemd.UnitIface, "UnitFileState", "disabled")
	result, err = engine.Sync(context.Background(), unit.ScopeSystem)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if !slices.Equal(result.Dirty, []string{"a.service"}) {
		t.Fatalf("Dirty = %v", result.Dirty)
	}
	if record.UnitFileState != "disabled" || record.ActiveState != "failed" {
		t.Fatalf("record = %+v", record)
	}
	if record.ChangedCount != 0 {
		t.Fatalf("ChangedCount = %d after report, want reset", record.ChangedCount)
	}
}

func TestBulkSyncUnitFileStateFailureKeepsPrevious(t *testing.T) {
	engine, _ := newTestEngine(t)
	conn := systemdtest.New()
	conn.SetUnits(systemdtest.Unit("a.service", "/o/a"), systemdtest.Unit("b.service", "/o/b"))
	conn.SetProperty("/o/a", systemd.UnitIface, "UnitFileState", "enabled")
	conn.SetProperty("/o/b", systemd.UnitIface, "UnitFileState", "static")
	attach(t, engine, unit.ScopeSystem, conn)

	conn.Fail("GetProperty", errors.New("timeout"))
	if _, err := engine.Sync(context.Background(), unit.ScopeSystem); err != nil {
		t.Fatalf("Sync with property failures: %v", err)
	}
	registry := engine.Registry(unit.ScopeSystem)
	if registry.Len() != 2 {
		t.Fatalf("Len = %d, want 2", registry.Len())
	}
	if got := registry.FindByName("a.service").UnitFileState; got != "enabled" {
		t.Errorf("a.service UnitFileState = %q, want previous value", got)
	}
	if got := registry.FindByName("b.service").UnitFileState; got != "static" {
		t.Errorf("b.service UnitFileState = %q, want previous value", got)
	}
}

func TestBulkSyncPrunesAbsentUnits(t *testing.T) {
	engine, _ := newTestEngine(t)
	conn := systemdtest.New()
	var all []systemd.UnitStatus
	for index := range 8 {
		all = append(all, systemdtest.Unit(fmt.Sprintf("u%d.service", index), fmt.Sprintf("/o/%d", index)))
	}
	conn.SetUnits(all...)
	attach(t, engine, unit.ScopeSystem, conn)

	// Drop three units.
	survivors := []systemd.UnitStatus{all[0], all[2], all[4], all[6], all[7]}
	conn.SetUnits(survivors...)
	result, err := engine.Sync(context.Background(), unit.ScopeSystem)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}

	registry := engine.Registry(unit.ScopeSystem)
	if registry.Len() != 5 {
		t.Fatalf("Len = %d, want 5", registry.Len())
	}
	slices.Sort(result.Removed)
	if want := []string{"u1.service", "u3.service", "u5.service"}; !slices.Equal(result.Removed, want) {
		t.Fatalf("Removed = %v, want %v", result.Removed, want)
	}
	for _, status := range survivors {
		record := registry.FindByName(status.Name)
		if record == nil || !record.Live() {
			t.Errorf("%s survivor missing or not live", status.Name)
		}
		if conn.ActiveWatches(status.ObjectPath) != 1 {
			t.Errorf("%s active watches = %d", status.Name, conn.ActiveWatches(status.ObjectPath))
		}
	}
	for _, path := range []string{"/o/1", "/o/3", "/o/5"} {
		if conn.Releases(path) != 1 {
			t.Errorf("%s releases = %d, want 1", path, conn.Releases(path))
		}
	}
	if registry.Count(unit.TypeService) != 5 {
		t.Errorf("Count(service) = %d", registry.Count(unit.TypeService))
	}
}

func TestBulkSyncErasesWhenVisibleUnitPruned(t *testing.T) {
	engine, _ := newTestEngine(t)
	conn := systemdtest.New()
	conn.SetUnits(systemdtest.Unit("a.service", "/o/a"), systemdtest.Unit("b.service", "/o/b"))
	attach(t, engine, unit.ScopeSystem, conn)

	engine.Registry(unit.ScopeSystem).FindByName("b.service").ScreenRow = 1
	conn.SetUnits(systemdtest.Unit("a.service", "/o/a"))
	result, err := engine.Sync(context.Background(), unit.ScopeSystem)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if !result.Erase {
		t.Fatal("Erase not set after pruning an on-screen unit")
	}
}

func TestBulkSyncRewatchesMovedUnit(t *testing.T) {
	engine, fake := newTestEngine(t)
	conn := systemdtest.New()
	conn.SetUnits(systemdtest.Unit("foo.service", "/o/1"), systemdtest.Unit("bar.service", "/o/2"))
	attach(t, engine, unit.ScopeSystem, conn)

	conn.SetUnits(systemdtest.Unit("foo.service", "/o/9"), systemdtest.Unit("bar.service", "/o/2"))
	fake.Advance(time.Second)
	if _, err := engine.Sync(context.Background(), unit.ScopeSystem); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	registry := engine.Registry(unit.ScopeSystem)
	record := registry.FindByPath("/o/9")
	if record == nil || record.Unit != "foo.service" || !record.Live() {
		t.Fatalf("FindByPath(/o/9) = %v", record)
	}
	if conn.ActiveWatches("/o/1") != 0 || conn.Releases("/o/1") != 1 {
		t.Errorf("watch on the old path still active")
	}
	if conn.ActiveWatches("/o/9") != 1 {
		t.Errorf("ActiveWatches(/o/9) = %d, want 1", conn.ActiveWatches("/o/9"))
	}
	if conn.ActiveWatches("/o/2") != 1 {
		t.Errorf("unmoved unit was rewatched: ActiveWatches(/o/2) = %d", conn.ActiveWatches("/o/2"))
	}
	if got := names(registry); !slices.Equal(got, []string{"bar.service", "foo.service"}) {
		t.Errorf("order = %v", got)
	}

	result := engine.Step(context.Background(), propertiesChanged(unit.ScopeSystem, "/o/9", systemd.UnitIface,
		systemd.Property{Name: "ActiveState", Value: "failed"}))
	if !slices.Equal(result.Dirty, []string{"foo.service"}) || record.ActiveState != "failed" {
		t.Fatalf("push update on the new path not applied: %+v", result)
	}
}

func TestSyncOrdersByObjectPath(t *testing.T) {
	engine, _ := newTestEngine(t)
	conn := systemdtest.New()
	conn.SetUnits(systemdtest.Unit("foo.service", "/o/1"), systemdtest.Unit("bar.service", "/o/0"))
	attach(t, engine, unit.ScopeSystem, conn)

	if got := names(engine.Registry(unit.ScopeSystem)); !slices.Equal(got, []string{"bar.service", "foo.service"}) {
		t.Fatalf("order = %v", got)
	}
}

func TestListUnitsFailureMakesScopeStale(t *testing.T) {
	engine, _ := newTestEngine(t)
	system := systemdtest.New()
	user := systemdtest.New()
	system.SetUnits(systemdtest.Unit("a.service", "/o/a"))
	user.SetUnits(systemdtest.Unit("b.service", "/u/b"))
	attach(t, engine, unit.ScopeSystem, system)
	attach(t, engine, unit.ScopeUser, user)

	system.Fail("ListUnits", errors.New("connection reset"))
	result, err := engine.Sync(context.Background(), unit.ScopeSystem)
	if err == nil || !result.Stale {
		t.Fatalf("Sync = %+v, %v; want stale error", result, err)
	}
	if !engine.Stale(unit.ScopeSystem) {
		t.Fatal("system scope not stale")
	}
	if engine.Stale(unit.ScopeUser) {
		t.Fatal("user scope went stale with system")
	}

	// A stale scope ignores signals and keeps its last contents.
	system.ResetCalls()
	step := engine.Step(context.Background(), propertiesChanged(unit.ScopeSystem, "/o/a", systemd.UnitIface,
		systemd.Property{Name: "ActiveState", Value: "failed"}))
	if !step.Stale || len(step.Dirty) != 0 {
		t.Fatalf("Step on stale scope = %+v", step)
	}
	engine.Step(context.Background(), reloading(unit.ScopeSystem, false))
	if system.CallCount("") != 0 {
		t.Fatalf("stale scope issued %d calls", system.CallCount(""))
	}
	if engine.Registry(unit.ScopeSystem).Len() != 1 {
		t.Fatal("stale scope lost its records")
	}
}

func TestWatchUnitFailureMakesScopeStale(t *testing.T) {
	engine, _ := newTestEngine(t)
	conn := systemdtest.New()
	conn.SetUnits(systemdtest.Unit("a.service", "/o/a"))
	conn.Fail("WatchUnit", errors.New("match limit reached"))

	_, err := engine.Attach(context.Background(), unit.ScopeSystem, conn)
	if err == nil {
		t.Fatal("Attach succeeded with failing WatchUnit")
	}
	if !engine.Stale(unit.ScopeSystem) {
		t.Fatal("scope not stale")
	}
	if engine.Registry(unit.ScopeSystem).Len() != 0 {
		t.Fatal("unsubscribed record was inserted")
	}
}

func TestSubscribeFailureMakesScopeStale(t *testing.T) {
	engine, _ := newTestEngine(t)
	conn := systemdtest.New()
	conn.Fail("Subscribe", errors.New("access denied"))

	result, err := engine.Attach(context.Background(), unit.ScopeUser, conn)
	if err == nil || !result.Stale {
		t.Fatalf("Attach = %+v, %v", result, err)
	}
	if conn.CallCount("ListUnits") != 0 {
		t.Fatal("listed units after failed subscribe")
	}
}

func TestPushUpdateAppliesActiveState(t *testing.T) {
	engine, fake := newTestEngine(t)
	conn := systemdtest.New()
	conn.SetUnits(systemdtest.Unit("foo.service", "/o/1"))
	attach(t, engine, unit.ScopeSystem, conn)
	record := engine.Registry(unit.ScopeSystem).FindByName("foo.service")
	before := record.LastUpdate

	fake.Advance(time.Second)
	result := engine.Step(context.Background(), propertiesChanged(unit.ScopeSystem, "/o/1", systemd.UnitIface,
		systemd.Property{Name: "ActiveState", Value: "failed"}))

	if record.ActiveState != "failed" {
		t.Errorf("ActiveState = %q", record.ActiveState)
	}
	if record.SubState != "running" {
		t.Errorf("SubState = %q, want unchanged", record.SubState)
	}
	if record.ChangedCount != 1 {
		t.Errorf("ChangedCount = %d, want 1", record.ChangedCount)
	}
	if record.LastUpdate <= before {
		t.Errorf("LastUpdate not refreshed")
	}
	if !slices.Equal(result.Dirty, []string{"foo.service"}) {
		t.Errorf("Dirty = %v", result.Dirty)
	}
}

func TestPushUpdateUnrecognizedKeysNoOp(t *testing.T) {
	engine, fake := newTestEngine(t)
	conn := systemdtest.New()
	conn.SetUnits(systemdtest.Unit("foo.service", "/o/1"))
	attach(t, engine, unit.ScopeSystem, conn)
	record := engine.Registry(unit.ScopeSystem).FindByName("foo.service")
	before := *record

	fake.Advance(time.Second)
	result := engine.Step(context.Background(), propertiesChanged(unit.ScopeSystem, "/o/1", systemd.UnitIface,
		systemd.Property{Name: "Job", Value: uint32(7)},
		systemd.Property{Name: "ActiveEnterTimestamp", Value: uint64(5)},
	))
	if record.ChangedCount != before.ChangedCount || record.LastUpdate != before.LastUpdate {
		t.Fatalf("record changed: count %d→%d, stamp %d→%d",
			before.ChangedCount, record.ChangedCount, before.LastUpdate, record.LastUpdate)
	}
	if result.Changed() {
		t.Fatalf("Result = %+v, want no change", result)
	}
}

func TestPushUpdateIgnoresOtherInterfacesAndUnknownPaths(t *testing.T) {
	engine, _ := newTestEngine(t)
	conn := systemdtest.New()
	conn.SetUnits(systemdtest.Unit("foo.service", "/o/1"))
	attach(t, engine, unit.ScopeSystem, conn)
	record := engine.Registry(unit.ScopeSystem).FindByName("foo.service")

	engine.Step(context.Background(), propertiesChanged(unit.ScopeSystem, "/o/1", systemd.ServiceIface,
		systemd.Property{Name: "ActiveState", Value: "failed"}))
	engine.Step(context.Background(), propertiesChanged(unit.ScopeSystem, "/o/9", systemd.UnitIface,
		systemd.Property{Name: "ActiveState", Value: "failed"}))
	engine.Step(context.Background(), propertiesChanged(unit.ScopeUser, "/o/1", systemd.UnitIface,
		systemd.Property{Name: "ActiveState", Value: "failed"}))

	if record.ActiveState != "active" || record.ChangedCount != 0 {
		t.Fatalf("record = %+v", record)
	}
}

func TestPushUpdateDecodeErrorSkipsKey(t *testing.T) {
	engine, _ := newTestEngine(t)
	conn := systemdtest.New()
	conn.SetUnits(systemdtest.Unit("foo.service", "/o/1"))
	attach(t, engine, unit.ScopeSystem, conn)
	record := engine.Registry(unit.ScopeSystem).FindByName("foo.service")

	result := engine.Step(context.Background(), propertiesChanged(unit.ScopeSystem, "/o/1", systemd.UnitIface,
		systemd.Property{Name: "ActiveState", Value: uint32(3)},
		systemd.Property{Name: "SubState", Value: "exited"},
	))
	if record.ActiveState != "active" {
		t.Errorf("ActiveState = %q, want untouched", record.ActiveState)
	}
	if record.SubState != "exited" || record.ChangedCount != 1 {
		t.Errorf("SubState = %q, ChangedCount = %d", record.SubState, record.ChangedCount)
	}
	if len(result.Dirty) != 1 {
		t.Errorf("Dirty = %v", result.Dirty)
	}
}

func TestPushUpdateCounterWaitsForAcknowledge(t *testing.T) {
	engine, _ := newTestEngine(t)
	conn := systemdtest.New()
	conn.SetUnits(systemdtest.Unit("foo.service", "/o/1"))
	attach(t, engine, unit.ScopeSystem, conn)
	registry := engine.Registry(unit.ScopeSystem)

	engine.Step(context.Background(), propertiesChanged(unit.ScopeSystem, "/o/1", systemd.UnitIface,
		systemd.Property{Name: "ActiveState", Value: "deactivating"},
		systemd.Property{Name: "SubState", Value: "stop-sigterm"},
	))
	if got := registry.FindByName("foo.service").ChangedCount; got != 2 {
		t.Fatalf("ChangedCount = %d, want 2", got)
	}
	registry.Acknowledge("foo.service")
	if len(registry.Dirty()) != 0 {
		t.Fatal("record still dirty after Acknowledge")
	}
}

func TestPushUpdatedRecordStillPrunedWhenAbsent(t *testing.T) {
	engine, _ := newTestEngine(t)
	conn := systemdtest.New()
	conn.SetUnits(systemdtest.Unit("foo.service", "/o/1"), systemdtest.Unit("bar.service", "/o/2"))
	attach(t, engine, unit.ScopeSystem, conn)

	// Same clock reading for the push and the following sync.
	engine.Step(context.Background(), propertiesChanged(unit.ScopeSystem, "/o/2", systemd.UnitIface,
		systemd.Property{Name: "ActiveState", Value: "inactive"}))
	conn.SetUnits(systemdtest.Unit("foo.service", "/o/1"))
	result, err := engine.Sync(context.Background(), unit.ScopeSystem)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if !slices.Equal(result.Removed, []string{"bar.service"}) {
		t.Fatalf("Removed = %v", result.Removed)
	}
}

func TestReloadStartingEdgeIsNoOp(t *testing.T) {
	engine, _ := newTestEngine(t)
	conn := systemdtest.New()
	conn.SetUnits(systemdtest.Unit("foo.service", "/o/1"))
	attach(t, engine, unit.ScopeSystem, conn)
	conn.ResetCalls()

	result := engine.Step(context.Background(), reloading(unit.ScopeSystem, true))
	if result.Changed() {
		t.Fatalf("starting edge result = %+v", result)
	}
	if engine.State(unit.ScopeSystem) != StateReloading {
		t.Fatalf("State = %v, want reloading", engine.State(unit.ScopeSystem))
	}
	engine.Step(context.Background(), reloading(unit.ScopeSystem, true))
	if conn.CallCount("") != 0 {
		t.Fatalf("starting edges issued %d calls", conn.CallCount(""))
	}
}

func TestReloadFinishedEdgeSyncsAndRepaintsDisplayed(t *testing.T) {
	engine, _ := newTestEngine(t)
	system := systemdtest.New()
	user := systemdtest.New()
	system.SetUnits(systemdtest.Unit("foo.service", "/o/1"))
	user.SetUnits(systemdtest.Unit("bar.service", "/u/1"))
	attach(t, engine, unit.ScopeSystem, system)
	attach(t, engine, unit.ScopeUser, user)
	engine.SetDisplayed(unit.ScopeSystem)

	system.SetUnits(systemdtest.Unit("foo.service", "/o/1"), systemdtest.Unit("new.timer", "/o/2"))
	engine.Step(context.Background(), reloading(unit.ScopeSystem, true))
	result := engine.Step(context.Background(), reloading(unit.ScopeSystem, false))
	if !result.Repaint {
		t.Error("displayed scope reload did not request repaint")
	}
	if engine.Registry(unit.ScopeSystem).FindByName("new.timer") == nil {
		t.Error("reload did not pick up new unit")
	}
	if engine.State(unit.ScopeSystem) != StateIdle {
		t.Errorf("State = %v after finished edge", engine.State(unit.ScopeSystem))
	}

	// Finished edge without a starting edge still syncs; the user
	// scope is not displayed so no repaint.
	user.ResetCalls()
	result = engine.Step(context.Background(), reloading(unit.ScopeUser, false))
	if result.Repaint {
		t.Error("hidden scope reload requested repaint")
	}
	if user.CallCount("ListUnits") != 1 {
		t.Errorf("ListUnits calls = %d, want 1", user.CallCount("ListUnits"))
	}
}

func TestScopesAndClose(t *testing.T) {
	engine, _ := newTestEngine(t)
	system := systemdtest.New()
	user := systemdtest.New()
	system.SetUnits(systemdtest.Unit("foo.service", "/o/1"))
	attach(t, engine, unit.ScopeUser, user)
	attach(t, engine, unit.ScopeSystem, system)

	if got := engine.Scopes(); !slices.Equal(got, []unit.Scope{unit.ScopeSystem, unit.ScopeUser}) {
		t.Fatalf("Scopes = %v", got)
	}
	if err := engine.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if system.Releases("/o/1") != 1 {
		t.Errorf("subscription releases = %d", system.Releases("/o/1"))
	}
	if system.CallCount("Unsubscribe") != 1 {
		t.Errorf("Unsubscribe calls = %d", system.CallCount("Unsubscribe"))
	}
	if _, open := <-system.Signals(); open {
		t.Error("connection not closed")
	}
	if len(engine.Scopes()) != 0 {
		t.Error("scopes remain after Close")
	}
}

func TestSyncUnattachedScope(t *testing.T) {
	engine, _ := newTestEngine(t)
	if _, err := engine.Sync(context.Background(), unit.ScopeUser); !errors.Is(err, ErrNotAttached) {
		t.Fatalf("err = %v, want ErrNotAttached", err)
	}
	if engine.Registry(unit.ScopeUser) != nil || engine.Conn(unit.ScopeUser) != nil {
		t.Fatal("unattached scope has a registry or conn")
	}
}
