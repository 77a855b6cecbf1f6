// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package unit

// ZeroInvocationID is stored when a unit has no usable invocation ID.
// Journal lookups treat it as "no correlation possible".
const ZeroInvocationID = "00000000000000000000000000000000"

// Subscription is a live per-unit signal registration. Release tears
// it down; callers guarantee it is called at most once.
type Subscription interface {
	Release()
}

// Record is one managed unit as last seen from the daemon.
type Record struct {
	// Unit is the unit name. Immutable; the registry's primary key.
	Unit string

	LoadState   string
	ActiveState string
	SubState    string
	Description string

	// ObjectPath is the daemon-side handle and the sort key.
	ObjectPath string

	// Populated on demand (status view) or by targeted refreshes.
	FragmentPath  string
	UnitFileState string
	ControlGroup  string
	InvocationID  string

	// Type is derived from Unit once, at creation.
	Type Type

	// LastUpdate is the monotonic timestamp (microseconds) of the last
	// sync that touched this record.
	LastUpdate uint64

	// ChangedCount counts interesting changes since the renderer last
	// acknowledged this record.
	ChangedCount int

	// ScreenRow is the row the renderer placed this record on, or -1.
	ScreenRow int

	Service ServiceDetails
	Device  DeviceDetails
	Mount   MountDetails
	Timer   TimerDetails
	Socket  SocketDetails

	subscription Subscription
}

// ServiceDetails are the org.freedesktop.systemd1.Service properties
// shown in the status view.
type ServiceDetails struct {
	// ExecMainStartTimestamp is realtime microseconds since the epoch.
	ExecMainStartTimestamp uint64
	MainPID                uint32
	TasksCurrent           uint64
	TasksMax               uint64
	MemoryCurrent          uint64
	MemoryPeak             uint64
	MemorySwapCurrent      uint64
	MemorySwapPeak         uint64
	MemoryZSwapCurrent     uint64
	CPUUsageNSec           uint64
}

type DeviceDetails struct {
	SysFSPath string
}

type MountDetails struct {
	Where string
	What  string
}

type TimerDetails struct {
	// NextElapseUSecRealtime is realtime microseconds since the epoch.
	NextElapseUSecRealtime uint64
}

type SocketDetails struct {
	BindIPv6Only string
	Backlog      uint32
}

// NewRecord creates an unsubscribed record for the named unit.
func NewRecord(name string) *Record {
	return &Record{
		Unit:         name,
		Type:         ParseType(name),
		InvocationID: ZeroInvocationID,
		ScreenRow:    -1,
	}
}

// Attach hands ownership of subscription to the record. A record that
// already holds a live subscription releases the new one immediately
// and keeps the old.
func (r *Record) Attach(subscription Subscription) {
	if subscription == nil {
		return
	}
	if r.subscription != nil {
		subscription.Release()
		return
	}
	r.subscription = subscription
}

// Resubscribe releases the record's subscription, if any, and takes
// ownership of subscription in its place.
func (r *Record) Resubscribe(subscription Subscription) {
	r.Release()
	r.subscription = subscription
}

// Live reports whether the record holds an unreleased subscription.
func (r *Record) Live() bool {
	return r.subscription != nil
}

// Release cancels the record's subscription. Later calls are no-ops.
func (r *Record) Release() {
	if r.subscription == nil {
		return
	}
	subscription := r.subscription
	r.subscription = nil
	subscription.Release()
}

// Visible reports whether the renderer placed the record on screen in
// the current layout pass.
func (r *Record) Visible() bool {
	return r.ScreenRow >= 0
}

// DisplayState is the value shown in the STATE column: the unit-file
// state when known, otherwise the load state.
func (r *Record) DisplayState() string {
	if r.UnitFileState != "" {
		return r.UnitFileState
	}
	return r.LoadState
}
