// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tui

import (
	"time"
)

// HeatDecayDuration is how long a row glows after a change. Heat
// starts at 1.0 and decays linearly to 0.0 over this duration.
const HeatDecayDuration = 3 * time.Second

// HeatTickInterval is the re-render interval while any row is hot.
const HeatTickInterval = 100 * time.Millisecond

// HeatKind selects the glow color.
type HeatKind int

const (
	// HeatChange marks a unit whose state changed (amber glow).
	HeatChange HeatKind = iota
	// HeatRemove marks a unit that left the registry (red glow).
	HeatRemove
)

type heatEntry struct {
	ignition time.Time
	kind     HeatKind
}

// HeatTracker maps unit names to ignition times for change glow.
type HeatTracker struct {
	entries map[string]heatEntry
}

// NewHeatTracker creates an empty heat tracker.
func NewHeatTracker() *HeatTracker {
	return &HeatTracker{entries: make(map[string]heatEntry)}
}

// Ignite (re)starts the glow for name.
func (tracker *HeatTracker) Ignite(name string, kind HeatKind, now time.Time) {
	tracker.entries[name] = heatEntry{ignition: now, kind: kind}
}

// IgniteAll ignites every name with the same kind and time.
func (tracker *HeatTracker) IgniteAll(names []string, kind HeatKind, now time.Time) {
	for _, name := range names {
		tracker.Ignite(name, kind, now)
	}
}

// Heat returns name's intensity: 1.0 at ignition decaying to 0.0.
func (tracker *HeatTracker) Heat(name string, now time.Time) float64 {
	entry, exists := tracker.entries[name]
	if !exists {
		return 0.0
	}
	elapsed := now.Sub(entry.ignition)
	if elapsed < 0 {
		return 1.0
	}
	if elapsed >= HeatDecayDuration {
		return 0.0
	}
	return 1.0 - float64(elapsed)/float64(HeatDecayDuration)
}

// Kind returns name's heat kind. Only meaningful while Heat > 0.
func (tracker *HeatTracker) Kind(name string) HeatKind {
	return tracker.entries[name].kind
}

// HasHot reports whether any row still glows, dropping entries that
// have fully decayed.
func (tracker *HeatTracker) HasHot(now time.Time) bool {
	hot := false
	for name, entry := range tracker.entries {
		if now.Sub(entry.ignition) < HeatDecayDuration {
			hot = true
			continue
		}
		delete(tracker.entries, name)
	}
	return hot
}

// Forget drops name immediately.
func (tracker *HeatTracker) Forget(name string) {
	delete(tracker.entries, name)
}
