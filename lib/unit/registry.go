// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package unit

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicateUnit is returned when inserting a unit name that is
	// already present.
	ErrDuplicateUnit = errors.New("unit already registered")

	// ErrNotLive is returned when inserting a record whose
	// subscription is missing or released.
	ErrNotLive = errors.New("unit has no live subscription")
)

// Registry is the ordered set of records for one scope.
type Registry struct {
	scope   Scope
	records []*Record
	byName  map[string]*Record
	byPath  map[string]*Record
	counts  [typeCount]int
}

// NewRegistry returns an empty registry for scope.
func NewRegistry(scope Scope) *Registry {
	return &Registry{
		scope:  scope,
		byName: make(map[string]*Record),
		byPath: make(map[string]*Record),
	}
}

// Scope returns the scope this registry mirrors.
func (r *Registry) Scope() Scope { return r.scope }

// InsertSorted adds record before the first existing record whose
// object path sorts strictly after it, or at the end. Records with
// equal paths keep insertion order.
func (r *Registry) InsertSorted(record *Record) error {
	if _, exists := r.byName[record.Unit]; exists {
		return fmt.Errorf("%s: %w", record.Unit, ErrDuplicateUnit)
	}
	if !record.Live() {
		return fmt.Errorf("%s: %w", record.Unit, ErrNotLive)
	}

	r.place(record)
	r.byName[record.Unit] = record
	if record.ObjectPath != "" {
		r.byPath[record.ObjectPath] = record
	}
	r.counts[TypeAll]++
	r.counts[record.Type]++
	return nil
}

// place inserts record into the ordered slice before the first record
// whose path sorts strictly after it.
func (r *Registry) place(record *Record) {
	position := len(r.records)
	for index, existing := range r.records {
		if existing.ObjectPath > record.ObjectPath {
			position = index
			break
		}
	}
	r.records = append(r.records, nil)
	copy(r.records[position+1:], r.records[position:])
	r.records[position] = record
}

// FindByName returns the record for the named unit, or nil.
func (r *Registry) FindByName(name string) *Record {
	return r.byName[name]
}

// FindByPath returns the record with the given object path, or nil.
func (r *Registry) FindByPath(path string) *Record {
	return r.byPath[path]
}

// FindByScreenRow returns the record the renderer placed on row, or
// nil. Only meaningful after the current layout pass assigned rows.
func (r *Registry) FindByScreenRow(row int) *Record {
	if row < 0 {
		return nil
	}
	for _, record := range r.records {
		if record.ScreenRow == row {
			return record
		}
	}
	return nil
}

// NthVisible returns the n-th (zero-based) record passing filter, or
// nil past the end.
func (r *Registry) NthVisible(n int, filter Type) *Record {
	if n < 0 {
		return nil
	}
	for _, record := range r.records {
		if !filter.Matches(record.Type) {
			continue
		}
		if n == 0 {
			return record
		}
		n--
	}
	return nil
}

// Prune removes every record whose LastUpdate is older than before,
// releasing its subscription. It returns the removed unit names and
// whether any of them was on screen, in which case the caller must
// erase the display before repainting.
func (r *Registry) Prune(before uint64) (removed []string, erase bool) {
	kept := r.records[:0]
	for _, record := range r.records {
		if record.LastUpdate >= before {
			kept = append(kept, record)
			continue
		}
		removed = append(removed, record.Unit)
		if record.Visible() {
			erase = true
		}
		r.forget(record)
	}
	clear(r.records[len(kept):])
	r.records = kept
	return removed, erase
}

// forget drops record from the indexes and counts and releases it. The
// caller removes it from the ordered slice.
func (r *Registry) forget(record *Record) {
	delete(r.byName, record.Unit)
	if r.byPath[record.ObjectPath] == record {
		delete(r.byPath, record.ObjectPath)
	}
	r.counts[TypeAll]--
	r.counts[record.Type]--
	record.Release()
}

// InvalidateScreenRows marks every record as off screen.
func (r *Registry) InvalidateScreenRows() {
	for _, record := range r.records {
		record.ScreenRow = -1
	}
}

// Count returns the number of records of type t. Count(TypeAll) is the
// total.
func (r *Registry) Count(t Type) int {
	if t < 0 || t >= typeCount {
		return 0
	}
	return r.counts[t]
}

// Len returns the number of records.
func (r *Registry) Len() int { return len(r.records) }

// Each calls fn for every record in order until fn returns false.
func (r *Registry) Each(fn func(*Record) bool) {
	for _, record := range r.records {
		if !fn(record) {
			return
		}
	}
}

// Dirty returns the names of records with pending changes, in order.
func (r *Registry) Dirty() []string {
	var names []string
	for _, record := range r.records {
		if record.ChangedCount > 0 {
			names = append(names, record.Unit)
		}
	}
	return names
}

// Acknowledge resets the named record's change counter after it has
// been redrawn. Unknown names are ignored.
func (r *Registry) Acknowledge(name string) {
	if record := r.byName[name]; record != nil {
		record.ChangedCount = 0
	}
}

// Close releases every subscription and empties the registry.
func (r *Registry) Close() {
	for _, record := range r.records {
		record.Release()
	}
	clear(r.records)
	r.records = nil
	clear(r.byName)
	clear(r.byPath)
	r.counts = [typeCount]int{}
}

// Relocate moves a registered record to a new object path. The
// subscription watching the old path is released and subscription,
// which must watch path, takes its place. systemd derives paths from
// unit names so this is rare, but a bulk sync copies whatever the
// daemon reports.
func (r *Registry) Relocate(record *Record, path string, subscription Subscription) {
	if record.ObjectPath == path {
		record.Attach(subscription)
		return
	}
	record.Resubscribe(subscription)
	if r.byName[record.Unit] != record {
		record.ObjectPath = path
		return
	}
	for index, existing := range r.records {
		if existing == record {
			r.records = append(r.records[:index], r.records[index+1:]...)
			break
		}
	}
	if r.byPath[record.ObjectPath] == record {
		delete(r.byPath, record.ObjectPath)
	}
	record.ObjectPath = path
	r.place(record)
	if path != "" {
		r.byPath[path] = record
	}
}
