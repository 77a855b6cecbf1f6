// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package systemd

import (
	"cmp"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"slices"

	godbus "github.com/godbus/dbus/v5"

	"github.com/bureau-foundation/servicemaster/lib/unit"
)

// invocationIDLength is the byte length of a systemd invocation ID.
const invocationIDLength = 16

// String fetches and decodes one string property.
func String(ctx context.Context, getter PropertyGetter, path, iface, name string) (string, error) {
	value, err := getter.GetProperty(ctx, path, iface, name)
	if err != nil {
		return "", err
	}
	return DecodeString(iface, name, value)
}

// Uint64 fetches and decodes one 't' property.
func Uint64(ctx context.Context, getter PropertyGetter, path, iface, name string) (uint64, error) {
	value, err := getter.GetProperty(ctx, path, iface, name)
	if err != nil {
		return 0, err
	}
	decoded, ok := value.(uint64)
	if !ok {
		return 0, &DecodeError{Interface: iface, Property: name, Want: "uint64", Got: value}
	}
	return decoded, nil
}

// Uint32 fetches and decodes one 'u' property.
func Uint32(ctx context.Context, getter PropertyGetter, path, iface, name string) (uint32, error) {
	value, err := getter.GetProperty(ctx, path, iface, name)
	if err != nil {
		return 0, err
	}
	decoded, ok := value.(uint32)
	if !ok {
		return 0, &DecodeError{Interface: iface, Property: name, Want: "uint32", Got: value}
	}
	return decoded, nil
}

// Bytes fetches and decodes one 'ay' property.
func Bytes(ctx context.Context, getter PropertyGetter, path, iface, name string) ([]byte, error) {
	value, err := getter.GetProperty(ctx, path, iface, name)
	if err != nil {
		return nil, err
	}
	decoded, ok := value.([]byte)
	if !ok {
		return nil, &DecodeError{Interface: iface, Property: name, Want: "[]byte", Got: value}
	}
	return decoded, nil
}

// DecodeString unwraps a string value, including one still wrapped in
// a variant.
func DecodeString(iface, name string, value any) (string, error) {
	if variant, ok := value.(godbus.Variant); ok {
		value = variant.Value()
	}
	decoded, ok := value.(string)
	if !ok {
		return "", &DecodeError{Interface: iface, Property: name, Want: "string", Got: value}
	}
	return decoded, nil
}

// InvocationID hex-encodes a 16-byte invocation ID. Any other length
// means the unit has none, and yields [unit.ZeroInvocationID].
func InvocationID(raw []byte) string {
	if len(raw) != invocationIDLength {
		return unit.ZeroInvocationID
	}
	return hex.EncodeToString(raw)
}

// FetchInvocationID reads a unit's InvocationID. A fetch or decode
// failure is returned alongside the zero sentinel.
func FetchInvocationID(ctx context.Context, getter PropertyGetter, path string) (string, error) {
	raw, err := Bytes(ctx, getter, path, UnitIface, "InvocationID")
	if err != nil {
		return unit.ZeroInvocationID, err
	}
	return InvocationID(raw), nil
}

// FetchUnitFileState reads the UnitFileState property from the Unit
// interface of the object at path.
func FetchUnitFileState(ctx context.Context, getter PropertyGetter, path string) (string, error) {
	return String(ctx, getter, path, UnitIface, "UnitFileState")
}

// DetailsInterface returns the type-specific interface FetchDetails
// reads for t, or "" when the type has no extended properties.
func DetailsInterface(t unit.Type) string {
	switch t {
	case unit.TypeService:
		return ServiceIface
	case unit.TypeDevice:
		return DeviceIface
	case unit.TypeMount:
		return MountIface
	case unit.TypeTimer:
		return TimerIface
	case unit.TypeSocket:
		return SocketIface
	default:
		return ""
	}
}

// FetchDetails fills the on-demand fields of record: InvocationID,
// FragmentPath, and the extended properties of the one interface
// selected by record.Type. A property that fails to fetch or decode
// leaves its field untouched; every such failure is collected into
// the returned error and the remaining properties are still read.
func FetchDetails(ctx context.Context, getter PropertyGetter, record *unit.Record) error {
	fetcher := detailFetcher{ctx: ctx, getter: getter, path: record.ObjectPath}

	if id, err := FetchInvocationID(ctx, getter, record.ObjectPath); err != nil {
		fetcher.errs = append(fetcher.errs, err)
	} else {
		record.InvocationID = id
	}
	fetcher.str(UnitIface, "FragmentPath", &record.FragmentPath)

	iface := DetailsInterface(record.Type)
	switch record.Type {
	case unit.TypeService:
		service := &record.Service
		fetcher.u64(iface, "ExecMainStartTimestamp", &service.ExecMainStartTimestamp)
		fetcher.u32(iface, "ExecMainPID", &service.MainPID)
		fetcher.u64(iface, "TasksCurrent", &service.TasksCurrent)
		fetcher.u64(iface, "TasksMax", &service.TasksMax)
		fetcher.u64(iface, "MemoryCurrent", &service.MemoryCurrent)
		fetcher.u64(iface, "MemoryPeak", &service.MemoryPeak)
		fetcher.u64(iface, "MemorySwapCurrent", &service.MemorySwapCurrent)
		fetcher.u64(iface, "MemorySwapPeak", &service.MemorySwapPeak)
		fetcher.u64(iface, "MemoryZSwapCurrent", &service.MemoryZSwapCurrent)
		fetcher.u64(iface, "CPUUsageNSec", &service.CPUUsageNSec)
		fetcher.str(iface, "ControlGroup", &record.ControlGroup)
	case unit.TypeDevice:
		fetcher.str(iface, "SysFSPath", &record.Device.SysFSPath)
	case unit.TypeMount:
		fetcher.str(iface, "Where", &record.Mount.Where)
		fetcher.str(iface, "What", &record.Mount.What)
	case unit.TypeTimer:
		fetcher.u64(iface, "NextElapseUSecRealtime", &record.Timer.NextElapseUSecRealtime)
	case unit.TypeSocket:
		fetcher.str(iface, "BindIPv6Only", &record.Socket.BindIPv6Only)
		fetcher.u32(iface, "Backlog", &record.Socket.Backlog)
	}

	if len(fetcher.errs) > 0 {
		return fmt.Errorf("fetching details for %s: %w", record.Unit, errors.Join(fetcher.errs...))
	}
	return nil
}

// detailFetcher reads properties into fields, collecting failures.
type detailFetcher struct {
	ctx    context.Context
	getter PropertyGetter
	path   string
	errs   []error
}

func (f *detailFetcher) str(iface, name string, field *string) {
	value, err := String(f.ctx, f.getter, f.path, iface, name)
	if err != nil {
		f.errs = append(f.errs, err)
		return
	}
	*field = value
}

func (f *detailFetcher) u64(iface, name string, field *uint64) {
	value, err := Uint64(f.ctx, f.getter, f.path, iface, name)
	if err != nil {
		f.errs = append(f.errs, err)
		return
	}
	*field = value
}

func (f *detailFetcher) u32(iface, name string, field *uint32) {
	value, err := Uint32(f.ctx, f.getter, f.path, iface, name)
	if err != nil {
		f.errs = append(f.errs, err)
		return
	}
	*field = value
}

// DecodePropertiesChanged decodes the sa{sv}as body of a
// PropertiesChanged signal into the interface name and the changed
// properties sorted by name. The invalidated list is ignored.
func DecodePropertiesChanged(body []any) (string, []Property, error) {
	if len(body) < 2 {
		return "", nil, fmt.Errorf("decoding PropertiesChanged: body has %d fields, want 3", len(body))
	}
	iface, ok := body[0].(string)
	if !ok {
		return "", nil, fmt.Errorf("decoding PropertiesChanged: interface is %T, want string", body[0])
	}
	changed, ok := body[1].(map[string]godbus.Variant)
	if !ok {
		return "", nil, fmt.Errorf("decoding PropertiesChanged: changed set is %T, want a{sv}", body[1])
	}

	properties := make([]Property, 0, len(changed))
	for name, variant := range changed {
		properties = append(properties, Property{Name: name, Value: variant.Value()})
	}
	slices.SortFunc(properties, func(a, b Property) int {
		return cmp.Compare(a.Name, b.Name)
	})
	return iface, properties, nil
}

// DecodeReloading decodes the single boolean of a Reloading signal.
func DecodeReloading(body []any) (bool, error) {
	if len(body) != 1 {
		return false, fmt.Errorf("decoding Reloading: body has %d fields, want 1", len(body))
	}
	starting, ok := body[0].(bool)
	if !ok {
		return false, fmt.Errorf("decoding Reloading: argument is %T, want bool", body[0])
	}
	return starting, nil
}
