// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package systemd

import (
	"errors"
	"fmt"

	godbus "github.com/godbus/dbus/v5"
)

// ErrNoSuchFile classifies GetUnitFileState failures for units with no
// unit file on disk or a dangling link. Callers treat these as "no
// state to show" rather than an operator-visible error.
var ErrNoSuchFile = errors.New("unit file not found")

// D-Bus error names the manager uses for ENOENT and ENOLINK.
var noSuchFileErrors = map[string]bool{
	"org.freedesktop.DBus.Error.FileNotFound": true,
	"org.freedesktop.systemd1.NoSuchUnit":     true,
	"System.Error.ENOENT":                     true,
	"System.Error.ENOLINK":                    true,
}

// DecodeError reports a property whose variant did not hold the
// expected type.
type DecodeError struct {
	Interface string
	Property  string
	Want      string
	Got       any
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decoding %s.%s: want %s, got %T", e.Interface, e.Property, e.Want, e.Got)
}

// CallError wraps a failed bus call. Error returns the daemon's message
// unchanged so it can be shown to the operator verbatim; Method and
// Name are available for logging.
type CallError struct {
	Method string
	// Name is the D-Bus error name, empty for transport failures.
	Name string
	Err  error
}

func (e *CallError) Error() string { return e.Err.Error() }

func (e *CallError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrNoSuchFile) match manager replies that
// mean ENOENT or ENOLINK.
func (e *CallError) Is(target error) bool {
	return target == ErrNoSuchFile && noSuchFileErrors[e.Name]
}

// callError wraps err from method. nil stays nil.
func callError(method string, err error) error {
	if err == nil {
		return nil
	}
	wrapped := &CallError{Method: method, Err: err}
	var busError godbus.Error
	if errors.As(err, &busError) {
		wrapped.Name = busError.Name
	}
	var busErrorPointer *godbus.Error
	if errors.As(err, &busErrorPointer) {
		wrapped.Name = busErrorPointer.Name
	}
	return wrapped
}
