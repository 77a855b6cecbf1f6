// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package systemd is the boundary between servicemaster and the systemd
// manager on D-Bus.
//
// [Conn] is the whole surface the rest of the program uses: the bulk
// ListUnits call, per-unit property gets, lifecycle and unit-file
// calls, signal subscriptions, and a channel of decoded [Signal]
// values. [Dial] returns the real implementation for one scope; tests
// use the scripted fake in systemdtest.
//
// The real implementation holds two bus connections. Method calls that
// go-systemd wraps (ListUnits, StartUnit, EnableUnitFiles, ...) go
// through a github.com/coreos/go-systemd/v22/dbus connection. Signal
// matching, raw property gets and the Manager.Subscribe call go through
// a github.com/godbus/dbus/v5 connection, whose signals a forwarder
// goroutine decodes into [Signal] values in delivery order. The
// forwarder never touches registry state; it only translates.
//
// The property codec (String, Uint64, Uint32, Bytes, FetchDetails and
// friends) is pure: it takes anything with a GetProperty method and
// decodes exactly one typed value per call.
package systemd
