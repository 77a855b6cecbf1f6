// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package dispatch

import "fmt"

// Operation is an operator action on one unit.
type Operation int

const (
	Start Operation = iota
	Stop
	Restart
	Enable
	Disable
	Mask
	Unmask
	Reload

	operationCount
)

var operationInfo = [operationCount]struct {
	name   string
	method string
	verb   string
	file   bool
}{
	Start:   {"start", "StartUnit", "Started", false},
	Stop:    {"stop", "StopUnit", "Stopped", false},
	Restart: {"restart", "RestartUnit", "Restarted", false},
	Enable:  {"enable", "EnableUnitFiles", "Enabled", true},
	Disable: {"disable", "DisableUnitFiles", "Disabled", true},
	Mask:    {"mask", "MaskUnitFiles", "Masked", true},
	Unmask:  {"unmask", "UnmaskUnitFiles", "Unmasked", true},
	Reload:  {"reload", "ReloadUnit", "Reloaded", false},
}

// Operations lists every operation in function-key order (F1..F8).
func Operations() []Operation {
	return []Operation{Start, Stop, Restart, Enable, Disable, Mask, Unmask, Reload}
}

// Valid reports whether op is a known operation.
func (op Operation) Valid() bool {
	return op >= 0 && op < operationCount
}

// String returns the lowercase command name ("start").
func (op Operation) String() string {
	if !op.Valid() {
		return fmt.Sprintf("operation(%d)", int(op))
	}
	return operationInfo[op].name
}

// Method returns the Manager method the operation calls.
func (op Operation) Method() string {
	if !op.Valid() {
		return ""
	}
	return operationInfo[op].method
}

// Verb returns the past-tense verb used in success messages.
func (op Operation) Verb() string {
	if !op.Valid() {
		return ""
	}
	return operationInfo[op].verb
}

// FileOperation reports whether op changes unit-file enablement rather
// than the unit's runtime state.
func (op Operation) FileOperation() bool {
	return op.Valid() && operationInfo[op].file
}

// ParseOperation maps a command name to an Operation.
func ParseOperation(name string) (Operation, error) {
	for op := Start; op < operationCount; op++ {
		if operationInfo[op].name == name {
			return op, nil
		}
	}
	return 0, fmt.Errorf("unknown operation %q", name)
}
