// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package unit

import "strings"

// Type is the kind of a unit, derived from its name suffix. TypeAll is
// a filter value that matches every record; no record has it.
type Type int

const (
	TypeAll Type = iota
	TypeDevice
	TypeSlice
	TypeService
	TypeSocket
	TypeTarget
	TypeTimer
	TypeMount
	TypeScope
	TypeAutomount
	TypeSwap
	TypePath
	TypeSnapshot
	TypeUnknown

	typeCount
)

var typeNames = [typeCount]string{
	TypeAll:       "all",
	TypeDevice:    "device",
	TypeSlice:     "slice",
	TypeService:   "service",
	TypeSocket:    "socket",
	TypeTarget:    "target",
	TypeTimer:     "timer",
	TypeMount:     "mount",
	TypeScope:     "scope",
	TypeAutomount: "automount",
	TypeSwap:      "swap",
	TypePath:      "path",
	TypeSnapshot:  "snapshot",
	TypeUnknown:   "unknown",
}

// Mode-jump shortcuts, one letter per filterable type. Unknown has no
// shortcut; it is reachable only by cycling.
var typeKeys = [typeCount]rune{
	TypeAll:       'a',
	TypeDevice:    'd',
	TypeSlice:     'i',
	TypeService:   's',
	TypeSocket:    'o',
	TypeTarget:    't',
	TypeTimer:     'r',
	TypeMount:     'm',
	TypeScope:     'c',
	TypeAutomount: 'n',
	TypeSwap:      'w',
	TypePath:      'p',
	TypeSnapshot:  'h',
}

// String returns the lowercase suffix name ("service", "timer"). Out of
// range values render as "unknown".
func (t Type) String() string {
	if t < 0 || t >= typeCount {
		return typeNames[TypeUnknown]
	}
	return typeNames[t]
}

// Label returns the capitalized name used in headers ("Service").
func (t Type) Label() string {
	name := t.String()
	return strings.ToUpper(name[:1]) + name[1:]
}

// Key returns the single-letter mode shortcut for t, or 0 if none.
func (t Type) Key() rune {
	if t < 0 || t >= typeCount {
		return 0
	}
	return typeKeys[t]
}

// Next returns the type after t in display order, wrapping around.
func (t Type) Next() Type {
	return (t + 1 + typeCount) % typeCount
}

// Previous returns the type before t in display order, wrapping around.
func (t Type) Previous() Type {
	return (t - 1 + typeCount) % typeCount
}

// Matches reports whether a record of type recordType passes filter t.
func (t Type) Matches(recordType Type) bool {
	return t == TypeAll || t == recordType
}

// Types returns every Type in display order, TypeAll first.
func Types() []Type {
	types := make([]Type, 0, typeCount)
	for t := TypeAll; t < typeCount; t++ {
		types = append(types, t)
	}
	return types
}

// TypeForKey returns the type whose shortcut is key (case-insensitive).
func TypeForKey(key rune) (Type, bool) {
	if key >= 'A' && key <= 'Z' {
		key += 'a' - 'A'
	}
	for t, k := range typeKeys {
		if k != 0 && k == key {
			return Type(t), true
		}
	}
	return TypeUnknown, false
}

// ParseTypeName maps a type name ("service") to its Type. Used for
// configuration and flags; accepts every name String produces.
func ParseTypeName(name string) (Type, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for t, n := range typeNames {
		if n == name {
			return Type(t), true
		}
	}
	return TypeUnknown, false
}

// ParseType derives a unit's type from the suffix after the last dot
// in its name. A name with no dot, a leading dot as the only dot, or
// an unrecognized suffix yields TypeUnknown. Never yields TypeAll.
func ParseType(unitName string) Type {
	dot := strings.LastIndexByte(unitName, '.')
	if dot <= 0 {
		return TypeUnknown
	}
	suffix := unitName[dot+1:]
	for t := TypeDevice; t < TypeUnknown; t++ {
		if typeNames[t] == suffix {
			return t
		}
	}
	return TypeUnknown
}
