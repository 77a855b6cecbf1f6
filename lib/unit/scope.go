// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package unit

import "fmt"

// Scope selects one of the two independent unit namespaces.
type Scope int

const (
	ScopeSystem Scope = iota
	ScopeUser
)

// Scopes lists every scope in display order.
var Scopes = []Scope{ScopeSystem, ScopeUser}

// String returns "system" or "user".
func (s Scope) String() string {
	switch s {
	case ScopeSystem:
		return "system"
	case ScopeUser:
		return "user"
	default:
		return fmt.Sprintf("scope(%d)", int(s))
	}
}

// Label returns the uppercase header label.
func (s Scope) Label() string {
	switch s {
	case ScopeSystem:
		return "SYSTEM"
	case ScopeUser:
		return "USER"
	default:
		return s.String()
	}
}

// Other returns the opposite scope.
func (s Scope) Other() Scope {
	if s == ScopeSystem {
		return ScopeUser
	}
	return ScopeSystem
}

// ParseScope maps "system" or "user" to a Scope.
func ParseScope(name string) (Scope, error) {
	switch name {
	case "system":
		return ScopeSystem, nil
	case "user":
		return ScopeUser, nil
	default:
		return ScopeSystem, fmt.Errorf("unknown scope %q (expected system or user)", name)
	}
}
