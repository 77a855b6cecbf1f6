// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides YAML configuration loading for servicemaster.
//
// Configuration comes from at most one file, named by either the
// SERVICEMASTER_CONFIG environment variable (via [Load]) or the
// --config flag (via [LoadFile]). Without either, [Default] applies.
// There is no automatic file search.
//
// Variable expansion is performed on path fields after loading:
// ${HOME}, ${XDG_STATE_HOME} and ${VAR:-default} patterns are
// expanded. Durations are written as Go duration strings ("5s").
//
// Command-line flags override file values; that merge happens in the
// command, not here.
package config
