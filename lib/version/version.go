// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Set via -ldflags at build time.
var (
	GitCommit = "unknown"
	GitDirty  = "false"
	BuildTime = "unknown"

	// Version is the semantic version, set manually for releases.
	Version = "0.1.0-dev"
)

// readBuildInfo is replaced in tests.
var readBuildInfo = debug.ReadBuildInfo

// build holds the effective values after the build-info fallback.
type build struct {
	commit string
	dirty  bool
	time   string
}

func current() build {
	result := build{commit: GitCommit, dirty: GitDirty == "true", time: BuildTime}
	info, ok := readBuildInfo()
	if !ok {
		return result
	}
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			if result.commit == "unknown" && setting.Value != "" {
				result.commit = shortRevision(setting.Value)
			}
		case "vcs.modified":
			if GitDirty == "false" && setting.Value == "true" {
				result.dirty = true
			}
		case "vcs.time":
			if result.time == "unknown" && setting.Value != "" {
				result.time = setting.Value
			}
		}
	}
	return result
}

func shortRevision(revision string) string {
	if len(revision) > 12 {
		return revision[:12]
	}
	return revision
}

// Info returns "version (commit[-dirty], time)" for --version.
func Info() string {
	b := current()
	dirty := ""
	if b.dirty {
		dirty = "-dirty"
	}
	return fmt.Sprintf("%s (%s%s, %s)", Version, b.commit, dirty, b.time)
}

// Full returns Info plus the Go version and platform.
func Full() string {
	return fmt.Sprintf("servicemaster %s\n  Go: %s\n  Platform: %s/%s",
		Info(), runtime.Version(), runtime.GOOS, runtime.GOARCH)
}
