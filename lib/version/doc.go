// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package version reports build information for --version.
//
// [GitCommit], [GitDirty] and [BuildTime] can be injected at build
// time via -ldflags -X. When they are not, the values recorded by the
// Go toolchain in the binary's build info (vcs.revision, vcs.modified,
// vcs.time) are used instead, so `go install` builds still identify
// their commit.
package version
