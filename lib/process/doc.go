// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package process holds the binary's exit path: reporting an error to
// stderr before (or after) the structured logger exists, and choosing
// the exit status. It is the one place outside command-line output
// that writes to stderr directly.
package process
