// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package process

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// ErrUsage marks errors caused by bad command-line input. Fatal exits
// with status 2 for them, 1 for everything else.
var ErrUsage = errors.New("usage error")

// Fatal writes "servicemaster: err" to stderr and exits. A nil err
// exits 0.
func Fatal(err error) {
	os.Exit(report(os.Stderr, err))
}

// report writes err to w and returns the exit status for it.
func report(w io.Writer, err error) int {
	if err == nil {
		return 0
	}
	fmt.Fprintf(w, "servicemaster: %v\n", err)
	if errors.Is(err, ErrUsage) {
		return 2
	}
	return 1
}
