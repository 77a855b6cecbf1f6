// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/charmbracelet/x/ansi"
	"github.com/muesli/termenv"

	"github.com/bureau-foundation/servicemaster/lib/clock"
	"github.com/bureau-foundation/servicemaster/lib/config"
	"github.com/bureau-foundation/servicemaster/lib/engine"
	"github.com/bureau-foundation/servicemaster/lib/systemd"
	"github.com/bureau-foundation/servicemaster/lib/unit"
)

// runList bulk-syncs the configured scope once and prints its units.
func runList(ctx context.Context, cfg *config.Config, stdout io.Writer, logger *slog.Logger) error {
	scope := cfg.ScopeValue()
	conn, err := systemd.Dial(ctx, scope, logger)
	if err != nil {
		return err
	}

	syncEngine := engine.New(engine.Config{
		Clock:       clock.Real(),
		Logger:      logger,
		CallTimeout: cfg.CallTimeoutValue(),
	})
	defer syncEngine.Close(context.Background())

	if _, err := syncEngine.Attach(ctx, scope, conn); err != nil {
		return err
	}

	output := termenv.NewOutput(stdout)
	writeList(stdout, output, syncEngine.Registry(scope), cfg.ModeValue())
	return nil
}

// writeList prints one line per record passing mode, in registry
// order. ActiveState is colored when output supports it.
func writeList(w io.Writer, output *termenv.Output, registry *unit.Registry, mode unit.Type) {
	for n := 0; ; n++ {
		record := registry.NthVisible(n, mode)
		if record == nil {
			return
		}
		active := fmt.Sprintf("%-10s", record.ActiveState)
		if color := activeColor(record.ActiveState); color != "" {
			active = output.String(active).Foreground(output.Color(color)).String()
		}
		fmt.Fprintf(w, "%-40s %-9s %s %-10s %s\n",
			record.Unit,
			ansi.Truncate(record.DisplayState(), 9, ""),
			active,
			record.SubState,
			record.Description,
		)
	}
}

// activeColor maps an ActiveState to an ANSI color number, or "" to
// leave it uncolored.
func activeColor(state string) string {
	switch state {
	case "active":
		return "2"
	case "failed":
		return "1"
	case "activating", "deactivating", "reloading":
		return "3"
	default:
		return ""
	}
}
