// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package status

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bureau-foundation/servicemaster/lib/clock"
	"github.com/bureau-foundation/servicemaster/lib/systemd"
	"github.com/bureau-foundation/servicemaster/lib/unit"
)

// DefaultLines is how many journal lines a status block carries.
const DefaultLines = 10

// Builder assembles status blocks on demand.
type Builder struct {
	// Conn refreshes the record's on-demand properties.
	Conn systemd.PropertyGetter

	// Journal supplies log lines. Nil means no log section.
	Journal Journal

	// Clock supplies "now". Defaults to clock.Real().
	Clock clock.Clock

	// Lines caps the log section. Zero means DefaultLines.
	Lines int
}

// Build refreshes record's details, formats it and appends recent log
// lines. Failures to fetch individual properties or logs do not stop
// the block from being built: the text is always returned, alongside
// any errors that occurred.
func (b *Builder) Build(ctx context.Context, record *unit.Record) (string, error) {
	var errs []error
	if b.Conn != nil {
		if err := systemd.FetchDetails(ctx, b.Conn, record); err != nil {
			errs = append(errs, err)
		}
	}

	now := b.clock().Now()
	var builder strings.Builder
	builder.WriteString(Format(record, now))

	if b.Journal != nil {
		lines := b.Lines
		if lines <= 0 {
			lines = DefaultLines
		}
		logs, err := b.Journal.Recent(ctx, record.InvocationID, lines)
		if err != nil {
			errs = append(errs, fmt.Errorf("journal for %s: %w", record.Unit, err))
		}
		if len(logs) > 0 {
			builder.WriteByte('\n')
			for _, line := range logs {
				builder.WriteString(line)
				builder.WriteByte('\n')
			}
		}
	}
	return builder.String(), errors.Join(errs...)
}

func (b *Builder) clock() clock.Clock {
	if b.Clock == nil {
		return clock.Real()
	}
	return b.Clock
}
