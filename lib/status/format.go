// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package status

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/bureau-foundation/servicemaster/lib/unit"
)

// labelWidth right-aligns every field label.
const labelWidth = 11

// unitWidth right-aligns the unit name on the title line.
const unitWidth = 30

// systemd reports "no value" for 64-bit counters as all ones.
const unsetUint64 = math.MaxUint64

// Format lays out record's status block as of now. now also supplies
// the time zone for wall-clock timestamps.
func Format(record *unit.Record, now time.Time) string {
	var builder strings.Builder
	line := func(label, format string, args ...any) {
		fmt.Fprintf(&builder, "%*s: ", labelWidth, label)
		fmt.Fprintf(&builder, format, args...)
		builder.WriteByte('\n')
	}

	fmt.Fprintf(&builder, "%*s - %s\n", unitWidth, record.Unit, record.Description)
	line("Loaded", "%s (%s)", record.LoadState, record.FragmentPath)

	if record.Type != unit.TypeService {
		line("Active", "%s (%s)", record.ActiveState, record.SubState)
	}
	switch record.Type {
	case unit.TypeService:
		formatService(record, now, line)
	case unit.TypeDevice:
		line("SysFSPath", "%s", record.Device.SysFSPath)
	case unit.TypeMount:
		line("Where", "%s", record.Mount.Where)
		line("What", "%s", record.Mount.What)
	case unit.TypeTimer:
		formatTimer(record.Timer.NextElapseUSecRealtime, now, line)
	case unit.TypeSocket:
		line("BindIPv6Only", "%s", record.Socket.BindIPv6Only)
		line("Backlog", "%s", formatBacklog(record.Socket.Backlog))
	}

	line("File State", "%s", record.UnitFileState)
	return builder.String()
}

type lineFunc func(label, format string, args ...any)

func formatService(record *unit.Record, now time.Time, line lineFunc) {
	service := record.Service
	if record.ActiveState == "active" && record.SubState == "running" && service.ExecMainStartTimestamp > 0 {
		started := time.UnixMicro(int64(service.ExecMainStartTimestamp)).In(now.Location())
		line("Active", "%s (%s) since %s (%s)",
			record.ActiveState, record.SubState,
			started.Format(time.DateTime),
			humanize.RelTime(started, now, "ago", "from now"))
	} else {
		line("Active", "%s (%s)", record.ActiveState, record.SubState)
	}

	if record.ActiveState != "active" {
		return
	}
	line("Main PID", "%d", service.MainPID)
	line("Tasks", "%s (limit: %s)", formatCount(service.TasksCurrent), formatCount(service.TasksMax))
	line("Memory", "%s (peak: %s swap: %s swap peak: %s zswap: %s)",
		formatBytes(service.MemoryCurrent),
		formatBytes(service.MemoryPeak),
		formatBytes(service.MemorySwapCurrent),
		formatBytes(service.MemorySwapPeak),
		formatBytes(service.MemoryZSwapCurrent))
	if service.CPUUsageNSec == unsetUint64 {
		line("CPU", "n/a")
	} else {
		line("CPU", "%sms", humanize.Comma(int64(service.CPUUsageNSec/uint64(time.Millisecond))))
	}
	line("CGroup", "%s", record.ControlGroup)
}

func formatTimer(nextElapse uint64, now time.Time, line lineFunc) {
	if nextElapse == 0 || nextElapse == unsetUint64 {
		line("Next Elapse", "n/a")
		return
	}
	next := time.UnixMicro(int64(nextElapse)).In(now.Location())
	line("Next Elapse", "%s", next.Format(time.DateTime))

	remaining := next.Sub(now).Truncate(time.Second)
	if remaining <= 0 {
		line("Time until", "In the past")
		return
	}
	line("Time until", "%s", formatCountdown(remaining))
}

// formatCountdown spells out d as days, hours, minutes and seconds,
// omitting zero leading units. Seconds are always shown.
func formatCountdown(d time.Duration) string {
	total := int64(d / time.Second)
	days := total / 86400
	hours := total % 86400 / 3600
	minutes := total % 3600 / 60
	seconds := total % 60

	var parts []string
	if days > 0 {
		parts = append(parts, fmt.Sprintf("%d days", days))
	}
	if hours > 0 {
		parts = append(parts, fmt.Sprintf("%d hours", hours))
	}
	if minutes > 0 {
		parts = append(parts, fmt.Sprintf("%d minutes", minutes))
	}
	parts = append(parts, fmt.Sprintf("%d seconds", seconds))
	return strings.Join(parts, " ")
}

// formatBacklog renders a socket listen backlog. INT32_MAX and
// UINT32_MAX mean no limit; anything above INT16_MAX is not a value
// the kernel accepts.
func formatBacklog(backlog uint32) string {
	switch {
	case backlog == math.MaxInt32 || backlog == math.MaxUint32:
		return "Unlimited"
	case backlog > math.MaxInt16:
		return fmt.Sprintf("Invalid value (%d)", backlog)
	default:
		return fmt.Sprintf("%d", backlog)
	}
}

func formatBytes(value uint64) string {
	if value == unsetUint64 {
		return "n/a"
	}
	return humanize.IBytes(value)
}

func formatCount(value uint64) string {
	if value == unsetUint64 {
		return "infinity"
	}
	return fmt.Sprintf("%d", value)
}
