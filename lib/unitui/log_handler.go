// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package unitui

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// logRecordMsg delivers a slog record to the model for display in the
// status bar.
type logRecordMsg struct {
	Summary string
	Level   slog.Level
}

// statusFadeMsg clears the status bar message it was scheduled for.
// A newer message bumps the generation so an older fade is ignored.
type statusFadeMsg struct {
	generation int
}

// statusFadeDelay is how long a log record or operation notice stays
// in the status bar before the help line returns.
const statusFadeDelay = 5 * time.Second

// logQueueSize bounds the records waiting for the model. Records
// arriving while the queue is full are dropped.
const logQueueSize = 64

// TUILogHandler is a slog.Handler that queues log records for display
// in the status bar. Records below the configured level are dropped.
//
// Handle never blocks: most records are logged from inside
// Model.Update, which is also the only reader of the queue. The model
// drains it with a command re-armed after every record.
//
// Handlers derived via WithAttrs/WithGroup share the queue.
type TUILogHandler struct {
	level   slog.Level
	records chan logRecordMsg
	dropped *atomic.Int64
	attrs   []slog.Attr
	groups  []string
}

// NewTUILogHandler creates a handler queueing records at or above
// level. Pass it to the model as Config.LogHandler.
func NewTUILogHandler(level slog.Level) *TUILogHandler {
	return &TUILogHandler{
		level:   level,
		records: make(chan logRecordMsg, logQueueSize),
		dropped: &atomic.Int64{},
	}
}

// Dropped returns how many records were discarded on a full queue.
func (handler *TUILogHandler) Dropped() int64 {
	return handler.dropped.Load()
}

// listen returns a command that waits for the next queued record.
func (handler *TUILogHandler) listen(ctx context.Context) tea.Cmd {
	records := handler.records
	return func() tea.Msg {
		select {
		case record := <-records:
			return record
		case <-ctx.Done():
			return nil
		}
	}
}

// Enabled reports whether the handler is interested in level.
func (handler *TUILogHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= handler.level
}

// Handle formats the record as "message (key=value, ...)" and queues
// it for the model.
func (handler *TUILogHandler) Handle(_ context.Context, record slog.Record) error {
	var parts []string
	for _, attr := range handler.attrs {
		parts = append(parts, attr.Key+"="+attr.Value.String())
	}
	prefix := ""
	if len(handler.groups) > 0 {
		prefix = strings.Join(handler.groups, ".") + "."
	}
	record.Attrs(func(attr slog.Attr) bool {
		parts = append(parts, prefix+attr.Key+"="+attr.Value.String())
		return true
	})

	summary := record.Message
	if len(parts) > 0 {
		summary += " (" + strings.Join(parts, ", ") + ")"
	}

	select {
	case handler.records <- logRecordMsg{Summary: summary, Level: record.Level}:
	default:
		handler.dropped.Add(1)
	}
	return nil
}

// WithAttrs returns a handler with attrs appended, sharing the queue.
func (handler *TUILogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	prefix := ""
	if len(handler.groups) > 0 {
		prefix = strings.Join(handler.groups, ".") + "."
	}
	derived := slices.Clone(handler.attrs)
	for _, attr := range attrs {
		derived = append(derived, slog.Attr{Key: prefix + attr.Key, Value: attr.Value})
	}
	return &TUILogHandler{
		level:   handler.level,
		records: handler.records,
		dropped: handler.dropped,
		attrs:   derived,
		groups:  slices.Clone(handler.groups),
	}
}

// WithGroup returns a handler whose later attributes are qualified by
// name.
func (handler *TUILogHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return handler
	}
	return &TUILogHandler{
		level:   handler.level,
		records: handler.records,
		dropped: handler.dropped,
		attrs:   slices.Clone(handler.attrs),
		groups:  append(slices.Clone(handler.groups), name),
	}
}
