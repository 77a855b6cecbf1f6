// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"slices"

	"golang.org/x/term"
)

// newCommandLogger builds the logger for --list runs: readable text
// for a person at a terminal, JSON lines when stderr is captured.
func newCommandLogger(w io.Writer) *slog.Logger {
	level := slog.LevelWarn
	if file, ok := w.(*os.File); ok && term.IsTerminal(int(file.Fd())) {
		return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

// openLogFile creates (or truncates) path and returns a debug-level
// JSON handler writing to it, plus the file's close function.
func openLogFile(path string) (slog.Handler, func() error, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, nil, err
	}
	return slog.NewJSONHandler(file, &slog.HandlerOptions{Level: slog.LevelDebug}), file.Close, nil
}

// teeHandler delivers each record to every handler enabled for its
// level. A failing handler does not keep the record from the others.
type teeHandler []slog.Handler

func (tee teeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return slices.ContainsFunc(tee, func(handler slog.Handler) bool {
		return handler.Enabled(ctx, level)
	})
}

func (tee teeHandler) Handle(ctx context.Context, record slog.Record) error {
	var errs []error
	for _, handler := range tee {
		if handler.Enabled(ctx, record.Level) {
			errs = append(errs, handler.Handle(ctx, record.Clone()))
		}
	}
	return errors.Join(errs...)
}

func (tee teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return tee.derive(func(handler slog.Handler) slog.Handler { return handler.WithAttrs(attrs) })
}

func (tee teeHandler) WithGroup(name string) slog.Handler {
	return tee.derive(func(handler slog.Handler) slog.Handler { return handler.WithGroup(name) })
}

func (tee teeHandler) derive(apply func(slog.Handler) slog.Handler) teeHandler {
	derived := make(teeHandler, len(tee))
	for index, handler := range tee {
		derived[index] = apply(handler)
	}
	return derived
}
