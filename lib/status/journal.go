// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package status

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"time"

	"github.com/bureau-foundation/servicemaster/lib/unit"
)

// Journal fetches the most recent log lines for one invocation.
type Journal interface {
	// Recent returns at most lines formatted entries, oldest first.
	// The zero invocation ID yields no entries.
	Recent(ctx context.Context, invocationID string, lines int) ([]string, error)
}

// JournalCtl reads the journal by running journalctl with JSON output.
type JournalCtl struct {
	// Binary is the journalctl executable. Defaults to "journalctl"
	// resolved through PATH.
	Binary string

	// Location formats timestamps. Defaults to time.Local.
	Location *time.Location
}

// Args returns the journalctl arguments for an invocation lookup. The
// two matches are joined with "+" so entries logged either by the unit
// itself or about it (USER_INVOCATION_ID) are returned.
func (j JournalCtl) Args(invocationID string, lines int) []string {
	return []string{
		"--output=json",
		"--no-pager",
		"--lines", strconv.Itoa(lines),
		"_SYSTEMD_INVOCATION_ID=" + invocationID,
		"+",
		"USER_INVOCATION_ID=" + invocationID,
	}
}

// Recent implements [Journal].
func (j JournalCtl) Recent(ctx context.Context, invocationID string, lines int) ([]string, error) {
	if invocationID == "" || invocationID == unit.ZeroInvocationID || lines <= 0 {
		return nil, nil
	}
	binary := j.Binary
	if binary == "" {
		binary = "journalctl"
	}

	command := exec.CommandContext(ctx, binary, j.Args(invocationID, lines)...)
	var stderr bytes.Buffer
	command.Stderr = &stderr
	output, err := command.Output()
	if err != nil {
		if message := bytes.TrimSpace(stderr.Bytes()); len(message) > 0 {
			return nil, fmt.Errorf("reading journal: %w: %s", err, message)
		}
		return nil, fmt.Errorf("reading journal: %w", err)
	}
	return ParseJournalJSON(bytes.NewReader(output), j.location())
}

func (j JournalCtl) location() *time.Location {
	if j.Location == nil {
		return time.Local
	}
	return j.Location
}

// journalStamp matches syslog's "%b %d %H:%M:%S".
const journalStamp = "Jan 02 15:04:05"

// journalEntry is the subset of journal export fields shown per line.
// journalctl emits MESSAGE as a string, or as a byte array when the
// message is not valid UTF-8.
type journalEntry struct {
	Realtime   string          `json:"__REALTIME_TIMESTAMP"`
	Hostname   string          `json:"_HOSTNAME"`
	Identifier string          `json:"SYSLOG_IDENTIFIER"`
	PID        string          `json:"_PID"`
	Message    json.RawMessage `json:"MESSAGE"`
}

// ParseJournalJSON turns journalctl --output=json lines into
// "Jan 02 15:04:05 host ident[pid]: message" strings. Entries missing
// any of those fields are skipped.
func ParseJournalJSON(reader io.Reader, location *time.Location) ([]string, error) {
	var lines []string
	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}
		var entry journalEntry
		if err := json.Unmarshal(raw, &entry); err != nil {
			return lines, fmt.Errorf("decoding journal entry: %w", err)
		}
		line, ok := entry.format(location)
		if ok {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return lines, fmt.Errorf("reading journal output: %w", err)
	}
	return lines, nil
}

func (e journalEntry) format(location *time.Location) (string, bool) {
	micros, err := strconv.ParseInt(e.Realtime, 10, 64)
	if err != nil {
		return "", false
	}
	message, ok := decodeMessage(e.Message)
	if !ok || e.Hostname == "" || e.Identifier == "" || e.PID == "" {
		return "", false
	}
	stamp := time.UnixMicro(micros).In(location).Format(journalStamp)
	return fmt.Sprintf("%s %s %s[%s]: %s", stamp, e.Hostname, e.Identifier, e.PID, message), true
}

func decodeMessage(raw json.RawMessage) (string, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", false
	}
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return text, true
	}
	var numbers []int
	if err := json.Unmarshal(raw, &numbers); err != nil {
		return "", false
	}
	binary := make([]byte, 0, len(numbers))
	for _, number := range numbers {
		binary = append(binary, byte(number))
	}
	return strconv.QuoteToASCII(string(binary)), true
}
