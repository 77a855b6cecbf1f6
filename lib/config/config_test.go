// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bureau-foundation/servicemaster/lib/unit"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "servicemaster.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	wantScope := "user"
	if os.Geteuid() == 0 {
		wantScope = "system"
	}
	if cfg.Scope != wantScope {
		t.Errorf("expected scope=%s, got %s", wantScope, cfg.Scope)
	}
	if cfg.Mode != "service" {
		t.Errorf("expected mode=service, got %s", cfg.Mode)
	}
	if cfg.LogLines != 10 {
		t.Errorf("expected log_lines=10, got %d", cfg.LogLines)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults do not validate: %v", err)
	}
	if cfg.CallTimeoutValue() != 5*time.Second {
		t.Errorf("expected call_timeout=5s, got %s", cfg.CallTimeoutValue())
	}
	if cfg.EscapeGraceValue() != 300*time.Millisecond {
		t.Errorf("expected escape_grace=300ms, got %s", cfg.EscapeGraceValue())
	}
}

func TestLoad_WithoutVariableUsesDefaults(t *testing.T) {
	t.Setenv(EnvironmentVariable, "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Mode != "service" {
		t.Errorf("expected default mode, got %s", cfg.Mode)
	}
}

func TestLoad_WithVariable(t *testing.T) {
	path := writeConfig(t, "mode: timer\nscope: system\n")
	t.Setenv(EnvironmentVariable, path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.ModeValue() != unit.TypeTimer {
		t.Errorf("expected mode=timer, got %s", cfg.Mode)
	}
	if cfg.ScopeValue() != unit.ScopeSystem {
		t.Errorf("expected scope=system, got %s", cfg.Scope)
	}
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
scope: user
mode: all
theme: light
log_lines: 25
call_timeout: 2s
escape_grace: 1s
`)

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}

	if cfg.ScopeValue() != unit.ScopeUser {
		t.Errorf("expected scope=user, got %s", cfg.Scope)
	}
	if cfg.ModeValue() != unit.TypeAll {
		t.Errorf("expected mode=all, got %s", cfg.Mode)
	}
	if cfg.Theme != "light" {
		t.Errorf("expected theme=light, got %s", cfg.Theme)
	}
	if cfg.LogLines != 25 {
		t.Errorf("expected log_lines=25, got %d", cfg.LogLines)
	}
	if cfg.CallTimeoutValue() != 2*time.Second {
		t.Errorf("expected call_timeout=2s, got %s", cfg.CallTimeoutValue())
	}
	if cfg.EscapeGraceValue() != time.Second {
		t.Errorf("expected escape_grace=1s, got %s", cfg.EscapeGraceValue())
	}
	// Absent fields keep defaults.
	if cfg.Journalctl != "journalctl" {
		t.Errorf("expected journalctl default, got %s", cfg.Journalctl)
	}
}

func TestLoadFile_Missing(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadFile_Malformed(t *testing.T) {
	path := writeConfig(t, "mode: [unterminated\n")
	_, err := LoadFile(path)
	if err == nil {
		t.Fatal("expected parse error")
	}
	if !strings.Contains(err.Error(), path) {
		t.Errorf("error does not name the file: %v", err)
	}
}

func TestLoadFile_ExpandsPaths(t *testing.T) {
	t.Setenv("HOME", "/home/test")
	t.Setenv("XDG_STATE_HOME", "")
	path := writeConfig(t, `
log_output: ${XDG_STATE_HOME:-/var/tmp}/servicemaster.log
journalctl: ${HOME}/bin/journalctl
`)

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if cfg.Journalctl != "/home/test/bin/journalctl" {
		t.Errorf("journalctl = %q", cfg.Journalctl)
	}
	if cfg.LogOutput != "/var/tmp/servicemaster.log" {
		t.Errorf("log_output = %q", cfg.LogOutput)
	}
}

func TestExpandVars(t *testing.T) {
	t.Setenv("SERVICEMASTER_TEST_VAR", "from-env")
	vars := map[string]string{"HOME": "/home/test"}

	tests := []struct {
		input string
		want  string
	}{
		{"${HOME}/x", "/home/test/x"},
		{"${SERVICEMASTER_TEST_VAR}", "from-env"},
		{"${SERVICEMASTER_UNSET_VAR:-fallback}", "fallback"},
		{"${SERVICEMASTER_UNSET_VAR}", ""},
		{"plain", "plain"},
	}
	for _, test := range tests {
		if got := expandVars(test.input, vars); got != test.want {
			t.Errorf("expandVars(%q) = %q, want %q", test.input, got, test.want)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		want   string
	}{
		{"bad scope", func(c *Config) { c.Scope = "session" }, "scope"},
		{"bad mode", func(c *Config) { c.Mode = "widget" }, "mode"},
		{"bad theme", func(c *Config) { c.Theme = "neon" }, "theme"},
		{"negative lines", func(c *Config) { c.LogLines = -1 }, "log_lines"},
		{"bad timeout", func(c *Config) { c.CallTimeout = "soon" }, "call_timeout"},
		{"zero grace", func(c *Config) { c.EscapeGrace = "0s" }, "escape_grace"},
		{"no journalctl", func(c *Config) { c.Journalctl = "" }, "journalctl"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			cfg := Default()
			test.modify(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), test.want) {
				t.Errorf("error %q does not mention %q", err, test.want)
			}
		})
	}
}

func TestValidate_ReportsAllErrors(t *testing.T) {
	cfg := Default()
	cfg.Scope = "session"
	cfg.Mode = "widget"
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "scope") || !strings.Contains(err.Error(), "mode") {
		t.Errorf("expected both errors, got %v", err)
	}
}
