// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"slices"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/bureau-foundation/servicemaster/lib/tui"
	"github.com/bureau-foundation/servicemaster/lib/unit"
)

// EnvironmentVariable names the variable [Load] reads the config path
// from.
const EnvironmentVariable = "SERVICEMASTER_CONFIG"

// Config is the servicemaster configuration.
type Config struct {
	// Scope is the bus shown at startup: "system" or "user".
	// Default: system when running as root, user otherwise.
	Scope string `yaml:"scope"`

	// Mode is the unit type shown at startup ("service", "timer",
	// "all", ...). Default: service.
	Mode string `yaml:"mode"`

	// Theme selects the color palette. Default: dark.
	Theme string `yaml:"theme"`

	// LogLines is how many journal lines the status overlay shows.
	// Default: 10.
	LogLines int `yaml:"log_lines"`

	// CallTimeout bounds every bus call. Default: 5s.
	CallTimeout string `yaml:"call_timeout"`

	// EscapeGrace is how long Esc is ignored after startup.
	// Default: 300ms.
	EscapeGrace string `yaml:"escape_grace"`

	// LogOutput, when set, receives every log record as JSON lines in
	// addition to the status bar.
	LogOutput string `yaml:"log_output"`

	// Journalctl is the journal reader binary. Default: journalctl
	// from PATH.
	Journalctl string `yaml:"journalctl"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	scope := unit.ScopeUser
	if os.Geteuid() == 0 {
		scope = unit.ScopeSystem
	}
	return &Config{
		Scope:       scope.String(),
		Mode:        unit.TypeService.String(),
		Theme:       "dark",
		LogLines:    10,
		CallTimeout: "5s",
		EscapeGrace: "300ms",
		Journalctl:  "journalctl",
	}
}

// Load loads configuration from the file named by SERVICEMASTER_CONFIG,
// or returns [Default] when the variable is unset.
func Load() (*Config, error) {
	configPath := os.Getenv(EnvironmentVariable)
	if configPath == "" {
		return Default(), nil
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from path over the defaults. Fields
// absent from the file keep their default values.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}
	cfg.expandVariables()
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in
// path fields.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}
	c.LogOutput = expandVars(c.LogOutput, vars)
	c.Journalctl = expandVars(c.Journalctl, vars)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		// Provided vars first, then the environment.
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors, reporting all of them.
func (c *Config) Validate() error {
	var errs []error

	if _, err := unit.ParseScope(c.Scope); err != nil {
		errs = append(errs, fmt.Errorf("scope: %w", err))
	}
	if _, ok := unit.ParseTypeName(c.Mode); !ok {
		errs = append(errs, fmt.Errorf("mode %q is not a unit type", c.Mode))
	}
	if !slices.Contains(tui.ThemeNames(), c.Theme) {
		errs = append(errs, fmt.Errorf("theme must be one of: %v", tui.ThemeNames()))
	}
	if c.LogLines < 0 {
		errs = append(errs, fmt.Errorf("log_lines must not be negative, got %d", c.LogLines))
	}
	if _, err := parsePositiveDuration("call_timeout", c.CallTimeout); err != nil {
		errs = append(errs, err)
	}
	if _, err := parsePositiveDuration("escape_grace", c.EscapeGrace); err != nil {
		errs = append(errs, err)
	}
	if c.Journalctl == "" {
		errs = append(errs, errors.New("journalctl is required"))
	}

	return errors.Join(errs...)
}

// ScopeValue returns the configured scope. Call Validate first.
func (c *Config) ScopeValue() unit.Scope {
	scope, _ := unit.ParseScope(c.Scope)
	return scope
}

// ModeValue returns the configured unit type. Call Validate first.
func (c *Config) ModeValue() unit.Type {
	mode, _ := unit.ParseTypeName(c.Mode)
	return mode
}

// CallTimeoutValue returns the parsed call timeout. Call Validate
// first.
func (c *Config) CallTimeoutValue() time.Duration {
	duration, _ := parsePositiveDuration("call_timeout", c.CallTimeout)
	return duration
}

// EscapeGraceValue returns the parsed escape grace. Call Validate
// first.
func (c *Config) EscapeGraceValue() time.Duration {
	duration, _ := parsePositiveDuration("escape_grace", c.EscapeGrace)
	return duration
}

func parsePositiveDuration(field, value string) (time.Duration, error) {
	duration, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", field, err)
	}
	if duration <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %s", field, value)
	}
	return duration, nil
}
