// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// servicemaster is an interactive terminal browser for systemd units.
// It keeps a live, sorted view of the system and user managers' units
// over D-Bus and starts, stops, restarts, reloads, enables, disables,
// masks and unmasks the selected unit.
//
// With --list it instead prints one scope's units after a single bulk
// sync and exits, for scripts and smoke tests.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/pflag"

	"github.com/bureau-foundation/servicemaster/lib/clock"
	"github.com/bureau-foundation/servicemaster/lib/config"
	"github.com/bureau-foundation/servicemaster/lib/dispatch"
	"github.com/bureau-foundation/servicemaster/lib/engine"
	"github.com/bureau-foundation/servicemaster/lib/process"
	"github.com/bureau-foundation/servicemaster/lib/status"
	"github.com/bureau-foundation/servicemaster/lib/systemd"
	"github.com/bureau-foundation/servicemaster/lib/tui"
	"github.com/bureau-foundation/servicemaster/lib/unit"
	"github.com/bureau-foundation/servicemaster/lib/unitui"
	"github.com/bureau-foundation/servicemaster/lib/version"
)

// closeTimeout bounds the Unsubscribe calls made on exit.
const closeTimeout = 2 * time.Second

func main() {
	process.Fatal(run(os.Args[1:], os.Stdout, os.Stderr))
}

// options are the parsed command-line flags.
type options struct {
	configPath  string
	user        bool
	system      bool
	mode        string
	theme       string
	logOutput   string
	list        bool
	showVersion bool
	help        bool
}

func newFlagSet(opts *options) *pflag.FlagSet {
	flagSet := pflag.NewFlagSet("servicemaster", pflag.ContinueOnError)
	flagSet.StringVarP(&opts.configPath, "config", "c", "", "load configuration from this YAML file (default: $"+config.EnvironmentVariable+")")
	flagSet.BoolVar(&opts.user, "user", false, "start on the user manager")
	flagSet.BoolVar(&opts.system, "system", false, "start on the system manager")
	flagSet.StringVarP(&opts.mode, "mode", "m", "", "unit type shown at startup (service, timer, socket, all, ...)")
	flagSet.StringVar(&opts.theme, "theme", "", "color theme (dark, light)")
	flagSet.StringVar(&opts.logOutput, "log-output", "", "write JSON log records to this file (in addition to the status bar)")
	flagSet.BoolVarP(&opts.list, "list", "l", false, "print the units of one scope and exit")
	flagSet.BoolVar(&opts.showVersion, "version", false, "print version information and exit")
	flagSet.BoolVarP(&opts.help, "help", "h", false, "show help")
	flagSet.SetOutput(io.Discard)
	return flagSet
}

func parseFlags(args []string) (*options, *pflag.FlagSet, error) {
	opts := &options{}
	flagSet := newFlagSet(opts)
	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			opts.help = true
			return opts, flagSet, nil
		}
		return nil, flagSet, fmt.Errorf("%w: %w", process.ErrUsage, err)
	}
	if rest := flagSet.Args(); len(rest) > 0 {
		return nil, flagSet, fmt.Errorf("%w: unexpected argument %q", process.ErrUsage, rest[0])
	}
	if opts.user && opts.system {
		return nil, flagSet, fmt.Errorf("%w: --user and --system are mutually exclusive", process.ErrUsage)
	}
	return opts, flagSet, nil
}

// loadConfig reads the configuration and applies flag overrides.
func loadConfig(opts *options) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if opts.configPath != "" {
		cfg, err = config.LoadFile(opts.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}

	switch {
	case opts.user:
		cfg.Scope = unit.ScopeUser.String()
	case opts.system:
		cfg.Scope = unit.ScopeSystem.String()
	}
	if opts.mode != "" {
		cfg.Mode = opts.mode
	}
	if opts.theme != "" {
		cfg.Theme = opts.theme
	}
	if opts.logOutput != "" {
		cfg.LogOutput = opts.logOutput
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", process.ErrUsage, err)
	}
	return cfg, nil
}

func run(args []string, stdout, stderr io.Writer) error {
	opts, flagSet, err := parseFlags(args)
	if err != nil {
		return err
	}
	if opts.help {
		printHelp(stderr, flagSet)
		return nil
	}
	if opts.showVersion {
		fmt.Fprintln(stdout, version.Full())
		return nil
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if opts.list {
		return runList(ctx, cfg, stdout, newCommandLogger(stderr))
	}
	return runBrowser(ctx, cfg)
}

func printHelp(w io.Writer, flagSet *pflag.FlagSet) {
	fmt.Fprintf(w, `servicemaster: browse and control systemd units.

Shows the units of the system or user manager, kept up to date as they
change. F1-F8 start, stop, restart, enable, disable, mask, unmask and
reload the selected unit; Space switches between system and user;
Enter shows the unit's status and recent log lines.

Usage:
  servicemaster [flags]

Examples:
  # Browse the user manager's timers
  servicemaster --user --mode timer

  # Print every system unit and exit
  servicemaster --system --mode all --list

Flags:
`)
	flagSet.SetOutput(w)
	flagSet.PrintDefaults()
}

// runBrowser runs the interactive UI. The user manager is optional:
// when its bus is unreachable the browser runs in system-only mode.
func runBrowser(ctx context.Context, cfg *config.Config) error {
	theme, err := tui.ThemeByName(cfg.Theme)
	if err != nil {
		return fmt.Errorf("%w: %w", process.ErrUsage, err)
	}

	tuiHandler := unitui.NewTUILogHandler(slog.LevelWarn)
	var logger *slog.Logger
	if cfg.LogOutput != "" {
		fileHandler, closeFile, err := openLogFile(cfg.LogOutput)
		if err != nil {
			return fmt.Errorf("opening log file %s: %w", cfg.LogOutput, err)
		}
		defer closeFile()
		logger = slog.New(teeHandler{tuiHandler, fileHandler})
	} else {
		logger = slog.New(tuiHandler)
	}

	realClock := clock.Real()
	syncEngine := engine.New(engine.Config{
		Clock:       realClock,
		Logger:      logger.With("component", "engine"),
		CallTimeout: cfg.CallTimeoutValue(),
	})
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), closeTimeout)
		defer cancel()
		if err := syncEngine.Close(closeCtx); err != nil {
			logger.Debug("closing connections", "error", err)
		}
	}()

	if err := attachScope(ctx, syncEngine, unit.ScopeSystem, logger); err != nil {
		return err
	}
	displayed := cfg.ScopeValue()
	if err := attachScope(ctx, syncEngine, unit.ScopeUser, logger); err != nil {
		logger.Warn("user manager unavailable, showing system units only", "error", err)
		displayed = unit.ScopeSystem
	}
	syncEngine.SetDisplayed(displayed)

	model := unitui.NewModel(unitui.Config{
		Engine: syncEngine,
		Dispatcher: &dispatch.Dispatcher{
			Logger:      logger.With("component", "dispatch"),
			CallTimeout: cfg.CallTimeoutValue(),
			Clock:       realClock,
		},
		Journal:     status.JournalCtl{Binary: cfg.Journalctl},
		Clock:       realClock,
		Logger:      logger.With("component", "ui"),
		LogHandler:  tuiHandler,
		Theme:       theme,
		Mode:        cfg.ModeValue(),
		LogLines:    cfg.LogLines,
		EscapeGrace: cfg.EscapeGraceValue(),
		Context:     ctx,
	})
	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err = program.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

// attachScope dials scope's manager and hands the connection to the
// engine. A dial failure leaves the scope unattached; a sync failure
// leaves it attached but stale, which the UI reports.
func attachScope(ctx context.Context, syncEngine *engine.Engine, scope unit.Scope, logger *slog.Logger) error {
	conn, err := systemd.Dial(ctx, scope, logger.With("component", "bus"))
	if err != nil {
		return err
	}
	if _, err := syncEngine.Attach(ctx, scope, conn); err != nil {
		logger.Warn("initial sync failed", "scope", scope.String(), "error", err)
	}
	return nil
}
