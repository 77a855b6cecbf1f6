// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package unitui

import (
	"context"
	"io"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/bureau-foundation/servicemaster/lib/clock"
	"github.com/bureau-foundation/servicemaster/lib/dispatch"
	"github.com/bureau-foundation/servicemaster/lib/engine"
	"github.com/bureau-foundation/servicemaster/lib/status"
	"github.com/bureau-foundation/servicemaster/lib/systemd"
	"github.com/bureau-foundation/servicemaster/lib/tui"
	"github.com/bureau-foundation/servicemaster/lib/unit"
)

// DefaultEscapeGrace is how long Esc is ignored after startup. Some
// terminals deliver a stray escape while the alternate screen is set
// up.
const DefaultEscapeGrace = 300 * time.Millisecond

// Fixed column widths. The unit column takes a share of what remains
// and the description gets the rest.
const (
	stateWidth  = 9
	activeWidth = 10
	subWidth    = 10
	columnGap   = 1

	// chromeLines counts the header, column titles and status bar.
	chromeLines = 3

	defaultListHeight = 20
)

// busEventMsg carries one signal from a scope's connection.
type busEventMsg struct {
	event engine.Event
}

// signalsClosedMsg reports that a scope's signal stream ended.
type signalsClosedMsg struct {
	scope unit.Scope
}

// heatTickMsg drives the change-glow animation.
type heatTickMsg struct{}

// listenForSignals returns a command that blocks until the next signal
// from one scope. The model re-arms it after each event, so at most one
// read per scope is outstanding and signals are stepped in bus order.
func listenForSignals(scope unit.Scope, signals <-chan systemd.Signal) tea.Cmd {
	return func() tea.Msg {
		signal, ok := <-signals
		if !ok {
			return signalsClosedMsg{scope: scope}
		}
		return busEventMsg{event: engine.Event{Scope: scope, Signal: signal}}
	}
}

func scheduleHeatTick() tea.Cmd {
	return tea.Tick(tui.HeatTickInterval, func(time.Time) tea.Msg {
		return heatTickMsg{}
	})
}

func scheduleStatusFade(generation int) tea.Cmd {
	return tea.Tick(statusFadeDelay, func(time.Time) tea.Msg {
		return statusFadeMsg{generation: generation}
	})
}

// Config holds the model's collaborators. Engine and Dispatcher are
// required; the engine must already have its scopes attached.
type Config struct {
	Engine     *engine.Engine
	Dispatcher *dispatch.Dispatcher

	// Journal feeds the status overlay's log section. Nil omits it.
	Journal status.Journal

	// Clock defaults to clock.Real().
	Clock clock.Clock

	// Logger defaults to a discard logger.
	Logger *slog.Logger

	// LogHandler, when set, feeds its queued records into the status
	// bar.
	LogHandler *TUILogHandler

	Theme tui.Theme

	// Keys defaults to DefaultKeyMap.
	Keys *KeyMap

	// Mode is the initial type filter.
	Mode unit.Type

	// LogLines caps the status overlay's log section.
	LogLines int

	// EscapeGrace defaults to DefaultEscapeGrace.
	EscapeGrace time.Duration

	// Context bounds bus calls made from Update. Defaults to
	// context.Background().
	Context context.Context
}

// overlay is the modal box shown over the list.
type overlay struct {
	title   string
	body    string
	isError bool
	scroll  int
}

// Model is the bubbletea model for the unit browser.
type Model struct {
	ctx         context.Context
	engine      *engine.Engine
	dispatcher  *dispatch.Dispatcher
	journal     status.Journal
	clock       clock.Clock
	logger      *slog.Logger
	logs        *TUILogHandler
	theme       tui.Theme
	keys        KeyMap
	logLines    int
	escapeGrace time.Duration
	started     time.Time

	mode       unit.Type
	systemOnly bool

	width  int
	height int

	// cursor indexes the selected unit among the filtered list;
	// scrollOffset is the index shown on the first list row.
	cursor       int
	scrollOffset int
	total        int

	// selectedName keeps the selection on the same unit when records
	// above it come and go.
	selectedName string
	highlights   map[string][]int

	filter FilterModel

	heat        *tui.HeatTracker
	heatTicking bool

	overlay *overlay

	statusMessage    string
	statusLevel      slog.Level
	statusGeneration int
}

// NewModel creates the browser over config.Engine's registries. A
// single attached scope puts the model in system-only mode, in which
// the scope toggle is disabled.
func NewModel(config Config) Model {
	if config.Clock == nil {
		config.Clock = clock.Real()
	}
	if config.Logger == nil {
		config.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if config.Keys == nil {
		config.Keys = &DefaultKeyMap
	}
	if config.EscapeGrace <= 0 {
		config.EscapeGrace = DefaultEscapeGrace
	}
	if config.Context == nil {
		config.Context = context.Background()
	}

	model := Model{
		ctx:         config.Context,
		engine:      config.Engine,
		dispatcher:  config.Dispatcher,
		journal:     config.Journal,
		clock:       config.Clock,
		logger:      config.Logger,
		logs:        config.LogHandler,
		theme:       config.Theme,
		keys:        *config.Keys,
		logLines:    config.LogLines,
		escapeGrace: config.EscapeGrace,
		started:     config.Clock.Now(),
		mode:        config.Mode,
		systemOnly:  len(config.Engine.Scopes()) < 2,
		heat:        tui.NewHeatTracker(),
	}
	model.layout(false)
	return model
}

// Init starts one signal listener per attached scope and the log
// record listener.
func (model Model) Init() tea.Cmd {
	var commands []tea.Cmd
	if model.logs != nil {
		commands = append(commands, model.logs.listen(model.ctx))
	}
	for _, scope := range model.engine.Scopes() {
		conn := model.engine.Conn(scope)
		if conn == nil {
			continue
		}
		commands = append(commands, listenForSignals(scope, conn.Signals()))
	}
	commands = append(commands, tea.SetWindowTitle("servicemaster"))
	return tea.Batch(commands...)
}

// Update handles one message, then re-runs the layout pass so screen
// rows always describe what View will draw.
func (model Model) Update(message tea.Msg) (tea.Model, tea.Cmd) {
	var commands []tea.Cmd
	preserve := true

	switch message := message.(type) {
	case tea.WindowSizeMsg:
		model.width = message.Width
		model.height = message.Height

	case busEventMsg:
		result := model.engine.Step(model.ctx, message.event)
		commands = append(commands, model.applyResult(result))
		if conn := model.engine.Conn(message.event.Scope); conn != nil {
			commands = append(commands, listenForSignals(message.event.Scope, conn.Signals()))
		}

	case signalsClosedMsg:
		model.logger.Debug("signal stream closed", "scope", message.scope.String())

	case heatTickMsg:
		model.heatTicking = false

	case logRecordMsg:
		commands = append(commands, model.setStatus(message.Summary, message.Level))
		if model.logs != nil {
			commands = append(commands, model.logs.listen(model.ctx))
		}

	case statusFadeMsg:
		if message.generation == model.statusGeneration {
			model.statusMessage = ""
		}

	case tea.KeyMsg:
		var command tea.Cmd
		command, preserve = model.handleKey(message)
		commands = append(commands, command)
	}

	model.layout(preserve)
	if !model.heatTicking && model.heat.HasHot(model.clock.Now()) {
		model.heatTicking = true
		commands = append(commands, scheduleHeatTick())
	}
	return model, tea.Batch(commands...)
}

// applyResult feeds an engine result into the glow tracker and
// acknowledges the records about to be redrawn. A failed sync opens an
// error overlay naming the scope that stopped updating.
func (model *Model) applyResult(result engine.Result) tea.Cmd {
	now := model.clock.Now()
	registry := model.engine.Registry(result.Scope)
	for _, name := range result.Dirty {
		model.heat.Ignite(heatKey(result.Scope, name), tui.HeatChange, now)
		if registry != nil {
			registry.Acknowledge(name)
		}
	}
	for _, name := range result.Removed {
		model.heat.Forget(heatKey(result.Scope, name))
	}
	if result.Err != nil {
		title := result.Scope.Label() + " units"
		if result.Stale {
			title += " not updating"
		}
		model.overlay = &overlay{title: title, body: result.Err.Error(), isError: true}
	}
	if (result.Erase || result.Repaint) && result.Scope == model.engine.Displayed() {
		return tea.ClearScreen
	}
	return nil
}

func heatKey(scope unit.Scope, name string) string {
	return scope.String() + "/" + name
}

// setStatus shows text in the status bar until it fades or is
// replaced.
func (model *Model) setStatus(text string, level slog.Level) tea.Cmd {
	model.statusGeneration++
	model.statusMessage = text
	model.statusLevel = level
	return scheduleStatusFade(model.statusGeneration)
}

// handleKey routes a key press. The second return is false when the
// key moved the cursor explicitly, so the layout pass must not snap it
// back to the previously selected unit.
func (model *Model) handleKey(message tea.KeyMsg) (tea.Cmd, bool) {
	if model.overlay != nil {
		return model.handleOverlayKey(message), true
	}
	if model.filter.Active {
		return model.handleFilterKey(message), false
	}

	keys := model.keys
	switch {
	case key.Matches(message, keys.Quit):
		return tea.Quit, true

	case key.Matches(message, keys.Escape):
		if model.filter.Input != "" {
			model.filter.Clear()
			return nil, true
		}
		if model.clock.Now().Sub(model.started) < model.escapeGrace {
			return nil, true
		}
		return tea.Quit, true

	case key.Matches(message, keys.Up):
		model.cursor--
		return nil, false
	case key.Matches(message, keys.Down):
		model.cursor++
		return nil, false
	case key.Matches(message, keys.PageUp):
		model.cursor -= model.listHeight()
		return nil, false
	case key.Matches(message, keys.PageDown):
		model.cursor += model.listHeight()
		return nil, false
	case key.Matches(message, keys.Home):
		model.cursor = 0
		return nil, false
	case key.Matches(message, keys.End):
		model.cursor = model.total - 1
		return nil, false

	case key.Matches(message, keys.PreviousMode):
		model.setMode(model.mode.Previous())
		return nil, false
	case key.Matches(message, keys.NextMode):
		model.setMode(model.mode.Next())
		return nil, false

	case key.Matches(message, keys.ToggleScope):
		if model.systemOnly {
			return model.setStatus("User bus unavailable: showing system units only.", slog.LevelInfo), true
		}
		model.engine.SetDisplayed(model.engine.Displayed().Other())
		model.cursor = 0
		model.scrollOffset = 0
		return nil, false

	case key.Matches(message, keys.Status):
		model.openStatus()
		return nil, true

	case key.Matches(message, keys.FilterActivate):
		model.filter.Active = true
		return nil, true
	}

	for _, binding := range keys.operationBindings() {
		if key.Matches(message, binding.binding) {
			return model.dispatch(binding.operation), true
		}
	}

	if message.Type == tea.KeyRunes && len(message.Runes) == 1 {
		if mode, ok := unit.TypeForKey(message.Runes[0]); ok {
			model.setMode(mode)
			return nil, false
		}
	}
	return nil, true
}

func (model *Model) handleOverlayKey(message tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(message, model.keys.Escape),
		key.Matches(message, model.keys.Status),
		key.Matches(message, model.keys.Quit):
		model.overlay = nil
	case key.Matches(message, model.keys.Up):
		model.overlay.scroll = max(0, model.overlay.scroll-1)
	case key.Matches(message, model.keys.Down):
		model.overlay.scroll++
	case key.Matches(message, model.keys.PageUp):
		model.overlay.scroll = max(0, model.overlay.scroll-model.listHeight())
	case key.Matches(message, model.keys.PageDown):
		model.overlay.scroll += model.listHeight()
	}
	return nil
}

func (model *Model) handleFilterKey(message tea.KeyMsg) tea.Cmd {
	switch message.Type {
	case tea.KeyEsc:
		model.filter.Clear()
	case tea.KeyEnter:
		model.filter.Active = false
	case tea.KeyBackspace:
		model.filter.HandleBackspace()
	case tea.KeyCtrlC:
		return tea.Quit
	case tea.KeySpace:
		model.filter.HandleRune(' ')
	case tea.KeyRunes:
		for _, character := range message.Runes {
			model.filter.HandleRune(character)
		}
	default:
		return nil
	}
	model.cursor = 0
	return nil
}

func (model *Model) setMode(mode unit.Type) {
	model.mode = mode
	model.cursor = 0
	model.scrollOffset = 0
}

// selected resolves the highlighted row to its record through the
// registry. Nil when the list is empty.
func (model *Model) selected() *unit.Record {
	registry := model.registry()
	if registry == nil {
		return nil
	}
	return registry.FindByScreenRow(model.cursor - model.scrollOffset)
}

func (model *Model) registry() *unit.Registry {
	return model.engine.Registry(model.engine.Displayed())
}

// openStatus builds the status block for the selected unit and shows
// it in the overlay. Partial failures still show what was fetched.
func (model *Model) openStatus() {
	record := model.selected()
	if record == nil {
		return
	}
	builder := status.Builder{
		Conn:    model.engine.Conn(model.engine.Displayed()),
		Journal: model.journal,
		Clock:   model.clock,
		Lines:   model.logLines,
	}
	text, err := builder.Build(model.ctx, record)
	if err != nil {
		model.logger.Debug("status incomplete", "unit", record.Unit, "error", err)
	}
	model.overlay = &overlay{title: record.Unit, body: text}
}

// dispatch runs op on the selected unit. Refusals and failures open
// the overlay; success is noted in the status bar.
func (model *Model) dispatch(op dispatch.Operation) tea.Cmd {
	record := model.selected()
	if record == nil {
		return nil
	}
	scope := model.engine.Displayed()
	outcome := model.dispatcher.Dispatch(model.ctx, scope, model.engine.Conn(scope), model.registry(), record.Unit, op)

	if outcome.Kind != dispatch.OutcomeSucceeded {
		if outcome.Err != nil {
			model.logger.Debug("operation failed",
				"operation", op.String(),
				"unit", outcome.Unit,
				"scope", scope.String(),
				"error", outcome.Err,
			)
		}
		model.overlay = &overlay{
			title:   op.String() + " " + outcome.Unit,
			body:    outcome.Message(),
			isError: true,
		}
		return nil
	}

	now := model.clock.Now()
	for _, name := range outcome.Dirty {
		model.heat.Ignite(heatKey(scope, name), tui.HeatChange, now)
		model.registry().Acknowledge(name)
	}
	return model.setStatus(outcome.Message(), slog.LevelInfo)
}

// listHeight is the number of rows available to the unit list.
func (model *Model) listHeight() int {
	if model.height <= 0 {
		return defaultListHeight
	}
	height := model.height - chromeLines
	if model.filter.Active || model.filter.Input != "" {
		height--
	}
	return max(1, height)
}

// layout assigns screen rows to the visible window of the filtered
// list. Every registry is invalidated first, so only records of the
// displayed scope that are actually drawn hold a row.
func (model *Model) layout(preserve bool) {
	for _, scope := range model.engine.Scopes() {
		model.engine.Registry(scope).InvalidateScreenRows()
	}
	registry := model.registry()
	if registry == nil {
		model.total, model.cursor, model.scrollOffset = 0, 0, 0
		model.selectedName = ""
		model.highlights = nil
		return
	}

	var matched []*unit.Record
	highlights := make(map[string][]int)
	for n := 0; ; n++ {
		record := registry.NthVisible(n, model.mode)
		if record == nil {
			break
		}
		ok, positions := model.filter.Match(record.Unit)
		if !ok {
			continue
		}
		if len(positions) > 0 {
			highlights[record.Unit] = positions
		}
		matched = append(matched, record)
	}
	model.total = len(matched)
	model.highlights = highlights

	if preserve && model.selectedName != "" {
		index := slices.IndexFunc(matched, func(record *unit.Record) bool {
			return record.Unit == model.selectedName
		})
		if index >= 0 {
			model.cursor = index
		}
	}
	model.cursor = max(0, min(model.cursor, model.total-1))

	height := model.listHeight()
	if model.cursor < model.scrollOffset {
		model.scrollOffset = model.cursor
	}
	if model.cursor >= model.scrollOffset+height {
		model.scrollOffset = model.cursor - height + 1
	}
	model.scrollOffset = max(0, min(model.scrollOffset, model.total-height))

	for index := model.scrollOffset; index < min(model.total, model.scrollOffset+height); index++ {
		matched[index].ScreenRow = index - model.scrollOffset
	}
	model.selectedName = ""
	if model.total > 0 {
		model.selectedName = matched[model.cursor].Unit
	}
}

// View renders the header, the unit list with its scrollbar, the
// filter bar and the status bar, with any overlay on top.
func (model Model) View() string {
	width := model.width
	if width <= 0 {
		width = 80
	}
	height := model.listHeight()
	now := model.clock.Now()

	rows := make([]string, height)
	selectedRow := model.cursor - model.scrollOffset
	if registry := model.registry(); registry != nil {
		registry.Each(func(record *unit.Record) bool {
			if record.ScreenRow >= 0 && record.ScreenRow < height {
				rows[record.ScreenRow] = model.renderRow(record, width-1, record.ScreenRow == selectedRow, now)
			}
			return true
		})
	}
	blank := strings.Repeat(" ", max(0, width-1))
	for index, row := range rows {
		if row == "" {
			rows[index] = blank
		}
	}
	list := lipgloss.JoinHorizontal(lipgloss.Top,
		strings.Join(rows, "\n"),
		tui.RenderScrollbar(model.theme, height, model.total, height, model.scrollOffset),
	)

	sections := []string{
		model.renderHeader(width),
		model.renderColumnTitles(width),
		list,
	}
	if filterBar := model.filter.View(model.theme, width); filterBar != "" {
		sections = append(sections, filterBar)
	}
	sections = append(sections, model.renderStatusBar(width))
	view := strings.Join(sections, "\n")

	if model.overlay != nil {
		view = model.renderOverlay(view, width)
	}
	return view
}

func (model Model) renderHeader(width int) string {
	scope := model.engine.Displayed()
	registry := model.registry()
	count := 0
	if registry != nil {
		count = registry.Count(model.mode)
	}

	parts := []string{
		"servicemaster",
		scope.Label(),
		model.mode.Label() + ": " + strconv.Itoa(count),
	}
	if model.systemOnly {
		parts = append(parts, "system only")
	}
	if model.engine.State(scope) == engine.StateReloading {
		parts = append(parts, "reloading")
	}
	header := lipgloss.NewStyle().
		Foreground(model.theme.HeaderForeground).
		Background(model.theme.HeaderBackground).
		Bold(true)
	line := header.Render(" " + strings.Join(parts, " │ "))
	if model.engine.Stale(scope) {
		line += lipgloss.NewStyle().
			Foreground(model.theme.StaleText).
			Background(model.theme.HeaderBackground).
			Bold(true).
			Render(" │ not updating")
	}
	if fill := width - ansi.StringWidth(line); fill > 0 {
		line += header.Render(strings.Repeat(" ", fill))
	}
	return ansi.Truncate(line, width, "")
}

// columnWidths splits width among UNIT, STATE, ACTIVE, SUB and
// DESCRIPTION.
func columnWidths(width int) (unitWidth, descriptionWidth int) {
	fixed := stateWidth + activeWidth + subWidth + 4*columnGap
	remaining := max(0, width-fixed)
	unitWidth = max(12, remaining*45/100)
	descriptionWidth = max(0, remaining-unitWidth)
	return unitWidth, descriptionWidth
}

func (model Model) renderColumnTitles(width int) string {
	unitWidth, descriptionWidth := columnWidths(width - 1)
	title := pad("UNIT", unitWidth) + " " +
		pad("STATE", stateWidth) + " " +
		pad("ACTIVE", activeWidth) + " " +
		pad("SUB", subWidth) + " " +
		pad("DESCRIPTION", descriptionWidth)
	return lipgloss.NewStyle().
		Foreground(model.theme.FaintText).
		Bold(true).
		Width(width).
		MaxWidth(width).
		Render(title)
}

// renderRow draws one unit. The selected row is inverted; a row with
// pending heat gets the glow background instead.
func (model Model) renderRow(record *unit.Record, width int, selected bool, now time.Time) string {
	unitWidth, descriptionWidth := columnWidths(width)
	state := truncate(record.DisplayState(), stateWidth)

	if selected {
		row := pad(truncate(record.Unit, unitWidth), unitWidth) + " " +
			pad(state, stateWidth) + " " +
			pad(truncate(record.ActiveState, activeWidth), activeWidth) + " " +
			pad(truncate(record.SubState, subWidth), subWidth) + " " +
			pad(truncate(record.Description, descriptionWidth), descriptionWidth)
		return lipgloss.NewStyle().
			Foreground(model.theme.SelectedForeground).
			Background(model.theme.SelectedBackground).
			Bold(true).
			Width(width).
			MaxWidth(width).
			Render(row)
	}

	normal := lipgloss.NewStyle().Foreground(model.theme.NormalText)
	highlight := lipgloss.NewStyle().Foreground(model.theme.FilterMatchForeground).Bold(true)
	name := truncate(record.Unit, unitWidth)
	positions := model.highlights[record.Unit]
	nameCell := tui.HighlightMatches(name, positions, normal.Render, highlight.Render) +
		strings.Repeat(" ", max(0, unitWidth-ansi.StringWidth(name)))

	activeColor := model.theme.ActiveStateColor(record.ActiveState)
	row := nameCell + " " +
		lipgloss.NewStyle().Foreground(model.theme.FileStateColor(state)).Render(pad(state, stateWidth)) + " " +
		lipgloss.NewStyle().Foreground(activeColor).Render(pad(truncate(record.ActiveState, activeWidth), activeWidth)) + " " +
		lipgloss.NewStyle().Foreground(activeColor).Render(pad(truncate(record.SubState, subWidth), subWidth)) + " " +
		lipgloss.NewStyle().Foreground(model.theme.FaintText).Render(pad(truncate(record.Description, descriptionWidth), descriptionWidth))

	glowKey := heatKey(model.engine.Displayed(), record.Unit)
	if model.heat.Heat(glowKey, now) > 0 {
		accent := model.theme.HotAccentChange
		if model.heat.Kind(glowKey) == tui.HeatRemove {
			accent = model.theme.HotAccentRemove
		}
		return lipgloss.NewStyle().
			Background(accent).
			Width(width).
			MaxWidth(width).
			Render(row)
	}
	return ansi.Truncate(row, width, "")
}

func (model Model) renderStatusBar(width int) string {
	if model.statusMessage != "" {
		color := model.theme.HelpText
		if model.statusLevel >= slog.LevelWarn {
			color = model.theme.StateTransitional
		}
		if model.statusLevel >= slog.LevelError {
			color = model.theme.StateFailed
		}
		text := " " + strings.ReplaceAll(model.statusMessage, "\n", " ")
		return lipgloss.NewStyle().
			Foreground(color).
			Width(width).
			MaxWidth(width).
			Render(ansi.Truncate(text, width, "…"))
	}

	var parts []string
	for _, binding := range model.keys.helpBindings() {
		help := binding.Help()
		parts = append(parts, help.Key+" "+help.Desc)
	}
	text := " " + strings.Join(parts, "  ")
	return lipgloss.NewStyle().
		Foreground(model.theme.HelpText).
		Width(width).
		MaxWidth(width).
		Render(ansi.Truncate(text, width, "…"))
}

func (model Model) renderOverlay(view string, width int) string {
	screenHeight := model.height
	if screenHeight <= 0 {
		screenHeight = model.listHeight() + chromeLines
	}
	lines := strings.Split(strings.TrimRight(model.overlay.body, "\n"), "\n")
	scroll := min(model.overlay.scroll, max(0, len(lines)-1))
	body := strings.Join(lines[scroll:], "\n")

	accent := model.theme.BorderColor
	if model.overlay.isError {
		accent = model.theme.OverlayError
	}
	box := tui.RenderBox(model.theme, model.overlay.title, body,
		min(width-2, 110), max(3, screenHeight-2), accent)
	return tui.CenterOverlay(view, box, width, screenHeight)
}

// truncate shortens text to width cells, with no ellipsis so the STATE
// column keeps its first nine characters exactly.
func truncate(text string, width int) string {
	if width <= 0 {
		return ""
	}
	return ansi.Truncate(text, width, "")
}

func pad(text string, width int) string {
	if gap := width - ansi.StringWidth(text); gap > 0 {
		return text + strings.Repeat(" ", gap)
	}
	return text
}
