package monitor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/s22625/sqwatch/internal/engine"
	"github.com/s22625/sqwatch/internal/model"
)

type dashboardMode int

const (
	modeDashboard dashboardMode = iota
	modeFilter
	modeHelp
)

var errNoDispatcher = errors.New("no dispatcher configured")

// Dashboard is the bubbletea model for the monitor UI. It renders the
// engine's view model and forwards every key as an engine intent.
type Dashboard struct {
	monitor *Monitor
	engine  *engine.Engine
	vm      engine.ViewModel
	renders int

	cursor   int
	cursorID string
	offset   int
	width    int
	height   int

	mode   dashboardMode
	keymap KeyMap
	styles Styles
	help   help.Model
	input  textinput.Model

	prevPattern string
	prevMode    engine.FilterMode
	inspect     string

	refreshing      bool
	refreshInterval time.Duration
	now             func() time.Time
}

type tickMsg time.Time

type refreshMsg struct {
	snap model.Snapshot
	err  error
}

type outcomeMsg struct {
	outcome engine.Outcome
}

type execFinishedMsg struct {
	commit engine.Commit
	err    error
}

// NewDashboard creates a dashboard model.
func NewDashboard(m *Monitor) *Dashboard {
	input := textinput.New()
	input.Prompt = "/"
	input.Placeholder = "regex"
	input.CharLimit = 256

	d := &Dashboard{
		monitor:         m,
		engine:          m.engine,
		keymap:          DefaultKeyMap(),
		styles:          DefaultStyles(),
		help:            help.New(),
		input:           input,
		mode:            modeDashboard,
		refreshInterval: m.interval,
		now:             time.Now,
	}
	d.flush()
	return d
}

// Render implements engine.Renderer.
func (d *Dashboard) Render(vm engine.ViewModel) {
	d.vm = vm
	d.renders++
}

// Init implements tea.Model.
func (d *Dashboard) Init() tea.Cmd {
	return tea.Batch(d.startRefresh(), d.tickCmd())
}

// Update implements tea.Model. Engine changes made while handling msg are
// rendered once, after the handler returns.
func (d *Dashboard) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	cmd := d.update(msg)
	d.flush()
	return d, cmd
}

func (d *Dashboard) update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		d.width = msg.Width
		d.height = msg.Height
		d.help.Width = msg.Width
		d.ensureCursorVisible()
		return nil
	case refreshMsg:
		d.refreshing = false
		d.applyRefresh(msg)
		return nil
	case tickMsg:
		return tea.Batch(d.startRefresh(), d.tickCmd())
	case outcomeMsg:
		d.engine.HandleOutcome(msg.outcome)
		if msg.outcome.Action == engine.ActionInspect && msg.outcome.Err == nil {
			d.inspect = strings.TrimRight(msg.outcome.Output, "\n")
		}
		return d.startRefresh()
	case execFinishedMsg:
		d.engine.HandleOutcome(engine.Outcome{
			Action: msg.commit.Action,
			JobIDs: msg.commit.JobIDs,
			Err:    msg.err,
		})
		return d.startRefresh()
	case tea.KeyMsg:
		return d.handleKey(msg)
	default:
		return nil
	}
}

func (d *Dashboard) applyRefresh(msg refreshMsg) {
	if msg.err != nil {
		if errors.Is(msg.err, context.Canceled) {
			return
		}
		d.engine.ReportSourceError(msg.err)
		return
	}
	result := d.engine.Ingest(msg.snap)
	switch len(result.Vanished) {
	case 0:
	case 1:
		job := result.Vanished[0]
		d.engine.SetMessage(fmt.Sprintf("job %s (%s) left the queue", job.ID, job.DisplayName()))
	default:
		d.engine.SetMessage(fmt.Sprintf("%d jobs left the queue", len(result.Vanished)))
	}
}

func (d *Dashboard) flush() {
	if d.engine.Flush(d) {
		d.syncCursor()
	}
}

// View implements tea.Model.
func (d *Dashboard) View() string {
	if d.mode == modeHelp {
		return d.styles.Box.Render(d.viewHelp())
	}
	return d.styles.Box.Render(d.viewDashboard())
}

func (d *Dashboard) handleKey(msg tea.KeyMsg) tea.Cmd {
	if msg.Type == tea.KeyCtrlC {
		return tea.Quit
	}

	switch d.mode {
	case modeFilter:
		return d.handleFilterKey(msg)
	case modeHelp:
		d.mode = modeDashboard
		return nil
	default:
		return d.handleDashboardKey(msg)
	}
}

func (d *Dashboard) handleDashboardKey(msg tea.KeyMsg) tea.Cmd {
	k := d.keymap
	switch {
	case key.Matches(msg, k.Quit):
		return tea.Quit
	case key.Matches(msg, k.Help):
		d.mode = modeHelp
	case key.Matches(msg, k.Up):
		d.moveCursor(-1)
	case key.Matches(msg, k.Down):
		d.moveCursor(1)
	case key.Matches(msg, k.Toggle):
		if d.cursorID != "" {
			d.engine.Toggle(d.cursorID)
		}
	case key.Matches(msg, k.SelectAll):
		d.engine.SelectAllVisible()
	case key.Matches(msg, k.ClearAll):
		d.engine.ClearSelection()
	case key.Matches(msg, k.Filter):
		return d.enterFilterMode()
	case key.Matches(msg, k.BulkToggle):
		if _, err := d.engine.BulkToggle(); err != nil {
			d.engine.SetMessage(filterMessage(err))
		}
	case key.Matches(msg, k.Scheduled):
		_ = d.engine.ToggleSection(engine.SectionScheduled)
	case key.Matches(msg, k.Historical):
		_ = d.engine.ToggleSection(engine.SectionHistorical)
	case key.Matches(msg, k.Kill):
		if d.cursorID == "" {
			return nil
		}
		if err := d.engine.RequestKill(d.cursorID); err != nil {
			d.engine.SetMessage(err.Error())
		}
	case key.Matches(msg, k.KillBatch):
		if err := d.engine.RequestBatchKill(); err != nil {
			if errors.Is(err, engine.ErrEmptyTarget) {
				d.engine.SetMessage("nothing selected")
			} else {
				d.engine.SetMessage(err.Error())
			}
		}
	case key.Matches(msg, k.Confirm):
		return d.confirm()
	case key.Matches(msg, k.Cancel):
		d.cancel()
	case key.Matches(msg, k.Inspect):
		if d.cursorID == "" {
			return nil
		}
		commit, err := d.engine.Resolve(engine.ActionInspect, d.cursorID)
		if err != nil {
			d.engine.SetMessage(err.Error())
			return nil
		}
		return d.dispatchCmd(commit)
	case key.Matches(msg, k.Attach):
		return d.interactiveCmd(engine.ActionAttach)
	case key.Matches(msg, k.Ssh):
		return d.interactiveCmd(engine.ActionSsh)
	case key.Matches(msg, k.Refresh):
		return d.startRefresh()
	}
	return nil
}

func (d *Dashboard) enterFilterMode() tea.Cmd {
	d.prevPattern = d.vm.Filter.Pattern
	d.prevMode = d.vm.Filter.Mode
	d.input.SetValue(d.prevPattern)
	d.input.CursorEnd()
	d.mode = modeFilter
	return d.input.Focus()
}

func (d *Dashboard) handleFilterKey(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, d.keymap.FilterAbort):
		d.leaveFilterMode()
		if d.prevPattern == "" {
			d.engine.ClearFilter()
			return nil
		}
		_ = d.engine.SetFilter(d.prevPattern)
		if d.prevMode == engine.FilterArmed {
			_ = d.engine.ArmFilter()
		}
		return nil
	case key.Matches(msg, d.keymap.FilterApply):
		d.leaveFilterMode()
		if strings.TrimSpace(d.input.Value()) == "" {
			d.engine.ClearFilter()
			return nil
		}
		if err := d.engine.ArmFilter(); err != nil {
			d.engine.SetMessage(filterMessage(err))
		}
		return nil
	}

	before := d.input.Value()
	var cmd tea.Cmd
	d.input, cmd = d.input.Update(msg)
	if after := d.input.Value(); after != before {
		_ = d.engine.SetFilter(after)
	}
	return cmd
}

func (d *Dashboard) leaveFilterMode() {
	d.input.Blur()
	d.mode = modeDashboard
}

func filterMessage(err error) string {
	switch {
	case errors.Is(err, engine.ErrNoFilter):
		return "no filter set, press / first"
	case errors.Is(err, engine.ErrInvalidPattern):
		return err.Error()
	default:
		return fmt.Sprintf("filter: %v", err)
	}
}

// confirm resolves y against the armed batch first, then the cursor row, then
// any other row waiting for confirmation.
func (d *Dashboard) confirm() tea.Cmd {
	if d.vm.Batch.Armed {
		commit, err := d.engine.ConfirmBatchKill()
		if err != nil {
			return nil
		}
		return d.dispatchCmd(commit)
	}
	id := d.pendingTarget()
	if id == "" {
		d.engine.SetMessage("nothing to confirm")
		return nil
	}
	commit, err := d.engine.ConfirmKill(id)
	if err != nil {
		return nil
	}
	return d.dispatchCmd(commit)
}

func (d *Dashboard) cancel() {
	if d.vm.Batch.Armed {
		_ = d.engine.CancelBatchKill()
		return
	}
	if id := d.pendingTarget(); id != "" {
		_ = d.engine.CancelKill(id)
	}
}

func (d *Dashboard) pendingTarget() string {
	if row, ok := d.vm.Row(d.cursorID); ok && row.PendingKill {
		return row.Job.ID
	}
	for _, row := range d.vm.Rows() {
		if row.PendingKill {
			return row.Job.ID
		}
	}
	return ""
}

func (d *Dashboard) interactiveCmd(action engine.Action) tea.Cmd {
	if d.cursorID == "" {
		return nil
	}
	commit, err := d.engine.Resolve(action, d.cursorID)
	if err != nil {
		d.engine.SetMessage(err.Error())
		return nil
	}
	if d.monitor.opensWindows() {
		return d.dispatchCmd(commit)
	}
	if d.monitor.interactive == nil {
		d.engine.SetMessage(fmt.Sprintf("%s needs an interactive terminal", action))
		return nil
	}
	cmd, err := d.monitor.interactive.Command(commit)
	if err != nil {
		d.engine.HandleOutcome(engine.Outcome{Action: action, JobIDs: commit.JobIDs, Err: err})
		return nil
	}
	d.monitor.log.Info().Str("action", string(action)).Strs("job_ids", commit.JobIDs).Strs("argv", cmd.Args).Msg("exec interactive")
	return tea.ExecProcess(cmd, func(err error) tea.Msg {
		return execFinishedMsg{commit: commit, err: err}
	})
}

func (d *Dashboard) dispatchCmd(commit engine.Commit) tea.Cmd {
	m := d.monitor
	if m.dispatcher == nil {
		d.engine.HandleOutcome(engine.Outcome{Action: commit.Action, JobIDs: commit.JobIDs, Err: errNoDispatcher})
		return nil
	}
	ctx := m.ctx
	return func() tea.Msg {
		done := make(chan engine.Outcome, 1)
		m.dispatcher.Dispatch(ctx, commit, func(o engine.Outcome) {
			done <- o
		})
		select {
		case o := <-done:
			return outcomeMsg{outcome: o}
		case <-ctx.Done():
			return nil
		}
	}
}

func (d *Dashboard) startRefresh() tea.Cmd {
	if d.refreshing {
		return nil
	}
	d.refreshing = true
	return d.refreshCmd()
}

func (d *Dashboard) refreshCmd() tea.Cmd {
	m := d.monitor
	return func() tea.Msg {
		snap, err := m.source.FetchSnapshot(m.ctx)
		return refreshMsg{snap: snap, err: err}
	}
}

func (d *Dashboard) tickCmd() tea.Cmd {
	return tea.Tick(d.refreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (d *Dashboard) moveCursor(delta int) {
	rows := d.vm.Rows()
	if len(rows) == 0 {
		return
	}
	d.cursor += delta
	if d.cursor < 0 {
		d.cursor = 0
	}
	if d.cursor >= len(rows) {
		d.cursor = len(rows) - 1
	}
	d.cursorID = rows[d.cursor].Job.ID
	d.ensureCursorVisible()
}

// syncCursor keeps the cursor on the same job across snapshots. When the job
// is gone the cursor stays at the same position.
func (d *Dashboard) syncCursor() {
	rows := d.vm.Rows()
	if len(rows) == 0 {
		d.cursor = 0
		d.cursorID = ""
		d.offset = 0
		return
	}
	for i, row := range rows {
		if row.Job.ID == d.cursorID {
			d.cursor = i
			d.ensureCursorVisible()
			return
		}
	}
	if d.cursor >= len(rows) {
		d.cursor = len(rows) - 1
	}
	if d.cursor < 0 {
		d.cursor = 0
	}
	d.cursorID = rows[d.cursor].Job.ID
	d.ensureCursorVisible()
}

func (d *Dashboard) ensureCursorVisible() {
	visible := d.tableMaxLines()
	if visible <= 0 {
		d.offset = 0
		return
	}
	line := d.cursorLine()
	if line < d.offset {
		d.offset = line
	}
	if line >= d.offset+visible {
		d.offset = line - visible + 1
	}
	if d.offset < 0 {
		d.offset = 0
	}
}

// cursorLine is the cursor's index among table lines, section headers
// included.
func (d *Dashboard) cursorLine() int {
	line := 0
	for _, section := range d.vm.Sections {
		line++
		for _, row := range section.Jobs {
			if row.Job.ID == d.cursorID {
				return line
			}
			line++
		}
	}
	return 0
}

func (d *Dashboard) viewDashboard() string {
	var b strings.Builder
	b.WriteString(d.renderTitle())
	b.WriteString("\n")
	if line := d.renderFilter(); line != "" {
		b.WriteString(line)
		b.WriteString("\n")
	}
	if d.vm.Batch.Armed {
		b.WriteString(d.styles.KillAsk.Render(fmt.Sprintf("kill %d selected jobs (%s)? y/n",
			len(d.vm.Batch.Targets), strings.Join(d.vm.Batch.Targets, ","))))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(d.renderTable())
	if d.vm.Message != "" {
		b.WriteString("\n")
		b.WriteString(d.styles.Message.Render(truncate(d.vm.Message, d.safeWidth())))
	}
	if d.inspect != "" {
		b.WriteString("\n")
		b.WriteString(d.renderInspect())
	}
	b.WriteString("\n\n")
	b.WriteString(d.renderFooter())
	return b.String()
}

func (d *Dashboard) renderTitle() string {
	s := d.styles
	vm := d.vm
	parts := []string{
		s.Title.Render("sqwatch"),
		s.Muted.Render(checkboxTri(vm.Header)),
		s.Normal.Render(fmt.Sprintf("%d/%d visible selected", vm.VisibleSelected, vm.VisibleCount)),
	}
	if hidden := vm.SelectedTotal - vm.VisibleSelected; hidden > 0 {
		parts = append(parts, s.Muted.Render(fmt.Sprintf("(+%d not shown)", hidden)))
	}
	switch {
	case !vm.Source.Polled && !vm.Source.Unavailable:
		parts = append(parts, s.Muted.Render("waiting for first poll"))
	case vm.Source.Polled:
		parts = append(parts, s.Muted.Render("updated "+formatRelativeTime(vm.Source.LastPoll, d.now())))
	}
	if d.refreshing {
		parts = append(parts, s.Muted.Render("⟳"))
	}
	line := strings.Join(parts, "  ")
	if vm.Source.Unavailable {
		line += "\n" + s.Warning.Render(truncate("source unavailable: "+vm.Source.Error, d.safeWidth()))
	}
	return line
}

func (d *Dashboard) renderFilter() string {
	s := d.styles
	if d.mode == modeFilter {
		line := d.input.View()
		if d.vm.Filter.Error != "" {
			line += "  " + s.Error.Render(d.vm.Filter.Error)
		} else if d.vm.Filter.Pattern != "" {
			line += "  " + s.Muted.Render(fmt.Sprintf("%d matches", d.vm.HighlightCount()))
		}
		return line
	}
	f := d.vm.Filter
	if f.Pattern == "" {
		return ""
	}
	if f.Error != "" {
		return s.Error.Render(truncate(f.Error, d.safeWidth()))
	}
	label := fmt.Sprintf("filter /%s/ %d matches", f.Pattern, d.vm.HighlightCount())
	if f.Mode == engine.FilterArmed {
		label += "  [*] toggles matches"
	}
	return s.Match.Render(truncate(label, d.safeWidth()))
}

func (d *Dashboard) renderTable() string {
	s := d.styles
	nameW := d.nameWidth()

	var lines []string
	for _, section := range d.vm.Sections {
		lines = append(lines, d.renderSectionHeader(section))
		for _, row := range section.Jobs {
			lines = append(lines, d.renderRow(row, row.Job.ID == d.cursorID, nameW))
		}
	}
	if limit := d.tableMaxLines(); limit > 0 && len(lines) > limit {
		end := d.offset + limit
		if end > len(lines) {
			end = len(lines)
		}
		lines = lines[d.offset:end]
	}

	header := "  " + strings.Join([]string{
		pad("", s.ColCheck, s.Header),
		pad("ID", s.ColID, s.Header),
		pad("NAME", nameW, s.Header),
		pad("STATUS", s.ColStatus, s.Header),
		pad("ELAPSED", s.ColElapsed, s.Header),
		pad("NODES", s.ColNodes, s.Header),
	}, " ")
	body := strings.Join(lines, "\n")
	if d.vm.Source.Polled && d.vm.VisibleCount == 0 && allEmpty(d.vm.Sections) {
		body += "\n" + s.Muted.Render("  no jobs")
	}
	return header + "\n" + body
}

func allEmpty(sections []engine.SectionView) bool {
	for _, section := range sections {
		if section.Total > 0 {
			return false
		}
	}
	return true
}

func (d *Dashboard) renderSectionHeader(section engine.SectionView) string {
	s := d.styles
	indicator := s.IndicatorCollapsed
	if section.Expanded {
		indicator = s.IndicatorExpanded
	}
	label := strings.ToUpper(section.Section.String())
	var count string
	switch {
	case !section.Expanded:
		count = fmt.Sprintf("(%d hidden)", section.Hidden)
	case section.Hidden > 0:
		count = fmt.Sprintf("(%d, %d hidden)", len(section.Jobs), section.Hidden)
	default:
		count = fmt.Sprintf("(%d)", len(section.Jobs))
	}
	return s.Section.Render(fmt.Sprintf("%s %s %s", indicator, label, count))
}

func (d *Dashboard) renderRow(row engine.JobView, cursor bool, nameW int) string {
	s := d.styles
	base := s.Normal
	marker := "  "
	if cursor {
		base = s.Cursor
		marker = "> "
	}
	nameStyle := base
	if row.Highlighted {
		nameStyle = s.Match
	}
	job := row.Job
	line := marker + strings.Join([]string{
		pad(checkbox(row.Selected), s.ColCheck, base),
		pad(job.ID, s.ColID, base),
		pad(job.DisplayName(), nameW, nameStyle),
		pad(string(job.Status), s.ColStatus, s.StatusStyle(job.Status)),
		pad(job.Elapsed, s.ColElapsed, base),
		pad(job.NodeList, s.ColNodes, base),
	}, " ")
	if row.PendingKill {
		line += " " + s.KillAsk.Render("kill? y/n")
	}
	return line
}

func (d *Dashboard) renderInspect() string {
	lines := strings.Split(d.inspect, "\n")
	if len(lines) > inspectMaxLines {
		lines = append(lines[:inspectMaxLines], "...")
	}
	width := d.safeWidth()
	for i, line := range lines {
		lines[i] = truncate(line, width)
	}
	return d.styles.Muted.Render(strings.Join(lines, "\n"))
}

func (d *Dashboard) renderFooter() string {
	if d.mode == modeFilter {
		return d.help.View(filterKeyMap{d.keymap})
	}
	return d.help.View(d.keymap)
}

func (d *Dashboard) viewHelp() string {
	h := d.help
	h.ShowAll = true
	var b strings.Builder
	b.WriteString(d.styles.Title.Render("sqwatch keys"))
	b.WriteString("\n\n")
	b.WriteString(h.View(d.keymap))
	b.WriteString("\n\n")
	b.WriteString(d.styles.Muted.Render("press any key to return"))
	return b.String()
}

func (d *Dashboard) nameWidth() int {
	s := d.styles
	if d.width <= 0 {
		return 24
	}
	fixed := 2 + s.ColCheck + s.ColID + s.ColStatus + s.ColElapsed + s.ColNodes + 5
	w := d.safeWidth() - fixed - lipgloss.Width(" kill? y/n")
	if w < minNameWidth {
		return minNameWidth
	}
	return w
}

func (d *Dashboard) safeWidth() int {
	if d.width <= 0 {
		return 120
	}
	w := d.width - d.styles.Box.GetHorizontalFrameSize()
	if w < 20 {
		return 20
	}
	return w
}

// tableMaxLines is the number of table lines that fit; zero means no limit.
func (d *Dashboard) tableMaxLines() int {
	if d.height <= 0 {
		return 0
	}
	// title, filter, batch prompt, blank, column header, message, two footer lines
	reserved := 9 + d.styles.Box.GetVerticalFrameSize()
	if d.inspect != "" {
		reserved += inspectMaxLines + 1
	}
	if n := d.height - reserved; n > 1 {
		return n
	}
	return 1
}

func checkboxTri(t engine.TriState) string {
	switch t {
	case engine.TriChecked:
		return "[x]"
	case engine.TriIndeterminate:
		return "[-]"
	default:
		return "[ ]"
	}
}
