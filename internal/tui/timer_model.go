package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/balkashynov/tally/internal/db"
	"github.com/balkashynov/tally/internal/models"
)

// timerKeys are the bindings shown in the help bar
type timerKeys struct {
	Pause key.Binding
	Stop  key.Binding
	Quit  key.Binding
}

func (k timerKeys) ShortHelp() []key.Binding {
	return []key.Binding{k.Pause, k.Stop, k.Quit}
}

func (k timerKeys) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

func defaultTimerKeys() timerKeys {
	return timerKeys{
		Pause: key.NewBinding(key.WithKeys("p", "P", " "), key.WithHelp("p", "pause/resume")),
		Stop:  key.NewBinding(key.WithKeys("s", "S"), key.WithHelp("s", "stop & save")),
		Quit:  key.NewBinding(key.WithKeys("q", "esc", "ctrl+c"), key.WithHelp("q/esc", "exit (keep running)")),
	}
}

// TimerModel shows a live session and drives pause, resume and stop
type TimerModel struct {
	width  int
	height int

	ctx      context.Context
	sessions db.SessionManager
	now      func() time.Time

	session  models.TrackingSession
	category string
	elapsed  time.Duration

	keys timerKeys
	help help.Model

	busy    bool // a store call is in flight
	err     error
	stopped *models.TimeEntry
	exiting bool
}

// timerTickMsg is sent every second to refresh the clock
type timerTickMsg time.Time

// sessionMsg carries the session after a pause or resume
type sessionMsg struct{ session *models.TrackingSession }

// stoppedMsg carries the entry a stopped session became
type stoppedMsg struct{ entry *models.TimeEntry }

type errMsg struct{ err error }

// NewTimerModel creates a timer over a live session. category is the display name of its category.
func NewTimerModel(ctx context.Context, sessions db.SessionManager, session *models.TrackingSession, category string) TimerModel {
	m := TimerModel{
		ctx:      ctx,
		sessions: sessions,
		now:      time.Now,
		session:  *session,
		category: category,
		keys:     defaultTimerKeys(),
		help:     help.New(),
	}
	m.elapsed = m.session.ElapsedAsOf(m.now())
	return m
}

// Stopped returns the saved entry once the user stopped the session
func (m TimerModel) Stopped() *models.TimeEntry { return m.stopped }

// Exiting reports whether the user left the timer with the session still live
func (m TimerModel) Exiting() bool { return m.exiting }

// Session returns the latest known state of the session
func (m TimerModel) Session() models.TrackingSession { return m.session }

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return timerTickMsg(t) })
}

// Init starts the clock
func (m TimerModel) Init() tea.Cmd {
	return tick()
}

// Update handles messages
func (m TimerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case timerTickMsg:
		m.elapsed = m.session.ElapsedAsOf(m.now())
		if m.done() {
			return m, nil
		}
		return m, tick()

	case sessionMsg:
		m.busy = false
		m.err = nil
		m.session = *msg.session
		m.elapsed = m.session.ElapsedAsOf(m.now())
		return m, nil

	case stoppedMsg:
		m.busy = false
		m.stopped = msg.entry
		return m, tea.Quit

	case errMsg:
		m.busy = false
		m.err = msg.err
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.exiting = true
			return m, tea.Quit
		case m.busy:
			return m, nil
		case key.Matches(msg, m.keys.Pause):
			m.busy = true
			return m, m.toggle()
		case key.Matches(msg, m.keys.Stop):
			m.busy = true
			return m, m.stop()
		}
	}

	return m, nil
}

func (m TimerModel) done() bool {
	return m.stopped != nil || m.exiting
}

// toggle pauses an active session and resumes a paused one
func (m TimerModel) toggle() tea.Cmd {
	ctx, sessions, id, state := m.ctx, m.sessions, m.session.ID, m.session.State
	return func() tea.Msg {
		var (
			s   *models.TrackingSession
			err error
		)
		if state == models.SessionPaused {
			s, err = sessions.Resume(ctx, id)
		} else {
			s, err = sessions.Pause(ctx, id)
		}
		if err != nil {
			return errMsg{err}
		}
		return sessionMsg{s}
	}
}

func (m TimerModel) stop() tea.Cmd {
	ctx, sessions, id := m.ctx, m.sessions, m.session.ID
	return func() tea.Msg {
		entry, err := sessions.Stop(ctx, id, nil)
		if err != nil {
			return errMsg{err}
		}
		return stoppedMsg{entry}
	}
}

// View renders the timer TUI
func (m TimerModel) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	helpBar := lipgloss.NewStyle().
		Align(lipgloss.Center).
		Width(m.width).
		Render(m.help.View(m.keys))

	// Leave room for the help bar and a gap
	contentHeight := m.height - 2

	if m.width < 90 {
		return lipgloss.JoinVertical(lipgloss.Left,
			m.renderTimerPanel(m.width, contentHeight),
			helpBar,
		)
	}

	leftWidth := m.width / 2
	rightWidth := m.width - leftWidth - 2

	content := lipgloss.JoinHorizontal(lipgloss.Top,
		m.renderTimerPanel(leftWidth, contentHeight),
		"  ",
		m.renderDetailsPanel(rightWidth, contentHeight),
	)
	return lipgloss.JoinVertical(lipgloss.Left, content, helpBar)
}

func (m TimerModel) paused() bool {
	return m.session.State == models.SessionPaused
}

// renderTimerPanel renders the state header, the big clock and the start time
func (m TimerModel) renderTimerPanel(width, height int) string {
	center := lipgloss.NewStyle().Align(lipgloss.Center).Width(width)

	header, color := "⏱  TRACKING TIME  ⏱", ColorAccentBright
	if m.paused() {
		header, color = "⏸  PAUSED  ⏸", ColorWarning
	}

	components := []string{
		center.Foreground(lipgloss.Color(color)).Bold(true).Render(header),
	}

	if m.session.Description != "" {
		desc := m.session.Description
		if width > 7 && len(desc) > width-4 {
			desc = desc[:width-7] + "..."
		}
		components = append(components,
			center.Foreground(lipgloss.Color(ColorPrimaryText)).Bold(true).Render(desc))
	}

	var clock []string
	for _, line := range strings.Split(renderBigClock(m.elapsed, color), "\n") {
		clock = append(clock, center.Render(line))
	}
	components = append(components, strings.Join(clock, "\n"))

	info := fmt.Sprintf("Started at %s", m.session.StartTime.Local().Format("15:04:05"))
	if p := m.session.PausedAsOf(m.now()); p > 0 {
		info += fmt.Sprintf(" · paused %s", p.Round(time.Second))
	}
	components = append(components,
		center.Foreground(lipgloss.Color(ColorSecondaryText)).Italic(true).Render(info))

	if m.err != nil {
		components = append(components,
			center.Foreground(lipgloss.Color(ColorError)).Render("✗ "+m.err.Error()))
	}

	return lipgloss.NewStyle().
		Width(width).
		Height(height).
		Align(lipgloss.Center, lipgloss.Center).
		Render(strings.Join(components, "\n\n"))
}

// renderDetailsPanel shows what the session will be recorded against
func (m TimerModel) renderDetailsPanel(width, height int) string {
	label := lipgloss.NewStyle().Foreground(lipgloss.Color(ColorSecondaryText))
	value := func(s string) string {
		if s == "" {
			return lipgloss.NewStyle().Foreground(lipgloss.Color(ColorDisabledText)).Render("none")
		}
		return lipgloss.NewStyle().Foreground(lipgloss.Color(ColorAccentBright)).Render(s)
	}

	project, task := "", ""
	if m.session.ProjectID != nil {
		project = m.session.ProjectID.String()
	}
	if m.session.TaskID != nil {
		task = m.session.TaskID.String()
	}

	lines := []string{
		lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color(ColorAccentMain)).
			Render("tally"),
		"",
		label.Render("Category: ") + value(m.category),
		label.Render("Project:  ") + value(project),
		label.Render("Task:     ") + value(task),
		label.Render("Session:  ") + value(m.session.ID.String()),
	}

	return lipgloss.NewStyle().
		Width(width).
		Height(height).
		Padding(1, 2).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(ColorBorder)).
		Render(strings.Join(lines, "\n"))
}

// digits are 5x5 glyphs for the big clock
var digits = map[rune][5]string{
	'0': {" ███ ", "█   █", "█   █", "█   █", " ███ "},
	'1': {"  █  ", " ██  ", "  █  ", "  █  ", "█████"},
	'2': {" ███ ", "█   █", "   █ ", "  █  ", "█████"},
	'3': {" ███ ", "█   █", "  ██ ", "█   █", " ███ "},
	'4': {"█   █", "█   █", "█████", "    █", "    █"},
	'5': {"█████", "█    ", "████ ", "    █", "████ "},
	'6': {" ███ ", "█    ", "████ ", "█   █", " ███ "},
	'7': {"█████", "    █", "   █ ", "  █  ", " █   "},
	'8': {" ███ ", "█   █", " ███ ", "█   █", " ███ "},
	'9': {" ███ ", "█   █", " ████", "    █", " ███ "},
	':': {"     ", "  █  ", "     ", "  █  ", "     "},
}

// clockText renders d as HH:MM:SS, or MM:SS below an hour
func clockText(d time.Duration) string {
	h := int(d.Hours())
	mi := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, mi, s)
	}
	return fmt.Sprintf("%02d:%02d", mi, s)
}

func renderBigClock(d time.Duration, color string) string {
	var lines [5]strings.Builder
	for _, r := range clockText(d) {
		glyph, ok := digits[r]
		if !ok {
			continue
		}
		for i := range lines {
			lines[i].WriteString(glyph[i])
			lines[i].WriteString(" ")
		}
	}

	style := lipgloss.NewStyle().Foreground(lipgloss.Color(color)).Bold(true)
	out := make([]string, len(lines))
	for i := range lines {
		out[i] = style.Render(lines[i].String())
	}
	return strings.Join(out, "\n")
}
