package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"

	"github.com/balkashynov/tally/internal/models"
	"github.com/balkashynov/tally/internal/parser"
)

// EntryListModel browses time entries with a details panel and a search filter
type EntryListModel struct {
	width  int
	height int

	entries    []models.TimeEntry
	categories map[uuid.UUID]string

	// indices into entries that match the search
	visible  []int
	selected int // position in visible

	search       textinput.Model
	searchActive bool

	currentPage int
	perPage     int
}

// NewEntryListModel creates a browser over entries. categories maps category ids to names.
func NewEntryListModel(entries []models.TimeEntry, categories map[uuid.UUID]string) EntryListModel {
	search := textinput.New()
	search.Prompt = "Search: "
	search.CharLimit = 100

	m := EntryListModel{
		entries:    entries,
		categories: categories,
		search:     search,
		perPage:    10,
	}
	m.applyFilter()
	return m
}

// Init initializes the model
func (m EntryListModel) Init() tea.Cmd {
	return nil
}

// Update handles messages
func (m EntryListModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		// header, column titles, pagination, help and borders
		m.perPage = max(m.height-12, 3)
		m.currentPage = m.pageOf(m.selected)
		return m, nil

	case tea.KeyMsg:
		if m.searchActive {
			return m.handleSearchKeys(msg)
		}

		switch msg.String() {
		case "ctrl+c", "q", "esc":
			return m, tea.Quit
		case "up", "k":
			return m.moveSelection(-1), nil
		case "down", "j":
			return m.moveSelection(1), nil
		case "left", "h":
			return m.turnPage(-1), nil
		case "right", "l":
			return m.turnPage(1), nil
		case "/":
			m.searchActive = true
			cmd := m.search.Focus()
			return m, cmd
		}
	}

	return m, nil
}

// handleSearchKeys edits the query and filters as the user types
func (m EntryListModel) handleSearchKeys(msg tea.KeyMsg) (EntryListModel, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.searchActive = false
		m.search.Blur()
		m.search.SetValue("")
		m.applyFilter()
		return m, nil
	case "enter":
		m.searchActive = false
		m.search.Blur()
		return m, nil
	}

	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	m.applyFilter()
	return m, cmd
}

// applyFilter keeps entries whose description or category contains the query
func (m *EntryListModel) applyFilter() {
	query := strings.ToLower(strings.TrimSpace(m.search.Value()))
	m.visible = make([]int, 0, len(m.entries))
	for i, e := range m.entries {
		if query == "" ||
			strings.Contains(strings.ToLower(e.Description), query) ||
			strings.Contains(strings.ToLower(m.categories[e.CategoryID]), query) {
			m.visible = append(m.visible, i)
		}
	}
	m.selected = 0
	m.currentPage = 0
}

// Selected returns the highlighted entry, if any
func (m EntryListModel) Selected() (models.TimeEntry, bool) {
	if m.selected >= len(m.visible) {
		return models.TimeEntry{}, false
	}
	return m.entries[m.visible[m.selected]], true
}

func (m EntryListModel) pageOf(i int) int {
	if m.perPage <= 0 {
		return 0
	}
	return i / m.perPage
}

func (m EntryListModel) pages() int {
	return max((len(m.visible)+m.perPage-1)/m.perPage, 1)
}

func (m EntryListModel) moveSelection(delta int) EntryListModel {
	next := m.selected + delta
	if next < 0 || next >= len(m.visible) {
		return m
	}
	m.selected = next
	m.currentPage = m.pageOf(next)
	return m
}

// turnPage moves to the neighbouring page and selects its first row
func (m EntryListModel) turnPage(delta int) EntryListModel {
	next := m.currentPage + delta
	if next < 0 || next >= m.pages() {
		return m
	}
	m.currentPage = next
	m.selected = next * m.perPage
	return m
}

// View renders the TUI
func (m EntryListModel) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	leftWidth := m.width * 60 / 100
	rightWidth := m.width - leftWidth - 1

	content := lipgloss.JoinHorizontal(lipgloss.Top,
		m.renderTable(leftWidth),
		" ",
		m.renderDetails(rightWidth),
	)

	bottom := m.renderHelpBar()
	if m.searchActive {
		bottom = lipgloss.NewStyle().
			Foreground(lipgloss.Color(ColorPrimaryText)).
			Background(lipgloss.Color(ColorBorder)).
			Padding(0, 1).
			Width(m.width - 2).
			Render(m.search.View())
	}

	return lipgloss.JoinVertical(lipgloss.Left, "", content, "", bottom)
}

func (m EntryListModel) categoryName(id uuid.UUID) string {
	if name, ok := m.categories[id]; ok {
		return name
	}
	return id.String()[:8]
}

func truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	if len(s) <= width {
		return s
	}
	if width > 3 {
		return s[:width-3] + "..."
	}
	return s[:width]
}

// renderTable renders the left panel with one row per entry
func (m EntryListModel) renderTable(width int) string {
	var b strings.Builder

	accent := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(ColorAccentBright))
	b.WriteString(accent.Render("🕒 Time entries"))
	b.WriteString("\n\n")

	if len(m.visible) == 0 {
		b.WriteString(lipgloss.NewStyle().
			Foreground(lipgloss.Color(ColorSecondaryText)).
			Italic(true).
			Render("No entries found"))
		return lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(ColorBorder)).
			Width(width).
			Render(b.String())
	}

	dateWidth, durWidth, catWidth := 16, 7, 14
	descWidth := max(width-4-dateWidth-durWidth-catWidth-6, 12)

	headers := fmt.Sprintf("%-*s %-*s %-*s %-*s",
		dateWidth, "START",
		durWidth, "TIME",
		catWidth, "CATEGORY",
		descWidth, "DESCRIPTION")
	b.WriteString(accent.Padding(0, 1).Render(headers))
	b.WriteString("\n\n")

	start := m.currentPage * m.perPage
	end := min(start+m.perPage, len(m.visible))
	for pos := start; pos < end; pos++ {
		e := m.entries[m.visible[pos]]

		dur := "open"
		durColor := ColorWarning
		if e.Bounded() {
			dur = parser.FormatDuration(e.Duration())
			durColor = ColorSecondaryText
		}

		row := fmt.Sprintf("%-*s %s %-*s %-*s",
			dateWidth, e.StartTime.Local().Format("Mon 02 Jan 15:04"),
			lipgloss.NewStyle().Foreground(lipgloss.Color(durColor)).Width(durWidth).Render(dur),
			catWidth, truncate(m.categoryName(e.CategoryID), catWidth),
			descWidth, truncate(e.Description, descWidth))

		if pos == m.selected {
			b.WriteString(lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color(ColorAccentMain)).
				Bold(true).
				Padding(0, 1).
				Render(row))
		} else {
			b.WriteString(" " + row)
		}
		b.WriteString("\n")
	}

	if m.pages() > 1 {
		b.WriteString(lipgloss.NewStyle().
			Foreground(lipgloss.Color(ColorHelpText)).
			Align(lipgloss.Center).
			Width(width - 2).
			MarginTop(1).
			Render(fmt.Sprintf("Page %d/%d (%d entries)", m.currentPage+1, m.pages(), len(m.visible))))
	}

	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(ColorBorder)).
		Width(width).
		Render(b.String())
}

// renderDetails renders the selected entry
func (m EntryListModel) renderDetails(width int) string {
	var b strings.Builder

	e, ok := m.Selected()
	if !ok {
		b.WriteString(lipgloss.NewStyle().
			Foreground(lipgloss.Color(ColorSecondaryText)).
			Italic(true).
			Align(lipgloss.Center).
			Width(width).
			Render("Select an entry to view details"))
	} else {
		label := lipgloss.NewStyle().Foreground(lipgloss.Color(ColorSecondaryText))
		value := lipgloss.NewStyle().Foreground(lipgloss.Color(ColorAccentBright))
		line := func(name, v string) {
			b.WriteString(label.Render(name+": ") + value.Render(v) + "\n")
		}

		title := e.Description
		if title == "" {
			title = "(no description)"
		}
		b.WriteString(lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color(ColorPrimaryText)).
			Width(width - 2).
			Render(title))
		b.WriteString("\n\n")

		line("Category", m.categoryName(e.CategoryID))
		line("Start", e.StartTime.Local().Format("2006-01-02 15:04"))
		if e.Bounded() {
			line("End", e.EndTime.Local().Format("2006-01-02 15:04"))
			line("Duration", parser.FormatDuration(e.Duration()))
		} else {
			b.WriteString(label.Render("End: ") +
				lipgloss.NewStyle().Foreground(lipgloss.Color(ColorWarning)).Render("open") + "\n")
		}
		line("Source", string(e.Source))
		if e.ProjectID != nil {
			line("Project", e.ProjectID.String())
		}
		if e.TaskID != nil {
			line("Task", e.TaskID.String())
		}
		if e.TimesheetID != nil {
			line("Timesheet", e.TimesheetID.String())
		}
		b.WriteString("\n")
		b.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color(ColorDisabledText)).Render(e.ID.String()))
	}

	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(ColorBorder)).
		Width(width).
		Render(b.String())
}

func (m EntryListModel) renderHelpBar() string {
	return lipgloss.NewStyle().
		Foreground(lipgloss.Color(ColorHelpText)).
		Italic(true).
		Align(lipgloss.Center).
		Width(m.width).
		Render("↑/↓ nav · ←/→ page · / search · q/esc quit")
}
