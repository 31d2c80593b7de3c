package tui

import (
	"context"
	"fmt"
	"io"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"

	"github.com/balkashynov/tally/internal/db"
	"github.com/balkashynov/tally/internal/models"
	"github.com/balkashynov/tally/internal/parser"
)

// RunSessionTimer shows the live timer for session until the user stops it or leaves.
// It returns the saved entry when the session was stopped, nil otherwise.
func RunSessionTimer(ctx context.Context, sessions db.SessionManager, session *models.TrackingSession, category string, out io.Writer) (*models.TimeEntry, error) {
	model := NewTimerModel(ctx, sessions, session, category)

	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	finalModel, err := p.Run()
	if err != nil {
		return nil, err
	}

	m, ok := finalModel.(TimerModel)
	if !ok {
		return nil, nil
	}
	if entry := m.Stopped(); entry != nil {
		fmt.Fprintf(out, "⏹️  Stopped tracking: %s recorded as entry %s\n",
			parser.FormatDuration(entry.Duration()), entry.ID)
		return entry, nil
	}

	s := m.Session()
	fmt.Fprintf(out, "\n💡 Session %s is still %s (%s so far).\n", s.ID, s.State, parser.FormatDuration(m.elapsed))
	fmt.Fprintln(out, "   Use 'tally status' to check it or 'tally stop' to save it.")
	return nil, nil
}

// RunEntryBrowser opens the interactive entry list
func RunEntryBrowser(ctx context.Context, entries []models.TimeEntry, categories map[uuid.UUID]string) error {
	p := tea.NewProgram(NewEntryListModel(entries, categories), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}
