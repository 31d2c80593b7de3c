package commands

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/balkashynov/tally/internal/models"
	"github.com/balkashynov/tally/internal/parser"
	"github.com/balkashynov/tally/internal/tui"
)

func newStartCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start [description]",
		Short: "Start the tracking clock",
		Long: `Start the tracking clock. Opens the interactive timer by default, use --no-ui for a simple start.

The description takes the same quick syntax as 'tally entry add' (#category, @<project-id>, task:<task-id>).
Only one session runs per user.`,
		Example: `  tally start "#development Fix login redirect"
  tally start --category Meetings --no-ui`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			user, err := a.me()
			if err != nil {
				return err
			}
			q := parser.ParseQuick(strings.Join(args, " "))
			if len(q.Errors) > 0 {
				return fmt.Errorf("%s", strings.Join(q.Errors, ", "))
			}
			category, err := a.categoryFor(cmd, q.Category)
			if err != nil {
				return err
			}
			in := models.StartSessionInput{
				UserID:      user,
				CategoryID:  category,
				ProjectID:   q.ProjectID,
				TaskID:      q.TaskID,
				Description: q.Description,
			}
			if p, err := optionalID(cmd, "project"); err != nil {
				return err
			} else if p != nil {
				in.ProjectID = p
			}
			if t, err := optionalID(cmd, "task"); err != nil {
				return err
			} else if t != nil {
				in.TaskID = t
			}

			session, err := a.svc.Sessions.Start(ctx, in)
			if err != nil {
				return err
			}

			noUI, _ := cmd.Flags().GetBool("no-ui")
			if noUI || a.output != "table" {
				return a.render(session, func(w io.Writer) {
					fmt.Fprintf(w, "⏱️  Started tracking: %s\n", describe(session.Description))
					fmt.Fprintf(w, "Started at: %s\n", session.StartTime.Local().Format("15:04:05"))
				})
			}
			_, err = tui.RunSessionTimer(ctx, a.svc.Sessions, session, a.categoryName(ctx, session), a.out)
			return err
		},
	}
	cmd.Flags().Bool("no-ui", false, "start without the interactive timer")
	cmd.Flags().StringP("category", "c", "", "category name or id")
	cmd.Flags().StringP("project", "p", "", "project id")
	cmd.Flags().String("task", "", "task id")
	return cmd
}

// activeSession loads the acting user's live session
func (a *app) activeSession(ctx context.Context) (*models.TrackingSession, error) {
	user, err := a.me()
	if err != nil {
		return nil, err
	}
	return a.svc.Sessions.GetActiveByUser(ctx, user)
}

func (a *app) categoryName(ctx context.Context, s *models.TrackingSession) string {
	if c, err := a.svc.Categories.Get(ctx, s.CategoryID); err == nil {
		return c.Name
	}
	return short(s.CategoryID)
}

func describe(desc string) string {
	if desc == "" {
		return "(no description)"
	}
	return desc
}

func newPauseCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "pause",
		Short: "Pause the tracking clock",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.activeSession(cmd.Context())
			if err != nil {
				return err
			}
			s, err = a.svc.Sessions.Pause(cmd.Context(), s.ID)
			if err != nil {
				return err
			}
			return a.render(s, func(w io.Writer) {
				fmt.Fprintf(w, "⏸️  Paused after %s\n", duration(s.ElapsedAsOf(time.Now())))
			})
		},
	}
}

func newResumeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "resume",
		Short: "Resume a paused clock",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.activeSession(cmd.Context())
			if err != nil {
				return err
			}
			s, err = a.svc.Sessions.Resume(cmd.Context(), s.ID)
			if err != nil {
				return err
			}
			return a.render(s, func(w io.Writer) {
				fmt.Fprintf(w, "▶️  Resumed (%s paused in total)\n", duration(time.Duration(s.PausedSeconds)*time.Second))
			})
		},
	}
}

func newStopCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the clock and save the time as an entry",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.activeSession(cmd.Context())
			if err != nil {
				return err
			}
			var desc *string
			if cmd.Flags().Changed("description") {
				v, _ := cmd.Flags().GetString("description")
				desc = &v
			}
			e, err := a.svc.Sessions.Stop(cmd.Context(), s.ID, desc)
			if err != nil {
				return err
			}
			return a.render(e, func(w io.Writer) {
				fmt.Fprintf(w, "⏹️  Stopped tracking: %s\n", describe(e.Description))
				fmt.Fprintf(w, "Recorded %s as entry %s\n", duration(e.Duration()), e.ID)
			})
		},
	}
	cmd.Flags().StringP("description", "d", "", "replace the description on the saved entry")
	return cmd
}

func newStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the tracking clock",
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := a.me()
			if err != nil {
				return err
			}
			r, err := a.svc.Sessions.ListByUser(cmd.Context(), user, models.DefaultPage)
			if err != nil {
				return err
			}
			if len(r.Items) == 0 {
				return a.render(nil, func(w io.Writer) {
					fmt.Fprintln(w, "No active time tracking session")
				})
			}
			s := r.Items[0]
			name := a.categoryName(cmd.Context(), &s)
			now := time.Now()
			return a.render(s, func(w io.Writer) {
				icon := "⏱️ "
				if s.State == models.SessionPaused {
					icon = "⏸️ "
				}
				fmt.Fprintf(w, "%s Currently %s: %s [%s]\n", icon, s.State, describe(s.Description), name)
				fmt.Fprintf(w, "Session:      %s\n", s.ID)
				fmt.Fprintf(w, "Started at:   %s\n", s.StartTime.Local().Format("15:04:05"))
				fmt.Fprintf(w, "Elapsed time: %s\n", duration(s.ElapsedAsOf(now)))
				if p := s.PausedAsOf(now); p > 0 {
					fmt.Fprintf(w, "Paused for:   %s\n", duration(p))
				}
			})
		},
	}
}

func newDiscardCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "discard",
		Short: "Throw away the tracking clock without saving",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.activeSession(cmd.Context())
			if err != nil {
				return err
			}
			if err := a.svc.Sessions.Discard(cmd.Context(), s.ID); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "🗑️  Discarded session %s\n", s.ID)
			return nil
		},
	}
}

func newSessionCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Inspect or change the tracking clock",
	}

	editCmd := &cobra.Command{
		Use:   "edit",
		Short: "Change the description, category, project or task of the running session",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := a.activeSession(ctx)
			if err != nil {
				return err
			}
			var patch models.SessionPatch
			f := cmd.Flags()
			if f.Changed("description") {
				v, _ := f.GetString("description")
				patch.Description = &v
			}
			if f.Changed("category") {
				v, _ := f.GetString("category")
				c, err := a.resolveCategory(ctx, v)
				if err != nil {
					return err
				}
				patch.CategoryID = &c
			}
			if patch.ProjectID, err = optionalID(cmd, "project"); err != nil {
				return err
			}
			if patch.TaskID, err = optionalID(cmd, "task"); err != nil {
				return err
			}
			patch.ClearProject, _ = f.GetBool("clear-project")
			patch.ClearTask, _ = f.GetBool("clear-task")

			s, err = a.svc.Sessions.Update(ctx, s.ID, patch)
			if err != nil {
				return err
			}
			return a.render(s, func(w io.Writer) {
				fmt.Fprintf(w, "✏️  Updated session %s\n", s.ID)
			})
		},
	}
	editCmd.Flags().StringP("description", "d", "", "new description")
	editCmd.Flags().StringP("category", "c", "", "category name or id")
	editCmd.Flags().StringP("project", "p", "", "project id")
	editCmd.Flags().String("task", "", "task id")
	editCmd.Flags().Bool("clear-project", false, "remove the project")
	editCmd.Flags().Bool("clear-task", false, "remove the task")

	showCmd := &cobra.Command{
		Use:   "show [session-id]",
		Short: "Show a session by id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "session")
			if err != nil {
				return err
			}
			s, err := a.svc.Sessions.Get(cmd.Context(), id)
			if err != nil {
				return err
			}
			return a.render(s, func(w io.Writer) {
				printSessions(w, []models.TrackingSession{*s})
			})
		},
	}

	lsCmd := &cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "List your live sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := a.me()
			if err != nil {
				return err
			}
			r, err := a.svc.Sessions.ListByUser(cmd.Context(), user, pageFrom(cmd))
			if err != nil {
				return err
			}
			return a.render(r, func(w io.Writer) { printSessions(w, r.Items) })
		},
	}
	pageFlags(lsCmd)

	cmd.AddCommand(editCmd, showCmd, lsCmd)
	return cmd
}

func printSessions(w io.Writer, sessions []models.TrackingSession) {
	if len(sessions) == 0 {
		fmt.Fprintln(w, "No live sessions")
		return
	}
	now := time.Now()
	fmt.Fprintf(w, "%-36s  %-7s  %-16s  %-8s  %s\n", "ID", "STATE", "STARTED", "ELAPSED", "DESCRIPTION")
	fmt.Fprintln(w, strings.Repeat("-", 100))
	for _, s := range sessions {
		fmt.Fprintf(w, "%-36s  %-7s  %-16s  %-8s  %s\n",
			s.ID, s.State, clock(s.StartTime), duration(s.ElapsedAsOf(now)), truncate(s.Description, 30))
	}
}
