package commands

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/balkashynov/tally/internal/models"
	"github.com/balkashynov/tally/internal/parser"
)

func newTimesheetCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "timesheet",
		Aliases: []string{"ts"},
		Short:   "Manage timesheets and their approval",
		Long: `Timesheets group your entries for a period and carry them through approval:

  draft -> submitted -> approved -> (archived)
                     -> rejected -> reopen -> draft

Entries on a submitted or approved timesheet are locked.`,
	}

	cmd.AddCommand(
		newTimesheetCreateCmd(a),
		newTimesheetEditCmd(a),
		newTimesheetRmCmd(a),
		newTimesheetShowCmd(a),
		newTimesheetListCmd(a),
		newTimesheetCollectCmd(a),
		newTimesheetPendingCmd(a),
		newTimesheetHistoryCmd(a),
		newTimesheetArchiveCmd(a),
	)

	// submit and reopen take only the id
	for _, step := range []struct {
		use, short, icon, verb string
		run                    func(ctx context.Context, id uuid.UUID) (*models.Timesheet, error)
	}{
		{"submit", "Submit a draft timesheet for approval", "📤", "Submitted", func(ctx context.Context, id uuid.UUID) (*models.Timesheet, error) {
			return a.svc.Timesheets.Submit(ctx, id)
		}},
		{"reopen", "Move a rejected timesheet back to draft", "↩️ ", "Reopened", func(ctx context.Context, id uuid.UUID) (*models.Timesheet, error) {
			return a.svc.Timesheets.Reopen(ctx, id)
		}},
	} {
		step := step
		cmd.AddCommand(&cobra.Command{
			Use:   step.use + " [timesheet-id]",
			Short: step.short,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := parseID(args[0], "timesheet")
				if err != nil {
					return err
				}
				ts, err := step.run(cmd.Context(), id)
				if err != nil {
					return err
				}
				return a.render(ts, func(w io.Writer) {
					fmt.Fprintf(w, "%s %s timesheet %s (%s)\n", step.icon, step.verb, ts.ID, period(ts))
				})
			},
		})
	}

	// approve and reject carry the reviewer's notes
	for _, step := range []struct {
		use, short, icon, verb string
		run                    func(ctx context.Context, id uuid.UUID, r models.ReviewInput) (*models.Timesheet, error)
	}{
		{"approve", "Approve a submitted timesheet", "✅", "Approved", func(ctx context.Context, id uuid.UUID, r models.ReviewInput) (*models.Timesheet, error) {
			return a.svc.Timesheets.Approve(ctx, id, r)
		}},
		{"reject", "Reject a submitted timesheet", "❌", "Rejected", func(ctx context.Context, id uuid.UUID, r models.ReviewInput) (*models.Timesheet, error) {
			return a.svc.Timesheets.Reject(ctx, id, r)
		}},
	} {
		step := step
		reviewCmd := &cobra.Command{
			Use:   step.use + " [timesheet-id]",
			Short: step.short,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := parseID(args[0], "timesheet")
				if err != nil {
					return err
				}
				approver, err := a.me()
				if err != nil {
					return err
				}
				notes, _ := cmd.Flags().GetString("notes")
				ts, err := step.run(cmd.Context(), id, models.ReviewInput{ApproverID: approver, Notes: notes})
				if err != nil {
					return err
				}
				return a.render(ts, func(w io.Writer) {
					fmt.Fprintf(w, "%s %s timesheet %s (%s)\n", step.icon, step.verb, ts.ID, period(ts))
				})
			},
		}
		reviewCmd.Flags().StringP("notes", "n", "", "review notes")
		cmd.AddCommand(reviewCmd)
	}

	return cmd
}

func period(ts *models.Timesheet) string {
	return day(ts.StartDate) + " - " + day(ts.EndDate)
}

// periodFlags reads --from/--to, or --week for a Monday-Sunday week containing that day
func periodFlags(cmd *cobra.Command) (start, end time.Time, set bool, err error) {
	now := time.Now()
	if v, _ := cmd.Flags().GetString("week"); v != "" {
		d, err := parser.ParseDay(v, now)
		if err != nil {
			return time.Time{}, time.Time{}, false, err
		}
		start = parser.WeekStart(d)
		return start, start.AddDate(0, 0, 6), true, nil
	}
	from, _ := cmd.Flags().GetString("from")
	to, _ := cmd.Flags().GetString("to")
	if from == "" && to == "" {
		return time.Time{}, time.Time{}, false, nil
	}
	if from == "" || to == "" {
		return time.Time{}, time.Time{}, false, fmt.Errorf("--from and --to go together")
	}
	if start, err = parser.ParseDay(from, now); err != nil {
		return time.Time{}, time.Time{}, false, err
	}
	if end, err = parser.ParseDay(to, now); err != nil {
		return time.Time{}, time.Time{}, false, err
	}
	return start, end, true, nil
}

func addPeriodFlags(cmd *cobra.Command) {
	cmd.Flags().String("from", "", "first day")
	cmd.Flags().String("to", "", "last day (inclusive)")
	cmd.Flags().String("week", "", "the week containing this day, e.g. today or 2026-03-02")
}

func newTimesheetCreateCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a draft timesheet",
		Example: `  tally timesheet create --week today --collect
  tally timesheet create --from 2026-03-02 --to 2026-03-08`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			user, err := a.me()
			if err != nil {
				return err
			}
			start, end, set, err := periodFlags(cmd)
			if err != nil {
				return err
			}
			if !set {
				start = parser.WeekStart(time.Now())
				end = start.AddDate(0, 0, 6)
			}
			ts, err := a.svc.Timesheets.Create(ctx, models.TimesheetInput{UserID: user, StartDate: start, EndDate: end})
			if err != nil {
				return err
			}

			var linked int64
			if collect, _ := cmd.Flags().GetBool("collect"); collect {
				if linked, err = a.svc.Timesheets.Collect(ctx, ts.ID); err != nil {
					return err
				}
			}
			return a.render(ts, func(w io.Writer) {
				fmt.Fprintf(w, "✅ Created timesheet %s (%s)\n", ts.ID, period(ts))
				if linked > 0 {
					fmt.Fprintf(w, "Linked %d entries\n", linked)
				}
			})
		},
	}
	addPeriodFlags(cmd)
	cmd.Flags().Bool("collect", false, "link your unassigned entries in the period")
	return cmd
}

func newTimesheetEditCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "edit [timesheet-id]",
		Short: "Change the period of a draft or rejected timesheet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "timesheet")
			if err != nil {
				return err
			}
			start, end, set, err := periodFlags(cmd)
			if err != nil {
				return err
			}
			if !set {
				return fmt.Errorf("nothing to change: pass --from/--to or --week")
			}
			ts, err := a.svc.Timesheets.Update(cmd.Context(), id, models.TimesheetPatch{StartDate: &start, EndDate: &end})
			if err != nil {
				return err
			}
			return a.render(ts, func(w io.Writer) {
				fmt.Fprintf(w, "✏️  Timesheet %s now covers %s\n", ts.ID, period(ts))
			})
		},
	}
	addPeriodFlags(cmd)
	return cmd
}

func newTimesheetRmCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "rm [timesheet-id]",
		Short: "Delete a draft timesheet; its entries are kept and unlinked",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "timesheet")
			if err != nil {
				return err
			}
			if err := a.svc.Timesheets.Delete(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "🗑️  Deleted timesheet %s\n", id)
			return nil
		},
	}
}

func newTimesheetArchiveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "archive [timesheet-id]",
		Short: "Archive an approved timesheet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "timesheet")
			if err != nil {
				return err
			}
			if err := a.svc.Timesheets.Archive(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "🗃️  Archived timesheet %s\n", id)
			return nil
		},
	}
}

func newTimesheetCollectCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "collect [timesheet-id]",
		Short: "Link the owner's unassigned entries in the period",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "timesheet")
			if err != nil {
				return err
			}
			n, err := a.svc.Timesheets.Collect(cmd.Context(), id)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "🔗 Linked %d entries to timesheet %s\n", n, id)
			return nil
		},
	}
}

// TimesheetDetail is the show output for json and yaml
type TimesheetDetail struct {
	Timesheet *models.Timesheet            `json:"timesheet" yaml:"timesheet"`
	Total     string                       `json:"total" yaml:"total"`
	Entries   []models.TimeEntry           `json:"entries" yaml:"entries"`
	History   []models.TimesheetTransition `json:"history" yaml:"history"`
}

func newTimesheetShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show [timesheet-id]",
		Short: "Show a timesheet with its entries and history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id, err := parseID(args[0], "timesheet")
			if err != nil {
				return err
			}
			ts, err := a.svc.Timesheets.Get(ctx, id)
			if err != nil {
				return err
			}
			entries, err := collectAll(ctx, func(ctx context.Context, p models.Page) (models.PageResult[models.TimeEntry], error) {
				return a.svc.Entries.ListByTimesheet(ctx, id, p)
			})
			if err != nil {
				return err
			}
			history, err := a.svc.Timesheets.History(ctx, id)
			if err != nil {
				return err
			}
			names, err := a.categoryNames(ctx)
			if err != nil {
				return err
			}

			var total time.Duration
			for _, e := range entries {
				total += e.Duration()
			}
			detail := TimesheetDetail{Timesheet: ts, Total: duration(total), Entries: entries, History: history}
			return a.render(detail, func(w io.Writer) {
				heading(w, "Timesheet %s", period(ts))
				fmt.Fprintf(w, "ID:     %s\n", ts.ID)
				fmt.Fprintf(w, "Owner:  %s\n", ts.UserID)
				status := string(ts.Status)
				if ts.DeletedAt.Valid {
					status += " (archived)"
				}
				fmt.Fprintf(w, "Status: %s\n", status)
				if ts.ApproverID != nil {
					fmt.Fprintf(w, "Review: %s by %s\n", ts.ApprovalNotes, ts.ApproverID)
				}
				fmt.Fprintln(w)
				printEntries(w, entries, names)
				if len(history) > 0 {
					fmt.Fprintln(w)
					printHistory(w, history)
				}
			})
		},
	}
}

func newTimesheetHistoryCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "history [timesheet-id]",
		Short: "Show the workflow history of a timesheet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "timesheet")
			if err != nil {
				return err
			}
			history, err := a.svc.Timesheets.History(cmd.Context(), id)
			if err != nil {
				return err
			}
			return a.render(history, func(w io.Writer) { printHistory(w, history) })
		},
	}
}

func printHistory(w io.Writer, history []models.TimesheetTransition) {
	if len(history) == 0 {
		fmt.Fprintln(w, "No transitions yet")
		return
	}
	fmt.Fprintf(w, "%-16s  %-8s  %-22s  %-8s  %s\n", "AT", "ACTION", "STATUS", "BY", "NOTES")
	fmt.Fprintln(w, strings.Repeat("-", 80))
	for _, t := range history {
		fmt.Fprintf(w, "%-16s  %-8s  %-22s  %-8s  %s\n",
			clock(t.At), t.Action, string(t.From)+" -> "+string(t.To), optShort(t.ActorID), truncate(t.Notes, 30))
	}
}

func newTimesheetListCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "List your timesheets, or everyone's in one status",
		Example: `  tally timesheet ls
  tally timesheet ls --range month
  tally timesheet ls --status submitted`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if v, _ := cmd.Flags().GetString("status"); v != "" {
				r, err := a.svc.Timesheets.ListByStatus(ctx, models.TimesheetStatus(strings.ToLower(v)), pageFrom(cmd))
				if err != nil {
					return err
				}
				return a.render(r, func(w io.Writer) {
					printTimesheets(w, r.Items)
					pageFooter(w, r)
				})
			}

			user, err := a.me()
			if err != nil {
				return err
			}
			if v, _ := cmd.Flags().GetString("range"); v != "" {
				start, end, err := parser.ParseRange(v, time.Now())
				if err != nil {
					return err
				}
				// ranges are half-open; the last day is the one before end
				r, err := a.svc.Timesheets.ListByUserAndRange(ctx, user, start, end.Add(-time.Second), pageFrom(cmd))
				if err != nil {
					return err
				}
				return a.render(r, func(w io.Writer) {
					printTimesheets(w, r.Items)
					pageFooter(w, r)
				})
			}

			r, err := a.svc.Timesheets.ListByUser(ctx, user, pageFrom(cmd))
			if err != nil {
				return err
			}
			return a.render(r, func(w io.Writer) {
				printTimesheets(w, r.Items)
				pageFooter(w, r)
			})
		},
	}
	cmd.Flags().StringP("status", "s", "", "draft, submitted, approved or rejected (all users)")
	cmd.Flags().StringP("range", "r", "", "only timesheets overlapping this range")
	pageFlags(cmd)
	return cmd
}

func newTimesheetPendingCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pending",
		Short: "List submitted timesheets waiting for your approval",
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := a.me()
			if err != nil {
				return err
			}
			r, err := a.svc.Timesheets.ListPendingApprovals(cmd.Context(), user, pageFrom(cmd))
			if err != nil {
				return err
			}
			return a.render(r, func(w io.Writer) {
				if len(r.Items) == 0 {
					fmt.Fprintln(w, "Nothing waiting for approval")
					return
				}
				printTimesheets(w, r.Items)
				pageFooter(w, r)
			})
		},
	}
	pageFlags(cmd)
	return cmd
}

func printTimesheets(w io.Writer, items []models.Timesheet) {
	if len(items) == 0 {
		fmt.Fprintln(w, "No timesheets found. Use 'tally timesheet create --week today' to start one.")
		return
	}
	fmt.Fprintf(w, "%-36s  %-23s  %-9s  %-8s  %s\n", "ID", "PERIOD", "STATUS", "OWNER", "SUBMITTED")
	fmt.Fprintln(w, strings.Repeat("-", 100))
	for i := range items {
		ts := &items[i]
		submitted := "-"
		if ts.SubmittedAt != nil {
			submitted = clock(*ts.SubmittedAt)
		}
		fmt.Fprintf(w, "%-36s  %-23s  %-9s  %-8s  %s\n", ts.ID, period(ts), ts.Status, short(ts.UserID), submitted)
	}
}
