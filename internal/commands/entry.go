package commands

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/balkashynov/tally/internal/db"
	"github.com/balkashynov/tally/internal/models"
	"github.com/balkashynov/tally/internal/parser"
	"github.com/balkashynov/tally/internal/tui"
)

func newEntryCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "entry",
		Aliases: []string{"e"},
		Short:   "Record and manage time entries",
	}
	cmd.AddCommand(
		newEntryAddCmd(a),
		newEntryEditCmd(a),
		newEntryRmCmd(a),
		newEntryShowCmd(a),
		newEntryListCmd(a),
		newEntrySearchCmd(a),
	)
	return cmd
}

func newEntryAddCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add [description]",
		Short: "Record a time entry",
		Long: `Record a time entry for a past interval.

Quick syntax in the description:
  #category       - Category by name (underscores for spaces)
  @<project-id>   - Project
  task:<task-id>  - Task

Times accept HH:MM (today), "yesterday 14:00", yyyy-mm-dd HH:MM, RFC 3339 or "90m ago".`,
		Example: `  tally entry add "Code review #development" --start 09:00 --end 10:30
  tally entry add "Planning" --category Meetings --start "yesterday 14:00" --for 45m`,
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

			now := time.Now()
			startFlag, _ := cmd.Flags().GetString("start")
			start, err := parser.ParseTime(startFlag, now)
			if err != nil {
				return err
			}
			in := models.EntryInput{
				UserID:      user,
				StartTime:   start,
				Description: q.Description,
				ProjectID:   q.ProjectID,
				TaskID:      q.TaskID,
			}

			if endFlag, _ := cmd.Flags().GetString("end"); endFlag != "" {
				end, err := parser.ParseTime(endFlag, now)
				if err != nil {
					return err
				}
				in.EndTime = &end
			} else if d, _ := cmd.Flags().GetDuration("for"); d > 0 {
				end := start.Add(d)
				in.EndTime = &end
			}

			if in.CategoryID, err = a.categoryFor(cmd, q.Category); err != nil {
				return err
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
			if in.TimesheetID, err = optionalID(cmd, "timesheet"); err != nil {
				return err
			}

			e, err := a.svc.Entries.Create(ctx, in)
			if err != nil {
				return err
			}
			return a.render(e, func(w io.Writer) {
				if e.Bounded() {
					fmt.Fprintf(w, "✅ Recorded %s - ID: %s\n", duration(e.Duration()), e.ID)
				} else {
					fmt.Fprintf(w, "✅ Recorded open entry from %s - ID: %s\n", clock(e.StartTime), e.ID)
				}
			})
		},
	}
	cmd.Flags().String("start", "", "start time (required)")
	cmd.Flags().String("end", "", "end time")
	cmd.Flags().Duration("for", 0, "duration instead of --end, e.g. 1h30m")
	cmd.Flags().StringP("category", "c", "", "category name or id")
	cmd.Flags().StringP("project", "p", "", "project id")
	cmd.Flags().String("task", "", "task id")
	cmd.Flags().String("timesheet", "", "timesheet id")
	cmd.MarkFlagRequired("start")
	return cmd
}

// categoryFor resolves --category, falling back to a #category from the description
func (a *app) categoryFor(cmd *cobra.Command, quick string) (uuid.UUID, error) {
	ref, _ := cmd.Flags().GetString("category")
	if ref == "" {
		ref = quick
	}
	if ref == "" {
		return uuid.Nil, fmt.Errorf("a category is required: use #name in the description or --category")
	}
	return a.resolveCategory(cmd.Context(), ref)
}

func newEntryEditCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "edit [entry-id]",
		Short: "Change a time entry",
		Long:  "Change a time entry. Entries on a submitted or approved timesheet are locked.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id, err := parseID(args[0], "entry")
			if err != nil {
				return err
			}

			var patch models.EntryPatch
			now := time.Now()
			f := cmd.Flags()
			if f.Changed("start") {
				v, _ := f.GetString("start")
				t, err := parser.ParseTime(v, now)
				if err != nil {
					return err
				}
				patch.StartTime = &t
			}
			if f.Changed("end") {
				v, _ := f.GetString("end")
				t, err := parser.ParseTime(v, now)
				if err != nil {
					return err
				}
				patch.EndTime = &t
			}
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
			if patch.TimesheetID, err = optionalID(cmd, "timesheet"); err != nil {
				return err
			}
			patch.ClearEndTime, _ = f.GetBool("clear-end")
			patch.ClearProject, _ = f.GetBool("clear-project")
			patch.ClearTask, _ = f.GetBool("clear-task")
			patch.ClearTimesheet, _ = f.GetBool("clear-timesheet")

			e, err := a.svc.Entries.Update(ctx, id, patch)
			if err != nil {
				return err
			}
			return a.render(e, func(w io.Writer) {
				fmt.Fprintf(w, "✏️  Updated entry %s\n", e.ID)
			})
		},
	}
	cmd.Flags().String("start", "", "new start time")
	cmd.Flags().String("end", "", "new end time")
	cmd.Flags().StringP("description", "d", "", "new description")
	cmd.Flags().StringP("category", "c", "", "category name or id")
	cmd.Flags().StringP("project", "p", "", "project id")
	cmd.Flags().String("task", "", "task id")
	cmd.Flags().String("timesheet", "", "link to this timesheet")
	cmd.Flags().Bool("clear-end", false, "make the entry open-ended")
	cmd.Flags().Bool("clear-project", false, "remove the project")
	cmd.Flags().Bool("clear-task", false, "remove the task")
	cmd.Flags().Bool("clear-timesheet", false, "unlink from its timesheet")
	return cmd
}

func newEntryRmCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "rm [entry-id]",
		Aliases: []string{"delete"},
		Short:   "Delete a time entry",
		Long:    "Delete a time entry. Entries on a timesheet can only be deleted while it is a draft; reopen a rejected one first.",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "entry")
			if err != nil {
				return err
			}
			if err := a.svc.Entries.Delete(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "🗑️  Deleted entry %s\n", id)
			return nil
		},
	}
}

func newEntryShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show [entry-id]",
		Short: "Show a time entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "entry")
			if err != nil {
				return err
			}
			e, err := a.svc.Entries.Get(cmd.Context(), id)
			if err != nil {
				return err
			}
			category := e.CategoryID.String()
			if c, err := a.svc.Categories.Get(cmd.Context(), e.CategoryID); err == nil {
				category = c.Name
			}
			return a.render(e, func(w io.Writer) {
				title := e.Description
				if title == "" {
					title = "(no description)"
				}
				heading(w, "%s", title)
				fmt.Fprintf(w, "ID:        %s\n", e.ID)
				fmt.Fprintf(w, "Category:  %s\n", category)
				fmt.Fprintf(w, "Start:     %s\n", clock(e.StartTime))
				if e.Bounded() {
					fmt.Fprintf(w, "End:       %s\n", clock(*e.EndTime))
					fmt.Fprintf(w, "Duration:  %s\n", duration(e.Duration()))
				} else {
					fmt.Fprintln(w, "End:       open")
				}
				fmt.Fprintf(w, "Source:    %s\n", e.Source)
				fmt.Fprintf(w, "Project:   %s\n", optShort(e.ProjectID))
				fmt.Fprintf(w, "Task:      %s\n", optShort(e.TaskID))
				fmt.Fprintf(w, "Timesheet: %s\n", optShort(e.TimesheetID))
			})
		},
	}
}

func newEntryListCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "List your time entries, newest first",
		Example: `  tally entry ls --range week
  tally entry ls --project <id> --from 2026-03-01 --to 2026-03-31
  tally entry ls --range last-week --ui`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			user, err := a.me()
			if err != nil {
				return err
			}
			f := db.EntryFilter{UserID: &user}
			if f.ProjectID, err = optionalID(cmd, "project"); err != nil {
				return err
			}
			if f.TaskID, err = optionalID(cmd, "task"); err != nil {
				return err
			}
			if f.TimesheetID, err = optionalID(cmd, "timesheet"); err != nil {
				return err
			}
			f.BoundedOnly, _ = cmd.Flags().GetBool("bounded")

			now := time.Now()
			if v, _ := cmd.Flags().GetString("range"); v != "" {
				start, end, err := parser.ParseRange(v, now)
				if err != nil {
					return err
				}
				f.From, f.To = &start, &end
			}
			if v, _ := cmd.Flags().GetString("from"); v != "" {
				from, err := parser.ParseDay(v, now)
				if err != nil {
					return err
				}
				f.From = &from
			}
			if v, _ := cmd.Flags().GetString("to"); v != "" {
				to, err := parser.ParseDay(v, now)
				if err != nil {
					return err
				}
				to = to.AddDate(0, 0, 1) // inclusive day
				f.To = &to
			}

			names, err := a.categoryNames(ctx)
			if err != nil {
				return err
			}

			if ui, _ := cmd.Flags().GetBool("ui"); ui {
				entries, err := collectAll(ctx, func(ctx context.Context, p models.Page) (models.PageResult[models.TimeEntry], error) {
					return a.svc.Entries.List(ctx, f, p)
				})
				if err != nil {
					return err
				}
				return tui.RunEntryBrowser(ctx, entries, names)
			}

			r, err := a.listEntries(cmd, f)
			if err != nil {
				return err
			}
			return a.render(r, func(w io.Writer) {
				printEntries(w, r.Items, names)
				pageFooter(w, r)
			})
		},
	}
	cmd.Flags().StringP("project", "p", "", "only this project")
	cmd.Flags().String("task", "", "only this task")
	cmd.Flags().String("timesheet", "", "only entries linked to this timesheet")
	cmd.Flags().StringP("range", "r", "", "today, week, last-week, month, last-month or from..to")
	cmd.Flags().String("from", "", "first day")
	cmd.Flags().String("to", "", "last day (inclusive)")
	cmd.Flags().Bool("bounded", false, "hide open-ended entries")
	cmd.Flags().Bool("ui", false, "browse interactively")
	pageFlags(cmd)
	return cmd
}

// listEntries uses the store's dedicated range query when only a range is given
func (a *app) listEntries(cmd *cobra.Command, f db.EntryFilter) (models.PageResult[models.TimeEntry], error) {
	ctx, page := cmd.Context(), pageFrom(cmd)
	onlyRange := f.ProjectID == nil && f.TaskID == nil && f.TimesheetID == nil && !f.BoundedOnly
	switch {
	case onlyRange && f.From != nil && f.To != nil:
		return a.svc.Entries.ListByDateRange(ctx, *f.UserID, *f.From, *f.To, page)
	case onlyRange && f.From == nil && f.To == nil:
		return a.svc.Entries.ListByUser(ctx, *f.UserID, page)
	default:
		return a.svc.Entries.List(ctx, f, page)
	}
}

func printEntries(w io.Writer, entries []models.TimeEntry, categories map[uuid.UUID]string) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "No entries found. Use 'tally entry add' or 'tally start' to record time.")
		return
	}
	fmt.Fprintf(w, "%-36s  %-16s  %-7s  %-16s  %-9s  %s\n", "ID", "START", "TIME", "CATEGORY", "TIMESHEET", "DESCRIPTION")
	fmt.Fprintln(w, strings.Repeat("-", 120))

	var total time.Duration
	for _, e := range entries {
		dur := "open"
		if e.Bounded() {
			dur = duration(e.Duration())
			total += e.Duration()
		}
		category, ok := categories[e.CategoryID]
		if !ok {
			category = short(e.CategoryID)
		}
		fmt.Fprintf(w, "%-36s  %-16s  %-7s  %-16s  %-9s  %s\n",
			e.ID,
			clock(e.StartTime),
			dur,
			truncate(category, 16),
			optShort(e.TimesheetID),
			truncate(e.Description, 40))
	}
	fmt.Fprintf(w, "\n%d entries, %s recorded\n", len(entries), duration(total))
}
