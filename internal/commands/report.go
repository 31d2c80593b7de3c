package commands

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/balkashynov/tally/internal/db"
	"github.com/balkashynov/tally/internal/models"
	"github.com/balkashynov/tally/internal/parser"
)

func newReportCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Summarize recorded time",
		Long: `Summarize bounded time entries that start inside a range.

Ranges: today, yesterday, week, last-week, month, last-month, a single day or from..to.`,
	}
	cmd.PersistentFlags().StringP("range", "r", "week", "reporting range")

	userCmd := &cobra.Command{
		Use:   "user [user-id]",
		Short: "Time of one user (default: you)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := a.me()
			if len(args) == 1 {
				id, err = parseID(args[0], "user")
			}
			if err != nil {
				return err
			}
			return a.report(cmd, func(ctx context.Context, start, end time.Time) (*db.Report, error) {
				return a.svc.Reports.UserReport(ctx, id, start, end)
			})
		},
	}

	teamCmd := &cobra.Command{
		Use:   "team",
		Short: "Time of the team you lead, you included",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := a.me()
			if err != nil {
				return err
			}
			return a.report(cmd, func(ctx context.Context, start, end time.Time) (*db.Report, error) {
				return a.svc.Reports.TeamReport(ctx, id, start, end)
			})
		},
	}

	projectCmd := &cobra.Command{
		Use:   "project [project-id]",
		Short: "Time recorded against a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "project")
			if err != nil {
				return err
			}
			return a.report(cmd, func(ctx context.Context, start, end time.Time) (*db.Report, error) {
				return a.svc.Reports.ProjectReport(ctx, id, start, end)
			})
		},
	}

	cmd.AddCommand(userCmd, teamCmd, projectCmd, newWeekCmd(a))
	return cmd
}

func (a *app) report(cmd *cobra.Command, build func(ctx context.Context, start, end time.Time) (*db.Report, error)) error {
	v, _ := cmd.Flags().GetString("range")
	start, end, err := parser.ParseRange(v, time.Now())
	if err != nil {
		return err
	}
	r, err := build(cmd.Context(), start, end)
	if err != nil {
		return err
	}
	return a.render(r, func(w io.Writer) { printReport(w, r) })
}

func printReport(w io.Writer, r *db.Report) {
	heading(w, "%s report %s to %s", r.Scope, day(r.Start), day(r.End.AddDate(0, 0, -1)))
	fmt.Fprintf(w, "Total: %sh over %d entries\n", r.TotalHours.StringFixed(2), r.EntryCount)
	if r.EntryCount == 0 {
		return
	}

	sections := []struct {
		title   string
		buckets []db.Bucket
	}{
		{"By category", r.ByCategory},
		{"By project", r.ByProject},
		{"By user", r.ByUser},
		{"By day", r.ByDay},
	}
	for _, s := range sections {
		// a single bucket repeats the total
		if len(s.buckets) < 2 && s.title != "By category" {
			continue
		}
		fmt.Fprintln(w)
		heading(w, "%s", s.title)
		for _, b := range s.buckets {
			fmt.Fprintf(w, "  %-38s %8sh  %3d entries\n", truncate(b.Label, 38), b.Hours.StringFixed(2), b.Entries)
		}
	}
}

// weekRow is one line of the weekly grid
type weekRow struct {
	Label string             `json:"label" yaml:"label"`
	Days  [7]decimal.Decimal `json:"days" yaml:"days"` // Monday first
	Total decimal.Decimal    `json:"total" yaml:"total"`
}

// WeekGrid is hours per category and weekday
type WeekGrid struct {
	WeekStart time.Time          `json:"week_start" yaml:"week_start"`
	Rows      []weekRow          `json:"rows" yaml:"rows"`
	Totals    [7]decimal.Decimal `json:"totals" yaml:"totals"`
	Total     decimal.Decimal    `json:"total" yaml:"total"`
}

func newWeekCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "week",
		Short: "Weekly grid of hours per category and day",
		Long: `Show a weekly grid of your tracked hours grouped by category and day,
ready to copy into a timesheet tool.

Example output:
  Category             Mon   Tue   Wed   Thu   Fri   Total
  Development          6.5   7.0   3.0     -     -    16.5
  Meetings             1.0     -   2.5     -     -     3.5
  Total                7.5   7.0   5.5   0.0   0.0    20.0`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			user, err := a.me()
			if err != nil {
				return err
			}
			v, _ := cmd.Flags().GetString("week")
			d, err := parser.ParseDay(v, time.Now())
			if err != nil {
				return err
			}
			weekStart := parser.WeekStart(d)

			entries, err := collectAll(ctx, func(ctx context.Context, p models.Page) (models.PageResult[models.TimeEntry], error) {
				return a.svc.Entries.ListByDateRange(ctx, user, weekStart, weekStart.AddDate(0, 0, 7), p)
			})
			if err != nil {
				return err
			}
			names, err := a.categoryNames(ctx)
			if err != nil {
				return err
			}

			grid := buildWeekGrid(weekStart, entries, names)
			return a.render(grid, func(w io.Writer) { printWeekGrid(w, grid) })
		},
	}
	cmd.Flags().String("week", "today", "any day of the week to show")
	return cmd
}

// buildWeekGrid sums bounded entries per category and weekday of their start
func buildWeekGrid(weekStart time.Time, entries []models.TimeEntry, categories map[uuid.UUID]string) WeekGrid {
	grid := WeekGrid{WeekStart: weekStart}
	seconds := map[string]*[7]int64{}
	for _, e := range entries {
		if !e.Bounded() {
			continue
		}
		label, ok := categories[e.CategoryID]
		if !ok {
			label = short(e.CategoryID)
		}
		if seconds[label] == nil {
			seconds[label] = &[7]int64{}
		}
		offset := (int(e.StartTime.In(weekStart.Location()).Weekday()) + 6) % 7 // Monday = 0
		seconds[label][offset] += int64(e.Duration() / time.Second)
	}

	labels := make([]string, 0, len(seconds))
	for label := range seconds {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	var totals [7]int64
	for _, label := range labels {
		row := weekRow{Label: label}
		var sum int64
		for i, s := range seconds[label] {
			row.Days[i] = hoursOf(s)
			totals[i] += s
			sum += s
		}
		row.Total = hoursOf(sum)
		grid.Rows = append(grid.Rows, row)
	}
	var all int64
	for i, s := range totals {
		grid.Totals[i] = hoursOf(s)
		all += s
	}
	grid.Total = hoursOf(all)
	return grid
}

func hoursOf(seconds int64) decimal.Decimal {
	return decimal.NewFromInt(seconds).Div(decimal.NewFromInt(3600)).Round(1)
}

func printWeekGrid(w io.Writer, g WeekGrid) {
	if len(g.Rows) == 0 {
		fmt.Fprintln(w, "No time tracked this week.")
		return
	}

	dayNames := []string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}
	// weekends only when worked
	days := []int{0, 1, 2, 3, 4}
	for i := 5; i < 7; i++ {
		if !g.Totals[i].IsZero() {
			days = append(days, i)
		}
	}

	labelWidth := 20
	for _, r := range g.Rows {
		labelWidth = max(labelWidth, min(len(r.Label), 40))
	}

	line := func(label string, cells [7]decimal.Decimal, total decimal.Decimal, dash bool) {
		fmt.Fprintf(w, "%-*s", labelWidth, truncate(label, labelWidth))
		for _, d := range days {
			cell := cells[d].StringFixed(1)
			if dash && cells[d].IsZero() {
				cell = "-"
			}
			fmt.Fprintf(w, "  %5s", cell)
		}
		fmt.Fprintf(w, "  %6s\n", total.StringFixed(1))
	}
	separator := func() {
		fmt.Fprintln(w, strings.Repeat("-", labelWidth+7*len(days)+8))
	}

	fmt.Fprintf(w, "%-*s", labelWidth, "Category")
	for _, d := range days {
		fmt.Fprintf(w, "  %5s", dayNames[d])
	}
	fmt.Fprintf(w, "  %6s\n", "Total")
	separator()
	for _, r := range g.Rows {
		line(r.Label, r.Days, r.Total, true)
	}
	separator()
	line("Total", g.Totals, g.Total, false)

	fmt.Fprintf(w, "\nWeek of %s to %s\n",
		g.WeekStart.Format("Jan 2"),
		g.WeekStart.AddDate(0, 0, 6).Format("Jan 2, 2006"))
}
