package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/balkashynov/tally/internal/models"
	"github.com/balkashynov/tally/internal/parser"
)

var headingStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5EEAD4"))

// render writes v as json or yaml, or calls table for the default format
func (a *app) render(v any, table func(w io.Writer)) error {
	switch a.output {
	case "json":
		enc := json.NewEncoder(a.out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(a.out)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		table(a.out)
		return nil
	}
}

func heading(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, headingStyle.Render(fmt.Sprintf(format, args...)))
}

// parseID parses a uuid argument, naming what it identifies in the error
func parseID(arg, what string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(arg))
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid %s id '%s'", what, arg)
	}
	return id, nil
}

// optionalID reads a uuid flag; an empty value means unset
func optionalID(cmd *cobra.Command, flag string) (*uuid.UUID, error) {
	v, _ := cmd.Flags().GetString(flag)
	if v == "" {
		return nil, nil
	}
	id, err := parseID(v, flag)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

// pageFlags registers --page and --size
func pageFlags(cmd *cobra.Command) {
	cmd.Flags().Int("page", models.DefaultPage.Number, "page number")
	cmd.Flags().Int("size", models.DefaultPage.Size, "page size (max 100)")
}

func pageFrom(cmd *cobra.Command) models.Page {
	n, _ := cmd.Flags().GetInt("page")
	s, _ := cmd.Flags().GetInt("size")
	return models.Page{Number: n, Size: s}
}

func pageFooter[T any](w io.Writer, r models.PageResult[T]) {
	if int64(r.Page*r.Size) < r.Total {
		fmt.Fprintf(w, "\nPage %d (%d of %d shown). Use --page %d for more.\n", r.Page, len(r.Items), r.Total, r.Page+1)
	}
}

// collectAll walks every page of a listing
func collectAll[T any](ctx context.Context, fetch func(ctx context.Context, p models.Page) (models.PageResult[T], error)) ([]T, error) {
	var all []T
	for p := (models.Page{Number: 1, Size: models.MaxPageSize}); ; p.Number++ {
		r, err := fetch(ctx, p)
		if err != nil {
			return nil, err
		}
		all = append(all, r.Items...)
		if len(r.Items) < p.Size || int64(len(all)) >= r.Total {
			return all, nil
		}
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}

func short(id uuid.UUID) string {
	return id.String()[:8]
}

func optShort(id *uuid.UUID) string {
	if id == nil {
		return "-"
	}
	return short(*id)
}

func clock(t time.Time) string {
	return t.Local().Format("2006-01-02 15:04")
}

func day(t time.Time) string {
	return t.Format("2006-01-02")
}

func duration(d time.Duration) string {
	return parser.FormatDuration(d)
}
