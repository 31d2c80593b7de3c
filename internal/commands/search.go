package commands

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/balkashynov/tally/internal/db"
	"github.com/balkashynov/tally/internal/models"
	"github.com/balkashynov/tally/internal/parser"
)

// match strength, best first
const (
	matchNone = iota
	matchContains
	matchSuffix
	matchPrefix
	matchExact
)

// SearchResult is the search output for json and yaml
type SearchResult struct {
	Query   string             `json:"query" yaml:"query"`
	Count   int                `json:"count" yaml:"count"`
	Entries []models.TimeEntry `json:"entries" yaml:"entries"`
}

func newEntrySearchCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search your entries by description and category",
		Long: `Search your time entries with ranked matching:
- Exact match (highest priority)
- Prefix match
- Suffix match
- Contains (lowest priority)

Search is case insensitive and looks at the description and the category name.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			user, err := a.me()
			if err != nil {
				return err
			}
			query := strings.Join(args, " ")

			f := db.EntryFilter{UserID: &user}
			if v, _ := cmd.Flags().GetString("range"); v != "" {
				start, end, err := parser.ParseRange(v, time.Now())
				if err != nil {
					return err
				}
				f.From, f.To = &start, &end
			}
			entries, err := collectAll(ctx, func(ctx context.Context, p models.Page) (models.PageResult[models.TimeEntry], error) {
				return a.svc.Entries.List(ctx, f, p)
			})
			if err != nil {
				return err
			}
			names, err := a.categoryNames(ctx)
			if err != nil {
				return err
			}

			found := searchEntries(entries, names, query)
			if limit, _ := cmd.Flags().GetInt("limit"); limit > 0 && len(found) > limit {
				found = found[:limit]
			}
			result := SearchResult{Query: query, Count: len(found), Entries: found}
			return a.render(result, func(w io.Writer) {
				fmt.Fprintf(w, "Search results for '%s' (%d found):\n\n", query, len(found))
				printEntries(w, found, names)
			})
		},
	}
	cmd.Flags().StringP("range", "r", "", "only entries in this range, e.g. month")
	cmd.Flags().IntP("limit", "l", 0, "limit number of results")
	return cmd
}

// searchEntries ranks entries by their best match; ties keep the newest first
func searchEntries(entries []models.TimeEntry, categories map[uuid.UUID]string, query string) []models.TimeEntry {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil
	}

	type scored struct {
		entry models.TimeEntry
		score int
	}
	var hits []scored
	for _, e := range entries {
		score := max(matchScore(e.Description, q), matchScore(categories[e.CategoryID], q))
		if score > matchNone {
			hits = append(hits, scored{e, score})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		return hits[i].entry.StartTime.After(hits[j].entry.StartTime)
	})

	out := make([]models.TimeEntry, len(hits))
	for i, h := range hits {
		out[i] = h.entry
	}
	return out
}

func matchScore(field, q string) int {
	field = strings.ToLower(field)
	switch {
	case field == "":
		return matchNone
	case field == q:
		return matchExact
	case strings.HasPrefix(field, q):
		return matchPrefix
	case strings.HasSuffix(field, q):
		return matchSuffix
	case strings.Contains(field, q):
		return matchContains
	default:
		return matchNone
	}
}
