package commands

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/balkashynov/tally/internal/models"
)

func newCategoryCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "category",
		Aliases: []string{"cat"},
		Short:   "Manage time categories",
	}

	addCmd := &cobra.Command{
		Use:   "add [name]",
		Short: "Add a category",
		Example: `  tally category add Development --color "#0EA5E9"
  tally category add "Team meetings" -d "standups and planning"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			desc, _ := cmd.Flags().GetString("description")
			color, _ := cmd.Flags().GetString("color")
			c, err := a.svc.Categories.Create(cmd.Context(), models.CategoryInput{
				Name:        strings.Join(args, " "),
				Description: desc,
				Color:       color,
			})
			if err != nil {
				return err
			}
			return a.render(c, func(w io.Writer) {
				fmt.Fprintf(w, "✅ Added category %q - ID: %s\n", c.Name, c.ID)
			})
		},
	}
	addCmd.Flags().StringP("description", "d", "", "description")
	addCmd.Flags().String("color", "", "hex color, e.g. #0EA5E9")

	editCmd := &cobra.Command{
		Use:   "edit [category-id]",
		Short: "Change a category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "category")
			if err != nil {
				return err
			}
			var patch models.CategoryPatch
			if cmd.Flags().Changed("name") {
				v, _ := cmd.Flags().GetString("name")
				patch.Name = &v
			}
			if cmd.Flags().Changed("description") {
				v, _ := cmd.Flags().GetString("description")
				patch.Description = &v
			}
			if cmd.Flags().Changed("color") {
				v, _ := cmd.Flags().GetString("color")
				patch.Color = &v
			}
			if cmd.Flags().Changed("active") {
				v, _ := cmd.Flags().GetBool("active")
				patch.Active = &v
			}
			c, err := a.svc.Categories.Update(cmd.Context(), id, patch)
			if err != nil {
				return err
			}
			return a.render(c, func(w io.Writer) {
				fmt.Fprintf(w, "✏️  Updated category %q\n", c.Name)
			})
		},
	}
	editCmd.Flags().String("name", "", "new name")
	editCmd.Flags().StringP("description", "d", "", "new description")
	editCmd.Flags().String("color", "", "new hex color")
	editCmd.Flags().Bool("active", true, "enable or disable (--active=false)")

	rmCmd := &cobra.Command{
		Use:   "rm [category-id]",
		Short: "Delete a category, or disable it if time was recorded against it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "category")
			if err != nil {
				return err
			}
			disabled, err := a.svc.Categories.Delete(cmd.Context(), id)
			if err != nil {
				return err
			}
			if disabled {
				fmt.Fprintf(a.out, "🚫 Category %s is in use and was disabled\n", id)
			} else {
				fmt.Fprintf(a.out, "🗑️  Deleted category %s\n", id)
			}
			return nil
		},
	}

	showCmd := &cobra.Command{
		Use:   "show [category-id]",
		Short: "Show a category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "category")
			if err != nil {
				return err
			}
			c, err := a.svc.Categories.Get(cmd.Context(), id)
			if err != nil {
				return err
			}
			return a.render(c, func(w io.Writer) {
				heading(w, "%s", c.Name)
				fmt.Fprintf(w, "ID:          %s\n", c.ID)
				fmt.Fprintf(w, "Description: %s\n", c.Description)
				fmt.Fprintf(w, "Color:       %s\n", c.Color)
				fmt.Fprintf(w, "Active:      %t\n", c.Active)
			})
		},
	}

	lsCmd := &cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "List active categories (--all includes disabled ones)",
		RunE: func(cmd *cobra.Command, args []string) error {
			all, _ := cmd.Flags().GetBool("all")
			if all {
				r, err := a.svc.Categories.ListAll(cmd.Context(), pageFrom(cmd))
				if err != nil {
					return err
				}
				return a.render(r, func(w io.Writer) {
					printCategories(w, r.Items)
					pageFooter(w, r)
				})
			}
			items, err := a.svc.Categories.ListActive(cmd.Context())
			if err != nil {
				return err
			}
			return a.render(items, func(w io.Writer) { printCategories(w, items) })
		},
	}
	lsCmd.Flags().Bool("all", false, "include disabled categories")
	pageFlags(lsCmd)

	cmd.AddCommand(addCmd, editCmd, rmCmd, showCmd, lsCmd)
	return cmd
}

func printCategories(w io.Writer, items []models.TimeCategory) {
	if len(items) == 0 {
		fmt.Fprintln(w, "No categories found. Use 'tally category add <name>' to create one.")
		return
	}
	fmt.Fprintf(w, "%-36s  %-24s %-8s %s\n", "ID", "NAME", "COLOR", "ACTIVE")
	fmt.Fprintln(w, strings.Repeat("-", 80))
	for _, c := range items {
		fmt.Fprintf(w, "%-36s  %-24s %-8s %t\n", c.ID, truncate(c.Name, 24), c.Color, c.Active)
	}
}

// resolveCategory accepts a category id or an active category's name (case-insensitive)
func (a *app) resolveCategory(ctx context.Context, ref string) (uuid.UUID, error) {
	ref = strings.TrimSpace(ref)
	if id, err := uuid.Parse(ref); err == nil {
		return id, nil
	}
	active, err := a.svc.Categories.ListActive(ctx)
	if err != nil {
		return uuid.Nil, err
	}
	for _, c := range active {
		if strings.EqualFold(c.Name, ref) {
			return c.ID, nil
		}
	}
	return uuid.Nil, fmt.Errorf("no active category named %q (see 'tally category ls')", ref)
}

// categoryNames maps every category id to its name, for display
func (a *app) categoryNames(ctx context.Context) (map[uuid.UUID]string, error) {
	all, err := collectAll(ctx, a.svc.Categories.ListAll)
	if err != nil {
		return nil, err
	}
	names := make(map[uuid.UUID]string, len(all))
	for _, c := range all {
		names[c.ID] = c.Name
	}
	return names, nil
}
