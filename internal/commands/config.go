package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/balkashynov/tally/internal/config"
)

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Create or inspect the configuration",
	}

	initCmd := &cobra.Command{
		Use:         "init",
		Short:       "Write a default config with a new user id",
		Annotations: map[string]string{skipDB: "true"},
		Args:        cobra.NoArgs,
		// init must work even when the existing config is broken
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			a.out = cmd.OutOrStdout()
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			path := a.configPath
			if path == "" {
				var err error
				if path, err = config.DefaultPath(); err != nil {
					return err
				}
			}
			cfg, err := config.WriteDefault(path)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "✅ Wrote %s\n", path)
			fmt.Fprintf(a.out, "Your user id: %s\n", cfg.User.ID)
			fmt.Fprintf(a.out, "Database:     %s\n", cfg.Database.Path)
			return nil
		},
	}

	showCmd := &cobra.Command{
		Use:         "show",
		Short:       "Print the effective configuration",
		Annotations: map[string]string{skipDB: "true"},
		Args:        cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.output == "json" {
				return a.render(a.cfg, nil)
			}
			body, err := a.cfg.YAML()
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "# %s\n%s", a.configPath, body)
			return nil
		},
	}

	cmd.AddCommand(initCmd, showCmd)
	return cmd
}
