package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/balkashynov/tally/internal/config"
	"github.com/balkashynov/tally/internal/db"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// skipDB marks commands that run without opening the database
const skipDB = "skip-db"

// app is the state shared by every command of one invocation
type app struct {
	// flags
	configPath string
	userFlag   string
	output     string

	cfg *config.Config
	gdb *gorm.DB
	svc *db.Services
	log *slog.Logger

	out io.Writer
}

// SetVersion sets the version information
func SetVersion(v, c, d string) {
	version = v
	commit = c
	date = d
}

// Execute runs the root command
func Execute() error {
	return NewRootCmd().ExecuteContext(context.Background())
}

// NewRootCmd builds the command tree
func NewRootCmd() *cobra.Command {
	a := &app{out: os.Stdout}

	rootCmd := &cobra.Command{
		Use:   "tally",
		Short: "Time tracking and timesheet approval from the terminal",
		Long: `tally records time entries, runs a live tracking clock, and carries
weekly timesheets through submission and approval.

Start with 'tally config init', add a category, then 'tally start "#development Fix login"'.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			a.out = cmd.OutOrStdout()
			return a.setup(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.close()
		},
	}

	defaultConfig, err := config.DefaultPath()
	if err != nil {
		defaultConfig = ""
	}
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.configPath, "config", defaultConfig, "config file")
	flags.StringVar(&a.userFlag, "user", "", "act as this user id (overrides user.id)")
	flags.StringVarP(&a.output, "output", "o", "table", "output format: table, json, yaml")

	rootCmd.AddCommand(
		newCategoryCmd(a),
		newEntryCmd(a),
		newStartCmd(a),
		newPauseCmd(a),
		newResumeCmd(a),
		newStopCmd(a),
		newStatusCmd(a),
		newDiscardCmd(a),
		newSessionCmd(a),
		newTimesheetCmd(a),
		newReportCmd(a),
		newConfigCmd(a),
		newVersionCmd(),
	)
	return rootCmd
}

// setup loads the config, builds the logger and opens the database
func (a *app) setup(cmd *cobra.Command) error {
	switch a.output {
	case "table", "json", "yaml":
	default:
		return fmt.Errorf("unknown output format %q (use table, json or yaml)", a.output)
	}

	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.userFlag != "" {
		cfg.User.ID = a.userFlag
	}
	a.cfg = cfg
	a.log = newLogger(cfg.Log, cmd.ErrOrStderr())

	if cmd.Annotations[skipDB] != "" {
		return nil
	}

	teams, err := cfg.TeamTable()
	if err != nil {
		return err
	}
	gdb, err := db.Open(cfg.Database.Path, cfg.Database.LogLevel)
	if err != nil {
		return err
	}
	a.gdb = gdb
	opts := []db.Option{
		db.WithLogger(a.log),
		db.WithReportCache(cfg.Reports.CacheSize, cfg.Reports.CacheTTL),
	}
	// no teams configured: any user may review any other
	if len(teams) > 0 {
		opts = append(opts, db.WithTeams(teams))
	}
	a.svc = db.NewServices(gdb, opts...)
	a.log.Debug("database opened", "path", cfg.Database.Path)
	return nil
}

func (a *app) close() error {
	if a.gdb == nil {
		return nil
	}
	err := db.Close(a.gdb)
	a.gdb = nil
	return err
}

// newLogger picks the slog handler for the configured format and level
func newLogger(cfg config.LogConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelWarn
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.ToLower(cfg.Format) == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// me is the acting user
func (a *app) me() (uuid.UUID, error) {
	return a.cfg.UserID()
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Print version information",
		Annotations: map[string]string{skipDB: "true"},
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "tally %s (commit %s, built %s)\n", version, commit, date)
		},
	}
}
