package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/balkashynov/tally/internal/db"
)

// EnvPrefix prefixes environment overrides, e.g. TALLY_USER_ID
const EnvPrefix = "TALLY"

// Config is the tally configuration file
type Config struct {
	Database DatabaseConfig `yaml:"database" mapstructure:"database"`
	User     UserConfig     `yaml:"user" mapstructure:"user"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
	Reports  ReportsConfig  `yaml:"reports" mapstructure:"reports"`

	// Team table consulted for team reports and pending approvals
	Teams []TeamConfig `yaml:"teams" mapstructure:"teams"`
}

// DatabaseConfig locates the SQLite file
type DatabaseConfig struct {
	Path     string `yaml:"path" mapstructure:"path"`
	LogLevel string `yaml:"log_level" mapstructure:"log_level"` // GORM logger: silent, error, warn, info
}

// UserConfig identifies who is running the CLI
type UserConfig struct {
	ID string `yaml:"id" mapstructure:"id"`
}

// LogConfig configures structured logging
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"` // text or json
}

// ReportsConfig configures the report cache. A zero TTL disables it.
type ReportsConfig struct {
	CacheTTL  time.Duration `yaml:"cache_ttl" mapstructure:"cache_ttl"`
	CacheSize int           `yaml:"cache_size" mapstructure:"cache_size"`
}

// TeamConfig is one team: its lead and members, by user id
type TeamConfig struct {
	Name    string   `yaml:"name" mapstructure:"name"`
	Lead    string   `yaml:"lead" mapstructure:"lead"`
	Members []string `yaml:"members" mapstructure:"members"`
}

// DefaultConfig returns the built-in defaults
func DefaultConfig() *Config {
	dbPath, err := db.DefaultPath()
	if err != nil {
		dbPath = "tally.db"
	}
	return &Config{
		Database: DatabaseConfig{
			Path:     dbPath,
			LogLevel: "silent",
		},
		Log: LogConfig{
			Level:  "warn",
			Format: "text",
		},
		Reports: ReportsConfig{
			CacheTTL:  time.Minute,
			CacheSize: 64,
		},
	}
}

// DefaultPath returns ~/.tally/config.yaml
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".tally", "config.yaml"), nil
}

// Load reads the config file at path on top of the defaults and applies
// TALLY_* environment overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// AutomaticEnv only sees keys viper already knows
	v.SetDefault("database.path", cfg.Database.Path)
	v.SetDefault("database.log_level", cfg.Database.LogLevel)
	v.SetDefault("user.id", cfg.User.ID)
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.format", cfg.Log.Format)
	v.SetDefault("reports.cache_ttl", cfg.Reports.CacheTTL)
	v.SetDefault("reports.cache_size", cfg.Reports.CacheSize)

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("stat config %s: %w", path, err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values viper cannot check for us
func (c *Config) Validate() error {
	var problems []string
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		problems = append(problems, fmt.Sprintf("log.format must be text or json, got %q", c.Log.Format))
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		problems = append(problems, fmt.Sprintf("log.level %q is not one of debug, info, warn, error", c.Log.Level))
	}
	if c.Reports.CacheTTL < 0 {
		problems = append(problems, "reports.cache_ttl must not be negative")
	}
	if c.User.ID != "" {
		if _, err := uuid.Parse(c.User.ID); err != nil {
			problems = append(problems, fmt.Sprintf("user.id is not a uuid: %v", err))
		}
	}
	if _, err := c.TeamTable(); err != nil {
		problems = append(problems, err.Error())
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// ErrNoUser is returned when no acting user is configured
var ErrNoUser = errors.New("no user configured: run 'tally config init' or pass --user")

// UserID returns the acting user
func (c *Config) UserID() (uuid.UUID, error) {
	if c.User.ID == "" {
		return uuid.Nil, ErrNoUser
	}
	id, err := uuid.Parse(c.User.ID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("user.id: %w", err)
	}
	return id, nil
}

// TeamTable turns the teams section into a lead -> members resolver
func (c *Config) TeamTable() (db.StaticTeams, error) {
	table := db.StaticTeams{}
	for i, team := range c.Teams {
		lead, err := uuid.Parse(team.Lead)
		if err != nil {
			return nil, fmt.Errorf("teams[%d] (%s) lead: %w", i, team.Name, err)
		}
		for _, m := range team.Members {
			id, err := uuid.Parse(m)
			if err != nil {
				return nil, fmt.Errorf("teams[%d] (%s) member %q: %w", i, team.Name, m, err)
			}
			table[lead] = append(table[lead], id)
		}
	}
	return table, nil
}

// WriteDefault writes the defaults with a fresh user id to path.
// It refuses to overwrite an existing file.
func WriteDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("config already exists at %s", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create config directory: %w", err)
	}

	cfg := DefaultConfig()
	cfg.User.ID = uuid.NewString()
	body, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	header := "# tally configuration\n# Environment variables override any key, e.g. TALLY_USER_ID, TALLY_LOG_LEVEL.\n"
	if err := os.WriteFile(path, append([]byte(header), body...), 0644); err != nil {
		return nil, fmt.Errorf("write config: %w", err)
	}
	return cfg, nil
}

// YAML renders the effective configuration
func (c *Config) YAML() (string, error) {
	body, err := yaml.Marshal(c)
	if err != nil {
		return "", err
	}
	return string(body), nil
}
