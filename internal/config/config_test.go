package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestDefaultConfig(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()

	if cfg.Log.Format != "text" || cfg.Log.Level != "warn" {
		t.Errorf("unexpected log defaults %+v", cfg.Log)
	}
	if cfg.Reports.CacheTTL != time.Minute {
		t.Errorf("expected 1m cache ttl, got %s", cfg.Reports.CacheTTL)
	}
	if !strings.HasSuffix(cfg.Database.Path, "tally.db") {
		t.Errorf("unexpected database path %s", cfg.Database.Path)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
	if _, err := cfg.UserID(); err != ErrNoUser {
		t.Errorf("expected ErrNoUser, got %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("missing file should fall back to defaults: %v", err)
	}
	if cfg.Database.LogLevel != "silent" {
		t.Errorf("expected defaults, got %+v", cfg.Database)
	}
}

func TestLoadFile(t *testing.T) {
	t.Parallel()
	lead, member := uuid.New(), uuid.New()
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `database:
  path: /tmp/tally-test.db
user:
  id: ` + lead.String() + `
log:
  format: json
reports:
  cache_ttl: 30s
teams:
  - name: platform
    lead: ` + lead.String() + `
    members:
      - ` + member.String() + `
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Database.Path != "/tmp/tally-test.db" || cfg.Log.Format != "json" {
		t.Errorf("file values not applied: %+v", cfg)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("unset keys should keep defaults, got level %q", cfg.Log.Level)
	}
	if cfg.Reports.CacheTTL != 30*time.Second {
		t.Errorf("expected 30s ttl, got %s", cfg.Reports.CacheTTL)
	}

	id, err := cfg.UserID()
	if err != nil || id != lead {
		t.Errorf("expected user %s, got %s (%v)", lead, id, err)
	}

	teams, err := cfg.TeamTable()
	if err != nil {
		t.Fatal(err)
	}
	if len(teams[lead]) != 1 || teams[lead][0] != member {
		t.Errorf("unexpected team table %v", teams)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	user := uuid.New()
	t.Setenv("TALLY_USER_ID", user.String())
	t.Setenv("TALLY_LOG_LEVEL", "debug")

	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.User.ID != user.String() || cfg.Log.Level != "debug" {
		t.Errorf("environment not applied: %+v %+v", cfg.User, cfg.Log)
	}
}

func TestLoadInvalid(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		content string
	}{
		{"bad format", "log:\n  format: xml\n"},
		{"bad level", "log:\n  level: loud\n"},
		{"bad user", "user:\n  id: bob\n"},
		{"bad lead", "teams:\n  - name: x\n    lead: nobody\n"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			path := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(path, []byte(tt.content), 0644); err != nil {
				t.Fatal(err)
			}
			if _, err := Load(path); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestWriteDefault(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	written, err := WriteDefault(path)
	if err != nil {
		t.Fatalf("WriteDefault failed: %v", err)
	}
	if _, err := uuid.Parse(written.User.ID); err != nil {
		t.Fatalf("expected a generated user id: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.User.ID != written.User.ID || loaded.Reports.CacheTTL != written.Reports.CacheTTL {
		t.Errorf("written config does not round-trip: %+v", loaded)
	}

	if _, err := WriteDefault(path); err == nil {
		t.Error("expected WriteDefault to refuse overwriting")
	}
}
