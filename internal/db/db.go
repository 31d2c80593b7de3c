package db

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/balkashynov/tally/internal/models"
)

// MemoryPath opens a private in-memory database, used by tests
const MemoryPath = ":memory:"

// Open sets up the database connection and runs migrations.
// logLevel is one of silent, error, warn, info.
func Open(path, logLevel string) (*gorm.DB, error) {
	if path != MemoryPath {
		// Ensure the directory exists
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	gdb, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger:         logger.Default.LogMode(ParseLogLevel(logLevel)),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql handle: %w", err)
	}
	// SQLite has a single writer; one connection also keeps :memory: databases alive
	sqlDB.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	if path != MemoryPath {
		pragmas = append(pragmas, "PRAGMA journal_mode = WAL")
	}
	for _, p := range pragmas {
		if err := gdb.Exec(p).Error; err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("exec pragma %q: %w", p, err)
		}
	}

	if err := runMigrations(gdb); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return gdb, nil
}

// DefaultPath returns ~/.tally/tally.db
func DefaultPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".tally", "tally.db"), nil
}

// ParseLogLevel maps a config string onto GORM's logger levels; unknown values are silent.
func ParseLogLevel(level string) logger.LogLevel {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "error":
		return logger.Error
	case "warn", "warning":
		return logger.Warn
	case "info", "debug":
		return logger.Info
	default:
		return logger.Silent
	}
}

// runMigrations creates/updates the database schema
func runMigrations(gdb *gorm.DB) error {
	return gdb.AutoMigrate(
		&models.TimeCategory{},
		&models.TimeEntry{},
		&models.TrackingSession{},
		&models.Timesheet{},
		&models.TimesheetTransition{},
	)
}

// Close closes the database connection
func Close(gdb *gorm.DB) error {
	if gdb == nil {
		return nil
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
