package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/trustledger/trustledger/internal/store"
)

// FileName is the config file looked up in the working directory.
const FileName = "trustledger.yaml"

// Config represents the top-level trustledger.yaml configuration.
type Config struct {
	Firm       FirmConfig       `yaml:"firm"`
	Database   DatabaseConfig   `yaml:"database"`
	Log        LogConfig        `yaml:"log"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Monitor    MonitorConfig    `yaml:"monitor"`
	Statements StatementsConfig `yaml:"statements"`
	Import     ImportConfig     `yaml:"import"`
	Audit      AuditConfig      `yaml:"audit"`
}

// FirmConfig identifies the law firm and the default tenant for CLI calls.
type FirmConfig struct {
	Name       string `yaml:"name"`
	MerchantID string `yaml:"merchant_id"`
}

// DatabaseConfig locates the SQLite file and sizes the pool.
type DatabaseConfig struct {
	Path          string `yaml:"path"`
	MaxOpenConns  int    `yaml:"max_open_conns"`
	BusyTimeoutMS int    `yaml:"busy_timeout_ms"`
}

// DSN returns the driver DSN for the configured database file.
func (d DatabaseConfig) DSN() string {
	return store.DSN(d.Path, d.BusyTimeoutMS)
}

// LogConfig controls the zerolog logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // console or json
}

// MetricsConfig controls the ops listener used by serve.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// MonitorConfig controls the periodic three-way balance check.
type MonitorConfig struct {
	Interval    time.Duration `yaml:"interval"`
	Concurrency int           `yaml:"concurrency"`
}

// StatementsConfig holds client statement defaults.
type StatementsConfig struct {
	DefaultRangeMonths int `yaml:"default_range_months"`
}

// ImportConfig holds bank statement import defaults.
type ImportConfig struct {
	DefaultFormat  string `yaml:"default_format"`
	DateWindowDays int    `yaml:"date_window_days"`
}

// AuditConfig locates the append-only audit log.
type AuditConfig struct {
	Dir string `yaml:"dir"`
}

// Load reads a trustledger.yaml file from disk. Missing values fall back
// to Default, and relative paths resolve against the file's directory.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg := Default("")
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.resolve(filepath.Dir(path))
	return cfg, nil
}

// Save writes a Config to a YAML file.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Default returns a Config with sensible defaults for a new firm.
func Default(firmName string) *Config {
	return &Config{
		Firm: FirmConfig{
			Name: firmName,
		},
		Database: DatabaseConfig{
			Path:          "trustledger.db",
			MaxOpenConns:  1,
			BusyTimeoutMS: 5000,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		Metrics: MetricsConfig{
			Addr: "127.0.0.1:9464",
		},
		Monitor: MonitorConfig{
			Interval:    5 * time.Minute,
			Concurrency: 4,
		},
		Statements: StatementsConfig{
			DefaultRangeMonths: 3,
		},
		Import: ImportConfig{
			DefaultFormat:  "trust",
			DateWindowDays: 5,
		},
		Audit: AuditConfig{
			Dir: "audit",
		},
	}
}

// Validate rejects values the services cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.Database.Path == "":
		return fmt.Errorf("config: database.path is required")
	case c.Database.MaxOpenConns < 1:
		return fmt.Errorf("config: database.max_open_conns must be at least 1")
	case c.Database.BusyTimeoutMS < 0:
		return fmt.Errorf("config: database.busy_timeout_ms must not be negative")
	case c.Monitor.Interval <= 0:
		return fmt.Errorf("config: monitor.interval must be positive")
	case c.Statements.DefaultRangeMonths < 1:
		return fmt.Errorf("config: statements.default_range_months must be at least 1")
	case c.Import.DateWindowDays < 0:
		return fmt.Errorf("config: import.date_window_days must not be negative")
	}
	return nil
}

func (c *Config) resolve(base string) {
	abs := func(p string) string {
		if p == "" || filepath.IsAbs(p) || p == ":memory:" {
			return p
		}
		return filepath.Join(base, p)
	}
	c.Database.Path = abs(c.Database.Path)
	c.Audit.Dir = abs(c.Audit.Dir)
}
