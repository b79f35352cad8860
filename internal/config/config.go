// Package config centralizes runtime configuration for prm. It loads a
// JSON or YAML configuration file and merges it over defaults. Tests and development
// builds use the defaults when the file is not present. Operators point the
// server at a file with -config or the CONFIG_FILE env var.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds configurable options for the prm service.
type Config struct {
	DBFile         string  `json:"db_file" yaml:"db_file"`
	InMemory       bool    `json:"in_memory" yaml:"in_memory"`
	Port           int     `json:"port" yaml:"port"`
	MaxHistory     int     `json:"max_history" yaml:"max_history"`         // per-sender cap, 0 = unbounded
	RatePerSecond  float64 `json:"rate_per_second" yaml:"rate_per_second"` // per-caller, negative disables
	RateBurst      int     `json:"rate_burst" yaml:"rate_burst"`
	RecentEvents   int     `json:"recent_events" yaml:"recent_events"`
	MaxBackups     int     `json:"max_backups" yaml:"max_backups"`
	BackupInterval string  `json:"backup_interval" yaml:"backup_interval"` // Go duration, empty disables
	DocsDir        string  `json:"docs_dir" yaml:"docs_dir"`
	LogBuffer      int     `json:"log_buffer" yaml:"log_buffer"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		DBFile:        "ledger.db",
		Port:          8080,
		RatePerSecond: 5,
		RateBurst:     10,
		RecentEvents:  100,
		MaxBackups:    20,
		DocsDir:       "docs",
		LogBuffer:     200,
	}
}

// Load reads a JSON file at path (YAML when it ends in .yaml or .yml). A missing file yields defaults; a file
// that exists but cannot be parsed is an error. The PORT env var overrides
// the port.
func Load(path string) (*Config, error) {
	def := Default()
	c := *def

	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			c = Config{}
			if err := unmarshal(path, b, &c); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
			mergeDefaults(&c, def)
		}
	}

	if portStr := os.Getenv("PORT"); portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil || port <= 0 || port > 65535 {
			return nil, fmt.Errorf("invalid PORT value %q", portStr)
		}
		c.Port = port
	}

	if c.MaxHistory < 0 {
		return nil, fmt.Errorf("max_history must not be negative")
	}

	return &c, nil
}

func unmarshal(path string, b []byte, c *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(b, c)
	default:
		return json.Unmarshal(b, c)
	}
}

// merge defaults for any zero-value fields
func mergeDefaults(c, def *Config) {
	if c.DBFile == "" {
		c.DBFile = def.DBFile
	}
	if c.Port == 0 {
		c.Port = def.Port
	}
	if c.RatePerSecond == 0 {
		c.RatePerSecond = def.RatePerSecond
	}
	if c.RateBurst == 0 {
		c.RateBurst = def.RateBurst
	}
	if c.RecentEvents == 0 {
		c.RecentEvents = def.RecentEvents
	}
	if c.MaxBackups == 0 {
		c.MaxBackups = def.MaxBackups
	}
	if c.DocsDir == "" {
		c.DocsDir = def.DocsDir
	}
	if c.LogBuffer == 0 {
		c.LogBuffer = def.LogBuffer
	}
}
