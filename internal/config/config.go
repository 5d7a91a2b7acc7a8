// Package config loads symgraph settings from a YAML file with environment
// variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all runtime settings.
type Config struct {
	Workspace string `yaml:"workspace"`
	DBPath    string `yaml:"db_path"`
	LogLevel  string `yaml:"log_level"`

	Audit AuditConfig `yaml:"audit"`
	LSP   LSPConfig   `yaml:"lsp"`
	Watch WatchConfig `yaml:"watch"`
}

// AuditConfig controls the post-merge graph consistency audit.
type AuditConfig struct {
	Enabled bool `yaml:"enabled"`
	Verbose bool `yaml:"verbose"`
}

// LSPConfig controls language-server reference enrichment.
type LSPConfig struct {
	Enabled     bool              `yaml:"enabled"`
	ServerPaths map[string]string `yaml:"server_paths"`
}

// WatchConfig controls filesystem watching.
type WatchConfig struct {
	Enabled    bool `yaml:"enabled"`
	DebounceMS int  `yaml:"debounce_ms"`
}

// Default returns the configuration used when no file or overrides are present.
func Default() *Config {
	return &Config{
		Workspace: ".",
		DBPath:    "", // derived from workspace unless set
		LogLevel:  "info",
		Audit: AuditConfig{
			Enabled: true,
			Verbose: false,
		},
		LSP: LSPConfig{
			Enabled:     false,
			ServerPaths: map[string]string{},
		},
		Watch: WatchConfig{
			Enabled:    false,
			DebounceMS: 300,
		},
	}
}

// Load reads configuration from path (optional), then applies SYMGRAPH_*
// environment overrides. A missing file is not an error; a malformed one is.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnv(cfg)

	if cfg.DBPath == "" {
		cfg.DBPath = filepath.Join(cfg.Workspace, ".symgraph", "index.db")
	}
	return cfg, nil
}

// DebounceInterval returns the watch debounce as a duration.
func (c *Config) DebounceInterval() time.Duration {
	return time.Duration(c.Watch.DebounceMS) * time.Millisecond
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("SYMGRAPH_WORKSPACE"); v != "" {
		cfg.Workspace = v
	}
	if v := os.Getenv("SYMGRAPH_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("SYMGRAPH_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v, ok := envBool("SYMGRAPH_AUDIT"); ok {
		cfg.Audit.Enabled = v
	}
	if v, ok := envBool("SYMGRAPH_AUDIT_VERBOSE"); ok {
		cfg.Audit.Verbose = v
	}
	if v, ok := envBool("SYMGRAPH_LSP"); ok {
		cfg.LSP.Enabled = v
	}
	if v, ok := envBool("SYMGRAPH_WATCH"); ok {
		cfg.Watch.Enabled = v
	}
}

func envBool(key string) (bool, bool) {
	v := os.Getenv(key)
	if v == "" {
		return false, false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, false
	}
	return b, true
}
