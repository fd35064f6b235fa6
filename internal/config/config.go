// Package config loads dexcfg settings from YAML files and the environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"dexcfg/internal/render"
)

// Output formats.
const (
	FormatDOT     = "dot"
	FormatJSON    = "json"
	FormatLattice = "lattice"
)

// Config holds all configuration for dexcfg.
type Config struct {
	// Format is the default CFG output format: dot, json or lattice.
	Format string `yaml:"format" env:"DEXCFG_FORMAT"`

	// Theme names the DOT color theme.
	Theme string `yaml:"theme" env:"DEXCFG_THEME"`

	// MaxBlockLines truncates long basic blocks in DOT labels (0 = never).
	MaxBlockLines int `yaml:"max_block_lines" env:"DEXCFG_MAX_BLOCK_LINES"`

	// ResolveNames renders pool references as names instead of kind@index.
	ResolveNames bool `yaml:"resolve_names" env:"DEXCFG_RESOLVE_NAMES"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" env:"DEXCFG_LOG_LEVEL"`

	// Jobs bounds concurrent method analysis in batch mode.
	Jobs int `yaml:"jobs" env:"DEXCFG_JOBS"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Format:        FormatDOT,
		Theme:         "nasa",
		MaxBlockLines: 0,
		ResolveNames:  true,
		LogLevel:      "info",
		Jobs:          8,
	}
}

// globalConfigFilePath returns ~/.dexcfg/config.yaml.
func globalConfigFilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".dexcfg", "config.yaml")
	}
	return filepath.Join(home, ".dexcfg", "config.yaml")
}

// projectConfigFilePath returns ./.dexcfg.yaml.
func projectConfigFilePath() string {
	return ".dexcfg.yaml"
}

// Load reads configuration with the following priority (highest to lowest):
//  1. Environment variables (DEXCFG_*)
//  2. Project config (./.dexcfg.yaml)
//  3. Global config (~/.dexcfg/config.yaml)
//  4. Defaults
//
// Missing files are skipped; malformed ones are errors.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	for _, path := range []string{globalConfigFilePath(), projectConfigFilePath()} {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromFile reads configuration from a specific YAML file, then applies
// environment overrides.
func LoadFromFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration as YAML, creating parent directories.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("config: mkdir: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("DEXCFG_FORMAT"); v != "" {
		cfg.Format = v
	}
	if v := os.Getenv("DEXCFG_THEME"); v != "" {
		cfg.Theme = v
	}
	if v := os.Getenv("DEXCFG_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("DEXCFG_MAX_BLOCK_LINES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: DEXCFG_MAX_BLOCK_LINES: %w", err)
		}
		cfg.MaxBlockLines = n
	}
	if v := os.Getenv("DEXCFG_JOBS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: DEXCFG_JOBS: %w", err)
		}
		cfg.Jobs = n
	}
	if v := os.Getenv("DEXCFG_RESOLVE_NAMES"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("config: DEXCFG_RESOLVE_NAMES: %w", err)
		}
		cfg.ResolveNames = b
	}
	return nil
}

// Validate checks field values.
func (c *Config) Validate() error {
	switch c.Format {
	case FormatDOT, FormatJSON, FormatLattice:
	default:
		return fmt.Errorf("config: invalid format %q (must be dot, json or lattice)", c.Format)
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: invalid log_level %q", c.LogLevel)
	}
	if _, err := render.ThemeByName(c.Theme); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.MaxBlockLines < 0 {
		return fmt.Errorf("config: max_block_lines must be non-negative")
	}
	if c.Jobs <= 0 {
		return fmt.Errorf("config: jobs must be positive")
	}
	return nil
}
