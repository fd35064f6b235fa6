package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points HOME and the working directory at empty temp dirs and
// clears DEXCFG_* variables.
func isolate(t *testing.T) (home, work string) {
	t.Helper()
	home, work = t.TempDir(), t.TempDir()
	t.Setenv("HOME", home)
	for _, k := range []string{"DEXCFG_FORMAT", "DEXCFG_THEME", "DEXCFG_LOG_LEVEL", "DEXCFG_MAX_BLOCK_LINES", "DEXCFG_JOBS", "DEXCFG_RESOLVE_NAMES"} {
		t.Setenv(k, "")
	}
	t.Chdir(work)
	return home, work
}

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	tests := []struct {
		name     string
		got      any
		expected any
	}{
		{"Format", cfg.Format, FormatDOT},
		{"Theme", cfg.Theme, "nasa"},
		{"MaxBlockLines", cfg.MaxBlockLines, 0},
		{"ResolveNames", cfg.ResolveNames, true},
		{"LogLevel", cfg.LogLevel, "info"},
		{"Jobs", cfg.Jobs, 8},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.got)
		})
	}
	assert.NoError(t, cfg.Validate())
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*Config)
		errContains string
	}{
		{"valid", func(*Config) {}, ""},
		{"json format", func(c *Config) { c.Format = FormatJSON }, ""},
		{"plain theme any case", func(c *Config) { c.Theme = "PLAIN" }, ""},
		{"unknown format", func(c *Config) { c.Format = "svg" }, "invalid format"},
		{"unknown theme", func(c *Config) { c.Theme = "neon" }, "unknown theme"},
		{"unknown level", func(c *Config) { c.LogLevel = "trace" }, "invalid log_level"},
		{"negative lines", func(c *Config) { c.MaxBlockLines = -1 }, "max_block_lines"},
		{"zero jobs", func(c *Config) { c.Jobs = 0 }, "jobs"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.errContains == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errContains)
		})
	}
}

func TestLoad_Precedence(t *testing.T) {
	home, work := isolate(t)

	writeFile(t, filepath.Join(home, ".dexcfg", "config.yaml"),
		"theme: plain\nmax_block_lines: 10\njobs: 2\n")
	writeFile(t, filepath.Join(work, ".dexcfg.yaml"),
		"max_block_lines: 20\n")
	t.Setenv("DEXCFG_JOBS", "3")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "plain", cfg.Theme, "global file applies")
	assert.Equal(t, 20, cfg.MaxBlockLines, "project file overrides global")
	assert.Equal(t, 3, cfg.Jobs, "env overrides files")
	assert.Equal(t, FormatDOT, cfg.Format, "defaults fill the rest")
}

func TestLoad_NoFiles(t *testing.T) {
	isolate(t)
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoad_MalformedFile(t *testing.T) {
	_, work := isolate(t)
	writeFile(t, filepath.Join(work, ".dexcfg.yaml"), "jobs: [1, 2\n")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), ".dexcfg.yaml")
}

func TestLoad_BadEnv(t *testing.T) {
	isolate(t)
	t.Setenv("DEXCFG_RESOLVE_NAMES", "maybe")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DEXCFG_RESOLVE_NAMES")
}

func TestLoad_InvalidValue(t *testing.T) {
	isolate(t)
	t.Setenv("DEXCFG_FORMAT", "png")
	_, err := Load()
	assert.Error(t, err)
}

func TestLoadFromFile(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "custom.yaml")
	writeFile(t, path, "format: json\nresolve_names: false\nlog_level: debug\n")

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, cfg.Format)
	assert.False(t, cfg.ResolveNames)
	assert.Equal(t, "debug", cfg.LogLevel)

	_, err = LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestSaveRoundTrip(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := DefaultConfig()
	cfg.Theme = "plain"
	cfg.Jobs = 4
	require.NoError(t, cfg.Save(path))

	loaded, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}
