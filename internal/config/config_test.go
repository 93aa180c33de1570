package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("SIMC_HOME", home)
	t.Setenv("SIMC_LOG_LEVEL", "")
	t.Setenv("SIMC_CACHE_SIZE", "")
	t.Setenv("SIMC_WORKERS", "")
	return home
}

func TestDefaultConfig(t *testing.T) {
	home := clearEnv(t)
	t.Setenv("SIMC_WORKERS", "3")

	c := DefaultConfig()
	assert.Equal(t, home, c.Home)
	assert.Equal(t, "info", c.LogLevel)
	assert.Equal(t, 256, c.CacheSize)
	assert.GreaterOrEqual(t, c.Workers, 1)
	assert.Equal(t, filepath.Join(home, "history"), c.HistoryFile)
	assert.Equal(t, filepath.Join(home, "config.yaml"), c.Path())
}

func TestApplyEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("SIMC_LOG_LEVEL", "debug")
	t.Setenv("SIMC_CACHE_SIZE", "0")
	t.Setenv("SIMC_WORKERS", "3")

	c := DefaultConfig()
	require.NoError(t, c.ApplyEnv())
	assert.Equal(t, "debug", c.LogLevel)
	assert.Equal(t, 0, c.CacheSize)
	assert.Equal(t, 3, c.Workers)
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		env     map[string]string
		check   func(t *testing.T, c *Config)
		wantErr string
	}{
		{
			name: "No file",
			check: func(t *testing.T, c *Config) {
				assert.Equal(t, 256, c.CacheSize)
			},
		},
		{
			name: "Partial overlay",
			file: "log_level: warn\nworkers: 2\n",
			check: func(t *testing.T, c *Config) {
				assert.Equal(t, "warn", c.LogLevel)
				assert.Equal(t, 2, c.Workers)
				assert.Equal(t, 256, c.CacheSize)
			},
		},
		{
			name: "History file",
			file: "history_file: /tmp/simc-history\n",
			check: func(t *testing.T, c *Config) {
				assert.Equal(t, "/tmp/simc-history", c.HistoryFile)
			},
		},
		{
			name: "Environment beats file",
			file: "log_level: warn\nworkers: 2\ncache_size: 8\n",
			env:  map[string]string{"SIMC_LOG_LEVEL": "debug", "SIMC_WORKERS": "5"},
			check: func(t *testing.T, c *Config) {
				assert.Equal(t, "debug", c.LogLevel)
				assert.Equal(t, 5, c.Workers)
				assert.Equal(t, 8, c.CacheSize)
			},
		},
		{
			name: "Environment fixes file",
			file: "workers: 0\n",
			env:  map[string]string{"SIMC_WORKERS": "2"},
			check: func(t *testing.T, c *Config) {
				assert.Equal(t, 2, c.Workers)
			},
		},
		{name: "Bad YAML", file: "workers: [1, 2\n", wantErr: "parse"},
		{name: "Zero workers", file: "workers: 0\n", wantErr: "workers must be at least 1"},
		{name: "Negative cache", file: "cache_size: -1\n", wantErr: "cache_size must not be negative"},
		{
			name:    "Malformed environment",
			env:     map[string]string{"SIMC_WORKERS": "many"},
			wantErr: `SIMC_WORKERS: "many" is not an integer`,
		},
		{
			name:    "Invalid environment without file",
			env:     map[string]string{"SIMC_CACHE_SIZE": "-4"},
			wantErr: "cache_size must not be negative",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			home := clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if tt.file != "" {
				require.NoError(t, os.WriteFile(filepath.Join(home, "config.yaml"), []byte(tt.file), 0644))
			}

			c, err := Load()
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			tt.check(t, c)
		})
	}
}

func TestEnsureDirs(t *testing.T) {
	home := filepath.Join(t.TempDir(), "nested", "simc")
	c := &Config{Home: home}
	require.NoError(t, c.EnsureDirs())
	info, err := os.Stat(home)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}
