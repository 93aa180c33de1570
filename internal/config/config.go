// Package config provides configuration for the simc command.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds configuration for the simc command.
type Config struct {
	// Home is the root directory for simc data.
	// Defaults to ~/.simc
	Home string `yaml:"-"`

	// LogLevel is one of trace, debug, info, warn, error, critical or off.
	LogLevel string `yaml:"log_level"`

	// CacheSize is the number of compile artifacts kept in memory.
	// Zero disables the cache.
	CacheSize int `yaml:"cache_size"`

	// Workers bounds how many files compile concurrently.
	Workers int `yaml:"workers"`

	// HistoryFile is where the REPL keeps its history.
	// Defaults to Home/history
	HistoryFile string `yaml:"history_file"`
}

// DefaultConfig returns the built-in defaults. Only Home is taken from the
// environment, since it locates the config file.
func DefaultConfig() *Config {
	home := defaultHome()
	return &Config{
		Home:        home,
		LogLevel:    "info",
		CacheSize:   256,
		Workers:     runtime.GOMAXPROCS(0),
		HistoryFile: filepath.Join(home, "history"),
	}
}

// defaultHome uses SIMC_HOME if set, otherwise ~/.simc
func defaultHome() string {
	if dir := os.Getenv("SIMC_HOME"); dir != "" {
		return dir
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".simc")
	}
	return filepath.Join(homeDir, ".simc")
}

// ApplyEnv overlays the SIMC_LOG_LEVEL, SIMC_CACHE_SIZE and SIMC_WORKERS
// environment variables. Unset or empty variables are skipped.
func (c *Config) ApplyEnv() error {
	if lvl := os.Getenv("SIMC_LOG_LEVEL"); lvl != "" {
		c.LogLevel = lvl
	}
	if err := envInt("SIMC_CACHE_SIZE", &c.CacheSize); err != nil {
		return err
	}
	return envInt("SIMC_WORKERS", &c.Workers)
}

func envInt(name string, dst *int) error {
	v := os.Getenv(name)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %q is not an integer", name, v)
	}
	*dst = n
	return nil
}

// Path returns the location of the config file.
func (c *Config) Path() string {
	return filepath.Join(c.Home, "config.yaml")
}

// Load builds the configuration from the built-in defaults, then the config
// file if one exists, then the environment, and validates the result.
func Load() (*Config, error) {
	c := DefaultConfig()
	if err := c.LoadFile(c.Path()); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	if err := c.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// LoadFile overlays the YAML file at path onto c. Keys missing from the file
// keep their current values.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

// Validate checks the numeric settings.
func (c *Config) Validate() error {
	if c.CacheSize < 0 {
		return fmt.Errorf("cache_size must not be negative, got %d", c.CacheSize)
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	return nil
}

// EnsureDirs creates the home directory.
func (c *Config) EnsureDirs() error {
	return os.MkdirAll(c.Home, 0755)
}
