// Copyright 2026 The Assetvault Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides configuration loading for assetvault
// commands.
//
// Configuration is loaded from a single file specified by:
//   - ASSETVAULT_CONFIG environment variable, or
//   - --config flag passed to the command
//
// There are no fallbacks or automatic discovery. The config file may
// contain environment-specific sections (development, staging,
// production) that override base values when the environment matches.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"
)

// Environment represents the deployment environment.
type Environment string

const (
	// Development is for local development machines.
	Development Environment = "development"
	// Staging is for pre-production testing.
	Staging Environment = "staging"
	// Production is for shipped game clients.
	Production Environment = "production"
)

// Config is the master configuration for assetvault.
type Config struct {
	// Environment identifies the deployment type.
	Environment Environment `yaml:"environment"`

	// Cache configures the local asset store.
	Cache CacheConfig `yaml:"cache"`

	// Loader configures bundle loading and patching.
	Loader LoaderConfig `yaml:"loader"`

	// EnvironmentOverrides contains per-environment overrides,
	// applied after the base config is loaded.
	Development *Overrides `yaml:"development,omitempty"`
	Staging     *Overrides `yaml:"staging,omitempty"`
	Production  *Overrides `yaml:"production,omitempty"`
}

// Overrides contains fields that can be overridden per environment.
type Overrides struct {
	Cache  *CacheConfig  `yaml:"cache,omitempty"`
	Loader *LoaderConfig `yaml:"loader,omitempty"`
}

// CacheConfig configures the local asset store.
type CacheConfig struct {
	// Path is the SQLite database file holding the cache.
	// Default: ${HOME}/.cache/assetvault/cache.db
	Path string `yaml:"path"`

	// MaxSize is the eviction budget as a human-readable size
	// ("512 MiB", "2 GB"). Empty disables eviction.
	MaxSize string `yaml:"max_size"`

	// PoolSize is the SQLite connection pool size.
	// Default: 0 (derived from GOMAXPROCS)
	PoolSize int `yaml:"pool_size"`
}

// LoaderConfig configures bundle loading and patching.
type LoaderConfig struct {
	// SourceRoot is the directory holding bundle distributions
	// (one subdirectory per bundle, each with a manifest).
	SourceRoot string `yaml:"source_root"`

	// Workers bounds concurrent asset fetches per load.
	// Default: 4
	Workers int `yaml:"workers"`

	// MaxAttempts is the per-asset retry budget.
	// Default: 3
	MaxAttempts int `yaml:"max_attempts"`

	// AllowPartial commits bundles even when some assets failed.
	// Default: false; development overrides may enable it.
	AllowPartial bool `yaml:"allow_partial"`
}

// Default returns the default configuration. These defaults are used
// as a base before loading the config file; the config file is still
// required for Load.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	defaultRoot := filepath.Join(homeDir, ".cache", "assetvault")

	return &Config{
		Environment: Development,
		Cache: CacheConfig{
			Path:    filepath.Join(defaultRoot, "cache.db"),
			MaxSize: "512 MiB",
		},
		Loader: LoaderConfig{
			Workers:     4,
			MaxAttempts: 3,
		},
	}
}

// Load loads configuration from the ASSETVAULT_CONFIG environment
// variable. There are no fallbacks: if the variable is not set, this
// fails.
func Load() (*Config, error) {
	configPath := os.Getenv("ASSETVAULT_CONFIG")
	if configPath == "" {
		return nil, fmt.Errorf("ASSETVAULT_CONFIG environment variable not set; " +
			"set it to the path of your assetvault.yaml config file, or use --config flag")
	}

	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path. The config
// file is the single source of truth; environment variables do not
// override config values. The only expansion performed is ${HOME} and
// similar path variables for portability.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	cfg.applyEnvironmentOverrides()
	cfg.expandVariables()

	return cfg, nil
}

// MaxSizeBytes parses the cache size budget. Zero means eviction is
// disabled.
func (c *Config) MaxSizeBytes() (int64, error) {
	if c.Cache.MaxSize == "" {
		return 0, nil
	}
	size, err := humanize.ParseBytes(c.Cache.MaxSize)
	if err != nil {
		return 0, fmt.Errorf("parsing cache.max_size %q: %w", c.Cache.MaxSize, err)
	}
	return int64(size), nil
}

// applyEnvironmentOverrides applies the environment-specific override
// section matching c.Environment.
func (c *Config) applyEnvironmentOverrides() {
	var overrides *Overrides

	switch c.Environment {
	case Development:
		overrides = c.Development
	case Staging:
		overrides = c.Staging
	case Production:
		overrides = c.Production
	}

	if overrides == nil {
		return
	}

	if overrides.Cache != nil {
		if overrides.Cache.Path != "" {
			c.Cache.Path = overrides.Cache.Path
		}
		if overrides.Cache.MaxSize != "" {
			c.Cache.MaxSize = overrides.Cache.MaxSize
		}
		if overrides.Cache.PoolSize != 0 {
			c.Cache.PoolSize = overrides.Cache.PoolSize
		}
	}

	if overrides.Loader != nil {
		if overrides.Loader.SourceRoot != "" {
			c.Loader.SourceRoot = overrides.Loader.SourceRoot
		}
		if overrides.Loader.Workers != 0 {
			c.Loader.Workers = overrides.Loader.Workers
		}
		if overrides.Loader.MaxAttempts != 0 {
			c.Loader.MaxAttempts = overrides.Loader.MaxAttempts
		}
		// AllowPartial is a bool, so overrides always apply it.
		c.Loader.AllowPartial = overrides.Loader.AllowPartial
	}
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in
// paths.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}

	c.Cache.Path = expandVars(c.Cache.Path, vars)
	c.Loader.SourceRoot = expandVars(c.Loader.SourceRoot, vars)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Environment != Development && c.Environment != Staging && c.Environment != Production {
		errs = append(errs, fmt.Errorf("invalid environment: %s", c.Environment))
	}
	if c.Cache.Path == "" {
		errs = append(errs, fmt.Errorf("cache.path is required"))
	}
	if _, err := c.MaxSizeBytes(); err != nil {
		errs = append(errs, err)
	}
	if c.Cache.PoolSize < 0 {
		errs = append(errs, fmt.Errorf("cache.pool_size must not be negative"))
	}
	if c.Loader.Workers < 0 {
		errs = append(errs, fmt.Errorf("loader.workers must not be negative"))
	}
	if c.Loader.MaxAttempts < 0 {
		errs = append(errs, fmt.Errorf("loader.max_attempts must not be negative"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// EnsurePaths creates the cache database's parent directory if it does
// not exist.
func (c *Config) EnsurePaths() error {
	dir := filepath.Dir(c.Cache.Path)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}
	return nil
}
