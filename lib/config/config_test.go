// Copyright 2026 The Assetvault Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "assetvault.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
environment: development
cache:
  path: /tmp/av/cache.db
  max_size: 1 GiB
  pool_size: 2
loader:
  source_root: /srv/bundles
  workers: 8
`)

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Cache.Path != "/tmp/av/cache.db" {
		t.Errorf("Cache.Path = %q", cfg.Cache.Path)
	}
	if cfg.Loader.Workers != 8 {
		t.Errorf("Loader.Workers = %d, want 8", cfg.Loader.Workers)
	}
	// Unset fields keep defaults.
	if cfg.Loader.MaxAttempts != 3 {
		t.Errorf("Loader.MaxAttempts = %d, want default 3", cfg.Loader.MaxAttempts)
	}

	size, err := cfg.MaxSizeBytes()
	if err != nil {
		t.Fatalf("MaxSizeBytes: %v", err)
	}
	if size != 1<<30 {
		t.Errorf("MaxSizeBytes = %d, want %d", size, 1<<30)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	path := writeConfig(t, `
environment: production
cache:
  max_size: 512 MiB
loader:
  workers: 4
production:
  cache:
    max_size: 4 GiB
  loader:
    workers: 16
development:
  loader:
    allow_partial: true
`)

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Cache.MaxSize != "4 GiB" {
		t.Errorf("Cache.MaxSize = %q, want production override", cfg.Cache.MaxSize)
	}
	if cfg.Loader.Workers != 16 {
		t.Errorf("Loader.Workers = %d, want 16", cfg.Loader.Workers)
	}
	// The development section is ignored in production.
	if cfg.Loader.AllowPartial {
		t.Error("AllowPartial = true, development override leaked into production")
	}
}

func TestVariableExpansion(t *testing.T) {
	t.Setenv("HOME", "/home/player")

	path := writeConfig(t, `
environment: development
cache:
  path: ${HOME}/.cache/av/cache.db
`)

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Cache.Path != "/home/player/.cache/av/cache.db" {
		t.Errorf("Cache.Path = %q", cfg.Cache.Path)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad environment", func(c *Config) { c.Environment = "testing" }},
		{"empty cache path", func(c *Config) { c.Cache.Path = "" }},
		{"unparseable max size", func(c *Config) { c.Cache.MaxSize = "lots" }},
		{"negative workers", func(c *Config) { c.Loader.Workers = -1 }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestLoadRequiresEnvVar(t *testing.T) {
	t.Setenv("ASSETVAULT_CONFIG", "")
	if _, err := Load(); err == nil {
		t.Error("expected error when ASSETVAULT_CONFIG is unset")
	}
}

func TestMaxSizeEmptyDisablesEviction(t *testing.T) {
	cfg := Default()
	cfg.Cache.MaxSize = ""
	size, err := cfg.MaxSizeBytes()
	if err != nil {
		t.Fatalf("MaxSizeBytes: %v", err)
	}
	if size != 0 {
		t.Errorf("MaxSizeBytes = %d, want 0", size)
	}
}
