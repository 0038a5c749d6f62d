// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Environment != Development {
		t.Errorf("expected environment=development, got %s", cfg.Environment)
	}

	if cfg.Store.Compression != "lz4" {
		t.Errorf("expected compression=lz4, got %s", cfg.Store.Compression)
	}

	if cfg.Store.CacheCapacity != 1000 {
		t.Errorf("expected cache_capacity=1000, got %d", cfg.Store.CacheCapacity)
	}

	if !strings.HasSuffix(cfg.Paths.Root, filepath.Join(".local", "share", "examvault")) {
		t.Errorf("unexpected default root %s", cfg.Paths.Root)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("default config does not validate: %v", err)
	}
}

func TestLoad_RequiresConfigVariable(t *testing.T) {
	t.Setenv(EnvVar, "")

	_, err := Load()
	if err == nil {
		t.Fatalf("expected error when %s not set, got nil", EnvVar)
	}

	expectedMsg := EnvVar + " environment variable not set"
	if !strings.HasPrefix(err.Error(), expectedMsg) {
		t.Errorf("expected error message to start with %q, got %q", expectedMsg, err.Error())
	}
}

func TestLoad_WithConfigVariable(t *testing.T) {
	configPath := writeConfig(t, "examvault.yaml", `
environment: production
paths:
  root: /test/root
`)
	t.Setenv(EnvVar, configPath)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Environment != Production {
		t.Errorf("expected environment=production, got %s", cfg.Environment)
	}

	if cfg.Paths.Root != "/test/root" {
		t.Errorf("expected root=/test/root, got %s", cfg.Paths.Root)
	}
}

func TestLoadFile(t *testing.T) {
	configPath := writeConfig(t, "examvault.yaml", `
environment: production

paths:
  root: /custom/root
  staging: /custom/staging

keys:
  master_key_file: /custom/master.key

store:
  cache_capacity: 50
  compression: zstd
  io_concurrency: 2

exchange:
  io_concurrency: 3
  scrypt_work_factor: 15

log:
  level: debug
  format: json
`)

	cfg, err := LoadFile(configPath)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}

	if cfg.Paths.Root != "/custom/root" {
		t.Errorf("expected root=/custom/root, got %s", cfg.Paths.Root)
	}
	if cfg.StagingDir() != "/custom/staging" {
		t.Errorf("expected staging=/custom/staging, got %s", cfg.StagingDir())
	}
	if cfg.Keys.MasterKeyFile != "/custom/master.key" {
		t.Errorf("expected master_key_file=/custom/master.key, got %s", cfg.Keys.MasterKeyFile)
	}
	if cfg.Store.CacheCapacity != 50 || cfg.Store.Compression != "zstd" || cfg.Store.IOConcurrency != 2 {
		t.Errorf("unexpected store config %+v", cfg.Store)
	}
	if cfg.Exchange.IOConcurrency != 3 || cfg.Exchange.ScryptWorkFactor != 15 {
		t.Errorf("unexpected exchange config %+v", cfg.Exchange)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
		t.Errorf("unexpected log config %+v", cfg.Log)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
}

func TestLoadFile_JSONC(t *testing.T) {
	configPath := writeConfig(t, "examvault.jsonc", `{
  // Comments and trailing commas are accepted.
  "environment": "production",
  "paths": {"root": "/json/root",},
  "store": {"compression": "none"},
}`)

	cfg, err := LoadFile(configPath)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}

	if cfg.Paths.Root != "/json/root" {
		t.Errorf("expected root=/json/root, got %s", cfg.Paths.Root)
	}
	if cfg.Store.Compression != "none" {
		t.Errorf("expected compression=none, got %s", cfg.Store.Compression)
	}
	// Unset fields keep their defaults.
	if cfg.Store.CacheCapacity != 1000 {
		t.Errorf("expected default cache_capacity, got %d", cfg.Store.CacheCapacity)
	}
}

func TestLoadFile_Malformed(t *testing.T) {
	configPath := writeConfig(t, "examvault.yaml", "paths: [unterminated\n")

	if _, err := LoadFile(configPath); err == nil {
		t.Fatal("expected parse error")
	}

	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	configPath := writeConfig(t, "examvault.yaml", `
environment: production

paths:
  root: /default/root

store:
  compression: lz4

log:
  level: debug

development:
  paths:
    root: /dev/root

production:
  paths:
    root: /prod/root
  store:
    compression: zstd
    cache_capacity: 5000
  log:
    level: warn
`)

	cfg, err := LoadFile(configPath)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}

	// Production overrides should be applied.
	if cfg.Paths.Root != "/prod/root" {
		t.Errorf("expected root=/prod/root, got %s", cfg.Paths.Root)
	}
	if cfg.Store.Compression != "zstd" {
		t.Errorf("expected compression=zstd, got %s", cfg.Store.Compression)
	}
	if cfg.Store.CacheCapacity != 5000 {
		t.Errorf("expected cache_capacity=5000, got %d", cfg.Store.CacheCapacity)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("expected level=warn, got %s", cfg.Log.Level)
	}
}

func TestEnvVarsDoNotOverride(t *testing.T) {
	// Only path expansion reads the environment; plain values come from
	// the file.
	t.Setenv("EXAMVAULT_ROOT", "/env/root")
	t.Setenv("EXAMVAULT_ENVIRONMENT", "production")

	configPath := writeConfig(t, "examvault.yaml", `
environment: development
paths:
  root: /file/root
`)

	cfg, err := LoadFile(configPath)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}

	if cfg.Environment != Development {
		t.Errorf("expected environment=development from file, got %s", cfg.Environment)
	}
	if cfg.Paths.Root != "/file/root" {
		t.Errorf("expected root=/file/root from file, got %s", cfg.Paths.Root)
	}
}

func TestPathExpansion(t *testing.T) {
	t.Setenv("HOME", "/home/tester")

	configPath := writeConfig(t, "examvault.yaml", `
paths:
  root: ${HOME}/vault
  staging: ${EXAMVAULT_ROOT}/scratch
keys:
  master_key_file: ${EXAMVAULT_TEST_KEY_DIR:-/etc/keys}/master.key
`)

	cfg, err := LoadFile(configPath)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}

	if cfg.Paths.Root != "/home/tester/vault" {
		t.Errorf("root = %s", cfg.Paths.Root)
	}
	if cfg.Paths.Staging != "/home/tester/vault/scratch" {
		t.Errorf("staging = %s", cfg.Paths.Staging)
	}
	if cfg.Keys.MasterKeyFile != "/etc/keys/master.key" {
		t.Errorf("master_key_file = %s", cfg.Keys.MasterKeyFile)
	}
}

func TestExpandVars(t *testing.T) {
	tests := []struct {
		input    string
		vars     map[string]string
		expected string
	}{
		{
			input:    "${HOME}/examvault",
			vars:     map[string]string{"HOME": "/home/user"},
			expected: "/home/user/examvault",
		},
		{
			input:    "${EXAMVAULT_TEST_MISSING:-default}",
			vars:     map[string]string{},
			expected: "default",
		},
		{
			input:    "${PRESENT:-default}",
			vars:     map[string]string{"PRESENT": "value"},
			expected: "value",
		},
		{
			input:    "${A}/${B}",
			vars:     map[string]string{"A": "first", "B": "second"},
			expected: "first/second",
		},
		{
			input:    "no variables here",
			vars:     map[string]string{},
			expected: "no variables here",
		},
	}

	for _, tt := range tests {
		result := expandVars(tt.input, tt.vars)
		if result != tt.expected {
			t.Errorf("expandVars(%q) = %q, want %q", tt.input, result, tt.expected)
		}
	}
}

func TestStagingDirDefault(t *testing.T) {
	cfg := Default()
	cfg.Paths.Root = "/srv/vault"
	if got := cfg.StagingDir(); got != "/srv/vault/.staging" {
		t.Errorf("StagingDir() = %s", got)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid default config",
			modify:  func(c *Config) {},
			wantErr: false,
		},
		{
			name: "invalid environment",
			modify: func(c *Config) {
				c.Environment = "staging"
			},
			wantErr: true,
		},
		{
			name: "empty root path",
			modify: func(c *Config) {
				c.Paths.Root = ""
			},
			wantErr: true,
		},
		{
			name: "empty master key file",
			modify: func(c *Config) {
				c.Keys.MasterKeyFile = ""
			},
			wantErr: true,
		},
		{
			name: "unknown compression",
			modify: func(c *Config) {
				c.Store.Compression = "brotli"
			},
			wantErr: true,
		},
		{
			name: "zero cache capacity",
			modify: func(c *Config) {
				c.Store.CacheCapacity = 0
			},
			wantErr: true,
		},
		{
			name: "negative exchange concurrency",
			modify: func(c *Config) {
				c.Exchange.IOConcurrency = -1
			},
			wantErr: true,
		},
		{
			name: "scrypt work factor too low",
			modify: func(c *Config) {
				c.Exchange.ScryptWorkFactor = 4
			},
			wantErr: true,
		},
		{
			name: "invalid log format",
			modify: func(c *Config) {
				c.Log.Format = "xml"
			},
			wantErr: true,
		},
		{
			name: "invalid log level",
			modify: func(c *Config) {
				c.Log.Level = "trace"
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)

			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestEnsurePaths(t *testing.T) {
	tmpDir := t.TempDir()

	cfg := Default()
	cfg.Paths.Root = filepath.Join(tmpDir, "examvault")

	if err := cfg.EnsurePaths(); err != nil {
		t.Fatalf("EnsurePaths failed: %v", err)
	}

	for _, path := range []string{cfg.Paths.Root, cfg.StagingDir()} {
		info, err := os.Stat(path)
		if err != nil {
			t.Errorf("path %s not created: %v", path, err)
			continue
		}
		if !info.IsDir() {
			t.Errorf("path %s is not a directory", path)
		}
	}
}
