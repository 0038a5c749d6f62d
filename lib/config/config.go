// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/bureau-foundation/examvault/lib/objcodec"
)

// EnvVar names the environment variable holding the config file path.
const EnvVar = "EXAMVAULT_CONFIG"

// Environment represents the deployment environment.
type Environment string

const (
	// Development is for local development machines.
	Development Environment = "development"
	// Production is for installed deployments.
	Production Environment = "production"
)

// Config is the master configuration for examvault.
type Config struct {
	// Environment identifies the deployment type.
	Environment Environment `yaml:"environment"`

	Paths    PathsConfig    `yaml:"paths"`
	Keys     KeysConfig     `yaml:"keys"`
	Store    StoreConfig    `yaml:"store"`
	Exchange ExchangeConfig `yaml:"exchange"`
	Log      LogConfig      `yaml:"log"`

	// Per-environment overrides, applied after the base config is
	// loaded.
	Development *ConfigOverrides `yaml:"development,omitempty"`
	Production  *ConfigOverrides `yaml:"production,omitempty"`
}

// ConfigOverrides contains fields that can be overridden per environment.
type ConfigOverrides struct {
	Paths *PathsConfig `yaml:"paths,omitempty"`
	Store *StoreConfig `yaml:"store,omitempty"`
	Log   *LogConfig   `yaml:"log,omitempty"`
}

// PathsConfig configures directory locations.
type PathsConfig struct {
	// Root holds one directory per tenant.
	Root string `yaml:"root"`

	// Staging is scratch space for export and import. It must be on
	// the same filesystem as Root. Empty means <root>/.staging.
	Staging string `yaml:"staging"`
}

// KeysConfig locates key material.
type KeysConfig struct {
	// MasterKeyFile holds the 32-byte master key, raw or hex.
	MasterKeyFile string `yaml:"master_key_file"`
}

// StoreConfig configures the object store.
type StoreConfig struct {
	// CacheCapacity is the number of objects kept in memory.
	// Default: 1000
	CacheCapacity int `yaml:"cache_capacity"`

	// Compression is lz4, zstd, or none. Default: lz4
	Compression string `yaml:"compression"`

	// IOConcurrency bounds concurrent background writes. Default: 8
	IOConcurrency int `yaml:"io_concurrency"`
}

// ExchangeConfig configures export and import.
type ExchangeConfig struct {
	// IOConcurrency bounds parallel copies, extraction and
	// relocation. Default: 8
	IOConcurrency int `yaml:"io_concurrency"`

	// ScryptWorkFactor is the log2 scrypt cost of passphrase-sealed
	// bundles. Default: 18
	ScryptWorkFactor int `yaml:"scrypt_work_factor"`
}

// LogConfig configures the command-line logger.
type LogConfig struct {
	// Level is debug, info, warn, or error. Default: info
	Level string `yaml:"level"`

	// Format is auto, text, or json. auto selects colored text on a
	// terminal and JSON otherwise. Default: auto
	Format string `yaml:"format"`
}

// Default returns the default configuration.
// These defaults are used as a base before loading the config file.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()

	return &Config{
		Environment: Development,
		Paths: PathsConfig{
			Root: filepath.Join(homeDir, ".local", "share", "examvault"),
		},
		Keys: KeysConfig{
			MasterKeyFile: "/etc/examvault/master.key",
		},
		Store: StoreConfig{
			CacheCapacity: 1000,
			Compression:   objcodec.CompressionLZ4.String(),
			IOConcurrency: 8,
		},
		Exchange: ExchangeConfig{
			IOConcurrency:    8,
			ScryptWorkFactor: 18,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "auto",
		},
	}
}

// Load loads configuration from the EXAMVAULT_CONFIG environment
// variable. There are no fallbacks: if it is not set, this fails.
func Load() (*Config, error) {
	configPath := os.Getenv(EnvVar)
	if configPath == "" {
		return nil, fmt.Errorf("%s environment variable not set; "+
			"set it to the path of your examvault.yaml config file, or use --config flag", EnvVar)
	}

	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}

	cfg.applyEnvironmentOverrides()
	cfg.expandVariables()

	return cfg, nil
}

// loadFile loads a single configuration file, merging into the current config.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		// JSON is valid YAML once comments and trailing commas are gone.
		data = jsonc.ToJSON(data)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

// applyEnvironmentOverrides applies the environment-specific overrides.
func (c *Config) applyEnvironmentOverrides() {
	var overrides *ConfigOverrides

	switch c.Environment {
	case Development:
		overrides = c.Development
	case Production:
		overrides = c.Production
	}

	if overrides == nil {
		return
	}

	if overrides.Paths != nil {
		if overrides.Paths.Root != "" {
			c.Paths.Root = overrides.Paths.Root
		}
		if overrides.Paths.Staging != "" {
			c.Paths.Staging = overrides.Paths.Staging
		}
	}

	if overrides.Store != nil {
		if overrides.Store.CacheCapacity != 0 {
			c.Store.CacheCapacity = overrides.Store.CacheCapacity
		}
		if overrides.Store.Compression != "" {
			c.Store.Compression = overrides.Store.Compression
		}
		if overrides.Store.IOConcurrency != 0 {
			c.Store.IOConcurrency = overrides.Store.IOConcurrency
		}
	}

	if overrides.Log != nil {
		if overrides.Log.Level != "" {
			c.Log.Level = overrides.Log.Level
		}
		if overrides.Log.Format != "" {
			c.Log.Format = overrides.Log.Format
		}
	}
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in paths.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"EXAMVAULT_ROOT": c.Paths.Root,
		"HOME":           os.Getenv("HOME"),
	}

	c.Paths.Root = expandVars(c.Paths.Root, vars)
	vars["EXAMVAULT_ROOT"] = c.Paths.Root // Update for dependent paths.

	c.Paths.Staging = expandVars(c.Paths.Staging, vars)
	c.Keys.MasterKeyFile = expandVars(c.Keys.MasterKeyFile, vars)
}

// expandVars expands ${VAR} and ${VAR:-default} patterns.
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

		// Check provided vars first, then environment.
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// StagingDir returns the configured staging directory, defaulting to
// <root>/.staging.
func (c *Config) StagingDir() string {
	if c.Paths.Staging != "" {
		return c.Paths.Staging
	}
	return filepath.Join(c.Paths.Root, ".staging")
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Environment != Development && c.Environment != Production {
		errs = append(errs, fmt.Errorf("invalid environment: %s", c.Environment))
	}

	if c.Paths.Root == "" {
		errs = append(errs, fmt.Errorf("paths.root is required"))
	}

	if c.Keys.MasterKeyFile == "" {
		errs = append(errs, fmt.Errorf("keys.master_key_file is required"))
	}

	if _, err := objcodec.ParseCompression(c.Store.Compression); err != nil {
		errs = append(errs, fmt.Errorf("store.compression: %w", err))
	}

	if c.Store.CacheCapacity <= 0 {
		errs = append(errs, fmt.Errorf("store.cache_capacity must be positive, got %d", c.Store.CacheCapacity))
	}
	if c.Store.IOConcurrency <= 0 {
		errs = append(errs, fmt.Errorf("store.io_concurrency must be positive, got %d", c.Store.IOConcurrency))
	}
	if c.Exchange.IOConcurrency <= 0 {
		errs = append(errs, fmt.Errorf("exchange.io_concurrency must be positive, got %d", c.Exchange.IOConcurrency))
	}
	if c.Exchange.ScryptWorkFactor < 10 || c.Exchange.ScryptWorkFactor > 30 {
		errs = append(errs, fmt.Errorf("exchange.scrypt_work_factor must be between 10 and 30, got %d", c.Exchange.ScryptWorkFactor))
	}

	levels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(levels, c.Log.Level) {
		errs = append(errs, fmt.Errorf("log.level must be one of: %v", levels))
	}
	formats := []string{"auto", "text", "json"}
	if !slices.Contains(formats, c.Log.Format) {
		errs = append(errs, fmt.Errorf("log.format must be one of: %v", formats))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// EnsurePaths creates the root and staging directories if they don't
// exist.
func (c *Config) EnsurePaths() error {
	if err := os.MkdirAll(c.Paths.Root, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", c.Paths.Root, err)
	}
	if err := os.MkdirAll(c.StagingDir(), 0o700); err != nil {
		return fmt.Errorf("creating %s: %w", c.StagingDir(), err)
	}
	return nil
}
