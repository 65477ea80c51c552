// Package config loads zipmap settings from an optional YAML file and the
// environment.
package config

import (
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Environment variables consulted by Load.
const (
	EnvConfig    = "ZIPMAP_CONFIG"
	EnvSource    = "ZIPMAP_SOURCE"
	EnvTarget    = "ZIPMAP_TARGET"
	EnvSuffix    = "ZIPMAP_ARCHIVE_SUFFIX"
	EnvLogLevel  = "ZIPMAP_LOG_LEVEL"
	EnvLogFormat = "ZIPMAP_LOG_FORMAT"
	EnvCacheSize = "ZIPMAP_NAME_CACHE_SIZE"
)

const (
	defaultArchiveSuffix = ".zip"
	defaultNameCacheSize = 256
)

// Config holds application configuration.
type Config struct {
	SourceDir     string        `yaml:"source_dir"`
	TargetDir     string        `yaml:"target_dir"`
	ArchiveSuffix string        `yaml:"archive_suffix"`
	NameCacheSize int           `yaml:"name_cache_size"`
	Logging       LoggingConfig `yaml:"logging"`
}

// LoggingConfig mirrors logging.Config for the YAML file.
type LoggingConfig struct {
	Format string `yaml:"format"`
	Level  string `yaml:"level"`
}

// DefaultConfig returns configuration with default values.
func DefaultConfig() *Config {
	return &Config{
		ArchiveSuffix: defaultArchiveSuffix,
		NameCacheSize: defaultNameCacheSize,
		Logging: LoggingConfig{
			Format: "text",
			Level:  "warn",
		},
	}
}

// Load builds the configuration.
// Priority: path argument > env ZIPMAP_CONFIG > defaults, then env overrides.
// No file is read unless one is named.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		path = os.Getenv(EnvConfig)
	}
	if path != "" {
		if err := cfg.loadFromFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

func (c *Config) loadFromFile(path string) error {
	data, err := os.ReadFile(path) // #nosec G304
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, c)
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(EnvSource); v != "" {
		c.SourceDir = v
	}
	if v := os.Getenv(EnvTarget); v != "" {
		c.TargetDir = v
	}
	if v := os.Getenv(EnvSuffix); v != "" {
		c.ArchiveSuffix = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv(EnvLogFormat); v != "" {
		c.Logging.Format = v
	}
	if v := os.Getenv(EnvCacheSize); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.NameCacheSize = n
		}
	}
}

// GetArchiveSuffix returns the archive suffix, applying defaults.
func (c *Config) GetArchiveSuffix() string {
	if c.ArchiveSuffix != "" {
		return c.ArchiveSuffix
	}
	return defaultArchiveSuffix
}

// GetNameCacheSize returns the namelist cache size, applying defaults.
func (c *Config) GetNameCacheSize() int {
	if c.NameCacheSize > 0 {
		return c.NameCacheSize
	}
	return defaultNameCacheSize
}
