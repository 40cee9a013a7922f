// Package config loads the recheck run configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Source types accepted in source.type.
const (
	SourceCSVDir = "csvdir"
	SourceSQLite = "sqlite"
	SourceMySQL  = "mysql"
)

// Config is the full run configuration.
type Config struct {
	Registry RegistryConfig `yaml:"registry"`
	Source   SourceConfig   `yaml:"source"`
	Cache    CacheConfig    `yaml:"cache"`
	Oracle   OracleConfig   `yaml:"oracle"`
	Run      RunConfig      `yaml:"run"`
}

// RegistryConfig locates the check registry source of truth.
type RegistryConfig struct {
	Path string `yaml:"path"`
}

// SourceConfig selects and configures the observed-schema source.
type SourceConfig struct {
	Type   string `yaml:"type"`
	Dir    string `yaml:"dir"`    // csvdir
	Path   string `yaml:"path"`   // sqlite
	DSN    string `yaml:"dsn"`    // mysql
	Schema string `yaml:"schema"` // mysql
}

// CacheConfig locates the persisted state directory. The three records
// (registry snapshot, schema snapshot, workflow cache) are independent
// files inside it.
type CacheConfig struct {
	Dir string `yaml:"dir"`
}

// OracleConfig configures the external compilation command.
type OracleConfig struct {
	Command []string `yaml:"command"`
}

// RunConfig tunes run execution.
type RunConfig struct {
	Workers       int           `yaml:"workers"`
	FlushAttempts int           `yaml:"flushAttempts"`
	FlushBackoff  time.Duration `yaml:"flushBackoff"`
}

// Persisted state file names inside the cache directory.
const (
	RegistrySnapshotFile = "registry.snapshot.json"
	SchemaSnapshotFile   = "schema_cols.json"
	WorkflowCacheFile    = "workflows.json"
)

// RegistrySnapshotPath returns the registry snapshot file path.
func (c *Config) RegistrySnapshotPath() string {
	return filepath.Join(c.Cache.Dir, RegistrySnapshotFile)
}

// SchemaSnapshotPath returns the schema snapshot file path.
func (c *Config) SchemaSnapshotPath() string {
	return filepath.Join(c.Cache.Dir, SchemaSnapshotFile)
}

// WorkflowCachePath returns the workflow cache file path.
func (c *Config) WorkflowCachePath() string {
	return filepath.Join(c.Cache.Dir, WorkflowCacheFile)
}

// Load reads and validates a YAML config file.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is required")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Registry.Path == "" {
		return errors.New("registry.path is required")
	}
	if c.Cache.Dir == "" {
		return errors.New("cache.dir is required")
	}
	switch c.Source.Type {
	case SourceCSVDir:
		if c.Source.Dir == "" {
			return errors.New("source.dir is required for csvdir sources")
		}
	case SourceSQLite:
		if c.Source.Path == "" {
			return errors.New("source.path is required for sqlite sources")
		}
	case SourceMySQL:
		if c.Source.DSN == "" {
			return errors.New("source.dsn is required for mysql sources")
		}
		if c.Source.Schema == "" {
			return errors.New("source.schema is required for mysql sources")
		}
	default:
		return fmt.Errorf("source.type must be one of %s, %s, %s", SourceCSVDir, SourceSQLite, SourceMySQL)
	}
	if len(c.Oracle.Command) == 0 {
		return errors.New("oracle.command is required")
	}
	return nil
}
