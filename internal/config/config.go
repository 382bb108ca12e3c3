// Package config provides unified configuration for the stitchload loader.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the resolved configuration for one loader run.
type Config struct {
	// Endpoint is the destination batch import endpoint
	Endpoint EndpointConfig `json:"endpoint" yaml:"endpoint"`

	// Token is the bearer token for the import API
	Token string `json:"token" yaml:"token"`

	// TableName is the destination table/stream name reported with every batch
	TableName string `json:"table_name" yaml:"table_name"`

	// BatchSize is the accumulator threshold; crossing it flushes immediately
	BatchSize int `json:"batch_size" yaml:"batch_size"`

	// DisableTelemetry turns off the anonymous usage ping
	DisableTelemetry bool `json:"disable_telemetry" yaml:"disable_telemetry"`

	// Archive configures the optional submitted-batch archive
	Archive ArchiveConfig `json:"archive" yaml:"archive"`

	// Journal configures the optional flush journal
	Journal JournalConfig `json:"journal" yaml:"journal"`
}

// EndpointConfig holds the destination endpoint configuration.
type EndpointConfig struct {
	// Host is the import API host, without scheme
	Host string `json:"host" yaml:"host"`

	// Path is the import API request path
	Path string `json:"path" yaml:"path"`
}

// ArchiveConfig holds submitted-batch archive configuration.
type ArchiveConfig struct {
	// Enabled turns the archive on
	Enabled bool `json:"enabled" yaml:"enabled"`

	// Storage selects and configures the archive backend
	Storage StorageConfig `json:"storage" yaml:"storage"`
}

// StorageConfig holds object storage configuration.
type StorageConfig struct {
	// Type is the storage type: local, s3
	Type string `json:"type" yaml:"type"`

	// Path is the local storage path (for local type)
	Path string `json:"path" yaml:"path"`

	// S3 configuration (for s3 type)
	S3 S3Config `json:"s3" yaml:"s3"`
}

// S3Config holds S3 storage configuration.
type S3Config struct {
	// Bucket is the S3 bucket name
	Bucket string `json:"bucket" yaml:"bucket"`

	// Region is the AWS region
	Region string `json:"region" yaml:"region"`

	// Endpoint is the S3 endpoint (for S3-compatible storage)
	Endpoint string `json:"endpoint" yaml:"endpoint"`
}

// JournalConfig holds flush journal configuration.
type JournalConfig struct {
	// Enabled turns the journal on
	Enabled bool `json:"enabled" yaml:"enabled"`

	// Path is the journal database path
	Path string `json:"path" yaml:"path"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Endpoint: EndpointConfig{
			Host: "api.stitchdata.com",
			Path: "/v2/import/batch",
		},
		BatchSize: 500,
		Archive: ArchiveConfig{
			Storage: StorageConfig{
				Type: "local",
				Path: "./data/archive",
			},
		},
		Journal: JournalConfig{
			Path: "./data/journal.db",
		},
	}
}

// Resolve sets derived defaults for any path left empty.
func (c *Config) Resolve() {
	if c.Archive.Storage.Path == "" {
		c.Archive.Storage.Path = "./data/archive"
	}
	if c.Journal.Path == "" {
		c.Journal.Path = "./data/journal.db"
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Endpoint.Host == "" {
		return fmt.Errorf("endpoint.host is required")
	}
	if c.Endpoint.Path == "" {
		return fmt.Errorf("endpoint.path is required")
	}
	if !strings.HasPrefix(c.Endpoint.Path, "/") {
		return fmt.Errorf("endpoint.path must start with /, got %q", c.Endpoint.Path)
	}
	if c.Token == "" {
		return fmt.Errorf("token is required")
	}
	if c.BatchSize < 1 {
		return fmt.Errorf("batch_size must be at least 1, got %d", c.BatchSize)
	}

	if c.Archive.Enabled {
		switch c.Archive.Storage.Type {
		case "local", "s3":
			// Valid types
		default:
			return fmt.Errorf("invalid archive storage type: %s (must be local or s3)", c.Archive.Storage.Type)
		}
		if c.Archive.Storage.Type == "s3" && c.Archive.Storage.S3.Bucket == "" {
			return fmt.Errorf("archive.storage.s3.bucket is required when storage type is s3")
		}
	}

	if c.Journal.Enabled && c.Journal.Path == "" {
		return fmt.Errorf("journal.path is required when journal is enabled")
	}

	return nil
}

// LoadFromFile loads configuration from a YAML or JSON file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file format: %s", ext)
	}

	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables.
// Environment variables use the STITCHLOAD_ prefix.
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("STITCHLOAD_ENDPOINT_HOST"); v != "" {
		cfg.Endpoint.Host = v
	}
	if v := os.Getenv("STITCHLOAD_ENDPOINT_PATH"); v != "" {
		cfg.Endpoint.Path = v
	}
	if v := os.Getenv("STITCHLOAD_TOKEN"); v != "" {
		cfg.Token = v
	}
	if v := os.Getenv("STITCHLOAD_TABLE_NAME"); v != "" {
		cfg.TableName = v
	}
	if v := os.Getenv("STITCHLOAD_BATCH_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.BatchSize = n
		}
	}
	if v := os.Getenv("STITCHLOAD_DISABLE_TELEMETRY"); v != "" {
		cfg.DisableTelemetry = v == "true" || v == "1"
	}

	// Archive configuration
	if v := os.Getenv("STITCHLOAD_ARCHIVE_ENABLED"); v != "" {
		cfg.Archive.Enabled = v == "true" || v == "1"
	}
	if v := os.Getenv("STITCHLOAD_ARCHIVE_STORAGE_TYPE"); v != "" {
		cfg.Archive.Storage.Type = v
	}
	if v := os.Getenv("STITCHLOAD_ARCHIVE_STORAGE_PATH"); v != "" {
		cfg.Archive.Storage.Path = v
	}
	if v := os.Getenv("STITCHLOAD_S3_BUCKET"); v != "" {
		cfg.Archive.Storage.S3.Bucket = v
	}
	if v := os.Getenv("STITCHLOAD_S3_REGION"); v != "" {
		cfg.Archive.Storage.S3.Region = v
	}
	if v := os.Getenv("STITCHLOAD_S3_ENDPOINT"); v != "" {
		cfg.Archive.Storage.S3.Endpoint = v
	}

	// Journal configuration
	if v := os.Getenv("STITCHLOAD_JOURNAL_ENABLED"); v != "" {
		cfg.Journal.Enabled = v == "true" || v == "1"
	}
	if v := os.Getenv("STITCHLOAD_JOURNAL_PATH"); v != "" {
		cfg.Journal.Path = v
	}
}

// EnsureDirectories creates the directories the enabled side outputs need.
func (c *Config) EnsureDirectories() error {
	var dirs []string
	if c.Archive.Enabled && c.Archive.Storage.Type == "local" {
		dirs = append(dirs, c.Archive.Storage.Path)
	}
	if c.Journal.Enabled {
		dirs = append(dirs, filepath.Dir(c.Journal.Path))
	}

	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}
