// Package config loads the Obsync server configuration from file,
// environment and defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/obsync/obsync/pkg/api"
	"github.com/obsync/obsync/pkg/chunkstore/s3"
	"github.com/obsync/obsync/pkg/store"
)

// Config is the Obsync server configuration.
//
// Configuration sources (in order of precedence):
//  1. Environment variables (OBSYNC_*)
//  2. Configuration file (YAML)
//  3. Default values
type Config struct {
	// Logging controls log output behavior.
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Database configures the metadata store (SQLite or PostgreSQL).
	Database store.Config `mapstructure:"database" yaml:"database"`

	// BlobStore configures the chunk object store backend.
	BlobStore BlobStoreConfig `mapstructure:"blobstore" yaml:"blobstore"`

	// API contains HTTP server configuration.
	API api.APIConfig `mapstructure:"api" yaml:"api"`

	// Realtime contains realtime bus tuning.
	Realtime RealtimeConfig `mapstructure:"realtime" yaml:"realtime"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output.
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive)
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`

	// Format specifies the log output format: text or json.
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`

	// Output specifies where logs are written: stdout, stderr, or a file path.
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// BlobStoreConfig selects and configures the chunk store backend.
type BlobStoreConfig struct {
	// Type is the backend: fs, s3 or memory.
	Type string `mapstructure:"type" validate:"required,oneof=fs s3 memory" yaml:"type"`

	// Fs configures the filesystem backend.
	Fs FsBlobStoreConfig `mapstructure:"fs" yaml:"fs"`

	// S3 configures the S3-compatible backend.
	S3 s3.Config `mapstructure:"s3" yaml:"s3"`
}

// FsBlobStoreConfig configures the filesystem chunk store.
type FsBlobStoreConfig struct {
	// Root is the directory under which chunks are stored as
	// blobs/{hash}/{index}.bin.
	Root string `mapstructure:"root" yaml:"root"`
}

// RealtimeConfig tunes the realtime bus.
type RealtimeConfig struct {
	// BufferSize is the per-subscriber event buffer. A subscriber whose
	// buffer fills is dropped. Default: 64
	BufferSize int `mapstructure:"buffer_size" validate:"omitempty,min=1" yaml:"buffer_size"`
}

// Load loads configuration from file, environment, and defaults.
// An empty configPath uses the default location.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setupViper(v, configPath)

	configFileFound, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if configFileFound {
		if err := v.Unmarshal(&cfg, viper.DecodeHook(durationDecodeHook())); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config: %w", err)
		}
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// MustLoad loads the configuration and decorates failures with a hint about
// how to create one. Intended for CLI entry points.
func MustLoad(configPath string) (*Config, error) {
	cfg, err := Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("%w\n\nRun 'obsync init' to create a configuration file", err)
	}
	return cfg, nil
}

// Save writes the configuration to the given path in YAML form. The file is
// written with owner-only permissions since it may hold the JWT secret.
func Save(cfg *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// setupViper configures environment variable support and the config file
// search path. Environment variables use the OBSYNC_ prefix, e.g.
// OBSYNC_LOGGING_LEVEL=DEBUG.
func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix("OBSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// readConfigFile reads the configuration file if it exists. A missing file
// is not an error; defaults apply.
func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read config file: %w", err)
	}
	return true, nil
}

// durationDecodeHook converts strings like "30s" and raw numbers to
// time.Duration.
func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			return time.ParseDuration(v)
		case int:
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		case float64:
			return time.Duration(v), nil
		default:
			return data, nil
		}
	}
}

// getConfigDir returns the configuration directory: $XDG_CONFIG_HOME/obsync
// or ~/.config/obsync.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "obsync")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".config", "obsync")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}
