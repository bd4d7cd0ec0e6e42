package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
)

// ApplyDefaults fills unset fields with their defaults. Section defaults
// (database, api) are delegated to the owning packages.
func ApplyDefaults(cfg *Config) {
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "INFO"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stderr"
	}

	cfg.Database.ApplyDefaults()
	cfg.API.ApplyDefaults()

	if cfg.BlobStore.Type == "" {
		cfg.BlobStore.Type = "fs"
	}
	if cfg.BlobStore.Type == "fs" && cfg.BlobStore.Fs.Root == "" {
		cfg.BlobStore.Fs.Root = filepath.Join(getDataDir(), "blobs")
	}

	if cfg.Realtime.BufferSize == 0 {
		cfg.Realtime.BufferSize = 64
	}
}

// Validate checks the configuration for structural validity. Backend-specific
// checks (postgres credentials, s3 bucket) are delegated to the sections.
func Validate(cfg *Config) error {
	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return err
	}

	if err := cfg.Database.Validate(); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	switch cfg.BlobStore.Type {
	case "fs":
		if cfg.BlobStore.Fs.Root == "" {
			return fmt.Errorf("blobstore: fs root is required")
		}
	case "s3":
		if cfg.BlobStore.S3.Bucket == "" {
			return fmt.Errorf("blobstore: s3 bucket is required")
		}
	}

	return nil
}

// getDataDir returns the data directory: $XDG_DATA_HOME/obsync or
// ~/.local/share/obsync.
func getDataDir() string {
	if xdgData := os.Getenv("XDG_DATA_HOME"); xdgData != "" {
		return filepath.Join(xdgData, "obsync")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".local", "share", "obsync")
}
