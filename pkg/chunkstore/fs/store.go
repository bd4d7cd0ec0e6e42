// Package fs provides a filesystem-backed chunk store implementation.
// Chunks are stored as files under {root}/blobs/{hash}/{index}.bin.
package fs

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"

	"github.com/obsync/obsync/pkg/chunkstore"
)

// Store is a filesystem-backed implementation of chunkstore.Store.
type Store struct {
	mu       sync.RWMutex
	basePath string
	closed   bool
}

// Config holds configuration for the filesystem chunk store.
type Config struct {
	// BasePath is the root directory for chunk storage.
	BasePath string

	// DirMode is the permission mode for created directories. Default: 0755.
	DirMode os.FileMode

	// FileMode is the permission mode for created files. Default: 0644.
	FileMode os.FileMode
}

// New creates a new filesystem chunk store, creating the base directory if
// needed.
func New(cfg Config) (*Store, error) {
	if cfg.BasePath == "" {
		return nil, errors.New("base path is required")
	}
	if cfg.DirMode == 0 {
		cfg.DirMode = 0755
	}
	if cfg.FileMode == 0 {
		cfg.FileMode = 0644
	}

	if err := os.MkdirAll(cfg.BasePath, cfg.DirMode); err != nil {
		return nil, err
	}

	info, err := os.Stat(cfg.BasePath)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, errors.New("base path is not a directory")
	}

	return &Store{basePath: cfg.BasePath}, nil
}

// NewWithPath creates a filesystem chunk store with default modes.
func NewWithPath(basePath string) (*Store, error) {
	return New(Config{BasePath: basePath})
}

// chunkPath returns the full filesystem path for a storage key.
func (s *Store) chunkPath(storageKey string) string {
	return filepath.Join(s.basePath, filepath.FromSlash(storageKey))
}

// WriteChunk writes the chunk bytes to a temporary file and renames it into
// place, so readers never observe a partial write.
func (s *Store) WriteChunk(ctx context.Context, blobHash string, index int, data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return "", chunkstore.ErrStoreClosed
	}

	key := chunkstore.ChunkKey(blobHash, index)
	path := s.chunkPath(key)

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", err
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return "", err
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return "", err
	}

	return key, nil
}

// ReadChunk reads a complete chunk from the filesystem.
func (s *Store) ReadChunk(ctx context.Context, storageKey string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, chunkstore.ErrStoreClosed
	}

	data, err := os.ReadFile(s.chunkPath(storageKey))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, chunkstore.ErrChunkNotFound
		}
		return nil, err
	}
	return data, nil
}

// HealthCheck verifies the base path is accessible.
func (s *Store) HealthCheck(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return chunkstore.ErrStoreClosed
	}
	_, err := os.Stat(s.basePath)
	return err
}

// Close marks the store as closed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	return nil
}

// BasePath returns the base path of the store (for testing).
func (s *Store) BasePath() string {
	return s.basePath
}

var _ chunkstore.Store = (*Store)(nil)
