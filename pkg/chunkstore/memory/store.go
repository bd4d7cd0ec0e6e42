// Package memory provides an in-memory chunk store, used in tests and for
// throwaway single-process deployments.
package memory

import (
	"context"
	"sync"

	"github.com/obsync/obsync/pkg/chunkstore"
)

// Store is a map-backed implementation of chunkstore.Store.
type Store struct {
	mu     sync.RWMutex
	chunks map[string][]byte
	closed bool
}

// New creates an empty in-memory chunk store.
func New() *Store {
	return &Store{chunks: make(map[string][]byte)}
}

// WriteChunk stores a copy of the chunk bytes.
func (s *Store) WriteChunk(ctx context.Context, blobHash string, index int, data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return "", chunkstore.ErrStoreClosed
	}

	key := chunkstore.ChunkKey(blobHash, index)
	buf := make([]byte, len(data))
	copy(buf, data)
	s.chunks[key] = buf
	return key, nil
}

// ReadChunk returns a copy of the stored bytes.
func (s *Store) ReadChunk(ctx context.Context, storageKey string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, chunkstore.ErrStoreClosed
	}

	data, ok := s.chunks[storageKey]
	if !ok {
		return nil, chunkstore.ErrChunkNotFound
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	return buf, nil
}

// HealthCheck reports whether the store is open.
func (s *Store) HealthCheck(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return chunkstore.ErrStoreClosed
	}
	return nil
}

// Close marks the store as closed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	return nil
}

// Len returns the number of stored chunks (for testing).
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks)
}

var _ chunkstore.Store = (*Store)(nil)
