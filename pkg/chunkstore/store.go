// Package chunkstore defines the pluggable byte-blob storage used for
// encrypted chunk payloads, keyed by (blob hash, chunk index).
package chunkstore

import (
	"context"
	"errors"
	"fmt"
)

// Errors returned by chunk store implementations.
var (
	// ErrChunkNotFound is returned when no bytes exist at a storage key.
	ErrChunkNotFound = errors.New("chunk not found")

	// ErrStoreClosed is returned when operating on a closed store.
	ErrStoreClosed = errors.New("chunk store is closed")
)

// Store is the backend-agnostic chunk storage interface.
//
// A successful WriteChunk followed by ReadChunk of the returned storage key
// must return byte-identical content, and partial writes after a crash must
// never be observable by readers. The filesystem backend uses temp+rename;
// the S3 backend relies on the object store's atomic put.
type Store interface {
	// WriteChunk durably stores the chunk bytes and returns the storage key
	// that locates them.
	WriteChunk(ctx context.Context, blobHash string, index int, data []byte) (storageKey string, err error)

	// ReadChunk returns the bytes stored at the given storage key.
	ReadChunk(ctx context.Context, storageKey string) ([]byte, error)

	// HealthCheck verifies the backend is reachable.
	HealthCheck(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}

// ChunkKey returns the canonical storage key for a chunk. All backends share
// the same layout: blobs/{hash}/{index}.bin.
func ChunkKey(blobHash string, index int) string {
	return fmt.Sprintf("blobs/%s/%d.bin", blobHash, index)
}
