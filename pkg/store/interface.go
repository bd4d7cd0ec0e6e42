package store

import (
	"context"

	"github.com/obsync/obsync/pkg/model"
)

// Store is the narrow transactional interface the sync core consumes.
// GORMStore is the production implementation.
type Store interface {
	// Op log
	AppendOp(ctx context.Context, p AppendOpParams) (seq int64, wasNew bool, err error)
	ReadOpsSince(ctx context.Context, vaultID string, since int64, limit int) ([]model.Operation, error)
	LatestSeq(ctx context.Context, vaultID string) (int64, error)

	// Cursors and devices
	UpsertCursor(ctx context.Context, deviceID, vaultID string, seq int64, policy CursorPolicy) error
	GetCursor(ctx context.Context, deviceID, vaultID string) (int64, error)
	TouchDevice(ctx context.Context, id string, owner string) error
	CreateDevice(ctx context.Context, device *model.Device) (string, error)
	GetDevice(ctx context.Context, id string) (*model.Device, error)

	// Vaults
	CreateVault(ctx context.Context, vault *model.Vault) (string, error)
	GetVault(ctx context.Context, id string) (*model.Vault, error)
	ListVaults(ctx context.Context) ([]*model.Vault, error)

	// Blobs
	UpsertBlobManifest(ctx context.Context, hash string, size int64, chunkCount int, cipherAlg string) error
	UpsertChunk(ctx context.Context, blobHash string, index int, chunkHash string, size int64, storageKey string) error
	CountChunks(ctx context.Context, blobHash string) (count int64, sumSize int64, err error)
	MarkBlobCommitted(ctx context.Context, hash string) error
	LookupBlob(ctx context.Context, hash string) (*model.Blob, error)
	ListChunks(ctx context.Context, blobHash string) ([]model.BlobChunk, error)
	GetChunk(ctx context.Context, blobHash string, index int) (*model.BlobChunk, error)

	// Key envelopes
	UpsertKeyEnvelope(ctx context.Context, env *model.KeyEnvelope) error
	GetKeyEnvelope(ctx context.Context, vaultID, deviceID string, version int) (*model.KeyEnvelope, error)
	ListKeyEnvelopes(ctx context.Context, vaultID, deviceID string) ([]model.KeyEnvelope, error)

	// Lifecycle
	HealthCheck() error
	Close() error
}

// Ensure GORMStore implements Store.
var _ Store = (*GORMStore)(nil)
