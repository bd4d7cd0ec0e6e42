package store

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm/clause"

	"github.com/obsync/obsync/pkg/model"
)

// UpsertBlobManifest records a blob's declared manifest. Re-declaring an
// existing hash is a no-op, so init is safely retryable.
func (s *GORMStore) UpsertBlobManifest(ctx context.Context, hash string, size int64, chunkCount int, cipherAlg string) error {
	blob := model.Blob{
		Hash:       hash,
		Size:       size,
		ChunkCount: chunkCount,
		CipherAlg:  cipherAlg,
	}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&blob).Error
	if err != nil {
		return fmt.Errorf("upsert blob manifest: %w", err)
	}
	return nil
}

// UpsertChunk records one stored chunk's metadata, replacing any existing row
// at the same (blob, index). Replace-on-conflict is intentional: a verified
// re-upload of the same index overwrites idempotently.
func (s *GORMStore) UpsertChunk(ctx context.Context, blobHash string, index int, chunkHash string, size int64, storageKey string) error {
	chunk := model.BlobChunk{
		BlobHash:   blobHash,
		Idx:        index,
		ChunkHash:  chunkHash,
		Size:       size,
		StorageKey: storageKey,
	}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "blob_hash"}, {Name: "idx"}},
			DoUpdates: clause.AssignmentColumns([]string{"chunk_hash", "size", "storage_key"}),
		}).
		Create(&chunk).Error
	if err != nil {
		return fmt.Errorf("upsert chunk: %w", err)
	}
	return nil
}

// CountChunks returns how many chunks are recorded for the blob and their
// total size.
func (s *GORMStore) CountChunks(ctx context.Context, blobHash string) (count int64, sumSize int64, err error) {
	type agg struct {
		Count   int64
		SumSize int64
	}
	var a agg
	err = s.db.WithContext(ctx).Model(&model.BlobChunk{}).
		Where("blob_hash = ?", blobHash).
		Select("COUNT(*) AS count, COALESCE(SUM(size), 0) AS sum_size").
		Scan(&a).Error
	if err != nil {
		return 0, 0, fmt.Errorf("count chunks: %w", err)
	}
	return a.Count, a.SumSize, nil
}

// MarkBlobCommitted stamps the blob as committed. Re-committing is a no-op:
// the original commit time is preserved.
func (s *GORMStore) MarkBlobCommitted(ctx context.Context, hash string) error {
	now := time.Now()
	result := s.db.WithContext(ctx).
		Model(&model.Blob{}).
		Where("hash = ? AND committed_at IS NULL", hash).
		Update("committed_at", now)
	if result.Error != nil {
		return fmt.Errorf("mark blob committed: %w", result.Error)
	}
	return nil
}

// LookupBlob returns the blob manifest for the given hash.
func (s *GORMStore) LookupBlob(ctx context.Context, hash string) (*model.Blob, error) {
	var blob model.Blob
	err := s.db.WithContext(ctx).Where("hash = ?", hash).First(&blob).Error
	if err != nil {
		return nil, convertNotFoundError(err, model.ErrBlobNotFound)
	}
	return &blob, nil
}

// ListChunks returns the recorded chunks for a blob ordered by index.
func (s *GORMStore) ListChunks(ctx context.Context, blobHash string) ([]model.BlobChunk, error) {
	var chunks []model.BlobChunk
	err := s.db.WithContext(ctx).
		Where("blob_hash = ?", blobHash).
		Order("idx ASC").
		Find(&chunks).Error
	if err != nil {
		return nil, fmt.Errorf("list chunks: %w", err)
	}
	return chunks, nil
}

// GetChunk returns one chunk row by blob hash and index.
func (s *GORMStore) GetChunk(ctx context.Context, blobHash string, index int) (*model.BlobChunk, error) {
	var chunk model.BlobChunk
	err := s.db.WithContext(ctx).
		Where("blob_hash = ? AND idx = ?", blobHash, index).
		First(&chunk).Error
	if err != nil {
		return nil, convertNotFoundError(err, model.ErrChunkNotFound)
	}
	return &chunk, nil
}
