package blob

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"

	"github.com/obsync/obsync/internal/logger"
	"github.com/obsync/obsync/pkg/auth"
	"github.com/obsync/obsync/pkg/chunkstore"
	"github.com/obsync/obsync/pkg/metrics"
	"github.com/obsync/obsync/pkg/model"
	"github.com/obsync/obsync/pkg/store"
)

// minHashLen is the shortest plausible hex digest accepted for blob and chunk
// hashes (md5 would be 32; sha256 is 64).
const minHashLen = 32

// Service coordinates the metadata store and the chunk object store through
// the blob lifecycle. Chunks become readable only after commit.
type Service struct {
	store  store.Store
	chunks chunkstore.Store
	gate   *auth.Gate
}

// NewService creates a blob service.
func NewService(st store.Store, chunks chunkstore.Store, gate *auth.Gate) *Service {
	return &Service{store: st, chunks: chunks, gate: gate}
}

// Init declares a blob manifest and reports which chunk indices still need
// uploading. Re-declaring an existing hash is a no-op, so a client can always
// resume an interrupted upload by calling Init again.
func (s *Service) Init(ctx context.Context, principal *auth.Principal, vaultID string, req *InitRequest) (*InitResponse, error) {
	if _, err := s.gate.Admit(ctx, principal, vaultID, auth.ScopeWrite); err != nil {
		return nil, err
	}

	if verr := validateInit(req); verr != nil {
		return nil, verr
	}

	if err := s.store.UpsertBlobManifest(ctx, req.Hash, req.Size, req.ChunkCount, req.CipherAlg); err != nil {
		return nil, err
	}

	existing, err := s.store.ListChunks(ctx, req.Hash)
	if err != nil {
		return nil, err
	}
	have := make(map[int]bool, len(existing))
	for _, c := range existing {
		have[c.Idx] = true
	}

	missing := []int{}
	for i := 0; i < req.ChunkCount; i++ {
		if !have[i] {
			missing = append(missing, i)
		}
	}

	return &InitResponse{
		UploadID:       uuid.New().String(),
		Hash:           req.Hash,
		MissingIndices: missing,
	}, nil
}

// PutChunk verifies and persists one ciphertext chunk. The digest check runs
// before anything durable happens: a mismatch leaves no chunk row and no
// stored bytes. Re-uploading a verified index overwrites idempotently.
func (s *Service) PutChunk(ctx context.Context, principal *auth.Principal, vaultID, blobHash string, index int, req *PutChunkRequest) (*PutChunkResponse, error) {
	if _, err := s.gate.Admit(ctx, principal, vaultID, auth.ScopeWrite); err != nil {
		return nil, err
	}

	if verr := validatePutChunk(blobHash, index, req); verr != nil {
		return nil, verr
	}

	blob, err := s.store.LookupBlob(ctx, blobHash)
	if err != nil {
		return nil, err
	}
	if index >= blob.ChunkCount {
		return nil, &ValidationError{Details: map[string]string{
			"index": fmt.Sprintf("index %d out of range for chunkCount %d", index, blob.ChunkCount),
		}}
	}

	computed := sha256Hex(req.Data)
	if computed != req.ChunkHash {
		return nil, &HashMismatchError{
			BlobHash: blobHash,
			Index:    index,
			Declared: req.ChunkHash,
			Computed: computed,
		}
	}

	storageKey, err := s.chunks.WriteChunk(ctx, blobHash, index, req.Data)
	if err != nil {
		return nil, fmt.Errorf("write chunk %s/%d: %w", blobHash, index, err)
	}

	if err := s.store.UpsertChunk(ctx, blobHash, index, req.ChunkHash, int64(len(req.Data)), storageKey); err != nil {
		return nil, err
	}

	metrics.ChunksWritten.Inc()
	metrics.ChunkBytes.Add(float64(len(req.Data)))

	return &PutChunkResponse{BlobHash: blobHash, Index: index, Persisted: true}, nil
}

// Commit publishes the blob once its recorded chunks reach the declared
// thresholds. The comparison is deliberately one-sided: a client that
// uploaded more than it declared is not rejected. Re-committing is a no-op.
func (s *Service) Commit(ctx context.Context, principal *auth.Principal, vaultID, blobHash string, req *CommitRequest) (*CommitResponse, error) {
	if _, err := s.gate.Admit(ctx, principal, vaultID, auth.ScopeWrite); err != nil {
		return nil, err
	}

	if req.Hash != blobHash {
		return nil, &ValidationError{Details: map[string]string{
			"hash": fmt.Sprintf("payload hash %q does not match URL blob hash %q", req.Hash, blobHash),
		}}
	}

	if _, err := s.store.LookupBlob(ctx, blobHash); err != nil {
		return nil, err
	}

	count, sumSize, err := s.store.CountChunks(ctx, blobHash)
	if err != nil {
		return nil, err
	}
	if count < req.ExpectedChunkCount || sumSize < req.ExpectedSize {
		return nil, &IncompleteError{
			BlobHash:      blobHash,
			ExpectedCount: req.ExpectedChunkCount,
			CurrentCount:  count,
			ExpectedSize:  req.ExpectedSize,
			CurrentSize:   sumSize,
		}
	}

	if err := s.store.MarkBlobCommitted(ctx, blobHash); err != nil {
		return nil, err
	}

	metrics.BlobsCommitted.Inc()
	logger.Info("blob committed", "blob_hash", blobHash, "chunks", count, "bytes", sumSize)

	return &CommitResponse{Hash: blobHash, Committed: true}, nil
}

// Manifest returns the committed blob's manifest with its chunk index. An
// uncommitted blob is indistinguishable from an absent one.
func (s *Service) Manifest(ctx context.Context, principal *auth.Principal, vaultID, blobHash string) (*ManifestView, error) {
	if _, err := s.gate.Admit(ctx, principal, vaultID, auth.ScopeRead); err != nil {
		return nil, err
	}

	blob, err := s.store.LookupBlob(ctx, blobHash)
	if err != nil {
		return nil, err
	}
	if !blob.Committed() {
		return nil, model.ErrBlobNotFound
	}

	chunks, err := s.store.ListChunks(ctx, blobHash)
	if err != nil {
		return nil, err
	}

	view := &ManifestView{
		Hash:        blob.Hash,
		Size:        blob.Size,
		ChunkCount:  blob.ChunkCount,
		CipherAlg:   blob.CipherAlg,
		CommittedAt: blob.CommittedAt,
		Chunks:      make([]ChunkView, len(chunks)),
	}
	for i, c := range chunks {
		view.Chunks[i] = ChunkView{Index: c.Idx, ChunkHash: c.ChunkHash, Size: c.Size}
	}
	return view, nil
}

// GetChunk returns one chunk's bytes. Chunks are only readable once their
// blob is committed.
func (s *Service) GetChunk(ctx context.Context, principal *auth.Principal, vaultID, blobHash string, index int) (*ChunkData, error) {
	if _, err := s.gate.Admit(ctx, principal, vaultID, auth.ScopeRead); err != nil {
		return nil, err
	}

	blob, err := s.store.LookupBlob(ctx, blobHash)
	if err != nil {
		return nil, err
	}
	if !blob.Committed() {
		return nil, model.ErrBlobNotFound
	}

	row, err := s.store.GetChunk(ctx, blobHash, index)
	if err != nil {
		return nil, err
	}

	data, err := s.chunks.ReadChunk(ctx, row.StorageKey)
	if err != nil {
		return nil, fmt.Errorf("read chunk %s/%d: %w", blobHash, index, err)
	}

	return &ChunkData{
		BlobHash:  blobHash,
		Index:     index,
		ChunkHash: row.ChunkHash,
		Size:      row.Size,
		Data:      data,
	}, nil
}

func validateInit(req *InitRequest) *ValidationError {
	details := make(map[string]string)
	if !isHexDigest(req.Hash) {
		details["hash"] = fmt.Sprintf("must be a hex digest of at least %d characters", minHashLen)
	}
	if req.Size <= 0 {
		details["size"] = "must be positive"
	}
	if req.ChunkCount <= 0 {
		details["chunkCount"] = "must be positive"
	}
	if req.CipherAlg == "" {
		details["cipherAlg"] = "is required"
	}
	if len(details) == 0 {
		return nil
	}
	return &ValidationError{Details: details}
}

func validatePutChunk(blobHash string, index int, req *PutChunkRequest) *ValidationError {
	details := make(map[string]string)
	if !isHexDigest(blobHash) {
		details["blobHash"] = fmt.Sprintf("must be a hex digest of at least %d characters", minHashLen)
	}
	if index < 0 {
		details["index"] = "must not be negative"
	}
	if !isHexDigest(req.ChunkHash) {
		details["chunkHash"] = fmt.Sprintf("must be a hex digest of at least %d characters", minHashLen)
	}
	if len(req.Data) == 0 {
		details["cipherTextBase64"] = "chunk payload is empty"
	}
	if req.Size != int64(len(req.Data)) {
		details["size"] = fmt.Sprintf("declared size %d does not match payload length %d", req.Size, len(req.Data))
	}
	if len(details) == 0 {
		return nil
	}
	return &ValidationError{Details: details}
}

// isHexDigest checks for a plausible lowercase-or-uppercase hex digest.
func isHexDigest(s string) bool {
	if len(s) < minHashLen {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}

func sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
