// Package blob orchestrates the three-phase content-addressed upload: init
// declares a manifest, put-chunk verifies and persists ciphertext chunks, and
// commit atomically publishes the blob once completeness is provable.
package blob

import (
	"fmt"
	"time"
)

// InitRequest declares a blob manifest before any chunk is uploaded.
type InitRequest struct {
	Hash       string `json:"hash"`
	Size       int64  `json:"size"`
	ChunkCount int    `json:"chunkCount"`
	CipherAlg  string `json:"cipherAlg"`
}

// InitResponse tells the client which chunk indices are still missing. The
// upload id is advisory; resuming with a fresh init is always valid.
type InitResponse struct {
	UploadID       string `json:"uploadId"`
	Hash           string `json:"hash"`
	MissingIndices []int  `json:"missingIndices"`
}

// PutChunkRequest carries one ciphertext chunk. ChunkHash is the hex sha256
// of the bytes exactly as transmitted.
type PutChunkRequest struct {
	ChunkHash string `json:"chunkHash"`
	Size      int64  `json:"size"`
	Data      []byte `json:"-"`
}

// PutChunkResponse acknowledges a persisted chunk.
type PutChunkResponse struct {
	BlobHash  string `json:"blobHash"`
	Index     int    `json:"index"`
	Persisted bool   `json:"persisted"`
}

// CommitRequest asks to publish a blob. The declared counts are minimum
// thresholds, not exact expectations.
type CommitRequest struct {
	Hash               string `json:"hash"`
	ExpectedChunkCount int64  `json:"expectedChunkCount"`
	ExpectedSize       int64  `json:"expectedSize"`
}

// CommitResponse reports a committed blob.
type CommitResponse struct {
	Hash      string `json:"hash"`
	Committed bool   `json:"committed"`
}

// ChunkView is one chunk entry in a manifest response.
type ChunkView struct {
	Index     int    `json:"index"`
	ChunkHash string `json:"chunkHash"`
	Size      int64  `json:"size"`
}

// ManifestView is the read-side shape of a committed blob.
type ManifestView struct {
	Hash        string      `json:"hash"`
	Size        int64       `json:"size"`
	ChunkCount  int         `json:"chunkCount"`
	CipherAlg   string      `json:"cipherAlg"`
	CommittedAt *time.Time  `json:"committedAt,omitempty"`
	Chunks      []ChunkView `json:"chunks"`
}

// ChunkData is the read-side shape of one chunk.
type ChunkData struct {
	BlobHash  string `json:"blobHash"`
	Index     int    `json:"index"`
	ChunkHash string `json:"chunkHash"`
	Size      int64  `json:"size"`
	Data      []byte `json:"-"`
}

// ValidationError reports a malformed init, chunk or commit payload.
type ValidationError struct {
	Details map[string]string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("blob payload validation failed: %d field(s)", len(e.Details))
}

// HashMismatchError is the integrity gate failure: the recomputed digest of
// the transmitted bytes does not equal the declared chunk hash. Nothing
// durable is written when this is returned.
type HashMismatchError struct {
	BlobHash string
	Index    int
	Declared string
	Computed string
}

func (e *HashMismatchError) Error() string {
	return fmt.Sprintf("chunk %s/%d: declared hash %s does not match computed %s",
		e.BlobHash, e.Index, e.Declared, e.Computed)
}

// IncompleteError rejects a commit whose recorded chunks fall short of the
// declared thresholds.
type IncompleteError struct {
	BlobHash      string
	ExpectedCount int64
	CurrentCount  int64
	ExpectedSize  int64
	CurrentSize   int64
}

func (e *IncompleteError) Error() string {
	return fmt.Sprintf("blob %s incomplete: %d/%d chunks, %d/%d bytes",
		e.BlobHash, e.CurrentCount, e.ExpectedCount, e.CurrentSize, e.ExpectedSize)
}
