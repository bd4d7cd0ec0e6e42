package model

import "time"

// Blob is the manifest of a content-addressed ciphertext object. The hash is
// the hex digest of the full ciphertext; chunks are uploaded out of band and
// the blob only becomes readable once CommittedAt is set.
type Blob struct {
	Hash        string     `gorm:"primaryKey;size:128" json:"hash"`
	Size        int64      `gorm:"not null" json:"size"`
	ChunkCount  int        `gorm:"not null" json:"chunk_count"`
	CipherAlg   string     `gorm:"not null;size:64" json:"cipher_alg"`
	CreatedAt   time.Time  `gorm:"autoCreateTime" json:"created_at"`
	CommittedAt *time.Time `json:"committed_at,omitempty"`
}

// TableName returns the table name for Blob.
func (Blob) TableName() string {
	return "blobs"
}

// Committed reports whether the blob has passed the commit completeness check.
func (b *Blob) Committed() bool {
	return b.CommittedAt != nil
}

// BlobChunk indexes one stored ciphertext chunk of a blob. ChunkHash is the
// digest of the stored bytes exactly as transmitted; StorageKey locates the
// bytes in the chunk object store.
//
// Rows are replace-on-conflict: re-uploading a verified chunk at the same
// index overwrites idempotently.
type BlobChunk struct {
	BlobHash   string    `gorm:"primaryKey;size:128" json:"blob_hash"`
	Idx        int       `gorm:"primaryKey" json:"index"`
	ChunkHash  string    `gorm:"not null;size:128" json:"chunk_hash"`
	Size       int64     `gorm:"not null" json:"size"`
	StorageKey string    `gorm:"not null;size:512" json:"storage_key"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName returns the table name for BlobChunk.
func (BlobChunk) TableName() string {
	return "blob_chunks"
}
