package model

import "time"

// OpType enumerates the kinds of operations a client can append to a vault's
// log. The payload is opaque to the server for all of them except BlobRef,
// where the ingestor reads payload.blobHash to produce missing-chunk
// diagnostics.
type OpType string

const (
	OpMdUpdate   OpType = "md_update"
	OpFileCreate OpType = "file_create"
	OpFileRename OpType = "file_rename"
	OpFileDelete OpType = "file_delete"
	OpBlobRef    OpType = "blob_ref"
	OpKeyRotate  OpType = "key_rotate"
)

// IsValid reports whether t is a known operation type.
func (t OpType) IsValid() bool {
	switch t {
	case OpMdUpdate, OpFileCreate, OpFileRename, OpFileDelete, OpBlobRef, OpKeyRotate:
		return true
	}
	return false
}

// Operation is one immutable record in a vault's append-only log.
//
// Seq is assigned server-side at commit time and is strictly increasing and
// gapless per vault: the composite unique index on (vault_id, seq) is the
// arbiter when concurrent appends race for the same slot.
//
// IdempotencyKey is globally unique; a duplicate push of the same key is a
// no-op that resolves to the already-assigned seq. Rows are never updated,
// deleted or reordered.
type Operation struct {
	ID             int64     `gorm:"primaryKey;autoIncrement" json:"-"`
	VaultID        string    `gorm:"uniqueIndex:idx_op_log_vault_seq;not null;size:36" json:"vault_id"`
	Seq            int64     `gorm:"uniqueIndex:idx_op_log_vault_seq;not null" json:"seq"`
	FileID         *string   `gorm:"size:36" json:"file_id,omitempty"`
	OpType         OpType    `gorm:"not null;size:32" json:"op_type"`
	Payload        []byte    `json:"payload"`
	IdempotencyKey string    `gorm:"uniqueIndex;not null;size:255" json:"idempotency_key"`
	AuthorDeviceID *string   `gorm:"size:36" json:"author_device_id,omitempty"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName returns the table name for Operation.
func (Operation) TableName() string {
	return "op_log"
}
