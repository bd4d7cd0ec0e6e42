// Package sync implements the push ingestion pipeline and the cursor-based
// pull service over the metadata store.
package sync

import (
	"encoding/json"
	"time"

	"github.com/obsync/obsync/pkg/model"
)

// PushOp is one client operation inside a push batch. The payload is opaque
// except for blob_ref ops, where blobHash is read to produce missing-chunk
// diagnostics. Extra client-side fields (path, logicalClock, createdAt) flow
// through the payload untouched.
type PushOp struct {
	IdempotencyKey string          `json:"idempotencyKey" validate:"required,max=255"`
	OpType         string          `json:"opType" validate:"required"`
	Payload        json.RawMessage `json:"payload" validate:"required"`
	FileID         *string         `json:"fileId,omitempty"`
	DeviceID       string          `json:"deviceId,omitempty"`
	LogicalClock   int64           `json:"logicalClock,omitempty"`
	CreatedAt      string          `json:"createdAt,omitempty"`
}

// PushRequest is the body of POST /v1/vaults/{vaultId}/sync/push.
type PushRequest struct {
	DeviceID string   `json:"deviceId" validate:"required,max=64"`
	Cursor   int64    `json:"cursor" validate:"gte=0"`
	Ops      []PushOp `json:"ops" validate:"required,min=1,max=500,dive"`
}

// MissingChunk identifies a blob a blob_ref op references that is not yet
// committed. The op is still recorded; this is a recovery diagnostic.
type MissingChunk struct {
	BlobHash string `json:"blobHash"`
	Index    int    `json:"index"`
}

// PushResponse acknowledges a push batch.
//
// RebaseRequired is a reserved field and always false.
type PushResponse struct {
	AcknowledgedSeq int64          `json:"acknowledgedSeq"`
	AppliedCount    int            `json:"appliedCount"`
	MissingChunks   []MissingChunk `json:"missingChunks"`
	RebaseRequired  bool           `json:"rebaseRequired"`
}

// OpView is one operation as returned by pull.
type OpView struct {
	Seq            int64           `json:"seq"`
	OpType         string          `json:"opType"`
	Payload        json.RawMessage `json:"payload"`
	FileID         *string         `json:"fileId,omitempty"`
	AuthorDeviceID *string         `json:"authorDeviceId,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
}

// PullResponse is the body of GET /v1/vaults/{vaultId}/sync/pull.
type PullResponse struct {
	Watermark int64    `json:"watermark"`
	Ops       []OpView `json:"ops"`
}

// opToView converts a stored operation to its wire shape.
func opToView(op model.Operation) OpView {
	return OpView{
		Seq:            op.Seq,
		OpType:         string(op.OpType),
		Payload:        json.RawMessage(op.Payload),
		FileID:         op.FileID,
		AuthorDeviceID: op.AuthorDeviceID,
		CreatedAt:      op.CreatedAt,
	}
}

// blobRefPayload is the slice of a blob_ref payload the ingestor reads.
type blobRefPayload struct {
	BlobHash string `json:"blobHash"`
	Index    int    `json:"index"`
}
