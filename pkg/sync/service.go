package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/obsync/obsync/internal/logger"
	"github.com/obsync/obsync/pkg/auth"
	"github.com/obsync/obsync/pkg/metrics"
	"github.com/obsync/obsync/pkg/model"
	"github.com/obsync/obsync/pkg/realtime"
	"github.com/obsync/obsync/pkg/store"
)

// DefaultPullLimit is used when a pull request does not specify a limit.
const DefaultPullLimit = 200

// Service implements push ingestion and pull over the metadata store. Every
// operation runs the access gate before touching state.
type Service struct {
	store store.Store
	bus   *realtime.Bus
	gate  *auth.Gate
}

// NewService creates a sync service.
func NewService(st store.Store, bus *realtime.Bus, gate *auth.Gate) *Service {
	return &Service{store: st, bus: bus, gate: gate}
}

// Push validates and appends a batch of client operations.
//
// Ops are applied sequentially in declared order; each append is idempotent
// on the op's idempotency key, so resending a batch after any failure is
// safe and coalesces to the original log rows. Newly appended ops are
// published to the realtime bus only after their insert transaction has
// committed.
func (s *Service) Push(ctx context.Context, principal *auth.Principal, vaultID string, req *PushRequest) (*PushResponse, error) {
	if _, err := s.gate.Admit(ctx, principal, vaultID, auth.ScopeWrite); err != nil {
		return nil, err
	}

	if verr := validatePush(req); verr != nil {
		return nil, verr
	}

	metrics.PushBatches.Inc()

	resp := &PushResponse{
		MissingChunks:  []MissingChunk{},
		RebaseRequired: false,
	}

	for _, op := range req.Ops {
		authorDevice := req.DeviceID
		if op.DeviceID != "" {
			authorDevice = op.DeviceID
		}

		seq, wasNew, err := s.store.AppendOp(ctx, store.AppendOpParams{
			VaultID:        vaultID,
			FileID:         op.FileID,
			OpType:         model.OpType(op.OpType),
			Payload:        []byte(op.Payload),
			IdempotencyKey: op.IdempotencyKey,
			AuthorDeviceID: &authorDevice,
		})
		if err != nil {
			return nil, fmt.Errorf("append op %q: %w", op.IdempotencyKey, err)
		}

		if wasNew {
			resp.AppliedCount++
			metrics.OpsAppended.Inc()
			// The append transaction has committed; fan out.
			s.bus.Publish(realtime.Event{
				VaultID:   vaultID,
				Seq:       seq,
				OpType:    op.OpType,
				Payload:   op.Payload,
				CreatedAt: time.Now().UTC(),
			})
		}

		if model.OpType(op.OpType) == model.OpBlobRef {
			if missing := s.checkBlobRef(ctx, op.Payload); missing != nil {
				resp.MissingChunks = append(resp.MissingChunks, *missing)
			}
		}

		if seq > resp.AcknowledgedSeq {
			resp.AcknowledgedSeq = seq
		}
	}

	if err := s.store.UpsertCursor(ctx, req.DeviceID, vaultID, resp.AcknowledgedSeq, store.CursorSet); err != nil {
		return nil, fmt.Errorf("advance cursor: %w", err)
	}
	if err := s.store.TouchDevice(ctx, req.DeviceID, principal.UserID); err != nil {
		return nil, fmt.Errorf("touch device: %w", err)
	}

	logger.Debug("push batch applied",
		"vault_id", vaultID,
		"device_id", req.DeviceID,
		"applied", resp.AppliedCount,
		"acknowledged_seq", resp.AcknowledgedSeq,
	)

	return resp, nil
}

// checkBlobRef reports the referenced blob as missing when it is unknown or
// not yet committed. The op itself is always recorded.
func (s *Service) checkBlobRef(ctx context.Context, payload json.RawMessage) *MissingChunk {
	var ref blobRefPayload
	if err := json.Unmarshal(payload, &ref); err != nil || ref.BlobHash == "" {
		return nil
	}

	blob, err := s.store.LookupBlob(ctx, ref.BlobHash)
	if errors.Is(err, model.ErrBlobNotFound) {
		return &MissingChunk{BlobHash: ref.BlobHash, Index: ref.Index}
	}
	if err != nil {
		logger.Warn("blob_ref lookup failed", "blob_hash", ref.BlobHash, "error", err)
		return nil
	}
	if !blob.Committed() {
		return &MissingChunk{BlobHash: ref.BlobHash, Index: ref.Index}
	}
	return nil
}

// Pull returns ops with seq strictly greater than since, up to limit. The
// watermark is the last returned seq, or since when the caller is caught up.
// When a device id is supplied its cursor advances with max semantics so
// concurrent pulls never regress it.
func (s *Service) Pull(ctx context.Context, principal *auth.Principal, vaultID string, since int64, limit int, deviceID string) (*PullResponse, error) {
	if _, err := s.gate.Admit(ctx, principal, vaultID, auth.ScopeRead); err != nil {
		return nil, err
	}

	if limit <= 0 {
		limit = DefaultPullLimit
	}

	metrics.PullRequests.Inc()

	ops, err := s.store.ReadOpsSince(ctx, vaultID, since, limit)
	if err != nil {
		return nil, err
	}

	watermark := since
	views := make([]OpView, len(ops))
	for i, op := range ops {
		views[i] = opToView(op)
		watermark = op.Seq
	}

	if deviceID != "" {
		if err := s.store.UpsertCursor(ctx, deviceID, vaultID, watermark, store.CursorMax); err != nil {
			return nil, fmt.Errorf("advance cursor: %w", err)
		}
		if err := s.store.TouchDevice(ctx, deviceID, principal.UserID); err != nil {
			return nil, fmt.Errorf("touch device: %w", err)
		}
	}

	return &PullResponse{Watermark: watermark, Ops: views}, nil
}
