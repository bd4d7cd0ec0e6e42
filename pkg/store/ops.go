package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/obsync/obsync/pkg/model"
)

// MaxReadLimit caps how many operations a single read can return.
const MaxReadLimit = 1000

// appendRetries bounds how often AppendOp re-runs its transaction when two
// writers race for the same (vault_id, seq) slot.
const appendRetries = 5

// AppendOpParams carries one operation to append to a vault's log.
type AppendOpParams struct {
	VaultID        string
	FileID         *string
	OpType         model.OpType
	Payload        []byte
	IdempotencyKey string
	AuthorDeviceID *string
}

// AppendOp appends one operation to the vault's log and returns the assigned
// sequence.
//
// The idempotency key is the primary idempotence contract: if it already
// exists anywhere in the log, the existing seq is returned with wasNew=false
// and nothing is written. Otherwise the next vault-scoped seq is allocated
// inside the same transaction that inserts the row, so readers never observe
// gaps.
//
// Concurrent appends to the same vault may race for the same seq slot; the
// unique index on (vault_id, seq) rejects the loser and the transaction is
// retried from the top, which also re-resolves idempotency-key collisions.
func (s *GORMStore) AppendOp(ctx context.Context, p AppendOpParams) (seq int64, wasNew bool, err error) {
	for attempt := 0; attempt < appendRetries; attempt++ {
		seq, wasNew, err = s.tryAppendOp(ctx, p)
		if err == nil {
			return seq, wasNew, nil
		}
		if !isUniqueConstraintError(err) {
			return 0, false, err
		}
		// Lost a race; retry resolves to either the winner's row (same
		// idempotency key) or the next free seq.
	}
	return 0, false, fmt.Errorf("append op: retries exhausted: %w", err)
}

func (s *GORMStore) tryAppendOp(ctx context.Context, p AppendOpParams) (int64, bool, error) {
	var assigned int64
	var isNew bool

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing model.Operation
		err := tx.Where("idempotency_key = ?", p.IdempotencyKey).First(&existing).Error
		if err == nil {
			assigned = existing.Seq
			isNew = false
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		var maxSeq int64
		if err := tx.Model(&model.Operation{}).
			Where("vault_id = ?", p.VaultID).
			Select("COALESCE(MAX(seq), 0)").
			Scan(&maxSeq).Error; err != nil {
			return err
		}

		op := model.Operation{
			VaultID:        p.VaultID,
			Seq:            maxSeq + 1,
			FileID:         p.FileID,
			OpType:         p.OpType,
			Payload:        p.Payload,
			IdempotencyKey: p.IdempotencyKey,
			AuthorDeviceID: p.AuthorDeviceID,
		}
		if err := tx.Create(&op).Error; err != nil {
			return err
		}

		assigned = op.Seq
		isNew = true
		return nil
	})
	if err != nil {
		return 0, false, err
	}
	return assigned, isNew, nil
}

// ReadOpsSince returns operations with seq strictly greater than since,
// ordered by seq ascending. The limit is clamped to MaxReadLimit; a
// non-positive limit means "up to the cap".
func (s *GORMStore) ReadOpsSince(ctx context.Context, vaultID string, since int64, limit int) ([]model.Operation, error) {
	if limit <= 0 || limit > MaxReadLimit {
		limit = MaxReadLimit
	}

	var ops []model.Operation
	err := s.db.WithContext(ctx).
		Where("vault_id = ? AND seq > ?", vaultID, since).
		Order("seq ASC").
		Limit(limit).
		Find(&ops).Error
	if err != nil {
		return nil, fmt.Errorf("read ops since %d: %w", since, err)
	}
	return ops, nil
}

// GetOpByIdempotencyKey returns the operation recorded for the given key.
func (s *GORMStore) GetOpByIdempotencyKey(ctx context.Context, key string) (*model.Operation, error) {
	var op model.Operation
	err := s.db.WithContext(ctx).Where("idempotency_key = ?", key).First(&op).Error
	if err != nil {
		return nil, convertNotFoundError(err, gorm.ErrRecordNotFound)
	}
	return &op, nil
}

// LatestSeq returns the highest assigned seq for the vault, 0 if the log is empty.
func (s *GORMStore) LatestSeq(ctx context.Context, vaultID string) (int64, error) {
	var maxSeq int64
	err := s.db.WithContext(ctx).Model(&model.Operation{}).
		Where("vault_id = ?", vaultID).
		Select("COALESCE(MAX(seq), 0)").
		Scan(&maxSeq).Error
	if err != nil {
		return 0, fmt.Errorf("latest seq: %w", err)
	}
	return maxSeq, nil
}
