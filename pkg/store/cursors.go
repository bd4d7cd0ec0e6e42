package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/obsync/obsync/pkg/model"
)

// CursorPolicy selects how UpsertCursor combines the new seq with an
// existing row.
type CursorPolicy string

const (
	// CursorSet replaces the stored seq unconditionally.
	CursorSet CursorPolicy = "set"

	// CursorMax keeps max(existing, new), making the cursor monotonic under
	// concurrent pulls.
	CursorMax CursorPolicy = "max"
)

// UpsertCursor records the highest applied seq for a (device, vault) pair.
func (s *GORMStore) UpsertCursor(ctx context.Context, deviceID, vaultID string, seq int64, policy CursorPolicy) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var cur model.SyncCursor
		err := tx.Where("device_id = ? AND vault_id = ?", deviceID, vaultID).First(&cur).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return tx.Create(&model.SyncCursor{
				DeviceID:       deviceID,
				VaultID:        vaultID,
				LastAppliedSeq: seq,
			}).Error
		}
		if err != nil {
			return err
		}

		if policy == CursorMax && seq <= cur.LastAppliedSeq {
			return nil
		}
		return tx.Model(&cur).Update("last_applied_seq", seq).Error
	})
	if err != nil && isUniqueConstraintError(err) {
		// Concurrent create of the same cursor row; re-run as update.
		return s.UpsertCursor(ctx, deviceID, vaultID, seq, policy)
	}
	if err != nil {
		return fmt.Errorf("upsert cursor: %w", err)
	}
	return nil
}

// GetCursor returns the stored cursor for a (device, vault) pair, 0 if none.
func (s *GORMStore) GetCursor(ctx context.Context, deviceID, vaultID string) (int64, error) {
	var cur model.SyncCursor
	err := s.db.WithContext(ctx).
		Where("device_id = ? AND vault_id = ?", deviceID, vaultID).
		First(&cur).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get cursor: %w", err)
	}
	return cur.LastAppliedSeq, nil
}
