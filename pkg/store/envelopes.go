package store

import (
	"context"
	"fmt"

	"gorm.io/gorm/clause"

	"github.com/obsync/obsync/pkg/model"
)

// UpsertKeyEnvelope stores the encrypted vault key for one device at one
// rotation version. The ciphertext is opaque; the row is replaced on conflict
// so rotation retries are idempotent.
func (s *GORMStore) UpsertKeyEnvelope(ctx context.Context, env *model.KeyEnvelope) error {
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "vault_id"}, {Name: "device_id"}, {Name: "version"}},
			DoUpdates: clause.AssignmentColumns([]string{"encrypted_vault_key"}),
		}).
		Create(env).Error
	if err != nil {
		return fmt.Errorf("upsert key envelope: %w", err)
	}
	return nil
}

// GetKeyEnvelope returns the envelope for (vault, device, version).
func (s *GORMStore) GetKeyEnvelope(ctx context.Context, vaultID, deviceID string, version int) (*model.KeyEnvelope, error) {
	var env model.KeyEnvelope
	err := s.db.WithContext(ctx).
		Where("vault_id = ? AND device_id = ? AND version = ?", vaultID, deviceID, version).
		First(&env).Error
	if err != nil {
		return nil, convertNotFoundError(err, model.ErrKeyEnvelopeNotFound)
	}
	return &env, nil
}

// ListKeyEnvelopes returns all envelopes for a device in a vault, newest
// version first, so a client can pick the latest rotation.
func (s *GORMStore) ListKeyEnvelopes(ctx context.Context, vaultID, deviceID string) ([]model.KeyEnvelope, error) {
	var envs []model.KeyEnvelope
	err := s.db.WithContext(ctx).
		Where("vault_id = ? AND device_id = ?", vaultID, deviceID).
		Order("version DESC").
		Find(&envs).Error
	if err != nil {
		return nil, fmt.Errorf("list key envelopes: %w", err)
	}
	return envs, nil
}
