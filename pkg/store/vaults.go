package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/obsync/obsync/pkg/model"
)

// CreateVault persists a new vault. If the id is empty a fresh UUID is assigned.
func (s *GORMStore) CreateVault(ctx context.Context, vault *model.Vault) (string, error) {
	if vault.ID == "" {
		vault.ID = uuid.New().String()
	}
	vault.CreatedAt = time.Now()

	if err := s.db.WithContext(ctx).Create(vault).Error; err != nil {
		if isUniqueConstraintError(err) {
			return "", model.ErrDuplicateVault
		}
		return "", err
	}
	return vault.ID, nil
}

// GetVault returns the vault with the given id.
func (s *GORMStore) GetVault(ctx context.Context, id string) (*model.Vault, error) {
	var vault model.Vault
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&vault).Error
	if err != nil {
		return nil, convertNotFoundError(err, model.ErrVaultNotFound)
	}
	return &vault, nil
}

// ListVaults returns all vaults, newest first.
func (s *GORMStore) ListVaults(ctx context.Context) ([]*model.Vault, error) {
	var vaults []*model.Vault
	err := s.db.WithContext(ctx).Order("created_at DESC").Find(&vaults).Error
	if err != nil {
		return nil, err
	}
	return vaults, nil
}
