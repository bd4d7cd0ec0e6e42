package auth

import (
	"context"
	"errors"

	"github.com/obsync/obsync/pkg/model"
)

// Gate errors. ErrVaultNotFound deliberately covers both "absent" and "not
// yours" so callers cannot probe for vault existence.
var (
	ErrUnauthorized = errors.New("authentication required")
	ErrForbidden    = errors.New("insufficient scope")
)

// VaultLookup is the slice of the metadata store the gate needs.
type VaultLookup interface {
	GetVault(ctx context.Context, id string) (*model.Vault, error)
}

// Gate enforces scope and vault ownership for every operation of the sync
// core.
type Gate struct {
	vaults VaultLookup
}

// NewGate creates a gate over the given vault lookup.
func NewGate(vaults VaultLookup) *Gate {
	return &Gate{vaults: vaults}
}

// RequireScope succeeds if the principal carries the requested scope (or
// admin). A nil principal means the request never passed authentication.
func (g *Gate) RequireScope(principal *Principal, requested Scope) error {
	if principal == nil {
		return ErrUnauthorized
	}
	if !principal.HasScope(requested) {
		return ErrForbidden
	}
	return nil
}

// RequireVaultOwner looks up the vault and verifies the principal owns it.
// Absence and ownership mismatch both return model.ErrVaultNotFound.
func (g *Gate) RequireVaultOwner(ctx context.Context, principal *Principal, vaultID string) (*model.Vault, error) {
	if principal == nil {
		return nil, ErrUnauthorized
	}

	vault, err := g.vaults.GetVault(ctx, vaultID)
	if err != nil {
		return nil, err
	}
	if vault.Owner != principal.UserID {
		return nil, model.ErrVaultNotFound
	}
	return vault, nil
}

// Admit combines the scope and ownership checks; every vault-scoped
// operation funnels through here.
func (g *Gate) Admit(ctx context.Context, principal *Principal, vaultID string, scope Scope) (*model.Vault, error) {
	if err := g.RequireScope(principal, scope); err != nil {
		return nil, err
	}
	return g.RequireVaultOwner(ctx, principal, vaultID)
}
