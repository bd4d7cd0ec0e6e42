package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/obsync/obsync/pkg/model"
)

// fakeVaults is a VaultLookup over a fixed map.
type fakeVaults map[string]*model.Vault

func (f fakeVaults) GetVault(ctx context.Context, id string) (*model.Vault, error) {
	if v, ok := f[id]; ok {
		return v, nil
	}
	return nil, model.ErrVaultNotFound
}

func TestRequireScope(t *testing.T) {
	gate := NewGate(fakeVaults{})

	assert.ErrorIs(t, gate.RequireScope(nil, ScopeRead), ErrUnauthorized)

	reader := &Principal{UserID: "alice", Scopes: []Scope{ScopeRead}}
	assert.NoError(t, gate.RequireScope(reader, ScopeRead))
	assert.ErrorIs(t, gate.RequireScope(reader, ScopeWrite), ErrForbidden)

	admin := &Principal{UserID: "root", Scopes: []Scope{ScopeAdmin}}
	assert.NoError(t, gate.RequireScope(admin, ScopeRead))
	assert.NoError(t, gate.RequireScope(admin, ScopeWrite))
}

func TestRequireVaultOwnerHidesForeignVaults(t *testing.T) {
	gate := NewGate(fakeVaults{
		"vault-a": {ID: "vault-a", Owner: "alice"},
	})
	ctx := context.Background()

	owner := &Principal{UserID: "alice", Scopes: []Scope{ScopeRead}}
	vault, err := gate.RequireVaultOwner(ctx, owner, "vault-a")
	require.NoError(t, err)
	assert.Equal(t, "vault-a", vault.ID)

	// A stranger and a missing vault are indistinguishable.
	stranger := &Principal{UserID: "mallory", Scopes: []Scope{ScopeRead}}
	_, err = gate.RequireVaultOwner(ctx, stranger, "vault-a")
	assert.ErrorIs(t, err, model.ErrVaultNotFound)

	_, err = gate.RequireVaultOwner(ctx, owner, "vault-missing")
	assert.ErrorIs(t, err, model.ErrVaultNotFound)
}

func TestAdmitChecksScopeBeforeOwnership(t *testing.T) {
	gate := NewGate(fakeVaults{
		"vault-a": {ID: "vault-a", Owner: "alice"},
	})
	ctx := context.Background()

	// Scope failures win even when the vault would not be visible, so the
	// error never leaks vault existence to an under-scoped caller.
	stranger := &Principal{UserID: "mallory", Scopes: []Scope{ScopeRead}}
	_, err := gate.Admit(ctx, stranger, "vault-a", ScopeWrite)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = gate.Admit(ctx, nil, "vault-a", ScopeRead)
	assert.ErrorIs(t, err, ErrUnauthorized)

	owner := &Principal{UserID: "alice", Scopes: []Scope{ScopeRead, ScopeWrite}}
	vault, err := gate.Admit(ctx, owner, "vault-a", ScopeWrite)
	require.NoError(t, err)
	assert.Equal(t, "alice", vault.Owner)
}
