package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/obsync/obsync/pkg/auth"
	"github.com/obsync/obsync/pkg/model"
	"github.com/obsync/obsync/pkg/store"
)

// KeyHandler serves the key-envelope endpoints. The server never sees vault
// keys in the clear; envelopes are opaque ciphertext stored per
// (vault, device, version).
type KeyHandler struct {
	store store.Store
	gate  *auth.Gate
}

// NewKeyHandler creates a key envelope handler.
func NewKeyHandler(st store.Store, gate *auth.Gate) *KeyHandler {
	return &KeyHandler{store: st, gate: gate}
}

type keyEnvelopeBody struct {
	Version           int    `json:"version"`
	EncryptedVaultKey string `json:"encryptedVaultKey"`
}

type keyEnvelopeView struct {
	VaultID           string `json:"vaultId"`
	DeviceID          string `json:"deviceId"`
	Version           int    `json:"version"`
	EncryptedVaultKey string `json:"encryptedVaultKey"`
}

// Put handles PUT /v1/vaults/{vaultId}/keys/{deviceId}. Storing the same
// version twice replaces the ciphertext, so rotation retries are safe.
func (h *KeyHandler) Put(w http.ResponseWriter, r *http.Request) {
	vaultID := chi.URLParam(r, "vaultId")
	deviceID := chi.URLParam(r, "deviceId")
	principal := auth.PrincipalFromContext(r.Context())

	if _, err := h.gate.Admit(r.Context(), principal, vaultID, auth.ScopeWrite); err != nil {
		WriteServiceError(w, r, err, CodeInternalError)
		return
	}

	var body keyEnvelopeBody
	if !decodeJSONBody(w, r, &body, CodeInvalidPushPayload) {
		return
	}
	if body.Version <= 0 || body.EncryptedVaultKey == "" {
		WriteError(w, r, http.StatusBadRequest, CodeInvalidPushPayload,
			"version must be positive and encryptedVaultKey non-empty", "", nil)
		return
	}

	env := &model.KeyEnvelope{
		VaultID:           vaultID,
		DeviceID:          deviceID,
		Version:           body.Version,
		EncryptedVaultKey: body.EncryptedVaultKey,
	}
	if err := h.store.UpsertKeyEnvelope(r.Context(), env); err != nil {
		WriteServiceError(w, r, err, CodeInternalError)
		return
	}

	WriteJSON(w, http.StatusCreated, &keyEnvelopeView{
		VaultID:  vaultID,
		DeviceID: deviceID,
		Version:  body.Version,
	})
}

// Get handles GET /v1/vaults/{vaultId}/keys/{deviceId}?version=. Without a
// version it returns the latest rotation.
func (h *KeyHandler) Get(w http.ResponseWriter, r *http.Request) {
	vaultID := chi.URLParam(r, "vaultId")
	deviceID := chi.URLParam(r, "deviceId")
	principal := auth.PrincipalFromContext(r.Context())

	if _, err := h.gate.Admit(r.Context(), principal, vaultID, auth.ScopeRead); err != nil {
		WriteServiceError(w, r, err, CodeInternalError)
		return
	}

	var env *model.KeyEnvelope
	if v := r.URL.Query().Get("version"); v != "" {
		version, err := strconv.Atoi(v)
		if err != nil {
			WriteError(w, r, http.StatusBadRequest, CodeInvalidPushPayload,
				"version must be an integer", "", nil)
			return
		}
		env, err = h.store.GetKeyEnvelope(r.Context(), vaultID, deviceID, version)
		if err != nil {
			WriteServiceError(w, r, err, CodeInternalError)
			return
		}
	} else {
		envs, err := h.store.ListKeyEnvelopes(r.Context(), vaultID, deviceID)
		if err != nil {
			WriteServiceError(w, r, err, CodeInternalError)
			return
		}
		if len(envs) == 0 {
			WriteServiceError(w, r, model.ErrKeyEnvelopeNotFound, CodeInternalError)
			return
		}
		env = &envs[0]
	}

	WriteJSON(w, http.StatusOK, &keyEnvelopeView{
		VaultID:           env.VaultID,
		DeviceID:          env.DeviceID,
		Version:           env.Version,
		EncryptedVaultKey: env.EncryptedVaultKey,
	})
}
