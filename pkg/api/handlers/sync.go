package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/obsync/obsync/pkg/auth"
	syncsvc "github.com/obsync/obsync/pkg/sync"
)

// SyncHandler serves the push and pull endpoints.
type SyncHandler struct {
	svc *syncsvc.Service
}

// NewSyncHandler creates a sync handler.
func NewSyncHandler(svc *syncsvc.Service) *SyncHandler {
	return &SyncHandler{svc: svc}
}

// Push handles POST /v1/vaults/{vaultId}/sync/push.
func (h *SyncHandler) Push(w http.ResponseWriter, r *http.Request) {
	vaultID := chi.URLParam(r, "vaultId")
	principal := auth.PrincipalFromContext(r.Context())

	var req syncsvc.PushRequest
	if !decodeJSONBody(w, r, &req, CodeInvalidPushPayload) {
		return
	}

	resp, err := h.svc.Push(r.Context(), principal, vaultID, &req)
	if err != nil {
		WriteServiceError(w, r, err, CodeInvalidPushPayload)
		return
	}

	WriteJSON(w, http.StatusOK, resp)
}

// Pull handles GET /v1/vaults/{vaultId}/sync/pull.
func (h *SyncHandler) Pull(w http.ResponseWriter, r *http.Request) {
	vaultID := chi.URLParam(r, "vaultId")
	principal := auth.PrincipalFromContext(r.Context())

	q := r.URL.Query()
	since, err := parseInt64(q.Get("since"), 0)
	if err != nil || since < 0 {
		WriteError(w, r, http.StatusBadRequest, CodeInvalidPushPayload,
			"since must be a non-negative integer", "", nil)
		return
	}
	limit64, err := parseInt64(q.Get("limit"), 0)
	if err != nil || limit64 < 0 {
		WriteError(w, r, http.StatusBadRequest, CodeInvalidPushPayload,
			"limit must be a non-negative integer", "", nil)
		return
	}

	resp, err := h.svc.Pull(r.Context(), principal, vaultID, since, int(limit64), q.Get("deviceId"))
	if err != nil {
		WriteServiceError(w, r, err, CodeInvalidPushPayload)
		return
	}

	WriteJSON(w, http.StatusOK, resp)
}

// parseInt64 parses s, returning def when s is empty.
func parseInt64(s string, def int64) (int64, error) {
	if s == "" {
		return def, nil
	}
	return strconv.ParseInt(s, 10, 64)
}
