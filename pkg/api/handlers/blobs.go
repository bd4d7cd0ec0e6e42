package handlers

import (
	"encoding/base64"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/obsync/obsync/pkg/auth"
	"github.com/obsync/obsync/pkg/blob"
)

// BlobHandler serves the three-phase blob upload and the read endpoints.
// Chunk bytes travel base64-wrapped in JSON; there is no streaming response.
type BlobHandler struct {
	svc *blob.Service
}

// NewBlobHandler creates a blob handler.
func NewBlobHandler(svc *blob.Service) *BlobHandler {
	return &BlobHandler{svc: svc}
}

// Init handles POST /v1/vaults/{vaultId}/blobs/init.
func (h *BlobHandler) Init(w http.ResponseWriter, r *http.Request) {
	vaultID := chi.URLParam(r, "vaultId")
	principal := auth.PrincipalFromContext(r.Context())

	var req blob.InitRequest
	if !decodeJSONBody(w, r, &req, CodeInvalidBlobInitPayload) {
		return
	}

	resp, err := h.svc.Init(r.Context(), principal, vaultID, &req)
	if err != nil {
		WriteServiceError(w, r, err, CodeInvalidBlobInitPayload)
		return
	}

	WriteJSON(w, http.StatusCreated, resp)
}

// putChunkBody is the wire shape of a chunk upload.
type putChunkBody struct {
	ChunkHash        string `json:"chunkHash"`
	Size             int64  `json:"size"`
	CipherTextBase64 string `json:"cipherTextBase64"`
}

// PutChunk handles PUT /v1/vaults/{vaultId}/blobs/{blobHash}/chunks/{index}.
func (h *BlobHandler) PutChunk(w http.ResponseWriter, r *http.Request) {
	vaultID := chi.URLParam(r, "vaultId")
	blobHash := chi.URLParam(r, "blobHash")
	principal := auth.PrincipalFromContext(r.Context())

	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		WriteError(w, r, http.StatusBadRequest, CodeInvalidChunkPayload,
			"chunk index must be an integer", "", nil)
		return
	}

	var body putChunkBody
	if !decodeJSONBody(w, r, &body, CodeInvalidChunkPayload) {
		return
	}

	data, err := base64.StdEncoding.DecodeString(body.CipherTextBase64)
	if err != nil {
		WriteError(w, r, http.StatusBadRequest, CodeInvalidChunkPayload,
			"cipherTextBase64 is not valid base64", "", nil)
		return
	}

	resp, err := h.svc.PutChunk(r.Context(), principal, vaultID, blobHash, index, &blob.PutChunkRequest{
		ChunkHash: body.ChunkHash,
		Size:      body.Size,
		Data:      data,
	})
	if err != nil {
		WriteServiceError(w, r, err, CodeInvalidChunkPayload)
		return
	}

	WriteJSON(w, http.StatusOK, resp)
}

// Commit handles POST /v1/vaults/{vaultId}/blobs/{blobHash}/commit.
func (h *BlobHandler) Commit(w http.ResponseWriter, r *http.Request) {
	vaultID := chi.URLParam(r, "vaultId")
	blobHash := chi.URLParam(r, "blobHash")
	principal := auth.PrincipalFromContext(r.Context())

	var req blob.CommitRequest
	if !decodeJSONBody(w, r, &req, CodeInvalidBlobCommitPayload) {
		return
	}

	resp, err := h.svc.Commit(r.Context(), principal, vaultID, blobHash, &req)
	if err != nil {
		WriteServiceError(w, r, err, CodeInvalidBlobCommitPayload)
		return
	}

	WriteJSON(w, http.StatusOK, resp)
}

// GetManifest handles GET /v1/vaults/{vaultId}/blobs/{blobHash}.
func (h *BlobHandler) GetManifest(w http.ResponseWriter, r *http.Request) {
	vaultID := chi.URLParam(r, "vaultId")
	blobHash := chi.URLParam(r, "blobHash")
	principal := auth.PrincipalFromContext(r.Context())

	manifest, err := h.svc.Manifest(r.Context(), principal, vaultID, blobHash)
	if err != nil {
		WriteServiceError(w, r, err, CodeInvalidBlobInitPayload)
		return
	}

	WriteJSON(w, http.StatusOK, manifest)
}

// chunkBody is the wire shape of a chunk read.
type chunkBody struct {
	BlobHash         string `json:"blobHash"`
	Index            int    `json:"index"`
	ChunkHash        string `json:"chunkHash"`
	Size             int64  `json:"size"`
	CipherTextBase64 string `json:"cipherTextBase64"`
}

// GetChunk handles GET /v1/vaults/{vaultId}/blobs/{blobHash}/chunks/{index}.
func (h *BlobHandler) GetChunk(w http.ResponseWriter, r *http.Request) {
	vaultID := chi.URLParam(r, "vaultId")
	blobHash := chi.URLParam(r, "blobHash")
	principal := auth.PrincipalFromContext(r.Context())

	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		WriteError(w, r, http.StatusBadRequest, CodeInvalidChunkPayload,
			"chunk index must be an integer", "", nil)
		return
	}

	chunk, err := h.svc.GetChunk(r.Context(), principal, vaultID, blobHash, index)
	if err != nil {
		WriteServiceError(w, r, err, CodeInvalidChunkPayload)
		return
	}

	WriteJSON(w, http.StatusOK, &chunkBody{
		BlobHash:         chunk.BlobHash,
		Index:            chunk.Index,
		ChunkHash:        chunk.ChunkHash,
		Size:             chunk.Size,
		CipherTextBase64: base64.StdEncoding.EncodeToString(chunk.Data),
	})
}
