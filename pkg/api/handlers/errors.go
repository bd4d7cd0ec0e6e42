// Package handlers provides the HTTP handlers for the Obsync API.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/obsync/obsync/internal/logger"
	"github.com/obsync/obsync/pkg/auth"
	"github.com/obsync/obsync/pkg/blob"
	"github.com/obsync/obsync/pkg/chunkstore"
	"github.com/obsync/obsync/pkg/model"
	syncsvc "github.com/obsync/obsync/pkg/sync"
)

// Error codes carried in the error envelope.
const (
	CodeUnauthorized             = "UNAUTHORIZED"
	CodeForbidden                = "FORBIDDEN"
	CodeVaultNotFound            = "VAULT_NOT_FOUND"
	CodeInvalidPushPayload       = "INVALID_PUSH_PAYLOAD"
	CodeInvalidBlobInitPayload   = "INVALID_BLOB_INIT_PAYLOAD"
	CodeInvalidBlobCommitPayload = "INVALID_BLOB_COMMIT_PAYLOAD"
	CodeInvalidChunkPayload      = "INVALID_CHUNK_PAYLOAD"
	CodeChunkHashMismatch        = "CHUNK_HASH_MISMATCH"
	CodeBlobIncomplete           = "BLOB_INCOMPLETE"
	CodeBlobNotFound             = "BLOB_NOT_FOUND"
	CodeChunkNotFound            = "CHUNK_NOT_FOUND"
	CodeKeyEnvelopeNotFound      = "KEY_ENVELOPE_NOT_FOUND"
	CodeInternalError            = "INTERNAL_ERROR"
)

// ErrorEnvelope is the wire shape of every error response.
type ErrorEnvelope struct {
	Code        string         `json:"code"`
	Message     string         `json:"message"`
	Remediation string         `json:"remediation,omitempty"`
	Details     map[string]any `json:"details,omitempty"`
	TraceID     string         `json:"traceId,omitempty"`
}

// WriteError writes an error envelope with the given status and code. The
// trace id is taken from the chi request id middleware.
func WriteError(w http.ResponseWriter, r *http.Request, status int, code, message, remediation string, details map[string]any) {
	env := &ErrorEnvelope{
		Code:        code,
		Message:     message,
		Remediation: remediation,
		Details:     details,
		TraceID:     middleware.GetReqID(r.Context()),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(env)
}

// WriteServiceError maps a service-layer error to its envelope. Validation
// errors carry the endpoint-specific code passed in validationCode; every
// other foreseeable failure has a fixed mapping, and anything unrecognized is
// logged and reported as INTERNAL_ERROR.
func WriteServiceError(w http.ResponseWriter, r *http.Request, err error, validationCode string) {
	switch {
	case errors.Is(err, auth.ErrUnauthorized),
		errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrExpiredToken):
		WriteError(w, r, http.StatusUnauthorized, CodeUnauthorized,
			"authentication required", "supply a valid bearer token", nil)

	case errors.Is(err, auth.ErrForbidden):
		WriteError(w, r, http.StatusForbidden, CodeForbidden,
			"insufficient scope for this operation", "", nil)

	case errors.Is(err, model.ErrVaultNotFound):
		WriteError(w, r, http.StatusNotFound, CodeVaultNotFound,
			"vault not found", "", nil)

	case errors.Is(err, model.ErrBlobNotFound):
		WriteError(w, r, http.StatusNotFound, CodeBlobNotFound,
			"blob not found or not committed", "", nil)

	case errors.Is(err, model.ErrChunkNotFound), errors.Is(err, chunkstore.ErrChunkNotFound):
		WriteError(w, r, http.StatusNotFound, CodeChunkNotFound,
			"chunk not found", "", nil)

	case errors.Is(err, model.ErrKeyEnvelopeNotFound):
		WriteError(w, r, http.StatusNotFound, CodeKeyEnvelopeNotFound,
			"key envelope not found", "", nil)

	default:
		if !writeTypedError(w, r, err, validationCode) {
			logger.Error("request failed",
				"request_id", middleware.GetReqID(r.Context()),
				"method", r.Method,
				"path", r.URL.Path,
				"error", err,
			)
			WriteError(w, r, http.StatusInternalServerError, CodeInternalError,
				"internal error", "retry with exponential backoff", nil)
		}
	}
}

// writeTypedError handles the structured error types that carry details.
func writeTypedError(w http.ResponseWriter, r *http.Request, err error, validationCode string) bool {
	var pushErr *syncsvc.ValidationError
	if errors.As(err, &pushErr) {
		WriteError(w, r, http.StatusBadRequest, CodeInvalidPushPayload,
			"push payload failed validation", "fix the listed fields and retry",
			stringDetails(pushErr.Details))
		return true
	}

	var blobErr *blob.ValidationError
	if errors.As(err, &blobErr) {
		WriteError(w, r, http.StatusBadRequest, validationCode,
			"payload failed validation", "fix the listed fields and retry",
			stringDetails(blobErr.Details))
		return true
	}

	var mismatch *blob.HashMismatchError
	if errors.As(err, &mismatch) {
		WriteError(w, r, http.StatusConflict, CodeChunkHashMismatch,
			"declared chunk hash does not match transmitted bytes",
			"recompute the digest on the ciphertext exactly as transmitted and retry",
			map[string]any{
				"blobHash": mismatch.BlobHash,
				"index":    mismatch.Index,
				"declared": mismatch.Declared,
				"computed": mismatch.Computed,
			})
		return true
	}

	var incomplete *blob.IncompleteError
	if errors.As(err, &incomplete) {
		WriteError(w, r, http.StatusConflict, CodeBlobIncomplete,
			"blob has fewer chunks or bytes than declared",
			"upload the missing indices and retry the commit",
			map[string]any{
				"expectedCount": incomplete.ExpectedCount,
				"currentCount":  incomplete.CurrentCount,
				"expectedSize":  incomplete.ExpectedSize,
				"currentSize":   incomplete.CurrentSize,
			})
		return true
	}

	return false
}

func stringDetails(m map[string]string) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
