package handlers

import (
	"encoding/json"
	"net/http"
)

// decodeJSONBody decodes a JSON request body into the provided pointer.
// Returns true if successful, false if decoding fails (an error envelope with
// the given code is written automatically).
func decodeJSONBody(w http.ResponseWriter, r *http.Request, v any, code string) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		WriteError(w, r, http.StatusBadRequest, code,
			"request body is not valid JSON", "", nil)
		return false
	}
	return true
}
