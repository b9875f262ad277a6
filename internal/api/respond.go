package api

import (
	"encoding/json"
	"net/http"

	"ms-payments/internal/apperr"
)

type errorEnvelope struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

// writeError maps domain errors onto the wire contract. Anything without an
// error code degrades to a plain 500 so internals never leak.
func writeError(w http.ResponseWriter, err error) {
	if appErr, ok := apperr.As(err); ok {
		writeJSON(w, appErr.Status, errorEnvelope{Error: appErr.Code, Message: appErr.Message})
		return
	}
	writeJSON(w, http.StatusInternalServerError, errorEnvelope{
		Error:   "INTERNAL_ERROR",
		Message: "something went wrong",
	})
}

func writeBadRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, errorEnvelope{Error: "BAD_REQUEST", Message: message})
}
