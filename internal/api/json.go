package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode failed", slog.String("error", err.Error()))
	}
}

type errResponse struct {
	Error errDetail `json:"error"`
}

type errDetail struct {
	Message string `json:"message"`
}

// writeError emits the uniform error envelope. Every failure surfaces
// as HTTP 500 with a descriptive message; status codes do not
// distinguish error classes at this layer.
func writeError(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusInternalServerError, errResponse{Error: errDetail{Message: msg}})
}
