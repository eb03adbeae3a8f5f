package respond

import (
	"encoding/json"
	"net/http"

	"mypeeps/pkg/logger"
)

type errorBody struct {
	Error string `json:"error"`
}

// JSON writes v with the given status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Sugar.Warnf("Failed to encode response: %v", err)
	}
}

// Error writes {"error": msg}. Clients show msg to the user verbatim.
func Error(w http.ResponseWriter, status int, msg string) {
	JSON(w, status, errorBody{Error: msg})
}
