package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/shelfkit/shelfkit/internal/handler/dto"
)

// writeError writes the same error body the handlers use.
func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(dto.ErrorResponse{Error: message, Code: code})
}
