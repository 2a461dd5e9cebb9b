package web

import (
	"encoding/json"
	"net/http"

	"echo_nexus/internal/shared/logger"
	"echo_nexus/internal/shared/types"
)

// Handler serves the JSON API.
type Handler struct {
	provider types.StatusProvider
}

func NewHandler(provider types.StatusProvider) *Handler {
	return &Handler{provider: provider}
}

// HandleStatus 处理 GET /api/status 请求
func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, h.provider.GetStatus())
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn().Err(err).Msg("Failed to encode JSON response")
	}
}
