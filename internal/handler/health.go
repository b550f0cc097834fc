package handler

import (
	"net/http"

	"github.com/dmc-digital/chat-session-engine/internal/service"
)

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	manager *service.Manager
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(manager *service.Manager) *HealthHandler {
	return &HealthHandler{manager: manager}
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

// Ready handles GET /ready
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ready",
		"sessions": h.manager.Count(),
	})
}
