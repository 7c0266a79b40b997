package handler

import (
	"net/http"
	"time"

	"modelgate/internal/domain/repositories"
	"modelgate/internal/httputil"
)

// HealthHandler reports liveness and the served models
type HealthHandler struct {
	registry repositories.ModelRegistry
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(registry repositories.ModelRegistry) *HealthHandler {
	return &HealthHandler{registry: registry}
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	httputil.RespondJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
		"models": h.registry.Names(),
	})
}
