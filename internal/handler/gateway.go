package handler

import (
	"log/slog"
	"net/http"

	"modelgate/internal/domain/services"
	"modelgate/internal/httputil"
)

// GatewayHandler serves the model action dispatcher
type GatewayHandler struct {
	gateway services.Gateway
	logger  *slog.Logger
}

// NewGatewayHandler creates a new gateway handler
func NewGatewayHandler(gateway services.Gateway, logger *slog.Logger) *GatewayHandler {
	return &GatewayHandler{
		gateway: gateway,
		logger:  logger,
	}
}

// Dispatch runs one action against one model
// POST /api/{model}/{action}
func (h *GatewayHandler) Dispatch(w http.ResponseWriter, r *http.Request) {
	// An empty body is a valid request with every option at its default
	var req services.Request
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.Model = r.PathValue("model")
	req.Action = r.PathValue("action")
	req.Actor = httputil.GetActor(r)

	result, err := h.gateway.Dispatch(r.Context(), &req)
	if err != nil {
		h.logger.Debug("action failed",
			"model", req.Model,
			"action", req.Action,
			"error", err,
		)
		handleError(w, h.logger, err)
		return
	}

	if result.Empty {
		httputil.RespondEmpty(w, http.StatusOK)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, result.Body)
}
