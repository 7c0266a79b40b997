package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"modelgate/internal/domain"
	"modelgate/internal/httputil"
)

// handleError converts domain errors to HTTP responses
func handleError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var (
		authErr       *domain.AuthorizationError
		validationErr *domain.ValidationError
		httpErr       domain.HTTPError
	)

	switch {
	case errors.As(err, &authErr):
		// Only the optional message goes back to the caller
		httputil.RespondText(w, http.StatusUnauthorized, authErr.Message)
	case errors.As(err, &validationErr):
		httputil.RespondJSON(w, http.StatusBadRequest, validationErr.Fields)
	case errors.Is(err, domain.ErrNoData):
		httputil.RespondError(w, http.StatusBadRequest, domain.ErrNoData.Error())
	case errors.As(err, &httpErr):
		httputil.RespondError(w, httpErr.StatusCode(), httpErr.Error())
	default:
		logger.Error("request failed", "error", err)
		httputil.RespondError(w, http.StatusInternalServerError, "internal server error")
	}
}
