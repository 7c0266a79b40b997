package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"

	"modelgate/internal/httputil"
)

// Recovery turns a panic in a gateway action into a 500 problem response.
// The log entry names the model and action taken from the /api route.
func Recovery(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				model, action := routeOf(r.URL.Path)
				logger.Error("action panicked",
					"model", model,
					"action", action,
					"method", r.Method,
					"panic", fmt.Sprint(rec),
					"stack", string(debug.Stack()),
				)

				httputil.RespondError(w, http.StatusInternalServerError, "internal server error")
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// routeOf splits /api/{model}/{action}/... into model and action.
// Paths outside /api yield empty strings.
func routeOf(path string) (model, action string) {
	rest, ok := strings.CutPrefix(path, "/api/")
	if !ok {
		return "", ""
	}
	parts := strings.SplitN(rest, "/", 3)
	model = parts[0]
	if len(parts) > 1 {
		action = parts[1]
	}
	return model, action
}
