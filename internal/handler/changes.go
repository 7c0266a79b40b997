package handler

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"modelgate/internal/domain/services"
	"modelgate/internal/httputil"
)

// supportedChangeTypes lists the output formats of the changes feed
var supportedChangeTypes = map[string]bool{"json": true}

// ChangesHandler serves documents updated within a time window
type ChangesHandler struct {
	gateway services.Gateway
	logger  *slog.Logger
}

// NewChangesHandler creates a new changes handler
func NewChangesHandler(gateway services.Gateway, logger *slog.Logger) *ChangesHandler {
	return &ChangesHandler{
		gateway: gateway,
		logger:  logger,
	}
}

// Changes handles GET /api/{model}/changes/{type}/{projection}[/{from}[/{to}]]
//
// ?count returns {"total": n}, ?page returns one page (?limit, default 100),
// anything else streams every match as one JSON array.
func (h *ChangesHandler) Changes(w http.ResponseWriter, r *http.Request) {
	typ := r.PathValue("type")
	if !supportedChangeTypes[typ] {
		httputil.RespondError(w, http.StatusBadRequest, "type "+typ+" not supported, try one of the following: json")
		return
	}

	req := &services.ChangesRequest{
		Model:      r.PathValue("model"),
		Projection: r.PathValue("projection"),
		Actor:      httputil.GetActor(r),
	}

	var err error
	if req.From, err = parseWindowBound(r.PathValue("from")); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "invalid from: "+err.Error())
		return
	}
	if req.To, err = parseWindowBound(r.PathValue("to")); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "invalid to: "+err.Error())
		return
	}

	params := r.URL.Query()
	switch {
	case params.Has("count"):
		h.count(w, r, req)
	case params.Has("page"):
		req.Page, _ = strconv.Atoi(params.Get("page"))
		req.Limit, _ = strconv.Atoi(params.Get("limit"))
		h.page(w, r, req)
	default:
		h.stream(w, r, req)
	}
}

func (h *ChangesHandler) count(w http.ResponseWriter, r *http.Request, req *services.ChangesRequest) {
	n, err := h.gateway.CountChanges(r.Context(), req)
	if err != nil {
		handleError(w, h.logger, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, map[string]int64{"total": n})
}

func (h *ChangesHandler) page(w http.ResponseWriter, r *http.Request, req *services.ChangesRequest) {
	docs, err := h.gateway.ListChanges(r.Context(), req)
	if err != nil {
		handleError(w, h.logger, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, docs)
}

// stream writes the array incrementally. Headers go out with the first
// element, so errors before it still get a proper status.
func (h *ChangesHandler) stream(w http.ResponseWriter, r *http.Request, req *services.ChangesRequest) {
	flusher, _ := w.(http.Flusher)
	started := false

	err := h.gateway.StreamChanges(r.Context(), req, func(doc map[string]any) error {
		payload, err := json.Marshal(doc)
		if err != nil {
			return err
		}
		sep := ","
		if !started {
			w.Header().Set("Content-Type", "application/json;charset=UTF-8")
			w.WriteHeader(http.StatusOK)
			sep = "["
			started = true
		}
		if _, err := w.Write([]byte(sep)); err != nil {
			return err
		}
		if _, err := w.Write(payload); err != nil {
			return err
		}
		if flusher != nil {
			flusher.Flush()
		}
		return nil
	})

	if err != nil {
		if !started {
			handleError(w, h.logger, err)
			return
		}
		// The status is already on the wire; the client sees a truncated array
		h.logger.Error("changes stream aborted",
			"model", req.Model,
			"projection", req.Projection,
			"error", err,
		)
		return
	}

	if !started {
		w.Header().Set("Content-Type", "application/json;charset=UTF-8")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("[]"))
		return
	}
	w.Write([]byte("]"))
}

// parseWindowBound accepts RFC3339 timestamps, plain dates and unix
// milliseconds. An empty value is an open bound.
func parseWindowBound(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, value); err == nil {
			return &t, nil
		}
	}
	ms, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("unrecognized time %q", value)
	}
	t := time.UnixMilli(ms).UTC()
	return &t, nil
}
