package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	store     Pinger
	responder responder
	now       func() time.Time
}

func NewHealthHandler(store Pinger, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{store: store, responder: newResponder(defaultLogger(logger)), now: time.Now}
}

func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", Timestamp: h.now().UTC().Format(time.RFC3339)}
	if h.store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.store.Ping(ctx); err != nil {
			h.responder.loggerFor(r.Context()).ErrorContext(r.Context(), "health check failed", "error", err)
			resp.Status = "unavailable"
			h.responder.writeJSON(r.Context(), w, http.StatusServiceUnavailable, resp)
			return
		}
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, resp)
}

type healthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}
