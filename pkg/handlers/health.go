package handlers

import (
	"context"
	"net/http"
	"time"
)

type HealthHandler struct {
	store Pinger
}

type healthResponse struct {
	Status string `json:"status"`
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "database_unreachable"})
		return
	}
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
}
