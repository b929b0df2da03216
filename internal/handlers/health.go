package handlers

import (
	"context"
	"net/http"
	"time"
)

type pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	db pinger
}

func NewHealthHandler(db pinger) *HealthHandler {
	return &HealthHandler{db: db}
}

// Health always answers 200; the database field carries the actual state.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	database := "connected"
	if h.db == nil || h.db.Ping(ctx) != nil {
		database = "error"
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "healthy",
		"database": database,
	})
}
